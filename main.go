package main

import "cmdsite/cli"

func main() {
	cli.Execute()
}
