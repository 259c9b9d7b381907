package model

// Columns are the table headers, in cell order.
var Columns = [8]string{
	"Name",
	"Aliases",
	"Usage",
	"Description",
	"Channel Cooldown",
	"User Cooldown",
	"No Prefix",
	"Can Disable",
}

// Row is the rendered text of one command, one string per column.
type Row [8]string
