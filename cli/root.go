// Package cli wires the cmdsite commands together.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cmdsite/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
)

type rootOptions struct {
	configPath string
	debug      bool
	cfg        *config.Config
}

// NewRootCommand creates the root command for cmdsite
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cmdsite",
		Short: "Publish a bot's command list as a web page",
		Long: `cmdsite turns a commands.json command list into a static page with a
command table, serves it, and lets you browse it from the terminal.`,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(opts.debug)
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "cmdsite.yaml", "path to config file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "sets log level to debug")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewBrowseCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewRegistryCommand(opts))

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("command failed")
		stop()
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.DateTime,
	})
	logrus.SetLevel(logrus.InfoLevel)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.Debug("debug mode on")
	}
}

// siteFlags are the settings a command line can override.
type siteFlags struct {
	basePath  string
	title     string
	outDir    string
	source    string
	generator string
	prefix    string
	registry  string
	addr      string
	dev       bool
}

func (f *siteFlags) register(fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		switch name {
		case "base-path":
			fs.StringVar(&f.basePath, name, "", "path the site is deployed under (env BASE_PATH)")
		case "title":
			fs.StringVar(&f.title, name, "", "page title")
		case "out":
			fs.StringVarP(&f.outDir, name, "o", "", "output directory")
		case "source":
			fs.StringVar(&f.source, name, "", "path or URL of the commands.json to publish")
		case "generator":
			fs.StringVar(&f.generator, name, "", "command that writes commands.json to {{out}}")
		case "prefix":
			fs.StringVar(&f.prefix, name, "", "prefix shown in front of prefixed command names")
		case "registry":
			fs.StringVar(&f.registry, name, "", "command registry database")
		case "addr":
			fs.StringVar(&f.addr, name, "", "listen address")
		case "dev":
			fs.BoolVar(&f.dev, name, false, "development build: no base path")
		}
	}
}

// apply copies the flags that were set on the command line over cfg.
func (f *siteFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("base-path", &cfg.BasePath, f.basePath)
	set("title", &cfg.Title, f.title)
	set("out", &cfg.OutDir, f.outDir)
	set("source", &cfg.Source, f.source)
	set("generator", &cfg.Generator, f.generator)
	set("prefix", &cfg.Prefix, f.prefix)
	set("registry", &cfg.Registry, f.registry)
	set("addr", &cfg.Addr, f.addr)
	if fs.Changed("dev") {
		cfg.Dev = f.dev
	}
}
