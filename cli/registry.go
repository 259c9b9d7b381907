package cli

import (
	"fmt"
	"math"
	"os"
	"strings"

	"cmdsite/catalog"
	"cmdsite/db"
	"cmdsite/model"
	"cmdsite/render"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand(opts *rootOptions) *cobra.Command {
	flags := &siteFlags{}

	cmd := &cobra.Command{
		Use:   "generate <path>",
		Short: "Generate commands.json from the registry",
		Long: `Generate writes the registry as a command list: prefixed commands get the
prefix in front of their name and the list is sorted by name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(cmd.Flags(), opts.cfg)
			path := args[0]

			log := logrus.WithField("path", path)
			log.Info("generating command list json")

			reg, err := db.Open(opts.cfg.Registry)
			if err != nil {
				return err
			}
			defer reg.Close()

			cmds, err := reg.List()
			if err != nil {
				return err
			}
			if err := catalog.WriteFile(path, catalog.Prepare(cmds, opts.cfg.Prefix)); err != nil {
				return err
			}
			log.WithField("commands", len(cmds)).Info("command list json generated successfully")
			return nil
		},
	}

	flags.register(cmd.Flags(), "prefix", "registry")
	return cmd
}

// NewRegistryCommand creates the registry command
func NewRegistryCommand(opts *rootOptions) *cobra.Command {
	flags := &siteFlags{}

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the command registry",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			flags.apply(cmd.Flags(), opts.cfg)
			return nil
		},
	}
	flags.register(cmd.PersistentFlags(), "registry")

	cmd.AddCommand(newRegistryListCommand(opts))
	cmd.AddCommand(newRegistryAddCommand(opts))
	cmd.AddCommand(newRegistryUpdateCommand(opts))
	cmd.AddCommand(newRegistryRemoveCommand(opts))
	cmd.AddCommand(newRegistryImportCommand(opts))

	return cmd
}

func withRegistry(opts *rootOptions, fn func(*db.DB) error) error {
	reg, err := db.Open(opts.cfg.Registry)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer reg.Close()
	return fn(reg)
}

func newRegistryListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(opts, func(reg *db.DB) error {
				cmds, err := reg.List()
				if err != nil {
					return err
				}
				cell := lipgloss.NewStyle().PaddingRight(2)
				t := table.New().
					Border(lipgloss.HiddenBorder()).
					BorderTop(false).
					BorderBottom(false).
					BorderLeft(false).
					BorderRight(false).
					BorderHeader(false).
					BorderColumn(false).
					StyleFunc(func(row, col int) lipgloss.Style { return cell }).
					Headers(model.Columns[:]...)
				for _, c := range cmds {
					cells := render.Cells(c)
					t.Row(cells[:]...)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), t.String())
				return err
			})
		},
	}
}

func newRegistryAddCommand(opts *rootOptions) *cobra.Command {
	var (
		c               model.Command
		channelCooldown string
		userCooldown    string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Name = args[0]
			c.ChannelCooldown = parseCooldown(channelCooldown)
			c.UserCooldown = parseCooldown(userCooldown)
			if c.Aliases == nil {
				c.Aliases = []string{}
			}
			return withRegistry(opts, func(reg *db.DB) error {
				if err := reg.Add(c); err != nil {
					return err
				}
				logrus.WithField("command", c.Name).Info("command registered")
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&c.Aliases, "alias", "a", nil, "alias (repeatable)")
	cmd.Flags().StringVarP(&c.Usage, "usage", "u", "", "usage text")
	cmd.Flags().StringVarP(&c.Description, "description", "d", "", "description")
	cmd.Flags().StringVar(&channelCooldown, "channel-cooldown", "0", "channel cooldown, seconds or free text")
	cmd.Flags().StringVar(&userCooldown, "user-cooldown", "0", "user cooldown, seconds or free text")
	cmd.Flags().BoolVar(&c.NoPrefix, "no-prefix", false, "command runs without the prefix")
	cmd.Flags().BoolVar(&c.CanDisable, "can-disable", false, "channels may disable the command")
	return cmd
}

func newRegistryUpdateCommand(opts *rootOptions) *cobra.Command {
	var (
		c               model.Command
		channelCooldown string
		userCooldown    string
	)

	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Change a registered command",
		Long: `Update changes the fields given on the command line and keeps the rest.
--alias replaces the whole alias list; --no-alias clears it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			return withRegistry(opts, func(reg *db.DB) error {
				cur, err := reg.Get(args[0])
				if err != nil {
					return err
				}
				if fs.Changed("name") {
					cur.Name = c.Name
				}
				if fs.Changed("alias") {
					cur.Aliases = c.Aliases
				}
				if noAlias, _ := fs.GetBool("no-alias"); noAlias {
					cur.Aliases = []string{}
				}
				if fs.Changed("usage") {
					cur.Usage = c.Usage
				}
				if fs.Changed("description") {
					cur.Description = c.Description
				}
				if fs.Changed("channel-cooldown") {
					cur.ChannelCooldown = parseCooldown(channelCooldown)
				}
				if fs.Changed("user-cooldown") {
					cur.UserCooldown = parseCooldown(userCooldown)
				}
				if fs.Changed("no-prefix") {
					cur.NoPrefix = c.NoPrefix
				}
				if fs.Changed("can-disable") {
					cur.CanDisable = c.CanDisable
				}

				if err := reg.Update(args[0], cur); err != nil {
					return err
				}
				logrus.WithField("command", cur.Name).Info("command updated")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&c.Name, "name", "", "new name")
	cmd.Flags().StringSliceVarP(&c.Aliases, "alias", "a", nil, "alias (repeatable)")
	cmd.Flags().Bool("no-alias", false, "remove all aliases")
	cmd.Flags().StringVarP(&c.Usage, "usage", "u", "", "usage text")
	cmd.Flags().StringVarP(&c.Description, "description", "d", "", "description")
	cmd.Flags().StringVar(&channelCooldown, "channel-cooldown", "", "channel cooldown, seconds or free text")
	cmd.Flags().StringVar(&userCooldown, "user-cooldown", "", "user cooldown, seconds or free text")
	cmd.Flags().BoolVar(&c.NoPrefix, "no-prefix", false, "command runs without the prefix")
	cmd.Flags().BoolVar(&c.CanDisable, "can-disable", false, "channels may disable the command")
	return cmd
}

// parseCooldown keeps finite JSON numbers numeric and anything else (inf,
// NaN, 1e400, 5m) as text.
func parseCooldown(s string) model.Cooldown {
	var c model.Cooldown
	if err := c.UnmarshalJSON([]byte(s)); err != nil {
		return model.Text(s)
	}
	if f, ok := c.Seconds(); !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return model.Text(s)
	}
	return c
}

func newRegistryRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a registered command",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(opts, func(reg *db.DB) error {
				if err := reg.Delete(args[0]); err != nil {
					return err
				}
				logrus.WithField("command", args[0]).Info("command removed")
				return nil
			})
		},
	}
}

func newRegistryImportCommand(opts *rootOptions) *cobra.Command {
	var stripPrefix string

	cmd := &cobra.Command{
		Use:   "import <commands.json>",
		Short: "Replace the registry with the commands of a command list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			cmds, err := catalog.Decode(f)
			if err != nil {
				return err
			}
			if stripPrefix != "" {
				for i := range cmds {
					if !cmds[i].NoPrefix {
						cmds[i].Name = strings.TrimPrefix(cmds[i].Name, stripPrefix)
					}
				}
			}

			return withRegistry(opts, func(reg *db.DB) error {
				if err := reg.Replace(cmds); err != nil {
					return err
				}
				logrus.WithFields(logrus.Fields{"path": args[0], "commands": len(cmds)}).Info("registry imported")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stripPrefix, "strip-prefix", "", "remove this prefix from prefixed command names")
	return cmd
}
