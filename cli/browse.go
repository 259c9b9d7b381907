package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cmdsite/render"
	"cmdsite/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewBrowseCommand creates the browse command
func NewBrowseCommand(opts *rootOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "browse [page-url]",
		Short: "Browse a published command list in the terminal",
		Long: `Browse loads commands.json from the page at page-url (or the URL of the
json file itself) and shows it as a searchable table. Without an argument
the local preview server address is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "http://" + opts.cfg.Addr + opts.cfg.SiteBase() + "/"
			if len(args) == 1 {
				target = args[0]
			}
			listURL, err := commandListURL(target)
			if err != nil {
				return err
			}

			// the terminal belongs to the UI; diagnostics go to a file
			f, err := tea.LogToFile(logFile, "")
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer f.Close()
			logrus.SetOutput(f)

			p := tea.NewProgram(ui.NewApp(listURL, nil, logrus.StandardLogger()), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("failed to run browser: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", filepath.Join(os.TempDir(), "cmdsite.log"), "where diagnostics are written while browsing")
	return cmd
}

// commandListURL returns target when it names a json file, otherwise the
// commands.json next to the page at target.
func commandListURL(target string) (string, error) {
	if strings.HasSuffix(strings.ToLower(target), ".json") {
		return target, nil
	}
	r, err := render.New(target, nil, nil)
	if err != nil {
		return "", err
	}
	return r.URL(), nil
}
