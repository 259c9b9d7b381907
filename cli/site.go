package cli

import (
	"context"
	"path/filepath"
	"strings"

	"cmdsite/config"
	"cmdsite/render"
	"cmdsite/site"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewBuildCommand creates the build command
func NewBuildCommand(opts *rootOptions) *cobra.Command {
	flags := &siteFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the static command list site",
		Long: `Build writes commands.json, index.html, a 404.html fallback and the page
assets to the output directory. The command list comes from --source, from
--generator, or from the registry, in that order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(cmd.Flags(), opts.cfg)
			return build(cmd.Context(), opts.cfg)
		},
	}

	flags.register(cmd.Flags(), "base-path", "title", "out", "source", "generator", "prefix", "registry", "dev")
	return cmd
}

func build(ctx context.Context, cfg *config.Config) error {
	res, err := site.NewBuilder(cfg, logrus.StandardLogger()).Build(ctx)
	if err != nil {
		return err
	}
	if res.LoadErr != nil {
		logrus.WithError(res.LoadErr).Warn("site built with an empty command table")
	}
	return nil
}

// NewServeCommand creates the serve command
func NewServeCommand(opts *rootOptions) *cobra.Command {
	flags := &siteFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the site and serve it",
		Long: `Serve builds the site and serves the output directory. With --dev the
base path is dropped, the page is rendered on every request and the site
is rebuilt whenever the --source file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(cmd.Flags(), opts.cfg)
			return serve(cmd.Context(), opts.cfg)
		},
	}

	flags.register(cmd.Flags(), "base-path", "title", "out", "source", "generator", "prefix", "registry", "addr", "dev")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := build(ctx, cfg); err != nil {
		return err
	}

	page := site.PageData{Title: cfg.Title, Base: cfg.SiteBase()}
	srv := site.NewServer(cfg.OutDir, page, cfg.Dev, logrus.StandardLogger())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Addr)
	})

	if cfg.Dev && cfg.Source != "" && !isURL(cfg.Source) {
		// the output copy is refreshed by rebuilding; watch the source file
		if abs, err := filepath.Abs(cfg.Source); err == nil && abs != absPath(filepath.Join(cfg.OutDir, render.Resource)) {
			g.Go(func() error {
				return site.Watch(ctx, cfg.Source, logrus.StandardLogger(), func() {
					if err := build(ctx, cfg); err != nil {
						logrus.WithError(err).Error("rebuild failed")
					}
				})
			})
		}
	}

	return g.Wait()
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
