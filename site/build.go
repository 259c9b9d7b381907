// Package site builds and serves the static command list page.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"cmdsite/catalog"
	"cmdsite/config"
	"cmdsite/db"
	"cmdsite/render"
	"cmdsite/runner"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	indexFile    = "index.html"
	fallbackFile = "404.html"
)

// Result describes a finished build.
type Result struct {
	Rows int
	// LoadErr is set when the table could not be filled. The page is still
	// written, with an empty table.
	LoadErr error
}

// Builder produces the static bundle described by a Config.
type Builder struct {
	cfg    *config.Config
	log    logrus.FieldLogger
	client *http.Client
}

func NewBuilder(cfg *config.Config, log logrus.FieldLogger) *Builder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Builder{cfg: cfg, log: log, client: http.DefaultClient}
}

// Build writes commands.json, index.html, 404.html and the page assets to
// the output directory.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	out := b.cfg.OutDir
	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := b.commandList(ctx, filepath.Join(out, render.Resource)); err != nil {
		return nil, err
	}

	doc, res, err := LoadPage(ctx, PageData{Title: b.cfg.Title, Base: b.cfg.SiteBase()}, out, b.log)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	for _, name := range []string{indexFile, fallbackFile} {
		if err := os.WriteFile(filepath.Join(out, name), buf.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := copyAssets(out); err != nil {
		return nil, err
	}

	b.log.WithFields(logrus.Fields{"path": out, "rows": res.Rows, "base": b.cfg.SiteBase()}).Info("site built")
	return res, nil
}

// LoadPage renders the page shell and fills its table from the
// commands.json in dir, the way a browser would on page load.
func LoadPage(ctx context.Context, p PageData, dir string, log logrus.FieldLogger) (*html.Node, *Result, error) {
	doc := Shell(p)
	tbody, err := render.FindTableBody(doc)
	if err != nil {
		return nil, nil, err
	}

	client := &http.Client{Transport: http.NewFileTransport(http.Dir(dir))}
	r, err := render.New("file:///"+indexFile, client, log)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{}
	if err := r.Load(ctx, tbody); err != nil {
		if errors.Is(err, render.ErrNoContainer) {
			return nil, nil, err
		}
		res.LoadErr = err
	}
	res.Rows = len(render.Rows(tbody))
	return doc, res, nil
}

// commandList puts the list to publish at dst, from the first configured
// source: Source, then Generator, then the registry.
func (b *Builder) commandList(ctx context.Context, dst string) error {
	switch {
	case b.cfg.Source != "":
		return b.fetchSource(ctx, dst)
	case b.cfg.Generator != "":
		return b.generate(ctx, dst)
	default:
		return b.fromRegistry(dst)
	}
}

func (b *Builder) fetchSource(ctx context.Context, dst string) error {
	src := b.cfg.Source
	log := b.log.WithField("source", src)

	var rc io.ReadCloser
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return err
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to download command list: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("failed to download command list: %s", resp.Status)
		}
		rc = resp.Body
	} else {
		abs, err := filepath.Abs(src)
		if err != nil {
			return err
		}
		if absDst, err := filepath.Abs(dst); err == nil && absDst == abs {
			log.Debug("source is already in place")
			return nil
		}
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("failed to open command list: %w", err)
		}
		rc = f
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("failed to copy command list: %w", err)
	}
	log.WithField("path", dst).Debug("copied command list")
	return f.Close()
}

func (b *Builder) generate(ctx context.Context, dst string) error {
	cmd := runner.SubstituteParams(b.cfg.Generator, map[string]string{
		"out":    runner.Quote(dst),
		"prefix": runner.Quote(b.cfg.Prefix),
	})
	if missing := runner.Missing(cmd, nil); len(missing) > 0 {
		return fmt.Errorf("generator has unknown placeholders: %s", strings.Join(missing, ", "))
	}

	log := b.log.WithField("generator", cmd)
	log.Info("running command list generator")

	output := make(chan runner.OutputMsg)
	go runner.Run(ctx, cmd, "", output)

	var failed string
	for msg := range output {
		switch {
		case msg.Done:
			failed = msg.ErrMsg
		case msg.IsErr:
			log.Warn(msg.Line)
		default:
			log.Info(msg.Line)
		}
	}
	if failed != "" {
		return fmt.Errorf("command list generator failed: %s", failed)
	}
	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("generator did not write %s: %w", dst, err)
	}
	return nil
}

func (b *Builder) fromRegistry(dst string) error {
	reg, err := db.Open(b.cfg.Registry)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer reg.Close()

	cmds, err := reg.List()
	if err != nil {
		return fmt.Errorf("failed to list registry: %w", err)
	}
	b.log.WithFields(logrus.Fields{"registry": b.cfg.Registry, "commands": len(cmds)}).Info("generating command list from registry")
	return catalog.WriteFile(dst, catalog.Prepare(cmds, b.cfg.Prefix))
}

func copyAssets(out string) error {
	return fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(out, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := assets.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
}
