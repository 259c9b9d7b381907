package site

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cmdsite/config"
	"cmdsite/db"
	"cmdsite/model"
	"cmdsite/render"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const pingJSON = `[{"Name":"ping","Aliases":[],"Usage":"!ping","Description":"Replies pong","ChannelCooldown":5,"UserCooldown":1,"NoPrefix":false,"CanDisable":true}]`

func nullLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
}

func builtRows(t *testing.T, path string) []model.Row {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	doc, err := html.Parse(f)
	require.NoError(t, err)
	tbody, err := render.FindTableBody(doc)
	require.NoError(t, err)
	return render.Rows(tbody)
}

func TestPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page(PageData{Title: "Bot <commands>", Base: "/monkebot"}).Render(context.Background(), &buf))
	out := buf.String()

	assert.Contains(t, out, "<title>Bot &lt;commands&gt;</title>")
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"), out)
	assert.Contains(t, out, `<base href="/monkebot/"/>`)
	assert.Contains(t, out, `<table id="commands-table">`)
	assert.Contains(t, out, "<th>Channel Cooldown</th>")
	assert.Contains(t, out, "<tbody></tbody>")

	buf.Reset()
	require.NoError(t, Page(PageData{Title: "x"}).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), `<base href="/"/>`)
}

func TestShellEscapesTitle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, html.Render(&buf, Shell(PageData{Title: `<script>alert(1)</script>`})))
	assert.NotContains(t, buf.String(), "<script>")

	doc, err := html.Parse(&buf)
	require.NoError(t, err)
	tbody, err := render.FindTableBody(doc)
	require.NoError(t, err)
	assert.Nil(t, tbody.FirstChild)
}

func TestBuildFromSourceFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "commands.json")
	writeFile(t, src, pingJSON)
	out := filepath.Join(t.TempDir(), "build")

	log, _ := nullLogger()
	cfg := &config.Config{Title: "Commands", OutDir: out, Source: src, BasePath: "/monkebot"}
	res, err := NewBuilder(cfg, log).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.NoError(t, res.LoadErr)

	assert.Equal(t, []model.Row{{"ping", "None", "!ping", "Replies pong", "5", "1", "false", "true"}}, builtRows(t, filepath.Join(out, indexFile)))
	assert.FileExists(t, filepath.Join(out, fallbackFile))
	assert.FileExists(t, filepath.Join(out, "assets", "style.css"))

	data, err := os.ReadFile(filepath.Join(out, render.Resource))
	require.NoError(t, err)
	assert.JSONEq(t, pingJSON, string(data))

	index, err := os.ReadFile(filepath.Join(out, indexFile))
	require.NoError(t, err)
	assert.Contains(t, string(index), `<base href="/monkebot/"/>`)
}

func TestBuildDevIgnoresBasePath(t *testing.T) {
	src := filepath.Join(t.TempDir(), "commands.json")
	writeFile(t, src, pingJSON)
	out := t.TempDir()

	log, _ := nullLogger()
	cfg := &config.Config{Title: "Commands", OutDir: out, Source: src, BasePath: "/monkebot", Dev: true}
	_, err := NewBuilder(cfg, log).Build(context.Background())
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(out, indexFile))
	require.NoError(t, err)
	assert.Contains(t, string(index), `<base href="/"/>`)
}

func TestBuildFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, pingJSON)
	}))
	defer srv.Close()

	out := t.TempDir()
	log, _ := nullLogger()
	cfg := &config.Config{Title: "Commands", OutDir: out, Source: srv.URL + "/commands.json"}
	res, err := NewBuilder(cfg, log).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
}

func TestBuildInvalidListLeavesTableEmpty(t *testing.T) {
	src := filepath.Join(t.TempDir(), "commands.json")
	writeFile(t, src, `{"not":"a list"}`)
	out := t.TempDir()

	log, hook := nullLogger()
	cfg := &config.Config{Title: "Commands", OutDir: out, Source: src}
	res, err := NewBuilder(cfg, log).Build(context.Background())
	require.NoError(t, err)

	var parseErr *render.ParseError
	assert.ErrorAs(t, res.LoadErr, &parseErr)
	assert.Zero(t, res.Rows)
	assert.Empty(t, builtRows(t, filepath.Join(out, indexFile)))

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			logged = true
		}
	}
	assert.True(t, logged, "load failure is logged")
}

func TestBuildFromRegistry(t *testing.T) {
	dir := t.TempDir()
	registry := filepath.Join(dir, "commands.db")
	reg, err := db.Open(registry)
	require.NoError(t, err)
	require.NoError(t, reg.Add(model.Command{Name: "ping", Usage: "ping", ChannelCooldown: model.Seconds(5), UserCooldown: model.Seconds(5)}))
	require.NoError(t, reg.Add(model.Command{Name: "butt", NoPrefix: true, ChannelCooldown: model.Seconds(0), UserCooldown: model.Seconds(0)}))
	require.NoError(t, reg.Add(model.Command{Name: "help", Aliases: []string{"commands"}, ChannelCooldown: model.Seconds(5), UserCooldown: model.Seconds(5)}))
	require.NoError(t, reg.Close())

	out := filepath.Join(dir, "build")
	log, _ := nullLogger()
	cfg := &config.Config{Title: "Commands", OutDir: out, Registry: registry, Prefix: "!"}
	res, err := NewBuilder(cfg, log).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)

	rows := builtRows(t, filepath.Join(out, indexFile))
	require.Len(t, rows, 3)
	assert.Equal(t, "!help", rows[0][0])
	assert.Equal(t, "commands", rows[0][1])
	assert.Equal(t, "!ping", rows[1][0])
	assert.Equal(t, "butt", rows[2][0])
	assert.Equal(t, "true", rows[2][6])
}

func TestBuildWithGenerator(t *testing.T) {
	src := filepath.Join(t.TempDir(), "fixture.json")
	writeFile(t, src, pingJSON)
	out := t.TempDir()

	log, hook := nullLogger()
	cfg := &config.Config{
		Title:     "Commands",
		OutDir:    out,
		Prefix:    `\`,
		Generator: "echo generating; cp " + src + " {{out}}",
	}
	res, err := NewBuilder(cfg, log).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)

	var sawOutput bool
	for _, e := range hook.AllEntries() {
		if e.Message == "generating" {
			sawOutput = true
		}
	}
	assert.True(t, sawOutput, "generator output is logged")
}

func TestBuildGeneratorQuotesParams(t *testing.T) {
	src := filepath.Join(t.TempDir(), "fixture.json")
	writeFile(t, src, pingJSON)
	out := filepath.Join(t.TempDir(), "my site")

	log, hook := nullLogger()
	cfg := &config.Config{
		Title:     "Commands",
		OutDir:    out,
		Prefix:    `\`,
		Generator: "printf 'prefix=%s\\n' {{prefix}}; cp " + src + " {{out}}",
	}
	res, err := NewBuilder(cfg, log).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)

	var prefix string
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "prefix=") {
			prefix = e.Message
		}
	}
	assert.Equal(t, `prefix=\`, prefix)
}

func TestBuildGeneratorFailure(t *testing.T) {
	log, _ := nullLogger()
	cfg := &config.Config{Title: "Commands", OutDir: t.TempDir(), Generator: "exit 1"}
	_, err := NewBuilder(cfg, log).Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator failed")

	cfg.Generator = "true {{unknown}}"
	_, err = NewBuilder(cfg, log).Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}

func buildSite(t *testing.T, base string) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "commands.json")
	writeFile(t, src, pingJSON)
	out := t.TempDir()
	log, _ := nullLogger()
	_, err := NewBuilder(&config.Config{Title: "Commands", OutDir: out, Source: src, BasePath: base}, log).Build(context.Background())
	require.NoError(t, err)
	return out
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServerServesUnderBase(t *testing.T) {
	out := buildSite(t, "/monkebot")
	log, _ := nullLogger()
	h := NewServer(out, PageData{Title: "Commands", Base: "/monkebot"}, false, log).Handler()

	rec := get(t, h, "/monkebot/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Replies pong")

	rec = get(t, h, "/monkebot/commands.json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, pingJSON, rec.Body.String())

	rec = get(t, h, "/monkebot/assets/style.css")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/monkebot")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/monkebot/", rec.Header().Get("Location"))

	rec = get(t, h, "/monkebot/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "commands-table", "fallback page is served")

	rec = get(t, h, "/elsewhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerLivePage(t *testing.T) {
	out := buildSite(t, "")
	log, _ := nullLogger()
	h := NewServer(out, PageData{Title: "Live"}, true, log).Handler()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "Replies pong"))

	// every request is a fresh page load
	writeFile(t, filepath.Join(out, render.Resource), `[]`)
	rec = get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Replies pong")
	assert.Contains(t, rec.Body.String(), "<title>Live</title>")
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "commands.json")
	writeFile(t, file, `[]`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	log, _ := nullLogger()
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, file, log, func() { calls.Add(1) }) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "other.json"), `[]`)
	writeFile(t, file, pingJSON)

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
