// Package render loads commands.json and renders it into a command table.
package render

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"cmdsite/catalog"
	"cmdsite/model"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// Resource is fetched relative to the page the table lives on.
const Resource = "commands.json"

// FetchError is returned when the command list could not be retrieved.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is returned when the response is not a valid command list.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Fetch issues a single GET for rawURL and decodes the command list.
func Fetch(ctx context.Context, client *http.Client, rawURL string) ([]model.Command, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	cmds, err := catalog.Decode(resp.Body)
	if err != nil {
		return nil, &ParseError{URL: rawURL, Err: err}
	}
	return cmds, nil
}

// Renderer fills a command table from the commands.json next to a page.
type Renderer struct {
	resource *url.URL
	client   *http.Client
	log      logrus.FieldLogger
}

// New returns a Renderer for the page at pageURL. A nil client uses
// http.DefaultClient, a nil log uses the standard logrus logger.
func New(pageURL string, client *http.Client, log logrus.FieldLogger) (*Renderer, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Renderer{
		resource: page.ResolveReference(&url.URL{Path: Resource}),
		client:   client,
		log:      log,
	}, nil
}

// URL is the location the command list is fetched from.
func (r *Renderer) URL() string {
	return r.resource.String()
}

// Load fetches the command list and appends its rows to tbody. A failed
// fetch or parse is logged and leaves tbody unchanged. There is no retry
// and no timeout other than ctx.
func (r *Renderer) Load(ctx context.Context, tbody *html.Node) error {
	if tbody == nil {
		return ErrNoContainer
	}

	u := r.URL()
	cmds, err := Fetch(ctx, r.client, u)
	if err != nil {
		r.log.WithError(err).WithField("url", u).Error("failed to load command table")
		return err
	}

	r.log.WithFields(logrus.Fields{"url": u, "rows": len(cmds)}).Debug("loaded command table")
	return Render(tbody, cmds)
}

// Start runs Load in the background. The returned channel receives Load's
// result and is then closed. tbody must not be touched until it is.
func (r *Renderer) Start(ctx context.Context, tbody *html.Node) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- r.Load(ctx, tbody)
	}()
	return done
}
