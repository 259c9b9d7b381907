package site

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// Server serves a built site directory under its base path.
type Server struct {
	dir  string
	base string
	page PageData
	// live renders index.html on every request instead of serving the
	// built file.
	live bool
	log  logrus.FieldLogger
}

func NewServer(dir string, page PageData, live bool, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{dir: dir, base: page.Base, page: page, live: live, log: log}
}

// Handler returns the router for the site.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if s.base != "" {
		r.Get(s.base, func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, s.base+"/", http.StatusMovedPermanently)
		})
	}
	if s.live {
		r.Get(s.base+"/", s.livePage)
		r.Get(s.base+"/"+indexFile, s.livePage)
	}
	r.Get(s.base+"/*", s.serveFile)
	r.NotFound(s.notFound)

	return r
}

func (s *Server) livePage(w http.ResponseWriter, r *http.Request) {
	component := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		doc, _, err := LoadPage(ctx, s.page, s.dir, s.log)
		if err != nil {
			return err
		}
		return html.Render(w, doc)
	})
	templ.Handler(component).ServeHTTP(w, r)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + chi.URLParam(r, "*"))
	if name == "/" {
		name = "/" + indexFile
	}

	f, err := http.Dir(s.dir).Open(name)
	if err != nil {
		s.notFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.notFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// notFound serves the 404.html fallback page.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.dir, fallbackFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).Warn("failed to read fallback page")
		}
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write(data)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// ListenAndServe serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", "http://"+addr+s.base+"/").Info("serving site")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
