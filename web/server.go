// Package web serves the localization engine over HTTP.
package web

import (
	"context"
	"embed"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"goji.io"
	"goji.io/pat"

	"go.viam.com/sphereloc/localize"
	"go.viam.com/sphereloc/logging"
	"go.viam.com/sphereloc/store"
)

//go:embed static/index.html
var staticFS embed.FS

// Store is where localizations are recorded and read back. *store.Store implements it.
type Store interface {
	Record(ctx context.Context, rec store.Record) (string, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
}

// Options configures the server.
type Options struct {
	Port               int
	UploadDir          string
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

// Server routes HTTP requests to the engine, the calibration provider, the store and the upload
// directory.
type Server struct {
	engine       *localize.Engine
	calibrations localize.CalibrationSource
	store        Store
	options      Options
	logger       logging.Logger
	clock        clock.Clock
	handler      http.Handler
}

// New returns a server. st may be nil, in which case nothing is recorded.
func New(
	engine *localize.Engine,
	calibrations localize.CalibrationSource,
	st Store,
	options Options,
	logger logging.Logger,
) (*Server, error) {
	if engine == nil || calibrations == nil {
		return nil, errors.New("web server needs an engine and a calibration source")
	}
	if options.UploadDir == "" {
		return nil, errors.New("upload directory is required")
	}
	if err := os.MkdirAll(options.UploadDir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "cannot create upload directory %q", options.UploadDir)
	}
	s := &Server{
		engine:       engine,
		calibrations: calibrations,
		store:        st,
		options:      options,
		logger:       logger,
		clock:        clock.New(),
	}
	s.handler = s.initMux()
	return s, nil
}

// initMux registers every route and wraps the mux with CORS handling.
func (s *Server) initMux() http.Handler {
	mux := goji.NewMux()
	mux.Use(s.logRequests)
	mux.HandleFunc(pat.Get("/"), s.handleIndex)
	mux.HandleFunc(pat.Post("/upload_image"), s.handleUploadImage)
	mux.HandleFunc(pat.Post("/api/localize"), s.handleLocalize)
	mux.HandleFunc(pat.Get("/api/calibration"), s.handleCalibration)
	mux.HandleFunc(pat.Get("/api/localizations"), s.handleLocalizations)

	var corsHandler *cors.Cors
	if len(s.options.CORSAllowedOrigins) == 0 {
		corsHandler = cors.AllowAll()
	} else {
		corsHandler = cors.New(cors.Options{
			AllowedOrigins: s.options.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		})
	}
	return corsHandler.Handler(mux)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.options.Port))
	if err != nil {
		return errors.Wrapf(err, "cannot listen on port %d", s.options.Port)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is done, then shuts down gracefully within the configured
// timeout.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Infow("serving", "url", fmt.Sprintf("http://%s", listener.Addr().String()))

	serveErr := make(chan error, 1)
	utils.PanicCapturingGo(func() {
		serveErr <- httpServer.Serve(listener)
	})

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	var err error
	if s.options.ShutdownTimeout > 0 {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		err = httpServer.Shutdown(shutdownCtx)
	} else {
		err = httpServer.Close()
	}
	if sErr := <-serveErr; sErr != nil && !errors.Is(sErr, http.ErrServerClosed) {
		err = multierr.Combine(err, sErr)
	}
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debugw("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", s.clock.Since(start))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(page)
	utils.UncheckedError(err)
}
