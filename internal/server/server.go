// Package server exposes the latest samples and the live chart over HTTP.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/senselog/internal/chart"
	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/logger"
	"codeberg.org/mutker/senselog/internal/metrics"
	"codeberg.org/mutker/senselog/internal/sample"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	DefaultAddr = ":5000"

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	title             = "Live Sensor Data"
)

//go:embed templates/*.html
var templateFS embed.FS

// Artifacts returns the most recently published chart, or nil.
type Artifacts interface {
	Latest() *chart.Artifact
}

type Config struct {
	Addr     string
	Interval time.Duration
}

type Server struct {
	cfg       Config
	store     *sample.Store
	artifacts Artifacts
	metrics   *metrics.Metrics
	log       logger.Logger
	templates *template.Template
	upgrader  websocket.Upgrader
	streams   atomic.Int64
	handler   http.Handler
}

type pageData struct {
	Title          string
	IntervalMillis int64
}

type health struct {
	Status          string `json:"status"`
	Samples         int    `json:"samples"`
	Latest          string `json:"latest,omitempty"`
	ArtifactVersion uint64 `json:"artifact_version"`
	ActiveStreams   int64  `json:"active_streams"`
}

func New(cfg Config, store *sample.Store, artifacts Artifacts, m *metrics.Metrics) (*Server, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrInitFailed, err)
	}

	s := &Server{
		cfg:       cfg,
		store:     store,
		artifacts: artifacts,
		metrics:   m,
		log:       logger.New("server"),
		templates: templates,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.handler = s.routes()

	return s, nil
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.page("index.html")).Methods(http.MethodGet)
	r.HandleFunc("/live-graph", s.page("live_graph.html")).Methods(http.MethodGet)
	r.HandleFunc("/data", s.handleData).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/static/live_graph.png", s.handleGraph).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	recovered := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.log}),
		handlers.PrintRecoveryStack(true),
	)(r)
	return handlers.LoggingHandler(logger.Writer(), recovered)
}

// recoveryLogger reports handler panics through the component logger.
type recoveryLogger struct {
	log logger.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(v...))
}

// Handler returns the root handler including access logging.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ActiveStreams returns the number of connected /data and /ws clients.
func (s *Server) ActiveStreams() int {
	return int(s.streams.Load())
}

func (s *Server) streamOpened() {
	s.streams.Add(1)
	s.metrics.StreamOpened()
}

func (s *Server) streamClosed() {
	s.streams.Add(-1)
	s.metrics.StreamClosed()
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data := pageData{
			Title:          title,
			IntervalMillis: s.cfg.Interval.Milliseconds(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
			s.log.Error().Err(err).Str("template", name).Msg("Failed to render page")
		}
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	artifact := s.artifacts.Latest()
	if artifact == nil {
		http.Error(w, "chart not rendered yet", http.StatusNotFound)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.Itoa(len(artifact.PNG)))
	h.Set("X-Artifact-Version", strconv.FormatUint(artifact.Version, 10))
	h.Set("Last-Modified", artifact.RenderedAt.UTC().Format(http.TimeFormat))

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(artifact.PNG); err != nil {
		s.log.Debug().Err(err).Msg("Client went away while sending chart")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := health{
		Status:        "ok",
		Samples:       s.store.Len(),
		ActiveStreams: s.streams.Load(),
	}
	if latest, ok := s.store.Latest(); ok {
		h.Latest = latest.Line()
	}
	if artifact := s.artifacts.Latest(); artifact != nil {
		h.ArtifactVersion = artifact.Version
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h); err != nil {
		s.log.Debug().Err(err).Msg("Failed to encode health")
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.New().Wrap(errors.ErrServeHTTP, err)
	}

	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// Request contexts derive from ctx so open streams end with it.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errFactory := errors.New()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errFactory.Wrap(errors.ErrServeHTTP, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}

	s.log.Info().Msg("HTTP server stopped")
	return nil
}
