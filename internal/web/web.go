package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"statusboard/internal/config"
	appLog "statusboard/internal/log"
	"statusboard/internal/model"
)

// Board is the agenda state the server exposes. *board.Service implements
// it.
type Board interface {
	Current() (model.DisplaySelection, bool)
	Refresh(ctx context.Context) (model.DisplaySelection, error)
}

// Server provides the board page, the agenda API and operational
// endpoints.
type Server struct {
	cfg   *config.Config
	board Board
	mux   *http.ServeMux
}

// embeddedStatic holds the board page.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, b Board) *Server {
	s := &Server{
		cfg:   cfg,
		board: b,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.cfg != nil && s.cfg.BasicAuth.Enabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Statusboard", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Listen binds the configured address. Binding before the refresh loop
// starts lets the first snapshot reach the board page.
func Listen(cfg *config.Config) (net.Listener, error) {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	return ln, nil
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// ln is closed on return.
func Serve(ctx context.Context, ln net.Listener, cfg *config.Config, b Board) error {
	srv := &http.Server{
		Handler:           NewServer(cfg, b).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	// Everything else is the embedded board page.
	s.mux.Handle("GET /", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Agenda is the JSON shape of a DisplaySelection.
type Agenda struct {
	HeaderDate  string     `json:"header_date"`
	HeaderLabel string     `json:"header_label"`
	GeneratedAt time.Time  `json:"generated_at"`
	Timezone    string     `json:"timezone"`
	Events      []EventDTO `json:"events"`
}

// EventDTO is a JSON-friendly view of a resolved occurrence.
type EventDTO struct {
	UID      string    `json:"uid"`
	Summary  string    `json:"summary"`
	Location string    `json:"location,omitempty"`
	Color    string    `json:"color"`
	AllDay   bool      `json:"all_day"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// NewAgenda converts a selection for the API and the --once output.
func NewAgenda(sel model.DisplaySelection) Agenda {
	events := make([]EventDTO, 0, len(sel.Events))
	for _, ev := range sel.Events {
		events = append(events, EventDTO{
			UID:      ev.UID,
			Summary:  ev.Summary,
			Location: ev.Location,
			Color:    ev.Color,
			AllDay:   ev.AllDay,
			Start:    ev.InstanceStart,
			End:      ev.InstanceEnd,
		})
	}
	return Agenda{
		HeaderDate:  sel.HeaderDate.Format(time.DateOnly),
		HeaderLabel: sel.HeaderLabel(),
		GeneratedAt: sel.GeneratedAt,
		Timezone:    sel.HeaderDate.Location().String(),
		Events:      events,
	}
}

// handleAgenda returns the latest selection. Until the first refresh pass
// has finished it answers 503 so the page keeps polling.
func (s *Server) handleAgenda(w http.ResponseWriter, _ *http.Request) {
	sel, ok := s.board.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "agenda not ready")
		return
	}
	writeJSON(w, http.StatusOK, NewAgenda(sel))
}

// handleRefresh runs a pass now and returns its result.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sel, err := s.board.Refresh(r.Context())
	if err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, NewAgenda(sel))
}

// handlePreview serves the last board snapshot from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil || !s.cfg.Snapshot.Enabled {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(s.cfg.Snapshot.Output); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, s.cfg.Snapshot.Output)
}

// staticFileServer serves the embedded files from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "board page not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown API paths must not fall through to HTML.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
