// Package http exposes a running call gate over a small JSON API with a live event stream.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/internal/compiler"
	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/internal/presentation/graph"
	"github.com/aretw0/callgate/pkg/adapters/memory"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/runner"
	"github.com/aretw0/callgate/pkg/story"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Driver runs functions on the engine goroutine. *runner.Runner implements it.
type Driver interface {
	Do(ctx context.Context, fn runner.Func) error
}

// Server serves the call gate API.
type Server struct {
	driver  Driver
	streams *StreamManager
	windows *memory.Windows
	metrics http.Handler
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithStreams shares a StreamManager whose Hooks were given to the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.streams = sm }
}

// WithWindows enables the /windows endpoints for a simulated desktop.
func WithWindows(w *memory.Windows) Option {
	return func(s *Server) { s.windows = w }
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler creates the HTTP handler for a driven engine.
func NewHandler(driver Driver, opts ...Option) http.Handler {
	s := &Server{
		driver:  driver,
		logger:  logging.NewNop(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/status", s.GetStatus)
	r.Get("/events", s.SubscribeEvents)

	r.Route("/flags", func(r chi.Router) {
		r.Get("/", s.ListFlags)
		r.Get("/{key}", s.GetFlag)
		r.Put("/{key}", s.PutFlag)
		r.Delete("/{key}", s.DeleteFlag)
	})

	r.Post("/page", s.PostPage)
	r.Post("/stages/{ordinal}/trigger", s.TriggerStage)
	r.Post("/continue", s.Continue)
	r.Post("/media/{node}", s.MediaFinished)
	r.Post("/hangup", s.HangUp)
	r.Post("/reset", s.Reset)

	r.Get("/graphs", s.ListGraphs)
	r.Get("/graphs/{id}", s.GetGraph)

	if s.windows != nil {
		r.Get("/windows", s.ListWindows)
		r.Put("/windows/{name}", s.OpenWindow)
		r.Delete("/windows/{name}", s.CloseWindow)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// do runs fn on the engine goroutine and writes any error as a JSON response.
func (s *Server) do(w http.ResponseWriter, r *http.Request, fn runner.Func) bool {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if err := s.driver.Do(ctx, fn); err != nil {
		s.writeError(w, err)
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownStage),
		errors.Is(err, domain.ErrFlagNotFound),
		errors.Is(err, domain.ErrGraphNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStageBusy),
		errors.Is(err, domain.ErrNoActiveRun),
		errors.Is(err, domain.ErrNotAwaiting),
		errors.Is(err, domain.ErrTransitionInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreNotLoaded),
		errors.Is(err, runner.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

// GetHealth handles the GET /health request. Stores that can check their backend
// (Redis) are pinged.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	var store any
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) error {
		store = e.Store()
		return nil
	})
	if !ok {
		return
	}
	if h, ok := store.(interface{ Healthy(context.Context) error }); ok {
		if err := h.Healthy(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "callgate-http",
		"version": strings.TrimSpace(callgate.Version),
	})
}

// GetStatus handles the GET /status request.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	var st callgate.Status
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) error {
		st = e.Status(ctx)
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, st)
	}
}

// ListFlags handles the GET /flags request.
func (s *Server) ListFlags(w http.ResponseWriter, r *http.Request) {
	var snap domain.Snapshot
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) (err error) {
		snap, err = e.Store().Snapshot(ctx)
		return err
	})
	if ok {
		writeJSON(w, http.StatusOK, snap)
	}
}

// GetFlag handles the GET /flags/{key} request.
func (s *Server) GetFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var v domain.Value
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) (err error) {
		v, err = e.Store().Get(ctx, key)
		return err
	})
	if ok {
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
	}
}

type flagBody struct {
	Value domain.Value `json:"value"`
}

// PutFlag handles the PUT /flags/{key} request and rechecks the stages.
func (s *Server) PutFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var body flagBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"value\": <bool|string|number>}"})
		return
	}
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) error {
		if err := e.Store().Set(ctx, key, body.Value); err != nil {
			return err
		}
		e.Recheck(ctx)
		return nil
	})
	if ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteFlag handles the DELETE /flags/{key} request.
func (s *Server) DeleteFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) error {
		return e.Store().Delete(ctx, key)
	})
	if ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

// PostPage handles the POST /page request: the in-game browser navigated.
func (s *Server) PostPage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"url\": \"...\"}"})
		return
	}
	clean, err := runner.SanitizeLine(body.URL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) error {
		if err := e.Store().Set(ctx, story.KeyBrowserLastURL, domain.String(clean)); err != nil {
			return err
		}
		e.NotifyPageChanged(ctx, clean)
		return nil
	})
	if ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

// TriggerStage handles the POST /stages/{ordinal}/trigger request.
func (s *Server) TriggerStage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "ordinal"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stage must be an integer"})
		return
	}
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) error {
		return e.RequestCallStage(ctx, n)
	})
	if ok {
		w.WriteHeader(http.StatusAccepted)
	}
}

// Continue handles the POST /continue request.
func (s *Server) Continue(w http.ResponseWriter, r *http.Request) {
	s.signal(w, r, func(ctx context.Context, e *callgate.Engine) error {
		return e.Continue(ctx)
	})
}

// MediaFinished handles the POST /media/{node} request.
func (s *Server) MediaFinished(w http.ResponseWriter, r *http.Request) {
	node := chi.URLParam(r, "node")
	s.signal(w, r, func(ctx context.Context, e *callgate.Engine) error {
		return e.MediaFinished(ctx, node)
	})
}

// HangUp handles the POST /hangup request.
func (s *Server) HangUp(w http.ResponseWriter, r *http.Request) {
	s.signal(w, r, func(ctx context.Context, e *callgate.Engine) error {
		return e.HangUp(ctx)
	})
}

// Reset handles the POST /reset request. With ?progress=true the stage markers are cleared too.
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	progress, _ := strconv.ParseBool(r.URL.Query().Get("progress"))
	s.signal(w, r, func(ctx context.Context, e *callgate.Engine) error {
		if progress {
			return e.ResetProgress(ctx)
		}
		e.Reset(ctx)
		return nil
	})
}

func (s *Server) signal(w http.ResponseWriter, r *http.Request, fn runner.Func) {
	if s.do(w, r, fn) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListGraphs handles the GET /graphs request.
func (s *Server) ListGraphs(w http.ResponseWriter, r *http.Request) {
	var ids []string
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) (err error) {
		ids, err = e.Loader().ListGraphs(ctx)
		return err
	})
	if ok {
		writeJSON(w, http.StatusOK, ids)
	}
}

// GetGraph handles the GET /graphs/{id} request. ?format=mermaid returns a flowchart
// with the live call highlighted; the default is the authoring document.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		g       *domain.Graph
		current string
	)
	ok := s.do(w, r, func(ctx context.Context, e *callgate.Engine) (err error) {
		g, err = e.Graph(ctx, id)
		if run := e.Status(ctx).Run; run != nil && run.GraphID == id {
			current = run.NodeID
		}
		return err
	})
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, graph.GenerateMermaid(g, graph.OverlayFor(g, current)))
		return
	}
	writeJSON(w, http.StatusOK, compiler.Decompile(g))
}

// ListWindows handles the GET /windows request.
func (s *Server) ListWindows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.windows.List())
}

// OpenWindow handles the PUT /windows/{name} request.
func (s *Server) OpenWindow(w http.ResponseWriter, r *http.Request) {
	s.windows.Open(chi.URLParam(r, "name"))
	w.WriteHeader(http.StatusNoContent)
}

// CloseWindow handles the DELETE /windows/{name} request.
func (s *Server) CloseWindow(w http.ResponseWriter, r *http.Request) {
	s.windows.Close(chi.URLParam(r, "name"))
	w.WriteHeader(http.StatusNoContent)
}
