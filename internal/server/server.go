package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/clipper/docs/swagger" // generated API docs
	"github.com/raysh454/clipper/internal/app"
	"github.com/raysh454/clipper/internal/clip"
	"github.com/raysh454/clipper/internal/cookies"
	"github.com/raysh454/clipper/internal/logging"
	"github.com/raysh454/clipper/internal/registry"
)

const healthMessage = "Clipper Service Ready"

// Server is the HTTP + WebSocket API surface for Clipper.
type Server struct {
	cfg          Config
	app          *app.Application
	orchestrator *app.Orchestrator
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer creates a new Server with its own Application.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AppConfig == nil {
		cfg.AppConfig = app.DefaultConfig()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = cfg.AppConfig.ListenAddr
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = cfg.AppConfig.StaticDir
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	a, err := app.NewApplication(cfg.AppConfig, logger, app.Options{
		Runner:       cfg.Runner,
		WatchCookies: cfg.Runner == nil,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:          cfg,
		app:          a,
		orchestrator: a.Orch,
		router:       chi.NewRouter(),
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Same open policy as the CORS middleware.
				return true
			},
		},
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/api/clip", s.optionsHandler("POST"))
	r.Options("/api/cookies-status", s.optionsHandler("GET"))
	r.Options("/api/update-cookies", s.optionsHandler("POST"))
	r.Options("/api/jobs", s.optionsHandler("GET"))
	r.Options("/api/jobs/{jobID}", s.optionsHandler("GET, DELETE"))

	r.Get("/health", s.handleHealth)

	// Clipping
	r.Post("/api/clip", s.handleClip)

	// Cookies
	r.Get("/api/cookies-status", s.handleCookiesStatus)
	r.Post("/api/update-cookies", s.handleUpdateCookies)

	// Jobs
	r.Get("/api/jobs", s.handleListJobs)
	r.Get("/api/jobs/{jobID}", s.handleGetJob)
	r.Delete("/api/jobs/{jobID}", s.handleCancelJob)

	// WebSocket for job progress
	r.Get("/ws/jobs/{jobID}", s.handleJobWS)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	if s.cfg.StaticDir != "" {
		r.Get("/*", s.staticHandler(s.cfg.StaticDir))
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Job-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// redactedBodies lists routes whose request bodies carry credentials.
var redactedBodies = map[string]bool{
	"/api/update-cookies": true,
}

const (
	maxRequestBody = 64 << 10
	maxCookiesBody = 4 << 20
)

func bodyLimit(path string) int64 {
	if path == "/api/update-cookies" {
		return maxCookiesBody
	}
	return maxRequestBody
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		r.Body = http.MaxBytesReader(w, r.Body, bodyLimit(r.URL.Path))
		if redactedBodies[r.URL.Path] {
			fields = append(fields, logging.Field{Key: "body", Value: "[redacted]"})
		} else if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		} else {
			fields = append(fields, logging.Field{Key: "body_error", Value: err.Error()})
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Start launches background maintenance (stale file sweeps, ledger pruning).
func (s *Server) Start(ctx context.Context) error {
	return s.app.Start(ctx)
}

// Close stops background work and releases the database and watcher.
func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.Shutdown(ctx); err != nil {
		s.logger.Warn("shutting down application", logging.Field{Key: "error", Value: err})
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // clips and websockets stream for minutes
	}
}

// Run serves HTTP until ctx is done, then drains in-flight requests for up
// to shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Close()

	srv := s.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", logging.Field{Key: "addr", Value: srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

// handleHealth godoc
// @Summary Liveness probe
// @Produce plain
// @Success 200 {string} string "Clipper Service Ready"
// @Router /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, healthMessage)
}

// Clipping

// handleClip godoc
// @Summary Clip a section of a video
// @Description Downloads the requested window as MP4 and streams it back as an attachment.
// @Accept json
// @Produce octet-stream
// @Param request body ClipRequest true "Video URL and time window"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 500 {object} VideoErrorResponse
// @Router /api/clip [post]
func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	var req clip.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("decoding clip body", logging.Field{Key: "error", Value: err.Error()})
		switch {
		case tooLarge(err):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, app.UserMessage(clip.ErrMissingURL))
			return
		case clip.IsValidation(err):
			writeError(w, http.StatusBadRequest, app.UserMessage(err))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := s.orchestrator.Clip(r.Context(), req)
	if err != nil {
		s.writeClipError(w, r, err)
		return
	}
	defer res.Cleanup()

	f, err := os.Open(res.Path)
	if err != nil {
		s.logger.Error("opening clip", logging.Field{Key: "job_id", Value: res.JobID}, logging.Field{Key: "error", Value: err.Error()})
		writeJSON(w, http.StatusInternalServerError, VideoErrorResponse{Error: "Error sending file", Details: err.Error()})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType(res.FileName))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.FileName}))
	w.Header().Set("X-Job-ID", res.JobID)
	http.ServeContent(w, r, res.FileName, time.Now(), f)

	s.logger.Info("sent clip", logging.Field{Key: "job_id", Value: res.JobID}, logging.Field{Key: "file", Value: res.FileName}, logging.Field{Key: "size", Value: res.Size})
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func contentType(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".mp4") {
		return "video/mp4"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) writeClipError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case clip.IsValidation(err), errors.Is(err, app.ErrInvalidJobID):
		writeError(w, http.StatusBadRequest, app.UserMessage(err))
	case errors.Is(err, app.ErrJobExists):
		writeError(w, http.StatusConflict, app.UserMessage(err))
	case r.Context().Err() != nil:
		s.logger.Info("client went away before the clip was ready", logging.Field{Key: "error", Value: err.Error()})
	case errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusInternalServerError, VideoErrorResponse{Error: "Clip was canceled.", Details: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, VideoErrorResponse{Error: app.UserMessage(err), Details: err.Error()})
	}
}

// Cookies

// handleCookiesStatus godoc
// @Summary Cookie file status
// @Produce json
// @Success 200 {object} cookies.Status
// @Failure 500 {object} ErrorResponse
// @Router /api/cookies-status [get]
func (s *Server) handleCookiesStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.app.Cookies.Status()
	if err != nil {
		s.logger.Warn("reading cookies status", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "Failed to read cookies status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleUpdateCookies godoc
// @Summary Replace the cookie file
// @Accept json
// @Produce json
// @Param request body UpdateCookiesRequest true "Netscape cookie file content"
// @Success 200 {object} UpdateCookiesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/update-cookies [post]
func (s *Server) handleUpdateCookies(w http.ResponseWriter, r *http.Request) {
	var body UpdateCookiesRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := s.app.Cookies.Write(body.Cookies); err != nil {
		if errors.Is(err, cookies.ErrEmptyCookies) {
			writeError(w, http.StatusBadRequest, "Cookies content is required")
			return
		}
		s.logger.Error("updating cookies", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "Failed to update cookies")
		return
	}
	writeJSON(w, http.StatusOK, UpdateCookiesResponse{Success: true, Message: "Cookies updated successfully"})
}

// Jobs (REST)

// handleListJobs godoc
// @Summary List recorded jobs, newest first
// @Produce json
// @Param limit query int false "Maximum number of jobs" default(50)
// @Success 200 {array} JobResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	jobs, err := s.app.Registry.ListJobs(r.Context(), limit)
	if err != nil {
		s.logger.Warn("listing jobs", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, s.jobResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetJob godoc
// @Summary Get one job
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} JobResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/jobs/{jobID} [get]
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := s.app.Registry.GetJob(r.Context(), jobID)
	if errors.Is(err, registry.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Warn("getting job", logging.Field{Key: "job_id", Value: jobID}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.jobResponse(*job))
}

// handleCancelJob godoc
// @Summary Cancel a running job
// @Param jobID path string true "Job ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/jobs/{jobID} [delete]
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.orchestrator.CancelJob(jobID) {
		writeError(w, http.StatusNotFound, "job not running")
		return
	}
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) jobResponse(j registry.Job) JobResponse {
	resp := JobResponse{Job: j}
	if live := s.orchestrator.GetJob(j.ID); live != nil {
		resp.Active = true
		resp.Status = live.Status
		resp.Percent = live.Percent
	}
	return resp
}

// WebSockets

// handleJobWS streams events of one job. Jobs that already finished get a
// single status event from the ledger.
func (s *Server) handleJobWS(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	events, unsubscribe, ok := s.orchestrator.Subscribe(jobID)
	if !ok {
		job, err := s.app.Registry.GetJob(r.Context(), jobID)
		if err != nil {
			_ = conn.WriteJSON(ErrorResponse{Error: "job not found"})
			return
		}
		_ = conn.WriteJSON(app.JobEvent{
			JobID:    job.ID,
			Type:     app.JobEventStatus,
			Status:   job.Status,
			Error:    job.Error,
			FileName: job.FileName,
			FileSize: job.FileSize,
		})
		return
	}
	defer unsubscribe()

	// Drain client frames so close messages are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, open := <-events:
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// Static front-end

func (s *Server) staticHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return func(w http.ResponseWriter, r *http.Request) {
		p := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(p); err != nil {
			http.ServeFile(w, r, index)
			return
		}
		files.ServeHTTP(w, r)
	}
}
