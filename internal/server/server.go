// Package server exposes the photo catalog and server-side galleries over
// HTTP. Each gallery is a pagination controller held in a session; clients
// page through it with POST /api/galleries/{id}/next.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/picsum-gallery/internal/version"
	"github.com/Sternrassler/picsum-gallery/pkg/client"
	"github.com/Sternrassler/picsum-gallery/pkg/metrics"
	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
	"github.com/Sternrassler/picsum-gallery/pkg/photo"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "picsum_http_requests_total",
		Help: "Gallery API requests by route and status",
	}, []string{"route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "picsum_http_request_duration_seconds",
		Help:    "Gallery API request duration by route",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"route"})
)

// PhotoService is the part of the photo client the server needs.
type PhotoService interface {
	pagination.Fetcher
	GetPhoto(ctx context.Context, id string) (photo.Photo, error)
}

// Config holds server settings.
type Config struct {
	Addr string
	// Links renders image URLs in responses.
	Links photo.Links
	// Gallery configures every controller the server creates.
	Gallery pagination.Config
	// SessionIdleTTL closes galleries nobody touched for this long.
	// Zero keeps them until DELETE.
	SessionIdleTTL time.Duration
	// SweepInterval is how often idle galleries are looked for.
	SweepInterval time.Duration
}

// Server is the gallery HTTP service.
type Server struct {
	httpServer *http.Server
	photos     PhotoService
	sessions   *SessionStore
	config     Config
	logger     zerolog.Logger
	mux        *http.ServeMux

	sweepCtx  context.Context
	stopSweep context.CancelFunc
}

// New creates a server. It does not listen until Start.
func New(cfg Config, photos PhotoService, logger zerolog.Logger) *Server {
	if cfg.Gallery.PageSize <= 0 {
		cfg.Gallery.PageSize = pagination.DefaultPageSize
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	mux := http.NewServeMux()
	s := &Server{
		photos:   photos,
		sessions: NewSessionStore(cfg.SessionIdleTTL),
		config:   cfg,
		logger:   logger,
		mux:      mux,
	}
	s.sweepCtx, s.stopSweep = context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())

	s.mux.HandleFunc("GET /api/photos", s.handleListPhotos)
	s.mux.HandleFunc("GET /api/photos/{id}", s.handleGetPhoto)

	s.mux.HandleFunc("POST /api/galleries", s.handleCreateGallery)
	s.mux.HandleFunc("GET /api/galleries/{id}", s.handleGetGallery)
	s.mux.HandleFunc("POST /api/galleries/{id}/next", s.handleNextPage)
	s.mux.HandleFunc("POST /api/galleries/{id}/refresh", s.handleRefresh)
	s.mux.HandleFunc("DELETE /api/galleries/{id}", s.handleDeleteGallery)
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.instrument(s.mux)
}

// Sessions returns the gallery session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Start sweeps idle galleries and serves HTTP until Shutdown.
func (s *Server) Start() error {
	go func() {
		s.sessions.Run(s.sweepCtx, s.config.SweepInterval, func(ids []string) {
			for _, id := range ids {
				s.logger.Info().Str("gallery_id", id).Msg("Closed idle gallery")
			}
		})
	}()

	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for active ones and closes
// every open gallery.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Int("galleries", s.sessions.Len()).Msg("Shutting down HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.stopSweep()
	s.sessions.CloseAll()
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

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Gallery-Version", version.Short())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "picsum-gallery",
		"version":   version.Map(),
		"galleries": s.sessions.Len(),
	})
}

// PhotoPage is the body of GET /api/photos.
type PhotoPage struct {
	Page    int          `json:"page"`
	Limit   int          `json:"limit"`
	HasMore bool         `json:"has_more"`
	Items   []photo.View `json:"items"`
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	limit, err := intParam(r, "limit", s.config.Gallery.PageSize)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	photos, err := s.photos.ListPhotos(r.Context(), page, limit)
	if err != nil {
		s.logFailure(err, r)
		WriteError(w, err, r.URL.Path)
		return
	}

	writeJSON(w, http.StatusOK, PhotoPage{
		Page:    page,
		Limit:   limit,
		HasMore: len(photos) >= limit,
		Items:   s.config.Links.Views(photos),
	})
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	p, err := s.photos.GetPhoto(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logFailure(err, r)
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, s.config.Links.View(p))
}

// GalleryView is the body of every gallery endpoint.
type GalleryView struct {
	ID         string            `json:"id"`
	Created    time.Time         `json:"created"`
	Status     pagination.Status `json:"status"`
	Page       int               `json:"page"`
	HasMore    bool              `json:"has_more"`
	IsFetching bool              `json:"is_fetching"`
	Message    string            `json:"message,omitempty"`
	Count      int               `json:"count"`
	Items      []photo.View      `json:"items"`
}

func (s *Server) galleryView(session *Session) GalleryView {
	snap := session.Gallery.Snapshot()
	return GalleryView{
		ID:         session.ID,
		Created:    session.Created,
		Status:     snap.Status,
		Page:       snap.Page,
		HasMore:    snap.HasMore,
		IsFetching: snap.IsFetching,
		Message:    snap.Message,
		Count:      len(snap.Items),
		Items:      s.config.Links.Views(snap.Items),
	}
}

// handleCreateGallery opens a gallery and loads its first page. A failed
// first load still creates the gallery; the error shows in its status and
// the client retries with next.
func (s *Server) handleCreateGallery(w http.ResponseWriter, r *http.Request) {
	session := s.sessions.Create(pagination.New(s.photos, s.config.Gallery))
	s.logger.Info().Str("gallery_id", session.ID).Msg("Gallery created")

	if err := session.Gallery.LoadNext(r.Context()); err != nil {
		s.logFailure(err, r)
	}

	w.Header().Set("Location", "/api/galleries/"+session.ID)
	writeJSON(w, http.StatusCreated, s.galleryView(session))
}

func (s *Server) handleGetGallery(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.galleryView(session))
}

func (s *Server) handleNextPage(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := session.Gallery.LoadNext(r.Context()); err != nil {
		s.logFailure(err, r)
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, s.galleryView(session))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := session.Gallery.Refresh(r.Context()); err != nil {
		s.logFailure(err, r)
		WriteError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, s.galleryView(session))
}

func (s *Server) handleDeleteGallery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.sessions.Delete(id) {
		NotFound(w, fmt.Sprintf("gallery %q not found", id), r.URL.Path)
		return
	}
	s.logger.Info().Str("gallery_id", id).Msg("Gallery closed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := r.PathValue("id")
	session, ok := s.sessions.Get(id)
	if !ok {
		NotFound(w, fmt.Sprintf("gallery %q not found", id), r.URL.Path)
	}
	return session, ok
}

func (s *Server) logFailure(err error, r *http.Request) {
	event := s.logger.Warn()
	if errors.Is(err, client.ErrInvalidArgument) || errors.Is(err, client.ErrNotFound) {
		event = s.logger.Debug()
	}
	event.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer (got %q)", name, raw)
	}
	return n, nil
}
