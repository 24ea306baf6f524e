package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"tripcal/internal/config"
	appLog "tripcal/internal/log"
	"tripcal/internal/model"
	"tripcal/internal/store"
)

// Store is the persistence the HTTP API serves.
type Store interface {
	CreateItinerary(ctx context.Context, title, startDate, endDate string) (model.Itinerary, error)
	GetItinerary(ctx context.Context, id string) (model.Itinerary, error)
	ListItineraries(ctx context.Context) ([]model.Itinerary, error)
	UpdateItineraryDates(ctx context.Context, id, startDate, endDate string) error
	CreateEvent(ctx context.Context, itineraryID string, d model.EventDraft) (model.Event, error)
	UpdateEventTimes(ctx context.Context, itineraryID, eventID string, t model.EventTimes) error
	DeleteEvent(ctx context.Context, itineraryID, eventID string) error
	ListEvents(ctx context.Context, itineraryID string) ([]model.Event, error)
}

// Server provides the JSON API and the server-rendered calendar page.
type Server struct {
	cfg      *config.Config
	store    Store
	router   *mux.Router
	validate *validator.Validate
	now      func() time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithClock overrides the clock used to mark today's column.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st Store, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:      cfg,
		store:    st,
		router:   mux.NewRouter(),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the router wrapped in CORS and, when configured, basic auth.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(h)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than locking everyone out.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tripcal", charset="UTF-8"`)
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

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, st Store) error {
	s := NewServer(cfg, st)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/itineraries", s.handleListItineraries).Methods(http.MethodGet)
	api.HandleFunc("/itineraries", s.handleCreateItinerary).Methods(http.MethodPost)
	api.HandleFunc("/itineraries/{id}", s.handleGetItinerary).Methods(http.MethodGet)
	api.HandleFunc("/itineraries/{id}", s.handleUpdateItineraryDates).Methods(http.MethodPatch)
	api.HandleFunc("/itineraries/{id}/events", s.handleListEvents).Methods(http.MethodGet)
	api.HandleFunc("/itineraries/{id}/events", s.handleCreateEvent).Methods(http.MethodPost)
	api.HandleFunc("/itineraries/{id}/events/{eventId}", s.handleUpdateEventTimes).Methods(http.MethodPatch)
	api.HandleFunc("/itineraries/{id}/events/{eventId}", s.handleDeleteEvent).Methods(http.MethodDelete)
	api.HandleFunc("/itineraries/{id}/calendar", s.handleCalendarJSON).Methods(http.MethodGet)
	api.HandleFunc("/itineraries/{id}/calendar.ics", s.handleCalendarICS).Methods(http.MethodGet)

	r.HandleFunc("/itineraries/{id}/calendar", s.handleCalendarPage).Methods(http.MethodGet)

	r.Use(recoveryMiddleware, loggingMiddleware)
}

// handleHealth responds with 200 OK and a simple body.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		appLog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				appLog.Error("recovered from panic", errors.New("handler panic"), "path", r.URL.Path, "panic", v)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// resolveLocationOrLocal loads an IANA zone, falling back to time.Local.
func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
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

// writeStoreError maps store sentinels to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("store request failed", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
