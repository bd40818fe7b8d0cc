// Package server exposes the tracker as a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jghoshh/wellspring/auth"
	"github.com/jghoshh/wellspring/tracker"
)

type contextKey string

const emailKey contextKey = "email"

var errUnauthorized = errors.New("missing or invalid bearer token")

// Server wires HTTP routes to the auth and tracker services.
type Server struct {
	auth    *auth.Service
	tracker *tracker.Service
	tokens  *auth.TokenSigner
	metrics http.Handler
	logger  *slog.Logger
	router  *mux.Router
}

// New builds the router. metricsHandler may be nil, in which case /metrics is not served.
func New(authSvc *auth.Service, trackerSvc *tracker.Service, tokens *auth.TokenSigner, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		auth:    authSvc,
		tracker: trackerSvc,
		tokens:  tokens,
		metrics: metricsHandler,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/presets", s.handlePresets).Methods(http.MethodGet)

	user := api.NewRoute().Subrouter()
	user.Use(s.requireAuth)
	user.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	user.HandleFunc("/workouts", s.handleWorkout).Methods(http.MethodPost)
	user.HandleFunc("/meditations", s.handleMeditation).Methods(http.MethodPost)
	user.HandleFunc("/moods", s.handleMood).Methods(http.MethodPost)
	user.HandleFunc("/moods", s.handleListMoods).Methods(http.MethodGet)
	user.HandleFunc("/journals", s.handleJournal).Methods(http.MethodPost)
	user.HandleFunc("/journals", s.handleListJournals).Methods(http.MethodGet)
	user.HandleFunc("/sample", s.handleSample).Methods(http.MethodPost)
}

// Handler returns the router wrapped with recovery, CORS and access logging.
// Access logs go to accessLog when it is not nil.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})

	var h http.Handler = s.recoveryMiddleware(s.router)
	h = handlers.CORS(corsOrigins, corsMethods, corsHeaders)(h)
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return h
}

// Start serves on the host of serverURL until ctx is cancelled.
func (s *Server) Start(ctx context.Context, serverURL string, accessLog io.Writer) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.Handler(accessLog),
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", u.Host))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", slog.Any("panic", err), slog.String("path", r.URL.Path))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			s.writeError(w, errUnauthorized)
			return
		}

		email, err := s.tokens.Parse(token)
		if err != nil {
			s.logger.Debug("rejected bearer token", slog.Any("error", err))
			s.writeError(w, errUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), emailKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func emailFrom(r *http.Request) string {
	email, _ := r.Context().Value(emailKey).(string)
	return email
}
