package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jghoshh/wellspring/auth"
	"github.com/jghoshh/wellspring/tracker"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var (
	errBadRequest = errors.New("malformed request body")
	errTooLarge   = errors.New("request body too large")
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string            `json:"token"`
	Dashboard tracker.Dashboard `json:"dashboard"`
}

type journalRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tracker.Presets())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": user.Name, "email": user.Email})
}

// handleLogin verifies credentials, runs the login-time refresh and returns a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.auth.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	dashboard, err := s.tracker.Refresh(r.Context(), user.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, err := s.tokens.Sign(user.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Dashboard: dashboard})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.tracker.Dashboard(r.Context(), emailFrom(r))
	s.respond(w, http.StatusOK, d, err)
}

func (s *Server) handleWorkout(w http.ResponseWriter, r *http.Request) {
	var in tracker.WorkoutInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.tracker.CompleteWorkout(r.Context(), emailFrom(r), in)
	s.respond(w, http.StatusCreated, d, err)
}

func (s *Server) handleMeditation(w http.ResponseWriter, r *http.Request) {
	var in tracker.MeditationInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.tracker.CompleteMeditation(r.Context(), emailFrom(r), in)
	s.respond(w, http.StatusCreated, d, err)
}

func (s *Server) handleMood(w http.ResponseWriter, r *http.Request) {
	var in tracker.MoodInput
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.tracker.LogMood(r.Context(), emailFrom(r), in)
	s.respond(w, http.StatusCreated, d, err)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	var in journalRequest
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.tracker.SaveJournal(r.Context(), emailFrom(r), in.Text)
	s.respond(w, http.StatusCreated, d, err)
}

func (s *Server) handleListMoods(w http.ResponseWriter, r *http.Request) {
	moods, err := s.tracker.Moods(r.Context(), emailFrom(r))
	s.respond(w, http.StatusOK, moods, err)
}

func (s *Server) handleListJournals(w http.ResponseWriter, r *http.Request) {
	journals, err := s.tracker.Journals(r.Context(), emailFrom(r))
	s.respond(w, http.StatusOK, journals, err)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	d, err := s.tracker.SeedSampleData(r.Context(), emailFrom(r))
	s.respond(w, http.StatusOK, d, err)
}

func (s *Server) respond(w http.ResponseWriter, status int, body any, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, body)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", errTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrInvalidAge),
		errors.Is(err, tracker.ErrInvalidInput),
		errors.Is(err, tracker.ErrEmptyJournal):
		return http.StatusBadRequest
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", slog.Any("error", err))
		message = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
