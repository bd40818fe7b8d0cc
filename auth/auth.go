// Package auth handles registration, login and the current session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jghoshh/wellspring/core/storage"
	"github.com/jghoshh/wellspring/lib/utils"
	"github.com/jghoshh/wellspring/models"
)

var (
	ErrMissingFields      = errors.New("please fill in all fields")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidAge         = errors.New("age must be a positive whole number")
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotSignedIn        = errors.New("no user is signed in")
)

// RegisterInput carries the fields of the registration form.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Age      int    `json:"age"`
	Password string `json:"password"`
}

// Service registers users and binds the session to one of them.
type Service struct {
	users    storage.DirectoryStore
	sessions storage.SessionStore
	verifier CredentialVerifier
	logger   *slog.Logger
}

func NewService(users storage.DirectoryStore, sessions storage.SessionStore, verifier CredentialVerifier, logger *slog.Logger) *Service {
	if verifier == nil {
		verifier = PlaintextVerifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, sessions: sessions, verifier: verifier, logger: logger}
}

// ParseAge parses the age field of a text form.
func ParseAge(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrMissingFields
	}
	age, err := strconv.Atoi(raw)
	if err != nil || age <= 0 {
		return 0, ErrInvalidAge
	}
	return age, nil
}

// Register adds a new user to the directory. The new user starts with an empty
// history, a zero streak and no last activity. A duplicate email leaves the
// directory untouched.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	if name == "" || email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if !utils.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}
	if in.Age <= 0 {
		return nil, ErrInvalidAge
	}

	stored, err := s.verifier.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := models.NewUser(name, email, in.Age, stored)

	err = s.users.UpdateDirectory(ctx, func(users []models.User) ([]models.User, error) {
		if models.FindUser(users, email) >= 0 {
			return nil, ErrDuplicateEmail
		}
		return append(users, user), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("email", email))
	return &user, nil
}

// Authenticate checks credentials without touching the session.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}

	users, err := s.users.LoadDirectory(ctx)
	if err != nil {
		return nil, err
	}

	idx := models.FindUser(users, email)
	if idx < 0 || !s.verifier.Verify(users[idx].Password, password) {
		s.logger.Debug("authentication failed", slog.String("email", email))
		return nil, ErrInvalidCredentials
	}
	return &users[idx], nil
}

// Login authenticates and binds the session to the user.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.SaveSession(ctx, models.Session{Email: user.Email}); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("user signed in", slog.String("email", user.Email))
	return user, nil
}

// Logout clears the session.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.sessions.ClearSession(ctx); err != nil {
		return err
	}
	s.logger.Info("user signed out")
	return nil
}

// CurrentUser restores the user bound to the session. It returns nil when there is
// no session or the session email no longer resolves to a user.
func (s *Service) CurrentUser(ctx context.Context) (*models.User, error) {
	session, err := s.sessions.LoadSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	users, err := s.users.LoadDirectory(ctx)
	if err != nil {
		return nil, err
	}
	idx := models.FindUser(users, session.Email)
	if idx < 0 {
		return nil, nil
	}
	return &users[idx], nil
}
