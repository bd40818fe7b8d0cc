// Package tracker records workouts, meditations, moods and journal entries and
// keeps each user's streak current.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jghoshh/wellspring/core/storage"
	"github.com/jghoshh/wellspring/lib/clock"
	"github.com/jghoshh/wellspring/metrics"
	"github.com/jghoshh/wellspring/models"
	"github.com/jghoshh/wellspring/notify"
	"github.com/jghoshh/wellspring/streak"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmptyJournal = errors.New("please write something in your journal")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	KindWorkout    = "workout"
	KindMeditation = "meditation"
	KindMood       = "mood"
	KindJournal    = "journal"
)

// Notifier emits completion notifications. *reminder.Scheduler satisfies it.
type Notifier interface {
	Notify(n notify.Notification) bool
}

type WorkoutInput struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Reps     int    `json:"reps"`
	Sets     int    `json:"sets"`
}

type MeditationInput struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Type     string `json:"type"`
}

type MoodInput struct {
	Mood  string `json:"mood"`
	Emoji string `json:"emoji"`
}

// Service applies activity actions to the user directory. Every action loads the
// directory, appends one record, runs the streak engine once and saves the whole
// directory back.
type Service struct {
	users    storage.DirectoryStore
	notifier Notifier
	clock    clock.Clock
	metrics  metrics.Recorder
	logger   *slog.Logger
}

func NewService(users storage.DirectoryStore, notifier Notifier, clk clock.Clock, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, notifier: notifier, clock: clk, metrics: recorder, logger: logger}
}

// CompleteWorkout records a finished workout.
func (s *Service) CompleteWorkout(ctx context.Context, email string, in WorkoutInput) (Dashboard, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Duration <= 0 || in.Reps < 0 || in.Sets < 0 {
		return Dashboard{}, fmt.Errorf("%w: workout needs a name and a positive duration", ErrInvalidInput)
	}

	d, err := s.record(ctx, email, KindWorkout, func(u *models.User, now time.Time) {
		u.Workouts = append(u.Workouts, models.WorkoutRecord{
			ID:       uuid.NewString(),
			Name:     name,
			Duration: in.Duration,
			Reps:     in.Reps,
			Sets:     in.Sets,
			Date:     now,
		})
	})
	if err != nil {
		return Dashboard{}, err
	}

	s.notify(notify.Notification{
		Title: "Workout completed!",
		Body:  fmt.Sprintf("You completed %s. Keep it up!", name),
		Icon:  "🏋️",
	})
	return d, nil
}

// CompleteMeditation records a finished meditation session.
func (s *Service) CompleteMeditation(ctx context.Context, email string, in MeditationInput) (Dashboard, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Duration <= 0 {
		return Dashboard{}, fmt.Errorf("%w: meditation needs a name and a positive duration", ErrInvalidInput)
	}

	d, err := s.record(ctx, email, KindMeditation, func(u *models.User, now time.Time) {
		u.Meditations = append(u.Meditations, models.MeditationRecord{
			ID:       uuid.NewString(),
			Name:     name,
			Duration: in.Duration,
			Type:     strings.TrimSpace(in.Type),
			Date:     now,
		})
	})
	if err != nil {
		return Dashboard{}, err
	}

	s.notify(notify.Notification{
		Title: "Meditation completed",
		Body:  fmt.Sprintf("You completed %s. Your mind thanks you.", name),
		Icon:  "🧘",
	})
	return d, nil
}

// LogMood records how the user feels.
func (s *Service) LogMood(ctx context.Context, email string, in MoodInput) (Dashboard, error) {
	mood := strings.TrimSpace(in.Mood)
	if mood == "" {
		return Dashboard{}, fmt.Errorf("%w: mood is required", ErrInvalidInput)
	}

	d, err := s.record(ctx, email, KindMood, func(u *models.User, now time.Time) {
		u.Moods = append(u.Moods, models.MoodRecord{
			ID:    uuid.NewString(),
			Mood:  mood,
			Emoji: in.Emoji,
			Date:  now,
		})
	})
	if err != nil {
		return Dashboard{}, err
	}

	s.notify(notify.Notification{
		Title: "Mood logged",
		Body:  "You logged: " + mood,
		Icon:  in.Emoji,
	})
	return d, nil
}

// SaveJournal appends a journal entry. Blank text is rejected without touching state.
func (s *Service) SaveJournal(ctx context.Context, email, text string) (Dashboard, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Dashboard{}, ErrEmptyJournal
	}

	d, err := s.record(ctx, email, KindJournal, func(u *models.User, now time.Time) {
		u.Journals = append(u.Journals, models.JournalRecord{
			ID:   uuid.NewString(),
			Text: text,
			Date: now,
		})
	})
	if err != nil {
		return Dashboard{}, err
	}

	s.notify(notify.Notification{
		Title: "Journal updated",
		Body:  "You added a new journal entry.",
		Icon:  "📝",
	})
	return d, nil
}

// Refresh is the login-time dashboard refresh: it runs the streak engine once,
// persists the result and greets the user.
func (s *Service) Refresh(ctx context.Context, email string) (Dashboard, error) {
	d, err := s.record(ctx, email, "", nil)
	if err != nil {
		return Dashboard{}, err
	}

	s.notify(notify.Notification{
		Title: "Welcome back",
		Body:  fmt.Sprintf("Hi %s! Great to see you again.", d.Name),
	})
	return d, nil
}

// Now is the service clock's current time, for rendering relative dates.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Dashboard returns the current view-model without running the streak engine.
func (s *Service) Dashboard(ctx context.Context, email string) (Dashboard, error) {
	u, err := s.user(ctx, email)
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(*u, s.clock.Now()), nil
}

// Moods returns the user's full mood history, newest first.
func (s *Service) Moods(ctx context.Context, email string) ([]models.MoodRecord, error) {
	u, err := s.user(ctx, email)
	if err != nil {
		return nil, err
	}
	return lastReversed(u.Moods, len(u.Moods)), nil
}

// Journals returns the user's full journal, newest first.
func (s *Service) Journals(ctx context.Context, email string) ([]models.JournalRecord, error) {
	u, err := s.user(ctx, email)
	if err != nil {
		return nil, err
	}
	return lastReversed(u.Journals, len(u.Journals)), nil
}

// SeedSampleData fills the user's history with a few days of example activity
// and sets the streak to 5. It is a debugging aid and bypasses the streak engine.
func (s *Service) SeedSampleData(ctx context.Context, email string) (Dashboard, error) {
	now := s.clock.Now()
	sampleMoods := []MoodPreset{{Mood: "Happy", Emoji: "😊"}, {Mood: "Very happy", Emoji: "😄"}, {Mood: "Neutral", Emoji: "😐"}}

	var d Dashboard
	err := s.users.UpdateDirectory(ctx, func(users []models.User) ([]models.User, error) {
		idx := models.FindUser(users, email)
		if idx < 0 {
			return nil, ErrUserNotFound
		}
		u := &users[idx]

		for i := 0; i < 5; i++ {
			u.Workouts = append(u.Workouts, models.WorkoutRecord{
				ID: uuid.NewString(), Name: "Push-ups", Duration: 3, Date: daysAgo(now, i),
			})
		}
		for i := 0; i < 3; i++ {
			u.Meditations = append(u.Meditations, models.MeditationRecord{
				ID: uuid.NewString(), Name: "Morning Mindfulness", Duration: 10, Date: daysAgo(now, i),
			})
		}
		for i, m := range sampleMoods {
			u.Moods = append(u.Moods, models.MoodRecord{
				ID: uuid.NewString(), Mood: m.Mood, Emoji: m.Emoji, Date: daysAgo(now, i),
			})
		}
		u.Journals = append(u.Journals, models.JournalRecord{
			ID:   uuid.NewString(),
			Text: "Today was a great day. I finished my workout routine and feel full of energy.",
			Date: now,
		})
		u.Streak = 5
		u.LastActivity = models.NewActivityTime(now)

		d = BuildDashboard(*u, now)
		return users, nil
	})
	if err != nil {
		return Dashboard{}, err
	}

	s.logger.Info("sample data added", slog.String("email", email))
	return d, nil
}

func daysAgo(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// record runs one logical turn for email: append (optional), streak engine, save.
func (s *Service) record(ctx context.Context, email, kind string, appendRecord func(*models.User, time.Time)) (Dashboard, error) {
	now := s.clock.Now()

	var d Dashboard
	err := s.users.UpdateDirectory(ctx, func(users []models.User) ([]models.User, error) {
		idx := models.FindUser(users, email)
		if idx < 0 {
			return nil, ErrUserNotFound
		}
		u := &users[idx]

		if appendRecord != nil {
			appendRecord(u, now)
		}
		streak.Record(u, now)

		d = BuildDashboard(*u, now)
		return users, nil
	})
	if err != nil {
		return Dashboard{}, err
	}

	if kind != "" {
		s.metrics.ActivityRecorded(kind, d.Streak, now)
		s.logger.Info("activity recorded", slog.String("kind", kind), slog.String("email", email), slog.Int("streak", d.Streak))
	}
	return d, nil
}

func (s *Service) user(ctx context.Context, email string) (*models.User, error) {
	users, err := s.users.LoadDirectory(ctx)
	if err != nil {
		return nil, err
	}
	idx := models.FindUser(users, email)
	if idx < 0 {
		return nil, ErrUserNotFound
	}
	return &users[idx], nil
}

func (s *Service) notify(n notify.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(n)
}
