package tracker

import (
	"time"

	"github.com/jghoshh/wellspring/models"
)

const (
	recentLimit = 10
	weekWindow  = 7 * 24 * time.Hour
)

// Dashboard is the view-model rendered after every action.
type Dashboard struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`

	WorkoutCount    int `json:"workoutCount"`
	MeditationCount int `json:"meditationCount"`
	MoodCount       int `json:"moodCount"`
	JournalCount    int `json:"journalCount"`
	TotalMinutes    int `json:"totalMinutes"`

	WeeklyExerciseMinutes   int `json:"weeklyExerciseMinutes"`
	WeeklyMeditationMinutes int `json:"weeklyMeditationMinutes"`

	Streak       int                 `json:"streak"`
	LastActivity models.ActivityTime `json:"lastActivity"`

	// Most recent first.
	RecentMoods    []models.MoodRecord    `json:"recentMoods"`
	RecentJournals []models.JournalRecord `json:"recentJournals"`
}

// BuildDashboard derives the dashboard of u as of now. It does not touch the streak.
func BuildDashboard(u models.User, now time.Time) Dashboard {
	weekAgo := now.Add(-weekWindow)

	d := Dashboard{
		Name:            u.Name,
		Email:           u.Email,
		Age:             u.Age,
		WorkoutCount:    len(u.Workouts),
		MeditationCount: len(u.Meditations),
		MoodCount:       len(u.Moods),
		JournalCount:    len(u.Journals),
		Streak:          u.Streak,
		LastActivity:    u.LastActivity,
		RecentMoods:     lastReversed(u.Moods, recentLimit),
		RecentJournals:  lastReversed(u.Journals, recentLimit),
	}

	for _, w := range u.Workouts {
		d.TotalMinutes += w.Duration
		if w.Date.After(weekAgo) {
			d.WeeklyExerciseMinutes += w.Duration
		}
	}
	for _, m := range u.Meditations {
		d.TotalMinutes += m.Duration
		if m.Date.After(weekAgo) {
			d.WeeklyMeditationMinutes += m.Duration
		}
	}
	return d
}

// lastReversed returns up to n trailing elements of records, newest first.
func lastReversed[T any](records []T, n int) []T {
	if len(records) < n {
		n = len(records)
	}
	out := make([]T, 0, n)
	for i := len(records) - 1; i >= len(records)-n; i-- {
		out = append(out, records[i])
	}
	return out
}
