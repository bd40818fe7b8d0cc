package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/jghoshh/wellspring/lib/utils"
	"github.com/jghoshh/wellspring/models"
	"github.com/jghoshh/wellspring/notify"
	"github.com/jghoshh/wellspring/reminder"
	"github.com/jghoshh/wellspring/tracker"
)

const journalPreview = 60

func streakLabel(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func renderDashboard(d tracker.Dashboard, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hello, %s!\n\n", d.Name)
	fmt.Fprintf(&b, "  Streak:              %s\n", streakLabel(d.Streak))
	if d.LastActivity.IsSet() {
		fmt.Fprintf(&b, "  Last activity:       %s\n", utils.FormatRelative(d.LastActivity.Time, now))
	}
	fmt.Fprintf(&b, "  Workouts:            %d\n", d.WorkoutCount)
	fmt.Fprintf(&b, "  Meditations:         %d\n", d.MeditationCount)
	fmt.Fprintf(&b, "  Moods logged:        %d\n", d.MoodCount)
	fmt.Fprintf(&b, "  Journal entries:     %d\n", d.JournalCount)
	fmt.Fprintf(&b, "  Total minutes:       %d\n", d.TotalMinutes)
	fmt.Fprintf(&b, "  Exercise this week:  %d min\n", d.WeeklyExerciseMinutes)
	fmt.Fprintf(&b, "  Meditation this week: %d min\n", d.WeeklyMeditationMinutes)

	if len(d.RecentMoods) > 0 {
		b.WriteString("\nRecent moods:\n")
		writeMoods(&b, d.RecentMoods, now)
	}
	return b.String()
}

func renderMoods(moods []models.MoodRecord, now time.Time) string {
	if len(moods) == 0 {
		return "No moods logged yet. Try 'mood'."
	}
	var b strings.Builder
	writeMoods(&b, moods, now)
	return b.String()
}

func writeMoods(b *strings.Builder, moods []models.MoodRecord, now time.Time) {
	for _, m := range moods {
		fmt.Fprintf(b, "  %s %-12s %s\n", m.Emoji, m.Mood, utils.FormatRelative(m.Date, now))
	}
}

func renderJournals(journals []models.JournalRecord, now time.Time) string {
	if len(journals) == 0 {
		return "Your journal is empty. Try 'journal'."
	}
	var b strings.Builder
	for _, j := range journals {
		fmt.Fprintf(&b, "  [%s] %s\n", utils.FormatRelative(j.Date, now), preview(j.Text, journalPreview))
	}
	return b.String()
}

// preview shortens text to at most limit runes on a single line.
func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func permissionMessage(p notify.Permission) string {
	switch p {
	case notify.PermissionGranted:
		return "Notifications are on."
	case notify.PermissionDenied:
		return "Notifications stay off."
	default:
		return "Notification permission was not answered."
	}
}

func toggleMessage(o reminder.ToggleOutcome) string {
	switch o {
	case reminder.ToggleEnabled:
		return "Notifications are on."
	case reminder.ToggleDisabled:
		return "Notifications are off."
	default:
		return "Asking for notification permission."
	}
}
