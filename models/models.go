package models

import (
	"encoding/json"
	"time"
)

// ActivityTime is a timestamp stored in the persisted blob as an ISO-8601 string or null.
// The zero value means "unset". Decoding never fails: null, missing, non-string or
// unparseable values all decode to the zero value.
type ActivityTime struct {
	time.Time
}

// NewActivityTime wraps t as an ActivityTime.
func NewActivityTime(t time.Time) ActivityTime {
	return ActivityTime{Time: t}
}

// IsSet reports whether the timestamp holds a value.
func (t ActivityTime) IsSet() bool {
	return !t.Time.IsZero()
}

// MarshalJSON encodes an unset timestamp as null.
func (t ActivityTime) MarshalJSON() ([]byte, error) {
	if !t.IsSet() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON decodes leniently; see ActivityTime.
func (t *ActivityTime) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}

	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, *raw)
	if err != nil {
		return nil
	}
	t.Time = parsed
	return nil
}

type User struct {
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	Age          int                `json:"age"`
	Password     string             `json:"password"`
	Workouts     []WorkoutRecord    `json:"workouts"`
	Meditations  []MeditationRecord `json:"meditations"`
	Moods        []MoodRecord       `json:"moods"`
	Journals     []JournalRecord    `json:"journals"`
	Streak       int                `json:"streak"`
	LastActivity ActivityTime       `json:"lastActivity"`
}

type WorkoutRecord struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name"`
	Duration int       `json:"duration"` // minutes
	Reps     int       `json:"reps"`
	Sets     int       `json:"sets"`
	Date     time.Time `json:"date"`
}

type MeditationRecord struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name"`
	Duration int       `json:"duration"` // minutes
	Type     string    `json:"type"`
	Date     time.Time `json:"date"`
}

type MoodRecord struct {
	ID    string    `json:"id,omitempty"`
	Mood  string    `json:"mood"`
	Emoji string    `json:"emoji"`
	Date  time.Time `json:"date"`
}

type JournalRecord struct {
	ID   string    `json:"id,omitempty"`
	Text string    `json:"text"`
	Date time.Time `json:"date"`
}

// Session binds the running application to a registered user.
type Session struct {
	Email string `json:"email"`
}

// NewUser returns a freshly registered user with empty logs, a zero streak and no last activity.
func NewUser(name, email string, age int, password string) User {
	return User{
		Name:        name,
		Email:       email,
		Age:         age,
		Password:    password,
		Workouts:    []WorkoutRecord{},
		Meditations: []MeditationRecord{},
		Moods:       []MoodRecord{},
		Journals:    []JournalRecord{},
		Streak:      0,
	}
}

// FindUser returns the index of the user with the given email, or -1.
func FindUser(users []User, email string) int {
	for i := range users {
		if users[i].Email == email {
			return i
		}
	}
	return -1
}
