package reminder

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Slot is a fixed daily notification time.
type Slot struct {
	Key    string `yaml:"key"`
	Hour   int    `yaml:"hour"`
	Minute int    `yaml:"minute"`
	Title  string `yaml:"title"`
	Body   string `yaml:"body"`
}

// Message is one entry of the periodic reminder pool.
type Message struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// Catalog holds the daily slots and the periodic reminder pool.
type Catalog struct {
	Daily     []Slot    `yaml:"daily"`
	Reminders []Message `yaml:"reminders"`
}

// DefaultCatalog returns the built-in schedule: morning exercise, midday meditation
// and evening journal, plus five short wellness reminders.
func DefaultCatalog() Catalog {
	return Catalog{
		Daily: []Slot{
			{Key: "morning", Hour: 9, Minute: 0, Title: "Good morning!", Body: "Time for your morning exercise 🏋️"},
			{Key: "midday", Hour: 12, Minute: 0, Title: "A moment of calm", Body: "Take a moment to meditate 🧘"},
			{Key: "evening", Hour: 21, Minute: 0, Title: "Reflect on your day", Body: "Write in your journal before bed 📝"},
		},
		Reminders: []Message{
			{Title: "Time to meditate 🧘", Body: "Breathe deeply for 2 minutes to relax."},
			{Title: "Time to move 🏋️", Body: "Do a quick 1-2 minute stretch."},
			{Title: "Hydrate 💧", Body: "Drink a glass of water now."},
			{Title: "Quick check-in 😊", Body: "How are you feeling? Log your mood in the app."},
			{Title: "Mental break 😌", Body: "Close your eyes and rest for 60 seconds."},
		},
	}
}

// LoadCatalog reads a YAML catalog from path. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("error reading reminder catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("error decoding reminder catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks slot times, slot key uniqueness and that the reminder pool is not empty.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Daily))
	for _, s := range c.Daily {
		if s.Key == "" {
			return errors.New("daily slot without key")
		}
		if seen[s.Key] {
			return fmt.Errorf("duplicate daily slot %q", s.Key)
		}
		seen[s.Key] = true
		if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
			return fmt.Errorf("daily slot %q has invalid time %02d:%02d", s.Key, s.Hour, s.Minute)
		}
	}
	if len(c.Reminders) == 0 {
		return errors.New("reminder catalog has no reminders")
	}
	return nil
}
