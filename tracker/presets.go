package tracker

// WorkoutPreset is a built-in exercise offered by the presentation layers.
type WorkoutPreset struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Reps     int    `json:"reps"`
	Sets     int    `json:"sets"`
}

type MeditationPreset struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Type     string `json:"type"`
}

type MoodPreset struct {
	Mood  string `json:"mood"`
	Emoji string `json:"emoji"`
}

// PresetCatalog groups the built-in choices.
type PresetCatalog struct {
	Workouts    []WorkoutPreset    `json:"workouts"`
	Meditations []MeditationPreset `json:"meditations"`
	Moods       []MoodPreset       `json:"moods"`
}

// Presets returns the built-in workouts, meditations and moods.
func Presets() PresetCatalog {
	return PresetCatalog{
		Workouts: []WorkoutPreset{
			{Name: "Push-ups", Duration: 3, Reps: 15, Sets: 3},
			{Name: "Squats", Duration: 5, Reps: 20, Sets: 3},
			{Name: "Plank", Duration: 2, Reps: 1, Sets: 3},
			{Name: "Jumping Jacks", Duration: 4, Reps: 30, Sets: 2},
			{Name: "Burpees", Duration: 5, Reps: 10, Sets: 3},
		},
		Meditations: []MeditationPreset{
			{Name: "Morning Mindfulness", Duration: 10, Type: "mindfulness"},
			{Name: "Deep Breathing", Duration: 5, Type: "breathing"},
			{Name: "Body Scan", Duration: 15, Type: "body-scan"},
			{Name: "Sleep Relaxation", Duration: 20, Type: "sleep"},
		},
		Moods: []MoodPreset{
			{Mood: "Very happy", Emoji: "😄"},
			{Mood: "Happy", Emoji: "😊"},
			{Mood: "Neutral", Emoji: "😐"},
			{Mood: "Sad", Emoji: "😢"},
			{Mood: "Anxious", Emoji: "😰"},
		},
	}
}
