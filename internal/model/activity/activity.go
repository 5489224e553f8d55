package activity

import (
	"github.com/mindcare-ai/mindcare/backend/internal/analysis/emotion"
	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
)

// Entry binds a coping activity to the emotion it is suggested for.
type Entry struct {
	Emotion  emotion.Label                `json:"emotion"`
	Activity wellbeing.ActivitySuggestion `json:"activity"`
}

// Seed provides the default activity table. The neutral entry doubles as the
// fallback for any label without a dedicated activity.
func Seed() []Entry {
	return []Entry{
		{Emotion: emotion.Stressed, Activity: wellbeing.ActivitySuggestion{ID: "box_breathing", Title: "Box Breathing", DurationSeconds: 120}},
		{Emotion: emotion.Anxious, Activity: wellbeing.ActivitySuggestion{ID: "grounding_54321", Title: "5-4-3-2-1 Grounding", DurationSeconds: 180}},
		{Emotion: emotion.Depressed, Activity: wellbeing.ActivitySuggestion{ID: "journaling_prompt", Title: "Journaling Prompt", DurationSeconds: 300}},
		{Emotion: emotion.Sad, Activity: wellbeing.ActivitySuggestion{ID: "self_compassion_break", Title: "Self-Compassion Break", DurationSeconds: 180}},
		{Emotion: emotion.Angry, Activity: wellbeing.ActivitySuggestion{ID: "cooling_breath", Title: "Cooling Breath", DurationSeconds: 90}},
		{Emotion: emotion.Happy, Activity: wellbeing.ActivitySuggestion{ID: "mood_reinforce", Title: "Mood Reinforcement", DurationSeconds: 60}},
		{Emotion: emotion.Neutral, Activity: wellbeing.ActivitySuggestion{ID: "focus_reflection", Title: "Focus Reflection", DurationSeconds: 120}},
	}
}
