package activity

import (
	"github.com/mindcare-ai/mindcare/backend/internal/analysis/emotion"
	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
)

// Suggester maps an emotion to a coping activity.
type Suggester interface {
	Suggest(label emotion.Label) wellbeing.ActivitySuggestion
}

// fallback is used when a catalog is built without a neutral entry.
var fallback = wellbeing.ActivitySuggestion{ID: "focus_reflection", Title: "Focus Reflection", DurationSeconds: 120}

// Catalog is an immutable in-memory activity table.
type Catalog struct {
	entries []Entry
	byLabel map[emotion.Label]wellbeing.ActivitySuggestion
}

// NewCatalog returns a Catalog over entries. Entries with a non-positive
// duration are skipped; later entries for the same label are ignored.
func NewCatalog(entries []Entry) *Catalog {
	c := &Catalog{byLabel: make(map[emotion.Label]wellbeing.ActivitySuggestion, len(entries))}
	for _, entry := range entries {
		if entry.Activity.DurationSeconds <= 0 || entry.Activity.ID == "" {
			continue
		}
		if _, exists := c.byLabel[entry.Emotion]; exists {
			continue
		}
		c.byLabel[entry.Emotion] = entry.Activity
		c.entries = append(c.entries, entry)
	}
	if _, ok := c.byLabel[emotion.Neutral]; !ok {
		c.byLabel[emotion.Neutral] = fallback
		c.entries = append(c.entries, Entry{Emotion: emotion.Neutral, Activity: fallback})
	}
	return c
}

// Suggest returns the activity for label, or the neutral entry.
func (c *Catalog) Suggest(label emotion.Label) wellbeing.ActivitySuggestion {
	if s, ok := c.byLabel[label]; ok {
		return s
	}
	return c.byLabel[emotion.Neutral]
}

// List returns the catalog in insertion order.
func (c *Catalog) List() []Entry {
	return append([]Entry(nil), c.entries...)
}
