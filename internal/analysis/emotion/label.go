package emotion

import "strings"

// Label is one of the emotion categories the classifier may report.
type Label string

const (
	Happy     Label = "happy"
	Sad       Label = "sad"
	Anxious   Label = "anxious"
	Stressed  Label = "stressed"
	Angry     Label = "angry"
	Depressed Label = "depressed"
	Neutral   Label = "neutral"
)

// Labels lists the closed label set in a stable order.
func Labels() []Label {
	return []Label{Happy, Sad, Anxious, Stressed, Angry, Depressed, Neutral}
}

// ParseLabel normalizes raw and reports whether it names a known label.
func ParseLabel(raw string) (Label, bool) {
	normalized := Label(strings.ToLower(strings.TrimSpace(raw)))
	switch normalized {
	case Happy, Sad, Anxious, Stressed, Angry, Depressed, Neutral:
		return normalized, true
	default:
		return "", false
	}
}

// Valid reports whether l belongs to the closed label set.
func (l Label) Valid() bool {
	_, ok := ParseLabel(string(l))
	return ok
}

func (l Label) String() string {
	return string(l)
}
