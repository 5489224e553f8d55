// Package risk detects high-severity self-harm phrases locally, without
// consulting the upstream classifier.
package risk

import (
	"strings"

	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
)

// DefaultEscalationMessage is surfaced whenever a high-risk phrase matches.
const DefaultEscalationMessage = "I'm really sorry you're feeling this way. I can't provide emergency help, but please contact local emergency services or a trusted person right now."

// Tag is added to the risk set of every escalated message.
const Tag = "self-harm"

// DefaultPhrases are checked in order; the first contained phrase is reported.
var DefaultPhrases = []string{
	"i want to die",
	"kill myself",
	"i'm going to kill myself",
	"no reason to live",
	"i can't go on",
	"i want to end it",
	"end my life",
	"better off dead",
	"suicide",
}

// Matcher holds a normalized, ordered phrase list. Safe for concurrent use.
type Matcher struct {
	phrases    []string
	normalized []string
	message    string
}

// NewMatcher builds a matcher. Empty phrases or message fall back to the defaults.
func NewMatcher(phrases []string, message string) *Matcher {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultEscalationMessage
	}

	m := &Matcher{message: message}
	for _, phrase := range phrases {
		n := Normalize(phrase)
		if n == "" {
			continue
		}
		m.phrases = append(m.phrases, phrase)
		m.normalized = append(m.normalized, n)
	}
	return m
}

// Detect reports the first high-risk phrase contained in text.
func (m *Matcher) Detect(text string) wellbeing.HighRiskSignal {
	normalized := Normalize(text)
	if normalized == "" {
		return wellbeing.HighRiskSignal{}
	}
	for i, phrase := range m.normalized {
		if strings.Contains(normalized, phrase) {
			return wellbeing.HighRiskSignal{
				IsHighRisk:        true,
				MatchedPhrase:     m.phrases[i],
				EscalationMessage: m.message,
			}
		}
	}
	return wellbeing.HighRiskSignal{}
}

// Normalize lower-cases s, replaces every character outside [a-z0-9] and
// whitespace with a space and collapses whitespace runs.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
