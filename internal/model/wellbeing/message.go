package wellbeing

import "github.com/mindcare-ai/mindcare/backend/internal/analysis/emotion"

// InboundMessage is a single user turn submitted for classification.
type InboundMessage struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId,omitempty"`
}

// ClassificationResult is the {emotion, risk, reply} contract produced from
// the upstream classifier output.
type ClassificationResult struct {
	Emotion emotion.Label `json:"emotion"`
	Risk    RiskSet       `json:"risk"`
	Reply   string        `json:"reply"`
}

// HighRiskSignal is produced by the local phrase matcher. When IsHighRisk is
// set EscalationMessage is never empty.
type HighRiskSignal struct {
	IsHighRisk        bool   `json:"isHighRisk"`
	MatchedPhrase     string `json:"matchedPhrase,omitempty"`
	EscalationMessage string `json:"escalationMessage,omitempty"`
}

// ActivitySuggestion is a coping activity offered alongside a reply.
type ActivitySuggestion struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"durationSeconds"`
}

// Reply is what the pipeline hands back to the transport layer.
type Reply struct {
	SessionID  string              `json:"sessionId"`
	Emotion    emotion.Label       `json:"emotion"`
	Risk       RiskSet             `json:"risk"`
	Reply      string              `json:"reply"`
	Suggestion *ActivitySuggestion `json:"suggestion,omitempty"`
	Escalated  bool                `json:"escalated,omitempty"`
	Degraded   bool                `json:"degraded,omitempty"`
}
