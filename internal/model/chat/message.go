package chat

import "time"

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message persists individual turns for the session dashboard.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Emotion   string    `json:"emotion,omitempty"`
	Risk      []string  `json:"risk,omitempty"`
	Escalated bool      `json:"escalated,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
