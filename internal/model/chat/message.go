package chat

import "time"

// Sender values.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message persists individual turns for the meeting transcript.
type Message struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Sender      string    `json:"role"`
	Participant string    `json:"participant,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}
