package chat

import "time"

// Session captures one meeting's conversation.
type Session struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	CreatedAt time.Time `json:"createdAt"`
}

// Transcript is the document written when a meeting ends.
type Transcript struct {
	SessionID string    `json:"sessionId"`
	Room      string    `json:"room"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Items     []Message `json:"items"`
}
