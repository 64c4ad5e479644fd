package domain

import "time"

// Message represents one chat message as delivered by the server, either
// over the live channel or from a history fetch. Stream order is arrival
// order, not timestamp order.
type Message struct {
	ID         string    `json:"id,omitempty"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Room       string    `json:"room,omitempty"`
}

// Identity returns a stable dedup key: the server-assigned id when present,
// otherwise sender plus timestamp plus content.
func (m Message) Identity() string {
	if m.ID != "" {
		return m.ID
	}
	return m.SenderName + "|" + m.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + m.Content
}
