package domain

import "time"

// MessageKind classifies a chat message payload. Only text is exchanged today.
type MessageKind string

const (
	KindText MessageKind = "text"
)

// MessageStatus is the local reconciliation state of a message.
type MessageStatus string

const (
	// StatusPending marks an optimistic local send awaiting server confirmation.
	StatusPending MessageStatus = "pending"
	// StatusConfirmed marks a message carrying a durable server id.
	StatusConfirmed MessageStatus = "confirmed"
	// StatusFailed marks a pending send whose confirmation did not arrive in time.
	StatusFailed MessageStatus = "failed"
)

// Message is a single chat message between the local user and a counterpart.
type Message struct {
	ID         string        `json:"id,omitempty"`
	TempID     string        `json:"tempId,omitempty"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId"`
	Body       string        `json:"message"`
	Kind       MessageKind   `json:"messageType,omitempty"`
	Read       bool          `json:"isRead,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	Status     MessageStatus `json:"-"`
}

// Identity returns the durable id when present, otherwise the correlation token.
func (m Message) Identity() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}

// IsPending reports whether the message still awaits confirmation.
func (m Message) IsPending() bool {
	return m.Status == StatusPending
}

// IsConfirmed reports whether the message carries a durable id.
func (m Message) IsConfirmed() bool {
	return m.Status == StatusConfirmed
}

// FromMe reports whether userID authored the message.
func (m Message) FromMe(userID string) bool {
	return m.SenderID == userID
}

// HistoryPage is one page of conversation history, oldest first.
type HistoryPage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}
