package domain

import "time"

// ConversationSummary is the list-view projection of one conversation.
type ConversationSummary struct {
	CounterpartID     string    `json:"counterpartId"`
	CounterpartName   string    `json:"counterpartName"`
	LastMessageText   string    `json:"lastMessageText"`
	LastMessageFromMe bool      `json:"lastMessageFromMe"`
	UnreadCount       int       `json:"unreadCount"`
	LastActivityAt    time.Time `json:"lastActivityAt"`
}

// Eligibility is the server's answer to whether a chat may be opened.
type Eligibility struct {
	CanChat          bool `json:"canChat"`
	CreditRequired   bool `json:"creditRequired"`
	AlreadyInitiated bool `json:"alreadyInitiated"`
}

// UnreadCount is the payload of the unread counter endpoint.
type UnreadCount struct {
	UnreadCount int `json:"unreadCount"`
}
