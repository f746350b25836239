package domain

// Socket event names exchanged with the chat service.
const (
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventMarkAsRead  = "mark_as_read"
	EventPing        = "ping"

	EventReceiveMessage = "receive_message"
	EventMessageSent    = "message_sent"
	EventUserTyping     = "user_typing"
	EventUserOnline     = "user_online"
	EventUserOffline    = "user_offline"
)

// Connection lifecycle events raised locally by the socket manager.
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventConnectError     = "connect_error"
	EventReconnectAttempt = "reconnect_attempt"
	EventReconnect        = "reconnect"
	EventReconnectFailed  = "reconnect_failed"
)

// SendMessagePayload is emitted for every optimistic send.
type SendMessagePayload struct {
	ReceiverID  string      `json:"receiverId"`
	Message     string      `json:"message"`
	MessageType MessageKind `json:"messageType"`
	TempID      string      `json:"tempId"`
}

// TypingPayload signals local typing intent to a counterpart.
type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

// QueueKey coalesces offline typing signals per receiver.
func (p TypingPayload) QueueKey() string { return EventTyping + ":" + p.ReceiverID }

// MarkAsReadPayload acknowledges messages received from SenderID.
type MarkAsReadPayload struct {
	SenderID string `json:"senderId"`
}

// QueueKey coalesces offline read receipts per sender.
func (p MarkAsReadPayload) QueueKey() string { return EventMarkAsRead + ":" + p.SenderID }

// MessageSentEvent confirms one of our own sends.
type MessageSentEvent struct {
	Message
	CreditDeducted bool `json:"creditDeducted,omitempty"`
}

// UserTypingEvent reports the remote user's typing state.
type UserTypingEvent struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// PresenceEvent carries user_online and user_offline notifications.
type PresenceEvent struct {
	UserID string `json:"userId"`
}

// DisconnectInfo is the payload of the local disconnect event.
type DisconnectInfo struct {
	Reason string `json:"reason"`
}

// ConnectErrorInfo is the payload of the local connect_error event.
type ConnectErrorInfo struct {
	Error string `json:"error"`
}

// ReconnectInfo is the payload of reconnect_attempt and reconnect.
type ReconnectInfo struct {
	Attempt int `json:"attempt"`
}
