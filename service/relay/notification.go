package relay

import (
	"PMentor/module/mentor/model"
)

// Kind tags every outbound notification on the wire.
type Kind string

const (
	KindChatMessage        Kind = "CHAT_MESSAGE"
	KindUserStatus         Kind = "USER_STATUS"
	KindTypingIndicator    Kind = "TYPING_INDICATOR"
	KindReadReceipt        Kind = "MESSAGE_READ_RECEIPT"
	KindConnectionRequest  Kind = "CONNECTION_REQUEST"
	KindConnectionAccepted Kind = "CONNECTION_ACCEPTED"
)

// Notification is the closed set of payloads the relay emits. Variants carry
// display fields only.
type Notification interface {
	Kind() Kind
}

type ChatMessage struct {
	ID         string  `json:"id"`
	SenderID   string  `json:"senderId"`
	ReceiverID string  `json:"receiverId"`
	Content    string  `json:"content"`
	SentAt     string  `json:"sentAt"`
	SenderName *string `json:"senderName"`
}

type TypingIndicator struct {
	SenderID   string  `json:"senderId"`
	ReceiverID string  `json:"receiverId"`
	Typing     bool    `json:"typing"`
	SenderName *string `json:"senderName"`
}

type ReadReceipt struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
	ReadAt    string `json:"readAt"`
}

// PresenceChanged has a null lastSeen while online and the offline instant otherwise.
type PresenceChanged struct {
	UserID   string  `json:"userId"`
	Online   bool    `json:"online"`
	LastSeen *string `json:"lastSeen"`
}

type ConnectionRequest struct {
	model.ConnectionView
}

type ConnectionAccepted struct {
	model.ConnectionView
}

func (ChatMessage) Kind() Kind        { return KindChatMessage }
func (TypingIndicator) Kind() Kind    { return KindTypingIndicator }
func (ReadReceipt) Kind() Kind        { return KindReadReceipt }
func (PresenceChanged) Kind() Kind    { return KindUserStatus }
func (ConnectionRequest) Kind() Kind  { return KindConnectionRequest }
func (ConnectionAccepted) Kind() Kind { return KindConnectionAccepted }

// Envelope is the JSON body clients receive: {"type": KIND, "data": {...}}.
type Envelope struct {
	Type Kind         `json:"type"`
	Data Notification `json:"data"`
}

func Wrap(n Notification) Envelope { return Envelope{Type: n.Kind(), Data: n} }
