package model

import "time"

// TimeLayout is the wire format for every timestamp clients see.
const TimeLayout = "2006-01-02T15:04:05"

func FormatTime(t time.Time) string { return t.Format(TimeLayout) }

// FormatTimePtr formats t, or returns nil for a nil or zero time.
func FormatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

type Message struct {
	ID         string    `json:"id" bson:"_id"`
	SenderID   string    `json:"senderId" bson:"sender_id"`
	ReceiverID string    `json:"receiverId" bson:"receiver_id"`
	Content    string    `json:"content" bson:"content"`
	SentAt     time.Time `json:"sentAt" bson:"sent_at"`
	IsRead     bool      `json:"isRead" bson:"is_read"`
}

type MessageView struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	SentAt     string `json:"sentAt"`
	IsRead     bool   `json:"isRead"`
}

func (m *Message) View() MessageView {
	return MessageView{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		SentAt:     FormatTime(m.SentAt),
		IsRead:     m.IsRead,
	}
}
