package handlers

import (
	"context"
	"time"

	"PMentor/service/chat"
	"PMentor/service/relay"
)

type Presence interface {
	MarkOnline(userID string) time.Time
}

type PresenceRelay interface {
	RelayPresenceChange(ctx context.Context, userID string, online bool) relay.Outcome
}

// Replier writes straight to one user's private queue.
type Replier interface {
	SendToUser(userID, channel string, payload any) error
}

const (
	statusUpdated = "Status updated"
	statusError   = "Error"
)

// StatusHandler serves /app/user.status: the caller re-announces itself online.
type StatusHandler struct {
	reg   Presence
	relay PresenceRelay
	reply Replier
}

func NewStatusHandler(reg Presence, r PresenceRelay, reply Replier) chat.Handler {
	return &StatusHandler{reg: reg, relay: r, reply: reply}
}

func (h *StatusHandler) Destination() string { return DestUserStatus }

func (h *StatusHandler) Handle(ctx context.Context, w *chat.WsConn, _ *chat.Frame) error {
	id, err := requireIdentity(w, DestUserStatus)
	if err != nil {
		return err
	}
	h.reg.MarkOnline(id.UserID)
	answer := statusUpdated
	if out := h.relay.RelayPresenceChange(ctx, id.UserID, true); out.Err() != nil {
		answer = statusError
	}
	return h.reply.SendToUser(id.UserID, relay.QueueStatus, answer)
}
