package chat

import (
	"context"
	"time"

	"PMentor/logger"
	"PMentor/service/relay"

	"go.uber.org/zap"
)

// SessionRegistry is the write half of the presence registry.
type SessionRegistry interface {
	MarkOnline(userID string) time.Time
	MarkOffline(userID string) (time.Time, bool)
}

type PresenceRelay interface {
	RelayPresenceChange(ctx context.Context, userID string, online bool) relay.Outcome
}

// Lifecycle turns connection open/close into registry updates and presence
// broadcasts. Anonymous connections never touch either.
type Lifecycle struct {
	reg   SessionRegistry
	relay PresenceRelay
}

func NewLifecycle(reg SessionRegistry, r PresenceRelay) *Lifecycle {
	return &Lifecycle{reg: reg, relay: r}
}

// Connected runs after the gate bound an identity to w.
func (l *Lifecycle) Connected(ctx context.Context, w *WsConn) {
	id, ok := w.Identity()
	if !ok {
		return
	}
	l.reg.MarkOnline(id.UserID)
	out := l.relay.RelayPresenceChange(ctx, id.UserID, true)
	logger.Info("[lifecycle] online", zap.String("userId", id.UserID), zap.String("snowID", w.SnowID), zap.Int("delivered", out.Delivered()))
}

// Closed runs once per connection, whatever ended it.
func (l *Lifecycle) Closed(ctx context.Context, w *WsConn) {
	if !w.offline.CompareAndSwap(false, true) {
		return
	}
	id, ok := w.Identity()
	if !ok {
		logger.Debug("[lifecycle] anonymous connection closed", zap.String("snowID", w.SnowID))
		return
	}
	l.reg.MarkOffline(id.UserID)
	out := l.relay.RelayPresenceChange(ctx, id.UserID, false)
	logger.Info("[lifecycle] offline", zap.String("userId", id.UserID), zap.String("snowID", w.SnowID), zap.Int("delivered", out.Delivered()))
}
