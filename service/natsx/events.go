package natsx

import (
	"context"
	"encoding/json"

	"PMentor/logger"
	"PMentor/module/mentor/model"
	"PMentor/service/relay"

	"go.uber.org/zap"
)

// ===== 领域事件 =====
// 外部 CRUD 服务写库成功后发到 <prefix>.<biz>，这里转给 Relay 推送

const (
	BizMessageSent       = "message.sent"
	BizMessageRead       = "message.read"
	BizTyping            = "typing"
	BizConnectionChanged = "connection.changed"
)

type EventRelay interface {
	RelayChatMessage(ctx context.Context, m *model.Message) relay.Outcome
	RelayReadReceipt(ctx context.Context, m *model.Message, readerID string) relay.Outcome
	RelayTyping(ctx context.Context, ind relay.TypingIndicator) relay.Outcome
	RelayConnectionNotification(ctx context.Context, c *model.Connection) relay.Outcome
}

// Router is the part of Manager the feed needs.
type Router interface {
	RegisterRoute(r Route) error
	Subscribe(biz string, h Handler) error
}

type Feed struct {
	relay  EventRelay
	prefix string
	queue  string
}

func NewFeed(r EventRelay, prefix, queue string) *Feed {
	return &Feed{relay: r, prefix: prefix, queue: queue}
}

func (f *Feed) Subject(biz string) string {
	if f.prefix == "" {
		return biz
	}
	return f.prefix + "." + biz
}

func (f *Feed) Handlers() map[string]Handler {
	return map[string]Handler{
		BizMessageSent:       f.onMessageSent,
		BizMessageRead:       f.onMessageRead,
		BizTyping:            f.onTyping,
		BizConnectionChanged: f.onConnectionChanged,
	}
}

// Start registers one route per event and subscribes its handler.
func (f *Feed) Start(r Router) error {
	for biz, h := range f.Handlers() {
		if err := r.RegisterRoute(Route{Biz: biz, Subject: f.Subject(biz), Queue: f.queue}); err != nil {
			return err
		}
		if err := r.Subscribe(biz, h); err != nil {
			return err
		}
		logger.Info("[feed] subscribed", zap.String("subject", f.Subject(biz)), zap.String("queue", f.queue))
	}
	return nil
}

// decode drops malformed payloads: they are logged and acknowledged.
func decode(msg Message, v any, valid func() bool) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		logger.Warn("[feed] malformed payload dropped", zap.String("subject", msg.Subject),
			zap.String("data", logger.Preview(string(msg.Data), 100)), zap.Error(err))
		return false
	}
	if !valid() {
		logger.Warn("[feed] incomplete payload dropped", zap.String("subject", msg.Subject),
			zap.String("data", logger.Preview(string(msg.Data), 100)))
		return false
	}
	return true
}

func (f *Feed) onMessageSent(ctx context.Context, msg Message) error {
	var m model.Message
	if !decode(msg, &m, func() bool { return m.ID != "" && m.SenderID != "" && m.ReceiverID != "" }) {
		return nil
	}
	return f.relay.RelayChatMessage(ctx, &m).Err()
}

// message.read 载荷是已读后的消息；readerId 缺省为接收方
func (f *Feed) onMessageRead(ctx context.Context, msg Message) error {
	var ev struct {
		model.Message
		ReaderID string `json:"readerId"`
	}
	if !decode(msg, &ev, func() bool { return ev.ID != "" && ev.SenderID != "" }) {
		return nil
	}
	reader := ev.ReaderID
	if reader == "" {
		reader = ev.ReceiverID
	}
	return f.relay.RelayReadReceipt(ctx, &ev.Message, reader).Err()
}

func (f *Feed) onTyping(ctx context.Context, msg Message) error {
	var ind relay.TypingIndicator
	if !decode(msg, &ind, func() bool { return ind.SenderID != "" && ind.ReceiverID != "" }) {
		return nil
	}
	return f.relay.RelayTyping(ctx, ind).Err()
}

func (f *Feed) onConnectionChanged(ctx context.Context, msg Message) error {
	var c model.Connection
	if !decode(msg, &c, func() bool { return c.ID != "" && c.RequesterID != "" && c.TargetID != "" && c.Status != "" }) {
		return nil
	}
	return f.relay.RelayConnectionNotification(ctx, &c).Err()
}
