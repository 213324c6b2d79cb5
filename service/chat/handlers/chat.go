package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"PMentor/logger"
	"PMentor/module/mentor/model"
	"PMentor/module/mentor/service"
	"PMentor/service/chat"
	"PMentor/service/relay"
	"PMentor/tools/errs"

	"go.uber.org/zap"
)

const (
	DestChatSend     = relay.AppPrefix + "/chat.send"
	DestChatTyping   = relay.AppPrefix + "/chat.typing"
	DestChatMarkRead = relay.AppPrefix + "/chat.markRead"
	DestUserStatus   = relay.AppPrefix + "/user.status"
)

// Messages is the command layer used by the chat handlers.
type Messages interface {
	Send(ctx context.Context, sender model.Identity, req service.SendMessageReq) (*model.Message, error)
	MarkRead(ctx context.Context, reader model.Identity, messageID string) (*model.Message, error)
}

type TypingRelay interface {
	RelayTyping(ctx context.Context, ind relay.TypingIndicator) relay.Outcome
}

// requireIdentity fails closed for anonymous connections.
func requireIdentity(w *chat.WsConn, dest string) (model.Identity, error) {
	id, ok := w.Identity()
	if !ok {
		return model.Identity{}, errs.ErrAuthorization.WrapMsg("no identity bound", "destination", dest, "snowID", w.SnowID)
	}
	return id, nil
}

// ===== /app/chat.send =====

type SendHandler struct{ msgs Messages }

func NewSendHandler(msgs Messages) chat.Handler { return &SendHandler{msgs: msgs} }

func (h *SendHandler) Destination() string { return DestChatSend }

func (h *SendHandler) Handle(ctx context.Context, w *chat.WsConn, f *chat.Frame) error {
	id, err := requireIdentity(w, DestChatSend)
	if err != nil {
		return err
	}
	var req service.SendMessageReq
	if err := json.Unmarshal(f.Body, &req); err != nil {
		return errs.ErrArgs.WrapMsg("bad chat.send body", "err", err)
	}
	logger.Info("[chat.send] received", zap.String("from", id.UserID), zap.String("to", req.ReceiverID))
	// relay happens inside Send, after the message is stored
	_, err = h.msgs.Send(ctx, id, req)
	return err
}

// ===== /app/chat.typing =====

type TypingHandler struct{ relay TypingRelay }

func NewTypingHandler(r TypingRelay) chat.Handler { return &TypingHandler{relay: r} }

func (h *TypingHandler) Destination() string { return DestChatTyping }

func (h *TypingHandler) Handle(ctx context.Context, w *chat.WsConn, f *chat.Frame) error {
	id, err := requireIdentity(w, DestChatTyping)
	if err != nil {
		return err
	}
	var ind relay.TypingIndicator
	if err := json.Unmarshal(f.Body, &ind); err != nil {
		return errs.ErrArgs.WrapMsg("bad chat.typing body", "err", err)
	}
	if ind.ReceiverID == "" {
		return errs.ErrArgs.WrapMsg("receiverId required")
	}
	// 发送方以连接身份为准，客户端填的值一律覆盖
	ind.SenderID = id.UserID
	name := id.Name()
	ind.SenderName = &name
	if name == "" {
		ind.SenderName = nil
	}
	h.relay.RelayTyping(ctx, ind)
	return nil
}

// ===== /app/chat.markRead =====

type MarkReadHandler struct{ msgs Messages }

func NewMarkReadHandler(msgs Messages) chat.Handler { return &MarkReadHandler{msgs: msgs} }

func (h *MarkReadHandler) Destination() string { return DestChatMarkRead }

// Handle accepts either a bare message id ("..." or unquoted) or {"messageId": "..."}.
func (h *MarkReadHandler) Handle(ctx context.Context, w *chat.WsConn, f *chat.Frame) error {
	id, err := requireIdentity(w, DestChatMarkRead)
	if err != nil {
		return err
	}
	messageID := strings.TrimSpace(f.BodyText())
	var obj struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(f.Body, &obj); err == nil && obj.MessageID != "" {
		messageID = obj.MessageID
	}
	_, err = h.msgs.MarkRead(ctx, id, messageID)
	return err
}
