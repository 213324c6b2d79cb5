package service

import (
	"context"
	"strings"
	"time"

	"PMentor/logger"
	"PMentor/module/mentor/model"
	"PMentor/module/mentor/store"
	"PMentor/tools/errs"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SendMessageReq struct {
	ReceiverID string `json:"receiverId" validate:"required,uuid"`
	Content    string `json:"content" validate:"required,max=4000"`
}

type MessageService struct {
	messages store.MessageStore
	users    store.Directory
	notify   Notifier
	opts     options
}

func NewMessageService(messages store.MessageStore, users store.Directory, notify Notifier, opts ...Option) *MessageService {
	o := options{clock: time.Now, newID: uuid.NewString}
	for _, fn := range opts {
		fn(&o)
	}
	return &MessageService{messages: messages, users: users, notify: notify, opts: o}
}

// Send stores the message unread and relays it once stored. A store failure
// means no notification at all.
func (s *MessageService) Send(ctx context.Context, sender model.Identity, req SendMessageReq) (*model.Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := check(req); err != nil {
		return nil, err
	}
	if _, err := s.users.Lookup(ctx, sender.UserID); err != nil {
		return nil, errs.WrapMsg(err, "sender not found", "userId", sender.UserID)
	}
	if _, err := s.users.Lookup(ctx, req.ReceiverID); err != nil {
		return nil, errs.WrapMsg(err, "receiver not found", "userId", req.ReceiverID)
	}

	saved, err := s.messages.Save(ctx, &model.Message{
		ID:         s.opts.newID(),
		SenderID:   sender.UserID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		SentAt:     s.opts.clock(),
		IsRead:     false,
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "save message")
	}

	out := s.notify.RelayChatMessage(ctx, saved)
	logger.Debug("[message] sent", zap.String("id", saved.ID), zap.Int("delivered", out.Delivered()))
	return saved, nil
}

// MarkRead flips the read flag. Only the receiver may do it; an already read
// message is returned as is and the receipt still goes out.
func (s *MessageService) MarkRead(ctx context.Context, reader model.Identity, messageID string) (*model.Message, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, errs.ErrArgs.WrapMsg("messageId required")
	}
	m, err := s.messages.MarkRead(ctx, messageID, reader.UserID)
	if err != nil {
		return nil, errs.WrapMsg(err, "mark read", "messageId", messageID)
	}
	s.notify.RelayReadReceipt(ctx, m, reader.UserID)
	return m, nil
}

// Conversation returns the messages between user and other, oldest first.
func (s *MessageService) Conversation(ctx context.Context, user model.Identity, otherID string) ([]model.MessageView, error) {
	if _, err := uuid.Parse(otherID); err != nil {
		return nil, errs.ErrArgs.WrapMsg("userId is not a uuid", "userId", otherID)
	}
	list, err := s.messages.Conversation(ctx, user.UserID, otherID)
	if err != nil {
		return nil, errs.WrapMsg(err, "load conversation")
	}
	views := make([]model.MessageView, 0, len(list))
	for _, m := range list {
		views = append(views, m.View())
	}
	return views, nil
}
