package service

import (
	"context"
	"strings"
	"time"

	"PMentor/module/mentor/model"
	"PMentor/module/mentor/store"
	"PMentor/tools/errs"
	"PMentor/tools/safe"

	"github.com/google/uuid"
)

type CreateConnectionReq struct {
	TargetID string `json:"targetId" validate:"required,uuid"`
	Type     string `json:"type" validate:"required"`
}

type UpdateConnectionReq struct {
	Status string `json:"status" validate:"required"`
}

type ConnectionService struct {
	conns  store.ConnectionStore
	users  store.Directory
	notify Notifier
	opts   options
}

func NewConnectionService(conns store.ConnectionStore, users store.Directory, notify Notifier, opts ...Option) *ConnectionService {
	o := options{clock: time.Now, newID: uuid.NewString}
	for _, fn := range opts {
		fn(&o)
	}
	return &ConnectionService{conns: conns, users: users, notify: notify, opts: o}
}

// Create opens a PENDING request from requester to the target.
func (s *ConnectionService) Create(ctx context.Context, requester model.Identity, req CreateConnectionReq) (*model.ConnectionView, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	typ, ok := model.ParseConnectionType(req.Type)
	if !ok {
		return nil, errs.ErrArgs.WrapMsg("unknown connection type", "type", req.Type)
	}
	if strings.EqualFold(req.TargetID, requester.UserID) {
		return nil, errs.ErrArgs.WrapMsg("cannot connect to yourself")
	}
	target, err := s.users.Lookup(ctx, req.TargetID)
	if err != nil {
		return nil, errs.WrapMsg(err, "target user not found", "targetId", req.TargetID)
	}
	if typ == model.ConnectionMentorship && target.Role != model.RoleMentor {
		return nil, errs.ErrArgs.WrapMsg("target user is not a mentor", "targetId", req.TargetID)
	}
	exists, err := s.conns.Exists(ctx, requester.UserID, target.UserID, typ)
	if err != nil {
		return nil, errs.WrapMsg(err, "check existing connection")
	}
	if exists {
		return nil, errs.ErrDuplicateKey.WrapMsg("connection request already exists")
	}

	saved, err := s.conns.Save(ctx, &model.Connection{
		ID:          s.opts.newID(),
		RequesterID: requester.UserID,
		TargetID:    target.UserID,
		Type:        typ,
		Status:      model.StatusPending,
		RequestedAt: s.opts.clock(),
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "save connection")
	}
	s.notify.RelayConnectionNotification(ctx, saved)
	return s.Describe(ctx, saved), nil
}

// Update lets the target answer a pending request.
func (s *ConnectionService) Update(ctx context.Context, actor model.Identity, id string, req UpdateConnectionReq) (*model.ConnectionView, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	status, ok := model.ParseConnectionStatus(req.Status)
	if !ok || status == model.StatusPending {
		return nil, errs.ErrArgs.WrapMsg("status must be ACCEPTED or DECLINED", "status", req.Status)
	}
	conn, err := s.conns.Get(ctx, id)
	if err != nil {
		return nil, errs.WrapMsg(err, "load connection", "id", id)
	}
	if conn.TargetID != actor.UserID {
		return nil, errs.ErrForbidden.WrapMsg("only the target can respond", "id", id)
	}
	if conn.Status != model.StatusPending {
		return nil, errs.ErrArgs.WrapMsg("connection already responded", "status", conn.Status)
	}

	now := s.opts.clock()
	conn.Status = status
	conn.RespondedAt = &now
	saved, err := s.conns.Save(ctx, conn)
	if err != nil {
		return nil, errs.WrapMsg(err, "save connection")
	}
	s.notify.RelayConnectionNotification(ctx, saved)
	return s.Describe(ctx, saved), nil
}

// Pending lists requests waiting for user's answer.
func (s *ConnectionService) Pending(ctx context.Context, user model.Identity) ([]*model.ConnectionView, error) {
	list, err := s.conns.ListByTarget(ctx, user.UserID, model.StatusPending)
	if err != nil {
		return nil, errs.WrapMsg(err, "list pending")
	}
	return s.describeAll(ctx, list), nil
}

// Accepted lists accepted connections on either side.
func (s *ConnectionService) Accepted(ctx context.Context, user model.Identity) ([]*model.ConnectionView, error) {
	list, err := s.conns.ListAccepted(ctx, user.UserID)
	if err != nil {
		return nil, errs.WrapMsg(err, "list accepted")
	}
	return s.describeAll(ctx, list), nil
}

// Describe attaches display names; a missing name is left null.
func (s *ConnectionService) Describe(ctx context.Context, c *model.Connection) *model.ConnectionView {
	v := c.View(s.name(ctx, c.RequesterID), s.name(ctx, c.TargetID))
	return &v
}

func (s *ConnectionService) describeAll(ctx context.Context, list []*model.Connection) []*model.ConnectionView {
	out := make([]*model.ConnectionView, 0, len(list))
	for _, c := range list {
		out = append(out, s.Describe(ctx, c))
	}
	return out
}

func (s *ConnectionService) name(ctx context.Context, userID string) *string {
	n, err := s.users.DisplayName(ctx, userID)
	if err != nil {
		return nil
	}
	return safe.StringPtr(n)
}
