package service

import (
	"context"
	"time"

	"PMentor/module/mentor/model"
	"PMentor/service/relay"
	"PMentor/tools/errs"

	"github.com/go-playground/validator/v10"
)

// Notifier is the relay surface the command layer needs. It is invoked only
// after the write it reports has been stored.
type Notifier interface {
	RelayChatMessage(ctx context.Context, m *model.Message) relay.Outcome
	RelayReadReceipt(ctx context.Context, m *model.Message, readerID string) relay.Outcome
	RelayConnectionNotification(ctx context.Context, c *model.Connection) relay.Outcome
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func check(req any) error {
	if err := validate.Struct(req); err != nil {
		return errs.ErrArgs.WrapMsg("invalid request", "err", err)
	}
	return nil
}

type Option func(*options)

type options struct {
	clock func() time.Time
	newID func() string
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}
