package natsx

import (
	"context"

	"PMentor/tools/errs"
	"PMentor/tools/safe"

	"github.com/nats-io/nats.go"
)

type Consumer struct {
	c   *Client
	mws []Middleware
}

func NewConsumer(c *Client, mws ...Middleware) *Consumer {
	return &Consumer{c: c, mws: mws}
}

// Subscribe attaches h to the route's subject, in the route's queue group if any.
// A panicking handler is recovered and counted as a failure.
func (cs *Consumer) Subscribe(biz string, h Handler) error {
	r, ok := cs.c.route(biz)
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("route not found", "biz", biz)
	}
	inner := h
	h = Chain(func(ctx context.Context, msg Message) error {
		return safe.Try(func() error { return inner(ctx, msg) })
	}, cs.mws...)

	cb := func(m *nats.Msg) {
		msg := Message{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		}
		_ = h(context.Background(), msg)
	}

	var (
		sub *nats.Subscription
		err error
	)
	if r.Queue == "" {
		sub, err = cs.c.nc.Subscribe(r.Subject, cb)
	} else {
		sub, err = cs.c.nc.QueueSubscribe(r.Subject, r.Queue, cb)
	}
	if err != nil {
		return errs.WrapMsg(err, "nats subscribe", "subject", r.Subject)
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)

	cs.c.mu.Lock()
	cs.c.subs[biz] = sub
	cs.c.mu.Unlock()
	return nil
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
