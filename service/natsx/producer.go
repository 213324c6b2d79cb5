package natsx

import (
	"context"

	"PMentor/tools/errs"
	"PMentor/tools/ids"

	"github.com/nats-io/nats.go"
)

const HeaderMsgID = "Nats-Msg-Id"

type Producer struct{ c *Client }

func NewProducer(c *Client) *Producer { return &Producer{c: c} }

// Publish 按 Biz 路由发送
func (p *Producer) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("route not found", "biz", biz)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := nats.NewMsg(r.Subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	if err := p.c.nc.PublishMsg(msg); err != nil {
		return errs.ErrDispatch.WrapMsg("nats publish failed", "subject", r.Subject, "err", err)
	}
	return nil
}

// PublishOnce stamps a Nats-Msg-Id (generated when empty) so consumers
// running the idempotency middleware drop redeliveries.
func (p *Producer) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	out := make(map[string]string, len(hdr)+1)
	for k, v := range hdr {
		out[k] = v
	}
	if msgID == "" {
		msgID = ids.GenerateString()
	}
	out[HeaderMsgID] = msgID
	return p.Publish(ctx, biz, data, out)
}
