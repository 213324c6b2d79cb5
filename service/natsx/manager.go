package natsx

import (
	"context"

	"PMentor/tools/errs"
)

// Manager 统一门面：对外只暴露这一个对象
type Manager struct {
	client   *Client
	producer *Producer
	consumer *Consumer
}

func NewManager(cfg Config, mws ...Middleware) (*Manager, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{
		client:   c,
		producer: NewProducer(c),
		consumer: NewConsumer(c, mws...),
	}, nil
}

func (m *Manager) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *Manager) RegisterRoute(r Route) error {
	if m == nil || m.client == nil {
		return errs.ErrInternalServer.WrapMsg("nats manager not initialized")
	}
	return m.client.RegisterRoute(r)
}

func (m *Manager) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	if m == nil || m.producer == nil {
		return errs.ErrInternalServer.WrapMsg("nats manager not initialized")
	}
	return m.producer.Publish(ctx, biz, data, hdr)
}

func (m *Manager) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	if m == nil || m.producer == nil {
		return errs.ErrInternalServer.WrapMsg("nats manager not initialized")
	}
	return m.producer.PublishOnce(ctx, biz, data, hdr, msgID)
}

func (m *Manager) Subscribe(biz string, h Handler) error {
	if m == nil || m.consumer == nil {
		return errs.ErrInternalServer.WrapMsg("nats manager not initialized")
	}
	return m.consumer.Subscribe(biz, h)
}
