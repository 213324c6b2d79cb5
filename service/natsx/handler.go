package natsx

import (
	"context"
	"time"

	"PMentor/logger"

	"go.uber.org/zap"
)

// Message 统一消息对象
type Message struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

type Handler func(ctx context.Context, msg Message) error

// Middleware 中间件（日志、幂等等）
type Middleware func(Handler) Handler

func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// LogMiddleware records every failed message with its subject and latency.
func LogMiddleware() Middleware {
	log := logger.Named("nats")
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			start := time.Now()
			err := next(ctx, msg)
			if err != nil {
				log.Warn("handle failed",
					zap.String("subject", msg.Subject),
					zap.Duration("cost", time.Since(start)),
					zap.Error(err))
			}
			return err
		}
	}
}
