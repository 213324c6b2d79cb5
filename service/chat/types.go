package chat

import "context"

// Handler serves one /app destination. It runs on the connection's read
// goroutine, so frames from one connection are handled in order.
type Handler interface {
	Destination() string
	Handle(ctx context.Context, w *WsConn, f *Frame) error
}

// HandlerFunc adapts a function into a Handler for dest.
func HandlerFunc(dest string, fn func(ctx context.Context, w *WsConn, f *Frame) error) Handler {
	return handlerFunc{dest: dest, fn: fn}
}

type handlerFunc struct {
	dest string
	fn   func(ctx context.Context, w *WsConn, f *Frame) error
}

func (h handlerFunc) Destination() string { return h.dest }

func (h handlerFunc) Handle(ctx context.Context, w *WsConn, f *Frame) error {
	return h.fn(ctx, w, f)
}
