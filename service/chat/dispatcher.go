package chat

import (
	"context"
	"sync"

	"PMentor/logger"
	"PMentor/tools/errs"
	"PMentor/tools/safe"
)

type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(hs ...Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range hs {
		d.handlers[h.Destination()] = h
	}
}

func (d *Dispatcher) GetHandler(dest string) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[dest]
	if !ok {
		logger.Infof("no handler for destination=%s", dest)
		return nil
	}
	return h
}

// Dispatch routes a SEND frame. A panicking handler is turned into an error.
func (d *Dispatcher) Dispatch(ctx context.Context, w *WsConn, f *Frame) error {
	dest := f.Destination()
	h := d.GetHandler(dest)
	if h == nil {
		return errs.ErrRecordNotFound.WrapMsg("no handler", "destination", dest)
	}
	return safe.Try(func() error { return h.Handle(ctx, w, f) })
}
