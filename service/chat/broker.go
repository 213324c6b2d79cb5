package chat

import (
	"encoding/json"
	"strconv"
	"sync/atomic"

	"PMentor/service/relay"
	"PMentor/tools/errs"
)

// Broker is the in-process publish primitive. It only writes to connections
// that passed the gate and subscribed to the destination.
type Broker struct {
	mgr *ConnManager
	seq atomic.Uint64
}

func NewBroker(mgr *ConnManager) *Broker { return &Broker{mgr: mgr} }

// SendToUser delivers to every authenticated connection of userID that is
// subscribed to /user<channel>. A user with no such connection is not an error.
func (b *Broker) SendToUser(userID, channel string, payload any) error {
	if userID == "" {
		return errs.ErrArgs.WrapMsg("empty principal")
	}
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	dest := relay.UserPrefix + channel
	var lastErr error
	for _, w := range b.mgr.UserConns(userID) {
		// 索引之外再校验一次身份，未认证连接永远收不到私有消息
		if w.UserID() != userID {
			continue
		}
		if err := b.deliver(w, dest, body); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Broadcast delivers to every authenticated connection subscribed to channel.
func (b *Broker) Broadcast(channel string, payload any) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	var lastErr error
	for _, w := range b.mgr.All() {
		if !w.Authenticated() {
			continue
		}
		if err := b.deliver(w, channel, body); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (b *Broker) deliver(w *WsConn, dest string, body []byte) error {
	sub, ok := w.SubscriptionFor(dest)
	if !ok {
		return nil
	}
	id := w.SnowID + "-" + strconv.FormatUint(b.seq.Add(1), 10)
	data, err := MessageFrame(dest, sub, id, body).Encode()
	if err != nil {
		return errs.ErrDispatch.WrapMsg("encode frame", "err", err)
	}
	return w.Enqueue(data)
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	default:
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, errs.ErrDispatch.WrapMsg("encode payload", "err", err)
		}
		return body, nil
	}
}
