package relay

import (
	"context"
	"time"

	"PMentor/logger"
	"PMentor/module/mentor/model"
	"PMentor/tools/errs"
	"PMentor/tools/safe"

	"go.uber.org/zap"
)

// Publisher is the outbound primitive. It must be safe for concurrent use.
type Publisher interface {
	SendToUser(userID, channel string, payload any) error
	Broadcast(channel string, payload any) error
}

// NameResolver looks up display names. A missing name is an error and
// degrades to a null name on the wire.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Result records one dispatch attempt.
type Result struct {
	Kind        Kind
	Destination Destination
	Err         error
}

// Outcome collects the results of one relay operation. Callers may log or
// ignore it; it never changes the outcome of the triggering write.
type Outcome []Result

func (o Outcome) Delivered() int {
	n := 0
	for _, r := range o {
		if r.Err == nil {
			n++
		}
	}
	return n
}

func (o Outcome) Failed() []Result {
	var out []Result
	for _, r := range o {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Err returns the first dispatch failure, or nil.
func (o Outcome) Err() error {
	for _, r := range o {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

type Option func(*Relay)

func WithClock(clock func() time.Time) Option {
	return func(r *Relay) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithNameTimeout bounds each display-name lookup.
func WithNameTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.nameTimeout = d
		}
	}
}

// Relay turns domain events into addressed notifications.
type Relay struct {
	pub         Publisher
	names       NameResolver
	clock       func() time.Time
	nameTimeout time.Duration
	log         *zap.Logger
}

func New(pub Publisher, names NameResolver, opts ...Option) *Relay {
	r := &Relay{
		pub:         pub,
		names:       names,
		clock:       time.Now,
		nameTimeout: 2 * time.Second,
		log:         logger.Named("relay"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RelayChatMessage sends a persisted message to the receiver and echoes it to
// the sender's other clients.
func (r *Relay) RelayChatMessage(ctx context.Context, m *model.Message) Outcome {
	if m == nil {
		return nil
	}
	names := r.lookup(ctx)
	build := func() (Notification, error) {
		return ChatMessage{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Content:    m.Content,
			SentAt:     model.FormatTime(m.SentAt),
			SenderName: names(m.SenderID),
		}, nil
	}
	return Outcome{
		r.dispatch(KindChatMessage, Private(m.ReceiverID, QueueMessages), build),
		r.dispatch(KindChatMessage, Private(m.SenderID, QueueMessages), build),
	}
}

// RelayTyping goes to the receiver only.
func (r *Relay) RelayTyping(ctx context.Context, ind TypingIndicator) Outcome {
	build := func() (Notification, error) {
		if ind.SenderName == nil {
			ind.SenderName = r.lookup(ctx)(ind.SenderID)
		}
		return ind, nil
	}
	return Outcome{r.dispatch(KindTypingIndicator, Private(ind.ReceiverID, QueueTyping), build)}
}

// RelayReadReceipt tells the original sender that readerID read m.
func (r *Relay) RelayReadReceipt(_ context.Context, m *model.Message, readerID string) Outcome {
	if m == nil {
		return nil
	}
	build := func() (Notification, error) {
		return ReadReceipt{
			MessageID: m.ID,
			ReadBy:    readerID,
			ReadAt:    model.FormatTime(r.clock()),
		}, nil
	}
	return Outcome{r.dispatch(KindReadReceipt, Private(m.SenderID, QueueReadReceipts), build)}
}

// RelayPresenceChange broadcasts to every subscribed client.
func (r *Relay) RelayPresenceChange(_ context.Context, userID string, online bool) Outcome {
	build := func() (Notification, error) {
		n := PresenceChanged{UserID: userID, Online: online}
		if !online {
			at := r.clock()
			n.LastSeen = model.FormatTimePtr(&at)
		}
		return n, nil
	}
	return Outcome{r.dispatch(KindUserStatus, Broadcast(TopicUserStatus), build)}
}

// RelayConnectionNotification always notifies the target. An accepted
// connection also notifies the requester; a declined one does not.
func (r *Relay) RelayConnectionNotification(ctx context.Context, c *model.Connection) Outcome {
	if c == nil {
		return nil
	}
	names := r.lookup(ctx)
	view := func() model.ConnectionView {
		return c.View(names(c.RequesterID), names(c.TargetID))
	}
	out := Outcome{
		r.dispatch(KindConnectionRequest, Private(c.TargetID, QueueConnections), func() (Notification, error) {
			return ConnectionRequest{view()}, nil
		}),
	}
	if c.Status == model.StatusAccepted {
		out = append(out, r.dispatch(KindConnectionAccepted, Private(c.RequesterID, QueueConnections), func() (Notification, error) {
			return ConnectionAccepted{view()}, nil
		}))
	}
	return out
}

// dispatch builds and publishes one notification. A panic or error in either
// step is contained in the returned Result.
func (r *Relay) dispatch(kind Kind, dest Destination, build func() (Notification, error)) Result {
	res := Result{Kind: kind, Destination: dest}
	if !dest.IsBroadcast() && dest.Principal == "" {
		res.Err = errs.ErrArgs.WrapMsg("private destination without principal", "kind", kind, "destination", dest.Channel)
		r.log.Warn("dispatch refused", zap.String("kind", string(kind)), zap.String("destination", dest.Channel))
		return res
	}
	res.Err = safe.Try(func() error {
		n, err := build()
		if err != nil {
			return err
		}
		env := Wrap(n)
		if dest.IsBroadcast() {
			return r.pub.Broadcast(dest.Channel, env)
		}
		return r.pub.SendToUser(dest.Principal, dest.Channel, env)
	})
	if res.Err != nil {
		if !errs.ErrDispatch.Is(res.Err) {
			res.Err = errs.ErrDispatch.WrapMsg("relay dispatch failed", "kind", kind, "dest", dest.String(), "err", res.Err)
		}
		r.log.Warn("dispatch failed",
			zap.String("kind", string(kind)),
			zap.String("principal", dest.Principal),
			zap.String("destination", dest.Channel),
			zap.Error(res.Err))
		return res
	}
	r.log.Debug("dispatched",
		zap.String("kind", string(kind)),
		zap.String("principal", dest.Principal),
		zap.String("destination", dest.Channel))
	return res
}

// lookup returns a resolver that caches names for the lifetime of one event.
func (r *Relay) lookup(ctx context.Context) func(userID string) *string {
	cache := make(map[string]*string, 2)
	return func(userID string) *string {
		if v, ok := cache[userID]; ok {
			return v
		}
		var name *string
		if r.names != nil && userID != "" {
			lctx, cancel := context.WithTimeout(ctx, r.nameTimeout)
			n, err := r.names.DisplayName(lctx, userID)
			cancel()
			if err != nil {
				if !errs.ErrRecordNotFound.Is(err) {
					r.log.Warn("display name lookup failed", zap.String("userId", userID), zap.Error(err))
				}
			} else {
				name = safe.StringPtr(n)
			}
		}
		cache[userID] = name
		return name
	}
}
