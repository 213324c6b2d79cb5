package natsx

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"PMentor/module/mentor/model"
	"PMentor/service/relay"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	sent    []*model.Message
	read    []string
	typing  []relay.TypingIndicator
	conns   []*model.Connection
	failErr error
}

func (f *fakeRelay) out() relay.Outcome {
	if f.failErr != nil {
		return relay.Outcome{{Err: f.failErr}}
	}
	return nil
}

func (f *fakeRelay) RelayChatMessage(_ context.Context, m *model.Message) relay.Outcome {
	f.sent = append(f.sent, m)
	return f.out()
}

func (f *fakeRelay) RelayReadReceipt(_ context.Context, m *model.Message, reader string) relay.Outcome {
	f.read = append(f.read, m.ID+"@"+reader)
	return f.out()
}

func (f *fakeRelay) RelayTyping(_ context.Context, ind relay.TypingIndicator) relay.Outcome {
	f.typing = append(f.typing, ind)
	return f.out()
}

func (f *fakeRelay) RelayConnectionNotification(_ context.Context, c *model.Connection) relay.Outcome {
	f.conns = append(f.conns, c)
	return f.out()
}

type fakeRouter struct {
	routes   map[string]Route
	handlers map[string]Handler
}

func (r *fakeRouter) RegisterRoute(rt Route) error {
	r.routes[rt.Biz] = rt
	return nil
}

func (r *fakeRouter) Subscribe(biz string, h Handler) error {
	r.handlers[biz] = h
	return nil
}

func started(t *testing.T, rl EventRelay) *fakeRouter {
	r := &fakeRouter{routes: map[string]Route{}, handlers: map[string]Handler{}}
	require.NoError(t, NewFeed(rl, "mentor", "relay").Start(r))
	return r
}

func deliver(r *fakeRouter, biz, data string) error {
	return r.handlers[biz](context.Background(), Message{Subject: r.routes[biz].Subject, Data: []byte(data)})
}

func TestFeedRoutes(t *testing.T) {
	req := require.New(t)
	r := started(t, &fakeRelay{})
	req.Len(r.routes, 4)
	req.Equal(Route{Biz: BizMessageSent, Subject: "mentor.message.sent", Queue: "relay"}, r.routes[BizMessageSent])
	req.Equal("mentor.connection.changed", r.routes[BizConnectionChanged].Subject)
	req.Equal("typing", NewFeed(nil, "", "").Subject(BizTyping))
}

func TestFeedDispatch(t *testing.T) {
	t.Run("should relay a sent message", func(t *testing.T) {
		req := require.New(t)
		rl := &fakeRelay{}
		r := started(t, rl)
		req.NoError(deliver(r, BizMessageSent, `{"id":"m-1","senderId":"a","receiverId":"b","content":"hello","sentAt":"2025-03-01T10:00:00Z"}`))
		req.Len(rl.sent, 1)
		req.Equal("hello", rl.sent[0].Content)
	})

	t.Run("should default the reader to the receiver", func(t *testing.T) {
		req := require.New(t)
		rl := &fakeRelay{}
		r := started(t, rl)
		req.NoError(deliver(r, BizMessageRead, `{"id":"m-1","senderId":"a","receiverId":"b","isRead":true}`))
		req.NoError(deliver(r, BizMessageRead, `{"id":"m-2","senderId":"a","receiverId":"b","readerId":"c"}`))
		req.Equal([]string{"m-1@b", "m-2@c"}, rl.read)
	})

	t.Run("should relay typing and connection changes", func(t *testing.T) {
		req := require.New(t)
		rl := &fakeRelay{}
		r := started(t, rl)
		req.NoError(deliver(r, BizTyping, `{"senderId":"a","receiverId":"b","typing":true}`))
		req.NoError(deliver(r, BizConnectionChanged, `{"id":"c-1","requesterId":"a","targetId":"b","type":"CONNECT","status":"ACCEPTED"}`))
		req.Len(rl.typing, 1)
		req.True(rl.typing[0].Typing)
		req.Len(rl.conns, 1)
		req.Equal(model.StatusAccepted, rl.conns[0].Status)
	})

	t.Run("should drop malformed and incomplete payloads", func(t *testing.T) {
		req := require.New(t)
		rl := &fakeRelay{}
		r := started(t, rl)
		req.NoError(deliver(r, BizMessageSent, `not json`))
		req.NoError(deliver(r, BizMessageSent, `{"id":"m-1","senderId":"a"}`))
		req.NoError(deliver(r, BizTyping, `{"senderId":"a"}`))
		req.NoError(deliver(r, BizConnectionChanged, `{"id":"c-1"}`))
		req.Empty(rl.sent)
		req.Empty(rl.typing)
		req.Empty(rl.conns)
	})

	t.Run("should surface relay failures", func(t *testing.T) {
		rl := &fakeRelay{failErr: errors.New("boom")}
		r := started(t, rl)
		require.Error(t, deliver(r, BizTyping, `{"senderId":"a","receiverId":"b"}`))
	})
}

func TestMemIdem(t *testing.T) {
	req := require.New(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mi := NewMemIdem(time.Minute).(*memIdem)
	mi.now = func() time.Time { return now }
	ctx := context.Background()

	seen, err := mi.SeenOnce(ctx, "k", 0)
	req.NoError(err)
	req.False(seen)
	seen, _ = mi.SeenOnce(ctx, "k", 0)
	req.True(seen)

	now = now.Add(2 * time.Minute)
	seen, _ = mi.SeenOnce(ctx, "k", 0)
	req.False(seen)
}

func TestChainAndIdemMiddleware(t *testing.T) {
	req := require.New(t)
	var order []string
	tag := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, msg Message) error {
				order = append(order, name)
				return next(ctx, msg)
			}
		}
	}
	calls := 0
	h := Chain(func(context.Context, Message) error { calls++; return nil },
		tag("outer"), IdemMiddleware(NewMemIdem(time.Minute), 0), tag("inner"))

	msg := Message{Subject: "s", Data: []byte("x"), Header: map[string]string{HeaderMsgID: "id-1"}}
	req.NoError(h(context.Background(), msg))
	req.NoError(h(context.Background(), msg))
	// 没有 id 的消息不去重
	req.NoError(h(context.Background(), Message{Subject: "s", Data: []byte("x")}))
	req.NoError(h(context.Background(), Message{Subject: "s", Data: []byte("x")}))
	req.Equal(3, calls)
	req.Equal([]string{"outer", "inner", "outer", "outer", "inner", "outer", "inner"}, order)
}

func TestFeedRepeatedEventsWithoutID(t *testing.T) {
	t.Run("should relay typing on, off, on again", func(t *testing.T) {
		req := require.New(t)
		rl := &fakeRelay{}
		r := &fakeRouter{routes: map[string]Route{}, handlers: map[string]Handler{}}
		req.NoError(NewFeed(rl, "mentor", "relay").Start(r))
		idem := IdemMiddleware(NewMemIdem(5*time.Minute), 0)
		typing := idem(r.handlers[BizTyping])
		subject := r.routes[BizTyping].Subject

		for _, data := range []string{
			`{"senderId":"a","receiverId":"b","typing":true}`,
			`{"senderId":"a","receiverId":"b","typing":false}`,
			`{"senderId":"a","receiverId":"b","typing":true}`,
		} {
			req.NoError(typing(context.Background(), Message{Subject: subject, Data: []byte(data)}))
		}
		req.Len(rl.typing, 3)
		req.True(rl.typing[2].Typing)
	})

	t.Run("should relay a repeated read receipt", func(t *testing.T) {
		req := require.New(t)
		rl := &fakeRelay{}
		r := started(t, rl)
		read := IdemMiddleware(NewMemIdem(5*time.Minute), 0)(r.handlers[BizMessageRead])
		msg := Message{Subject: r.routes[BizMessageRead].Subject, Data: []byte(`{"id":"m-1","senderId":"a","receiverId":"b"}`)}
		req.NoError(read(context.Background(), msg))
		req.NoError(read(context.Background(), msg))
		req.Equal([]string{"m-1@b", "m-1@b"}, rl.read)
	})
}

func TestRedisIdem(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	req := require.New(t)
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	key := uuid.NewString()
	defer rdb.Del(ctx, "idem:"+key)

	ri := NewRedisIdem(rdb, "idem:", time.Minute)
	seen, err := ri.SeenOnce(ctx, key, 0)
	req.NoError(err)
	req.False(seen)
	seen, err = ri.SeenOnce(ctx, key, 0)
	req.NoError(err)
	req.True(seen)
}

func TestNewClientRequiresServers(t *testing.T) {
	_, err := NewManager(Config{})
	require.Error(t, err)
	var m *Manager
	require.Error(t, m.Publish(context.Background(), "x", nil, nil))
	require.NoError(t, m.Close())
}

func TestFeedOverNats(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	req := require.New(t)
	m, err := NewManager(Config{Servers: []string{url}, Name: "feed-test"}, LogMiddleware(), IdemMiddleware(NewMemIdem(time.Minute), 0))
	req.NoError(err)
	defer m.Close()

	rl := &relayProbe{fakeRelay: &fakeRelay{}, got: make(chan struct{}, 4)}
	prefix := "test-" + uuid.NewString()[:8]
	req.NoError(NewFeed(rl, prefix, "").Start(m))

	payload := []byte(`{"id":"m-1","senderId":"a","receiverId":"b","content":"hello"}`)
	req.NoError(m.PublishOnce(context.Background(), BizMessageSent, payload, nil, "dup-1"))
	req.NoError(m.PublishOnce(context.Background(), BizMessageSent, payload, nil, "dup-1"))

	select {
	case <-rl.got:
	case <-time.After(3 * time.Second):
		t.Fatal("message not relayed")
	}
	// 重复 id 不应再触发
	select {
	case <-rl.got:
		t.Fatal("duplicate relayed")
	case <-time.After(300 * time.Millisecond):
	}
}

type relayProbe struct {
	*fakeRelay
	got chan struct{}
}

func (p *relayProbe) RelayChatMessage(ctx context.Context, m *model.Message) relay.Outcome {
	out := p.fakeRelay.RelayChatMessage(ctx, m)
	p.got <- struct{}{}
	return out
}
