package chat_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PMentor/module/mentor/model"
	"PMentor/module/mentor/service"
	"PMentor/module/mentor/store"
	"PMentor/service/chat"
	"PMentor/service/chat/handlers"
	"PMentor/service/presence"
	"PMentor/service/relay"
	"PMentor/tools/security"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	userA = "aaaaaaaa-0000-4000-8000-000000000001"
	userB = "bbbbbbbb-0000-4000-8000-000000000002"
)

var secret = []byte("test-secret-please-change")

type harness struct {
	srv  *httptest.Server
	reg  *presence.Registry
	mem  *store.Memory
	mgr  *chat.ConnManager
	opts security.Options
}

func newHarness(t *testing.T) *harness {
	gin.SetMode(gin.TestMode)
	opts := security.DefaultOptions(secret)
	verifier, err := security.NewVerifier(opts)
	require.NoError(t, err)

	mem := store.NewMemory()
	mem.PutProfile(model.Profile{UserID: userA, Email: "a@example.org", Name: "Ada", Role: model.RoleParticipant})
	mem.PutProfile(model.Profile{UserID: userB, Email: "b@example.org", Name: "Bea", Role: model.RoleMentor})

	reg := presence.NewRegistry()
	mgr := chat.NewConnManager("test")
	broker := chat.NewBroker(mgr)
	rl := relay.New(broker, mem)
	msgs := service.NewMessageService(mem, mem, rl)

	disp := chat.NewDispatcher()
	disp.Register(
		handlers.NewSendHandler(msgs),
		handlers.NewTypingHandler(rl),
		handlers.NewMarkReadHandler(msgs),
		handlers.NewStatusHandler(reg, rl, broker),
	)
	ws := chat.NewServer(chat.Options{}, mgr, chat.NewGate(verifier, mgr), chat.NewLifecycle(reg, rl), disp)

	r := gin.New()
	r.GET("/ws", ws.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		ws.Shutdown()
		srv.Close()
	})
	return &harness{srv: srv, reg: reg, mem: mem, mgr: mgr, opts: opts}
}

func (h *harness) token(t *testing.T, user string, role model.Role) string {
	tok, _, err := security.Generate(h.opts, model.Identity{UserID: user, Email: user + "@example.org", Role: role})
	require.NoError(t, err)
	return tok
}

func (h *harness) expiredToken(t *testing.T, user string) string {
	claims := security.Claims{
		ID:   user,
		Role: string(model.RoleParticipant),
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS512, claims).SignedString(secret)
	require.NoError(t, err)
	return tok
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int
}

func (h *harness) dial(t *testing.T) *client {
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) write(f chat.Frame) {
	raw, err := json.Marshal(f)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, raw))
}

func (c *client) read() *chat.Frame {
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	f, err := chat.ParseFrame(raw)
	require.NoError(c.t, err)
	return f
}

func (c *client) connect(token string) *chat.Frame {
	h := map[string]string{}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	c.write(chat.Frame{Command: chat.CmdConnect, Headers: h})
	f := c.read()
	require.Equal(c.t, chat.CmdConnected, f.Command)
	return f
}

// sync sends a receipt-bearing frame and waits for its receipt. Everything the
// server queued for this client before that point is returned.
func (c *client) sync(f chat.Frame) []*chat.Frame {
	c.seq++
	id := "r-" + string(rune('a'+c.seq))
	if f.Headers == nil {
		f.Headers = map[string]string{}
	}
	f.Headers[chat.HdrReceipt] = id
	c.write(f)
	var before []*chat.Frame
	for {
		got := c.read()
		if got.Command == chat.CmdReceipt && got.Header(chat.HdrReceiptID) == id {
			return before
		}
		before = append(before, got)
	}
}

func (c *client) subscribe(id, dest string) {
	require.Empty(c.t, c.sync(chat.Frame{Command: chat.CmdSubscribe, Headers: map[string]string{"id": id, "destination": dest}}))
}

func (c *client) ping() []*chat.Frame {
	return c.sync(chat.Frame{Command: chat.CmdSubscribe, Headers: map[string]string{"id": "noop", "destination": "/noop"}})
}

func envelopeOf(t *testing.T, f *chat.Frame) (relay.Kind, map[string]any) {
	var env struct {
		Type relay.Kind     `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(f.Body, &env))
	return env.Type, env.Data
}

func TestChatRoundTrip(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	a, b := h.dial(t), h.dial(t)
	connected := a.connect(h.token(t, userA, model.RoleParticipant))
	req.Equal(userA+"@example.org", connected.Header(chat.HdrUserName))
	b.connect(h.token(t, userB, model.RoleMentor))
	a.subscribe("sub-0", "/user/queue/messages")
	b.subscribe("sub-0", "/user/queue/messages")
	req.True(h.reg.IsOnline(userA))
	req.True(h.reg.IsOnline(userB))

	body, _ := json.Marshal(map[string]string{"receiverId": userB, "content": "hello"})
	a.write(chat.Frame{Command: chat.CmdSend, Headers: map[string]string{"destination": "/app/chat.send"}, Body: body})

	fromB, fromA := b.read(), a.read()
	for _, f := range []*chat.Frame{fromA, fromB} {
		req.Equal(chat.CmdMessage, f.Command)
		req.Equal("/user/queue/messages", f.Destination())
		kind, data := envelopeOf(t, f)
		req.Equal(relay.KindChatMessage, kind)
		req.Equal("hello", data["content"])
		req.Equal("Ada", data["senderName"])
	}
	_, da := envelopeOf(t, fromA)
	_, db := envelopeOf(t, fromB)
	req.Equal(da["id"], db["id"])

	stored, err := h.mem.Conversation(context.Background(), userA, userB)
	req.NoError(err)
	req.Len(stored, 1)
	req.False(stored[0].IsRead)
	req.Equal(da["id"], stored[0].ID)

	t.Run("should send the read receipt only to the original sender", func(t *testing.T) {
		req := require.New(t)
		a.subscribe("sub-1", "/user/queue/read-receipts")
		b.subscribe("sub-1", "/user/queue/read-receipts")

		id, _ := json.Marshal(stored[0].ID)
		b.write(chat.Frame{Command: chat.CmdSend, Headers: map[string]string{"destination": "/app/chat.markRead"}, Body: id})

		f := a.read()
		kind, data := envelopeOf(t, f)
		req.Equal(relay.KindReadReceipt, kind)
		req.Equal(stored[0].ID, data["messageId"])
		req.Equal(userB, data["readBy"])
		req.Empty(b.ping())
	})

	t.Run("should answer user.status on the private status queue", func(t *testing.T) {
		req := require.New(t)
		a.subscribe("sub-2", "/user/queue/status")
		a.write(chat.Frame{Command: chat.CmdSend, Headers: map[string]string{"destination": "/app/user.status"}})
		f := a.read()
		req.Equal("/user/queue/status", f.Destination())
		req.Equal("Status updated", f.BodyText())
	})
}

func TestPresenceBroadcasts(t *testing.T) {
	t.Run("should broadcast online and offline for authenticated users", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		watcher := h.dial(t)
		watcher.connect(h.token(t, userB, model.RoleMentor))
		watcher.subscribe("topic", "/topic/user-status")

		a := h.dial(t)
		a.connect(h.token(t, userA, model.RoleParticipant))
		kind, data := envelopeOf(t, watcher.read())
		req.Equal(relay.KindUserStatus, kind)
		req.Equal(userA, data["userId"])
		req.Equal(true, data["online"])
		req.Nil(data["lastSeen"])

		a.write(chat.Frame{Command: chat.CmdDisconnect})
		kind, data = envelopeOf(t, watcher.read())
		req.Equal(relay.KindUserStatus, kind)
		req.Equal(false, data["online"])
		req.NotNil(data["lastSeen"])
		req.Eventually(func() bool { return !h.reg.IsOnline(userA) }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("should keep an expired credential anonymous and silent", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		watcher := h.dial(t)
		watcher.connect(h.token(t, userB, model.RoleMentor))
		watcher.subscribe("topic", "/topic/user-status")

		a := h.dial(t)
		connected := a.connect(h.expiredToken(t, userA))
		req.Empty(connected.Header(chat.HdrUserName))
		a.ping() // CONNECT fully processed

		req.False(h.reg.IsOnline(userA))
		req.Equal(1, h.reg.Len())
		req.Empty(watcher.ping(), "no presence broadcast")

		// the transport stays open and frames still flow
		req.Empty(a.ping())
	})

	t.Run("should not touch presence when an anonymous connection leaves", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		watcher := h.dial(t)
		watcher.connect(h.token(t, userB, model.RoleMentor))
		watcher.subscribe("topic", "/topic/user-status")

		a := h.dial(t)
		a.connect("")
		a.sync(chat.Frame{Command: chat.CmdDisconnect})
		req.Eventually(func() bool { return h.mgr.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

		req.Equal(1, h.reg.Len())
		req.Empty(watcher.ping())
	})
}

func TestAnonymousConnections(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	anon := h.dial(t)
	anon.connect("")
	anon.subscribe("sub-0", "/user/queue/messages")
	anon.subscribe("topic", "/topic/user-status")

	// publishing as anonymous is refused and nothing is stored
	body, _ := json.Marshal(map[string]string{"receiverId": userB, "content": "sneaky"})
	anon.write(chat.Frame{Command: chat.CmdSend, Headers: map[string]string{"destination": "/app/chat.send"}, Body: body})
	req.Empty(anon.ping())
	stored, err := h.mem.Conversation(context.Background(), "", userB)
	req.NoError(err)
	req.Empty(stored)

	// neither private nor broadcast traffic reaches it
	a := h.dial(t)
	a.connect(h.token(t, userA, model.RoleParticipant))
	a.subscribe("sub-0", "/user/queue/messages")
	body, _ = json.Marshal(map[string]string{"receiverId": userB, "content": "hi"})
	a.write(chat.Frame{Command: chat.CmdSend, Headers: map[string]string{"destination": "/app/chat.send"}, Body: body})
	req.Equal(chat.CmdMessage, a.read().Command)
	req.Empty(anon.ping())
}

func TestProtocolErrors(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	c := h.dial(t)

	req.NoError(c.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	req.Equal(chat.CmdError, c.read().Command)

	c.write(chat.Frame{Command: "NACK"})
	req.Equal(chat.CmdError, c.read().Command)

	c.write(chat.Frame{Command: chat.CmdSubscribe, Headers: map[string]string{"id": "x"}})
	req.Equal(chat.CmdError, c.read().Command)

	// connection survives all of the above
	c.connect("")
}
