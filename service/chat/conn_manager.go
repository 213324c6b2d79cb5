package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"PMentor/module/mentor/model"
	"PMentor/tools/errs"

	"github.com/gorilla/websocket"
)

// ===== 连接上下文 =====

// WsConn is the per-connection context: allocated when the socket opens,
// released when it closes. The identity is bound at most once.
type WsConn struct {
	SnowID    string
	Conn      *websocket.Conn // nil in unit tests
	Remote    string
	CreatedAt time.Time
	SendChan  chan []byte // 每连接独立发送队列，由写协程消费

	mu       sync.RWMutex
	identity *model.Identity
	subs     map[string]string // subscription id -> destination

	connected atomic.Bool // CONNECT 已处理
	offline   atomic.Bool // 下线事件已触发
	closeOnce sync.Once
	done      chan struct{}
}

func NewWsConn(snowID string, conn *websocket.Conn, sendBuffer int) *WsConn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	w := &WsConn{
		SnowID:    snowID,
		Conn:      conn,
		CreatedAt: time.Now(),
		SendChan:  make(chan []byte, sendBuffer),
		subs:      make(map[string]string),
		done:      make(chan struct{}),
	}
	if conn != nil && conn.RemoteAddr() != nil {
		w.Remote = conn.RemoteAddr().String()
	}
	return w
}

// Identity returns the bound principal, if any.
func (w *WsConn) Identity() (model.Identity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.identity == nil {
		return model.Identity{}, false
	}
	return *w.identity, true
}

// UserID is "" while unauthenticated.
func (w *WsConn) UserID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.identity == nil {
		return ""
	}
	return w.identity.UserID
}

func (w *WsConn) Authenticated() bool { return w.UserID() != "" }

// bind attaches id. A second bind is refused.
func (w *WsConn) bind(id model.Identity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.identity != nil {
		return false
	}
	w.identity = &id
	return true
}

func (w *WsConn) Subscribe(id, destination string) {
	w.mu.Lock()
	w.subs[id] = destination
	w.mu.Unlock()
}

// Unsubscribe removes id and returns the destination it pointed at.
func (w *WsConn) Unsubscribe(id string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	dest, ok := w.subs[id]
	delete(w.subs, id)
	return dest, ok
}

// SubscriptionFor returns the subscription id registered for destination.
func (w *WsConn) SubscriptionFor(destination string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for id, d := range w.subs {
		if d == destination {
			return id, true
		}
	}
	return "", false
}

// Enqueue hands data to the write goroutine without blocking. A full queue
// drops the frame.
func (w *WsConn) Enqueue(data []byte) error {
	select {
	case <-w.done:
		return errs.ErrDispatch.WrapMsg("connection closed", "snowID", w.SnowID)
	default:
	}
	select {
	case w.SendChan <- data:
		return nil
	default:
		return errs.ErrDispatch.WrapMsg("send queue full", "snowID", w.SnowID)
	}
}

func (w *WsConn) Close() { w.closeOnce.Do(func() { close(w.done) }) }

func (w *WsConn) Done() <-chan struct{} { return w.done }

// ===== 连接管理 =====

type ConnManager struct {
	mu     sync.RWMutex
	bySnow map[string]*WsConn            // 主索引：snowID -> wsConn
	byUser map[string]map[string]*WsConn // 辅助索引：userID -> (snowID -> wsConn)
	gwId   string                        // 节点ID
}

func NewConnManager(gwId string) *ConnManager {
	return &ConnManager{
		bySnow: make(map[string]*WsConn),
		byUser: make(map[string]map[string]*WsConn),
		gwId:   gwId,
	}
}

func (m *ConnManager) GwId() string { return m.gwId }

// Add registers a new, still unauthenticated connection.
func (m *ConnManager) Add(w *WsConn) error {
	if w == nil || w.SnowID == "" {
		return errs.ErrArgs.WrapMsg("snowID empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySnow[w.SnowID]; exists {
		return errs.ErrDuplicateKey.WrapMsg("snowID exists", "snowID", w.SnowID)
	}
	m.bySnow[w.SnowID] = w
	return nil
}

// BindUser indexes snowID under user once the gate has authenticated it.
func (m *ConnManager) BindUser(snowID, user string) error {
	if snowID == "" || user == "" {
		return errs.ErrArgs.WrapMsg("snowID/user empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.bySnow[snowID]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("snowID not found", "snowID", snowID)
	}
	if m.byUser[user] == nil {
		m.byUser[user] = make(map[string]*WsConn)
	}
	m.byUser[user][w.SnowID] = w
	return nil
}

// Remove drops snowID from both indexes and returns the removed context.
func (m *ConnManager) Remove(snowID string) *WsConn {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.bySnow[snowID]
	if !ok {
		return nil
	}
	delete(m.bySnow, snowID)
	if user := w.UserID(); user != "" {
		if mm := m.byUser[user]; mm != nil {
			delete(mm, snowID)
			if len(mm) == 0 {
				delete(m.byUser, user)
			}
		}
	}
	return w
}

func (m *ConnManager) Get(snowID string) (*WsConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.bySnow[snowID]
	return w, ok
}

// UserConns lists the authenticated connections of user.
func (m *ConnManager) UserConns(user string) []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm := m.byUser[user]
	out := make([]*WsConn, 0, len(mm))
	for _, w := range mm {
		out = append(out, w)
	}
	return out
}

// All lists every registered connection, authenticated or not.
func (m *ConnManager) All() []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*WsConn, 0, len(m.bySnow))
	for _, w := range m.bySnow {
		out = append(out, w)
	}
	return out
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySnow)
}

// Close signals every connection to shut down. Their read loops do the cleanup.
func (m *ConnManager) Close() {
	for _, w := range m.All() {
		w.Close()
		if w.Conn != nil {
			_ = w.Conn.Close()
		}
	}
}
