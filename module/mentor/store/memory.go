package store

import (
	"context"
	"sort"
	"sync"

	"PMentor/module/mentor/model"
	"PMentor/tools/errs"
)

// Memory keeps messages, connections and profiles in process. It is the
// default driver and the fixture used by tests.
type Memory struct {
	mu          sync.RWMutex
	messages    map[string]*model.Message
	connections map[string]*model.Connection
	profiles    map[string]*model.Profile
}

func NewMemory() *Memory {
	return &Memory{
		messages:    make(map[string]*model.Message),
		connections: make(map[string]*model.Connection),
		profiles:    make(map[string]*model.Profile),
	}
}

// PutProfile adds or replaces a directory entry.
func (s *Memory) PutProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.profiles[p.UserID] = &cp
}

// ===== messages =====

func (s *Memory) Save(_ context.Context, m *model.Message) (*model.Message, error) {
	if m == nil || m.ID == "" {
		return nil, errs.ErrArgs.WrapMsg("message id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.messages[m.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Memory) MarkRead(_ context.Context, messageID, receiverID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok || m.ReceiverID != receiverID {
		return nil, errs.ErrRecordNotFound.WrapMsg("message not found or access denied", "id", messageID)
	}
	m.IsRead = true
	out := *m
	return &out, nil
}

func (s *Memory) Conversation(_ context.Context, a, b string) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Message, 0)
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

// ===== connections =====

// Connections exposes the connection half, since Save collides with messages.
func (s *Memory) Connections() ConnectionStore { return memoryConnections{s} }

type memoryConnections struct{ s *Memory }

func (c memoryConnections) Save(_ context.Context, conn *model.Connection) (*model.Connection, error) {
	if conn == nil || conn.ID == "" {
		return nil, errs.ErrArgs.WrapMsg("connection id required")
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, exists := c.s.connections[conn.ID]; !exists {
		for _, other := range c.s.connections {
			if other.RequesterID == conn.RequesterID && other.TargetID == conn.TargetID && other.Type == conn.Type {
				return nil, errs.ErrDuplicateKey.WrapMsg("connection request already exists")
			}
		}
	}
	cp := cloneConnection(conn)
	c.s.connections[conn.ID] = cp
	return cloneConnection(cp), nil
}

func (c memoryConnections) Get(_ context.Context, id string) (*model.Connection, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	conn, ok := c.s.connections[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("connection not found", "id", id)
	}
	return cloneConnection(conn), nil
}

func (c memoryConnections) Exists(_ context.Context, requesterID, targetID string, t model.ConnectionType) (bool, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	for _, conn := range c.s.connections {
		if conn.RequesterID == requesterID && conn.TargetID == targetID && conn.Type == t {
			return true, nil
		}
	}
	return false, nil
}

func (c memoryConnections) ListByTarget(_ context.Context, targetID string, status model.ConnectionStatus) ([]*model.Connection, error) {
	return c.list(func(conn *model.Connection) bool {
		return conn.TargetID == targetID && conn.Status == status
	}), nil
}

func (c memoryConnections) ListAccepted(_ context.Context, userID string) ([]*model.Connection, error) {
	return c.list(func(conn *model.Connection) bool {
		return conn.Status == model.StatusAccepted && (conn.RequesterID == userID || conn.TargetID == userID)
	}), nil
}

func (c memoryConnections) list(keep func(*model.Connection) bool) []*model.Connection {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	out := make([]*model.Connection, 0)
	for _, conn := range c.s.connections {
		if keep(conn) {
			out = append(out, cloneConnection(conn))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

func cloneConnection(c *model.Connection) *model.Connection {
	cp := *c
	if c.RespondedAt != nil {
		t := *c.RespondedAt
		cp.RespondedAt = &t
	}
	return &cp
}

// ===== directory =====

func (s *Memory) Lookup(_ context.Context, userID string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found", "id", userID)
	}
	cp := *p
	return &cp, nil
}

func (s *Memory) DisplayName(ctx context.Context, userID string) (string, error) {
	p, err := s.Lookup(ctx, userID)
	if err != nil {
		return "", err
	}
	if p.Name == "" {
		return "", errs.ErrRecordNotFound.WrapMsg("profile has no name", "id", userID)
	}
	return p.Name, nil
}

var (
	_ MessageStore    = (*Memory)(nil)
	_ Directory       = (*Memory)(nil)
	_ ConnectionStore = memoryConnections{}
)
