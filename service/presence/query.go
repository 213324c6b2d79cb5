package presence

import (
	"sort"
	"time"

	"PMentor/module/mentor/model"
)

// Reader is the read half of the registry.
type Reader interface {
	Snapshot() map[string]time.Time
	IsOnline(userID string) bool
	LastSeen(userID string) (time.Time, bool)
}

// Status is the wire shape of one user's presence.
type Status struct {
	UserID   string  `json:"userId"`
	Online   bool    `json:"online"`
	LastSeen *string `json:"lastSeen"`
}

// Query is the read-only facade handed to request/response endpoints.
// Every call reads the registry afresh.
type Query struct {
	reg Reader
}

func NewQuery(reg Reader) *Query { return &Query{reg: reg} }

// OnlineUsers lists every online user with its marker, ordered by user id.
func (q *Query) OnlineUsers() []Status {
	snap := q.reg.Snapshot()
	out := make([]Status, 0, len(snap))
	for id, at := range snap {
		out = append(out, Status{UserID: id, Online: true, LastSeen: model.FormatTimePtr(&at)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (q *Query) IsOnline(userID string) bool { return q.reg.IsOnline(userID) }

// LastSeen returns nil when the user is offline or was never seen.
func (q *Query) LastSeen(userID string) *time.Time {
	t, ok := q.reg.LastSeen(userID)
	if !ok {
		return nil
	}
	return &t
}

func (q *Query) UserStatus(userID string) Status {
	// one consistent read: online and lastSeen come from the same lookup
	t, ok := q.reg.LastSeen(userID)
	st := Status{UserID: userID, Online: ok}
	if ok {
		st.LastSeen = model.FormatTimePtr(&t)
	}
	return st
}
