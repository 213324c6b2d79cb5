package presence

import (
	"sync"
	"time"
)

// Registry is the process-wide record of who is online. A user is online
// while a key exists; the value is the instant the entry was last written.
// There is no per-user connection count: the last MarkOnline wins and one
// MarkOffline removes the user.
type Registry struct {
	mu     sync.RWMutex
	online map[string]time.Time
	clock  func() time.Time
}

type Option func(*Registry)

// WithClock injects the time source (tests).
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		online: make(map[string]time.Time),
		clock:  time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// MarkOnline sets or overwrites the entry for userID and returns its marker.
func (r *Registry) MarkOnline(userID string) time.Time {
	now := r.clock()
	r.mu.Lock()
	r.online[userID] = now
	r.mu.Unlock()
	return now
}

// MarkOffline removes userID. It returns the removal instant and whether an
// entry was present. Removing an absent user is a no-op.
func (r *Registry) MarkOffline(userID string) (time.Time, bool) {
	now := r.clock()
	r.mu.Lock()
	_, ok := r.online[userID]
	delete(r.online, userID)
	r.mu.Unlock()
	return now, ok
}

// Snapshot returns a private copy; callers may iterate it freely.
func (r *Registry) Snapshot() map[string]time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]time.Time, len(r.online))
	for k, v := range r.online {
		out[k] = v
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	_, ok := r.online[userID]
	r.mu.RUnlock()
	return ok
}

// LastSeen returns the marker for an online user. Offline or unknown users
// report false; the registry keeps nothing once a user goes offline.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	t, ok := r.online[userID]
	r.mu.RUnlock()
	return t, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.online)
}
