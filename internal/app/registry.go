package app

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/CallRelay/internal/domain"
	"github.com/dkeye/CallRelay/internal/metrics"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Conn         domain.ConnID
	Role         domain.Role
	RegisteredAt time.Time
}

// Registry maps each registered user to its live connection handle.
// It holds handles only; connection lifecycle belongs to the transport.
type Registry struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[domain.UserID]sessionEntry),
	}
}

// Upsert replaces any previous association for uid. Last write wins, the
// previous connection is not checked for liveness.
func (r *Registry) Upsert(uid domain.UserID, conn domain.ConnID, role domain.Role) {
	r.mu.Lock()
	prev, replaced := r.byUser[uid]
	r.byUser[uid] = sessionEntry{Conn: conn, Role: role, RegisteredAt: time.Now()}
	size := len(r.byUser)
	metrics.Sessions.Set(float64(size))
	r.mu.Unlock()

	ev := log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(conn)).Str("role", string(role))
	if replaced {
		ev = ev.Str("replaced_conn", string(prev.Conn))
	}
	ev.Int("sessions", size).Msg("registered")
}

func (r *Registry) Lookup(uid domain.UserID) (domain.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUser[uid]
	if !ok {
		return "", false
	}
	return e.Conn, true
}

// RemoveByConnection drops the user currently bound to conn. It reports
// false when conn never registered or was superseded by a newer
// registration of the same user.
func (r *Registry) RemoveByConnection(conn domain.ConnID) (domain.UserID, bool) {
	r.mu.Lock()
	var (
		found domain.UserID
		ok    bool
	)
	for uid, e := range r.byUser {
		if e.Conn == conn {
			found, ok = uid, true
			delete(r.byUser, uid)
			break
		}
	}
	size := len(r.byUser)
	if ok {
		metrics.Sessions.Set(float64(size))
	}
	r.mu.Unlock()

	if ok {
		log.Info().Str("module", "app.registry").Str("user", string(found)).Str("conn", string(conn)).Int("sessions", size).Msg("unregistered")
	}
	return found, ok
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Snapshot returns the registered sessions ordered by user ID.
func (r *Registry) Snapshot() []domain.Session {
	r.mu.RLock()
	out := make([]domain.Session, 0, len(r.byUser))
	for uid, e := range r.byUser {
		out = append(out, domain.Session{
			UserID:       uid,
			Conn:         e.Conn,
			Role:         e.Role,
			RegisteredAt: e.RegisteredAt,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
