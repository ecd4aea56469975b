package store

import (
	"context"
	"sync"

	"github.com/dkeye/CallRelay/internal/core"
	"github.com/dkeye/CallRelay/internal/domain"
)

type pair struct {
	caller domain.UserID
	callee domain.UserID
}

// MemoryStore is an in-process relationship table for development and
// tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rels map[pair]core.RelationshipStatus
	err  error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rels: make(map[pair]core.RelationshipStatus)}
}

func (m *MemoryStore) Set(caller, callee domain.UserID, status core.RelationshipStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rels[pair{caller, callee}] = status
}

// FailWith makes every query return err until called again with nil.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryStore) RelationshipStatus(ctx context.Context, caller, callee domain.UserID) (core.RelationshipStatus, error) {
	if err := ctx.Err(); err != nil {
		return core.StatusNone, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return core.StatusNone, m.err
	}
	return m.rels[pair{caller, callee}], nil
}
