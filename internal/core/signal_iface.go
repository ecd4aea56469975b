package core

import "github.com/dkeye/CallRelay/internal/domain"

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	ID() domain.ConnID
	TrySend(Frame) error
	Close()
}
