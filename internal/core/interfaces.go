package core

import (
	"context"
	"errors"

	"github.com/dkeye/CallRelay/internal/domain"
)

// Frame is one encoded signaling message as it goes on the wire.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
	ErrUnknownConn  = errors.New("unknown connection")
)

// Sender delivers a frame to a single connection handle.
// Delivery is fire-and-forget: a nil error only means the frame was queued.
type Sender interface {
	SendTo(conn domain.ConnID, f Frame) error
}

// Broadcaster delivers a frame to every live connection and returns how
// many connections accepted it.
type Broadcaster interface {
	Broadcast(f Frame) int
}

type RelationshipStatus string

const (
	StatusNone      RelationshipStatus = ""
	StatusPending   RelationshipStatus = "pending"
	StatusConnected RelationshipStatus = "connected"
)

// RelationshipStore is the external system of record for which
// caller/callee pairs may call each other. A missing record is reported as
// StatusNone with a nil error.
type RelationshipStore interface {
	RelationshipStatus(ctx context.Context, caller, callee domain.UserID) (RelationshipStatus, error)
}
