package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnID is the connection handle: an opaque reference to one live
// transport connection, used for routing and never for authorization.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Session is one registered, currently connected participant.
type Session struct {
	UserID       UserID    `json:"userId"`
	Conn         ConnID    `json:"handle"`
	Role         Role      `json:"role"`
	RegisteredAt time.Time `json:"registeredAt"`
}
