// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxUserIDLen = 128

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

// UserID is the opaque identity supplied by the client at registration.
// It comes from the identity provider; the relay never interprets it.
type UserID string

type Role string

const (
	RoleCaller Role = "doctor"
	RoleCallee Role = "patient"
)

// Known reports whether r is one of the roles clients are expected to send.
// Unknown roles are still accepted, the role is informational only.
func (r Role) Known() bool {
	return r == RoleCaller || r == RoleCallee
}

// ParseUserID bounds a client supplied identifier. The value is kept
// byte-for-byte so later call events match it exactly.
func ParseUserID(raw string) (UserID, error) {
	if len(raw) == 0 {
		return "", ErrUserIDEmpty
	}
	if len(raw) > MaxUserIDLen {
		return "", ErrUserIDTooLong
	}
	return UserID(raw), nil
}
