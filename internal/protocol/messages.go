// Package protocol defines the signaling events exchanged over a relay
// connection. Every event is one JSON object carrying a "type"
// discriminator next to the fields of its variant.
//
// Negotiation payloads (offer, answer, candidate) are opaque: they are kept
// as the exact bytes the client sent and written back out unchanged.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/CallRelay/internal/domain"
)

type Type string

const (
	TypeRegister      Type = "register"
	TypeCallInitiate  Type = "call-initiate"
	TypeIncomingCall  Type = "incoming-call"
	TypeCallAnswer    Type = "call-answer"
	TypeCallAnswered  Type = "call-answered"
	TypeICECandidate  Type = "ice-candidate"
	TypeLivenessProbe Type = "liveness-probe"
	TypePing          Type = "ping"
	TypePong          Type = "pong"
	TypeWhoAmI        Type = "whoami"
)

// KeepAlive is the marker carried by every liveness probe.
const KeepAlive = "keep-alive"

var (
	ErrBadFrame     = errors.New("bad frame")
	ErrUnknownType  = errors.New("unknown event type")
	ErrMissingField = errors.New("missing required field")
)

// Message is anything that can be framed onto the wire.
type Message interface {
	EventType() Type
	appendFields(w *frameWriter)
}

// Event is a client to server event that passed decoding.
type Event interface {
	Message
	validate() error
}

type Register struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type CallInitiate struct {
	CallerID string          `json:"callerId"`
	CalleeID string          `json:"calleeId"`
	Offer    json.RawMessage `json:"offer"`
}

type CallAnswer struct {
	Target domain.ConnID   `json:"targetConnectionHandle"`
	Answer json.RawMessage `json:"answer"`
}

type ICECandidate struct {
	Target    domain.ConnID   `json:"targetConnectionHandle"`
	Candidate json.RawMessage `json:"candidate"`
}

type Ping struct{}

type WhoAmI struct{}

func (Register) EventType() Type     { return TypeRegister }
func (CallInitiate) EventType() Type { return TypeCallInitiate }
func (CallAnswer) EventType() Type   { return TypeCallAnswer }
func (ICECandidate) EventType() Type { return TypeICECandidate }
func (Ping) EventType() Type         { return TypePing }
func (WhoAmI) EventType() Type       { return TypeWhoAmI }

func (e Register) validate() error {
	if blank(e.UserID) {
		return missing("userId")
	}
	return nil
}

func (e CallInitiate) validate() error {
	switch {
	case blank(e.CallerID):
		return missing("callerId")
	case blank(e.CalleeID):
		return missing("calleeId")
	case !present(e.Offer):
		return missing("offer")
	}
	return nil
}

func (e CallAnswer) validate() error {
	switch {
	case blank(string(e.Target)):
		return missing("targetConnectionHandle")
	case !present(e.Answer):
		return missing("answer")
	}
	return nil
}

func (e ICECandidate) validate() error {
	switch {
	case blank(string(e.Target)):
		return missing("targetConnectionHandle")
	case !present(e.Candidate):
		return missing("candidate")
	}
	return nil
}

func (Ping) validate() error   { return nil }
func (WhoAmI) validate() error { return nil }

func (e Register) appendFields(w *frameWriter) {
	w.str("userId", e.UserID)
	w.str("role", e.Role)
}

func (e CallInitiate) appendFields(w *frameWriter) {
	w.str("callerId", e.CallerID)
	w.str("calleeId", e.CalleeID)
	w.raw("offer", e.Offer)
}

func (e CallAnswer) appendFields(w *frameWriter) {
	w.str("targetConnectionHandle", string(e.Target))
	w.raw("answer", e.Answer)
}

func (e ICECandidate) appendFields(w *frameWriter) {
	w.str("targetConnectionHandle", string(e.Target))
	w.raw("candidate", e.Candidate)
}

func (Ping) appendFields(*frameWriter)   {}
func (WhoAmI) appendFields(*frameWriter) {}

// Decode parses one client frame into its typed event, rejecting frames
// whose required fields are absent or empty.
func Decode(data []byte) (Event, error) {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	switch env.Type {
	case TypeRegister:
		return decodeAs[Register](data)
	case TypeCallInitiate:
		return decodeAs[CallInitiate](data)
	case TypeCallAnswer:
		return decodeAs[CallAnswer](data)
	case TypeICECandidate:
		return decodeAs[ICECandidate](data)
	case TypePing:
		return Ping{}, nil
	case TypeWhoAmI:
		return WhoAmI{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// present reports whether an opaque payload carries a value.
func present(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) > 0 && !bytes.Equal(v, []byte("null")) && !bytes.Equal(v, []byte(`""`))
}
