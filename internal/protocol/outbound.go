package protocol

import (
	"encoding/json"

	"github.com/dkeye/CallRelay/internal/domain"
)

// IncomingCall is delivered to the callee. From is the caller's handle,
// which the callee uses to address its answer and candidates.
type IncomingCall struct {
	Offer    json.RawMessage
	From     domain.ConnID
	CalleeID string
}

type CallAnswered struct {
	Answer json.RawMessage
	From   domain.ConnID
}

// RelayedCandidate is the server to client form of ice-candidate.
type RelayedCandidate struct {
	Candidate json.RawMessage
	From      domain.ConnID
}

type LivenessProbe struct{}

type Pong struct{}

type WhoAmIReply struct {
	Handle domain.ConnID
	UserID domain.UserID
	Role   domain.Role
}

func (IncomingCall) EventType() Type     { return TypeIncomingCall }
func (CallAnswered) EventType() Type     { return TypeCallAnswered }
func (RelayedCandidate) EventType() Type { return TypeICECandidate }
func (LivenessProbe) EventType() Type    { return TypeLivenessProbe }
func (Pong) EventType() Type             { return TypePong }
func (WhoAmIReply) EventType() Type      { return TypeWhoAmI }

func (e IncomingCall) appendFields(w *frameWriter) {
	w.raw("offer", e.Offer)
	w.str("from", string(e.From))
	w.str("calleeId", e.CalleeID)
}

func (e CallAnswered) appendFields(w *frameWriter) {
	w.raw("answer", e.Answer)
	w.str("from", string(e.From))
}

func (e RelayedCandidate) appendFields(w *frameWriter) {
	w.raw("candidate", e.Candidate)
	w.str("from", string(e.From))
}

func (LivenessProbe) appendFields(w *frameWriter) {
	w.str("payload", KeepAlive)
}

func (Pong) appendFields(*frameWriter) {}

func (e WhoAmIReply) appendFields(w *frameWriter) {
	w.str("handle", string(e.Handle))
	w.str("userId", string(e.UserID))
	w.str("role", string(e.Role))
}

// ServerEvent is the client side view of any server frame.
type ServerEvent struct {
	Type      Type            `json:"type"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	From      domain.ConnID   `json:"from,omitempty"`
	CalleeID  string          `json:"calleeId,omitempty"`
	Payload   string          `json:"payload,omitempty"`
	Handle    domain.ConnID   `json:"handle,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Role      string          `json:"role,omitempty"`
}

func DecodeServer(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ServerEvent{}, err
	}
	return ev, nil
}
