package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CallRelay/internal/core"
	"github.com/dkeye/CallRelay/internal/domain"
	"github.com/dkeye/CallRelay/internal/metrics"
	"github.com/dkeye/CallRelay/internal/protocol"
)

// Relay routes signaling events between registered connections. It never
// inspects negotiation payloads and never answers a relayed event; every
// failure is logged and the event dropped.
type Relay struct {
	registry *Registry
	gate     Authorizer
	out      core.Sender
}

func NewRelay(registry *Registry, gate Authorizer, out core.Sender) *Relay {
	return &Relay{registry: registry, gate: gate, out: out}
}

func (r *Relay) Registry() *Registry { return r.registry }

// Attach starts tracking a freshly accepted connection.
func (r *Relay) Attach(conn domain.ConnID) *Peer {
	return &Peer{
		relay:  r,
		conn:   conn,
		state:  StateUnregistered,
		logger: log.With().Str("module", "app.relay").Str("conn", string(conn)).Logger(),
	}
}

func (r *Relay) send(logger *zerolog.Logger, to domain.ConnID, m protocol.Message) bool {
	frame, err := protocol.Encode(m)
	if err != nil {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
		logger.Error().Err(err).Str("type", string(m.EventType())).Msg("encode failed")
		return false
	}
	if err := r.out.SendTo(to, frame); err != nil {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonSendFailed).Inc()
		logger.Warn().Err(err).Str("type", string(m.EventType())).Str("target", string(to)).Msg("send failed, dropping")
		return false
	}
	metrics.EventsRelayed.WithLabelValues(string(m.EventType())).Inc()
	return true
}

type PeerState int

const (
	StateUnregistered PeerState = iota
	StateRegistered
	StateClosed
)

func (s PeerState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Peer is the protocol state of one connection. Handle and Close are
// driven by the connection's read loop; the accessors are safe from any
// goroutine.
type Peer struct {
	relay  *Relay
	conn   domain.ConnID
	logger zerolog.Logger

	mu    sync.Mutex
	state PeerState
	user  domain.UserID
	role  domain.Role
}

func (p *Peer) Conn() domain.ConnID { return p.conn }

func (p *Peer) State() PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// User returns the registered user, empty before registration.
func (p *Peer) User() domain.UserID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user
}

func (p *Peer) Handle(ctx context.Context, ev protocol.Event) {
	p.mu.Lock()
	state, user := p.state, p.user
	p.mu.Unlock()

	if state == StateClosed {
		return
	}
	metrics.EventsReceived.WithLabelValues(string(ev.EventType())).Inc()

	switch e := ev.(type) {
	case protocol.Register:
		p.register(e)
		return
	case protocol.Ping:
		p.relay.send(&p.logger, p.conn, protocol.Pong{})
		return
	case protocol.WhoAmI:
		p.whoami()
		return
	}

	if state != StateRegistered {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonUnregistered).Inc()
		p.logger.Error().Str("type", string(ev.EventType())).Msg("event before register, dropping")
		return
	}

	switch e := ev.(type) {
	case protocol.CallInitiate:
		p.callInitiate(ctx, user, e)
	case protocol.CallAnswer:
		p.callAnswer(e)
	case protocol.ICECandidate:
		p.iceCandidate(e)
	default:
		p.logger.Warn().Str("type", string(ev.EventType())).Msg("unhandled event")
	}
}

func (p *Peer) register(e protocol.Register) {
	uid, err := domain.ParseUserID(e.UserID)
	if err != nil {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
		p.logger.Error().Err(err).Msg("bad register")
		return
	}
	role := domain.Role(e.Role)
	if !role.Known() {
		p.logger.Warn().Str("role", e.Role).Msg("unknown role")
	}

	p.mu.Lock()
	prev := p.user
	p.user, p.role, p.state = uid, role, StateRegistered
	p.mu.Unlock()

	// A connection speaks for one user at a time.
	if prev != "" && prev != uid {
		p.relay.registry.RemoveByConnection(p.conn)
	}
	p.relay.registry.Upsert(uid, p.conn, role)
}

func (p *Peer) whoami() {
	p.mu.Lock()
	reply := protocol.WhoAmIReply{Handle: p.conn, UserID: p.user, Role: p.role}
	p.mu.Unlock()
	p.relay.send(&p.logger, p.conn, reply)
}

func (p *Peer) callInitiate(ctx context.Context, user domain.UserID, e protocol.CallInitiate) {
	logger := p.logger.With().Str("caller", string(user)).Str("callee", e.CalleeID).Logger()

	if domain.UserID(e.CallerID) != user {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonCallerMismatch).Inc()
		logger.Error().Str("claimed_caller", e.CallerID).Msg("callerId does not match registration, dropping")
		return
	}
	callee := domain.UserID(e.CalleeID)

	// The store round trip happens before any registry access.
	if !p.relay.gate.IsCallPermitted(ctx, user, callee) {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonUnauthorized).Inc()
		logger.Warn().Msg("call not permitted, dropping")
		return
	}

	target, ok := p.relay.registry.Lookup(callee)
	if !ok {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonCalleeOffline).Inc()
		logger.Warn().Msg("callee not online, dropping")
		return
	}

	if p.relay.send(&logger, target, protocol.IncomingCall{Offer: e.Offer, From: p.conn, CalleeID: e.CalleeID}) {
		logger.Info().Str("target", string(target)).Msg("incoming call forwarded")
	}
}

// callAnswer and iceCandidate are not gated: the target handle is the
// capability for the rest of the call.
func (p *Peer) callAnswer(e protocol.CallAnswer) {
	if p.relay.send(&p.logger, e.Target, protocol.CallAnswered{Answer: e.Answer, From: p.conn}) {
		p.logger.Info().Str("target", string(e.Target)).Msg("answer relayed")
	}
}

func (p *Peer) iceCandidate(e protocol.ICECandidate) {
	if p.relay.send(&p.logger, e.Target, protocol.RelayedCandidate{Candidate: e.Candidate, From: p.conn}) {
		p.logger.Debug().Str("target", string(e.Target)).Msg("ice candidate relayed")
	}
}

// Close runs once the transport connection is gone.
func (p *Peer) Close() {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return
	}
	p.state = StateClosed
	p.mu.Unlock()

	if uid, ok := p.relay.registry.RemoveByConnection(p.conn); ok {
		p.logger.Info().Str("user", string(uid)).Msg("user disconnected")
	} else {
		p.logger.Info().Msg("unregistered connection closed")
	}
}
