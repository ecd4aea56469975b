package app

import (
	"context"
	"time"

	"github.com/dkeye/CallRelay/internal/core"
	"github.com/dkeye/CallRelay/internal/domain"
	"github.com/dkeye/CallRelay/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Authorizer decides whether a call-initiate may be forwarded.
type Authorizer interface {
	IsCallPermitted(ctx context.Context, caller, callee domain.UserID) bool
}

// Gate answers call permission from the relationship store. Every call
// queries the store; store failures deny the call.
type Gate struct {
	store   core.RelationshipStore
	timeout time.Duration
}

// NewGate bounds each store query by timeout; zero means the caller's
// context alone decides.
func NewGate(store core.RelationshipStore, timeout time.Duration) *Gate {
	return &Gate{store: store, timeout: timeout}
}

func (g *Gate) IsCallPermitted(ctx context.Context, caller, callee domain.UserID) bool {
	logger := log.With().Str("module", "app.gate").Str("caller", string(caller)).Str("callee", string(callee)).Logger()

	if g.store == nil {
		metrics.GateDecisions.WithLabelValues("error").Inc()
		logger.Error().Msg("no relationship store configured, denying call")
		return false
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	status, err := g.store.RelationshipStatus(ctx, caller, callee)
	if err != nil {
		metrics.GateDecisions.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("relationship store query failed, denying call")
		return false
	}
	if status != core.StatusConnected {
		metrics.GateDecisions.WithLabelValues("denied").Inc()
		logger.Info().Str("status", string(status)).Msg("call blocked, parties not connected")
		return false
	}

	metrics.GateDecisions.WithLabelValues("allowed").Inc()
	logger.Debug().Msg("call permitted")
	return true
}
