package app

import (
	"context"
	"time"

	"github.com/dkeye/CallRelay/internal/core"
	"github.com/dkeye/CallRelay/internal/metrics"
	"github.com/dkeye/CallRelay/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Prober periodically broadcasts a keep-alive so idle intermediaries keep
// signaling connections open. Replies are not tracked and nobody is evicted
// for missing one.
type Prober struct {
	registry *Registry
	out      core.Broadcaster
	period   time.Duration
}

func NewProber(registry *Registry, out core.Broadcaster, period time.Duration) *Prober {
	return &Prober{registry: registry, out: out, period: period}
}

// Run ticks until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	log.Info().Str("module", "app.prober").Dur("period", p.period).Msg("liveness prober started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.prober").Msg("liveness prober stopped")
			return nil
		case <-ticker.C:
			p.Probe()
		}
	}
}

// Probe sends one keep-alive broadcast unless nobody is registered.
// It reports whether a broadcast went out.
func (p *Prober) Probe() bool {
	if p.registry.Size() == 0 {
		return false
	}
	frame, err := protocol.Encode(protocol.LivenessProbe{})
	if err != nil {
		log.Error().Err(err).Str("module", "app.prober").Msg("encode probe")
		return false
	}
	n := p.out.Broadcast(frame)
	metrics.Probes.Inc()
	log.Debug().Str("module", "app.prober").Int("delivered", n).Msg("keep-alive probe sent")
	return true
}
