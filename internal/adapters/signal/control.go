package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CallRelay/internal/app"
	"github.com/dkeye/CallRelay/internal/metrics"
)

// admitCall applies the per-user call-initiate rate limit. Unregistered
// peers pass through so the relay logs them as such.
func (ctl *SignalWSController) admitCall(peer *app.Peer) bool {
	if ctl.Limiter == nil {
		return true
	}
	user := peer.User()
	if user == "" {
		return true
	}
	if ctl.Limiter.Allow(user) {
		return true
	}
	metrics.EventsDropped.WithLabelValues(metrics.ReasonRateLimited).Inc()
	log.Warn().Str("module", "signal").Str("conn", string(peer.Conn())).Str("user", string(user)).Msg("call-initiate rate limited, dropping")
	return false
}
