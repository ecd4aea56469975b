package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CallRelay/internal/app"
	"github.com/dkeye/CallRelay/internal/metrics"
	"github.com/dkeye/CallRelay/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, peer *app.Peer, c *wsSignalConn) {
	defer func() {
		cancel()
		ctl.Hub.Remove(c.id)
		peer.Close()
		c.Close()
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("user disconnected")
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(ctx, peer, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, peer *app.Peer, data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
		log.Error().Err(err).Str("module", "signal").Str("conn", string(peer.Conn())).Msg("bad event, dropping")
		return
	}
	if ev.EventType() == protocol.TypeCallInitiate && !ctl.admitCall(peer) {
		return
	}
	peer.Handle(ctx, ev)
}
