package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CallRelay/internal/app"
	"github.com/dkeye/CallRelay/internal/core"
	"github.com/dkeye/CallRelay/internal/domain"
)

type Options struct {
	ReadLimit  int64
	SendBuffer int
	WriteWait  time.Duration
}

func DefaultOptions() Options {
	return Options{ReadLimit: 65536, SendBuffer: 32, WriteWait: 5 * time.Second}
}

// SignalWSController accepts signaling websockets and feeds their events
// into the relay.
type SignalWSController struct {
	Relay   *app.Relay
	Hub     *Hub
	Limiter *CallRateLimiter
	opts    Options
}

func NewSignalWSController(relay *app.Relay, hub *Hub, limiter *CallRateLimiter, opts Options) *SignalWSController {
	return &SignalWSController{
		Relay:   relay,
		Hub:     hub,
		Limiter: limiter,
		opts:    opts,
	}
}

type wsSignalConn struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(id domain.ConnID, ws *websocket.Conn, buffer int) *wsSignalConn {
	return &wsSignalConn{
		id:   id,
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *wsSignalConn) ID() domain.ConnID { return c.id }

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := newWsSignalConn(domain.NewConnID(), ws, ctl.opts.SendBuffer)
	ctl.Hub.Add(conn)
	peer := ctl.Relay.Attach(conn.ID())
	log.Info().Str("module", "signal").Str("conn", string(conn.ID())).Str("remote", c.ClientIP()).Msg("user connected")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, peer, conn)
}
