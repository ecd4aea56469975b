package signal

import (
	"sync"

	"github.com/dkeye/CallRelay/internal/core"
	"github.com/dkeye/CallRelay/internal/domain"
	"github.com/dkeye/CallRelay/internal/metrics"
)

// Hub indexes live connections by handle. It is the relay's Sender and the
// prober's Broadcaster.
type Hub struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]core.SignalConnection
}

func NewHub() *Hub {
	return &Hub{conns: make(map[domain.ConnID]core.SignalConnection)}
}

func (h *Hub) Add(c core.SignalConnection) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	n := len(h.conns)
	h.mu.Unlock()
	metrics.Connections.Set(float64(n))
}

func (h *Hub) Remove(id domain.ConnID) {
	h.mu.Lock()
	delete(h.conns, id)
	n := len(h.conns)
	h.mu.Unlock()
	metrics.Connections.Set(float64(n))
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) SendTo(id domain.ConnID, f core.Frame) error {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return core.ErrUnknownConn
	}
	return c.TrySend(f)
}

func (h *Hub) Broadcast(f core.Frame) int {
	h.mu.RLock()
	targets := make([]core.SignalConnection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if err := c.TrySend(f); err == nil {
			n++
		}
	}
	return n
}

// CloseAll closes every connection; read loops then clean up on their own.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]core.SignalConnection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Close()
	}
}
