package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CallRelay/internal/domain"
	"github.com/dkeye/CallRelay/internal/protocol"
)

var errSignalClosed = errors.New("signaling connection closed")

type signalClient struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	events chan protocol.ServerEvent
	handle domain.ConnID
}

func dialSignal(ctx context.Context, url string) (*signalClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &signalClient{conn: conn, events: make(chan protocol.ServerEvent, 64)}
	go c.readLoop()
	return c, nil
}

func (c *signalClient) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := protocol.DecodeServer(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "callcheck").Msg("bad server frame")
			continue
		}
		if ev.Type == protocol.TypeLivenessProbe {
			continue
		}
		c.events <- ev
	}
}

func (c *signalClient) send(m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// next waits for the next event of type want, discarding others.
func (c *signalClient) next(ctx context.Context, want protocol.Type) (protocol.ServerEvent, error) {
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return protocol.ServerEvent{}, errSignalClosed
			}
			if ev.Type == want {
				return ev, nil
			}
			log.Debug().Str("module", "callcheck").Str("type", string(ev.Type)).Msg("skipping event")
		case <-ctx.Done():
			return protocol.ServerEvent{}, fmt.Errorf("waiting for %s: %w", want, ctx.Err())
		}
	}
}

// register returns once the relay has processed the registration, which
// the whoami round trip proves.
func (c *signalClient) register(ctx context.Context, user, role string) error {
	if err := c.send(protocol.Register{UserID: user, Role: role}); err != nil {
		return err
	}
	if err := c.send(protocol.WhoAmI{}); err != nil {
		return err
	}
	ev, err := c.next(ctx, protocol.TypeWhoAmI)
	if err != nil {
		return err
	}
	if ev.UserID != user {
		return fmt.Errorf("registration of %q not applied, relay reports %q", user, ev.UserID)
	}
	c.handle = ev.Handle
	log.Info().Str("module", "callcheck").Str("user", user).Str("handle", string(ev.Handle)).Msg("registered")
	return nil
}

func (c *signalClient) Close() {
	_ = c.conn.Close()
}
