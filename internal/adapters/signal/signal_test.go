package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/CallRelay/internal/app"
	"github.com/dkeye/CallRelay/internal/domain"
	"github.com/dkeye/CallRelay/internal/protocol"
)

// countingAuth denies every call and counts how often it was asked.
type countingAuth struct {
	calls atomic.Int32
}

func (a *countingAuth) IsCallPermitted(context.Context, domain.UserID, domain.UserID) bool {
	a.calls.Add(1)
	return false
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Registry, *Hub) {
	t.Helper()
	return newLimitedTestServer(t, &countingAuth{}, nil)
}

func newLimitedTestServer(t *testing.T, auth app.Authorizer, limiter *CallRateLimiter) (*httptest.Server, *app.Registry, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := app.NewRegistry()
	hub := NewHub()
	relay := app.NewRelay(reg, auth, hub)
	ctl := NewSignalWSController(relay, hub, limiter, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, reg, hub
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) protocol.ServerEvent {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	ev, err := protocol.DecodeServer(data)
	require.NoError(t, err)
	return ev
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	ts, _, _ := newTestServer(t)
	c := dial(t, ts)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"register"}`)))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	assert.Equal(t, protocol.TypePong, readEvent(t, c).Type)
}

func TestRegisterAndDisconnectCleanup(t *testing.T) {
	ts, reg, hub := newTestServer(t)
	c := dial(t, ts)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"register","userId":"doc-1","role":"doctor"}`)))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"whoami"}`)))
	who := readEvent(t, c)
	assert.Equal(t, "doc-1", who.UserID)
	assert.NotEmpty(t, who.Handle)

	conn, ok := reg.Lookup("doc-1")
	require.True(t, ok)
	assert.Equal(t, who.Handle, conn)
	assert.Equal(t, 1, hub.Count())

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool {
		_, ok := reg.Lookup("doc-1")
		return !ok && hub.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRateLimitedCallNeverReachesGate(t *testing.T) {
	auth := &countingAuth{}
	ts, _, _ := newLimitedTestServer(t, auth, NewCallRateLimiter(1, time.Minute))
	c := dial(t, ts)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"register","userId":"doc-1","role":"doctor"}`)))
	call := []byte(`{"type":"call-initiate","callerId":"doc-1","calleeId":"pat-1","offer":{"sdp":"v=0"}}`)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, call))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, call))
	// Events are handled in order, so the pong means both calls were processed.
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, protocol.TypePong, readEvent(t, c).Type)

	assert.Equal(t, int32(1), auth.calls.Load())
}
