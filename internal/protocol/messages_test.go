package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/CallRelay/internal/domain"
)

func TestDecodeVariants(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"register","userId":"doc-1","role":"doctor"}`))
	require.NoError(t, err)
	assert.Equal(t, Register{UserID: "doc-1", Role: "doctor"}, ev)

	ev, err = Decode([]byte(`{"type":"call-initiate","callerId":"doc-1","calleeId":"pat-1","offer":{"sdp":"v=0..."}}`))
	require.NoError(t, err)
	ci, ok := ev.(CallInitiate)
	require.True(t, ok)
	assert.Equal(t, "pat-1", ci.CalleeID)
	assert.JSONEq(t, `{"sdp":"v=0..."}`, string(ci.Offer))

	ev, err = Decode([]byte(`{"type":"call-answer","targetConnectionHandle":"H1","answer":{"sdp":"v=0"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ConnID("H1"), ev.(CallAnswer).Target)

	ev, err = Decode([]byte(`{"type":"ice-candidate","targetConnectionHandle":"H2","candidate":{"candidate":"c"}}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ConnID("H2"), ev.(ICECandidate).Target)

	ev, err = Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, Ping{}, ev)

	ev, err = Decode([]byte(`{"type":"whoami"}`))
	require.NoError(t, err)
	assert.Equal(t, WhoAmI{}, ev)
}

func TestDecodeMissingFields(t *testing.T) {
	cases := map[string]string{
		"register without userId":         `{"type":"register","role":"doctor"}`,
		"register blank userId":           `{"type":"register","userId":"  "}`,
		"call-initiate without callerId":  `{"type":"call-initiate","calleeId":"p","offer":{}}`,
		"call-initiate without calleeId":  `{"type":"call-initiate","callerId":"d","offer":{}}`,
		"call-initiate without offer":     `{"type":"call-initiate","callerId":"d","calleeId":"p"}`,
		"call-initiate null offer":        `{"type":"call-initiate","callerId":"d","calleeId":"p","offer":null}`,
		"call-initiate empty offer":       `{"type":"call-initiate","callerId":"d","calleeId":"p","offer":""}`,
		"call-answer without target":      `{"type":"call-answer","answer":{}}`,
		"call-answer without answer":      `{"type":"call-answer","targetConnectionHandle":"H1"}`,
		"ice-candidate without target":    `{"type":"ice-candidate","candidate":{}}`,
		"ice-candidate without candidate": `{"type":"ice-candidate","targetConnectionHandle":"H1"}`,
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadFrame)

	_, err = Decode([]byte(`{"type":"register","userId":42}`))
	assert.ErrorIs(t, err, ErrBadFrame)

	_, err = Decode([]byte(`{"type":"hangup"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	// server-only events are not accepted from clients
	_, err = Decode([]byte(`{"type":"incoming-call","offer":{},"from":"H1"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEncodeKeepsPayloadBytes(t *testing.T) {
	candidate := json.RawMessage(`{ "candidate" : "candidate:1 1 udp 2122260223 10.0.0.1 5000 typ host",  "sdpMid":"0", "note":"<&>" }`)

	frame, err := Encode(RelayedCandidate{Candidate: candidate, From: "H1"})
	require.NoError(t, err)
	assert.Contains(t, string(frame), string(candidate))
	assert.True(t, json.Valid(frame))

	ev, err := DecodeServer(frame)
	require.NoError(t, err)
	assert.Equal(t, TypeICECandidate, ev.Type)
	assert.Equal(t, domain.ConnID("H1"), ev.From)
	assert.Equal(t, string(candidate), string(ev.Candidate))
}

func TestEncodeServerEvents(t *testing.T) {
	frame, err := Encode(IncomingCall{Offer: json.RawMessage(`{"sdp":"v=0..."}`), From: "H1", CalleeID: "pat-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"incoming-call","offer":{"sdp":"v=0..."},"from":"H1","calleeId":"pat-1"}`, string(frame))

	frame, err = Encode(CallAnswered{Answer: json.RawMessage(`"opaque"`), From: "H2"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"call-answered","answer":"opaque","from":"H2"}`, string(frame))

	frame, err = Encode(LivenessProbe{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"liveness-probe","payload":"keep-alive"}`, string(frame))

	frame, err = Encode(Pong{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(frame))

	frame, err = Encode(WhoAmIReply{Handle: "H1", UserID: "doc-1", Role: domain.RoleCaller})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"whoami","handle":"H1","userId":"doc-1","role":"doctor"}`, string(frame))
}

func TestEncodeClientEventsRoundTrip(t *testing.T) {
	in := CallInitiate{CallerID: "doc-1", CalleeID: "pat-1", Offer: json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)}
	frame, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeRejectsInvalidPayload(t *testing.T) {
	_, err := Encode(CallAnswered{Answer: json.RawMessage(`{broken`), From: "H2"})
	assert.ErrorIs(t, err, ErrBadFrame)
}
