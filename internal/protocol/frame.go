package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode frames m as {"type": ..., fields...}. Opaque payloads are copied
// into the frame as-is; encoding/json would compact and re-escape them.
func Encode(m Message) ([]byte, error) {
	w := &frameWriter{}
	w.buf.WriteByte('{')
	w.str("type", string(m.EventType()))
	m.appendFields(w)
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}

type frameWriter struct {
	buf    bytes.Buffer
	fields int
	err    error
}

func (w *frameWriter) key(k string) {
	if w.fields > 0 {
		w.buf.WriteByte(',')
	}
	w.fields++
	w.quoted(k)
	w.buf.WriteByte(':')
}

func (w *frameWriter) quoted(s string) {
	b, err := json.Marshal(s)
	if err != nil {
		w.err = err
		return
	}
	w.buf.Write(b)
}

func (w *frameWriter) str(k, v string) {
	w.key(k)
	w.quoted(v)
}

func (w *frameWriter) raw(k string, v json.RawMessage) {
	if !json.Valid(v) {
		w.err = fmt.Errorf("%w: %s is not valid json", ErrBadFrame, k)
		return
	}
	w.key(k)
	w.buf.Write(v)
}
