package dispatch

import (
	"encoding/json"
	"errors"
)

// Gateway opcodes the envelope decoder distinguishes. Only dispatch frames
// carry events.
const (
	OpDispatch     = 0
	OpHeartbeat    = 1
	OpReconnect    = 7
	OpInvalid      = 9
	OpHello        = 10
	OpHeartbeatAck = 11
)

// ErrMalformedEnvelope is returned for frames without an opcode, or dispatch
// frames without a tag.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is a decoded gateway frame.
type Envelope struct {
	Op      int
	Seq     int64
	Tag     string
	Payload json.RawMessage

	// Resumable is set on reconnect frames, and on invalid-session frames
	// whose payload allows the session to resume.
	Resumable bool
}

// IsDispatch reports whether the frame carries an event.
func (e Envelope) IsDispatch() bool { return e.Op == OpDispatch }

var (
	framed         = HasFields("op")
	dispatchFramed = And(FieldIntEquals("op", OpDispatch), HasFields("t", "d"))
	sessionLost    = Or(FieldIntEquals("op", OpReconnect), FieldIntEquals("op", OpInvalid))
)

// SessionLost reports whether the gateway asked the client to reconnect.
func (e Envelope) SessionLost() bool { return e.Op == OpReconnect || e.Op == OpInvalid }

// ParseEnvelope decodes a raw frame of the form
// {"op":0,"s":42,"t":"MESSAGE_CREATE","d":{...}}. The payload is not
// decoded; it is handed to the tag's variant as is.
func ParseEnvelope(raw []byte) (Envelope, error) {
	view, err := JSONInspector().Inspect(raw)
	if err != nil {
		return Envelope{}, err
	}
	if !framed.Match(view) {
		return Envelope{}, ErrMalformedEnvelope
	}
	op, ok := view.GetInt("op")
	if !ok {
		return Envelope{}, ErrMalformedEnvelope
	}

	env := Envelope{Op: int(op)}
	if !dispatchFramed.Match(view) {
		if env.IsDispatch() {
			return Envelope{}, ErrMalformedEnvelope
		}
		if sessionLost.Match(view) {
			resume, _ := view.GetBool("d")
			env.Resumable = env.Op == OpReconnect || resume
		}
		return env, nil
	}

	tag, ok := view.GetString("t")
	if !ok || tag == "" {
		return Envelope{}, ErrMalformedEnvelope
	}
	payload, _ := view.GetBytes("d")
	env.Tag = tag
	env.Payload = payload
	env.Seq, _ = view.GetInt("s")
	return env, nil
}
