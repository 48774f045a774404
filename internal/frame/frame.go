// Package frame implements the canonical event vocabulary (C1): a
// closed sum of typed frame kinds wrapped in an envelope of
// id/session_id/timestamp_ms/seq, with a stable single-level-flattened
// JSON projection.
package frame

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Frame is one event in a session's sequence: an envelope plus a Kind.
type Frame struct {
	ID          string
	SessionID   string
	TimestampMs int64
	Seq         uint64
	Kind        Kind
}

// New stamps a fresh id and timestamp for kind, at the given session and
// seq. The caller bumps seq only after the frame has cleared the hook
// engine (see internal/session).
func New(sessionID string, seq uint64, kind Kind) Frame {
	return Frame{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		TimestampMs: time.Now().UnixMilli(),
		Seq:         seq,
		Kind:        kind,
	}
}

// MarshalJSON flattens the envelope fields and the kind's own fields
// into a single JSON object, with "type" as the discriminator.
func (f Frame) MarshalJSON() ([]byte, error) {
	if f.Kind == nil {
		return nil, fmt.Errorf("frame: nil kind")
	}
	kindBytes, err := json.Marshal(f.Kind)
	if err != nil {
		return nil, fmt.Errorf("frame: marshal kind: %w", err)
	}
	var kindFields map[string]json.RawMessage
	if err := json.Unmarshal(kindBytes, &kindFields); err != nil {
		return nil, fmt.Errorf("frame: decode kind fields: %w", err)
	}

	out := make(map[string]json.RawMessage, len(kindFields)+5)
	for k, v := range kindFields {
		out[k] = v
	}
	out["id"], _ = json.Marshal(f.ID)
	out["session_id"], _ = json.Marshal(f.SessionID)
	out["timestamp_ms"], _ = json.Marshal(f.TimestampMs)
	out["seq"], _ = json.Marshal(f.Seq)
	out["type"], _ = json.Marshal(f.Kind.Type())

	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON: it reads the envelope fields and
// the "type" discriminator, then decodes the remaining fields into the
// matching concrete Kind.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var envelope struct {
		ID          string `json:"id"`
		SessionID   string `json:"session_id"`
		TimestampMs int64  `json:"timestamp_ms"`
		Seq         uint64 `json:"seq"`
		Type        string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("frame: decode envelope: %w", err)
	}

	ctor, ok := kindConstructors[envelope.Type]
	if !ok {
		return fmt.Errorf("frame: unknown kind %q", envelope.Type)
	}
	zero := ctor()
	target := reflect.New(reflect.TypeOf(zero))
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return fmt.Errorf("frame: decode kind %q: %w", envelope.Type, err)
	}

	f.ID = envelope.ID
	f.SessionID = envelope.SessionID
	f.TimestampMs = envelope.TimestampMs
	f.Seq = envelope.Seq
	f.Kind = target.Elem().Interface().(Kind)
	return nil
}
