package frame_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xLillium/rip/internal/frame"
)

func TestNewStampsEnvelope(t *testing.T) {
	f := frame.New("sess-1", 3, frame.SessionStarted{Input: "hello"})

	require.NotEmpty(t, f.ID)
	require.Equal(t, "sess-1", f.SessionID)
	require.Equal(t, uint64(3), f.Seq)
	require.NotZero(t, f.TimestampMs)
	require.Equal(t, frame.SessionStarted{Input: "hello"}, f.Kind)
}

func TestMarshalFlattensEnvelopeAndKind(t *testing.T) {
	f := frame.New("sess-1", 0, frame.OutputTextDelta{Delta: "ack: hello"})

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	require.Equal(t, "output_text_delta", raw["type"])
	require.Equal(t, "ack: hello", raw["delta"])
	require.Equal(t, f.ID, raw["id"])
	require.Equal(t, f.SessionID, raw["session_id"])
	require.Equal(t, float64(f.Seq), raw["seq"])
}

func TestRoundTripEveryVariant(t *testing.T) {
	cases := []frame.Kind{
		frame.SessionStarted{Input: "hi"},
		frame.OutputTextDelta{Delta: "d"},
		frame.ReasoningDelta{Delta: "thinking"},
		frame.ToolCallArgumentsDelta{ToolCallID: "tc1", ToolName: "echo", Delta: "{\"a\":1"},
		frame.SessionEnded{Reason: "completed"},
		frame.ProviderEvent{Status: "ok"},
		frame.ToolStarted{ToolID: "t1", Name: "echo", Args: json.RawMessage(`{}`)},
		frame.ToolStdout{ToolID: "t1", Chunk: "out"},
		frame.ToolStderr{ToolID: "t1", Chunk: "err"},
		frame.ToolEnded{ToolID: "t1", ExitCode: 0, DurationMs: 12},
		frame.ToolFailed{ToolID: "t1", Error: "timeout"},
	}

	for _, kind := range cases {
		original := frame.New("sess-2", 7, kind)

		data, err := json.Marshal(original)
		require.NoError(t, err)

		var decoded frame.Frame
		require.NoError(t, json.Unmarshal(data, &decoded))

		require.Equal(t, original.ID, decoded.ID)
		require.Equal(t, original.SessionID, decoded.SessionID)
		require.Equal(t, original.Seq, decoded.Seq)
		require.Equal(t, original.TimestampMs, decoded.TimestampMs)
		require.Equal(t, original.Kind, decoded.Kind)
		require.Equal(t, kind.Type(), decoded.Kind.Type())
	}
}

func TestUnmarshalUnknownKindErrors(t *testing.T) {
	var f frame.Frame
	err := json.Unmarshal([]byte(`{"id":"x","session_id":"s","seq":0,"timestamp_ms":0,"type":"mystery"}`), &f)
	require.Error(t, err)
}

func TestMarshalNilKindErrors(t *testing.T) {
	_, err := json.Marshal(frame.Frame{})
	require.Error(t, err)
}
