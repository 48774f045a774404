package sse_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/xLillium/rip/internal/sse"
)

// TestDecoderChunkSplitInvarianceProperty verifies Testable Property #3:
// splitting a well-formed SSE payload at any byte boundary and feeding
// the pieces to Decoder.Push across multiple calls yields the same
// parsed events as feeding the whole payload in one call.
func TestDecoderChunkSplitInvarianceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("arbitrary chunk splits reproduce the whole-payload parse", prop.ForAll(
		func(deltas []string, splitPoints []uint8) bool {
			payload := ""
			for i, delta := range deltas {
				payload += fmt.Sprintf(
					"event: response.output_text.delta\ndata: {\"type\":\"response.output_text.delta\",\"sequence_number\":%d,\"delta\":%q}\n\n",
					i, delta,
				)
			}
			if payload == "" {
				return true
			}

			whole := sse.New()
			wantEvents := whole.Push(payload)
			wantEvents = append(wantEvents, whole.Finish()...)

			chunks := splitAt(payload, splitPoints)
			got := sse.New()
			var gotEvents []sse.ParsedEvent
			for _, c := range chunks {
				gotEvents = append(gotEvents, got.Push(c)...)
			}
			gotEvents = append(gotEvents, got.Finish()...)

			if len(wantEvents) != len(gotEvents) {
				return false
			}
			for i := range wantEvents {
				if wantEvents[i].Kind != gotEvents[i].Kind {
					return false
				}
				if fmt.Sprint(wantEvents[i].Data) != fmt.Sprint(gotEvents[i].Data) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(3, gen.AlphaString()),
		gen.SliceOfN(5, gen.UInt8Range(0, 255)),
	))

	properties.TestingRun(t)
}

// splitAt cuts payload into len(points)+1 pieces using each point
// (modulo the remaining length) as a cumulative split offset, so any
// byte boundary — including ones that fall mid-line or mid-JSON-token —
// is exercised.
func splitAt(payload string, points []uint8) []string {
	var chunks []string
	rest := payload
	for _, p := range points {
		if rest == "" {
			break
		}
		offset := int(p) % (len(rest) + 1)
		chunks = append(chunks, rest[:offset])
		rest = rest[offset:]
	}
	chunks = append(chunks, rest)
	return chunks
}
