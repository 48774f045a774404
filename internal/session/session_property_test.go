package session_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/xLillium/rip/internal/hooks"
	"github.com/xLillium/rip/internal/session"
)

// TestSessionSeqIsDenseAndOrderedProperty verifies Testable Property #1:
// for any input string, the frames a Session emits carry seq values
// 0,1,2,… with no gaps or repeats, regardless of input content.
func TestSessionSeqIsDenseAndOrderedProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("seq is dense and strictly increasing from zero", prop.ForAll(
		func(input string) bool {
			s := session.New(session.NewEchoDriver(input), hooks.NewEngine())
			var want uint64
			for {
				fr, ok := s.NextFrame(context.Background())
				if !ok {
					break
				}
				if fr.Seq != want {
					return false
				}
				want++
			}
			return want == 3
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
