package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xLillium/rip/internal/command"
	"github.com/xLillium/rip/internal/frame"
	"github.com/xLillium/rip/internal/hooks"
	"github.com/xLillium/rip/internal/session"
	"github.com/xLillium/rip/internal/telemetry"
	"github.com/xLillium/rip/internal/tool"
	"github.com/xLillium/rip/internal/toolrunner"
)

func collectUntilEnded(t *testing.T, ch <-chan frame.Frame) []frame.Frame {
	t.Helper()
	var frames []frame.Frame
	for {
		select {
		case fr, ok := <-ch:
			if !ok {
				return frames
			}
			frames = append(frames, fr)
			if _, ended := fr.Kind.(frame.SessionEnded); ended {
				return frames
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frames")
		}
	}
}

func TestServiceCreateSendSubscribeRoundTrips(t *testing.T) {
	svc := session.NewService(hooks.NewEngine(), nil, "")
	id := svc.CreateSession()

	ch, unsubscribe, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, svc.SendInput(id, "hello"))

	frames := collectUntilEnded(t, ch)
	require.Len(t, frames, 3)
	_, isStarted := frames[0].Kind.(frame.SessionStarted)
	assert.True(t, isStarted)
	_, isEnded := frames[2].Kind.(frame.SessionEnded)
	assert.True(t, isEnded)
}

func TestServiceReplayReturnsFramesEmittedSoFar(t *testing.T) {
	svc := session.NewService(hooks.NewEngine(), nil, "")
	id := svc.CreateSession()

	ch, unsubscribe, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, svc.SendInput(id, "hi"))
	collectUntilEnded(t, ch)

	frames, err := svc.Replay(id)
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}

func TestServiceUnknownSessionOperationsReturnNotFound(t *testing.T) {
	svc := session.NewService(hooks.NewEngine(), nil, "")

	_, _, err := svc.Subscribe("missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	err = svc.SendInput("missing", "hi")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = svc.Replay("missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	err = svc.Cancel("missing")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestServiceRunToolAppendsFramesContinuingSessionSeq(t *testing.T) {
	registry := tool.NewRegistry()
	registry.Register("echo", func(ctx context.Context, inv tool.Invocation) tool.Output {
		return tool.Success("ok")
	})
	runner := toolrunner.New(registry, 1)

	svc := session.NewService(hooks.NewEngine(), nil, "", session.WithToolRunner(runner))
	id := svc.CreateSession()

	ch, unsubscribe, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, svc.SendInput(id, "hi"))
	driverFrames := collectUntilEnded(t, ch)
	require.Len(t, driverFrames, 3)
	lastDriverSeq := driverFrames[len(driverFrames)-1].Seq

	toolFrames, err := svc.RunTool(context.Background(), id, tool.Invocation{Name: "echo"})
	require.NoError(t, err)
	require.NotEmpty(t, toolFrames)
	assert.Equal(t, lastDriverSeq+1, toolFrames[0].Seq)

	for i := 1; i < len(toolFrames); i++ {
		assert.Equal(t, toolFrames[i-1].Seq+1, toolFrames[i].Seq)
	}
}

func TestServiceRunToolWithoutRunnerConfiguredErrors(t *testing.T) {
	svc := session.NewService(hooks.NewEngine(), nil, "")
	id := svc.CreateSession()

	_, err := svc.RunTool(context.Background(), id, tool.Invocation{Name: "echo"})
	assert.Error(t, err)
}

func TestServiceExecuteCommandRunsRegisteredCommand(t *testing.T) {
	registry := command.NewRegistry()
	require.NoError(t, registry.Register("ping", "liveness check", func(ctx command.Context) (string, error) {
		return "pong:" + ctx.SessionID, nil
	}))

	svc := session.NewService(hooks.NewEngine(), nil, "", session.WithCommands(registry))
	id := svc.CreateSession()

	result, err := svc.ExecuteCommand(id, "ping", nil, "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong:"+id, result)
}

func TestServiceExecuteCommandUnknownSessionErrors(t *testing.T) {
	registry := command.NewRegistry()
	svc := session.NewService(hooks.NewEngine(), nil, "", session.WithCommands(registry))

	_, err := svc.ExecuteCommand("missing", "ping", nil, "")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestServiceExecuteCommandWithoutRegistryConfiguredErrors(t *testing.T) {
	svc := session.NewService(hooks.NewEngine(), nil, "")
	id := svc.CreateSession()

	_, err := svc.ExecuteCommand(id, "ping", nil, "")
	assert.Error(t, err)
}

func TestServiceWithTelemetryDoesNotAlterFrameSequence(t *testing.T) {
	svc := session.NewService(hooks.NewEngine(), nil, "",
		session.WithTelemetry(telemetry.NewNoopTracer(), telemetry.NewNoopLogger()))
	id := svc.CreateSession()

	ch, unsubscribe, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, svc.SendInput(id, "hi"))
	frames := collectUntilEnded(t, ch)
	require.Len(t, frames, 3)
}

func TestServiceWithRedisBroadcasterAlsoPublishesRemotely(t *testing.T) {
	client := setupRedisClient(t)
	remote := session.NewRedisBroadcaster(client)

	svc := session.NewService(hooks.NewEngine(), nil, "", session.WithRedisBroadcaster(remote))
	id := svc.CreateSession()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	remoteFrames, closeSub := remote.Subscribe(ctx, id)
	defer closeSub()
	time.Sleep(100 * time.Millisecond) // allow the subscription to register before SendInput

	require.NoError(t, svc.SendInput(id, "hi"))

	select {
	case fr := <-remoteFrames:
		assert.Equal(t, id, fr.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame published over redis")
	}
}

func TestServiceCancelClosesSubscriberChannel(t *testing.T) {
	svc := session.NewService(hooks.NewEngine(), nil, "")
	id := svc.CreateSession()

	ch, unsubscribe, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, svc.Cancel(id))

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected channel to be closed")
	}
}
