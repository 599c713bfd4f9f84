package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/clock"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

var hostEpoch = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func newTestHost(cfg HostConfig, runner CommandRunner) (*CommandHost, *[]domain.CaptureEvent) {
	host := NewCommandHostWithRunner(cfg, runner, clock.NewVirtualClock(hostEpoch), zap.NewNop())
	var events []domain.CaptureEvent
	host.SetListener(func(ev domain.CaptureEvent) { events = append(events, ev) })
	return host, &events
}

func TestCommandHost_Save(t *testing.T) {
	runner := newMockCommandRunner()
	host, events := newTestHost(HostConfig{SaveCommand: []string{"obs-cli", "replay", "save"}}, runner)

	require.NoError(t, host.Save(context.Background()))
	assert.Equal(t, []string{"obs-cli replay save"}, runner.calls)
	assert.Empty(t, *events)
}

func TestCommandHost_RestartEmitsStopThenStart(t *testing.T) {
	runner := newMockCommandRunner()
	host, events := newTestHost(HostConfig{
		StopCommand:  []string{"obs-cli", "replay", "stop"},
		StartCommand: []string{"obs-cli", "replay", "start"},
	}, runner)

	require.NoError(t, host.Restart(context.Background()))

	assert.Equal(t, []string{"obs-cli replay stop", "obs-cli replay start"}, runner.calls)
	require.Len(t, *events, 2)
	assert.Equal(t, domain.CaptureStopped, (*events)[0].Type)
	assert.Equal(t, domain.CaptureStarted, (*events)[1].Type)
	assert.Equal(t, hostEpoch, (*events)[1].At)
}

func TestCommandHost_RestartStopsOnFailure(t *testing.T) {
	runner := newMockCommandRunner()
	runner.errs["stopper"] = errors.New("host not running")
	host, events := newTestHost(HostConfig{
		StopCommand:  []string{"stopper"},
		StartCommand: []string{"starter"},
	}, runner)

	err := host.Restart(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"stopper"}, runner.calls)
	assert.Empty(t, *events)
}

func TestCommandHost_MissingCommand(t *testing.T) {
	host, _ := newTestHost(HostConfig{}, newMockCommandRunner())

	assert.ErrorIs(t, host.Save(context.Background()), ErrNoCommand)
	assert.ErrorIs(t, host.Start(context.Background()), ErrNoCommand)
}

func TestCommandHost_SceneName(t *testing.T) {
	t.Run("static", func(t *testing.T) {
		host, _ := newTestHost(HostConfig{SceneName: "Gaming"}, newMockCommandRunner())
		assert.Equal(t, "Gaming", host.CurrentSceneName())
	})

	t.Run("command output is trimmed", func(t *testing.T) {
		runner := newMockCommandRunner()
		runner.outputs["obs-cli"] = "Just Chatting\n"
		host, _ := newTestHost(HostConfig{SceneCommand: []string{"obs-cli", "scene", "current"}}, runner)
		assert.Equal(t, "Just Chatting", host.CurrentSceneName())
	})

	t.Run("command failure falls back to static", func(t *testing.T) {
		runner := newMockCommandRunner()
		runner.errs["obs-cli"] = errors.New("boom")
		host, _ := newTestHost(HostConfig{SceneCommand: []string{"obs-cli"}, SceneName: "Default"}, runner)
		assert.Equal(t, "Default", host.CurrentSceneName())
	})
}

func TestCommandHost_Retention(t *testing.T) {
	host, _ := newTestHost(HostConfig{RetentionSeconds: 300}, newMockCommandRunner())

	secs, err := host.BufferRetentionSeconds()
	require.NoError(t, err)
	assert.Equal(t, 300, secs)
}
