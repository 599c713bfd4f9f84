package infra

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

func TestLogNotifier_UsesDisplayMode(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(domain.DisplayFolderAndFile, zap.New(core))

	n.ClipSaved(domain.SavedClip{TargetPath: "/videos/Dota/clip.mp4"})

	entries := logs.FilterMessage("clip ready").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Dota/clip.mp4", entries[0].ContextMap()["path"])
}

func TestCommandNotifier_AppendsTitleAndMessage(t *testing.T) {
	runner := newMockCommandRunner()
	n := NewCommandNotifierWithRunner([]string{"notify-send", "-a", "replaymon"}, domain.DisplayJustFile, runner, zap.NewNop())
	require.NotNil(t, n)

	n.ClipSaved(domain.SavedClip{TargetPath: "/videos/Dota/clip.mp4"})
	n.ClipFailed(errors.New("disk full"))

	assert.Equal(t, []string{
		"notify-send -a replaymon Clip saved clip.mp4",
		"notify-send -a replaymon Clip not saved disk full",
	}, runner.calls)
}

func TestCommandNotifier_EmptyCommand(t *testing.T) {
	assert.Nil(t, NewCommandNotifier(nil, domain.DisplayFullPath, zap.NewNop()))
}

func TestCommandNotifier_RunnerErrorIsSwallowed(t *testing.T) {
	runner := newMockCommandRunner()
	runner.errs["notify-send"] = errors.New("no dbus")
	core, logs := observer.New(zap.WarnLevel)
	n := NewCommandNotifierWithRunner([]string{"notify-send"}, domain.DisplayFullPath, runner, zap.New(core))

	n.ClipSaved(domain.SavedClip{TargetPath: "/videos/a.mp4"})
	assert.Equal(t, 1, logs.FilterMessage("notification command failed").Len())
}

func TestMultiNotifier_FansOut(t *testing.T) {
	r1, r2 := newMockCommandRunner(), newMockCommandRunner()
	m := MultiNotifier{
		NewCommandNotifierWithRunner([]string{"a"}, domain.DisplayJustFile, r1, zap.NewNop()),
		NewCommandNotifierWithRunner([]string{"b"}, domain.DisplayJustFile, r2, zap.NewNop()),
	}

	m.ClipSaved(domain.SavedClip{TargetPath: "/x/y.mp4"})
	assert.Len(t, r1.calls, 1)
	assert.Len(t, r2.calls, 1)
}
