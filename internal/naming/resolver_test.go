package naming

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/alias"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/replay_mon/internal/history"
)

type mockForeground struct {
	id    domain.ProgramIdentity
	err   error
	calls int
}

func (m *mockForeground) ForegroundProgram() (domain.ProgramIdentity, error) {
	m.calls++
	return m.id, m.err
}

type mockScene struct {
	name string
}

func (m *mockScene) CurrentSceneName() string { return m.name }

func newTestResolver(t *testing.T, fg *mockForeground, scene string) *Resolver {
	t.Helper()
	table, err := alias.Parse([]string{
		"/games/Dota 2 > Dota",
		"/usr/bin/firefox > Browser",
	})
	require.NoError(t, err)
	return NewResolver(fg, &mockScene{name: scene}, table, zap.NewNop())
}

func TestBaseName_CurrentProcess(t *testing.T) {
	tests := []struct {
		name string
		id   domain.ProgramIdentity
		want string
	}{
		{"alias of ancestor", "/games/Dota 2/bin/dota2", "Dota"},
		{"exact alias", "/usr/bin/firefox", "Browser"},
		{"stem fallback", "/opt/tools/obs-studio.bin", "obs-studio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, &mockForeground{id: tt.id}, "")
			got, err := r.BaseName(domain.NamingCurrentProcess, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBaseName_MostRecordedUsesHistory(t *testing.T) {
	fg := &mockForeground{id: "/usr/bin/firefox"}
	r := newTestResolver(t, fg, "")

	hist := history.NewBounded(10)
	hist.Record("/games/Dota 2/bin/dota2")
	hist.Record("/games/Dota 2/bin/dota2")
	hist.Record("/usr/bin/firefox")

	got, err := r.BaseName(domain.NamingMostRecordedProcess, nil, hist)
	require.NoError(t, err)
	assert.Equal(t, "Dota", got)
	assert.Equal(t, 0, fg.calls, "a non-empty history must not sample")
}

func TestBaseName_MostRecordedEmptyHistoryFallsBackToCurrent(t *testing.T) {
	fg := &mockForeground{id: "/usr/bin/firefox"}
	r := newTestResolver(t, fg, "")

	got, err := r.BaseName(domain.NamingMostRecordedProcess, nil, history.NewBounded(10))
	require.NoError(t, err)
	assert.Equal(t, "Browser", got)
	assert.Equal(t, 1, fg.calls)
}

func TestBaseName_CurrentSceneIsVerbatim(t *testing.T) {
	r := newTestResolver(t, &mockForeground{err: errors.New("unused")}, "Scene: Main")

	got, err := r.BaseName(domain.NamingCurrentScene, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Scene: Main", got)
}

func TestBaseName_ForcedModeOverridesConfigured(t *testing.T) {
	r := newTestResolver(t, &mockForeground{id: "/usr/bin/firefox"}, "Gameplay")

	forced := domain.NamingCurrentScene
	got, err := r.BaseName(domain.NamingCurrentProcess, &forced, nil)
	require.NoError(t, err)
	assert.Equal(t, "Gameplay", got)
}

func TestBaseName_ProbeFailure(t *testing.T) {
	probeErr := fmt.Errorf("%w: no focused window", domain.ErrProbe)
	r := newTestResolver(t, &mockForeground{err: probeErr}, "")

	_, err := r.BaseName(domain.NamingCurrentProcess, nil, nil)

	var re *domain.ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, domain.NamingCurrentProcess, re.Mode)
	assert.ErrorIs(t, err, domain.ErrProbe)
}

func TestBaseName_AliasStoreReloadIsVisible(t *testing.T) {
	store := alias.NewStore()
	r := NewResolver(&mockForeground{id: "/usr/bin/mpv"}, &mockScene{}, store, zap.NewNop())

	got, err := r.BaseName(domain.NamingCurrentProcess, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "mpv", got)

	require.NoError(t, store.Rebuild([]string{"/usr/bin > System"}))
	got, err = r.BaseName(domain.NamingCurrentProcess, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "System", got)
}
