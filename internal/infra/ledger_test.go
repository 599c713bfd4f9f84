package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// newTestLedger creates an encrypted ledger in a temp directory for testing.
func newTestLedger(t *testing.T) (*EncryptedLedger, string, []byte) {
	t.Helper()
	dataDir := t.TempDir()
	ledger, err := OpenLedger(dataDir)
	require.NoError(t, err)

	key, err := readLedgerKey(dataDir)
	require.NoError(t, err)

	t.Cleanup(func() { ledger.Close() })
	return ledger, dataDir, key
}

func TestEncryptedLedger_RecordAndRecent(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	base := time.Date(2024, 2, 1, 20, 0, 0, 0, time.UTC)

	clips := []domain.SavedClip{
		{SourcePath: "/raw/1.mkv", TargetPath: "/videos/Dota/a.mkv", BaseName: "Dota", Mode: domain.NamingCurrentProcess, SavedAt: base},
		{SourcePath: "/raw/2.mkv", TargetPath: "/videos/Dota/b.mkv", LinkPath: "/videos/_links/b.mkv", BaseName: "Dota", Mode: domain.NamingMostRecordedProcess, Forced: true, SavedAt: base.Add(time.Minute)},
		{SourcePath: "/raw/3.mkv", TargetPath: "/videos/Main/c.mkv", BaseName: "Main", Mode: domain.NamingCurrentScene, SavedAt: base.Add(2 * time.Minute)},
	}
	for i, c := range clips {
		id, err := ledger.Record(c)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}

	recent, err := ledger.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.Equal(t, "/videos/Main/c.mkv", recent[0].TargetPath)
	assert.Equal(t, domain.NamingCurrentScene, recent[0].Mode)

	assert.Equal(t, "/videos/_links/b.mkv", recent[1].LinkPath)
	assert.True(t, recent[1].Forced)
	assert.Equal(t, domain.NamingMostRecordedProcess, recent[1].Mode)
	assert.True(t, recent[1].SavedAt.Equal(base.Add(time.Minute)))
}

func TestEncryptedLedger_RecentEmpty(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	recent, err := ledger.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	recent, err = ledger.Recent(0)
	require.NoError(t, err)
	assert.Nil(t, recent)
}

func TestEncryptedLedger_PersistsAcrossReopen(t *testing.T) {
	ledger, dataDir, key := newTestLedger(t)
	_, err := ledger.Record(domain.SavedClip{TargetPath: "/videos/x.mkv", BaseName: "x", SavedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	reopened, err := NewEncryptedLedger(dataDir, key)
	require.NoError(t, err)
	defer reopened.Close()

	recent, err := reopened.Recent(5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "/videos/x.mkv", recent[0].TargetPath)
}

func TestEncryptedLedger_WrongKeyFails(t *testing.T) {
	ledger, dataDir, _ := newTestLedger(t)
	_, err := ledger.Record(domain.SavedClip{TargetPath: "/videos/x.mkv", BaseName: "x", SavedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	wrongKey := make([]byte, ledgerKeySize)
	_, err = NewEncryptedLedger(dataDir, wrongKey)
	assert.Error(t, err)
}

func TestEncryptedLedger_FileIsNotPlaintext(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	_, err := ledger.Record(domain.SavedClip{TargetPath: "/videos/secret-game/x.mkv", BaseName: "secret-game", SavedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	data, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "SQLite format 3")
	assert.NotContains(t, string(data), "secret-game")
}

func TestOpenLedger_KeyFile(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested")
	ledger, err := OpenLedger(dataDir)
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	info, err := os.Stat(filepath.Join(dataDir, ledgerKeyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	first, err := readLedgerKey(dataDir)
	require.NoError(t, err)

	reopened, err := OpenLedger(dataDir)
	require.NoError(t, err)
	defer reopened.Close()

	second, err := readLedgerKey(dataDir)
	require.NoError(t, err)
	assert.Equal(t, first, second, "reopening must keep the key")
}

func TestOpenLedger_RefusesToOrphanDatabase(t *testing.T) {
	ledger, dataDir, _ := newTestLedger(t)
	require.NoError(t, ledger.Close())
	require.NoError(t, os.Remove(filepath.Join(dataDir, ledgerKeyFileName)))

	_, err := OpenLedger(dataDir)
	assert.ErrorContains(t, err, "key is missing")
	_, err = os.Stat(filepath.Join(dataDir, ledgerKeyFileName))
	assert.True(t, os.IsNotExist(err), "no new key may be written")
}

func TestOpenExistingLedger(t *testing.T) {
	_, err := OpenExistingLedger(t.TempDir())
	assert.ErrorIs(t, err, ErrNoLedger)

	ledger, dataDir, _ := newTestLedger(t)
	_, err = ledger.Record(domain.SavedClip{TargetPath: "/videos/x.mkv", BaseName: "x", SavedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	existing, err := OpenExistingLedger(dataDir)
	require.NoError(t, err)
	defer existing.Close()

	recent, err := existing.Recent(1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestReadLedgerKey_Corrupt(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, ledgerKeyFileName), []byte("not hex"), 0600))

	_, err := readLedgerKey(dataDir)
	assert.ErrorContains(t, err, "corrupt ledger key")
}
