package infra

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	ledgerDBName      = "clips.db"
	ledgerKeyFileName = ".ledger_key"
	ledgerKeySize     = 32 // 256-bit SQLCipher raw key
)

// ErrNoLedger is returned by OpenExistingLedger before the first clip is saved.
var ErrNoLedger = errors.New("no clip ledger yet")

// OpenLedger opens the ledger in dataDir, generating its key on first use.
// A database without its key is never replaced, since that would orphan
// the recorded clips.
func OpenLedger(dataDir string) (*EncryptedLedger, error) {
	key, err := readLedgerKey(dataDir)
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(filepath.Join(dataDir, ledgerDBName)); statErr == nil {
			return nil, fmt.Errorf("%s exists but its key is missing; move it aside to start a new ledger", ledgerDBName)
		}
		key, err = createLedgerKey(dataDir)
	}
	if err != nil {
		return nil, err
	}
	return NewEncryptedLedger(dataDir, key)
}

// OpenExistingLedger opens the ledger read side for the clips command.
// It returns ErrNoLedger instead of creating one.
func OpenExistingLedger(dataDir string) (*EncryptedLedger, error) {
	key, err := readLedgerKey(dataDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoLedger
	}
	if err != nil {
		return nil, err
	}
	return NewEncryptedLedger(dataDir, key)
}

// readLedgerKey reads the hex key, the same form the DSN carries.
func readLedgerKey(dataDir string) ([]byte, error) {
	encoded, err := os.ReadFile(filepath.Join(dataDir, ledgerKeyFileName))
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil || len(key) != ledgerKeySize {
		return nil, fmt.Errorf("corrupt ledger key in %s", dataDir)
	}
	return key, nil
}

// createLedgerKey writes a fresh key with O_EXCL. If another process won
// the race, its key is used.
func createLedgerKey(dataDir string) ([]byte, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	key := make([]byte, ledgerKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate ledger key: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dataDir, ledgerKeyFileName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return readLedgerKey(dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger key: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("failed to write ledger key: %w", err)
	}
	return key, f.Sync()
}

// EncryptedLedger implements domain.ClipLedger using a SQLCipher encrypted
// SQLite database. Clip paths reveal what the user plays, so they are kept
// encrypted at rest.
type EncryptedLedger struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedLedger opens (or creates) the ledger database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedLedger(dataDir string, key []byte) (*EncryptedLedger, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, ledgerDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// Verify the key works by running a query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	ledger := &EncryptedLedger{db: db, dbPath: dbPath}
	if err := ledger.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return ledger, nil
}

func (l *EncryptedLedger) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_path TEXT NOT NULL,
		target_path TEXT NOT NULL,
		link_path TEXT DEFAULT '',
		base_name TEXT NOT NULL,
		mode TEXT NOT NULL,
		forced INTEGER NOT NULL DEFAULT 0,
		saved_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clips_saved_at ON clips (saved_at);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Record stores a saved clip and returns its row id.
func (l *EncryptedLedger) Record(clip domain.SavedClip) (int64, error) {
	forced := 0
	if clip.Forced {
		forced = 1
	}
	result, err := l.db.Exec(`
		INSERT INTO clips (source_path, target_path, link_path, base_name, mode, forced, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		clip.SourcePath, clip.TargetPath, clip.LinkPath, clip.BaseName,
		clip.Mode.String(), forced, clip.SavedAt.UnixNano(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// Recent returns up to limit clips, newest first.
func (l *EncryptedLedger) Recent(limit int) ([]domain.SavedClip, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := l.db.Query(`
		SELECT id, source_path, target_path, link_path, base_name, mode, forced, saved_at
		FROM clips ORDER BY saved_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []domain.SavedClip
	for rows.Next() {
		var (
			clip    domain.SavedClip
			mode    string
			forced  int
			savedAt int64
		)
		if err := rows.Scan(&clip.ID, &clip.SourcePath, &clip.TargetPath, &clip.LinkPath,
			&clip.BaseName, &mode, &forced, &savedAt); err != nil {
			return nil, err
		}
		if m, err := domain.ParseNamingMode(mode); err == nil {
			clip.Mode = m
		}
		clip.Forced = forced != 0
		clip.SavedAt = time.Unix(0, savedAt)
		clips = append(clips, clip)
	}
	return clips, rows.Err()
}

// Path returns the database file path.
func (l *EncryptedLedger) Path() string {
	return l.dbPath
}

// Close releases the database connection.
func (l *EncryptedLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Ensure EncryptedLedger implements domain.ClipLedger.
var _ domain.ClipLedger = (*EncryptedLedger)(nil)
