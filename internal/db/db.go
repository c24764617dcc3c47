package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/juris/internal/config"
	_ "modernc.org/sqlite"
)

// DownloadsDir is the subdirectory of baseDir that holds fetched documents.
const DownloadsDir = "downloads"

// dbFile is the database file name under baseDir.
const dbFile = "juris.db"

// connPragmas apply to every pooled connection.
const connPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// migration upgrades the schema to version.
type migration struct {
	version int
	name    string
	sql     string
}

// migrations run in order; each runs in its own transaction together with
// the user_version bump.
var migrations = []migration{
	{version: 1, name: "local library", sql: `
	CREATE TABLE IF NOT EXISTS notes (
	  id          TEXT PRIMARY KEY,
	  title       TEXT NOT NULL,
	  title_norm  TEXT NOT NULL,
	  body        TEXT NOT NULL,
	  body_chars  INTEGER NOT NULL,
	  tags_json   TEXT,
	  item_kind   TEXT,
	  item_id     TEXT,
	  created_at  INTEGER NOT NULL,
	  updated_at  INTEGER NOT NULL,
	  deleted_at  INTEGER
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_title_norm
	ON notes(title_norm)
	WHERE deleted_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_notes_updated
	ON notes(updated_at DESC)
	WHERE deleted_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_notes_item
	ON notes(item_kind, item_id)
	WHERE item_id IS NOT NULL AND deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS downloads (
	  id          TEXT PRIMARY KEY,
	  item_kind   TEXT NOT NULL,
	  item_id     TEXT NOT NULL,
	  title       TEXT,
	  path        TEXT NOT NULL,
	  bytes       INTEGER NOT NULL,
	  created_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_created
	ON downloads(created_at DESC);

	CREATE TABLE IF NOT EXISTS chat_messages (
	  id          TEXT PRIMARY KEY,
	  session_id  TEXT NOT NULL,
	  sender      TEXT NOT NULL,
	  text        TEXT NOT NULL,
	  voice       INTEGER NOT NULL DEFAULT 0,
	  tool_used   TEXT,
	  failed      INTEGER NOT NULL DEFAULT 0,
	  created_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_session
	ON chat_messages(session_id, created_at, id);
	`},
}

// CurrentSchemaVersion is the schema version after all migrations.
var CurrentSchemaVersion = migrations[len(migrations)-1].version

// Init opens (creating if needed) baseDir/juris.db and brings its schema up
// to date. Tests pass t.TempDir() for baseDir; the CLI uses ~/.juris.
func Init(baseDir string) (*sql.DB, error) {
	if err := privateDir(baseDir); err != nil {
		return nil, err
	}
	if err := privateDir(filepath.Join(baseDir, DownloadsDir)); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(baseDir, dbFile)
	db, err := sql.Open("sqlite", dbPath+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// privateDir creates dir readable only by the owner. The chmod is
// best-effort since some filesystems ignore modes.
func privateDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	_ = os.Chmod(dir, 0700)
	return nil
}

// ConfigurePool applies connection pool limits from config. Zero values keep
// the database/sql defaults.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

func migrate(db *sql.DB) error {
	current, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s): set version: %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): commit: %w", m.version, m.name, err)
		}
		current = m.version
	}
	return nil
}

// verifyWALMode fails unless the connection pragmas switched on WAL.
func verifyWALMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("read journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("journal mode is %q, want wal", mode)
	}
	return nil
}

// GetUserVersion returns the schema version stored in user_version.
func GetUserVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// SetUserVersion overwrites user_version.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("write user_version: %w", err)
	}
	return nil
}
