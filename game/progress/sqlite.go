package progress

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const progressKey = "max_unlocked_level"

// SQLiteStore keeps progress in a single-row key/value table
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the progress database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS progress (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init progress schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) LoadProgress() (int, error) {
	var level int
	err := s.db.QueryRow(`SELECT value FROM progress WHERE key = ?`, progressKey).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultLevel, nil
	}
	if err != nil {
		return DefaultLevel, fmt.Errorf("query progress: %w", err)
	}
	if level < DefaultLevel {
		return DefaultLevel, nil
	}
	return level, nil
}

func (s *SQLiteStore) SaveProgress(level int) error {
	if err := checkLevel(level); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO progress (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		progressKey, level)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ResetProgress() error {
	if _, err := s.db.Exec(`DELETE FROM progress WHERE key = ?`, progressKey); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
