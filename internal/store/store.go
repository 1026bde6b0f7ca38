// Package store persists game records, player identities, and the
// curated question bank in a local SQLite database.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT 'local',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (player_id) REFERENCES players(id)
	);

	CREATE TABLE IF NOT EXISTS game_records (
		session_id TEXT PRIMARY KEY,
		player_id TEXT NOT NULL,
		player_display_name TEXT NOT NULL,
		theme_id TEXT NOT NULL,
		theme_label TEXT NOT NULL,
		status TEXT NOT NULL,
		score INTEGER NOT NULL,
		remaining_time INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		questions TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS bank_questions (
		id TEXT PRIMARY KEY,
		theme_id TEXT NOT NULL,
		prompt TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		options TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bank_questions_theme ON bank_questions(theme_id);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
