package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/oddlab/oddyssey/internal/model"
)

// CreatePlayer inserts a new player identity.
func (s *Store) CreatePlayer(p model.Player) error {
	_, err := s.db.Exec(
		`INSERT INTO players (id, username, display_name, email, avatar_url, password_hash, provider, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Username, p.DisplayName, p.Email, p.AvatarURL, p.PasswordHash, p.Provider, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create player", "username", p.Username, "error", err)
		return err
	}
	slog.Info("created player", "id", p.ID, "username", p.Username, "provider", p.Provider)
	return nil
}

// GetPlayerByUsername returns a player by username, or nil.
func (s *Store) GetPlayerByUsername(username string) (*model.Player, error) {
	return s.getPlayer(`username = ?`, username)
}

// GetPlayerByID returns a player by id, or nil.
func (s *Store) GetPlayerByID(id string) (*model.Player, error) {
	return s.getPlayer(`id = ?`, id)
}

func (s *Store) getPlayer(where string, arg any) (*model.Player, error) {
	var p model.Player
	err := s.db.QueryRow(
		`SELECT id, username, display_name, email, avatar_url, password_hash, provider, created_at
		 FROM players WHERE `+where, arg,
	).Scan(&p.ID, &p.Username, &p.DisplayName, &p.Email, &p.AvatarURL, &p.PasswordHash, &p.Provider, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PlayerCount returns the total number of players.
func (s *Store) PlayerCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM players`).Scan(&count)
	return count, err
}
