package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/oddlab/oddyssey/internal/model"
)

// rankedOrder is the leaderboard ranking: score descending, ties
// broken by most recent finish.
const rankedOrder = `ORDER BY score DESC, finished_at DESC`

const recordColumns = `session_id, player_id, player_display_name, theme_id, theme_label,
	 status, score, remaining_time, started_at, finished_at, questions`

// SaveRecord upserts a finished session by session id and reports
// whether it is now the player's best for its theme and the best for
// its theme across all players.
func (s *Store) SaveRecord(rec model.GameRecord) (model.SaveResult, error) {
	questions, err := json.Marshal(rec.Questions)
	if err != nil {
		return model.SaveResult{}, fmt.Errorf("marshal questions: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO game_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			player_id = excluded.player_id,
			player_display_name = excluded.player_display_name,
			theme_id = excluded.theme_id,
			theme_label = excluded.theme_label,
			status = excluded.status,
			score = excluded.score,
			remaining_time = excluded.remaining_time,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			questions = excluded.questions`,
		rec.SessionID, rec.PlayerID, rec.PlayerDisplayName, rec.ThemeID, rec.ThemeLabel,
		rec.Status, rec.Score, rec.RemainingTime, rec.StartedAt, rec.FinishedAt, string(questions),
	)
	if err != nil {
		return model.SaveResult{}, fmt.Errorf("save record: %w", err)
	}

	var result model.SaveResult
	personal, err := s.bestSessionID(`theme_id = ? AND player_id = ?`, rec.ThemeID, rec.PlayerID)
	if err != nil {
		return result, err
	}
	result.PersonalBest = personal == rec.SessionID

	global, err := s.bestSessionID(`theme_id = ?`, rec.ThemeID)
	if err != nil {
		return result, err
	}
	result.ThemeBest = global == rec.SessionID
	return result, nil
}

func (s *Store) bestSessionID(where string, args ...any) (string, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT session_id FROM game_records WHERE `+where+` `+rankedOrder+` LIMIT 1`, args...,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("rank records: %w", err)
	}
	return id, nil
}

// ListRecordsForPlayer returns a player's records, ranked.
func (s *Store) ListRecordsForPlayer(playerID string) ([]model.GameRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+recordColumns+` FROM game_records WHERE player_id = ? `+rankedOrder, playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// TopScores returns the ranked leaderboard rows, optionally filtered
// to one theme ("all" or empty means unfiltered), truncated to limit.
func (s *Store) TopScores(themeID string, limit int) ([]model.HighScoreEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + recordColumns + ` FROM game_records`
	var args []any
	if themeID != "" && themeID != "all" {
		query += ` WHERE theme_id = ?`
		args = append(args, themeID)
	}
	query += ` ` + rankedOrder + ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	entries := make([]model.HighScoreEntry, len(records))
	for i, rec := range records {
		entries[i] = model.HighScoreEntry{
			Rank:              i + 1,
			SessionID:         rec.SessionID,
			PlayerID:          rec.PlayerID,
			PlayerDisplayName: rec.PlayerDisplayName,
			Score:             rec.Score,
			ThemeID:           rec.ThemeID,
			FinishedAt:        rec.FinishedAt,
		}
	}
	return entries, nil
}

// ClearRecords wipes all persisted records.
func (s *Store) ClearRecords() error {
	_, err := s.db.Exec(`DELETE FROM game_records`)
	return err
}

// ListAllRecords returns every record, ranked. Used by export.
func (s *Store) ListAllRecords() ([]model.GameRecord, error) {
	rows, err := s.db.Query(`SELECT ` + recordColumns + ` FROM game_records ` + rankedOrder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]model.GameRecord, error) {
	var records []model.GameRecord
	for rows.Next() {
		var rec model.GameRecord
		var questions string
		if err := rows.Scan(
			&rec.SessionID, &rec.PlayerID, &rec.PlayerDisplayName, &rec.ThemeID, &rec.ThemeLabel,
			&rec.Status, &rec.Score, &rec.RemainingTime, &rec.StartedAt, &rec.FinishedAt, &questions,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(questions), &rec.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions for %s: %w", rec.SessionID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
