package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/oddlab/oddyssey/internal/model"
)

// InsertBankQuestion stores one curated fallback question.
func (s *Store) InsertBankQuestion(q model.BankQuestion) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO bank_questions (id, theme_id, prompt, difficulty, options)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			theme_id = excluded.theme_id,
			prompt = excluded.prompt,
			difficulty = excluded.difficulty,
			options = excluded.options`,
		q.ID, q.ThemeID, q.Prompt, q.Difficulty, string(options),
	)
	return err
}

// BankQuestionsByTheme returns all curated questions for a theme.
func (s *Store) BankQuestionsByTheme(themeID string) ([]model.BankQuestion, error) {
	rows, err := s.db.Query(
		`SELECT id, theme_id, prompt, difficulty, options FROM bank_questions WHERE theme_id = ? ORDER BY id`,
		themeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.BankQuestion
	for rows.Next() {
		var q model.BankQuestion
		var options string
		if err := rows.Scan(&q.ID, &q.ThemeID, &q.Prompt, &q.Difficulty, &options); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// BankCount returns the number of curated questions.
func (s *Store) BankCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM bank_questions`).Scan(&count)
	return count, err
}

// GetImportedFileHash returns the recorded hash of a questions file.
// Returns empty string and nil error when the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the hash of an imported questions file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, hash) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = ?`,
		path, hash, hash,
	)
	return err
}
