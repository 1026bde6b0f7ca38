package store

import (
	"testing"
	"time"

	"github.com/oddlab/oddyssey/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(sessionID, playerID string, score int, finishedAt time.Time) model.GameRecord {
	return model.GameRecord{
		SessionID:         sessionID,
		PlayerID:          playerID,
		PlayerDisplayName: "Player " + playerID,
		ThemeID:           "football",
		ThemeLabel:        "World Football",
		Status:            model.StatusFinished,
		Score:             score,
		RemainingTime:     0,
		StartedAt:         finishedAt.Add(-time.Minute),
		FinishedAt:        finishedAt,
		Questions: []model.PlayedQuestion{
			{
				Question: model.Question{
					ID:     "q1",
					Prompt: "odd one out?",
					Options: []model.Option{
						{ID: "q1-option-0", Text: "A"},
						{ID: "q1-option-1", Text: "B", IsOddOneOut: true},
					},
					OddOptionID: "q1-option-1",
				},
				ChosenOptionID: "q1-option-1",
				Outcome:        model.OutcomeCorrect,
			},
		},
	}
}

func TestSaveRecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	result, err := s.SaveRecord(testRecord("sess-1", "p1", 7, now))
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if !result.PersonalBest || !result.ThemeBest {
		t.Errorf("first record should be both bests, got %+v", result)
	}

	records, err := s.ListRecordsForPlayer("p1")
	if err != nil {
		t.Fatalf("ListRecordsForPlayer: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.SessionID != "sess-1" || rec.Score != 7 {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Questions) != 1 || rec.Questions[0].Outcome != model.OutcomeCorrect {
		t.Errorf("question history did not round-trip: %+v", rec.Questions)
	}
}

func TestSaveRecordUpsertsBySession(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	if _, err := s.SaveRecord(testRecord("sess-1", "p1", 3, now)); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if _, err := s.SaveRecord(testRecord("sess-1", "p1", 9, now.Add(time.Minute))); err != nil {
		t.Fatalf("SaveRecord (again): %v", err)
	}

	records, err := s.ListRecordsForPlayer("p1")
	if err != nil {
		t.Fatalf("ListRecordsForPlayer: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("upsert should keep one row, got %d", len(records))
	}
	if records[0].Score != 9 {
		t.Errorf("score = %d, want 9", records[0].Score)
	}
}

func TestSaveRecordBestFlags(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	if _, err := s.SaveRecord(testRecord("sess-1", "p1", 10, now)); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	// Lower score from another player: neither best.
	result, err := s.SaveRecord(testRecord("sess-2", "p2", 5, now.Add(time.Minute)))
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if !result.PersonalBest {
		t.Error("p2's only record should be their personal best")
	}
	if result.ThemeBest {
		t.Error("5 < 10 must not be the theme best")
	}

	// Higher score takes the theme best.
	result, err = s.SaveRecord(testRecord("sess-3", "p2", 12, now.Add(2*time.Minute)))
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if !result.PersonalBest || !result.ThemeBest {
		t.Errorf("12 should be both bests, got %+v", result)
	}
}

func TestRankingTieBreaksByRecentFinish(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if _, err := s.SaveRecord(testRecord("sess-old", "p1", 8, now)); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if _, err := s.SaveRecord(testRecord("sess-new", "p2", 8, now.Add(time.Hour))); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}

	entries, err := s.TopScores("football", 10)
	if err != nil {
		t.Fatalf("TopScores: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].SessionID != "sess-new" {
		t.Errorf("tie should rank the more recent finish first, got %s", entries[0].SessionID)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Errorf("ranks = %d, %d", entries[0].Rank, entries[1].Rank)
	}
}

func TestTopScoresFilterAndLimit(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	anime := testRecord("sess-a", "p1", 4, now)
	anime.ThemeID = "anime"
	anime.ThemeLabel = "Anime Universe"
	if _, err := s.SaveRecord(anime); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	for i, score := range []int{6, 2, 9} {
		rec := testRecord("sess-f"+string(rune('0'+i)), "p1", score, now.Add(time.Duration(i)*time.Minute))
		if _, err := s.SaveRecord(rec); err != nil {
			t.Fatalf("SaveRecord: %v", err)
		}
	}

	entries, err := s.TopScores("football", 2)
	if err != nil {
		t.Fatalf("TopScores: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("limit 2 should cap entries, got %d", len(entries))
	}
	if entries[0].Score != 9 || entries[1].Score != 6 {
		t.Errorf("scores = %d, %d, want 9, 6", entries[0].Score, entries[1].Score)
	}

	// "all" and empty theme mean unfiltered.
	for _, themeID := range []string{"all", ""} {
		entries, err = s.TopScores(themeID, 10)
		if err != nil {
			t.Fatalf("TopScores(%q): %v", themeID, err)
		}
		if len(entries) != 4 {
			t.Errorf("TopScores(%q) = %d entries, want 4", themeID, len(entries))
		}
	}
}

func TestClearRecords(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.SaveRecord(testRecord("sess-1", "p1", 3, time.Now().UTC())); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if err := s.ClearRecords(); err != nil {
		t.Fatalf("ClearRecords: %v", err)
	}

	entries, err := s.TopScores("", 10)
	if err != nil {
		t.Fatalf("TopScores: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty leaderboard after clear, got %d", len(entries))
	}
}

func TestPlayerCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.PlayerCount()
	if err != nil {
		t.Fatalf("PlayerCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 players, got %d", count)
	}

	p := model.Player{
		ID:           "p1",
		Username:     "alice",
		DisplayName:  "Alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Provider:     model.ProviderLocal,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreatePlayer(p); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}

	got, err := s.GetPlayerByUsername("alice")
	if err != nil {
		t.Fatalf("GetPlayerByUsername: %v", err)
	}
	if got == nil || got.ID != "p1" || got.Provider != model.ProviderLocal {
		t.Errorf("player = %+v", got)
	}

	got, err = s.GetPlayerByID("p1")
	if err != nil {
		t.Fatalf("GetPlayerByID: %v", err)
	}
	if got == nil || got.Username != "alice" {
		t.Errorf("player = %+v", got)
	}

	// Unknown lookups return nil, not an error.
	got, err = s.GetPlayerByUsername("bob")
	if err != nil {
		t.Fatalf("GetPlayerByUsername(bob): %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown username, got %+v", got)
	}

	// Duplicate usernames are rejected.
	dup := p
	dup.ID = "p2"
	if err := s.CreatePlayer(dup); err == nil {
		t.Error("duplicate username should fail")
	}
}

func TestAuthSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	token, err := s.CreateAuthSession("p1")
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token))
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.PlayerID != "p1" {
		t.Fatalf("session = %+v", sess)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, err = s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession after delete: %v", err)
	}
	if sess != nil {
		t.Error("deleted session should not resolve")
	}

	// Unknown tokens resolve to nil without error.
	sess, err = s.GetAuthSession("nope")
	if err != nil {
		t.Fatalf("GetAuthSession(nope): %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil, got %+v", sess)
	}
}

func TestExpiredAuthSessionIsDropped(t *testing.T) {
	s := newTestStore(t)

	token, err := s.CreateAuthSession("p1")
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}

	// Force the session into the past.
	if _, err := s.db.Exec(
		`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`,
		time.Now().Add(-time.Hour), token,
	); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess != nil {
		t.Error("expired session should not resolve")
	}
}

func TestBankQuestions(t *testing.T) {
	s := newTestStore(t)

	count, err := s.BankCount()
	if err != nil {
		t.Fatalf("BankCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty bank, got %d", count)
	}

	q := model.BankQuestion{
		ID:         "football-easy-1",
		ThemeID:    "football",
		Prompt:     "odd one out?",
		Difficulty: model.DifficultyEasy,
		Options: []model.BankOption{
			{Text: "A"}, {Text: "B"}, {Text: "C", IsOddOneOut: true}, {Text: "D"},
		},
	}
	if err := s.InsertBankQuestion(q); err != nil {
		t.Fatalf("InsertBankQuestion: %v", err)
	}

	// Re-insert with changed content: upsert, not duplicate.
	q.Prompt = "updated prompt"
	if err := s.InsertBankQuestion(q); err != nil {
		t.Fatalf("InsertBankQuestion (upsert): %v", err)
	}

	got, err := s.BankQuestionsByTheme("football")
	if err != nil {
		t.Fatalf("BankQuestionsByTheme: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 question, got %d", len(got))
	}
	if got[0].Prompt != "updated prompt" {
		t.Errorf("prompt = %q", got[0].Prompt)
	}
	if len(got[0].Options) != 4 || !got[0].Options[2].IsOddOneOut {
		t.Errorf("options did not round-trip: %+v", got[0].Options)
	}

	got, err = s.BankQuestionsByTheme("anime")
	if err != nil {
		t.Fatalf("BankQuestionsByTheme(anime): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no anime questions, got %d", len(got))
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("questions/football.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash for unknown path, got %q", hash)
	}

	if err := s.SetImportedFileHash("questions/football.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash("questions/football.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("hash = %q, want abc123", hash)
	}

	// Overwrite on re-import.
	if err := s.SetImportedFileHash("questions/football.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash (update): %v", err)
	}
	hash, _ = s.GetImportedFileHash("questions/football.json")
	if hash != "def456" {
		t.Errorf("hash = %q, want def456", hash)
	}
}
