package model

import (
	"context"
	"time"
)

// Provider identifies how a player identity was established.
type Provider string

const (
	// ProviderLocal is a password-registered local account.
	ProviderLocal Provider = "local"
	// ProviderGuest is an ad-hoc guest identity.
	ProviderGuest Provider = "guest"
)

// Player represents a persisted player identity.
type Player struct {
	ID           string
	Username     string
	DisplayName  string
	Email        string
	AvatarURL    string
	PasswordHash string
	Provider     Provider
	CreatedAt    time.Time
}

// AuthSession represents an authentication session token.
type AuthSession struct {
	ID        string
	PlayerID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type playerCtxKey struct{}

// ContextWithPlayer stores a player in the request context.
func ContextWithPlayer(ctx context.Context, p *Player) context.Context {
	return context.WithValue(ctx, playerCtxKey{}, p)
}

// PlayerFromContext retrieves the authenticated player from context, or nil.
func PlayerFromContext(ctx context.Context) *Player {
	p, _ := ctx.Value(playerCtxKey{}).(*Player)
	return p
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// GameStatus represents the state of a game session.
type GameStatus string

const (
	StatusIdle     GameStatus = "idle"
	StatusLoading  GameStatus = "loading"
	StatusRunning  GameStatus = "running"
	StatusFinished GameStatus = "finished"
	StatusError    GameStatus = "error"
)

// QuestionSource tags where a question came from.
type QuestionSource string

const (
	SourceGenerated QuestionSource = "generated"
	SourceFallback  QuestionSource = "fallback"
)

// Theme describes one playable trivia theme.
type Theme struct {
	ID             string       `json:"id"`
	Label          string       `json:"label"`
	Description    string       `json:"description"`
	Icon           string       `json:"icon"`
	AccentColor    string       `json:"accent_color"`
	DifficultyRamp []Difficulty `json:"difficulty_ramp"`
	ComingSoon     bool         `json:"coming_soon,omitempty"`
}

// Option is a single answer choice on a question.
type Option struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	IsOddOneOut bool   `json:"is_odd_one_out"`
}

// Question is one odd-one-out question. Exactly one option carries the
// odd flag; option ids are unique within the question.
type Question struct {
	ID          string         `json:"id"`
	Seed        string         `json:"seed"`
	Prompt      string         `json:"prompt"`
	ThemeID     string         `json:"theme_id"`
	Difficulty  Difficulty     `json:"difficulty"`
	Options     []Option       `json:"options"`
	OddOptionID string         `json:"odd_option_id"`
	Source      QuestionSource `json:"source"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// PowerCardType identifies a power card.
type PowerCardType string

const (
	CardSwap        PowerCardType = "swap"
	CardRemoveWrong PowerCardType = "remove-wrong"
	CardDoubleScore PowerCardType = "double-score"
	CardKeepTime    PowerCardType = "keep-time"
)

// PowerCardTypes lists all cards in display order.
var PowerCardTypes = []PowerCardType{CardSwap, CardRemoveWrong, CardDoubleScore, CardKeepTime}

// PowerCard tracks one card's remaining uses within a session.
type PowerCard struct {
	Type      PowerCardType `json:"type"`
	Remaining int           `json:"remaining"`
	Active    bool          `json:"active"`
}

// ActiveModifiers are per-question flags reset on every new question.
type ActiveModifiers struct {
	DoubleScore bool `json:"double_score"`
	KeepTime    bool `json:"keep_time"`
}

// Outcome is the result of playing one question.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeSkipped   Outcome = "skipped"
)

// PlayedQuestion records one answered or skipped question. Immutable
// once appended to a session.
type PlayedQuestion struct {
	Question           Question        `json:"question"`
	ChosenOptionID     string          `json:"chosen_option_id,omitempty"`
	Outcome            Outcome         `json:"outcome"`
	AnsweredAt         time.Time       `json:"answered_at"`
	TimeRemainingAfter int             `json:"time_remaining_after"`
	PowerCardsUsed     []PowerCardType `json:"power_cards_used,omitempty"`
}

// GameSnapshot is a read-only copy of session state handed to
// transport and persistence layers.
type GameSnapshot struct {
	SessionID       string                      `json:"session_id"`
	ThemeID         string                      `json:"theme_id"`
	ThemeLabel      string                      `json:"theme_label"`
	Status          GameStatus                  `json:"status"`
	RemainingTime   int                         `json:"remaining_time"`
	Score           int                         `json:"score"`
	CurrentQuestion *Question                   `json:"current_question,omitempty"`
	TotalQuestions  int                         `json:"total_questions"`
	StartedAt       time.Time                   `json:"started_at"`
	FinishedAt      *time.Time                  `json:"finished_at,omitempty"`
	PowerCards      map[PowerCardType]PowerCard `json:"power_cards"`
	ActiveModifiers ActiveModifiers             `json:"active_modifiers"`
	LastError       string                      `json:"last_error,omitempty"`
}

// GameRecord is a finished session persisted for the high-score list.
// Keyed by session id: re-saving the same session overwrites.
type GameRecord struct {
	SessionID         string           `json:"session_id"`
	PlayerID          string           `json:"player_id"`
	PlayerDisplayName string           `json:"player_display_name"`
	ThemeID           string           `json:"theme_id"`
	ThemeLabel        string           `json:"theme_label"`
	Status            GameStatus       `json:"status"`
	Score             int              `json:"score"`
	RemainingTime     int              `json:"remaining_time"`
	StartedAt         time.Time        `json:"started_at"`
	FinishedAt        time.Time        `json:"finished_at"`
	Questions         []PlayedQuestion `json:"questions"`
}

// HighScoreEntry is one leaderboard row projected from a GameRecord.
type HighScoreEntry struct {
	Rank              int       `json:"rank"`
	SessionID         string    `json:"session_id"`
	PlayerID          string    `json:"player_id"`
	PlayerDisplayName string    `json:"player_display_name"`
	Score             int       `json:"score"`
	ThemeID           string    `json:"theme_id"`
	FinishedAt        time.Time `json:"finished_at"`
}

// BankOption is one raw option in the curated question bank.
type BankOption struct {
	Text        string `json:"text"`
	IsOddOneOut bool   `json:"is_odd_one_out"`
}

// BankQuestion is one curated fallback question as stored in the bank.
type BankQuestion struct {
	ID         string       `json:"id"`
	ThemeID    string       `json:"theme_id"`
	Prompt     string       `json:"prompt"`
	Difficulty Difficulty   `json:"difficulty"`
	Options    []BankOption `json:"options"`
}

// QuestionImport is the shape of a curated question in the JSON files
// loaded at startup.
type QuestionImport struct {
	ID         string       `json:"id"`
	Prompt     string       `json:"prompt"`
	Difficulty Difficulty   `json:"difficulty"`
	Options    []BankOption `json:"options"`
}

// SaveResult reports whether a saved record set new bests.
type SaveResult struct {
	PersonalBest bool `json:"personal_best"`
	ThemeBest    bool `json:"theme_best"`
}
