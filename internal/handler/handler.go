// Package handler exposes the game engine and stores over a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/oddlab/oddyssey/internal/game"
	appI18n "github.com/oddlab/oddyssey/internal/i18n"
	"github.com/oddlab/oddyssey/internal/model"
	"github.com/oddlab/oddyssey/internal/question"
	"github.com/oddlab/oddyssey/internal/store"
	"github.com/oddlab/oddyssey/internal/theme"
)

// Config holds runtime parameters set via CLI flags.
type Config struct {
	SecureCookies bool
	GameDuration  int
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	engine *game.Engine
	config Config

	mu       sync.Mutex
	player   *model.Player // owner of the current session
	lastSave *model.SaveResult
}

// New creates a Handler and the engine it drives. Finished sessions
// are persisted through the engine's finish hook.
func New(s *store.Store, src game.Fetcher, cfg Config) *Handler {
	h := &Handler{store: s, config: cfg}

	opts := []game.Option{game.WithFinishHook(h.persistFinished)}
	if cfg.GameDuration > 0 {
		opts = append(opts, game.WithDuration(cfg.GameDuration))
	}
	h.engine = game.New(src, opts...)
	return h
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/guest", h.handleGuest)
	r.Post("/auth/logout", h.handleLogout)

	r.Get("/themes", h.handleThemes)
	r.Get("/scores", h.handleScores)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/me", h.handleMe)
		r.Get("/me/records", h.handleMyRecords)
		r.Post("/game/start", h.handleStartGame)
		r.Get("/game", h.handleGameState)
		r.Post("/game/answer", h.handleAnswer)
		r.Post("/game/skip", h.handleSkip)
		r.Post("/game/power/{type}", h.handlePowerCard)
		r.Post("/game/finish", h.handleFinish)
	})
}

func (h *Handler) handleThemes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, theme.All())
}

func (h *Handler) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ThemeID string `json:"theme_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.mu.Lock()
	h.player = model.PlayerFromContext(r.Context())
	h.lastSave = nil
	h.mu.Unlock()

	err := h.engine.Start(r.Context(), body.ThemeID)
	switch {
	case errors.Is(err, game.ErrUnknownTheme):
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "UnknownTheme"))
		return
	case errors.Is(err, question.ErrExhausted):
		respondError(w, http.StatusConflict, appI18n.T(r.Context(), "ThemeExhausted"))
		return
	case err != nil:
		slog.Error("failed to start game", "theme", body.ThemeID, "error", err)
		respondError(w, http.StatusInternalServerError, "could not start game")
		return
	}

	respondJSON(w, http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) handleGameState(w http.ResponseWriter, r *http.Request) {
	h.respondGame(w, r)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OptionID string `json:"option_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.engine.Answer(r.Context(), body.OptionID)
	h.respondGame(w, r)
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	h.engine.Skip(r.Context())
	h.respondGame(w, r)
}

func (h *Handler) handlePowerCard(w http.ResponseWriter, r *http.Request) {
	cardType := model.PowerCardType(chi.URLParam(r, "type"))
	h.engine.UsePowerCard(r.Context(), cardType)
	h.respondGame(w, r)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	h.engine.Finish()
	h.respondGame(w, r)
}

// gameResponse decorates a snapshot with localized result messages
// once the session has finished.
type gameResponse struct {
	model.GameSnapshot
	Message      string `json:"message,omitempty"`
	PersonalBest bool   `json:"personal_best,omitempty"`
	ThemeBest    bool   `json:"theme_best,omitempty"`
}

func (h *Handler) respondGame(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	resp := gameResponse{GameSnapshot: snap}

	if snap.Status == model.StatusFinished {
		resp.Message = appI18n.Td(r.Context(), "GameOver", map[string]any{"Score": snap.Score})
		h.mu.Lock()
		if h.lastSave != nil {
			resp.PersonalBest = h.lastSave.PersonalBest
			resp.ThemeBest = h.lastSave.ThemeBest
		}
		h.mu.Unlock()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleScores(w http.ResponseWriter, r *http.Request) {
	themeID := r.URL.Query().Get("theme")
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.store.TopScores(themeID, limit)
	if err != nil {
		// Storage trouble degrades to an empty leaderboard.
		slog.Warn("failed to load high scores", "error", err)
		entries = nil
	}
	if entries == nil {
		entries = []model.HighScoreEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleMyRecords(w http.ResponseWriter, r *http.Request) {
	player := model.PlayerFromContext(r.Context())
	records, err := h.store.ListRecordsForPlayer(player.ID)
	if err != nil {
		slog.Warn("failed to load player records", "player", player.ID, "error", err)
		records = nil
	}
	if records == nil {
		records = []model.GameRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// persistFinished is the engine finish hook. Persistence failures are
// logged and swallowed; they never reach the player flow.
func (h *Handler) persistFinished(snap model.GameSnapshot, questions []model.PlayedQuestion) {
	h.mu.Lock()
	player := h.player
	h.mu.Unlock()
	if player == nil {
		slog.Warn("finished session has no owning player, not persisting", "session", snap.SessionID)
		return
	}

	rec := model.GameRecord{
		SessionID:         snap.SessionID,
		PlayerID:          player.ID,
		PlayerDisplayName: player.DisplayName,
		ThemeID:           snap.ThemeID,
		ThemeLabel:        snap.ThemeLabel,
		Status:            snap.Status,
		Score:             snap.Score,
		RemainingTime:     snap.RemainingTime,
		StartedAt:         snap.StartedAt,
		Questions:         questions,
	}
	if snap.FinishedAt != nil {
		rec.FinishedAt = *snap.FinishedAt
	}

	result, err := h.store.SaveRecord(rec)
	if err != nil {
		slog.Warn("failed to persist game record", "session", snap.SessionID, "error", err)
		return
	}

	h.mu.Lock()
	h.lastSave = &result
	h.mu.Unlock()
	slog.Info("persisted game record",
		"session", snap.SessionID,
		"player", player.ID,
		"score", snap.Score,
		"personal_best", result.PersonalBest,
		"theme_best", result.ThemeBest,
	)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
