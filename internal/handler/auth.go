package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/oddlab/oddyssey/internal/i18n"
	"github.com/oddlab/oddyssey/internal/model"
)

const sessionCookieName = "session"

// playerResponse is the public view of a player identity.
type playerResponse struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Provider    model.Provider `json:"provider"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toPlayerResponse(p *model.Player) playerResponse {
	return playerResponse{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		AvatarURL:   p.AvatarURL,
		Provider:    p.Provider,
		CreatedAt:   p.CreatedAt,
	}
}

// requireAuth is middleware that checks for a valid session cookie.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		authSess, err := h.store.GetAuthSession(cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if authSess == nil {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		player, err := h.store.GetPlayerByID(authSess.PlayerID)
		if err != nil || player == nil {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := model.ContextWithPlayer(r.Context(), player)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	if body.Username == "" || body.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	existing, err := h.store.GetPlayerByUsername(body.Username)
	if err != nil {
		slog.Error("failed to look up player", "username", body.Username, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	displayName := strings.TrimSpace(body.DisplayName)
	if displayName == "" {
		displayName = body.Username
	}

	player := model.Player{
		ID:           uuid.NewString(),
		Username:     body.Username,
		DisplayName:  displayName,
		Email:        strings.TrimSpace(body.Email),
		PasswordHash: string(hash),
		Provider:     model.ProviderLocal,
		CreatedAt:    time.Now(),
	}
	if err := h.store.CreatePlayer(player); err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.startSession(w, r, &player, http.StatusCreated)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	player, err := h.store.GetPlayerByUsername(strings.TrimSpace(body.Username))
	if err != nil {
		slog.Error("failed to get player", "error", err)
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}
	if player == nil || player.Provider != model.ProviderLocal {
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(player.PasswordHash), []byte(body.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, appI18n.T(r.Context(), "LoginError"))
		return
	}

	h.startSession(w, r, player, http.StatusOK)
}

// handleGuest issues a throwaway identity so a player can start a game
// without registering.
func (h *Handler) handleGuest(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	player := model.Player{
		ID:          id,
		Username:    "guest-" + id[:8],
		DisplayName: appI18n.T(r.Context(), "GuestName"),
		Provider:    model.ProviderGuest,
		CreatedAt:   time.Now(),
	}
	if err := h.store.CreatePlayer(player); err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.startSession(w, r, &player, http.StatusCreated)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.store.DeleteAuthSession(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	player := model.PlayerFromContext(r.Context())
	respondJSON(w, http.StatusOK, toPlayerResponse(player))
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, player *model.Player, status int) {
	token, err := h.store.CreateAuthSession(player.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	respondJSON(w, status, toPlayerResponse(player))
}
