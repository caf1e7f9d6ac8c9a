package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"reeltrack/internal/auth"
	"reeltrack/models"
	"reeltrack/services/accounts"
	"reeltrack/services/sessions"
)

type accountsService interface {
	Authenticate(username, password string) (models.Account, error)
	Get(id string) (models.Account, bool)
	UpdatePassword(id, newPassword string) error
}

var _ accountsService = (*accounts.Service)(nil)

type sessionsService interface {
	Create(accountID, userAgent, ipAddress string) (models.Session, error)
	Revoke(token string) error
	Refresh(token string) (models.Session, error)
	RevokeAllForAccount(accountID, keep string) ([]string, error)
}

var _ sessionsService = (*sessions.Service)(nil)

type storeDropper interface {
	Drop(sessionKey string)
}

// AuthHandler handles sign-in and sign-out. Accounts and sessions are nil
// when users sign in with Supabase; only Logout and Me are served then.
type AuthHandler struct {
	accounts accountsService
	sessions sessionsService
	stores   storeDropper
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(accountsSvc accountsService, sessionsSvc sessionsService, stores storeDropper) *AuthHandler {
	return &AuthHandler{
		accounts: accountsSvc,
		sessions: sessionsSvc,
		stores:   stores,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the login response.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
}

// AccountResponse represents account info response.
type AccountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// Login authenticates a local account and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil || h.sessions == nil {
		jsonError(w, "password login is disabled", http.StatusNotFound)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	account, err := h.accounts.Authenticate(req.Username, req.Password)
	if err != nil {
		jsonError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	session, err := h.sessions.Create(account.ID, r.Header.Get("User-Agent"), getClientIPAddress(r))
	if err != nil {
		log.Printf("[auth] create session for %s failed: %v", account.ID, err)
		jsonError(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	log.Printf("[auth] %s signed in", account.Username)
	writeJSON(w, http.StatusOK, loginResponse(session, account))
}

// Logout ends the caller's session and discards its watchlist state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionKey := auth.SessionKeyFromContext(r.Context())
	if sessionKey == "" {
		jsonError(w, "no session token", http.StatusBadRequest)
		return
	}

	if h.sessions != nil {
		// Session not found is OK - might already be expired
		if err := h.sessions.Revoke(sessionKey); err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
			jsonError(w, "failed to revoke session", http.StatusInternalServerError)
			return
		}
	}
	if h.stores != nil {
		h.stores.Drop(sessionKey)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the current principal.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	if h.accounts == nil {
		writeJSON(w, http.StatusOK, AccountResponse{ID: userID})
		return
	}

	account, found := h.accounts.Get(userID)
	if !found {
		jsonError(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{ID: account.ID, Username: account.Username})
}

// Refresh extends the session expiration.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil || h.sessions == nil {
		jsonError(w, "password login is disabled", http.StatusNotFound)
		return
	}

	session, err := h.sessions.Refresh(auth.SessionKeyFromContext(r.Context()))
	if err != nil {
		jsonError(w, "invalid or expired session", http.StatusUnauthorized)
		return
	}

	account, ok := h.accounts.Get(session.AccountID)
	if !ok {
		jsonError(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(session, account))
}

// ChangePasswordRequest represents password change request.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword changes the current account's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		jsonError(w, "password login is disabled", http.StatusNotFound)
		return
	}

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	account, found := h.accounts.Get(userID)
	if !found {
		jsonError(w, "account not found", http.StatusNotFound)
		return
	}
	if _, err := h.accounts.Authenticate(account.Username, req.CurrentPassword); err != nil {
		jsonError(w, "current password is incorrect", http.StatusUnauthorized)
		return
	}

	if err := h.accounts.UpdatePassword(userID, req.NewPassword); err != nil {
		if errors.Is(err, accounts.ErrPasswordRequired) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, "failed to update password", http.StatusInternalServerError)
		return
	}

	// Other sign-ins of this account end with the old password; this one stays.
	if h.sessions != nil {
		revoked, err := h.sessions.RevokeAllForAccount(userID, auth.SessionKeyFromContext(r.Context()))
		if err != nil {
			log.Printf("[auth] revoke sessions for %s after password change failed: %v", userID, err)
		}
		if h.stores != nil {
			for _, token := range revoked {
				h.stores.Drop(token)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

func loginResponse(session models.Session, account models.Account) LoginResponse {
	return LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
		AccountID: account.ID,
		Username:  account.Username,
	}
}

// getClientIPAddress extracts the client IP address from the request.
func getClientIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
