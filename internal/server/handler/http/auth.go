// Package http provides HTTP handlers for user registration and login.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/credkeeper/internal/models"
	"github.com/atinyakov/credkeeper/internal/service"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Register creates a user and returns its public view.
	Register(ctx context.Context, username, password string) (models.UserInfo, error)
	// Login verifies credentials and returns the user's public view.
	Login(ctx context.Context, username, password string) (models.UserInfo, error)
}

// AuthHandler handles HTTP requests for user registration and login.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Log receives unexpected service errors. May be nil.
	Log *zap.Logger
}

// CredentialsRequest represents the JSON payload for registration and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /api/register.
// It expects a JSON body with non-empty "username" and "password" and
// responds 201 with {"id","username"}, or 409 if the username is taken.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	info, err := h.AuthService.Register(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, info)
	case errors.Is(err, service.ErrDuplicateUsername):
		http.Error(w, "user already exists", http.StatusConflict)
	case errors.Is(err, service.ErrPasswordTooLong):
		http.Error(w, "password too long", http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidUsername):
		http.Error(w, "invalid username", http.StatusBadRequest)
	default:
		h.internalError(w, "register failed", err)
	}
}

// Login handles POST /api/login.
// Unknown usernames and wrong passwords get the same 401 response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	info, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, info)
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrInvalidPassword):
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, service.ErrInvalidUsername):
		http.Error(w, "invalid username", http.StatusBadRequest)
	default:
		h.internalError(w, "login failed", err)
	}
}

func (h *AuthHandler) internalError(w http.ResponseWriter, msg string, err error) {
	if h.Log != nil {
		h.Log.Error(msg, zap.Error(err))
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (CredentialsRequest, bool) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
