package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenscreen-pictures/kiosk/internal/auth"
)

// Unlocker checks the admin password.
// Satisfied by *admin.Gate; narrow interface for testability.
type Unlocker interface {
	Unlock(password string) bool
}

// AuthHandler handles the admin gate.
type AuthHandler struct {
	gate      Unlocker
	jwtSecret string
	ttl       time.Duration
}

// NewAuthHandler creates a new AuthHandler. Tokens live for ttl.
func NewAuthHandler(gate Unlocker, jwtSecret string, ttl time.Duration) *AuthHandler {
	if ttl <= 0 {
		ttl = auth.DefaultTTL
	}
	return &AuthHandler{gate: gate, jwtSecret: jwtSecret, ttl: ttl}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
// Expected to be mounted at /admin
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/unlock", h.Unlock)
}

// --- Request / Response types ---

type unlockRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// --- Handlers ---

// Unlock exchanges the admin password for a short-lived admin token.
func (h *AuthHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password is required"})
		return
	}

	if !h.gate.Unlock(req.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect password"})
		return
	}

	expiresAt := time.Now().Add(h.ttl)
	token, err := auth.GenerateToken(h.jwtSecret, h.ttl)
	if err != nil {
		internalError(w, "generate admin token", err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, ExpiresAt: expiresAt})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func internalError(w http.ResponseWriter, op string, err error) {
	log.Printf("ERROR: %s: %v", op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
