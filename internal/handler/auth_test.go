package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenscreen-pictures/kiosk/internal/admin"
	"github.com/greenscreen-pictures/kiosk/internal/auth"
	"github.com/greenscreen-pictures/kiosk/internal/handler"
)

const testJWTSecret = "test-secret-key-for-unit-tests"

func setupAuthRouter() *chi.Mux {
	h := handler.NewAuthHandler(admin.NewGate("letmein"), testJWTSecret, 5*time.Minute)
	r := chi.NewRouter()
	r.Route("/admin", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestUnlock_Success(t *testing.T) {
	r := setupAuthRouter()

	rr := doJSON(t, r, http.MethodPost, "/admin/unlock", map[string]string{"password": "letmein"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200, body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		AccessToken string    `json:"accessToken"`
		ExpiresAt   time.Time `json:"expiresAt"`
	}
	decodeInto(t, rr, &resp)

	claims, err := auth.ValidateToken(testJWTSecret, resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Role != auth.RoleAdmin {
		t.Errorf("role: got %s, want %s", claims.Role, auth.RoleAdmin)
	}
	if until := time.Until(resp.ExpiresAt); until <= 0 || until > 5*time.Minute {
		t.Errorf("expiresAt: got %v from now", until)
	}
}

func TestUnlock_Rejected(t *testing.T) {
	r := setupAuthRouter()

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"wrong password", map[string]string{"password": "nope"}, http.StatusUnauthorized},
		{"password is case sensitive", map[string]string{"password": "LETMEIN"}, http.StatusUnauthorized},
		{"empty password", map[string]string{"password": ""}, http.StatusBadRequest},
		{"missing body", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, r, http.MethodPost, "/admin/unlock", tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantStatus)
			}
			if _, ok := decodeResponse(t, rr)["error"]; !ok {
				t.Error("expected an error message")
			}
		})
	}
}
