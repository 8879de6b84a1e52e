package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenscreen-pictures/kiosk/internal/admin"
	"github.com/greenscreen-pictures/kiosk/internal/ordernum"
	"github.com/greenscreen-pictures/kiosk/internal/ws"
)

// SettingsManager reads and updates the admin configuration.
// Satisfied by *session.Machine; narrow interface for testability.
type SettingsManager interface {
	Settings() admin.Settings
	UpdateSettings(p admin.Patch) (admin.Settings, error)
}

// OrderCounter exposes the persisted order counter.
// Satisfied by *ordernum.Service; narrow interface for testability.
type OrderCounter interface {
	Current(ctx context.Context) int
	Reset(ctx context.Context, start int) error
	Set(ctx context.Context, v int) error
}

// SettingsHandler handles admin configuration and the order counter.
type SettingsHandler struct {
	settings SettingsManager
	counter  OrderCounter
	events   Publisher
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings SettingsManager, counter OrderCounter, events Publisher) *SettingsHandler {
	return &SettingsHandler{settings: settings, counter: counter, events: events}
}

// RegisterRoutes registers settings endpoints on the given Chi router.
// Expected to be mounted inside the authenticated /admin subrouter.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.GetSettings)
	r.Patch("/settings", h.UpdateSettings)
	r.Get("/counter", h.GetCounter)
	r.Put("/counter", h.SetCounter)
	r.Post("/counter/reset", h.ResetCounter)
}

// --- Request / Response types ---

type counterRequest struct {
	Value *int `json:"value"`
}

type counterResetRequest struct {
	Start int `json:"start"`
}

type counterResponse struct {
	Current int    `json:"current"`
	Next    string `json:"next"`
}

// --- Handlers ---

// GetSettings handles GET /admin/settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Settings())
}

// UpdateSettings handles PATCH /admin/settings.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var p admin.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.settings.UpdateSettings(p)
	if err != nil {
		var fields admin.FieldErrors
		if errors.As(err, &fields) {
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
				Error:  "invalid settings",
				Fields: fields,
			})
			return
		}
		internalError(w, "update settings", err)
		return
	}

	h.events.Publish(ws.TopicKiosk, ws.EventSessionUpdated, map[string]any{"settings": updated})
	writeJSON(w, http.StatusOK, updated)
}

// GetCounter handles GET /admin/counter.
func (h *SettingsHandler) GetCounter(w http.ResponseWriter, r *http.Request) {
	h.writeCounter(w, r.Context())
}

// SetCounter handles PUT /admin/counter.
func (h *SettingsHandler) SetCounter(w http.ResponseWriter, r *http.Request) {
	var req counterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value is required"})
		return
	}

	if err := h.counter.Set(r.Context(), *req.Value); err != nil {
		internalError(w, "set order counter", err)
		return
	}
	h.writeCounter(w, r.Context())
}

// ResetCounter handles POST /admin/counter/reset. An empty body resets to 0.
func (h *SettingsHandler) ResetCounter(w http.ResponseWriter, r *http.Request) {
	var req counterResetRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	if req.Start < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be >= 0"})
		return
	}

	if err := h.counter.Reset(r.Context(), req.Start); err != nil {
		internalError(w, "reset order counter", err)
		return
	}
	h.writeCounter(w, r.Context())
}

func (h *SettingsHandler) writeCounter(w http.ResponseWriter, ctx context.Context) {
	current := h.counter.Current(ctx)
	writeJSON(w, http.StatusOK, counterResponse{Current: current, Next: ordernum.Format(current + 1)})
}
