package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/history"
)

// OrderHistory defines the history methods needed by order handlers.
// Satisfied by *history.Store; narrow interface for testability.
type OrderHistory interface {
	List(ctx context.Context) []history.Record
	Search(ctx context.Context, q string) []history.Record
	Get(ctx context.Context, orderNumber string) (history.Record, bool)
	UpdateFlag(ctx context.Context, orderNumber, flag string, value bool) bool
}

// OrderHandler handles order history endpoints.
type OrderHandler struct {
	store OrderHistory
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(store OrderHistory) *OrderHandler {
	return &OrderHandler{store: store}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside the authenticated /admin subrouter.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Get("/orders/{orderNumber}", h.Get)
	r.Patch("/orders/{orderNumber}/flags", h.UpdateFlags)
}

// --- Request / Response types ---

// orderListResponse wraps a page of records with pagination metadata.
type orderListResponse struct {
	Orders []history.Record `json:"orders"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// --- Handlers ---

// List handles GET /admin/orders. Supports ?q= search and limit/offset paging.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > history.MaxRecords {
		limit = history.MaxRecords
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	var records []history.Record
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		records = h.store.Search(r.Context(), q)
	} else {
		records = h.store.List(r.Context())
	}

	resp := orderListResponse{Orders: []history.Record{}, Total: len(records), Limit: limit, Offset: offset}
	if offset < len(records) {
		end := min(offset+limit, len(records))
		resp.Orders = records[offset:end]
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /admin/orders/{orderNumber}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.store.Get(r.Context(), chi.URLParam(r, "orderNumber"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateFlags handles PATCH /admin/orders/{orderNumber}/flags. The body maps
// flag names to their new values, e.g. {"pickupComplete": true}.
func (h *OrderHandler) UpdateFlags(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	var req map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one flag is required"})
		return
	}

	flags := make([]string, 0, len(req))
	for flag := range req {
		if !enum.IsFlag(flag) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown flag: " + flag})
			return
		}
		flags = append(flags, flag)
	}
	sort.Strings(flags)

	if _, ok := h.store.Get(r.Context(), orderNumber); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	for _, flag := range flags {
		if !h.store.UpdateFlag(r.Context(), orderNumber, flag, req[flag]) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update " + flag})
			return
		}
	}

	rec, _ := h.store.Get(r.Context(), orderNumber)
	writeJSON(w, http.StatusOK, rec)
}
