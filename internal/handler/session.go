package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/history"
	"github.com/greenscreen-pictures/kiosk/internal/outputs"
	"github.com/greenscreen-pictures/kiosk/internal/receipt"
	"github.com/greenscreen-pictures/kiosk/internal/session"
	"github.com/greenscreen-pictures/kiosk/internal/ws"
)

// OrderFinalizer turns a completed session into a receipt and history record.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderFinalizer interface {
	Finalize(ctx context.Context, snap session.Snapshot) (receipt.Receipt, history.Record)
}

// Publisher pushes live events to connected screens.
// Satisfied by *ws.Hub; narrow interface for testability.
type Publisher interface {
	Publish(topic, eventType string, payload any)
}

// ActivityMonitor is the inactivity watchdog.
// Satisfied by *watchdog.Watchdog; narrow interface for testability.
type ActivityMonitor interface {
	Arm()
	Disarm()
	Activity() bool
	Warning() bool
}

// Reasons reported with session.reset events.
const (
	ResetCancel    = "cancel"
	ResetQuit      = "quit"
	ResetTimeout   = "timeout"
	ResetCompleted = "completed"
)

// SessionHandler drives the kiosk session. Every request counts as user activity.
type SessionHandler struct {
	machine *session.Machine
	orders  OrderFinalizer
	events  Publisher
	monitor ActivityMonitor

	mu      sync.Mutex
	dialog  *outputs.Resolver
	receipt *receipt.Receipt
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(m *session.Machine, orders OrderFinalizer, events Publisher, monitor ActivityMonitor) *SessionHandler {
	return &SessionHandler{machine: m, orders: orders, events: events, monitor: monitor}
}

// RegisterRoutes registers session endpoints on the given Chi router.
// Expected to be mounted at /session
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.trackActivity)

	r.Get("/", h.Get)
	r.Get("/price", h.Price)
	r.Post("/step", h.Step)
	r.Post("/jump", h.Jump)
	r.Post("/cancel", h.Cancel)
	r.Post("/quit", h.Quit)
	r.Post("/activity", h.Activity)

	r.Post("/delivery/toggle", h.ToggleDelivery)
	r.Put("/photos", h.SetPhotos)
	r.Put("/email-photos", h.SetEmailPhotos)
	r.Put("/payment", h.SetPayment)

	r.Post("/backgrounds/toggle", h.ToggleBackground)
	r.Post("/backgrounds/upload", h.UploadBackground)
	r.Get("/outputs", h.OpenOutputs)
	r.Post("/outputs/edit", h.EditOutputs)
	r.Post("/outputs/confirm", h.ConfirmOutputs)
	r.Delete("/outputs", h.CloseOutputs)

	r.Put("/user", h.SetUser)
	r.Post("/emails", h.AddEmail)
	r.Put("/emails/{idx}", h.SetEmail)
	r.Delete("/emails/{idx}", h.RemoveEmail)
	r.Put("/people", h.SetPeople)
	r.Post("/people/increment", h.IncrementPeople)
	r.Post("/people/decrement", h.DecrementPeople)

	r.Post("/photo", h.CapturePhoto)
	r.Delete("/photo", h.RetakePhoto)
	r.Post("/complete", h.Complete)
	r.Get("/receipt", h.Receipt)
	r.Post("/finish", h.Finish)
}

// --- Request / Response types ---

type sessionResponse struct {
	session.Snapshot
	Changed bool `json:"changed"`
	Warning bool `json:"warning"`
}

type stepRequest struct {
	Step string `json:"step"`
}

type jumpRequest struct {
	Rank int `json:"rank"`
}

type methodRequest struct {
	Method string `json:"method"`
}

type countRequest struct {
	Count int `json:"count"`
}

type paymentRequest struct {
	PaymentType string `json:"paymentType"`
}

type backgroundRequest struct {
	ID catalog.BackgroundID `json:"id"`
}

type uploadResponse struct {
	sessionResponse
	ID       catalog.BackgroundID `json:"id"`
	Selected bool                 `json:"selected"`
}

type outputsEditRequest struct {
	Op    string `json:"op"`
	Key   string `json:"key"`
	Delta int    `json:"delta"`
}

type outputsConfirmRequest struct {
	Outputs outputs.Outputs `json:"outputs"`
}

type outputsResponse struct {
	Quota      int                    `json:"quota"`
	Selected   []catalog.BackgroundID `json:"selected"`
	Outputs    outputs.Outputs        `json:"outputs"`
	PrintTotal int                    `json:"printTotal"`
	Remaining  int                    `json:"remaining"`
	Valid      bool                   `json:"valid"`
}

type userRequest struct {
	UserName string `json:"userName"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type peopleRequest struct {
	NumberOfPeople string `json:"numberOfPeople"`
}

type photoRequest struct {
	Payload string `json:"payload"`
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// --- Middleware ---

func (h *SessionHandler) trackActivity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.monitor.Activity()
		next.ServeHTTP(w, r)
	})
}

// --- Watchdog callbacks ---

// Warn announces the inactivity warning to the kiosk screen.
func (h *SessionHandler) Warn(remaining time.Duration) {
	h.events.Publish(ws.TopicKiosk, ws.EventSessionWarning, map[string]int{
		"secondsRemaining": int(remaining.Seconds()),
	})
}

// Expire resets the session after the warning countdown ran out.
func (h *SessionHandler) Expire() {
	h.reset(ResetTimeout, h.resetSession)
}

// --- Handlers ---

// Get handles GET /session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, false)
}

// Price handles GET /session/price.
func (h *SessionHandler) Price(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.machine.Snapshot().Price)
}

// Step handles POST /session/step. Moving to the receipt finalises the order.
func (h *SessionHandler) Step(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Step == enum.StepReceipt {
		h.Complete(w, r)
		return
	}
	if !session.IsStep(req.Step) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown step"})
		return
	}
	changed := h.machine.TransitionTo(r.Context(), req.Step)
	if changed {
		h.closeDialog()
	}
	h.respond(w, changed)
}

// Jump handles POST /session/jump.
func (h *SessionHandler) Jump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if !decodeBody(w, r, &req) {
		return
	}
	changed := h.machine.JumpTo(req.Rank)
	if changed {
		h.closeDialog()
	}
	h.respond(w, changed)
}

// Cancel handles POST /session/cancel.
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.respondReset(w, h.reset(ResetCancel, h.resetSession))
}

// Quit handles POST /session/quit. Only honoured on the confirmation step.
func (h *SessionHandler) Quit(w http.ResponseWriter, r *http.Request) {
	h.respondReset(w, h.reset(ResetQuit, h.machine.Quit))
}

// Activity handles POST /session/activity. The middleware has already
// recorded the activity; this only reports the resulting state.
func (h *SessionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	h.respond(w, false)
}

// ToggleDelivery handles POST /session/delivery/toggle.
func (h *SessionHandler) ToggleDelivery(w http.ResponseWriter, r *http.Request) {
	var req methodRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.machine.ToggleDeliveryMethod(req.Method))
}

// SetPhotos handles PUT /session/photos.
func (h *SessionHandler) SetPhotos(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.machine.SetNumberOfPhotos(req.Count))
}

// SetEmailPhotos handles PUT /session/email-photos.
func (h *SessionHandler) SetEmailPhotos(w http.ResponseWriter, r *http.Request) {
	var req countRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.machine.SetNumberOfEmailPhotos(req.Count))
}

// SetPayment handles PUT /session/payment.
func (h *SessionHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.machine.SetPaymentType(req.PaymentType))
}

// ToggleBackground handles POST /session/backgrounds/toggle.
func (h *SessionHandler) ToggleBackground(w http.ResponseWriter, r *http.Request) {
	var req backgroundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}
	h.respond(w, h.machine.ToggleBackground(req.ID))
}

// UploadBackground handles POST /session/backgrounds/upload. The image itself
// stays on the kiosk screen; only the new background id is allocated here.
func (h *SessionHandler) UploadBackground(w http.ResponseWriter, r *http.Request) {
	id, selected, err := h.machine.AddUploadedBackground()
	if err != nil {
		if errors.Is(err, session.ErrCustomBackgroundsDisabled) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		internalError(w, "upload background", err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		sessionResponse: h.snapshotResponse(true),
		ID:              id,
		Selected:        selected,
	})
}

// OpenOutputs handles GET /session/outputs. It opens the outputs dialog, or
// returns the one already open.
func (h *SessionHandler) OpenOutputs(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dialog == nil {
		res, err := h.machine.OpenOutputs()
		if err != nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		h.dialog = res
	}
	writeJSON(w, http.StatusOK, toOutputsResponse(h.dialog))
}

// EditOutputs handles POST /session/outputs/edit.
func (h *SessionHandler) EditOutputs(w http.ResponseWriter, r *http.Request) {
	var req outputsEditRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dialog == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": session.ErrOutputsNotAvailable.Error()})
		return
	}

	switch req.Op {
	case "adjustPrint":
		h.dialog.AdjustPrintCount(req.Key, req.Delta)
	case "toggleEmail":
		h.dialog.ToggleEmail(req.Key)
	case "distributeEvenly":
		h.dialog.DistributeEvenly()
	case "selectAllEmails":
		h.dialog.SelectAllEmails()
	case "clearPrints":
		h.dialog.ClearPrints()
	case "clearEmails":
		h.dialog.ClearEmails()
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown op"})
		return
	}
	writeJSON(w, http.StatusOK, toOutputsResponse(h.dialog))
}

// ConfirmOutputs handles POST /session/outputs/confirm. An empty body confirms
// the open dialog; otherwise the supplied assignment is used.
func (h *SessionHandler) ConfirmOutputs(w http.ResponseWriter, r *http.Request) {
	var req outputsConfirmRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	h.mu.Lock()
	o := req.Outputs
	if o == nil && h.dialog != nil {
		o = h.dialog.Outputs()
	}
	changed := o != nil && h.machine.ConfirmOutputs(o)
	if changed {
		h.dialog = nil
	}
	h.mu.Unlock()

	h.respond(w, changed)
}

// CloseOutputs handles DELETE /session/outputs. The draft is left unchanged.
func (h *SessionHandler) CloseOutputs(w http.ResponseWriter, r *http.Request) {
	h.closeDialog()
	h.respond(w, false)
}

// SetUser handles PUT /session/user.
func (h *SessionHandler) SetUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.machine.SetUserName(req.UserName)
	h.respond(w, true)
}

// AddEmail handles POST /session/emails.
func (h *SessionHandler) AddEmail(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.machine.AddEmailField())
}

// SetEmail handles PUT /session/emails/{idx}.
func (h *SessionHandler) SetEmail(w http.ResponseWriter, r *http.Request) {
	idx, ok := emailIndex(w, r)
	if !ok {
		return
	}
	var req emailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.machine.SetEmail(idx, req.Email))
}

// RemoveEmail handles DELETE /session/emails/{idx}.
func (h *SessionHandler) RemoveEmail(w http.ResponseWriter, r *http.Request) {
	idx, ok := emailIndex(w, r)
	if !ok {
		return
	}
	h.respond(w, h.machine.RemoveEmail(idx))
}

// SetPeople handles PUT /session/people.
func (h *SessionHandler) SetPeople(w http.ResponseWriter, r *http.Request) {
	var req peopleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.machine.SetNumberOfPeople(req.NumberOfPeople))
}

// IncrementPeople handles POST /session/people/increment.
func (h *SessionHandler) IncrementPeople(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.machine.IncrementPeople())
}

// DecrementPeople handles POST /session/people/decrement.
func (h *SessionHandler) DecrementPeople(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.machine.DecrementPeople())
}

// CapturePhoto handles POST /session/photo.
func (h *SessionHandler) CapturePhoto(w http.ResponseWriter, r *http.Request) {
	var req photoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Payload == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payload is required"})
		return
	}
	h.respond(w, h.machine.CapturePhoto(req.Payload))
}

// RetakePhoto handles DELETE /session/photo.
func (h *SessionHandler) RetakePhoto(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.machine.RetakePhoto())
}

// Complete handles POST /session/complete. It moves to the receipt step,
// records the order and returns the receipt. Repeating the call on the
// receipt step returns the same receipt without recording again.
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.receipt != nil && h.machine.Step() == enum.StepReceipt {
		writeJSON(w, http.StatusOK, h.receipt)
		return
	}

	snap, ok := h.machine.Complete(r.Context())
	if !ok {
		d := h.machine.Snapshot().Draft
		writeJSON(w, http.StatusConflict, validationResponse{
			Error:  "order cannot be completed yet",
			Fields: session.ValidateUserInfo(d.UserName, d.Emails),
		})
		return
	}

	rec, _ := h.orders.Finalize(r.Context(), snap)
	h.receipt = &rec
	h.events.Publish(ws.TopicKiosk, ws.EventSessionUpdated, snap)
	writeJSON(w, http.StatusOK, rec)
}

// Receipt handles GET /session/receipt.
func (h *SessionHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.receipt == nil || h.machine.Step() != enum.StepReceipt {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no receipt"})
		return
	}
	writeJSON(w, http.StatusOK, h.receipt)
}

// Finish handles POST /session/finish: the customer is done with the receipt.
func (h *SessionHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.respondReset(w, h.reset(ResetCompleted, func() bool {
		if h.machine.Step() != enum.StepReceipt {
			return false
		}
		h.machine.ResetSession()
		return true
	}))
}

// --- Helpers ---

func (h *SessionHandler) snapshotResponse(changed bool) sessionResponse {
	snap := h.machine.Snapshot()
	if snap.Draft.CurrentStep == enum.StepHome {
		h.monitor.Disarm()
	} else {
		h.monitor.Arm()
	}
	if changed {
		h.events.Publish(ws.TopicKiosk, ws.EventSessionUpdated, snap)
	}
	return sessionResponse{Snapshot: snap, Changed: changed, Warning: h.monitor.Warning()}
}

func (h *SessionHandler) respond(w http.ResponseWriter, changed bool) {
	writeJSON(w, http.StatusOK, h.snapshotResponse(changed))
}

// respondReset answers a reset request. The kiosk already heard session.reset,
// so no session.updated follows it.
func (h *SessionHandler) respondReset(w http.ResponseWriter, done bool) {
	resp := h.snapshotResponse(false)
	resp.Changed = done
	writeJSON(w, http.StatusOK, resp)
}

// reset runs fn and, when it reports a reset, clears the receipt and outputs
// dialog and announces the reset.
func (h *SessionHandler) reset(reason string, fn func() bool) bool {
	h.mu.Lock()
	done := fn()
	if done {
		h.dialog = nil
		h.receipt = nil
	}
	h.mu.Unlock()

	if done {
		h.monitor.Disarm()
		h.events.Publish(ws.TopicKiosk, ws.EventSessionReset, map[string]string{"reason": reason})
	}
	return done
}

func (h *SessionHandler) resetSession() bool {
	h.machine.ResetSession()
	return true
}

func (h *SessionHandler) closeDialog() {
	h.mu.Lock()
	h.dialog = nil
	h.mu.Unlock()
}

func toOutputsResponse(res *outputs.Resolver) outputsResponse {
	total := res.PrintTotal()
	return outputsResponse{
		Quota:      res.Quota(),
		Selected:   res.Selected(),
		Outputs:    res.Outputs(),
		PrintTotal: total,
		Remaining:  res.Quota() - total,
		Valid:      res.IsValid(),
	}
}

func emailIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil || idx < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email index"})
		return 0, false
	}
	return idx, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}
