// Package session is the kiosk wizard: it owns the order draft, enforces the
// step graph and keeps derived state (background outputs, identifiers) in sync.
//
// Every method is safe for concurrent use. Constraint violations are refused by
// returning false rather than an error; the draft is left unchanged.
package session

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"

	"github.com/greenscreen-pictures/kiosk/internal/admin"
	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/clock"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/outputs"
	"github.com/greenscreen-pictures/kiosk/internal/pricing"
)

var (
	ErrCustomBackgroundsDisabled = errors.New("custom backgrounds are disabled")
	ErrOutputsNotAvailable       = errors.New("background outputs apply only when both delivery methods and a background are selected")
)

// NumberIssuer hands out order numbers.
// Satisfied by *ordernum.Service; narrow interface for testability.
type NumberIssuer interface {
	Next(ctx context.Context) string
}

// Snapshot is a consistent copy of the session with its current price.
type Snapshot struct {
	Draft     Draft             `json:"draft"`
	Settings  admin.Settings    `json:"settings"`
	Price     pricing.Money     `json:"price"`
	Breakdown pricing.Breakdown `json:"-"`
}

// Machine holds the one active kiosk session and the admin settings it runs under.
type Machine struct {
	mu       sync.Mutex
	draft    Draft
	settings admin.Settings
	numbers  NumberIssuer
	clock    clock.Clock
}

// New starts a machine at home with factory settings. A nil clock uses the system time.
func New(numbers NumberIssuer, c clock.Clock) *Machine {
	s := admin.Defaults()
	return &Machine{
		draft:    newDraft(s),
		settings: s,
		numbers:  numbers,
		clock:    clock.OrReal(c),
	}
}

// Snapshot returns a deep copy of the draft and settings plus the price breakdown.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	b := pricing.Compute(m.draft.PriceInput(m.settings))
	return Snapshot{
		Draft:     m.draft.clone(),
		Settings:  m.settings.Clone(),
		Price:     b.Money(),
		Breakdown: b,
	}
}

// Step returns the current step.
func (m *Machine) Step() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft.CurrentStep
}

func (m *Machine) update(fn func(d *Draft) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&m.draft)
}

// --- Navigation ---

// TransitionTo moves along a legal edge whose guard holds. Entering delivery
// for the first time in the session assigns the customer and order numbers.
func (m *Machine) TransitionTo(ctx context.Context, step string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(ctx, step)
}

func (m *Machine) transitionLocked(ctx context.Context, step string) bool {
	from := m.draft.CurrentStep
	if !CanTransition(from, step) || !m.guardLocked(from, step) {
		return false
	}
	m.draft.CurrentStep = step
	m.draft.visit(step)
	if step == enum.StepDelivery && m.draft.CustomerNumber == "" {
		m.enterOrderFlowLocked(ctx)
	}
	return true
}

// guardLocked holds the conditions edges carry beyond the graph itself.
func (m *Machine) guardLocked(from, to string) bool {
	d := &m.draft
	switch {
	case from == enum.StepBackground && to == enum.StepUserInfo:
		// With both delivery methods the outputs dialog is the only way forward.
		return len(d.SelectedBackgrounds) > 0 && !outputs.BothMethods(d.DeliveryMethod)
	case from == enum.StepUserInfo && to == enum.StepConfirmation:
		return userInfoComplete(*d)
	case from == enum.StepQuickPhoto && to == enum.StepReceipt:
		return len(d.CapturedPhotos) == 1
	}
	return true
}

// enterOrderFlowLocked assigns the per-session identifiers. Callers ensure it
// runs at most once per session.
func (m *Machine) enterOrderFlowLocked(ctx context.Context) {
	m.draft.CustomerNumber = CustomerNumber(m.clock.Now().UnixMilli())
	m.draft.OrderNumber = m.numbers.Next(ctx)
}

// CustomerNumber formats "CN-" and the last eight digits of unixMillis.
func CustomerNumber(unixMillis int64) string {
	s := strconv.FormatInt(unixMillis, 10)
	if len(s) > 8 {
		s = s[len(s)-8:]
	}
	return "CN-" + s
}

// JumpTo moves directly to the step with rank if that rank was visited this
// session. Not available from home or receipt.
func (m *Machine) JumpTo(rank int) bool {
	return m.update(func(d *Draft) bool {
		if d.CurrentStep == enum.StepReceipt || d.CurrentStep == enum.StepHome {
			return false
		}
		if !slices.Contains(d.VisitedSteps, rank) {
			return false
		}
		step, ok := StepForRank(rank)
		if !ok {
			return false
		}
		d.CurrentStep = step
		return true
	})
}

// Complete moves quickPhoto -> receipt and returns the snapshot the receipt is built from.
func (m *Machine) Complete(ctx context.Context) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.transitionLocked(ctx, enum.StepReceipt) {
		return Snapshot{}, false
	}
	return m.snapshotLocked(), true
}

// ResetSession discards the draft and returns home. Settings are kept.
func (m *Machine) ResetSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = newDraft(m.settings)
}

// ResetAll restores factory settings and discards the draft.
func (m *Machine) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = admin.Defaults()
	m.draft = newDraft(m.settings)
}

// Quit restores factory settings from the confirmation step. Elsewhere it is a no-op.
func (m *Machine) Quit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft.CurrentStep != enum.StepConfirmation {
		return false
	}
	m.settings = admin.Defaults()
	m.draft = newDraft(m.settings)
	return true
}

// --- Delivery and payment ---

// ToggleDeliveryMethod adds or removes an available method. The last method cannot be removed.
func (m *Machine) ToggleDeliveryMethod(method string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.settings.AvailableDeliveryMethods, method) {
		return false
	}
	d := &m.draft
	if i := slices.Index(d.DeliveryMethod, method); i >= 0 {
		if len(d.DeliveryMethod) == 1 {
			return false
		}
		d.DeliveryMethod = slices.Delete(d.DeliveryMethod, i, i+1)
	} else {
		d.DeliveryMethod = orderedDelivery(append(d.DeliveryMethod, method))
	}
	d.reconcileOutputs()
	return true
}

func orderedDelivery(methods []string) []string {
	out := make([]string, 0, len(methods))
	for _, m := range enum.AllDeliveryMethods() {
		if slices.Contains(methods, m) {
			out = append(out, m)
		}
	}
	return out
}

// SetNumberOfPhotos sets the print count within 1..MaxNumberOfPrints.
func (m *Machine) SetNumberOfPhotos(n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 1 || n > m.settings.MaxNumberOfPrints {
		return false
	}
	m.draft.NumberOfPhotos = n
	m.draft.fitPrintsToQuota()
	return true
}

// SetNumberOfEmailPhotos sets the digital photo count within 1..MaxNumberOfPhotos.
func (m *Machine) SetNumberOfEmailPhotos(n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 1 || n > m.settings.MaxNumberOfPhotos {
		return false
	}
	m.draft.NumberOfEmailPhotos = n
	return true
}

// SetPaymentType selects an enabled payment method.
func (m *Machine) SetPaymentType(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.settings.AvailablePaymentMethods, p) {
		return false
	}
	m.draft.PaymentType = p
	return true
}

// --- Backgrounds ---

// ToggleBackground deselects id if selected, otherwise selects it when under
// MaxDigitalBackgrounds. Standard ids must be enabled and uploaded ids must
// belong to this session. Selecting an uploaded id evicts any other.
func (m *Machine) ToggleBackground(id catalog.BackgroundID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &m.draft

	if i := catalog.Index(d.SelectedBackgrounds, id); i >= 0 {
		d.SelectedBackgrounds = slices.Delete(d.SelectedBackgrounds, i, i+1)
		d.reconcileOutputs()
		return true
	}
	if len(d.SelectedBackgrounds) >= m.settings.MaxDigitalBackgrounds {
		return false
	}
	switch id.Kind() {
	case catalog.KindStandard:
		if !m.settings.BackgroundEnabled(id.Number()) {
			return false
		}
	case catalog.KindUploaded:
		if !m.settings.EnableCustomBackgrounds || catalog.Index(d.UploadedBackgrounds, id) < 0 {
			return false
		}
	case catalog.KindExtra:
	default:
		return false
	}
	if id.Exclusive() {
		d.SelectedBackgrounds = withoutExclusive(d.SelectedBackgrounds)
	}
	d.SelectedBackgrounds = append(d.SelectedBackgrounds, id)
	d.reconcileOutputs()
	return true
}

func withoutExclusive(ids []catalog.BackgroundID) []catalog.BackgroundID {
	return slices.DeleteFunc(ids, func(id catalog.BackgroundID) bool { return id.Exclusive() })
}

// AddUploadedBackground registers a new customer upload. Any previously
// selected upload is deselected, and the new one is selected when the other
// selections leave room for it.
func (m *Machine) AddUploadedBackground() (catalog.BackgroundID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.settings.EnableCustomBackgrounds {
		return catalog.BackgroundID{}, false, ErrCustomBackgroundsDisabled
	}
	d := &m.draft
	d.UploadCounter++
	id := catalog.Uploaded(strconv.Itoa(d.UploadCounter))
	d.UploadedBackgrounds = append(d.UploadedBackgrounds, id)

	d.SelectedBackgrounds = withoutExclusive(d.SelectedBackgrounds)
	selected := len(d.SelectedBackgrounds) < m.settings.MaxDigitalBackgrounds
	if selected {
		d.SelectedBackgrounds = append(d.SelectedBackgrounds, id)
	}
	d.reconcileOutputs()
	return id, selected, nil
}

// OpenOutputs returns a resolver over the current selection when both delivery
// methods are active on the background step.
func (m *Machine) OpenOutputs() (*outputs.Resolver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &m.draft
	if d.CurrentStep != enum.StepBackground || !outputs.BothMethods(d.DeliveryMethod) || len(d.SelectedBackgrounds) == 0 {
		return nil, ErrOutputsNotAvailable
	}
	return outputs.NewResolver(d.SelectedBackgrounds, d.BackgroundOutputs, d.NumberOfPhotos), nil
}

// ConfirmOutputs stores a valid assignment from the outputs dialog and moves to userInfo.
func (m *Machine) ConfirmOutputs(o outputs.Outputs) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &m.draft
	if d.CurrentStep != enum.StepBackground || !outputs.BothMethods(d.DeliveryMethod) {
		return false
	}
	if !outputs.Validate(d.SelectedBackgrounds, o, d.NumberOfPhotos) {
		return false
	}
	d.BackgroundOutputs = o.Clone()
	d.CurrentStep = enum.StepUserInfo
	d.visit(enum.StepUserInfo)
	return true
}

// --- Contact details ---

func (m *Machine) SetUserName(name string) {
	m.update(func(d *Draft) bool {
		d.UserName = name
		return true
	})
}

// SetEmail sets the email field at idx, which must already exist.
func (m *Machine) SetEmail(idx int, email string) bool {
	return m.update(func(d *Draft) bool {
		if idx < 0 || idx >= len(d.Emails) {
			return false
		}
		d.Emails[idx] = email
		return true
	})
}

// AddEmailField appends an empty email field up to MaxNumberOfEmails.
func (m *Machine) AddEmailField() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.draft.Emails) >= m.settings.MaxNumberOfEmails {
		return false
	}
	m.draft.Emails = append(m.draft.Emails, "")
	return true
}

// RemoveEmail deletes the email field at idx. The first field always remains.
func (m *Machine) RemoveEmail(idx int) bool {
	return m.update(func(d *Draft) bool {
		if idx < 1 || idx >= len(d.Emails) {
			return false
		}
		d.Emails = slices.Delete(d.Emails, idx, idx+1)
		return true
	})
}

// SetNumberOfPeople accepts "1".."9" or "10+".
func (m *Machine) SetNumberOfPeople(v string) bool {
	if v != enum.PeopleTenPlus {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 9 {
			return false
		}
	}
	return m.update(func(d *Draft) bool {
		d.NumberOfPeople = v
		return true
	})
}

// IncrementPeople steps 1..9 then "10+".
func (m *Machine) IncrementPeople() bool {
	return m.update(func(d *Draft) bool {
		n := peopleCount(d.NumberOfPeople)
		switch {
		case d.NumberOfPeople == enum.PeopleTenPlus:
			return false
		case n < 9:
			d.NumberOfPeople = strconv.Itoa(n + 1)
		default:
			d.NumberOfPeople = enum.PeopleTenPlus
		}
		return true
	})
}

// DecrementPeople steps down to 1; "10+" becomes 9.
func (m *Machine) DecrementPeople() bool {
	return m.update(func(d *Draft) bool {
		n := peopleCount(d.NumberOfPeople)
		if n <= 1 {
			return false
		}
		d.NumberOfPeople = strconv.Itoa(n - 1)
		return true
	})
}

func peopleCount(v string) int {
	if v == enum.PeopleTenPlus {
		return 10
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// --- Photo ---

// CapturePhoto stores the reference selfie. Only one is kept; retake first to replace it.
func (m *Machine) CapturePhoto(payload string) bool {
	return m.update(func(d *Draft) bool {
		if d.CurrentStep != enum.StepQuickPhoto || payload == "" || len(d.CapturedPhotos) >= 1 {
			return false
		}
		d.CapturedPhotos = append(d.CapturedPhotos, payload)
		return true
	})
}

// RetakePhoto discards the captured selfie.
func (m *Machine) RetakePhoto() bool {
	return m.update(func(d *Draft) bool {
		if d.CurrentStep != enum.StepQuickPhoto || len(d.CapturedPhotos) == 0 {
			return false
		}
		d.CapturedPhotos = d.CapturedPhotos[:0]
		return true
	})
}

// --- Settings ---

// Settings returns a copy of the admin settings.
func (m *Machine) Settings() admin.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Clone()
}

// UpdateSettings applies p and brings the draft back within the new limits.
func (m *Machine) UpdateSettings(p admin.Patch) (admin.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.settings.Apply(p)
	if err != nil {
		return m.settings.Clone(), err
	}
	m.settings = next
	m.conformDraftLocked()
	return m.settings.Clone(), nil
}

// conformDraftLocked clamps every draft field a settings change can invalidate.
func (m *Machine) conformDraftLocked() {
	s, d := m.settings, &m.draft

	d.BasePrice = s.BasePrice
	d.Theme = s.Theme

	d.DeliveryMethod = slices.DeleteFunc(d.DeliveryMethod, func(v string) bool {
		return !slices.Contains(s.AvailableDeliveryMethods, v)
	})
	if len(d.DeliveryMethod) == 0 {
		d.DeliveryMethod = []string{defaultDelivery(s)}
	}
	if !slices.Contains(s.AvailablePaymentMethods, d.PaymentType) {
		d.PaymentType = defaultPayment(s)
	}

	d.NumberOfPhotos = min(d.NumberOfPhotos, s.MaxNumberOfPrints)
	d.fitPrintsToQuota()
	d.NumberOfEmailPhotos = min(d.NumberOfEmailPhotos, s.MaxNumberOfPhotos)
	if len(d.Emails) > s.MaxNumberOfEmails {
		d.Emails = d.Emails[:s.MaxNumberOfEmails]
	}

	d.SelectedBackgrounds = slices.DeleteFunc(d.SelectedBackgrounds, func(id catalog.BackgroundID) bool {
		switch id.Kind() {
		case catalog.KindStandard:
			return !s.BackgroundEnabled(id.Number())
		case catalog.KindUploaded:
			return !s.EnableCustomBackgrounds
		}
		return false
	})
	if len(d.SelectedBackgrounds) > s.MaxDigitalBackgrounds {
		d.SelectedBackgrounds = d.SelectedBackgrounds[:s.MaxDigitalBackgrounds]
	}
	d.reconcileOutputs()
}
