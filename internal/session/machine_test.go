package session

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/greenscreen-pictures/kiosk/internal/admin"
	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/clock"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/outputs"
)

// --- Mock implementations ---

type mockNumbers struct {
	mu    sync.Mutex
	calls int
}

func (m *mockNumbers) Next(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return fmt.Sprintf("%04d", m.calls)
}

var fixedNow = time.UnixMilli(1_730_000_012_345)

func newMachine() (*Machine, *mockNumbers) {
	nums := &mockNumbers{}
	return New(nums, clock.Fixed{T: fixedNow}), nums
}

func ptr[T any](v T) *T { return &v }

// walk drives the happy path to step, using email-only delivery.
func walk(t *testing.T, m *Machine, step string) {
	t.Helper()
	ctx := context.Background()
	path := []string{enum.StepDelivery, enum.StepBackground, enum.StepUserInfo, enum.StepConfirmation, enum.StepQuickPhoto}
	for _, s := range path {
		switch s {
		case enum.StepUserInfo:
			if !m.ToggleBackground(catalog.Standard(1)) {
				t.Fatal("select background")
			}
		case enum.StepConfirmation:
			m.SetUserName("Ada")
			m.SetEmail(0, "ada@example.com")
		}
		if !m.TransitionTo(ctx, s) {
			t.Fatalf("transition to %s refused from %s", s, m.Step())
		}
		if s == step {
			return
		}
	}
}

// --- Tests ---

func TestTransition_IllegalEdgesIgnored(t *testing.T) {
	m, _ := newMachine()
	ctx := context.Background()

	for _, step := range []string{enum.StepBackground, enum.StepReceipt, enum.StepConfirmation, "nowhere"} {
		if m.TransitionTo(ctx, step) {
			t.Errorf("home -> %s accepted", step)
		}
	}
	if m.Step() != enum.StepHome {
		t.Fatalf("step = %s", m.Step())
	}
}

func TestTransition_AssignsIdentifiersOnce(t *testing.T) {
	m, nums := newMachine()
	ctx := context.Background()

	m.TransitionTo(ctx, enum.StepDelivery)
	snap := m.Snapshot()
	if snap.Draft.CustomerNumber != "CN-00012345" {
		t.Errorf("CustomerNumber = %s", snap.Draft.CustomerNumber)
	}
	if snap.Draft.OrderNumber != "0001" {
		t.Errorf("OrderNumber = %s", snap.Draft.OrderNumber)
	}

	m.TransitionTo(ctx, enum.StepHome)
	m.TransitionTo(ctx, enum.StepDelivery)
	m.TransitionTo(ctx, enum.StepBackground)
	m.TransitionTo(ctx, enum.StepDelivery)

	if nums.calls != 1 {
		t.Fatalf("order number issued %d times, want 1", nums.calls)
	}
	if got := m.Snapshot().Draft.OrderNumber; got != "0001" {
		t.Errorf("OrderNumber reassigned to %s", got)
	}
}

func TestCustomerNumber(t *testing.T) {
	if got := CustomerNumber(1730000012345); got != "CN-00012345" {
		t.Errorf("got %s", got)
	}
	if got := CustomerNumber(42); got != "CN-42" {
		t.Errorf("got %s", got)
	}
}

func TestGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("background needs a selection", func(t *testing.T) {
		m, _ := newMachine()
		walk(t, m, enum.StepBackground)
		if m.TransitionTo(ctx, enum.StepUserInfo) {
			t.Fatal("advanced with no background")
		}
	})

	t.Run("both methods go through outputs", func(t *testing.T) {
		m, _ := newMachine()
		walk(t, m, enum.StepDelivery)
		m.ToggleDeliveryMethod(enum.DeliveryPrints)
		m.TransitionTo(ctx, enum.StepBackground)
		m.ToggleBackground(catalog.Standard(2))
		if m.TransitionTo(ctx, enum.StepUserInfo) {
			t.Fatal("skipped the outputs dialog")
		}
		r, err := m.OpenOutputs()
		if err != nil {
			t.Fatal(err)
		}
		r.DistributeEvenly()
		if !m.ConfirmOutputs(r.Outputs()) {
			t.Fatal("valid outputs refused")
		}
		if m.Step() != enum.StepUserInfo {
			t.Fatalf("step = %s", m.Step())
		}
		if got := m.Snapshot().Draft.BackgroundOutputs["2"]; got.Print != 1 {
			t.Errorf("outputs not stored: %+v", got)
		}
	})

	t.Run("invalid outputs refused", func(t *testing.T) {
		m, _ := newMachine()
		walk(t, m, enum.StepDelivery)
		m.ToggleDeliveryMethod(enum.DeliveryPrints)
		m.SetNumberOfPhotos(2)
		m.TransitionTo(ctx, enum.StepBackground)
		m.ToggleBackground(catalog.Standard(2))
		if m.ConfirmOutputs(outputs.Outputs{"2": {Print: 1, Email: true}}) {
			t.Fatal("sum below quota accepted")
		}
	})

	t.Run("user info requires name and first email", func(t *testing.T) {
		m, _ := newMachine()
		walk(t, m, enum.StepUserInfo)
		m.SetEmail(0, "ada@example.com")
		if m.TransitionTo(ctx, enum.StepConfirmation) {
			t.Fatal("advanced without a name")
		}
		m.SetUserName("Ada")
		m.SetEmail(0, "not-an-email")
		if m.TransitionTo(ctx, enum.StepConfirmation) {
			t.Fatal("advanced with invalid email")
		}
		m.SetEmail(0, "ada@example.com")
		if !m.TransitionTo(ctx, enum.StepConfirmation) {
			t.Fatal("valid contact details refused")
		}
	})

	t.Run("receipt needs the selfie", func(t *testing.T) {
		m, _ := newMachine()
		walk(t, m, enum.StepQuickPhoto)
		if _, ok := m.Complete(ctx); ok {
			t.Fatal("completed without a photo")
		}
		if !m.CapturePhoto("data:image/png;base64,AA") {
			t.Fatal("capture refused")
		}
		if m.CapturePhoto("second") {
			t.Fatal("second capture accepted")
		}
		snap, ok := m.Complete(ctx)
		if !ok || snap.Draft.CurrentStep != enum.StepReceipt {
			t.Fatalf("Complete = %v, %s", ok, snap.Draft.CurrentStep)
		}
		for _, s := range []string{enum.StepHome, enum.StepQuickPhoto, enum.StepDelivery} {
			if m.TransitionTo(ctx, s) {
				t.Errorf("receipt -> %s accepted", s)
			}
		}
	})
}

func TestJumpTo_VisitedOnly(t *testing.T) {
	m, _ := newMachine()
	ctx := context.Background()
	walk(t, m, enum.StepBackground)

	if m.JumpTo(3) {
		t.Fatal("jump to unvisited rank 3 accepted")
	}
	if m.Step() != enum.StepBackground {
		t.Fatalf("step changed to %s", m.Step())
	}

	m.ToggleBackground(catalog.Standard(1))
	m.TransitionTo(ctx, enum.StepUserInfo)
	m.TransitionTo(ctx, enum.StepBackground)
	if !m.JumpTo(3) || m.Step() != enum.StepUserInfo {
		t.Fatalf("jump to visited rank 3 failed, step = %s", m.Step())
	}
	if !m.JumpTo(1) || m.Step() != enum.StepDelivery {
		t.Fatalf("jump to 1 failed, step = %s", m.Step())
	}
	if m.JumpTo(9) {
		t.Fatal("jump to unknown rank accepted")
	}
}

func TestToggleBackground_Limits(t *testing.T) {
	m, _ := newMachine()

	for n := 1; n <= 3; n++ {
		if !m.ToggleBackground(catalog.Standard(n)) {
			t.Fatalf("select %d refused", n)
		}
	}
	if m.ToggleBackground(catalog.Standard(4)) {
		t.Fatal("fourth selection accepted with max 3")
	}
	if !m.ToggleBackground(catalog.Standard(2)) {
		t.Fatal("deselect refused")
	}
	got := catalog.Keys(m.Snapshot().Draft.SelectedBackgrounds)
	if !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Errorf("selected = %v", got)
	}

	m.UpdateSettings(admin.Patch{EnabledBackgrounds: []int{1, 3}})
	if m.ToggleBackground(catalog.Standard(5)) {
		t.Fatal("disabled background selected")
	}
	if !m.ToggleBackground(catalog.Extra("7")) {
		t.Fatal("extra refused")
	}
	if m.ToggleBackground(catalog.Uploaded("1")) {
		t.Fatal("unknown upload selected")
	}
}

func TestUploadedBackgrounds_Exclusive(t *testing.T) {
	m, _ := newMachine()
	if _, _, err := m.AddUploadedBackground(); err != ErrCustomBackgroundsDisabled {
		t.Fatalf("err = %v, want ErrCustomBackgroundsDisabled", err)
	}
	m.UpdateSettings(admin.Patch{EnableCustomBackgrounds: ptr(true)})

	m.ToggleBackground(catalog.Standard(1))
	first, selected, err := m.AddUploadedBackground()
	if err != nil || !selected || first.Key() != "uploaded-custom-1" {
		t.Fatalf("first upload = %v %v %v", first, selected, err)
	}
	second, selected, _ := m.AddUploadedBackground()
	if !selected {
		t.Fatal("second upload not selected")
	}

	sel := m.Snapshot().Draft.SelectedBackgrounds
	if catalog.Index(sel, first) >= 0 || catalog.Index(sel, second) < 0 {
		t.Fatalf("selected = %v", catalog.Keys(sel))
	}

	// Re-selecting the first upload evicts the second.
	if !m.ToggleBackground(first) {
		t.Fatal("reselect first refused")
	}
	snap := m.Snapshot()
	uploaded := 0
	for _, id := range snap.Draft.SelectedBackgrounds {
		if id.Kind() == catalog.KindUploaded {
			uploaded++
		}
	}
	if uploaded != 1 || catalog.Index(snap.Draft.SelectedBackgrounds, first) < 0 {
		t.Fatalf("selected = %v", catalog.Keys(snap.Draft.SelectedBackgrounds))
	}
	if _, ok := snap.Draft.BackgroundOutputs[second.Key()]; ok {
		t.Error("outputs entry kept for evicted upload")
	}
}

func TestUploadedBackground_NotSelectedWhenFull(t *testing.T) {
	m, _ := newMachine()
	m.UpdateSettings(admin.Patch{EnableCustomBackgrounds: ptr(true), MaxDigitalBackgrounds: ptr(2)})

	// Replacing the selected upload always fits.
	m.ToggleBackground(catalog.Standard(1))
	m.AddUploadedBackground()
	if _, selected, _ := m.AddUploadedBackground(); !selected {
		t.Fatal("replacement upload not selected")
	}

	m.ResetSession()
	m.ToggleBackground(catalog.Standard(1))
	m.ToggleBackground(catalog.Standard(2))
	id, selected, err := m.AddUploadedBackground()
	if err != nil || selected {
		t.Fatalf("upload selected beyond the limit: %v %v", selected, err)
	}
	d := m.Snapshot().Draft
	if len(d.SelectedBackgrounds) != 2 || catalog.Index(d.UploadedBackgrounds, id) < 0 {
		t.Fatalf("draft = %v uploads = %v", catalog.Keys(d.SelectedBackgrounds), catalog.Keys(d.UploadedBackgrounds))
	}
	if id.Key() != "uploaded-custom-1" {
		t.Errorf("upload counter not reset with the session: %s", id.Key())
	}
}

func TestOutputsFollowSelectionAndDelivery(t *testing.T) {
	m, _ := newMachine()
	m.ToggleDeliveryMethod(enum.DeliveryPrints)
	m.ToggleBackground(catalog.Standard(1))

	o := m.Snapshot().Draft.BackgroundOutputs
	if o["1"] != (outputs.Output{Email: true}) {
		t.Errorf("both-methods default = %+v", o["1"])
	}

	m.ToggleDeliveryMethod(enum.DeliveryEmail)
	m.ToggleBackground(catalog.Standard(2))
	o = m.Snapshot().Draft.BackgroundOutputs
	if o["2"].Email {
		t.Errorf("prints-only default = %+v", o["2"])
	}
	if m.ToggleDeliveryMethod(enum.DeliveryPrints) {
		t.Fatal("last delivery method removed")
	}

	m.ToggleBackground(catalog.Standard(1))
	if _, ok := m.Snapshot().Draft.BackgroundOutputs["1"]; ok {
		t.Error("entry kept after deselect")
	}
}

func TestResetSession_KeepsSettings(t *testing.T) {
	m, _ := newMachine()
	m.UpdateSettings(admin.Patch{AvailablePaymentMethods: []string{enum.PaymentDebit}, BasePrice: ptr("15.00")})
	walk(t, m, enum.StepConfirmation)

	m.ResetSession()
	m.ResetSession()
	snap := m.Snapshot()
	d := snap.Draft
	if d.CurrentStep != enum.StepHome || d.CustomerNumber != "" || d.OrderNumber != "" ||
		len(d.SelectedBackgrounds) != 0 || len(d.VisitedSteps) != 0 || d.UserName != "" ||
		!reflect.DeepEqual(d.Emails, []string{""}) {
		t.Fatalf("draft not cleared: %+v", d)
	}
	if !reflect.DeepEqual(snap.Settings.AvailablePaymentMethods, []string{enum.PaymentDebit}) {
		t.Errorf("settings lost: %v", snap.Settings.AvailablePaymentMethods)
	}
	if d.BasePrice != "15.00" || d.PaymentType != enum.PaymentDebit {
		t.Errorf("draft not seeded from settings: %s %s", d.BasePrice, d.PaymentType)
	}

	m.ResetAll()
	snap = m.Snapshot()
	if !reflect.DeepEqual(snap.Settings, admin.Defaults()) {
		t.Errorf("ResetAll kept settings: %+v", snap.Settings)
	}
	if snap.Draft.BasePrice != admin.DefaultBasePrice {
		t.Errorf("BasePrice = %s", snap.Draft.BasePrice)
	}
}

func TestQuit_OnlyFromConfirmation(t *testing.T) {
	m, _ := newMachine()
	m.UpdateSettings(admin.Patch{BasePrice: ptr("20.00")})
	walk(t, m, enum.StepUserInfo)

	if m.Quit() {
		t.Fatal("quit accepted outside confirmation")
	}
	if m.Settings().BasePrice != "20.00" {
		t.Fatal("refused quit changed settings")
	}

	m.SetUserName("Ada")
	m.SetEmail(0, "ada@example.com")
	if !m.TransitionTo(context.Background(), enum.StepConfirmation) {
		t.Fatal("transition to confirmation refused")
	}
	if !m.Quit() {
		t.Fatal("quit refused on confirmation")
	}
	snap := m.Snapshot()
	if snap.Draft.CurrentStep != enum.StepHome || !reflect.DeepEqual(snap.Settings, admin.Defaults()) {
		t.Errorf("quit did not restore factory state: step %s", snap.Draft.CurrentStep)
	}
}

func TestUpdateSettings_ConformsDraft(t *testing.T) {
	m, _ := newMachine()
	m.ToggleDeliveryMethod(enum.DeliveryPrints)
	m.SetNumberOfPhotos(15)
	m.SetPaymentType(enum.PaymentCheck)
	m.ToggleBackground(catalog.Standard(1))
	m.ToggleBackground(catalog.Standard(2))
	m.ToggleBackground(catalog.Standard(3))
	m.AddEmailField()
	m.AddEmailField()

	_, err := m.UpdateSettings(admin.Patch{
		MaxNumberOfPrints:        ptr(4),
		MaxDigitalBackgrounds:    ptr(2),
		MaxNumberOfEmails:        ptr(1),
		AvailablePaymentMethods:  []string{enum.PaymentCredit},
		AvailableDeliveryMethods: []string{enum.DeliveryPrints},
		Theme:                    ptr("spooky"),
	})
	if err != nil {
		t.Fatal(err)
	}
	d := m.Snapshot().Draft
	if d.NumberOfPhotos != 4 || d.PaymentType != enum.PaymentCredit || len(d.Emails) != 1 || d.Theme != "spooky" {
		t.Errorf("draft = %+v", d)
	}
	if !reflect.DeepEqual(d.DeliveryMethod, []string{enum.DeliveryPrints}) {
		t.Errorf("delivery = %v", d.DeliveryMethod)
	}
	if !reflect.DeepEqual(catalog.Keys(d.SelectedBackgrounds), []string{"1", "2"}) || len(d.BackgroundOutputs) != 2 {
		t.Errorf("backgrounds = %v outputs = %v", catalog.Keys(d.SelectedBackgrounds), d.BackgroundOutputs)
	}

	if _, err := m.UpdateSettings(admin.Patch{MaxNumberOfPrints: ptr(0)}); err == nil {
		t.Error("invalid patch accepted")
	}
}

func TestMutators(t *testing.T) {
	m, _ := newMachine()

	if m.SetNumberOfPhotos(0) || m.SetNumberOfPhotos(21) || !m.SetNumberOfPhotos(20) {
		t.Error("print bounds")
	}
	if m.SetNumberOfEmailPhotos(11) || !m.SetNumberOfEmailPhotos(10) {
		t.Error("email photo bounds")
	}
	if m.SetPaymentType("bitcoin") || !m.SetPaymentType(enum.PaymentCredit) {
		t.Error("payment")
	}

	for i := 0; i < 4; i++ {
		if !m.AddEmailField() {
			t.Fatalf("add email %d refused", i)
		}
	}
	if m.AddEmailField() {
		t.Error("sixth email field accepted")
	}
	if m.RemoveEmail(0) {
		t.Error("first email field removed")
	}
	m.SetEmail(2, "c@example.com")
	if !m.RemoveEmail(1) || m.Snapshot().Draft.Emails[1] != "c@example.com" {
		t.Errorf("emails = %v", m.Snapshot().Draft.Emails)
	}
	if m.SetEmail(9, "x") {
		t.Error("out of range email set")
	}

	if m.DecrementPeople() {
		t.Error("people below 1")
	}
	for i := 0; i < 9; i++ {
		m.IncrementPeople()
	}
	if got := m.Snapshot().Draft.NumberOfPeople; got != "10+" {
		t.Errorf("people = %s", got)
	}
	if m.IncrementPeople() {
		t.Error("incremented past 10+")
	}
	m.DecrementPeople()
	if got := m.Snapshot().Draft.NumberOfPeople; got != "9" {
		t.Errorf("people = %s", got)
	}
	if m.SetNumberOfPeople("11") || m.SetNumberOfPeople("0") || !m.SetNumberOfPeople("10+") {
		t.Error("SetNumberOfPeople bounds")
	}
}

func TestSetNumberOfPhotos_ClearsOversizedPrints(t *testing.T) {
	m, _ := newMachine()
	ctx := context.Background()
	walk(t, m, enum.StepDelivery)
	m.ToggleDeliveryMethod(enum.DeliveryPrints)
	m.SetNumberOfPhotos(4)
	m.TransitionTo(ctx, enum.StepBackground)
	m.ToggleBackground(catalog.Standard(1))
	m.ConfirmOutputs(outputs.Outputs{"1": {Print: 4, Email: true}})

	m.SetNumberOfPhotos(2)
	if got := m.Snapshot().Draft.BackgroundOutputs["1"]; got.Print != 0 || !got.Email {
		t.Errorf("outputs = %+v", got)
	}
}

func TestSnapshotPrice(t *testing.T) {
	m, _ := newMachine()
	m.ToggleDeliveryMethod(enum.DeliveryPrints)
	m.ToggleDeliveryMethod(enum.DeliveryEmail)
	m.SetNumberOfPhotos(3)
	m.ToggleBackground(catalog.Standard(1))
	m.ToggleBackground(catalog.Standard(2))

	if got := m.Snapshot().Price.Total; got != "18.50" {
		t.Errorf("Total = %s, want 18.50", got)
	}
	m.UpdateSettings(admin.Patch{ShowFreeDayOption: ptr(true)})
	if got := m.Snapshot().Price.Total; got != "0.00" {
		t.Errorf("free day Total = %s", got)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	m, _ := newMachine()
	m.ToggleBackground(catalog.Standard(1))
	snap := m.Snapshot()
	snap.Draft.SelectedBackgrounds[0] = catalog.Standard(9)
	snap.Draft.Emails[0] = "mutated"
	snap.Settings.AvailablePaymentMethods[0] = "mutated"

	again := m.Snapshot()
	if again.Draft.SelectedBackgrounds[0] != catalog.Standard(1) || again.Draft.Emails[0] != "" ||
		again.Settings.AvailablePaymentMethods[0] != enum.PaymentCash {
		t.Fatal("snapshot aliases machine state")
	}
}

func TestConcurrentResetIsSafe(t *testing.T) {
	m, _ := newMachine()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.TransitionTo(ctx, enum.StepDelivery)
			m.ToggleBackground(catalog.Standard(1))
			m.Snapshot()
		}()
		go func() {
			defer wg.Done()
			m.ResetSession()
		}()
	}
	wg.Wait()
	m.ResetSession()
	if m.Step() != enum.StepHome {
		t.Fatal("reset did not return home")
	}
}

func TestValidateUserInfo(t *testing.T) {
	errs := ValidateUserInfo("", []string{"", "bad", "ok@example.com"})
	for _, k := range []string{"userName", "emails.0", "emails.1"} {
		if _, ok := errs[k]; !ok {
			t.Errorf("missing %s in %v", k, errs)
		}
	}
	if _, ok := errs["emails.2"]; ok {
		t.Error("valid email flagged")
	}
	if len(ValidateUserInfo("Ada", []string{"ada@example.com", ""})) != 0 {
		t.Error("valid input flagged")
	}
	for _, bad := range []string{"a@b", "a b@c.d", "@c.d", "a@@c.d"} {
		if ValidateEmail(bad) {
			t.Errorf("ValidateEmail(%q) = true", bad)
		}
	}
}
