package outputs

import (
	"testing"

	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
)

func ids(ns ...int) []catalog.BackgroundID {
	out := make([]catalog.BackgroundID, len(ns))
	for i, n := range ns {
		out[i] = catalog.Standard(n)
	}
	return out
}

func TestReconcile(t *testing.T) {
	both := []string{enum.DeliveryEmail, enum.DeliveryPrints}
	prints := []string{enum.DeliveryPrints}
	email := []string{enum.DeliveryEmail}

	current := Outputs{"1": {Print: 2, Email: false}, "9": {Print: 1}}
	got := Reconcile(ids(1, 2), both, current)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (stale key must be dropped)", len(got))
	}
	if got["1"] != (Output{Print: 2}) {
		t.Errorf("existing entry changed: %+v", got["1"])
	}
	if got["2"] != (Output{Email: true}) {
		t.Errorf("new entry with both methods = %+v", got["2"])
	}

	if o := Reconcile(ids(3), prints, nil)["3"]; o.Email {
		t.Errorf("prints-only default should not email: %+v", o)
	}
	if o := Reconcile(ids(3), email, nil)["3"]; !o.Email {
		t.Errorf("email-only default should email: %+v", o)
	}
}

func TestReconcile_SingleMethodDropsAssignments(t *testing.T) {
	current := Outputs{"1": {Print: 2, Email: false}, "2": {Print: 0, Email: true}}

	tests := []struct {
		name     string
		delivery []string
		want     Output
	}{
		{"email only", []string{enum.DeliveryEmail}, Output{Email: true}},
		{"prints only", []string{enum.DeliveryPrints}, Output{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(ids(1, 2), tt.delivery, current)
			for key, o := range got {
				if o != tt.want {
					t.Errorf("%s: got %+v, want %+v", key, o, tt.want)
				}
			}
		})
	}
	if current["1"].Print != 2 {
		t.Error("Reconcile must not modify its input")
	}
}

func TestAdjustPrintCount(t *testing.T) {
	r := NewResolver(ids(1, 2), nil, 3)

	if !r.AdjustPrintCount("1", 2) {
		t.Fatal("2 of 3 should be accepted")
	}
	if r.AdjustPrintCount("2", 2) {
		t.Fatal("exceeding the quota must be rejected")
	}
	if r.Outputs()["2"].Print != 0 {
		t.Fatalf("rejected change applied: %+v", r.Outputs()["2"])
	}
	if !r.AdjustPrintCount("2", 1) {
		t.Fatal("reaching the quota exactly should be accepted")
	}
	if !r.AdjustPrintCount("1", -5) || r.Outputs()["1"].Print != 0 {
		t.Fatalf("decrement should clamp at zero, got %+v", r.Outputs()["1"])
	}
	if r.AdjustPrintCount("custom-1", 1) {
		t.Fatal("unknown key must be rejected")
	}
	if r.PrintTotal() != 1 {
		t.Errorf("PrintTotal = %d, want 1", r.PrintTotal())
	}
}

func TestDistributeEvenly(t *testing.T) {
	tests := []struct {
		name  string
		bgs   []catalog.BackgroundID
		quota int
		want  []int
	}{
		{"exact", ids(1, 2, 3), 6, []int{2, 2, 2}},
		{"remainder to first", ids(1, 2, 3), 5, []int{2, 2, 1}},
		{"fewer prints than backgrounds", ids(1, 2, 3), 2, []int{1, 1, 0}},
		{"single", ids(7), 4, []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.bgs, nil, tt.quota)
			r.DistributeEvenly()
			for i, id := range tt.bgs {
				if got := r.Outputs()[id.Key()].Print; got != tt.want[i] {
					t.Errorf("%s print = %d, want %d", id.Key(), got, tt.want[i])
				}
			}
			if r.PrintTotal() != tt.quota {
				t.Errorf("PrintTotal = %d, want %d", r.PrintTotal(), tt.quota)
			}
		})
	}
}

func TestDistributeEvenly_AlwaysValid(t *testing.T) {
	for quota := 1; quota <= 20; quota++ {
		for n := 1; n <= 6; n++ {
			bgs := make([]catalog.BackgroundID, n)
			for i := range bgs {
				bgs[i] = catalog.Standard(i + 1)
			}
			r := NewResolver(bgs, nil, quota)
			r.ClearEmails()
			r.DistributeEvenly()
			if !r.IsValid() {
				t.Fatalf("quota=%d n=%d: invalid after DistributeEvenly: %+v", quota, n, r.Outputs())
			}
		}
	}
}

func TestIsValid(t *testing.T) {
	r := NewResolver(ids(1, 2), Outputs{"1": {Print: 2}, "2": {Print: 0, Email: true}}, 2)
	if !r.IsValid() {
		t.Fatal("expected valid")
	}

	r.ToggleEmail("2")
	if r.IsValid() {
		t.Fatal("background with no print and no email must be invalid")
	}

	r = NewResolver(ids(1, 2), Outputs{"1": {Print: 1, Email: true}, "2": {Email: true}}, 2)
	if r.IsValid() {
		t.Fatal("sum below quota must be invalid")
	}

	if NewResolver(nil, nil, 1).IsValid() {
		t.Fatal("empty selection is never valid")
	}
}

func TestBulkActions(t *testing.T) {
	r := NewResolver(ids(1, 2), Outputs{"1": {Print: 1}, "2": {Print: 1}}, 2)
	r.SelectAllEmails()
	for k, o := range r.Outputs() {
		if !o.Email {
			t.Errorf("%s email off after SelectAllEmails", k)
		}
	}
	r.ClearPrints()
	if r.PrintTotal() != 0 {
		t.Errorf("PrintTotal = %d after ClearPrints", r.PrintTotal())
	}
	r.ClearEmails()
	for k, o := range r.Outputs() {
		if o.Email {
			t.Errorf("%s email on after ClearEmails", k)
		}
	}
}

func TestValidate(t *testing.T) {
	bgs := ids(1, 2)
	if !Validate(bgs, Outputs{"1": {Print: 1}, "2": {Email: true}}, 1) {
		t.Error("expected valid")
	}
	if Validate(bgs, Outputs{"1": {Print: 1}}, 1) {
		t.Error("missing key must be invalid")
	}
	if Validate(bgs, Outputs{"1": {Print: 2}, "2": {Print: -1, Email: true}}, 1) {
		t.Error("negative print must be invalid")
	}
	if Validate(bgs, Outputs{"1": {Print: 1}, "3": {Email: true}}, 1) {
		t.Error("foreign key must be invalid")
	}
}

func TestResolver_DoesNotAliasInput(t *testing.T) {
	current := Outputs{"1": {Print: 1, Email: true}}
	r := NewResolver(ids(1), current, 3)
	r.AdjustPrintCount("1", 1)
	if current["1"].Print != 1 {
		t.Fatal("resolver mutated caller's map")
	}
	out := r.Outputs()
	out["1"] = Output{}
	if r.Outputs()["1"].Print != 2 {
		t.Fatal("Outputs() returned an alias")
	}
}
