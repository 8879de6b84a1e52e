// Package outputs assigns, per selected background, a print quantity and an
// email flag, and checks the assignment against the order's print quota.
package outputs

import (
	"maps"
	"slices"

	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
)

// Output is what one background produces.
type Output struct {
	Print int  `json:"print"`
	Email bool `json:"email"`
}

// Outputs is keyed by catalog.BackgroundID.Key().
type Outputs map[string]Output

// Clone returns an independent copy; nil stays nil.
func (o Outputs) Clone() Outputs {
	if o == nil {
		return nil
	}
	return maps.Clone(o)
}

// DefaultFor is the entry a newly selected background receives.
func DefaultFor(delivery []string) Output {
	if BothMethods(delivery) {
		return Output{Email: true}
	}
	return Output{Email: slices.Contains(delivery, enum.DeliveryEmail)}
}

// BothMethods reports whether email and prints are both selected.
func BothMethods(delivery []string) bool {
	return slices.Contains(delivery, enum.DeliveryEmail) && slices.Contains(delivery, enum.DeliveryPrints)
}

// Reconcile returns outputs holding exactly one entry per selected background:
// existing entries are kept, new ones get DefaultFor(delivery), and entries for
// backgrounds no longer selected are dropped. Per-background assignments only
// exist with both delivery methods; with a single method every entry is reset
// to DefaultFor(delivery), so no print counts survive once prints are off.
func Reconcile(selected []catalog.BackgroundID, delivery []string, current Outputs) Outputs {
	keep := BothMethods(delivery)
	out := make(Outputs, len(selected))
	for _, id := range selected {
		key := id.Key()
		if o, ok := current[key]; ok && keep {
			out[key] = o
			continue
		}
		out[key] = DefaultFor(delivery)
	}
	return out
}

// Resolver edits a working copy of the outputs for the selected backgrounds.
// The quota is the order's print count.
type Resolver struct {
	selected []catalog.BackgroundID
	outputs  Outputs
	quota    int
}

// NewResolver starts from current, filling any missing entry with an
// email-only default.
func NewResolver(selected []catalog.BackgroundID, current Outputs, quota int) *Resolver {
	r := &Resolver{
		selected: slices.Clone(selected),
		outputs:  make(Outputs, len(selected)),
		quota:    quota,
	}
	for _, id := range selected {
		o, ok := current[id.Key()]
		if !ok {
			o = Output{Email: true}
		}
		r.outputs[id.Key()] = o
	}
	return r
}

func (r *Resolver) Quota() int { return r.quota }

// Selected returns the backgrounds in selection order.
func (r *Resolver) Selected() []catalog.BackgroundID { return slices.Clone(r.selected) }

// Outputs returns a copy of the working assignment.
func (r *Resolver) Outputs() Outputs { return r.outputs.Clone() }

// PrintTotal sums print quantities across selected backgrounds.
func (r *Resolver) PrintTotal() int {
	total := 0
	for _, o := range r.outputs {
		total += o.Print
	}
	return total
}

// AdjustPrintCount changes key's print quantity by delta, clamped at zero.
// It refuses unknown keys and any change that would push the total past the quota.
func (r *Resolver) AdjustPrintCount(key string, delta int) bool {
	o, ok := r.outputs[key]
	if !ok {
		return false
	}
	next := max(0, o.Print+delta)
	if r.PrintTotal()-o.Print+next > r.quota {
		return false
	}
	o.Print = next
	r.outputs[key] = o
	return true
}

// ToggleEmail flips key's email flag.
func (r *Resolver) ToggleEmail(key string) bool {
	o, ok := r.outputs[key]
	if !ok {
		return false
	}
	o.Email = !o.Email
	r.outputs[key] = o
	return true
}

// DistributeEvenly spreads the quota across the selected backgrounds in
// selection order, the first quota%n receiving one extra print. Backgrounds
// that end up with no prints are switched to email so each still produces output.
func (r *Resolver) DistributeEvenly() {
	n := len(r.selected)
	if n == 0 {
		return
	}
	each, rem := r.quota/n, r.quota%n
	for i, id := range r.selected {
		o := r.outputs[id.Key()]
		o.Print = each
		if i < rem {
			o.Print++
		}
		if o.Print == 0 {
			o.Email = true
		}
		r.outputs[id.Key()] = o
	}
}

func (r *Resolver) SelectAllEmails() { r.each(func(o *Output) { o.Email = true }) }
func (r *Resolver) ClearPrints()     { r.each(func(o *Output) { o.Print = 0 }) }
func (r *Resolver) ClearEmails()     { r.each(func(o *Output) { o.Email = false }) }

func (r *Resolver) each(fn func(*Output)) {
	for key, o := range r.outputs {
		fn(&o)
		r.outputs[key] = o
	}
}

// IsValid holds when every selected background prints or emails and the
// print quantities use the quota exactly.
func (r *Resolver) IsValid() bool {
	if len(r.selected) == 0 {
		return false
	}
	for _, o := range r.outputs {
		if o.Print == 0 && !o.Email {
			return false
		}
	}
	return r.PrintTotal() == r.quota
}

// Validate reports whether o is a valid assignment for selected under quota.
func Validate(selected []catalog.BackgroundID, o Outputs, quota int) bool {
	if len(o) != len(selected) {
		return false
	}
	for _, id := range selected {
		entry, ok := o[id.Key()]
		if !ok || entry.Print < 0 {
			return false
		}
	}
	return NewResolver(selected, o, quota).IsValid()
}
