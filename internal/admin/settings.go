// Package admin holds the attendant-editable kiosk settings and the
// shared-secret gate in front of them.
package admin

import (
	"crypto/subtle"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
)

// Bounds for the numeric limits.
const (
	MinLimit = 1
	MaxLimit = 50
)

// DefaultBasePrice is the factory base price.
const DefaultBasePrice = "10.00"

// Settings is the process-wide configuration every session reads.
type Settings struct {
	AvailablePaymentMethods  []string `json:"availablePaymentMethods"`
	AvailableDeliveryMethods []string `json:"availableDeliveryMethods"`
	MaxNumberOfPhotos        int      `json:"maxNumberOfPhotos"`
	MaxNumberOfEmails        int      `json:"maxNumberOfEmails"`
	MaxNumberOfPrints        int      `json:"maxNumberOfPrints"`
	MaxDigitalBackgrounds    int      `json:"maxDigitalBackgrounds"`
	EnabledBackgrounds       []int    `json:"enabledBackgrounds"`
	EnableCustomBackgrounds  bool     `json:"enableCustomBackgrounds"`
	IsFreeDay                bool     `json:"isFreeDay"`
	ShowFreeDayOption        bool     `json:"showFreeDayOption"`
	BasePrice                string   `json:"basePrice"`
	Theme                    string   `json:"theme"`
}

// Defaults returns the factory settings.
func Defaults() Settings {
	return Settings{
		AvailablePaymentMethods:  enum.AllPaymentMethods(),
		AvailableDeliveryMethods: enum.AllDeliveryMethods(),
		MaxNumberOfPhotos:        10,
		MaxNumberOfEmails:        5,
		MaxNumberOfPrints:        20,
		MaxDigitalBackgrounds:    3,
		EnabledBackgrounds:       catalog.StandardNumbers(),
		BasePrice:                DefaultBasePrice,
	}
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	s.AvailablePaymentMethods = slices.Clone(s.AvailablePaymentMethods)
	s.AvailableDeliveryMethods = slices.Clone(s.AvailableDeliveryMethods)
	s.EnabledBackgrounds = slices.Clone(s.EnabledBackgrounds)
	return s
}

// BackgroundEnabled reports whether standard backdrop n may be selected.
func (s Settings) BackgroundEnabled(n int) bool {
	return slices.Contains(s.EnabledBackgrounds, n)
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	AvailablePaymentMethods  []string `json:"availablePaymentMethods,omitempty"`
	AvailableDeliveryMethods []string `json:"availableDeliveryMethods,omitempty"`
	MaxNumberOfPhotos        *int     `json:"maxNumberOfPhotos,omitempty"`
	MaxNumberOfEmails        *int     `json:"maxNumberOfEmails,omitempty"`
	MaxNumberOfPrints        *int     `json:"maxNumberOfPrints,omitempty"`
	MaxDigitalBackgrounds    *int     `json:"maxDigitalBackgrounds,omitempty"`
	EnabledBackgrounds       []int    `json:"enabledBackgrounds,omitempty"`
	EnableCustomBackgrounds  *bool    `json:"enableCustomBackgrounds,omitempty"`
	IsFreeDay                *bool    `json:"isFreeDay,omitempty"`
	ShowFreeDayOption        *bool    `json:"showFreeDayOption,omitempty"`
	BasePrice                *string  `json:"basePrice,omitempty"`
	Theme                    *string  `json:"theme,omitempty"`
}

// FieldErrors maps a JSON field name to a validation message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

// Apply validates p against s and returns the updated settings. On any
// validation failure s is returned unchanged with a FieldErrors.
//
// Hiding the free-day option always clears free day; showing it turns free day
// on unless the same patch sets isFreeDay.
func (s Settings) Apply(p Patch) (Settings, error) {
	next := s.Clone()
	errs := FieldErrors{}

	if p.AvailablePaymentMethods != nil {
		if v, msg := subset(p.AvailablePaymentMethods, enum.AllPaymentMethods()); msg != "" {
			errs["availablePaymentMethods"] = msg
		} else {
			next.AvailablePaymentMethods = v
		}
	}
	if p.AvailableDeliveryMethods != nil {
		if v, msg := subset(p.AvailableDeliveryMethods, enum.AllDeliveryMethods()); msg != "" {
			errs["availableDeliveryMethods"] = msg
		} else {
			next.AvailableDeliveryMethods = v
		}
	}

	limits := []struct {
		name string
		val  *int
		dst  *int
	}{
		{"maxNumberOfPhotos", p.MaxNumberOfPhotos, &next.MaxNumberOfPhotos},
		{"maxNumberOfEmails", p.MaxNumberOfEmails, &next.MaxNumberOfEmails},
		{"maxNumberOfPrints", p.MaxNumberOfPrints, &next.MaxNumberOfPrints},
		{"maxDigitalBackgrounds", p.MaxDigitalBackgrounds, &next.MaxDigitalBackgrounds},
	}
	for _, l := range limits {
		if l.val == nil {
			continue
		}
		if *l.val < MinLimit || *l.val > MaxLimit {
			errs[l.name] = fmt.Sprintf("must be between %d and %d", MinLimit, MaxLimit)
			continue
		}
		*l.dst = *l.val
	}

	if p.EnabledBackgrounds != nil {
		if v, msg := backgroundSet(p.EnabledBackgrounds); msg != "" {
			errs["enabledBackgrounds"] = msg
		} else {
			next.EnabledBackgrounds = v
		}
	}

	if p.BasePrice != nil {
		if msg := validateBasePrice(*p.BasePrice); msg != "" {
			errs["basePrice"] = msg
		} else {
			next.BasePrice = strings.TrimSpace(*p.BasePrice)
		}
	}
	if p.Theme != nil {
		next.Theme = *p.Theme
	}
	if p.EnableCustomBackgrounds != nil {
		next.EnableCustomBackgrounds = *p.EnableCustomBackgrounds
	}

	if len(errs) > 0 {
		return s, errs
	}

	if p.IsFreeDay != nil {
		next.IsFreeDay = *p.IsFreeDay
	}
	if p.ShowFreeDayOption != nil {
		next.ShowFreeDayOption = *p.ShowFreeDayOption
		if p.IsFreeDay == nil {
			next.IsFreeDay = *p.ShowFreeDayOption
		}
	}
	if !next.ShowFreeDayOption {
		next.IsFreeDay = false
	}
	return next, nil
}

// subset dedupes vals, requires each to be in universe and at least one, and
// returns them in universe order.
func subset(vals, universe []string) ([]string, string) {
	if len(vals) == 0 {
		return nil, "at least one must remain enabled"
	}
	for _, v := range vals {
		if !slices.Contains(universe, v) {
			return nil, fmt.Sprintf("unknown value %q", v)
		}
	}
	out := make([]string, 0, len(vals))
	for _, u := range universe {
		if slices.Contains(vals, u) {
			out = append(out, u)
		}
	}
	return out, ""
}

func backgroundSet(vals []int) ([]int, string) {
	if len(vals) == 0 {
		return nil, "at least one background must remain enabled"
	}
	seen := make(map[int]bool, len(vals))
	out := make([]int, 0, len(vals))
	for _, n := range vals {
		if !catalog.IsStandard(n) {
			return nil, fmt.Sprintf("unknown background %d", n)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out, ""
}

func validateBasePrice(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return "must be a valid non-negative number"
	}
	return ""
}

// Gate checks the attendant password.
type Gate struct {
	secret string
}

func NewGate(secret string) *Gate { return &Gate{secret: secret} }

// Unlock reports whether password equals the configured secret exactly.
func (g *Gate) Unlock(password string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(g.secret)) == 1
}
