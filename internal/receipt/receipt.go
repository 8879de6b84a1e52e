// Package receipt renders a completed session into the itemised receipt shown
// and printed at the end of the flow.
package receipt

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/pricing"
	"github.com/greenscreen-pictures/kiosk/internal/session"
)

// Date and time layouts used on receipts and history records.
const (
	DateLayout = "January 2, 2006"
	TimeLayout = "03:04 PM"
)

// Line is one priced row.
type Line struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Free   bool   `json:"free,omitempty"`
}

// Background is one selected backdrop in photo-numbering order, starting at 1.
type Background struct {
	Position int    `json:"position"`
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Prints   int    `json:"prints"`
	Email    bool   `json:"email"`
}

// Receipt is everything printed for one order. RegularTotal is the
// undiscounted amount shown struck through on a free day.
type Receipt struct {
	OrderNumber    string       `json:"orderNumber"`
	CustomerNumber string       `json:"customerNumber"`
	Date           string       `json:"date"`
	Time           string       `json:"time"`
	UserName       string       `json:"userName"`
	Emails         []string     `json:"emails"`
	NumberOfPeople string       `json:"numberOfPeople"`
	DeliveryMethod []string     `json:"deliveryMethod"`
	Prints         int          `json:"prints"`
	EmailPhotos    int          `json:"emailPhotos"`
	PaymentType    string       `json:"paymentType"`
	Theme          string       `json:"theme,omitempty"`
	Backgrounds    []Background `json:"backgrounds"`
	Lines          []Line       `json:"lines"`
	Total          string       `json:"total"`
	IsFreeDay      bool         `json:"isFreeDay"`
	RegularTotal   string       `json:"regularTotal,omitempty"`
	Notices        []string     `json:"notices,omitempty"`
	ReadyAt        time.Time    `json:"readyAt"`
}

// Build itemises snap using its price breakdown. Blank emails are omitted.
func Build(snap session.Snapshot, now time.Time) Receipt {
	d, b := snap.Draft, snap.Breakdown

	r := Receipt{
		OrderNumber:    d.OrderNumber,
		CustomerNumber: d.CustomerNumber,
		Date:           now.Format(DateLayout),
		Time:           now.Format(TimeLayout),
		UserName:       d.UserName,
		Emails:         NonBlank(d.Emails),
		NumberOfPeople: d.NumberOfPeople,
		DeliveryMethod: slices.Clone(d.DeliveryMethod),
		PaymentType:    d.PaymentType,
		Theme:          d.Theme,
		Total:          pricing.Format(b.Total),
		IsFreeDay:      b.IsFreeDay,
	}
	if b.IncludesPrints {
		r.Prints = b.NumberOfPhotos
	}
	if slices.Contains(d.DeliveryMethod, enum.DeliveryEmail) {
		r.EmailPhotos = d.NumberOfEmailPhotos
	}

	for i, id := range d.SelectedBackgrounds {
		o := d.BackgroundOutputs[id.Key()]
		if !b.IncludesPrints {
			o.Print = 0
		}
		r.Backgrounds = append(r.Backgrounds, Background{
			Position: i + 1,
			Key:      id.Key(),
			Kind:     id.Kind().String(),
			Name:     id.Name(),
			Prints:   o.Print,
			Email:    o.Email,
		})
	}

	r.Lines = append(r.Lines, Line{Label: "Base Price", Amount: pricing.Format(b.BasePrice)})
	if b.PrintCost.IsPositive() {
		r.Lines = append(r.Lines, Line{
			Label:  fmt.Sprintf("Prints (%d x $%s)", b.NumberOfPhotos, pricing.Format(pricing.PricePerPrint)),
			Amount: pricing.Format(b.PrintCost),
		})
	}
	if b.AdditionalBackgrounds > 0 {
		r.Lines = append(r.Lines, Line{
			Label:  fmt.Sprintf("Additional Backgrounds (%d x $%s)", b.AdditionalBackgrounds, pricing.Format(pricing.AdditionalBackgroundPrice)),
			Amount: pricing.Format(b.AdditionalBackgroundCost),
		})
	}
	if b.ExtraCount > 0 {
		r.Lines = append(r.Lines, Line{
			Label:  fmt.Sprintf("Extra Backgrounds (%d)", b.ExtraCount),
			Amount: "0.00",
			Free:   true,
		})
	}
	if b.UploadedCount > 0 {
		r.Lines = append(r.Lines, Line{
			Label:  fmt.Sprintf("Custom Backgrounds (%d x $%s)", b.UploadedCount, pricing.Format(catalog.UploadSurcharge)),
			Amount: pricing.Format(b.UploadedCost),
		})
	}
	if b.IsFreeDay {
		r.RegularTotal = pricing.Format(b.Subtotal)
	}

	if b.IncludesPrints {
		r.Notices = append(r.Notices, "Return at end of night to pick up prints. Show this receipt to attendant.")
	}
	if slices.Contains(d.DeliveryMethod, enum.DeliveryEmail) && len(r.Emails) > 0 {
		r.Notices = append(r.Notices, "Digital photos will be emailed to: "+strings.Join(r.Emails, ", "))
	}
	return r
}

// NonBlank drops empty and whitespace-only entries.
func NonBlank(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
