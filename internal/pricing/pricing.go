// Package pricing computes the price of a kiosk order. Compute is pure; every
// running total, the receipt and the persisted history record use it.
package pricing

import (
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
)

var (
	PricePerPrint             = decimal.RequireFromString("2.00")
	AdditionalBackgroundPrice = decimal.RequireFromString("2.50")
)

// Input holds the order attributes that affect price.
type Input struct {
	BasePrice       string
	NumberOfPhotos  int
	DeliveryMethods []string
	Backgrounds     []catalog.BackgroundID
	IsFreeDay       bool
}

// Breakdown contains every line item of the calculation at full precision.
type Breakdown struct {
	BasePrice                decimal.Decimal
	PrintCost                decimal.Decimal
	AdditionalBackgroundCost decimal.Decimal
	UploadedCost             decimal.Decimal
	Subtotal                 decimal.Decimal
	Total                    decimal.Decimal

	NumberOfPhotos        int
	IncludesPrints        bool
	StandardCount         int
	ExtraCount            int
	UploadedCount         int
	ChargeableCount       int
	AdditionalBackgrounds int
	IsFreeDay             bool
}

// Compute prices an order. The first chargeable background is included in the
// base price; on a free day Total is zero and the other terms are still reported.
func Compute(in Input) Breakdown {
	b := Breakdown{
		BasePrice:      ParseBasePrice(in.BasePrice),
		NumberOfPhotos: in.NumberOfPhotos,
		IncludesPrints: slices.Contains(in.DeliveryMethods, enum.DeliveryPrints),
		IsFreeDay:      in.IsFreeDay,
	}
	if b.NumberOfPhotos < 1 {
		b.NumberOfPhotos = 1
	}

	b.UploadedCost = decimal.Zero
	for _, id := range in.Backgrounds {
		switch id.Kind() {
		case catalog.KindStandard:
			b.StandardCount++
		case catalog.KindExtra:
			b.ExtraCount++
		case catalog.KindUploaded:
			b.UploadedCount++
		}
		if id.Chargeable() {
			b.ChargeableCount++
		}
		b.UploadedCost = b.UploadedCost.Add(id.Surcharge())
	}

	b.PrintCost = decimal.Zero
	if b.IncludesPrints {
		b.PrintCost = PricePerPrint.Mul(decimal.NewFromInt(int64(b.NumberOfPhotos)))
	}

	if b.ChargeableCount > 1 {
		b.AdditionalBackgrounds = b.ChargeableCount - 1
	}
	b.AdditionalBackgroundCost = AdditionalBackgroundPrice.Mul(decimal.NewFromInt(int64(b.AdditionalBackgrounds)))

	b.Subtotal = b.BasePrice.Add(b.PrintCost).Add(b.AdditionalBackgroundCost).Add(b.UploadedCost)
	b.Total = b.Subtotal
	if b.IsFreeDay {
		b.Total = decimal.Zero
	}
	return b
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)([eE][+-]?\d+)?`)

// ParseBasePrice reads the longest numeric prefix of s. Unparseable or negative values are 0.
func ParseBasePrice(s string) decimal.Decimal {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Money is a Breakdown rounded for presentation.
type Money struct {
	BasePrice                string `json:"basePrice"`
	PrintCost                string `json:"printCost"`
	AdditionalBackgroundCost string `json:"additionalBackgroundCost"`
	UploadedCost             string `json:"uploadedCost"`
	Subtotal                 string `json:"subtotal"`
	Total                    string `json:"total"`

	NumberOfPhotos        int  `json:"numberOfPhotos"`
	IncludesPrints        bool `json:"includesPrints"`
	StandardCount         int  `json:"standardCount"`
	ExtraCount            int  `json:"extraCount"`
	UploadedCount         int  `json:"uploadedCount"`
	AdditionalBackgrounds int  `json:"additionalBackgrounds"`
	IsFreeDay             bool `json:"isFreeDay"`
}

// Money rounds each amount to two decimal places.
func (b Breakdown) Money() Money {
	return Money{
		BasePrice:                Format(b.BasePrice),
		PrintCost:                Format(b.PrintCost),
		AdditionalBackgroundCost: Format(b.AdditionalBackgroundCost),
		UploadedCost:             Format(b.UploadedCost),
		Subtotal:                 Format(b.Subtotal),
		Total:                    Format(b.Total),
		NumberOfPhotos:           b.NumberOfPhotos,
		IncludesPrints:           b.IncludesPrints,
		StandardCount:            b.StandardCount,
		ExtraCount:               b.ExtraCount,
		UploadedCount:            b.UploadedCount,
		AdditionalBackgrounds:    b.AdditionalBackgrounds,
		IsFreeDay:                b.IsFreeDay,
	}
}

// Format renders an amount with exactly two decimal places.
func Format(d decimal.Decimal) string { return d.StringFixed(2) }
