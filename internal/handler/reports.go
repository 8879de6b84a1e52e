package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/history"
	"github.com/greenscreen-pictures/kiosk/internal/pricing"
)

// HistoryLister returns the recorded orders, most recent first.
// Satisfied by *history.Store; narrow interface for testability.
type HistoryLister interface {
	List(ctx context.Context) []history.Record
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store HistoryLister
	loc   *time.Location
}

// NewReportsHandler creates a new ReportsHandler. Date ranges are interpreted
// in loc; nil means the kiosk's local time zone.
func NewReportsHandler(store HistoryLister, loc *time.Location) *ReportsHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ReportsHandler{store: store, loc: loc}
}

// RegisterRoutes registers report endpoints.
// Expected to be mounted inside the authenticated /admin subrouter.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/summary", h.Summary)
	r.Get("/reports/daily-sales", h.DailySales)
	r.Get("/reports/payment-summary", h.PaymentSummary)
}

// --- Response types ---

type summaryResponse struct {
	OrderCount      int               `json:"orderCount"`
	Revenue         string            `json:"revenue"`
	FreeDayOrders   int               `json:"freeDayOrders"`
	PeopleServed    int               `json:"peopleServed"`
	RevenueByMethod map[string]string `json:"revenueByPaymentType"`
	Pending         map[string]int    `json:"pending"`
}

type dailySalesResponse struct {
	Date       string `json:"date"`
	OrderCount int    `json:"orderCount"`
	Revenue    string `json:"revenue"`
}

type paymentSummaryResponse struct {
	PaymentType string `json:"paymentType"`
	OrderCount  int    `json:"orderCount"`
	TotalAmount string `json:"totalAmount"`
}

// --- Handlers ---

// Summary handles GET /admin/reports/summary: totals over the range plus the
// number of orders still waiting on each fulfilment step.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	records, ok := h.inRange(w, r)
	if !ok {
		return
	}

	revenue := decimal.Zero
	byMethod := map[string]decimal.Decimal{}
	for _, m := range enum.AllPaymentMethods() {
		byMethod[m] = decimal.Zero
	}
	resp := summaryResponse{
		OrderCount: len(records),
		Pending: map[string]int{
			enum.FlagPickupComplete:  0,
			enum.FlagEmailSent:       0,
			enum.FlagPicturesPrinted: 0,
			enum.FlagPictureTaken:    0,
		},
	}

	for _, rec := range records {
		amount := recordTotal(rec)
		revenue = revenue.Add(amount)
		byMethod[rec.PaymentType] = byMethod[rec.PaymentType].Add(amount)
		if rec.IsFreeDay {
			resp.FreeDayOrders++
		}
		resp.PeopleServed += peopleInRecord(rec.NumberOfPeople)

		for flag := range resp.Pending {
			if done, _ := rec.Flag(flag); !done && flagApplies(rec, flag) {
				resp.Pending[flag]++
			}
		}
	}

	resp.Revenue = pricing.Format(revenue)
	resp.RevenueByMethod = make(map[string]string, len(byMethod))
	for m, amount := range byMethod {
		resp.RevenueByMethod[m] = pricing.Format(amount)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DailySales handles GET /admin/reports/daily-sales, newest day first.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	records, ok := h.inRange(w, r)
	if !ok {
		return
	}

	type day struct {
		count   int
		revenue decimal.Decimal
	}
	days := map[string]*day{}
	for _, rec := range records {
		key := time.UnixMilli(rec.Timestamp).In(h.loc).Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &day{revenue: decimal.Zero}
			days[key] = d
		}
		d.count++
		d.revenue = d.revenue.Add(recordTotal(rec))
	}

	resp := make([]dailySalesResponse, 0, len(days))
	for date, d := range days {
		resp = append(resp, dailySalesResponse{Date: date, OrderCount: d.count, Revenue: pricing.Format(d.revenue)})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Date > resp[j].Date })

	writeJSON(w, http.StatusOK, resp)
}

// PaymentSummary handles GET /admin/reports/payment-summary.
func (h *ReportsHandler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	records, ok := h.inRange(w, r)
	if !ok {
		return
	}

	counts := map[string]int{}
	totals := map[string]decimal.Decimal{}
	for _, rec := range records {
		counts[rec.PaymentType]++
		totals[rec.PaymentType] = totals[rec.PaymentType].Add(recordTotal(rec))
	}

	resp := make([]paymentSummaryResponse, 0, len(counts))
	for method, n := range counts {
		resp = append(resp, paymentSummaryResponse{
			PaymentType: method,
			OrderCount:  n,
			TotalAmount: pricing.Format(totals[method]),
		})
	}
	sort.Slice(resp, func(i, j int) bool {
		if resp[i].OrderCount != resp[j].OrderCount {
			return resp[i].OrderCount > resp[j].OrderCount
		}
		return resp[i].PaymentType < resp[j].PaymentType
	})

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *ReportsHandler) inRange(w http.ResponseWriter, r *http.Request) ([]history.Record, bool) {
	start, end, err := parseDateRange(r, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}

	all := h.store.List(r.Context())
	out := make([]history.Record, 0, len(all))
	for _, rec := range all {
		ts := time.UnixMilli(rec.Timestamp)
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && !ts.Before(end) {
			continue
		}
		out = append(out, rec)
	}
	return out, true
}

// parseDateRange reads optional start_date and end_date (YYYY-MM-DD, end
// inclusive). A missing bound is returned as the zero time.
func parseDateRange(r *http.Request, loc *time.Location) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	var startDate, endDate time.Time
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		// Make end_date exclusive by adding 1 day
		endDate = t.AddDate(0, 0, 1)
	}

	if !startDate.IsZero() && !endDate.IsZero() && !startDate.Before(endDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}
	return startDate, endDate, nil
}

func recordTotal(rec history.Record) decimal.Decimal {
	d, err := decimal.NewFromString(rec.TotalPrice)
	if err != nil {
		log.Printf("ERROR: order %s has unreadable total %q: %v", rec.OrderNumber, rec.TotalPrice, err)
		return decimal.Zero
	}
	return d
}

// flagApplies reports whether a fulfilment step is relevant to the order:
// nothing is printed or picked up for email-only orders, nothing is emailed
// for print-only orders.
func flagApplies(rec history.Record, flag string) bool {
	hasPrints, hasEmail := false, false
	for _, m := range rec.DeliveryMethod {
		switch m {
		case enum.DeliveryPrints:
			hasPrints = true
		case enum.DeliveryEmail:
			hasEmail = true
		}
	}
	switch flag {
	case enum.FlagPickupComplete, enum.FlagPicturesPrinted:
		return hasPrints
	case enum.FlagEmailSent:
		return hasEmail
	}
	return true
}

func peopleInRecord(v string) int {
	if v == enum.PeopleTenPlus {
		return 10
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
