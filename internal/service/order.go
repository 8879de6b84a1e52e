package service

import (
	"context"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/clock"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/history"
	"github.com/greenscreen-pictures/kiosk/internal/pricing"
	"github.com/greenscreen-pictures/kiosk/internal/receipt"
	"github.com/greenscreen-pictures/kiosk/internal/session"
)

// Fallbacks written to the history record for fields left blank.
const (
	UnknownCustomerNumber = "N/A"
	UnknownUserName       = "Unknown"
	FallbackBasePrice     = "0.00"
)

// HistoryAppender persists completed orders.
// Satisfied by *history.Store; narrow interface for testability.
type HistoryAppender interface {
	Append(ctx context.Context, rec history.Record) bool
}

// OrderService turns a completed session into its receipt and history record.
type OrderService struct {
	history      HistoryAppender
	clock        clock.Clock
	receiptDelay time.Duration
	newID        func() string
	logger       *log.Logger
}

// NewOrderService creates a new OrderService. A nil clock uses the system time.
func NewOrderService(h HistoryAppender, c clock.Clock, receiptDelay time.Duration, logger *log.Logger) *OrderService {
	if logger == nil {
		logger = log.Default()
	}
	return &OrderService{
		history:      h,
		clock:        clock.OrReal(c),
		receiptDelay: receiptDelay,
		newID:        uuid.NewString,
		logger:       logger,
	}
}

// Finalize builds the receipt and the history record from the same price
// breakdown and appends the record straight away. The receipt's ReadyAt is
// only a display hint; the record is already committed when Finalize returns.
// A failed append is logged and does not block the customer.
func (s *OrderService) Finalize(ctx context.Context, snap session.Snapshot) (receipt.Receipt, history.Record) {
	now := s.clock.Now()

	rec := NewRecord(snap, now, s.newID())
	r := receipt.Build(snap, now)
	r.ReadyAt = now.Add(s.receiptDelay)

	if !s.history.Append(ctx, rec) {
		s.logger.Printf("ERROR: order %s was not saved to history", rec.OrderNumber)
	}
	return r, rec
}

// NewRecord normalises a completed session into a history record.
func NewRecord(snap session.Snapshot, now time.Time, id string) history.Record {
	d := snap.Draft

	rec := history.Record{
		ID:                  id,
		OrderNumber:         d.OrderNumber,
		CustomerNumber:      orDefault(d.CustomerNumber, UnknownCustomerNumber),
		Timestamp:           now.UnixMilli(),
		Date:                now.Format(receipt.DateLayout),
		Time:                now.Format(receipt.TimeLayout),
		UserName:            orDefault(d.UserName, UnknownUserName),
		Emails:              receipt.NonBlank(d.Emails),
		NumberOfPeople:      orDefault(d.NumberOfPeople, "1"),
		SelectedBackgrounds: slices.Clone(d.SelectedBackgrounds),
		BackgroundOutputs:   d.BackgroundOutputs.Clone(),
		DeliveryMethod:      slices.Clone(d.DeliveryMethod),
		NumberOfPhotos:      d.NumberOfPhotos,
		NumberOfEmailPhotos: d.NumberOfEmailPhotos,
		PaymentType:         orDefault(d.PaymentType, enum.PaymentCash),
		BasePrice:           orDefault(d.BasePrice, FallbackBasePrice),
		Theme:               d.Theme,
		IsFreeDay:           snap.Breakdown.IsFreeDay,
		TotalPrice:          pricing.Format(snap.Breakdown.Total),
		CapturedPhotos:      slices.Clone(d.CapturedPhotos),
	}
	if rec.SelectedBackgrounds == nil {
		rec.SelectedBackgrounds = []catalog.BackgroundID{}
	}
	if rec.CapturedPhotos == nil {
		rec.CapturedPhotos = []string{}
	}
	return rec
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
