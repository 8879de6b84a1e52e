// Package history is the durable, most-recent-first log of completed orders
// with mutable fulfilment flags.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"

	"github.com/greenscreen-pictures/kiosk/internal/catalog"
	"github.com/greenscreen-pictures/kiosk/internal/enum"
	"github.com/greenscreen-pictures/kiosk/internal/kv"
	"github.com/greenscreen-pictures/kiosk/internal/outputs"
)

// MaxRecords is the number of most recent records retained.
const MaxRecords = 500

var (
	ErrCorrupt     = errors.New("order history is not a JSON array of records")
	ErrUnknownFlag = errors.New("unknown fulfilment flag")
)

// Record is a completed order. Everything except the fulfilment flags and
// FinalPhotos is fixed when the record is created.
type Record struct {
	ID                  string                 `json:"id"`
	OrderNumber         string                 `json:"orderNumber"`
	CustomerNumber      string                 `json:"customerNumber"`
	Timestamp           int64                  `json:"timestamp"`
	Date                string                 `json:"date"`
	Time                string                 `json:"time"`
	UserName            string                 `json:"userName"`
	Emails              []string               `json:"emails"`
	NumberOfPeople      string                 `json:"numberOfPeople"`
	SelectedBackgrounds []catalog.BackgroundID `json:"selectedBackgrounds"`
	BackgroundOutputs   outputs.Outputs        `json:"backgroundOutputs,omitempty"`
	DeliveryMethod      []string               `json:"deliveryMethod"`
	NumberOfPhotos      int                    `json:"numberOfPhotos"`
	NumberOfEmailPhotos int                    `json:"numberOfEmailPhotos"`
	PaymentType         string                 `json:"paymentType"`
	BasePrice           string                 `json:"basePrice"`
	Theme               string                 `json:"theme"`
	IsFreeDay           bool                   `json:"isFreeDay"`
	TotalPrice          string                 `json:"totalPrice"`
	CapturedPhotos      []string               `json:"capturedPhotos"`

	PickupComplete  bool     `json:"pickupComplete"`
	EmailSent       bool     `json:"emailSent"`
	PicturesPrinted bool     `json:"picturesPrinted"`
	PictureTaken    bool     `json:"pictureTaken"`
	FinalPhotos     []string `json:"finalPhotos,omitempty"`
}

// UnmarshalJSON decodes background ids with catalog.DecodeStored so a record
// naming a retired backdrop still loads.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		SelectedBackgrounds []json.RawMessage `json:"selectedBackgrounds"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.SelectedBackgrounds = nil
	if aux.SelectedBackgrounds != nil {
		r.SelectedBackgrounds = make([]catalog.BackgroundID, 0, len(aux.SelectedBackgrounds))
	}
	for i, raw := range aux.SelectedBackgrounds {
		id, err := catalog.DecodeStored(raw)
		if err != nil {
			return fmt.Errorf("selectedBackgrounds[%d]: %w", i, err)
		}
		r.SelectedBackgrounds = append(r.SelectedBackgrounds, id)
	}
	return nil
}

// Flag returns the named fulfilment flag.
func (r *Record) Flag(name string) (bool, error) {
	switch name {
	case enum.FlagPickupComplete:
		return r.PickupComplete, nil
	case enum.FlagEmailSent:
		return r.EmailSent, nil
	case enum.FlagPicturesPrinted:
		return r.PicturesPrinted, nil
	case enum.FlagPictureTaken:
		return r.PictureTaken, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
}

func (r *Record) setFlag(name string, value bool) error {
	switch name {
	case enum.FlagPickupComplete:
		r.PickupComplete = value
	case enum.FlagEmailSent:
		r.EmailSent = value
	case enum.FlagPicturesPrinted:
		r.PicturesPrinted = value
	case enum.FlagPictureTaken:
		r.PictureTaken = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFlag, name)
	}
	return nil
}

func (r *Record) matches(q string) bool {
	if strings.Contains(strings.ToLower(r.OrderNumber), q) ||
		strings.Contains(strings.ToLower(r.CustomerNumber), q) ||
		strings.Contains(strings.ToLower(r.UserName), q) {
		return true
	}
	for _, e := range r.Emails {
		if strings.Contains(strings.ToLower(e), q) {
			return true
		}
	}
	return false
}

// Store reads and rewrites the whole history value on every operation.
// Errors are logged and never returned: reads degrade to an empty view and
// failed writes leave the stored value as it was.
type Store struct {
	mu       sync.Mutex
	kv       kv.Store
	logger   *log.Logger
	onChange func()
}

// New creates a Store. A nil logger uses log.Default().
func New(store kv.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{kv: store, logger: logger}
}

// OnChange registers fn to run after every successful write.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Append inserts rec at the head and trims the log to MaxRecords.
func (s *Store) Append(ctx context.Context, rec Record) bool {
	return s.mutate(ctx, "append order", func(records []Record) ([]Record, bool) {
		records = slices.Insert(records, 0, rec)
		if len(records) > MaxRecords {
			records = records[:MaxRecords]
		}
		return records, true
	})
}

// UpdateFlag sets one fulfilment flag on every record with orderNumber.
// Reports whether any record matched.
func (s *Store) UpdateFlag(ctx context.Context, orderNumber, flag string, value bool) bool {
	if !enum.IsFlag(flag) {
		s.logger.Printf("ERROR: update flag on %s: %v", orderNumber, fmt.Errorf("%w: %q", ErrUnknownFlag, flag))
		return false
	}
	return s.mutate(ctx, "update flag", func(records []Record) ([]Record, bool) {
		found := false
		for i := range records {
			if records[i].OrderNumber == orderNumber {
				_ = records[i].setFlag(flag, value)
				found = true
			}
		}
		return records, found
	})
}

// AttachFinalPhoto appends payload to FinalPhotos of every record with
// orderNumber that does not already hold it. Reports whether anything changed.
func (s *Store) AttachFinalPhoto(ctx context.Context, orderNumber, payload string) bool {
	return s.mutate(ctx, "attach final photo", func(records []Record) ([]Record, bool) {
		changed := false
		for i := range records {
			if records[i].OrderNumber != orderNumber || slices.Contains(records[i].FinalPhotos, payload) {
				continue
			}
			records[i].FinalPhotos = append(records[i].FinalPhotos, payload)
			changed = true
		}
		return records, changed
	})
}

// List returns all records, most recent first.
func (s *Store) List(ctx context.Context) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx)
}

// Get returns the most recent record with orderNumber.
func (s *Store) Get(ctx context.Context, orderNumber string) (Record, bool) {
	for _, r := range s.List(ctx) {
		if r.OrderNumber == orderNumber {
			return r, true
		}
	}
	return Record{}, false
}

// Search returns records whose order number, customer number, name or any
// email contains q, ignoring case. An empty q returns everything.
func (s *Store) Search(ctx context.Context, q string) []Record {
	records := s.List(ctx)
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return records
	}
	out := make([]Record, 0, len(records))
	for i := range records {
		if records[i].matches(q) {
			out = append(out, records[i])
		}
	}
	return out
}

// read returns the stored records, or nil when nothing is stored or the value
// cannot be decoded. Callers hold s.mu.
func (s *Store) read(ctx context.Context) []Record {
	records, err := s.load(ctx)
	if err != nil {
		s.logger.Printf("ERROR: failed to load order history: %v", err)
		return nil
	}
	return records
}

func (s *Store) load(ctx context.Context) ([]Record, error) {
	raw, err := s.kv.Get(ctx, kv.KeyOrderHistory)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kv.KeyOrderHistory, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return records, nil
}

// mutate loads, applies fn and writes back when fn reports a change. A load
// failure skips the write so undecodable bytes are never replaced.
func (s *Store) mutate(ctx context.Context, op string, fn func([]Record) ([]Record, bool)) bool {
	s.mu.Lock()
	records, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		s.logger.Printf("ERROR: %s: %v", op, err)
		return false
	}
	records, changed := fn(records)
	if !changed {
		s.mu.Unlock()
		return false
	}
	data, err := json.Marshal(records)
	if err == nil {
		err = s.kv.Set(ctx, kv.KeyOrderHistory, data)
	}
	onChange := s.onChange
	s.mu.Unlock()

	if err != nil {
		s.logger.Printf("ERROR: %s: failed to save order history: %v", op, err)
		return false
	}
	if onChange != nil {
		onChange()
	}
	return true
}
