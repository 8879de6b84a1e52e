// Package photomatch attaches finished photos to history records by reading
// the order number out of the uploaded file name.
package photomatch

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/greenscreen-pictures/kiosk/internal/history"
)

// Status represents the outcome of matching one file.
type Status int

const (
	Matched Status = iota
	Duplicate
	Unmatched
	NoOrderNumber
	NotImage
	SaveFailed
)

func (s Status) String() string {
	switch s {
	case Matched:
		return "Matched"
	case Duplicate:
		return "Duplicate"
	case Unmatched:
		return "Unmatched"
	case NoOrderNumber:
		return "NoOrderNumber"
	case NotImage:
		return "NotImage"
	case SaveFailed:
		return "SaveFailed"
	default:
		return "Unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for c := Matched; c <= SaveFailed; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown match status %q", b)
}

// Tried in order; the first with a match wins.
var orderNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d{4})\.`),
	regexp.MustCompile(`(?i)order[_-]?(\d{4})`),
	regexp.MustCompile(`(?i)photo[_-]?(\d{4})`),
	regexp.MustCompile(`(?i)(\d{4})[_-]?photo`),
	regexp.MustCompile(`(\d{4})`),
}

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".heic", ".heif", ".tiff", ".tif", ".svg"}
	imageTypes      = []string{
		"image/jpeg", "image/jpg", "image/png", "image/gif", "image/bmp",
		"image/webp", "image/heic", "image/heif", "image/tiff", "image/svg+xml",
	}
)

// ExtractOrderNumber returns the four-digit order number embedded in filename.
func ExtractOrderNumber(filename string) (string, bool) {
	for _, re := range orderNumberPatterns {
		if m := re.FindStringSubmatch(filename); len(m) > 1 && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// IsImageFile accepts a known image MIME type or file extension.
func IsImageFile(filename, mimeType string) bool {
	if slices.Contains(imageTypes, strings.ToLower(mimeType)) {
		return true
	}
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(filename)))
}

// HistoryStore is the subset of history.Store the matcher needs.
// Satisfied by *history.Store; narrow interface for testability.
type HistoryStore interface {
	Get(ctx context.Context, orderNumber string) (history.Record, bool)
	AttachFinalPhoto(ctx context.Context, orderNumber, payload string) bool
}

// File is one uploaded photo. Payload is stored verbatim, typically a data URL.
type File struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Payload  string `json:"payload"`
}

// Result contains the outcome for one file.
type Result struct {
	Name        string `json:"name"`
	Status      Status `json:"status"`
	OrderNumber string `json:"orderNumber,omitempty"`
}

// Summary contains per-file results and counts for a batch.
type Summary struct {
	Results   []Result `json:"results"`
	Matched   int      `json:"matched"`
	Unmatched int      `json:"unmatched"`
}

// Matcher links uploaded files to order history.
type Matcher struct {
	store HistoryStore
}

func New(store HistoryStore) *Matcher {
	return &Matcher{store: store}
}

// Match attaches f to the record whose order number appears in its name.
func (m *Matcher) Match(ctx context.Context, f File) Result {
	res := Result{Name: f.Name}
	if !IsImageFile(f.Name, f.MIMEType) {
		res.Status = NotImage
		return res
	}
	orderNumber, ok := ExtractOrderNumber(f.Name)
	if !ok {
		res.Status = NoOrderNumber
		return res
	}
	res.OrderNumber = orderNumber

	rec, found := m.store.Get(ctx, orderNumber)
	if !found {
		res.Status = Unmatched
		return res
	}
	switch {
	case slices.Contains(rec.FinalPhotos, f.Payload):
		res.Status = Duplicate
	case m.store.AttachFinalPhoto(ctx, orderNumber, f.Payload):
		res.Status = Matched
	case m.attached(ctx, orderNumber, f.Payload):
		// Lost a race with an identical upload.
		res.Status = Duplicate
	default:
		res.Status = SaveFailed
	}
	return res
}

func (m *Matcher) attached(ctx context.Context, orderNumber, payload string) bool {
	rec, ok := m.store.Get(ctx, orderNumber)
	return ok && slices.Contains(rec.FinalPhotos, payload)
}

// MatchAll matches every file. Duplicates count as matched; save failures do not.
func (m *Matcher) MatchAll(ctx context.Context, files []File) Summary {
	sum := Summary{Results: make([]Result, 0, len(files))}
	for _, f := range files {
		r := m.Match(ctx, f)
		sum.Results = append(sum.Results, r)
		switch r.Status {
		case Matched, Duplicate:
			sum.Matched++
		default:
			sum.Unmatched++
		}
	}
	return sum
}
