// Package catalog defines background identifiers and the fixed backdrop catalog.
//
// A background is one of three kinds: a numbered standard backdrop, a free
// curated extra, or a paid customer upload. Pricing and selection rules hang off
// the kind rather than off the shape of the identifier string.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies a BackgroundID.
type Kind int

const (
	KindStandard Kind = iota + 1
	KindExtra
	KindUploaded
	// KindUnrecognized holds a stored id this build does not know. It only
	// comes from DecodeStored and is never selectable.
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindExtra:
		return "extra"
	case KindUploaded:
		return "uploaded"
	case KindUnrecognized:
		return "unrecognized"
	}
	return "unknown"
}

const (
	extraPrefix    = "custom-"
	uploadedPrefix = "uploaded-custom-"
)

var ErrUnknownBackground = errors.New("unknown background id")

// UploadSurcharge is charged for each customer-uploaded background.
var UploadSurcharge = decimal.RequireFromString("5.00")

// BackgroundID identifies one selectable backdrop. The zero value is invalid.
type BackgroundID struct {
	kind Kind
	num  int
	tag  string
}

// Standard returns the id of standard catalog backdrop n.
func Standard(n int) BackgroundID { return BackgroundID{kind: KindStandard, num: n} }

// Extra returns the id of curated extra "custom-<tag>".
func Extra(tag string) BackgroundID { return BackgroundID{kind: KindExtra, tag: tag} }

// Uploaded returns the id of customer upload "uploaded-custom-<tag>".
func Uploaded(tag string) BackgroundID { return BackgroundID{kind: KindUploaded, tag: tag} }

func (b BackgroundID) Kind() Kind   { return b.kind }
func (b BackgroundID) IsZero() bool { return b.kind == 0 }

// Number is the catalog number of a standard backdrop, 0 otherwise.
func (b BackgroundID) Number() int {
	if b.kind != KindStandard {
		return 0
	}
	return b.num
}

// Key is the canonical string form, used as the background-outputs map key.
func (b BackgroundID) Key() string {
	switch b.kind {
	case KindStandard:
		return strconv.Itoa(b.num)
	case KindExtra:
		return extraPrefix + b.tag
	case KindUploaded:
		return uploadedPrefix + b.tag
	case KindUnrecognized:
		return b.tag
	}
	return ""
}

func (b BackgroundID) String() string { return b.Key() }

// Chargeable reports whether the background counts toward the
// "first included, each additional paid" rule.
func (b BackgroundID) Chargeable() bool {
	return b.kind == KindStandard || b.kind == KindUploaded
}

// Surcharge is the flat fee charged on top of the additional-background fee.
func (b BackgroundID) Surcharge() decimal.Decimal {
	if b.kind == KindUploaded {
		return UploadSurcharge
	}
	return decimal.Zero
}

// Exclusive reports whether at most one background of this kind may be selected.
func (b BackgroundID) Exclusive() bool { return b.kind == KindUploaded }

// Name is the display name shown on screens and receipts.
func (b BackgroundID) Name() string {
	switch b.kind {
	case KindStandard:
		if name, ok := standardNames[b.num]; ok {
			return name
		}
		return fmt.Sprintf("Background %d", b.num)
	case KindExtra:
		if name, ok := extraNames[b.tag]; ok {
			return name
		}
		return "Extra " + b.tag
	case KindUploaded:
		return "Custom Upload " + b.tag
	case KindUnrecognized:
		return "Background " + b.tag
	}
	return ""
}

// Parse reads the canonical string form. Standard and extra ids must exist in the catalog.
func Parse(s string) (BackgroundID, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, uploadedPrefix):
		tag := strings.TrimPrefix(s, uploadedPrefix)
		if tag == "" {
			return BackgroundID{}, fmt.Errorf("%w: %q", ErrUnknownBackground, s)
		}
		return Uploaded(tag), nil
	case strings.HasPrefix(s, extraPrefix):
		tag := strings.TrimPrefix(s, extraPrefix)
		if _, ok := extraNames[tag]; !ok {
			return BackgroundID{}, fmt.Errorf("%w: %q", ErrUnknownBackground, s)
		}
		return Extra(tag), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !IsStandard(n) {
		return BackgroundID{}, fmt.Errorf("%w: %q", ErrUnknownBackground, s)
	}
	return Standard(n), nil
}

// MarshalJSON writes standard ids as numbers and the others as strings.
// Unrecognized ids keep the shape they were stored with.
func (b BackgroundID) MarshalJSON() ([]byte, error) {
	if b.kind == KindStandard {
		return []byte(strconv.Itoa(b.num)), nil
	}
	if b.kind == KindUnrecognized {
		if _, err := strconv.Atoi(b.tag); err == nil {
			return []byte(b.tag), nil
		}
	}
	return json.Marshal(b.Key())
}

// UnmarshalJSON accepts either a JSON number or a string.
func (b *BackgroundID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id, err := Parse(s)
		if err != nil {
			return err
		}
		*b = id
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownBackground, data)
	}
	if !IsStandard(n) {
		return fmt.Errorf("%w: %d", ErrUnknownBackground, n)
	}
	*b = Standard(n)
	return nil
}

// DecodeStored reads an id from persisted data. Ids that no longer resolve are
// kept verbatim as KindUnrecognized so old records stay readable and survive a
// rewrite with their original key.
func DecodeStored(data []byte) (BackgroundID, error) {
	var id BackgroundID
	err := id.UnmarshalJSON(data)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrUnknownBackground) {
		return BackgroundID{}, err
	}
	var key string
	if json.Unmarshal(data, &key) != nil {
		var n json.Number
		if json.Unmarshal(data, &n) != nil || n == "" {
			return BackgroundID{}, err
		}
		key = n.String()
	}
	if key = strings.TrimSpace(key); key == "" {
		return BackgroundID{}, err
	}
	return BackgroundID{kind: KindUnrecognized, tag: key}, nil
}

// Keys returns the canonical keys of ids, preserving order.
func Keys(ids []BackgroundID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Key()
	}
	return out
}

// Index returns the position of id in ids, or -1.
func Index(ids []BackgroundID, id BackgroundID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
