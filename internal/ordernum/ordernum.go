// Package ordernum issues sequential four-digit order numbers from a counter
// persisted under kv.KeyOrderCounter.
package ordernum

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/greenscreen-pictures/kiosk/internal/clock"
	"github.com/greenscreen-pictures/kiosk/internal/kv"
)

// Service hands out order numbers. Safe for concurrent use within one process;
// across processes sharing a store the last write wins.
type Service struct {
	mu     sync.Mutex
	store  kv.Store
	clock  clock.Clock
	logger *log.Logger
}

// New creates a Service. A nil clock uses the system time and a nil logger uses log.Default().
func New(store kv.Store, c clock.Clock, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, clock: clock.OrReal(c), logger: logger}
}

// Format zero-pads n to four digits. Wider values are not truncated.
func Format(n int) string { return fmt.Sprintf("%04d", n) }

// Next increments the counter and returns the new value formatted.
// If the store cannot be read or written it logs and returns a number derived
// from the current time modulo 10000, without touching the counter.
func (s *Service) Next(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(ctx)
	if err != nil {
		s.logger.Printf("ERROR: failed to read order counter: %v", err)
		return s.fallback()
	}
	next := current + 1
	if err := s.store.Set(ctx, kv.KeyOrderCounter, []byte(strconv.Itoa(next))); err != nil {
		s.logger.Printf("ERROR: failed to persist order counter: %v", err)
		return s.fallback()
	}
	return Format(next)
}

// Current returns the counter without incrementing it; 0 if unset or unreadable.
func (s *Service) Current(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.read(ctx)
	if err != nil {
		s.logger.Printf("ERROR: failed to read order counter: %v", err)
		return 0
	}
	return n
}

// Reset overwrites the counter with start. Issued order numbers are unaffected.
func (s *Service) Reset(ctx context.Context, start int) error {
	return s.write(ctx, start)
}

// Set overwrites the counter with v; negative values are stored as 0.
func (s *Service) Set(ctx context.Context, v int) error {
	if v < 0 {
		s.logger.Printf("WARN: order counter cannot be negative (%d), setting to 0", v)
		v = 0
	}
	return s.write(ctx, v)
}

func (s *Service) write(ctx context.Context, v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(ctx, kv.KeyOrderCounter, []byte(strconv.Itoa(v))); err != nil {
		s.logger.Printf("ERROR: failed to reset order counter: %v", err)
		return fmt.Errorf("write order counter: %w", err)
	}
	return nil
}

func (s *Service) read(ctx context.Context) (int, error) {
	raw, err := s.store.Get(ctx, kv.KeyOrderCounter)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("parse order counter %q: %w", text, err)
	}
	return n, nil
}

func (s *Service) fallback() string {
	return Format(int(s.clock.Now().UnixMilli() % 10000))
}
