// Package backend opens the kv.Store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log"

	"github.com/greenscreen-pictures/kiosk/internal/config"
	"github.com/greenscreen-pictures/kiosk/internal/kv"
	"github.com/greenscreen-pictures/kiosk/internal/kv/filestore"
	"github.com/greenscreen-pictures/kiosk/internal/kv/pgstore"
	"github.com/greenscreen-pictures/kiosk/internal/kv/sqlitestore"
)

// Open returns the store for cfg.StoreDriver and a func that releases it.
func Open(ctx context.Context, cfg *config.Config) (kv.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Printf("store: in-memory (data is lost on restart)")
		return kv.NewMemory(), func() error { return nil }, nil

	case config.DriverFile:
		s, err := filestore.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		log.Printf("store: file %s", cfg.StorePath)
		return s, s.Close, nil

	case config.DriverSQLite:
		s, err := sqlitestore.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Printf("store: sqlite %s", cfg.StorePath)
		return s, s.Close, nil

	case config.DriverPostgres:
		s, closePool, err := pgstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Printf("store: postgres")
		return s, func() error { closePool(); return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
