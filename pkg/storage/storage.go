// Package storage provides sinks that persist parsed query records.
package storage

import (
	"context"
	"fmt"

	"github.com/ccollicutt/bindlog/pkg/config"
	"github.com/ccollicutt/bindlog/pkg/parser"
)

// Store is a sink for parsed records that holds resources until closed.
type Store interface {
	// Store persists one record.
	Store(ctx context.Context, rec parser.QueryRecord) error

	// Close releases the store.
	Close() error
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.StorageDriverSQLite:
		s, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageDriverJSONL:
		s, err := OpenJSONL(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageDriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
