package storage

import (
	"context"

	"github.com/oddslab/parity-arb/pkg/types"
)

// Storage is the write-only sink for closed-position records. Saved records
// are observability output; aggregate statistics are always recomputed from
// the in-memory exit history, never read back from here.
type Storage interface {
	// SaveExit persists one closed-position record.
	SaveExit(ctx context.Context, rec types.ExitRecord) error

	// Close closes the storage connection.
	Close() error
}
