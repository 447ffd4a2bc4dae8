// Package accredit synchronizes IT accreditation snapshots from the NSI
// registry into a local store and serves them back to the dataset layer.
package accredit

import (
	"context"

	"github.com/sells-group/mspdash/internal/model"
)

// Store persists accreditation snapshots keyed by INN, plus a log of sync
// batches. Upsert must be atomic per key: exactly one row per INN after any
// call, never a duplicate.
type Store interface {
	// GetByINN returns the snapshot for one INN, or nil when none exists.
	GetByINN(ctx context.Context, inn string) (*model.Accreditation, error)

	// GetForINNs bulk-loads snapshots for the given INNs, keyed by INN.
	// Unknown INNs are simply absent from the result.
	GetForINNs(ctx context.Context, inns []string) (map[string]*model.Accreditation, error)

	// Upsert inserts or fully replaces the snapshot for its INN.
	Upsert(ctx context.Context, snapshot *model.Accreditation) error

	// LogSync records a completed sync batch.
	LogSync(ctx context.Context, batch model.SyncBatch) error

	// LastSync returns the most recently finished batch, or nil if no
	// sync has run yet.
	LastSync(ctx context.Context) (*model.SyncBatch, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
