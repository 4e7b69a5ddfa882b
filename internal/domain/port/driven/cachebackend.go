package driven

import (
	"context"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

// CacheBackend defines the driven port for persisting the response cache.
// The whole snapshot is read and written at once; callers serialize
// Load/Save cycles.
type CacheBackend interface {
	// Load returns the persisted snapshot. A backend with no stored data
	// returns an empty snapshot with an empty fingerprint.
	Load(ctx context.Context) (model.CacheSnapshot, error)

	// Save replaces the persisted snapshot.
	Save(ctx context.Context, snapshot model.CacheSnapshot) error
}
