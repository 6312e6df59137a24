// Package store defines the persistence contracts for assets, the
// assignment ledger and the principal directory.
package store

import (
	"context"
	"time"

	"asset-custody-api/internal/models"
)

// AssetQuery selects assets at the storage layer. IDs, when non-nil,
// restricts the result to the given asset ids (an empty slice matches nothing).
type AssetQuery struct {
	Category *models.Category
	Status   *models.Status
	IDs      []string
}

// Store is a shared handle over the asset catalog and the ledger.
// Reads outside WithAsset are not linearizable with concurrent writes.
type Store interface {
	// CreateAsset inserts a new asset. Fails with models.ErrDuplicateSerialNumber
	// if the serial number is taken.
	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	ListAssets(ctx context.Context, q AssetQuery) ([]models.Asset, error)

	// OpenAssignment returns the open ledger record for assetID, or
	// models.ErrNoOpenAssignment.
	OpenAssignment(ctx context.Context, assetID string) (*models.AssignmentRecord, error)
	// ListAssignmentsByHolder returns the holder's records, optionally
	// restricted to one state, ordered by assignedAt.
	ListAssignmentsByHolder(ctx context.Context, holderID string, state *models.AssignmentState) ([]models.AssignmentRecord, error)
	// ListAssignmentsBetween returns records whose custody interval overlaps
	// [start, end], ordered by assignedAt.
	ListAssignmentsBetween(ctx context.Context, start, end time.Time) ([]models.AssignmentRecord, error)

	// WithAsset runs fn as one atomic unit holding exclusive access to
	// assetID. Writes made through tx become visible only if fn returns nil.
	WithAsset(ctx context.Context, assetID string, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the unit of work handed to Store.WithAsset. It must not be used
// after fn returns.
type Tx interface {
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	// UpdateAsset replaces the stored asset. A serial number change fails with
	// models.ErrDuplicateSerialNumber if the new value is taken.
	UpdateAsset(ctx context.Context, asset *models.Asset) error
	DeleteAsset(ctx context.Context, id string) error

	OpenAssignment(ctx context.Context, assetID string) (*models.AssignmentRecord, error)
	// InsertAssignment appends an open record. Fails with
	// models.ErrAlreadyAssigned if the asset already has one.
	InsertAssignment(ctx context.Context, rec *models.AssignmentRecord) error
	// CloseAssignment closes the asset's open record at the given time and
	// returns it. Fails with models.ErrNoOpenAssignment if none exists.
	CloseAssignment(ctx context.Context, assetID string, at time.Time) (*models.AssignmentRecord, error)
	// DeleteAssignments removes every record of the asset and reports how many.
	DeleteAssignments(ctx context.Context, assetID string) (int, error)
}

// Directory resolves principals. Fails with models.ErrNotFound for
// unknown ids.
type Directory interface {
	LookupPrincipal(ctx context.Context, id string) (*models.Principal, error)
}
