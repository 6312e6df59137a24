package lifecycle

import (
	"context"
	"fmt"
	"time"

	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"

	"github.com/google/uuid"
)

// ledger appends and closes custody records. Writes go through the Tx of
// the caller's unit of work, reads through the shared store.
type ledger struct {
	store store.Store
}

// open appends a new open record for assetID. The store rejects it with
// ErrAlreadyAssigned if one is already open.
func (l *ledger) open(ctx context.Context, tx store.Tx, assetID, holderID string, at time.Time) (*models.AssignmentRecord, error) {
	rec := &models.AssignmentRecord{
		ID:         uuid.NewString(),
		AssetID:    assetID,
		HolderID:   holderID,
		AssignedAt: at,
		State:      models.AssignmentAssigned,
	}
	if err := tx.InsertAssignment(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// close ends the open record of assetID. The closing time never precedes
// the assignment time, even if the clock moved backwards.
func (l *ledger) close(ctx context.Context, tx store.Tx, assetID string, at time.Time) (*models.AssignmentRecord, error) {
	open, err := tx.OpenAssignment(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if at.Before(open.AssignedAt) {
		at = open.AssignedAt
	}
	return tx.CloseAssignment(ctx, assetID, at)
}

func (l *ledger) listByHolder(ctx context.Context, holderID string, state models.AssignmentState) ([]models.AssignmentRecord, error) {
	return l.store.ListAssignmentsByHolder(ctx, holderID, &state)
}

func (l *ledger) listBetween(ctx context.Context, start, end time.Time) ([]models.AssignmentRecord, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", models.ErrInvalidArgument,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return l.store.ListAssignmentsBetween(ctx, start, end)
}
