package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asset-custody-api/internal/models"
)

// CurrentHolderView returns the holder's open assignments joined with the
// assets they refer to
func (e *Engine) CurrentHolderView(ctx context.Context, caller models.Principal, holderID string) (out []models.Holding, err error) {
	defer e.observe(OpCurrentHolderView, &err)
	return e.holderView(ctx, caller, OpCurrentHolderView, holderID, models.AssignmentAssigned)
}

// HistoryView returns the holder's closed assignments joined with the
// assets they refer to
func (e *Engine) HistoryView(ctx context.Context, caller models.Principal, holderID string) (out []models.Holding, err error) {
	defer e.observe(OpHistoryView, &err)
	return e.holderView(ctx, caller, OpHistoryView, holderID, models.AssignmentUnassigned)
}

func (e *Engine) holderView(ctx context.Context, caller models.Principal, op Operation, holderID string, state models.AssignmentState) ([]models.Holding, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := Authorize(caller, op, Resource{HolderID: holderID}); err != nil {
		return nil, err
	}
	if _, err := e.directory.LookupPrincipal(ctx, holderID); err != nil {
		return nil, fmt.Errorf("holder %s: %w", holderID, err)
	}

	recs, err := e.ledger.listByHolder(ctx, holderID, state)
	if err != nil {
		return nil, err
	}
	out := make([]models.Holding, 0, len(recs))
	for _, rec := range recs {
		asset, err := e.store.GetAsset(ctx, rec.AssetID)
		if errors.Is(err, models.ErrNotFound) {
			// deleted after the ledger read
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, models.Holding{AssignmentRecord: rec, Asset: asset.Summary()})
	}
	return out, nil
}

// AssignedBetween returns the records whose custody interval overlaps
// [start, end]. Records still open count as extending past end.
func (e *Engine) AssignedBetween(ctx context.Context, caller models.Principal, start, end time.Time) (recs []models.AssignmentRecord, err error) {
	defer e.observe(OpAssignedBetween, &err)
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := Authorize(caller, OpAssignedBetween, Resource{}); err != nil {
		return nil, err
	}
	return e.ledger.listBetween(ctx, start, end)
}
