package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateAsset registers a new asset. Status defaults to Available; an
// asset cannot be created already Assigned.
func (e *Engine) CreateAsset(ctx context.Context, caller models.Principal, req models.CreateAssetRequest) (asset *models.Asset, err error) {
	defer e.observe(OpCreateAsset, &err)
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := Authorize(caller, OpCreateAsset, Resource{}); err != nil {
		e.rejected(OpCreateAsset, "", err)
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if *req.Status == models.StatusAssigned {
		return nil, fmt.Errorf("%w: new assets cannot start as %s", models.ErrInvalidState, models.StatusAssigned)
	}

	now := e.now()
	asset = &models.Asset{
		ID:           uuid.NewString(),
		Category:     req.Category,
		SerialNumber: req.SerialNumber,
		Status:       *req.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.CreateAsset(ctx, asset); err != nil {
		e.failed(OpCreateAsset, asset.ID, err)
		return nil, err
	}
	e.log.Info("Asset created",
		zap.String("operation", string(OpCreateAsset)),
		zap.String("asset_id", asset.ID),
		zap.String("serial_number", asset.SerialNumber))
	return asset, nil
}

// GetAsset returns an asset with its current custody when it is Assigned
func (e *Engine) GetAsset(ctx context.Context, caller models.Principal, id string) (detail *models.AssetDetail, err error) {
	defer e.observe(OpGetAsset, &err)
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := Authorize(caller, OpGetAsset, Resource{AssetID: id}); err != nil {
		return nil, err
	}
	asset, err := e.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	detail = &models.AssetDetail{Asset: *asset}
	if asset.Status != models.StatusAssigned {
		return detail, nil
	}

	rec, err := e.store.OpenAssignment(ctx, id)
	if errors.Is(err, models.ErrNoOpenAssignment) {
		// closed between the two reads
		return detail, nil
	}
	if err != nil {
		return nil, err
	}
	detail.Assignment = rec
	holder := models.PrincipalSummary{ID: rec.HolderID}
	if p, err := e.directory.LookupPrincipal(ctx, rec.HolderID); err == nil {
		holder = p.Summary()
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	detail.Holder = &holder
	return detail, nil
}

// ListAssets returns the assets matching every field set in filter,
// ordered by creation time. A holder filter keeps only the assets that
// holder currently has open assignments for.
func (e *Engine) ListAssets(ctx context.Context, caller models.Principal, filter models.AssetFilter) (assets []models.Asset, err error) {
	defer e.observe(OpListAssets, &err)
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := Authorize(caller, OpListAssets, Resource{}); err != nil {
		return nil, err
	}
	if filter.Category != nil && !filter.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidCategory, *filter.Category)
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, *filter.Status)
	}

	q := store.AssetQuery{Category: filter.Category, Status: filter.Status}
	if filter.HolderID != nil {
		if filter.Status != nil && *filter.Status != models.StatusAssigned {
			return []models.Asset{}, nil
		}
		held, err := e.ledger.listByHolder(ctx, *filter.HolderID, models.AssignmentAssigned)
		if err != nil {
			return nil, err
		}
		q.IDs = make([]string, 0, len(held))
		for _, rec := range held {
			q.IDs = append(q.IDs, rec.AssetID)
		}
	}
	return e.store.ListAssets(ctx, q)
}

// UpdateAsset changes the provided fields of an asset. A status change is
// routed through the transition table, so moving an Assigned asset
// elsewhere closes its open assignment in the same unit.
func (e *Engine) UpdateAsset(ctx context.Context, caller models.Principal, id string, req models.UpdateAssetRequest) (asset *models.Asset, err error) {
	defer e.observe(OpUpdateAsset, &err)
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := Authorize(caller, OpUpdateAsset, Resource{AssetID: id}); err != nil {
		e.rejected(OpUpdateAsset, id, err)
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var closed *models.AssignmentRecord
	err = e.store.WithAsset(ctx, id, func(tx store.Tx) error {
		current, err := tx.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		if req.Category != nil {
			current.Category = *req.Category
		}
		if req.SerialNumber != nil {
			current.SerialNumber = *req.SerialNumber
		}

		if req.Status != nil && *req.Status != current.Status {
			op, err := eventFor(current.Status, *req.Status)
			if err != nil {
				return err
			}
			to, err := next(current.Status, op)
			if err != nil {
				return err
			}
			res, err := e.apply(ctx, tx, current, to)
			if err != nil {
				return err
			}
			asset, closed = &res.Asset, res.Assignment
			return nil
		}

		current.UpdatedAt = e.now()
		if err := tx.UpdateAsset(ctx, current); err != nil {
			return err
		}
		asset = current
		return nil
	})
	if err != nil {
		e.failed(OpUpdateAsset, id, err)
		return nil, err
	}

	fields := []zap.Field{
		zap.String("operation", string(OpUpdateAsset)),
		zap.String("asset_id", id),
		zap.String("status", string(asset.Status)),
	}
	if closed != nil {
		fields = append(fields, zap.String("closed_assignment_id", closed.ID))
	}
	e.log.Info("Asset updated", fields...)
	return asset, nil
}

// DeleteAsset removes an asset and every ledger record that refers to it
func (e *Engine) DeleteAsset(ctx context.Context, caller models.Principal, id string) (err error) {
	defer e.observe(OpDeleteAsset, &err)
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := Authorize(caller, OpDeleteAsset, Resource{AssetID: id}); err != nil {
		e.rejected(OpDeleteAsset, id, err)
		return err
	}

	var removed int
	err = e.store.WithAsset(ctx, id, func(tx store.Tx) error {
		if _, err := tx.GetAsset(ctx, id); err != nil {
			return err
		}
		n, err := tx.DeleteAssignments(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return tx.DeleteAsset(ctx, id)
	})
	if err != nil {
		e.failed(OpDeleteAsset, id, err)
		return err
	}
	e.log.Info("Asset deleted",
		zap.String("operation", string(OpDeleteAsset)),
		zap.String("asset_id", id),
		zap.Int("assignments_removed", removed))
	return nil
}
