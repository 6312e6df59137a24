package postgres

import (
	"context"
	"fmt"
	"time"

	"asset-custody-api/internal/models"

	"github.com/doug-martin/goqu/v9"
)

// tx runs store.Tx operations on one open transaction
type tx struct {
	q *goqu.TxDatabase
}

func (t *tx) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	return getAsset(ctx, t.q, id)
}

func (t *tx) UpdateAsset(ctx context.Context, asset *models.Asset) error {
	res, err := t.q.Update(tableAssets).
		Set(goqu.Record{
			"category":      string(asset.Category),
			"serial_number": asset.SerialNumber,
			"status":        string(asset.Status),
			"updated_at":    asset.UpdatedAt,
		}).
		Where(goqu.Ex{"id": asset.ID}).
		Executor().
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update asset %s: %w", asset.ID, translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("asset %s: %w", asset.ID, models.ErrNotFound)
	}
	return nil
}

func (t *tx) DeleteAsset(ctx context.Context, id string) error {
	res, err := t.q.Delete(tableAssets).Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("asset %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (t *tx) OpenAssignment(ctx context.Context, assetID string) (*models.AssignmentRecord, error) {
	return openAssignment(ctx, t.q, assetID)
}

func (t *tx) InsertAssignment(ctx context.Context, rec *models.AssignmentRecord) error {
	_, err := t.q.Insert(tableAssignments).
		Rows(goqu.Record{
			"id":          rec.ID,
			"asset_id":    rec.AssetID,
			"holder_id":   rec.HolderID,
			"assigned_at": rec.AssignedAt,
			"state":       string(rec.State),
		}).
		Executor().
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert assignment for %s: %w", rec.AssetID, translate(err))
	}
	return nil
}

func (t *tx) CloseAssignment(ctx context.Context, assetID string, at time.Time) (*models.AssignmentRecord, error) {
	rec, err := openAssignment(ctx, t.q, assetID)
	if err != nil {
		return nil, err
	}
	_, err = t.q.Update(tableAssignments).
		Set(goqu.Record{
			"state":         string(models.AssignmentUnassigned),
			"unassigned_at": at,
		}).
		Where(goqu.Ex{"id": rec.ID, "state": string(models.AssignmentAssigned)}).
		Executor().
		ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to close assignment %s: %w", rec.ID, err)
	}
	closedAt := at
	rec.UnassignedAt = &closedAt
	rec.State = models.AssignmentUnassigned
	return rec, nil
}

func (t *tx) DeleteAssignments(ctx context.Context, assetID string) (int, error) {
	res, err := t.q.Delete(tableAssignments).Where(goqu.Ex{"asset_id": assetID}).Executor().ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignments of %s: %w", assetID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
