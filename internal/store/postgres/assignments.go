package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"asset-custody-api/internal/models"

	"github.com/doug-martin/goqu/v9"
)

type assignmentRow struct {
	ID           string       `db:"id"`
	AssetID      string       `db:"asset_id"`
	HolderID     string       `db:"holder_id"`
	AssignedAt   time.Time    `db:"assigned_at"`
	UnassignedAt sql.NullTime `db:"unassigned_at"`
	State        string       `db:"state"`
}

func (r assignmentRow) model() models.AssignmentRecord {
	rec := models.AssignmentRecord{
		ID:         r.ID,
		AssetID:    r.AssetID,
		HolderID:   r.HolderID,
		AssignedAt: r.AssignedAt,
		State:      models.AssignmentState(r.State),
	}
	if r.UnassignedAt.Valid {
		t := r.UnassignedAt.Time
		rec.UnassignedAt = &t
	}
	return rec
}

func (s *Store) OpenAssignment(ctx context.Context, assetID string) (*models.AssignmentRecord, error) {
	return openAssignment(ctx, s.gq, assetID)
}

func openAssignment(ctx context.Context, q querier, assetID string) (*models.AssignmentRecord, error) {
	var row assignmentRow
	found, err := q.From(tableAssignments).
		Where(goqu.Ex{"asset_id": assetID, "state": string(models.AssignmentAssigned)}).
		ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to load open assignment for %s: %w", assetID, err)
	}
	if !found {
		return nil, fmt.Errorf("asset %s: %w", assetID, models.ErrNoOpenAssignment)
	}
	rec := row.model()
	return &rec, nil
}

func (s *Store) ListAssignmentsByHolder(ctx context.Context, holderID string, state *models.AssignmentState) ([]models.AssignmentRecord, error) {
	ds := s.gq.From(tableAssignments).Where(goqu.Ex{"holder_id": holderID})
	if state != nil {
		ds = ds.Where(goqu.Ex{"state": string(*state)})
	}
	return scanAssignments(ctx, ds)
}

func (s *Store) ListAssignmentsBetween(ctx context.Context, start, end time.Time) ([]models.AssignmentRecord, error) {
	ds := s.gq.From(tableAssignments).Where(
		goqu.C("assigned_at").Lte(end),
		goqu.Or(
			goqu.C("unassigned_at").IsNull(),
			goqu.C("unassigned_at").Gte(start),
		),
	)
	return scanAssignments(ctx, ds)
}

func scanAssignments(ctx context.Context, ds *goqu.SelectDataset) ([]models.AssignmentRecord, error) {
	var rows []assignmentRow
	if err := ds.Order(goqu.C("assigned_at").Asc(), goqu.C("id").Asc()).ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	out := make([]models.AssignmentRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}
