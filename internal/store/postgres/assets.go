package postgres

import (
	"context"
	"fmt"
	"time"

	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
)

type assetRow struct {
	ID           string    `db:"id"`
	Category     string    `db:"category"`
	SerialNumber string    `db:"serial_number"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r assetRow) model() models.Asset {
	return models.Asset{
		ID:           r.ID,
		Category:     models.Category(r.Category),
		SerialNumber: r.SerialNumber,
		Status:       models.Status(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func assetRecord(a *models.Asset) goqu.Record {
	return goqu.Record{
		"id":            a.ID,
		"category":      string(a.Category),
		"serial_number": a.SerialNumber,
		"status":        string(a.Status),
		"created_at":    a.CreatedAt,
		"updated_at":    a.UpdatedAt,
	}
}

func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	_, err := s.gq.Insert(tableAssets).
		Rows(assetRecord(asset)).
		Executor().
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert asset record: %w", translate(err))
	}
	return nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	return getAsset(ctx, s.gq, id)
}

func getAsset(ctx context.Context, q querier, id string) (*models.Asset, error) {
	var row assetRow
	found, err := q.From(tableAssets).Where(goqu.Ex{"id": id}).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("asset %s: %w", id, models.ErrNotFound)
	}
	a := row.model()
	return &a, nil
}

func (s *Store) ListAssets(ctx context.Context, q store.AssetQuery) ([]models.Asset, error) {
	ds := s.gq.From(tableAssets).Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	if q.Category != nil {
		ds = ds.Where(goqu.Ex{"category": string(*q.Category)})
	}
	if q.Status != nil {
		ds = ds.Where(goqu.Ex{"status": string(*q.Status)})
	}
	if q.IDs != nil {
		ds = ds.Where(goqu.L("id = ANY(?)", pq.Array(q.IDs)))
	}

	var rows []assetRow
	if err := ds.ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	out := make([]models.Asset, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}
