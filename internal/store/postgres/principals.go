package postgres

import (
	"context"
	"fmt"

	"asset-custody-api/internal/models"

	"github.com/doug-martin/goqu/v9"
)

type principalRow struct {
	ID          string `db:"id"`
	Role        string `db:"role"`
	DisplayName string `db:"display_name"`
	Email       string `db:"email"`
}

func (s *Store) LookupPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	var row principalRow
	found, err := s.gq.From(tablePrincipals).Where(goqu.Ex{"id": id}).ScanStructContext(ctx, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to load principal %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("principal %s: %w", id, models.ErrNotFound)
	}
	return &models.Principal{
		ID:          row.ID,
		Role:        models.Role(row.Role),
		DisplayName: row.DisplayName,
		Email:       row.Email,
	}, nil
}
