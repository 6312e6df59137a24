package memstore

import (
	"context"
	"fmt"
	"time"

	"asset-custody-api/internal/models"
)

// tx stages the writes of one WithAsset call. Every method is scoped to
// the locked asset.
type tx struct {
	s       *Store
	assetID string

	asset       *models.Asset // staged row, nil until written
	deleted     bool
	dropRecords bool
	puts        map[string]*models.AssignmentRecord
	order       []string // ids of records first seen in this tx
}

func (t *tx) scope(id string) error {
	if id != t.assetID {
		return fmt.Errorf("%w: asset %s is outside the locked unit for %s", models.ErrInvalidArgument, id, t.assetID)
	}
	return nil
}

func (t *tx) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	if err := t.scope(id); err != nil {
		return nil, err
	}
	if t.deleted {
		return nil, fmt.Errorf("asset %s: %w", id, models.ErrNotFound)
	}
	if t.asset != nil {
		cp := *t.asset
		return &cp, nil
	}
	return t.s.GetAsset(ctx, id)
}

func (t *tx) UpdateAsset(ctx context.Context, asset *models.Asset) error {
	if _, err := t.GetAsset(ctx, asset.ID); err != nil {
		return err
	}
	cp := *asset
	t.asset = &cp
	return nil
}

func (t *tx) DeleteAsset(ctx context.Context, id string) error {
	if _, err := t.GetAsset(ctx, id); err != nil {
		return err
	}
	t.deleted = true
	t.asset = nil
	return nil
}

func (t *tx) OpenAssignment(ctx context.Context, assetID string) (*models.AssignmentRecord, error) {
	if err := t.scope(assetID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, id := range t.order {
		if r := t.puts[id]; r.IsOpen() {
			cp := copyRecord(r)
			return &cp, nil
		}
	}
	if !t.dropRecords {
		t.s.mu.RLock()
		base, err := t.s.openLocked(assetID)
		t.s.mu.RUnlock()
		if err == nil {
			if staged, ok := t.puts[base.ID]; !ok || staged.IsOpen() {
				return base, nil
			}
		}
	}
	return nil, fmt.Errorf("asset %s: %w", assetID, models.ErrNoOpenAssignment)
}

func (t *tx) InsertAssignment(ctx context.Context, rec *models.AssignmentRecord) error {
	if err := t.scope(rec.AssetID); err != nil {
		return err
	}
	if _, err := t.OpenAssignment(ctx, rec.AssetID); err == nil {
		return fmt.Errorf("asset %s: %w", rec.AssetID, models.ErrAlreadyAssigned)
	}
	t.put(rec)
	return nil
}

func (t *tx) CloseAssignment(ctx context.Context, assetID string, at time.Time) (*models.AssignmentRecord, error) {
	rec, err := t.OpenAssignment(ctx, assetID)
	if err != nil {
		return nil, err
	}
	closedAt := at
	rec.UnassignedAt = &closedAt
	rec.State = models.AssignmentUnassigned
	t.put(rec)

	cp := copyRecord(rec)
	return &cp, nil
}

func (t *tx) DeleteAssignments(ctx context.Context, assetID string) (int, error) {
	if err := t.scope(assetID); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := len(t.order)
	if !t.dropRecords {
		t.s.mu.RLock()
		for _, id := range t.s.byAsset[assetID] {
			if _, staged := t.puts[id]; !staged {
				n++
			}
		}
		t.s.mu.RUnlock()
	}
	t.dropRecords = true
	t.puts = make(map[string]*models.AssignmentRecord)
	t.order = nil
	return n, nil
}

func (t *tx) put(rec *models.AssignmentRecord) {
	cp := copyRecord(rec)
	if _, ok := t.puts[cp.ID]; !ok {
		t.order = append(t.order, cp.ID)
	}
	t.puts[cp.ID] = &cp
}

// commit validates the staged writes against the shared maps and applies
// them together, or applies nothing.
func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.assets[t.assetID]
	if (t.asset != nil || t.deleted) && !exists {
		return fmt.Errorf("asset %s: %w", t.assetID, models.ErrNotFound)
	}
	if t.asset != nil && t.asset.SerialNumber != current.SerialNumber {
		if owner, taken := s.serials[t.asset.SerialNumber]; taken && owner != t.assetID {
			return fmt.Errorf("serial %q: %w", t.asset.SerialNumber, models.ErrDuplicateSerialNumber)
		}
	}
	openID, hasOpen := s.open[t.assetID]
	if t.dropRecords {
		hasOpen = false
	}
	for _, id := range t.order {
		r := t.puts[id]
		if hasOpen && openID == id && !r.IsOpen() {
			hasOpen = false
		}
	}
	for _, id := range t.order {
		r := t.puts[id]
		if r.IsOpen() && hasOpen && openID != r.ID {
			return fmt.Errorf("asset %s: %w", t.assetID, models.ErrAlreadyAssigned)
		}
	}

	if t.deleted {
		delete(s.serials, current.SerialNumber)
		delete(s.assets, t.assetID)
	} else if t.asset != nil {
		delete(s.serials, current.SerialNumber)
		cp := *t.asset
		s.assets[t.assetID] = &cp
		s.serials[cp.SerialNumber] = t.assetID
	}
	if t.dropRecords {
		for _, id := range s.byAsset[t.assetID] {
			delete(s.records, id)
		}
		delete(s.byAsset, t.assetID)
		delete(s.open, t.assetID)
	}
	for _, id := range t.order {
		r := t.puts[id]
		if _, known := s.records[id]; !known {
			s.byAsset[t.assetID] = append(s.byAsset[t.assetID], id)
		}
		s.records[id] = r
		if r.IsOpen() {
			s.open[t.assetID] = id
		} else if s.open[t.assetID] == id {
			delete(s.open, t.assetID)
		}
	}
	return nil
}
