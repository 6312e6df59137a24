// Package memstore is an in-process implementation of store.Store.
//
// Writers to the same asset are serialized by a per-asset lock; a unit of
// work stages its changes and applies them under the store lock only when
// it succeeds, so readers never observe a half-applied transition.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"
)

// Store keeps assets, ledger records and principals in maps
type Store struct {
	mu         sync.RWMutex
	assets     map[string]*models.Asset
	serials    map[string]string // serial number -> asset id
	records    map[string]*models.AssignmentRecord
	byAsset    map[string][]string // asset id -> record ids, append order
	open       map[string]string   // asset id -> open record id
	principals map[string]models.Principal

	locks *keyedLock
}

var (
	_ store.Store     = (*Store)(nil)
	_ store.Directory = (*Store)(nil)
)

// New creates an empty store seeded with the given principals
func New(principals ...models.Principal) *Store {
	s := &Store{
		assets:     make(map[string]*models.Asset),
		serials:    make(map[string]string),
		records:    make(map[string]*models.AssignmentRecord),
		byAsset:    make(map[string][]string),
		open:       make(map[string]string),
		principals: make(map[string]models.Principal),
		locks:      newKeyedLock(),
	}
	for _, p := range principals {
		s.principals[p.ID] = p
	}
	return s
}

// AddPrincipal registers or replaces a principal
func (s *Store) AddPrincipal(p models.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.ID] = p
}

func (s *Store) LookupPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return nil, fmt.Errorf("principal %s: %w", id, models.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[asset.ID]; ok {
		return fmt.Errorf("asset %s already exists", asset.ID)
	}
	if _, ok := s.serials[asset.SerialNumber]; ok {
		return fmt.Errorf("serial %q: %w", asset.SerialNumber, models.ErrDuplicateSerialNumber)
	}
	cp := *asset
	s.assets[cp.ID] = &cp
	s.serials[cp.SerialNumber] = cp.ID
	return nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, models.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListAssets(ctx context.Context, q store.AssetQuery) ([]models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids map[string]bool
	if q.IDs != nil {
		ids = make(map[string]bool, len(q.IDs))
		for _, id := range q.IDs {
			ids[id] = true
		}
	}

	out := []models.Asset{}
	for _, a := range s.assets {
		if q.Category != nil && a.Category != *q.Category {
			continue
		}
		if q.Status != nil && a.Status != *q.Status {
			continue
		}
		if ids != nil && !ids[a.ID] {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) OpenAssignment(ctx context.Context, assetID string) (*models.AssignmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openLocked(assetID)
}

func (s *Store) openLocked(assetID string) (*models.AssignmentRecord, error) {
	id, ok := s.open[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, models.ErrNoOpenAssignment)
	}
	cp := *s.records[id]
	return &cp, nil
}

func (s *Store) ListAssignmentsByHolder(ctx context.Context, holderID string, state *models.AssignmentState) ([]models.AssignmentRecord, error) {
	return s.filterRecords(ctx, func(r *models.AssignmentRecord) bool {
		return r.HolderID == holderID && (state == nil || r.State == *state)
	})
}

func (s *Store) ListAssignmentsBetween(ctx context.Context, start, end time.Time) ([]models.AssignmentRecord, error) {
	return s.filterRecords(ctx, func(r *models.AssignmentRecord) bool {
		return r.Overlaps(start, end)
	})
}

func (s *Store) filterRecords(ctx context.Context, keep func(*models.AssignmentRecord) bool) ([]models.AssignmentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.AssignmentRecord{}
	for _, r := range s.records {
		if keep(r) {
			out = append(out, copyRecord(r))
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) WithAsset(ctx context.Context, assetID string, fn func(tx store.Tx) error) error {
	unlock, err := s.locks.lock(ctx, assetID)
	if err != nil {
		return fmt.Errorf("lock asset %s: %w", assetID, err)
	}
	defer unlock()

	t := &tx{s: s, assetID: assetID, puts: make(map[string]*models.AssignmentRecord)}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

func copyRecord(r *models.AssignmentRecord) models.AssignmentRecord {
	cp := *r
	if r.UnassignedAt != nil {
		t := *r.UnassignedAt
		cp.UnassignedAt = &t
	}
	return cp
}

func sortRecords(recs []models.AssignmentRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].AssignedAt.Equal(recs[j].AssignedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].AssignedAt.Before(recs[j].AssignedAt)
	})
}
