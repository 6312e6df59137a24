package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAsset(id, serial string, created time.Time) *models.Asset {
	return &models.Asset{
		ID:           id,
		Category:     models.CategoryLaptop,
		SerialNumber: serial,
		Status:       models.StatusAvailable,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func openRecord(id, assetID, holderID string, at time.Time) *models.AssignmentRecord {
	return &models.AssignmentRecord{
		ID:         id,
		AssetID:    assetID,
		HolderID:   holderID,
		AssignedAt: at,
		State:      models.AssignmentAssigned,
	}
}

func TestCreateAndGetAsset(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateAsset(ctx, newAsset("a1", "SN-1", now)))
	err := s.CreateAsset(ctx, newAsset("a2", "SN-1", now))
	assert.ErrorIs(t, err, models.ErrDuplicateSerialNumber)

	got, err := s.GetAsset(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "SN-1", got.SerialNumber)

	// returned values are copies
	got.Status = models.StatusRetired
	again, err := s.GetAsset(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, again.Status)

	_, err = s.GetAsset(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListAssetsQuery(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateAsset(ctx, newAsset("b", "SN-B", base.Add(time.Minute))))
	require.NoError(t, s.CreateAsset(ctx, newAsset("a", "SN-A", base)))
	phone := newAsset("c", "SN-C", base.Add(2*time.Minute))
	phone.Category = models.CategoryPhone
	require.NoError(t, s.CreateAsset(ctx, phone))

	all, err := s.ListAssets(ctx, store.AssetQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	category := models.CategoryPhone
	phones, err := s.ListAssets(ctx, store.AssetQuery{Category: &category})
	require.NoError(t, err)
	require.Len(t, phones, 1)
	assert.Equal(t, "c", phones[0].ID)

	some, err := s.ListAssets(ctx, store.AssetQuery{IDs: []string{"b", "c"}})
	require.NoError(t, err)
	assert.Len(t, some, 2)

	none, err := s.ListAssets(ctx, store.AssetQuery{IDs: []string{}})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestWithAssetCommitsAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.CreateAsset(ctx, newAsset("a1", "SN-1", now)))

	err := s.WithAsset(ctx, "a1", func(tx store.Tx) error {
		require.NoError(t, tx.InsertAssignment(ctx, openRecord("r1", "a1", "u1", now)))
		a, err := tx.GetAsset(ctx, "a1")
		require.NoError(t, err)
		a.Status = models.StatusAssigned
		require.NoError(t, tx.UpdateAsset(ctx, a))

		// staged writes are visible inside the unit only
		rec, err := tx.OpenAssignment(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "r1", rec.ID)
		_, err = s.OpenAssignment(ctx, "a1")
		assert.ErrorIs(t, err, models.ErrNoOpenAssignment)

		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	a, err := s.GetAsset(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, a.Status)
	_, err = s.OpenAssignment(ctx, "a1")
	assert.ErrorIs(t, err, models.ErrNoOpenAssignment)

	require.NoError(t, s.WithAsset(ctx, "a1", func(tx store.Tx) error {
		return tx.InsertAssignment(ctx, openRecord("r1", "a1", "u1", now))
	}))
	rec, err := s.OpenAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.HolderID)
}

func TestTxLedgerRules(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.CreateAsset(ctx, newAsset("a1", "SN-1", now)))
	require.NoError(t, s.CreateAsset(ctx, newAsset("a2", "SN-2", now)))

	err := s.WithAsset(ctx, "a1", func(tx store.Tx) error {
		_, err := tx.CloseAssignment(ctx, "a1", now)
		assert.ErrorIs(t, err, models.ErrNoOpenAssignment)

		require.NoError(t, tx.InsertAssignment(ctx, openRecord("r1", "a1", "u1", now)))
		err = tx.InsertAssignment(ctx, openRecord("r2", "a1", "u2", now))
		assert.ErrorIs(t, err, models.ErrAlreadyAssigned)

		closed, err := tx.CloseAssignment(ctx, "a1", now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.AssignmentUnassigned, closed.State)

		require.NoError(t, tx.InsertAssignment(ctx, openRecord("r2", "a1", "u2", now.Add(time.Hour))))

		_, err = tx.GetAsset(ctx, "a2")
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
		return nil
	})
	require.NoError(t, err)

	recs, err := s.ListAssignmentsByHolder(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].UnassignedAt)

	open, err := s.OpenAssignment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "r2", open.ID)

	state := models.AssignmentUnassigned
	closed, err := s.ListAssignmentsByHolder(ctx, "u2", &state)
	require.NoError(t, err)
	assert.Empty(t, closed)
}

func TestDeleteCascade(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.CreateAsset(ctx, newAsset("a1", "SN-1", now)))
	require.NoError(t, s.WithAsset(ctx, "a1", func(tx store.Tx) error {
		return tx.InsertAssignment(ctx, openRecord("r1", "a1", "u1", now))
	}))

	var removed int
	require.NoError(t, s.WithAsset(ctx, "a1", func(tx store.Tx) error {
		n, err := tx.DeleteAssignments(ctx, "a1")
		removed = n
		if err != nil {
			return err
		}
		return tx.DeleteAsset(ctx, "a1")
	}))
	assert.Equal(t, 1, removed)

	_, err := s.GetAsset(ctx, "a1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	recs, err := s.ListAssignmentsBetween(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, recs)
	require.NoError(t, s.CreateAsset(ctx, newAsset("a3", "SN-1", now)))
}

func TestWithAssetWaitHonorsContext(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateAsset(ctx, newAsset("a1", "SN-1", time.Now())))

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithAsset(ctx, "a1", func(store.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := s.WithAsset(waitCtx, "a1", func(store.Tx) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// other assets are not blocked
	require.NoError(t, s.CreateAsset(ctx, newAsset("a2", "SN-2", time.Now())))
	require.NoError(t, s.WithAsset(ctx, "a2", func(store.Tx) error { return nil }))

	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, s.locks.entries)
}

func TestLookupPrincipal(t *testing.T) {
	s := New(models.Principal{ID: "u1", Role: models.RoleEmployee})
	ctx := context.Background()

	p, err := s.LookupPrincipal(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, p.Role)

	_, err = s.LookupPrincipal(ctx, "u2")
	assert.ErrorIs(t, err, models.ErrNotFound)

	s.AddPrincipal(models.Principal{ID: "u2", Role: models.RoleAdmin})
	p, err = s.LookupPrincipal(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
}
