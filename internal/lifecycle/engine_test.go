package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"
	"asset-custody-api/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	admin = models.Principal{ID: "admin-1", Role: models.RoleAdmin, DisplayName: "Ada Admin"}
	u1    = models.Principal{ID: "u1", Role: models.RoleEmployee, DisplayName: "User One", Email: "u1@example.com"}
	u2    = models.Principal{ID: "u2", Role: models.RoleEmployee, DisplayName: "User Two"}
)

// clock hands out a controllable time
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recorder counts observed outcomes per operation
type recorder struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (r *recorder) ObserveOperation(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string][]string)
	}
	r.outcomes[operation] = append(r.outcomes[operation], outcome)
}

type fixture struct {
	engine *Engine
	store  *memstore.Store
	clock  *clock
	obs    *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New(admin, u1, u2)
	c := newClock()
	obs := &recorder{}
	return &fixture{
		engine: New(st, st, Options{Now: c.Now, Observer: obs, Timeout: time.Second}),
		store:  st,
		clock:  c,
		obs:    obs,
	}
}

func (f *fixture) createAsset(t *testing.T, serial string) *models.Asset {
	t.Helper()
	a, err := f.engine.CreateAsset(context.Background(), admin, models.CreateAssetRequest{
		Category:     models.CategoryLaptop,
		SerialNumber: serial,
	})
	require.NoError(t, err)
	return a
}

// assertConsistent checks that every asset is Assigned exactly when it
// has one open ledger record
func assertConsistent(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	assets, err := st.ListAssets(ctx, store.AssetQuery{})
	require.NoError(t, err)
	for _, a := range assets {
		rec, err := st.OpenAssignment(ctx, a.ID)
		if a.Status == models.StatusAssigned {
			require.NoError(t, err, "asset %s is Assigned without an open record", a.ID)
			assert.Equal(t, a.ID, rec.AssetID)
		} else {
			assert.ErrorIs(t, err, models.ErrNoOpenAssignment, "asset %s is %s with an open record", a.ID, a.Status)
		}
	}
}

func TestCustodyScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	asset := f.createAsset(t, "SN-1")
	assert.Equal(t, models.StatusAvailable, asset.Status)

	f.clock.advance(time.Minute)
	res, err := f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, res.Asset.Status)
	require.NotNil(t, res.Assignment)
	first := *res.Assignment
	assert.Equal(t, u1.ID, first.HolderID)
	assert.True(t, first.IsOpen())

	_, err = f.engine.ReturnAsset(ctx, u2, asset.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assertConsistent(t, f.store)

	f.clock.advance(time.Hour)
	res, err = f.engine.ReturnAsset(ctx, u1, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, res.Asset.Status)
	require.NotNil(t, res.Assignment.UnassignedAt)
	assert.Equal(t, models.AssignmentUnassigned, res.Assignment.State)

	f.clock.advance(time.Minute)
	res, err = f.engine.Assign(ctx, admin, asset.ID, u2.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, res.Assignment.ID)

	history, err := f.engine.HistoryView(ctx, admin, u1.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, first.AssignedAt, history[0].AssignedAt)
	assert.Equal(t, "SN-1", history[0].Asset.SerialNumber)

	current, err := f.engine.CurrentHolderView(ctx, admin, u2.ID)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, asset.ID, current[0].AssetID)
	assert.Equal(t, models.StatusAssigned, current[0].Asset.Status)

	assertConsistent(t, f.store)
}

func TestAssignThenUnassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.createAsset(t, "SN-2")

	assigned, err := f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)

	// a clock that moves backwards must not produce an inverted interval
	f.clock.advance(-time.Hour)
	res, err := f.engine.Unassign(ctx, admin, asset.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusAvailable, res.Asset.Status)
	require.NotNil(t, res.Assignment.UnassignedAt)
	assert.False(t, res.Assignment.UnassignedAt.Before(assigned.Assignment.AssignedAt))
	assertConsistent(t, f.store)
}

func TestAssignChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.createAsset(t, "SN-3")

	_, err := f.engine.Assign(ctx, u1, asset.ID, u1.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.engine.Assign(ctx, admin, "missing", u1.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.engine.Assign(ctx, admin, asset.ID, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.engine.Assign(ctx, admin, asset.ID, "")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)
	_, err = f.engine.Assign(ctx, admin, asset.ID, u2.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.True(t, models.Retryable(err))

	assertConsistent(t, f.store)
}

func TestReturnChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.createAsset(t, "SN-4")

	_, err := f.engine.ReturnAsset(ctx, u1, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.engine.ReturnAsset(ctx, u1, asset.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)

	_, err = f.engine.ReturnAsset(ctx, admin, asset.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.engine.Unassign(ctx, u1, asset.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestConcurrentAssign(t *testing.T) {
	f := newFixture(t)
	asset := f.createAsset(t, "SN-RACE")

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < callers; i++ {
		holder := u1.ID
		if i%2 == 1 {
			holder = u2.ID
		}
		wg.Add(1)
		go func(holder string) {
			defer wg.Done()
			_, err := f.engine.Assign(context.Background(), admin, asset.ID, holder)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}(holder)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	require.Len(t, failures, callers-1)
	for _, err := range failures {
		assert.True(t,
			errors.Is(err, models.ErrInvalidState) || errors.Is(err, models.ErrAlreadyAssigned),
			"unexpected error: %v", err)
	}

	held := 0
	for _, holder := range []string{u1.ID, u2.ID} {
		recs, err := f.engine.CurrentHolderView(context.Background(), admin, holder)
		require.NoError(t, err)
		held += len(recs)
	}
	assert.Equal(t, 1, held)
	assertConsistent(t, f.store)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name    string
		setup   []Operation
		op      Operation
		want    models.Status
		wantErr error
	}{
		{name: "available to maintenance", op: OpSetMaintenance, want: models.StatusMaintenance},
		{name: "available to retired", op: OpRetire, want: models.StatusRetired},
		{name: "assigned to maintenance", setup: []Operation{OpAssign}, op: OpSetMaintenance, want: models.StatusMaintenance},
		{name: "assigned to retired", setup: []Operation{OpAssign}, op: OpRetire, want: models.StatusRetired},
		{name: "maintenance to retired", setup: []Operation{OpSetMaintenance}, op: OpRetire, want: models.StatusRetired},
		{name: "maintenance restored", setup: []Operation{OpSetMaintenance}, op: OpRestore, want: models.StatusAvailable},
		{name: "unassign available", op: OpUnassign, wantErr: models.ErrInvalidState},
		{name: "restore available", op: OpRestore, wantErr: models.ErrInvalidState},
		{name: "assign in maintenance", setup: []Operation{OpSetMaintenance}, op: OpAssign, wantErr: models.ErrInvalidState},
		{name: "assign retired", setup: []Operation{OpRetire}, op: OpAssign, wantErr: models.ErrInvalidState},
		{name: "restore retired", setup: []Operation{OpRetire}, op: OpRestore, wantErr: models.ErrInvalidState},
		{name: "retire twice", setup: []Operation{OpRetire}, op: OpRetire, wantErr: models.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			asset := f.createAsset(t, "SN-T")

			run := func(op Operation) (*TransitionResult, error) {
				ctx := context.Background()
				switch op {
				case OpAssign:
					return f.engine.Assign(ctx, admin, asset.ID, u1.ID)
				case OpUnassign:
					return f.engine.Unassign(ctx, admin, asset.ID)
				case OpSetMaintenance:
					return f.engine.SetMaintenance(ctx, admin, asset.ID)
				case OpRetire:
					return f.engine.Retire(ctx, admin, asset.ID)
				case OpRestore:
					return f.engine.Restore(ctx, admin, asset.ID)
				}
				t.Fatalf("unsupported operation %s", op)
				return nil, nil
			}

			for _, op := range tt.setup {
				_, err := run(op)
				require.NoError(t, err)
			}
			res, err := run(tt.op)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, res.Asset.Status)
			}
			assertConsistent(t, f.store)
		})
	}
}

func TestRetireClosesOpenAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.createAsset(t, "SN-5")

	_, err := f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)

	res, err := f.engine.Retire(ctx, admin, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Assignment)
	assert.Equal(t, u1.ID, res.Assignment.HolderID)
	assert.Equal(t, models.AssignmentUnassigned, res.Assignment.State)

	current, err := f.engine.CurrentHolderView(ctx, admin, u1.ID)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestCreateAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createAsset(t, "SN-DUP")
	_, err := f.engine.CreateAsset(ctx, admin, models.CreateAssetRequest{Category: models.CategoryPhone, SerialNumber: "SN-DUP"})
	assert.ErrorIs(t, err, models.ErrDuplicateSerialNumber)

	_, err = f.engine.CreateAsset(ctx, admin, models.CreateAssetRequest{Category: "Toaster", SerialNumber: "SN-X"})
	assert.ErrorIs(t, err, models.ErrInvalidCategory)

	assigned := models.StatusAssigned
	_, err = f.engine.CreateAsset(ctx, admin, models.CreateAssetRequest{Category: models.CategoryPhone, SerialNumber: "SN-Y", Status: &assigned})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	maintenance := models.StatusMaintenance
	a, err := f.engine.CreateAsset(ctx, admin, models.CreateAssetRequest{Category: models.CategoryPhone, SerialNumber: " SN-Z ", Status: &maintenance})
	require.NoError(t, err)
	assert.Equal(t, "SN-Z", a.SerialNumber)
	assert.Equal(t, models.StatusMaintenance, a.Status)

	_, err = f.engine.CreateAsset(ctx, u1, models.CreateAssetRequest{Category: models.CategoryPhone, SerialNumber: "SN-U"})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestGetAssetJoinsHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.createAsset(t, "SN-6")

	detail, err := f.engine.GetAsset(ctx, admin, asset.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Assignment)
	assert.Nil(t, detail.Holder)

	_, err = f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)

	detail, err = f.engine.GetAsset(ctx, admin, asset.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Assignment)
	require.NotNil(t, detail.Holder)
	assert.Equal(t, u1.Email, detail.Holder.Email)

	_, err = f.engine.GetAsset(ctx, admin, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	laptop := f.createAsset(t, "SN-L1")
	f.clock.advance(time.Second)
	held := f.createAsset(t, "SN-L2")
	f.clock.advance(time.Second)
	monitor, err := f.engine.CreateAsset(ctx, admin, models.CreateAssetRequest{Category: models.CategoryMonitor, SerialNumber: "SN-M1"})
	require.NoError(t, err)

	_, err = f.engine.Assign(ctx, admin, held.ID, u1.ID)
	require.NoError(t, err)
	_, err = f.engine.Assign(ctx, admin, monitor.ID, u2.ID)
	require.NoError(t, err)

	category := models.CategoryLaptop
	assigned := models.StatusAssigned
	available := models.StatusAvailable
	holder := u1.ID
	nobody := "admin-1"

	tests := []struct {
		name   string
		filter models.AssetFilter
		want   []string
	}{
		{name: "all", want: []string{laptop.ID, held.ID, monitor.ID}},
		{name: "by category", filter: models.AssetFilter{Category: &category}, want: []string{laptop.ID, held.ID}},
		{name: "by status", filter: models.AssetFilter{Status: &assigned}, want: []string{held.ID, monitor.ID}},
		{name: "by holder", filter: models.AssetFilter{HolderID: &holder}, want: []string{held.ID}},
		{name: "assigned to holder", filter: models.AssetFilter{Status: &assigned, HolderID: &holder}, want: []string{held.ID}},
		{name: "available with holder", filter: models.AssetFilter{Status: &available, HolderID: &holder}, want: []string{}},
		{name: "holder without assets", filter: models.AssetFilter{HolderID: &nobody}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets, err := f.engine.ListAssets(ctx, admin, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(assets))
			for _, a := range assets {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	bad := models.Category("Spaceship")
	_, err = f.engine.ListAssets(ctx, admin, models.AssetFilter{Category: &bad})
	assert.ErrorIs(t, err, models.ErrInvalidCategory)
}

func TestUpdateAsset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.createAsset(t, "SN-U1")
	other := f.createAsset(t, "SN-U2")

	serial := "SN-U1-B"
	category := models.CategoryDesktop
	updated, err := f.engine.UpdateAsset(ctx, admin, asset.ID, models.UpdateAssetRequest{SerialNumber: &serial, Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "SN-U1-B", updated.SerialNumber)
	assert.Equal(t, models.CategoryDesktop, updated.Category)

	taken := "SN-U2"
	_, err = f.engine.UpdateAsset(ctx, admin, asset.ID, models.UpdateAssetRequest{SerialNumber: &taken})
	assert.ErrorIs(t, err, models.ErrDuplicateSerialNumber)

	// the old serial is free again after the rename
	_, err = f.engine.CreateAsset(ctx, admin, models.CreateAssetRequest{Category: models.CategoryLaptop, SerialNumber: "SN-U1"})
	require.NoError(t, err)

	_, err = f.engine.Assign(ctx, admin, other.ID, u1.ID)
	require.NoError(t, err)

	maintenance := models.StatusMaintenance
	updated, err = f.engine.UpdateAsset(ctx, admin, other.ID, models.UpdateAssetRequest{Status: &maintenance})
	require.NoError(t, err)
	assert.Equal(t, models.StatusMaintenance, updated.Status)
	history, err := f.engine.HistoryView(ctx, admin, u1.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assigned := models.StatusAssigned
	_, err = f.engine.UpdateAsset(ctx, admin, other.ID, models.UpdateAssetRequest{Status: &assigned})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = f.engine.UpdateAsset(ctx, admin, other.ID, models.UpdateAssetRequest{})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.engine.UpdateAsset(ctx, admin, "missing", models.UpdateAssetRequest{Category: &category})
	assert.ErrorIs(t, err, models.ErrNotFound)

	assertConsistent(t, f.store)
}

func TestDeleteAssetCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.createAsset(t, "SN-D1")
	keep := f.createAsset(t, "SN-D2")

	_, err := f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)
	_, err = f.engine.Unassign(ctx, admin, asset.ID)
	require.NoError(t, err)
	_, err = f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)
	_, err = f.engine.Assign(ctx, admin, keep.ID, u1.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.DeleteAsset(ctx, admin, asset.ID))

	_, err = f.engine.GetAsset(ctx, admin, asset.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	recs, err := f.store.ListAssignmentsByHolder(ctx, u1.ID, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, keep.ID, recs[0].AssetID)

	// the serial can be registered again
	f.createAsset(t, "SN-D1")

	assert.ErrorIs(t, f.engine.DeleteAsset(ctx, admin, asset.ID), models.ErrNotFound)
	assert.ErrorIs(t, f.engine.DeleteAsset(ctx, u1, keep.ID), models.ErrForbidden)
	assertConsistent(t, f.store)
}

func TestAssignedBetween(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	early := f.createAsset(t, "SN-EARLY")
	inside := f.createAsset(t, "SN-INSIDE")
	open := f.createAsset(t, "SN-OPEN")
	late := f.createAsset(t, "SN-LATE")

	at := func(day int, fn func()) {
		f.clock.set(base.AddDate(0, 0, day))
		fn()
	}
	must := func(_ *TransitionResult, err error) { require.NoError(t, err) }

	// closed before the window
	at(0, func() { must(f.engine.Assign(ctx, admin, early.ID, u1.ID)) })
	at(2, func() { must(f.engine.Unassign(ctx, admin, early.ID)) })
	// opened and closed inside it
	at(11, func() { must(f.engine.Assign(ctx, admin, inside.ID, u1.ID)) })
	at(13, func() { must(f.engine.Unassign(ctx, admin, inside.ID)) })
	// opened before it and never closed
	at(5, func() { must(f.engine.Assign(ctx, admin, open.ID, u2.ID)) })
	// opened after it
	at(25, func() { must(f.engine.Assign(ctx, admin, late.ID, u2.ID)) })

	start, end := base.AddDate(0, 0, 10), base.AddDate(0, 0, 20)
	recs, err := f.engine.AssignedBetween(ctx, admin, start, end)
	require.NoError(t, err)

	got := map[string]bool{}
	for _, r := range recs {
		got[r.AssetID] = true
	}
	assert.Equal(t, map[string]bool{inside.ID: true, open.ID: true}, got)

	// a record closed exactly at start still overlaps
	recs, err = f.engine.AssignedBetween(ctx, admin, base.AddDate(0, 0, 2), base.AddDate(0, 0, 3))
	require.NoError(t, err)
	got = map[string]bool{}
	for _, r := range recs {
		got[r.AssetID] = true
	}
	assert.True(t, got[early.ID])

	_, err = f.engine.AssignedBetween(ctx, admin, end, start)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = f.engine.AssignedBetween(ctx, u1, start, end)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestHolderViewUnknownHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CurrentHolderView(ctx, admin, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.engine.HistoryView(ctx, admin, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.engine.HistoryView(ctx, u1, u1.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestObserverOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset := f.createAsset(t, "SN-OBS")

	_, err := f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)
	_, err = f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	require.Error(t, err)
	_, err = f.engine.Assign(ctx, u1, asset.ID, u1.ID)
	require.Error(t, err)

	f.obs.mu.Lock()
	defer f.obs.mu.Unlock()
	assert.Equal(t, []string{"ok"}, f.obs.outcomes[string(OpCreateAsset)])
	assert.Equal(t, []string{"ok", "INVALID_STATE", "FORBIDDEN"}, f.obs.outcomes[string(OpAssign)])
}

// failingStore fails every asset update made inside a unit of work
type failingStore struct {
	*memstore.Store
}

func (s failingStore) WithAsset(ctx context.Context, assetID string, fn func(tx store.Tx) error) error {
	return s.Store.WithAsset(ctx, assetID, func(tx store.Tx) error {
		return fn(failingTx{Tx: tx})
	})
}

type failingTx struct {
	store.Tx
}

func (failingTx) UpdateAsset(context.Context, *models.Asset) error {
	return errors.New("disk on fire")
}

func TestAssignIsAtomic(t *testing.T) {
	mem := memstore.New(admin, u1)
	healthy := New(mem, mem, Options{})
	broken := New(failingStore{Store: mem}, mem, Options{})
	ctx := context.Background()

	asset, err := healthy.CreateAsset(ctx, admin, models.CreateAssetRequest{Category: models.CategoryTablet, SerialNumber: "SN-ATOM"})
	require.NoError(t, err)

	_, err = broken.Assign(ctx, admin, asset.ID, u1.ID)
	require.Error(t, err)
	assert.Equal(t, "INTERNAL", models.Kind(err))

	got, err := mem.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, got.Status)
	_, err = mem.OpenAssignment(ctx, asset.ID)
	assert.ErrorIs(t, err, models.ErrNoOpenAssignment)

	_, err = healthy.Assign(ctx, admin, asset.ID, u1.ID)
	require.NoError(t, err)
	assertConsistent(t, mem)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) LookupPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Principal)
	return p, args.Error(1)
}

func TestAssignUsesDirectory(t *testing.T) {
	st := memstore.New()
	dir := &mockDirectory{}
	engine := New(st, dir, Options{})
	ctx := context.Background()

	asset, err := engine.CreateAsset(ctx, admin, models.CreateAssetRequest{Category: models.CategoryOther, SerialNumber: "SN-DIR"})
	require.NoError(t, err)

	dir.On("LookupPrincipal", mock.Anything, "external-7").Return(&models.Principal{ID: "external-7", Role: models.RoleEmployee}, nil).Once()
	dir.On("LookupPrincipal", mock.Anything, "gone").Return(nil, models.ErrNotFound).Once()

	_, err = engine.Assign(ctx, admin, asset.ID, "gone")
	assert.ErrorIs(t, err, models.ErrNotFound)

	res, err := engine.Assign(ctx, admin, asset.ID, "external-7")
	require.NoError(t, err)
	assert.Equal(t, "external-7", res.Assignment.HolderID)

	dir.AssertExpectations(t)
}

func TestOperationHonorsCancelledContext(t *testing.T) {
	f := newFixture(t)
	asset := f.createAsset(t, "SN-CTX")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.Assign(ctx, admin, asset.ID, u1.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assertConsistent(t, f.store)
}
