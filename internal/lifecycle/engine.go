// Package lifecycle implements the asset registry, the assignment ledger and
// the engine enforcing legal transitions across both.
//
// Every operation that changes an asset runs inside one store.WithAsset unit,
// so its status and its ledger records change together or not at all.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"

	"go.uber.org/zap"
)

// DefaultTimeout bounds an engine operation when Options.Timeout is unset
const DefaultTimeout = 5 * time.Second

// Observer receives the outcome of every engine operation.
// outcome is "ok" or the models.Kind of the returned error.
type Observer interface {
	ObserveOperation(operation, outcome string)
}

// Options configures an Engine
type Options struct {
	Timeout  time.Duration
	Logger   *zap.Logger
	Observer Observer
	Now      func() time.Time
}

// Engine is the entry point for every asset and assignment operation
type Engine struct {
	store     store.Store
	directory store.Directory
	ledger    *ledger
	timeout   time.Duration
	log       *zap.Logger
	observer  Observer
	now       func() time.Time
}

// New wires an engine over the given store and principal directory
func New(st store.Store, dir store.Directory, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:     st,
		directory: dir,
		ledger:    &ledger{store: st},
		timeout:   opts.Timeout,
		log:       opts.Logger.Named("lifecycle"),
		observer:  opts.Observer,
		now:       func() time.Time { return opts.Now().UTC() },
	}
}

// TransitionResult is the state left behind by a lifecycle transition.
// Assignment is the record opened or closed by it, if any.
type TransitionResult struct {
	Asset      models.Asset             `json:"asset"`
	Assignment *models.AssignmentRecord `json:"assignment,omitempty"`
}

// transitions maps a current status and an event to the next status.
// Retired has no way out.
var transitions = map[models.Status]map[Operation]models.Status{
	models.StatusAvailable: {
		OpAssign:         models.StatusAssigned,
		OpSetMaintenance: models.StatusMaintenance,
		OpRetire:         models.StatusRetired,
	},
	models.StatusAssigned: {
		OpUnassign:       models.StatusAvailable,
		OpReturn:         models.StatusAvailable,
		OpSetMaintenance: models.StatusMaintenance,
		OpRetire:         models.StatusRetired,
	},
	models.StatusMaintenance: {
		OpRetire:  models.StatusRetired,
		OpRestore: models.StatusAvailable,
	},
	models.StatusRetired: {},
}

// next returns the status reached from current by op, or ErrInvalidState
func next(current models.Status, op Operation) (models.Status, error) {
	to, ok := transitions[current][op]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s an asset that is %s", models.ErrInvalidState, op, current)
	}
	return to, nil
}

// eventFor picks the event that moves an asset from current to target when
// a status is set through an update
func eventFor(current, target models.Status) (Operation, error) {
	switch target {
	case models.StatusAvailable:
		if current == models.StatusMaintenance {
			return OpRestore, nil
		}
		return OpUnassign, nil
	case models.StatusMaintenance:
		return OpSetMaintenance, nil
	case models.StatusRetired:
		return OpRetire, nil
	}
	return "", fmt.Errorf("%w: status %s can only be entered by assign", models.ErrInvalidState, target)
}

// Assign hands an Available asset to holderID
func (e *Engine) Assign(ctx context.Context, caller models.Principal, assetID, holderID string) (res *TransitionResult, err error) {
	defer e.observe(OpAssign, &err)
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if err := Authorize(caller, OpAssign, Resource{AssetID: assetID}); err != nil {
		e.rejected(OpAssign, assetID, err)
		return nil, err
	}
	if holderID == "" {
		return nil, fmt.Errorf("%w: holder_id is required", models.ErrInvalidArgument)
	}
	if _, err := e.directory.LookupPrincipal(ctx, holderID); err != nil {
		return nil, fmt.Errorf("holder %s: %w", holderID, err)
	}

	err = e.store.WithAsset(ctx, assetID, func(tx store.Tx) error {
		asset, err := tx.GetAsset(ctx, assetID)
		if err != nil {
			return err
		}
		to, err := next(asset.Status, OpAssign)
		if err != nil {
			return err
		}
		now := e.now()
		rec, err := e.ledger.open(ctx, tx, assetID, holderID, now)
		if err != nil {
			return err
		}
		asset.Status = to
		asset.UpdatedAt = now
		if err := tx.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		res = &TransitionResult{Asset: *asset, Assignment: rec}
		return nil
	})
	if err != nil {
		e.failed(OpAssign, assetID, err)
		return nil, err
	}
	e.log.Info("Asset assigned",
		zap.String("operation", string(OpAssign)),
		zap.String("asset_id", assetID),
		zap.String("holder_id", holderID),
		zap.String("assignment_id", res.Assignment.ID))
	return res, nil
}

// Unassign closes the open assignment of an Assigned asset on an admin's behalf
func (e *Engine) Unassign(ctx context.Context, caller models.Principal, assetID string) (*TransitionResult, error) {
	return e.transition(ctx, caller, OpUnassign, assetID)
}

// ReturnAsset lets the current holder give an asset back
func (e *Engine) ReturnAsset(ctx context.Context, caller models.Principal, assetID string) (*TransitionResult, error) {
	return e.transition(ctx, caller, OpReturn, assetID)
}

// SetMaintenance takes an asset out of circulation, closing any open assignment
func (e *Engine) SetMaintenance(ctx context.Context, caller models.Principal, assetID string) (*TransitionResult, error) {
	return e.transition(ctx, caller, OpSetMaintenance, assetID)
}

// Retire moves an asset to its terminal state, closing any open assignment
func (e *Engine) Retire(ctx context.Context, caller models.Principal, assetID string) (*TransitionResult, error) {
	return e.transition(ctx, caller, OpRetire, assetID)
}

// Restore brings an asset back from maintenance
func (e *Engine) Restore(ctx context.Context, caller models.Principal, assetID string) (*TransitionResult, error) {
	return e.transition(ctx, caller, OpRestore, assetID)
}

// transition runs every status change other than assign
func (e *Engine) transition(ctx context.Context, caller models.Principal, op Operation, assetID string) (res *TransitionResult, err error) {
	defer e.observe(op, &err)
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	// return is authorized by holder identity, which is only known once
	// the open record has been read under the asset lock
	if op != OpReturn {
		if err := Authorize(caller, op, Resource{AssetID: assetID}); err != nil {
			e.rejected(op, assetID, err)
			return nil, err
		}
	}

	err = e.store.WithAsset(ctx, assetID, func(tx store.Tx) error {
		asset, err := tx.GetAsset(ctx, assetID)
		if err != nil {
			return err
		}
		to, err := next(asset.Status, op)
		if err != nil {
			return err
		}
		if op == OpReturn {
			open, err := tx.OpenAssignment(ctx, assetID)
			if err != nil {
				return err
			}
			if err := Authorize(caller, op, Resource{AssetID: assetID, HolderID: open.HolderID}); err != nil {
				return err
			}
		}

		res, err = e.apply(ctx, tx, asset, to)
		return err
	})
	if err != nil {
		e.failed(op, assetID, err)
		return nil, err
	}

	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.String("asset_id", assetID),
		zap.String("status", string(res.Asset.Status)),
	}
	if res.Assignment != nil {
		fields = append(fields, zap.String("holder_id", res.Assignment.HolderID))
	}
	e.log.Info("Asset transitioned", fields...)
	return res, nil
}

// apply moves asset to status to inside tx. Leaving Assigned closes the
// open ledger record first.
func (e *Engine) apply(ctx context.Context, tx store.Tx, asset *models.Asset, to models.Status) (*TransitionResult, error) {
	now := e.now()
	res := &TransitionResult{}
	if asset.Status == models.StatusAssigned && to != models.StatusAssigned {
		closed, err := e.ledger.close(ctx, tx, asset.ID, now)
		if err != nil {
			return nil, err
		}
		res.Assignment = closed
	}
	asset.Status = to
	asset.UpdatedAt = now
	if err := tx.UpdateAsset(ctx, asset); err != nil {
		return nil, err
	}
	res.Asset = *asset
	return res, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Engine) observe(op Operation, err *error) {
	if e.observer == nil {
		return
	}
	outcome := "ok"
	if *err != nil {
		outcome = models.Kind(*err)
	}
	e.observer.ObserveOperation(string(op), outcome)
}

// rejected logs requests refused by the gate
func (e *Engine) rejected(op Operation, assetID string, err error) {
	e.log.Debug("Operation rejected",
		zap.String("operation", string(op)),
		zap.String("asset_id", assetID),
		zap.Error(err))
}

// failed logs an error at Debug when it is a classified refusal and at
// Error when it came from the storage layer
func (e *Engine) failed(op Operation, assetID string, err error) {
	if models.Kind(err) != "INTERNAL" {
		e.rejected(op, assetID, err)
		return
	}
	e.log.Error("Operation failed",
		zap.String("operation", string(op)),
		zap.String("asset_id", assetID),
		zap.Error(err))
}
