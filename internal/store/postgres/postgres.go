// Package postgres implements store.Store on PostgreSQL.
//
// Per-asset atomicity comes from a transaction that locks the asset row
// with SELECT ... FOR UPDATE; the single open assignment per asset is also
// enforced by the partial unique index assignments_one_open_per_asset.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"asset-custody-api/internal/models"
	"asset-custody-api/internal/store"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	tableAssets      = "assets"
	tableAssignments = "assignments"
	tablePrincipals  = "principals"

	constraintSerial  = "assets_serial_number_key"
	constraintOneOpen = "assignments_one_open_per_asset"
)

// Options configures Open
type Options struct {
	DSN      string
	MaxConns int32
}

// Store is the PostgreSQL backend
type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
	gq   *goqu.Database
}

var (
	_ store.Store     = (*Store)(nil)
	_ store.Directory = (*Store)(nil)
)

// Open connects to the database and verifies the connection
func Open(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	return &Store{
		pool: pool,
		db:   db,
		gq:   goqu.New("postgres", db),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	err := s.db.Close()
	s.pool.Close()
	return err
}

// querier is satisfied by both *goqu.Database and *goqu.TxDatabase
type querier interface {
	From(from ...interface{}) *goqu.SelectDataset
	Insert(table interface{}) *goqu.InsertDataset
	Update(table interface{}) *goqu.UpdateDataset
	Delete(table interface{}) *goqu.DeleteDataset
}

func (s *Store) WithAsset(ctx context.Context, assetID string, fn func(tx store.Tx) error) error {
	return withTransaction(ctx, s.gq, func(gtx *goqu.TxDatabase) error {
		// Lock the row so concurrent units for this asset queue up here.
		// A missing row is reported by the first read inside fn.
		var locked string
		if _, err := gtx.From(tableAssets).
			Select("id").
			Where(goqu.Ex{"id": assetID}).
			ForUpdate(exp.Wait).
			ScanValContext(ctx, &locked); err != nil {
			return fmt.Errorf("lock asset %s: %w", assetID, err)
		}
		return fn(&tx{q: gtx})
	})
}

// withTransaction runs fn in a transaction, rolling back on error or panic
func withTransaction(ctx context.Context, db *goqu.Database, fn func(tx *goqu.TxDatabase) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else if cerr := tx.Commit(); cerr != nil {
			err = translate(fmt.Errorf("commit: %w", cerr))
		}
	}()

	err = fn(tx)
	return
}

// translate maps constraint violations onto the model's error kinds
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintSerial:
		return fmt.Errorf("%w: %s", models.ErrDuplicateSerialNumber, pgErr.Detail)
	case constraintOneOpen:
		return fmt.Errorf("%w: %s", models.ErrAlreadyAssigned, pgErr.Detail)
	}
	return err
}
