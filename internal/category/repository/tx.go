package repository

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/fekuna/omnipos-category-service/internal/category"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

const pgUniqueViolation = "23505"

const lockStripes = 64

// treeLocks serializes structural mutations of one merchant's tree inside
// this process. The database lock taken in inTreeTx does the same across
// processes; the mutex just keeps local writers from queueing on it.
// Merchants share a fixed set of stripes, so memory stays flat however many
// tenants write.
type treeLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *treeLocks) get(merchantID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(merchantID))
	return &l.stripes[h.Sum32()%lockStripes]
}

func (r *PGRepository) isPostgres() bool {
	switch r.DB.DriverName() {
	case "pgx", "pgx/v5", "postgres":
		return true
	}
	return false
}

// inTx runs fn in a transaction that is committed only if fn succeeds and
// rolled back on every other exit path, including a cancelled context.
func (r *PGRepository) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return category.TransactionFailure(op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return mapError(op, err)
	}
	if err = tx.Commit(); err != nil {
		return mapError(op, err)
	}
	return nil
}

// inTreeTx is inTx plus exclusive access to the merchant's numbering domain
// for the life of the transaction. On Postgres a transaction-scoped advisory
// lock keyed by the merchant makes concurrent renumberings from other
// replicas wait; SQLite already allows a single writer.
func (r *PGRepository) inTreeTx(ctx context.Context, op, merchantID string, fn func(tx *sqlx.Tx) error) error {
	m := r.locks.get(merchantID)
	m.Lock()
	defer m.Unlock()

	return r.inTx(ctx, op, func(tx *sqlx.Tx) error {
		if r.isPostgres() {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, merchantID); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

func mapError(op string, err error) error {
	if isUniqueViolation(err) {
		return category.Conflict(op, "", err)
	}
	return category.TransactionFailure(op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
