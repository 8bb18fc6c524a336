// Package dbx holds the database plumbing shared by the repositories: the
// DBTX handle accepted by every repository, the transaction helper used by
// the services, and the translation of PostgreSQL unique violations into
// the common.ErrConflict taxonomy.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// uniqueViolationCode is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolationCode = "23505"

// UniqueViolation reports whether err carries a PostgreSQL unique violation
// and, if so, the name of the violated constraint.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// Conflicts maps unique constraint names to the domain error a repository
// reports when that constraint is violated.
type Conflicts map[string]func() error

// Translate returns the domain error registered for the violated
// constraint, or nil when err is not a unique violation of a known
// constraint.
func (c Conflicts) Translate(err error) error {
	name, ok := UniqueViolation(err)
	if !ok {
		return nil
	}
	if build, known := c[name]; known {
		return build()
	}
	return nil
}

// WithTx runs fn inside a transaction on db. It commits when fn succeeds and
// rolls back when fn fails or panics; panics are rethrown.
//
// A unique violation that reaches the transaction boundary without having
// been translated by a repository, including one raised by the commit
// itself, is returned matching common.ErrConflict. Domain conflicts pass
// through unchanged.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    role, err := roles.NewPostgresRepository(tx).GetOrCreate(ctx, common.RoleUser)
//	    ...
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("db error: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			err = classify(err)
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = classify(fmt.Errorf("db error: commit: %w", cerr))
		}
	}()

	return fn(ctx, tx)
}

func classify(err error) error {
	if errors.Is(err, common.ErrConflict) {
		return err
	}
	if name, ok := UniqueViolation(err); ok {
		return fmt.Errorf("%w on %s: %w", common.ErrConflict, name, err)
	}
	return err
}
