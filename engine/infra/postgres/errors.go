package postgres

import (
	"errors"
	"fmt"

	"github.com/credportal/credportal/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Phase names the statement that failed.
type Phase string

const (
	PhaseBuild  Phase = "build"
	PhaseCount  Phase = "count"
	PhaseSelect Phase = "select"
	PhaseInsert Phase = "insert"
	PhaseUpdate Phase = "update"
	PhaseDelete Phase = "delete"
)

// QueryError reports a storage failure with the phase and table it happened in.
// It unwraps to the driver error.
type QueryError struct {
	Phase Phase
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsUniqueViolation reports whether err carries a unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// IsForeignKeyViolation reports whether err carries a foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

// classify turns a driver error from a single-row statement into the shared
// error taxonomy while keeping the raw error in the chain.
func classify(phase Phase, table string, err error) error {
	qerr := &QueryError{Phase: phase, Table: table, Err: err}
	switch {
	case pgxscan.NotFound(err):
		return fmt.Errorf("%s: %w", table, core.ErrNotFound)
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %w", core.ErrConflict, qerr)
	case IsForeignKeyViolation(err) && phase == PhaseDelete:
		return fmt.Errorf("%w: row is still referenced: %w", core.ErrConflict, qerr)
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%w: referenced row does not exist: %w", core.ErrValidation, qerr)
	default:
		return qerr
	}
}
