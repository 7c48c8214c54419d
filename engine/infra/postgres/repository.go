package postgres

import (
	"context"

	"github.com/credportal/credportal/engine/core"
)

// Repository provides the operations every entity shares on top of a Table.
// Entity repositories embed it and add their typed Create/Update.
type Repository[T any, ID any] struct {
	db    DB
	table *Table[T]
}

func NewRepository[T any, ID any](db DB, table *Table[T]) Repository[T, ID] {
	return Repository[T, ID]{db: db, table: table}
}

// WithDB returns a copy bound to db, typically a pgx.Tx.
func (r Repository[T, ID]) WithDB(db DB) Repository[T, ID] {
	return Repository[T, ID]{db: db, table: r.table}
}

func (r Repository[T, ID]) DB() DB { return r.db }

func (r Repository[T, ID]) Table() *Table[T] { return r.table }

func (r Repository[T, ID]) GetByID(ctx context.Context, id ID) (*T, error) {
	return r.table.GetByID(ctx, r.db, id)
}

func (r Repository[T, ID]) GetPaginated(ctx context.Context, req core.PageRequest) (*core.Page[T], error) {
	return r.table.GetPaginated(ctx, r.db, req)
}

// Delete removes the row and returns it as it was.
func (r Repository[T, ID]) Delete(ctx context.Context, id ID) (*T, error) {
	return r.table.DeleteByID(ctx, r.db, id)
}

// InsertFields inserts one row from column/value pairs and returns it.
func (r Repository[T, ID]) InsertFields(ctx context.Context, fields map[string]any) (*T, error) {
	return r.table.InsertReturning(ctx, r.db, r.table.Insert().SetMap(fields))
}

// UpdateFields applies column/value pairs to one row and returns it. An empty
// change set is a validation error.
func (r Repository[T, ID]) UpdateFields(ctx context.Context, id ID, fields map[string]any) (*T, error) {
	if len(fields) == 0 {
		return nil, core.Invalid("no fields to update on %s", r.table.Name())
	}
	return r.table.UpdateByID(ctx, r.db, r.table.Update().SetMap(fields), id)
}

// SetIfPresent records col=*v in fields when v is non-nil. It builds the change
// set of partial updates.
func SetIfPresent[V any](fields map[string]any, col string, v *V) {
	if v != nil {
		fields[col] = *v
	}
}
