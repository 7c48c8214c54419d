package postgres

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/core"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// Meta describes how an entity maps onto SQL. It is copied by NewTable and
// never mutated afterwards.
type Meta struct {
	// Table is the physical table written by insert/update/delete.
	Table string
	// Alias qualifies bare column names in read queries.
	Alias string
	// Columns are the physical columns returned by write statements and,
	// unless Select is set, by read queries.
	Columns []string
	// Select overrides the read projection (joined columns, computed values).
	Select []string
	// Joins are appended to the FROM clause of read queries.
	Joins []string
	// Searchable lists the column expressions matched by a listing filter.
	Searchable []string
	// IDColumn defaults to "id".
	IDColumn string
	// OrderBy defaults to IDColumn; listings sort by it descending.
	OrderBy string
	// Extra is a static predicate ANDed into every listing.
	Extra squirrel.Sqlizer
	// Returning overrides Columns for write statements.
	Returning []string
}

// Table builds and runs the SQL for one entity type.
type Table[T any] struct {
	meta       Meta
	selectCols []string
	from       string
	idColumn   string
	orderBy    string
	searchable []string
	returning  string
}

func NewTable[T any](meta Meta) *Table[T] {
	if meta.IDColumn == "" {
		meta.IDColumn = "id"
	}
	meta.Columns = append([]string(nil), meta.Columns...)
	meta.Select = append([]string(nil), meta.Select...)
	meta.Joins = append([]string(nil), meta.Joins...)
	meta.Searchable = append([]string(nil), meta.Searchable...)
	meta.Returning = append([]string(nil), meta.Returning...)
	t := &Table[T]{meta: meta}
	t.selectCols = meta.Select
	if len(t.selectCols) == 0 {
		for _, col := range meta.Columns {
			t.selectCols = append(t.selectCols, t.qualify(col))
		}
	}
	from := meta.Table
	if meta.Alias != "" {
		from += " " + meta.Alias
	}
	if len(meta.Joins) > 0 {
		from += " " + strings.Join(meta.Joins, " ")
	}
	t.from = from
	t.idColumn = t.qualify(meta.IDColumn)
	t.orderBy = t.idColumn
	if meta.OrderBy != "" {
		t.orderBy = t.qualify(meta.OrderBy)
	}
	for _, col := range meta.Searchable {
		t.searchable = append(t.searchable, t.qualify(col))
	}
	returning := meta.Returning
	if len(returning) == 0 {
		returning = meta.Columns
	}
	t.returning = "RETURNING " + strings.Join(returning, ", ")
	return t
}

func (t *Table[T]) Name() string { return t.meta.Table }

func (t *Table[T]) qualify(col string) string {
	if t.meta.Alias == "" || strings.ContainsAny(col, ".( ") {
		return col
	}
	return t.meta.Alias + "." + col
}

func (t *Table[T]) selectBuilder() squirrel.SelectBuilder {
	return squirrel.Select(t.selectCols...).From(t.from).PlaceholderFormat(squirrel.Dollar)
}

// escapeLike makes term match literally inside a LIKE pattern.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

// predicate combines the search filter with the static extra predicate.
// It returns nil when neither applies.
func (t *Table[T]) predicate(req core.PageRequest) squirrel.Sqlizer {
	var parts squirrel.And
	if req.HasFilter() && len(t.searchable) > 0 {
		pattern := "%" + escapeLike(req.Normalize().Filter) + "%"
		search := make(squirrel.Or, 0, len(t.searchable))
		for _, col := range t.searchable {
			search = append(search, squirrel.Expr(col+"::text ILIKE ?", pattern))
		}
		parts = append(parts, search)
	}
	if t.meta.Extra != nil {
		parts = append(parts, t.meta.Extra)
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	default:
		return parts
	}
}

// CountSQL renders the count statement of a listing.
func (t *Table[T]) CountSQL(req core.PageRequest) (string, []any, error) {
	b := squirrel.Select("COUNT(*)").From(t.from).PlaceholderFormat(squirrel.Dollar)
	if pred := t.predicate(req); pred != nil {
		b = b.Where(pred)
	}
	return b.ToSql()
}

// PageSQL renders the select statement of a listing.
func (t *Table[T]) PageSQL(req core.PageRequest) (string, []any, error) {
	n := req.Normalize()
	b := t.selectBuilder()
	if pred := t.predicate(n); pred != nil {
		b = b.Where(pred)
	}
	b = b.OrderBy(t.orderBy + " DESC")
	if t.orderBy != t.idColumn {
		b = b.OrderBy(t.idColumn + " DESC")
	}
	return b.Limit(uint64(n.PageSize)).Offset(n.Offset()).ToSql()
}

// GetPaginated counts the matching rows and then fetches one page of them.
// The two statements are not isolated from each other.
func (t *Table[T]) GetPaginated(ctx context.Context, db DB, req core.PageRequest) (*core.Page[T], error) {
	req = req.Normalize()
	countSQL, countArgs, err := t.CountSQL(req)
	if err != nil {
		return nil, &QueryError{Phase: PhaseBuild, Table: t.meta.Table, Err: err}
	}
	var total int64
	if err := db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, &QueryError{Phase: PhaseCount, Table: t.meta.Table, Err: err}
	}
	pageSQL, pageArgs, err := t.PageSQL(req)
	if err != nil {
		return nil, &QueryError{Phase: PhaseBuild, Table: t.meta.Table, Err: err}
	}
	var rows []T
	if err := pgxscan.Select(ctx, db, &rows, pageSQL, pageArgs...); err != nil {
		return nil, &QueryError{Phase: PhaseSelect, Table: t.meta.Table, Err: err}
	}
	return core.NewPage(rows, total, req), nil
}

// GetByID fetches one row by its id column. The extra predicate is not applied.
func (t *Table[T]) GetByID(ctx context.Context, db DB, id any) (*T, error) {
	query, args, err := t.selectBuilder().Where(squirrel.Expr(t.idColumn+" = ?", id)).Limit(1).ToSql()
	if err != nil {
		return nil, &QueryError{Phase: PhaseBuild, Table: t.meta.Table, Err: err}
	}
	var row T
	if err := pgxscan.Get(ctx, db, &row, query, args...); err != nil {
		return nil, classify(PhaseSelect, t.meta.Table, err)
	}
	return &row, nil
}

// List fetches every row matching pred in listing order, without paging.
func (t *Table[T]) List(ctx context.Context, db DB, pred squirrel.Sqlizer) ([]T, error) {
	b := t.selectBuilder()
	if pred != nil {
		b = b.Where(pred)
	}
	query, args, err := b.OrderBy(t.idColumn + " ASC").ToSql()
	if err != nil {
		return nil, &QueryError{Phase: PhaseBuild, Table: t.meta.Table, Err: err}
	}
	rows := []T{}
	if err := pgxscan.Select(ctx, db, &rows, query, args...); err != nil {
		return nil, &QueryError{Phase: PhaseSelect, Table: t.meta.Table, Err: err}
	}
	return rows, nil
}

// Insert returns an insert builder for the physical table.
func (t *Table[T]) Insert() squirrel.InsertBuilder {
	return squirrel.Insert(t.meta.Table).PlaceholderFormat(squirrel.Dollar)
}

// Update returns an update builder for the physical table.
func (t *Table[T]) Update() squirrel.UpdateBuilder {
	return squirrel.Update(t.meta.Table).PlaceholderFormat(squirrel.Dollar)
}

// InsertReturning runs b with a RETURNING clause and scans the created row.
func (t *Table[T]) InsertReturning(ctx context.Context, db DB, b squirrel.InsertBuilder) (*T, error) {
	query, args, err := b.Suffix(t.returning).ToSql()
	if err != nil {
		return nil, &QueryError{Phase: PhaseBuild, Table: t.meta.Table, Err: err}
	}
	var row T
	if err := pgxscan.Get(ctx, db, &row, query, args...); err != nil {
		return nil, classify(PhaseInsert, t.meta.Table, err)
	}
	return &row, nil
}

// UpdateByID applies b to the row with the given id and returns the updated
// row. A missing row yields core.ErrNotFound.
func (t *Table[T]) UpdateByID(ctx context.Context, db DB, b squirrel.UpdateBuilder, id any) (*T, error) {
	query, args, err := b.Where(squirrel.Expr(t.meta.IDColumn+" = ?", id)).Suffix(t.returning).ToSql()
	if err != nil {
		return nil, &QueryError{Phase: PhaseBuild, Table: t.meta.Table, Err: err}
	}
	var row T
	if err := pgxscan.Get(ctx, db, &row, query, args...); err != nil {
		return nil, classify(PhaseUpdate, t.meta.Table, err)
	}
	return &row, nil
}

// DeleteByID removes the row with the given id and returns it.
func (t *Table[T]) DeleteByID(ctx context.Context, db DB, id any) (*T, error) {
	query, args, err := squirrel.Delete(t.meta.Table).
		Where(squirrel.Expr(t.meta.IDColumn+" = ?", id)).
		Suffix(t.returning).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, &QueryError{Phase: PhaseBuild, Table: t.meta.Table, Err: err}
	}
	var row T
	if err := pgxscan.Get(ctx, db, &row, query, args...); err != nil {
		return nil, classify(PhaseDelete, t.meta.Table, err)
	}
	return &row, nil
}

// Exec runs a statement that returns no rows and reports the affected row
// count. Errors are classified like single-row writes.
func Exec(ctx context.Context, db DB, phase Phase, table string, b squirrel.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, &QueryError{Phase: PhaseBuild, Table: table, Err: err}
	}
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return 0, classify(phase, table, err)
	}
	return tag.RowsAffected(), nil
}
