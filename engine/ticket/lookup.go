package ticket

import (
	"context"

	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
)

type NameInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

// lookupRepository serves the name-only tables.
type lookupRepository[T any] struct {
	postgres.Repository[T, int32]
}

func (r lookupRepository[T]) Create(ctx context.Context, in *NameInput) (*T, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	return r.InsertFields(ctx, map[string]any{"name": in.Name})
}

func (r lookupRepository[T]) Update(ctx context.Context, id int32, in *NameInput) (*T, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	return r.UpdateFields(ctx, id, map[string]any{"name": in.Name})
}

var typeTable = postgres.NewTable[Type](postgres.Meta{
	Table:      "ticket_types",
	Alias:      "tt",
	Columns:    []string{"id", "name"},
	Searchable: []string{"name"},
})

var categoryTable = postgres.NewTable[Category](postgres.Meta{
	Table:      "ticket_categories",
	Alias:      "tc",
	Columns:    []string{"id", "name"},
	Searchable: []string{"name"},
})

type TypeRepository struct {
	lookupRepository[Type]
}

func NewTypeRepository(db postgres.DB) *TypeRepository {
	return &TypeRepository{lookupRepository[Type]{postgres.NewRepository[Type, int32](db, typeTable)}}
}

type CategoryRepository struct {
	lookupRepository[Category]
}

func NewCategoryRepository(db postgres.DB) *CategoryRepository {
	return &CategoryRepository{lookupRepository[Category]{postgres.NewRepository[Category, int32](db, categoryTable)}}
}
