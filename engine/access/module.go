package access

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/jackc/pgx/v5"
)

var moduleTable = postgres.NewTable[Module](postgres.Meta{
	Table:      "modules",
	Alias:      "mo",
	Columns:    []string{"id", "title", "created_at", "updated_at"},
	Searchable: []string{"title"},
})

type ModuleInput struct {
	Title string `json:"title" validate:"required,max=120"`
}

type ModuleRepository struct {
	postgres.Repository[Module, int32]
}

func NewModuleRepository(db postgres.DB) *ModuleRepository {
	return &ModuleRepository{Repository: postgres.NewRepository[Module, int32](db, moduleTable)}
}

func (r *ModuleRepository) WithTx(tx pgx.Tx) *ModuleRepository {
	return &ModuleRepository{Repository: r.WithDB(tx)}
}

func (r *ModuleRepository) Create(ctx context.Context, in *ModuleInput) (*Module, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	return r.InsertFields(ctx, map[string]any{"title": in.Title})
}

// Update renames a module. A duplicate title yields core.ErrConflict.
func (r *ModuleRepository) Update(ctx context.Context, id int32, in *ModuleInput) (*Module, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	return r.UpdateFields(ctx, id, map[string]any{
		"title":      in.Title,
		"updated_at": squirrel.Expr("now()"),
	})
}
