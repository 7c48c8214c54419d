package access

import (
	"context"
	"slices"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/jackc/pgx/v5"
)

var roleTable = postgres.NewTable[Role](postgres.Meta{
	Table:      "roles",
	Alias:      "ro",
	Columns:    []string{"id", "name"},
	Searchable: []string{"name"},
})

type RoleInput struct {
	Name string `json:"name" validate:"required,max=80"`
}

type RoleRepository struct {
	postgres.Repository[Role, int32]
}

func NewRoleRepository(db postgres.DB) *RoleRepository {
	return &RoleRepository{Repository: postgres.NewRepository[Role, int32](db, roleTable)}
}

func (r *RoleRepository) WithTx(tx pgx.Tx) *RoleRepository {
	return &RoleRepository{Repository: r.WithDB(tx)}
}

func (r *RoleRepository) Create(ctx context.Context, in *RoleInput) (*Role, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	return r.InsertFields(ctx, map[string]any{"name": in.Name})
}

func (r *RoleRepository) Update(ctx context.Context, id int32, in *RoleInput) (*Role, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	return r.UpdateFields(ctx, id, map[string]any{"name": in.Name})
}

// SetPermissions replaces the permissions granted to a role. Unknown role or
// permission ids yield core.ErrValidation and leave the grants untouched.
func (r *RoleRepository) SetPermissions(ctx context.Context, roleID int32, permissionIDs []int32) error {
	return replaceLinks(ctx, r.DB(), "role_permissions", "role_id", "permission_id", roleID, permissionIDs)
}

// replaceLinks rewrites the rows of a join table owned by ownerID in one
// transaction.
func replaceLinks[O, T int32 | int64](
	ctx context.Context,
	db postgres.DB,
	table, ownerCol, targetCol string,
	ownerID O,
	targets []T,
) error {
	ids := slices.Clone(targets)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return postgres.WithTransaction(ctx, db, func(tx pgx.Tx) error {
		del := squirrel.Delete(table).
			Where(squirrel.Expr(ownerCol+" = ?", ownerID)).
			PlaceholderFormat(squirrel.Dollar)
		if _, err := postgres.Exec(ctx, tx, postgres.PhaseDelete, table, del); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		ins := squirrel.Insert(table).Columns(ownerCol, targetCol).PlaceholderFormat(squirrel.Dollar)
		for _, id := range ids {
			ins = ins.Values(ownerID, id)
		}
		_, err := postgres.Exec(ctx, tx, postgres.PhaseInsert, table, ins)
		return err
	})
}
