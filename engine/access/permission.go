package access

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/jackc/pgx/v5"
)

var permissionColumns = []string{"id", "name", "description", "module_id", "created_at", "updated_at"}

var permissionTable = postgres.NewTable[Permission](postgres.Meta{
	Table:   "permissions",
	Alias:   "p",
	Columns: permissionColumns,
	Select: []string{
		"p.id", "p.name", "p.description", "p.module_id", "mo.title AS module_title",
		"p.created_at", "p.updated_at",
	},
	Joins:      []string{"JOIN modules mo ON mo.id = p.module_id"},
	Searchable: []string{"name", "description", "mo.title"},
	Returning: []string{
		"id", "name", "description", "module_id", "(SELECT title FROM modules WHERE id = module_id) AS module_title",
		"created_at", "updated_at",
	},
})

type PermissionInput struct {
	Name        string  `json:"name"        validate:"required,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	ModuleID    int32   `json:"module_id"   validate:"required,gt=0"`
}

type PermissionPatch struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1,max=120"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	ModuleID    *int32  `json:"module_id,omitempty"   validate:"omitempty,gt=0"`
}

type PermissionRepository struct {
	postgres.Repository[Permission, int32]
}

func NewPermissionRepository(db postgres.DB) *PermissionRepository {
	return &PermissionRepository{Repository: postgres.NewRepository[Permission, int32](db, permissionTable)}
}

func (r *PermissionRepository) WithTx(tx pgx.Tx) *PermissionRepository {
	return &PermissionRepository{Repository: r.WithDB(tx)}
}

func (r *PermissionRepository) Create(ctx context.Context, in *PermissionInput) (*Permission, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	return r.InsertFields(ctx, map[string]any{
		"name":        in.Name,
		"description": in.Description,
		"module_id":   in.ModuleID,
	})
}

func (r *PermissionRepository) Update(ctx context.Context, id int32, in *PermissionPatch) (*Permission, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	postgres.SetIfPresent(fields, "name", in.Name)
	postgres.SetIfPresent(fields, "description", in.Description)
	postgres.SetIfPresent(fields, "module_id", in.ModuleID)
	if len(fields) > 0 {
		fields["updated_at"] = squirrel.Expr("now()")
	}
	return r.UpdateFields(ctx, id, fields)
}

// ListByModule returns every permission of a module.
func (r *PermissionRepository) ListByModule(ctx context.Context, moduleID int32) ([]Permission, error) {
	return permissionTable.List(ctx, r.DB(), squirrel.Expr("p.module_id = ?", moduleID))
}

// ListByRole returns the permissions granted to a role.
func (r *PermissionRepository) ListByRole(ctx context.Context, roleID int32) ([]Permission, error) {
	return permissionTable.List(ctx, r.DB(), squirrel.Expr(
		"EXISTS (SELECT 1 FROM role_permissions rp WHERE rp.permission_id = p.id AND rp.role_id = ?)",
		roleID,
	))
}
