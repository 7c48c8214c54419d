package credit

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var resourceTable = postgres.NewTable[ResourceLine](postgres.Meta{
	Table:      "contact_resource_lines",
	Alias:      "rl",
	Columns:    []string{"id", "contact_id", "description", "quantity", "unit_price", "total_price"},
	Searchable: []string{"description"},
})

// ResourceItem is one planned use of the requested credit.
type ResourceItem struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    int32           `json:"quantity"    validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (in *ResourceItem) validate() error {
	if err := core.Validate(in); err != nil {
		return err
	}
	if in.UnitPrice.IsNegative() {
		return core.Invalid("unit_price must not be negative")
	}
	return nil
}

// Total is quantity times unit price.
func (in *ResourceItem) Total() decimal.Decimal {
	return in.UnitPrice.Mul(decimal.NewFromInt32(in.Quantity))
}

type ResourcePatch struct {
	Description *string          `json:"description,omitempty" validate:"omitempty,min=1,max=500"`
	Quantity    *int32           `json:"quantity,omitempty"    validate:"omitempty,gt=0"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
}

type ResourceRepository struct {
	postgres.Repository[ResourceLine, int64]
}

func NewResourceRepository(db postgres.DB) *ResourceRepository {
	return &ResourceRepository{Repository: postgres.NewRepository[ResourceLine, int64](db, resourceTable)}
}

func (r *ResourceRepository) WithTx(tx pgx.Tx) *ResourceRepository {
	return &ResourceRepository{Repository: r.WithDB(tx)}
}

func (r *ResourceRepository) ListByContact(ctx context.Context, contactID uuid.UUID) ([]ResourceLine, error) {
	return resourceTable.List(ctx, r.DB(), squirrel.Expr("rl.contact_id = ?", contactID))
}

func (r *ResourceRepository) Create(ctx context.Context, contactID uuid.UUID, in *ResourceItem) (*ResourceLine, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return r.InsertFields(ctx, map[string]any{
		"contact_id":  contactID,
		"description": in.Description,
		"quantity":    in.Quantity,
		"unit_price":  in.UnitPrice,
		"total_price": in.Total(),
	})
}

// Update changes an item. When quantity or unit price change, the total is
// recomputed from the stored values in the same statement.
func (r *ResourceRepository) Update(ctx context.Context, id int64, in *ResourcePatch) (*ResourceLine, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return nil, core.Invalid("unit_price must not be negative")
	}
	fields := make(map[string]any)
	postgres.SetIfPresent(fields, "description", in.Description)
	postgres.SetIfPresent(fields, "quantity", in.Quantity)
	postgres.SetIfPresent(fields, "unit_price", in.UnitPrice)
	if in.Quantity != nil || in.UnitPrice != nil {
		quantity := squirrel.Expr("quantity")
		if in.Quantity != nil {
			quantity = squirrel.Expr("?::integer", *in.Quantity)
		}
		price := squirrel.Expr("unit_price")
		if in.UnitPrice != nil {
			price = squirrel.Expr("?::numeric", *in.UnitPrice)
		}
		fields["total_price"] = squirrel.ConcatExpr(quantity, " * ", price)
	}
	return r.UpdateFields(ctx, id, fields)
}
