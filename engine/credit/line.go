package credit

import (
	"context"

	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var lineTable = postgres.NewTable[Line](postgres.Meta{
	Table:      "lines",
	Alias:      "l",
	Columns:    []string{"id", "name", "allows_company", "allows_individual", "allows_guarantor", "max_amount"},
	Searchable: []string{"name"},
})

type LineInput struct {
	Name             string          `json:"name"              validate:"required,max=160"`
	AllowsCompany    bool            `json:"allows_company"`
	AllowsIndividual bool            `json:"allows_individual"`
	AllowsGuarantor  bool            `json:"allows_guarantor"`
	MaxAmount        decimal.Decimal `json:"max_amount"`
}

type LinePatch struct {
	Name             *string          `json:"name,omitempty"              validate:"omitempty,min=1,max=160"`
	AllowsCompany    *bool            `json:"allows_company,omitempty"`
	AllowsIndividual *bool            `json:"allows_individual,omitempty"`
	AllowsGuarantor  *bool            `json:"allows_guarantor,omitempty"`
	MaxAmount        *decimal.Decimal `json:"max_amount,omitempty"`
}

type LineRepository struct {
	postgres.Repository[Line, int32]
}

func NewLineRepository(db postgres.DB) *LineRepository {
	return &LineRepository{Repository: postgres.NewRepository[Line, int32](db, lineTable)}
}

func (r *LineRepository) WithTx(tx pgx.Tx) *LineRepository {
	return &LineRepository{Repository: r.WithDB(tx)}
}

func (r *LineRepository) Create(ctx context.Context, in *LineInput) (*Line, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	if in.MaxAmount.IsNegative() {
		return nil, core.Invalid("max_amount must not be negative")
	}
	return r.InsertFields(ctx, map[string]any{
		"name":              in.Name,
		"allows_company":    in.AllowsCompany,
		"allows_individual": in.AllowsIndividual,
		"allows_guarantor":  in.AllowsGuarantor,
		"max_amount":        in.MaxAmount,
	})
}

func (r *LineRepository) Update(ctx context.Context, id int32, in *LinePatch) (*Line, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	if in.MaxAmount != nil && in.MaxAmount.IsNegative() {
		return nil, core.Invalid("max_amount must not be negative")
	}
	fields := make(map[string]any)
	postgres.SetIfPresent(fields, "name", in.Name)
	postgres.SetIfPresent(fields, "allows_company", in.AllowsCompany)
	postgres.SetIfPresent(fields, "allows_individual", in.AllowsIndividual)
	postgres.SetIfPresent(fields, "allows_guarantor", in.AllowsGuarantor)
	postgres.SetIfPresent(fields, "max_amount", in.MaxAmount)
	return r.UpdateFields(ctx, id, fields)
}
