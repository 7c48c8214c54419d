package credit

import (
	"context"

	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/jackc/pgx/v5"
)

var municipalityTable = postgres.NewTable[Municipality](postgres.Meta{
	Table:      "municipalities",
	Alias:      "m",
	Columns:    []string{"id", "name"},
	Searchable: []string{"name"},
	OrderBy:    "name",
})

var regionTable = postgres.NewTable[Region](postgres.Meta{
	Table:      "regions",
	Alias:      "r",
	Columns:    []string{"id", "name", "municipality_id"},
	Select:     []string{"r.id", "r.name", "r.municipality_id", "m.name AS municipality_name"},
	Joins:      []string{"JOIN municipalities m ON m.id = r.municipality_id"},
	Searchable: []string{"name", "m.name"},
	Returning:  []string{"id", "name", "municipality_id", "(SELECT name FROM municipalities WHERE id = municipality_id) AS municipality_name"},
})

// MunicipalityRepository reads the municipality reference table. Rows are
// keyed by their official code, so Create takes the id.
type MunicipalityRepository struct {
	postgres.Repository[Municipality, int64]
}

func NewMunicipalityRepository(db postgres.DB) *MunicipalityRepository {
	return &MunicipalityRepository{Repository: postgres.NewRepository[Municipality, int64](db, municipalityTable)}
}

func (r *MunicipalityRepository) WithTx(tx pgx.Tx) *MunicipalityRepository {
	return &MunicipalityRepository{Repository: r.WithDB(tx)}
}

func (r *MunicipalityRepository) Create(ctx context.Context, in *Municipality) (*Municipality, error) {
	if in == nil || in.ID <= 0 || in.Name == "" {
		return nil, core.Invalid("municipality requires id and name")
	}
	return r.InsertFields(ctx, map[string]any{"id": in.ID, "name": in.Name})
}

type RegionInput struct {
	Name           string `json:"name"            validate:"required,max=160"`
	MunicipalityID int64  `json:"municipality_id" validate:"required,gt=0"`
}

type RegionPatch struct {
	Name           *string `json:"name,omitempty"            validate:"omitempty,min=1,max=160"`
	MunicipalityID *int64  `json:"municipality_id,omitempty" validate:"omitempty,gt=0"`
}

// RegionRepository lists regions with the municipality name joined in.
type RegionRepository struct {
	postgres.Repository[Region, int32]
}

func NewRegionRepository(db postgres.DB) *RegionRepository {
	return &RegionRepository{Repository: postgres.NewRepository[Region, int32](db, regionTable)}
}

func (r *RegionRepository) WithTx(tx pgx.Tx) *RegionRepository {
	return &RegionRepository{Repository: r.WithDB(tx)}
}

func (r *RegionRepository) Create(ctx context.Context, in *RegionInput) (*Region, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	return r.InsertFields(ctx, map[string]any{"name": in.Name, "municipality_id": in.MunicipalityID})
}

func (r *RegionRepository) Update(ctx context.Context, id int32, in *RegionPatch) (*Region, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	postgres.SetIfPresent(fields, "name", in.Name)
	postgres.SetIfPresent(fields, "municipality_id", in.MunicipalityID)
	return r.UpdateFields(ctx, id, fields)
}
