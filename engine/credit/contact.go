package credit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var contactColumns = []string{
	"id",
	"line_id",
	"protocol",
	"attended",
	"tax_id",
	"name",
	"phone",
	"email",
	"city_id",
	"requested_amount",
	"processing_status",
	"fields",
	"import_data",
	"created_at",
	"updated_at",
}

func contactSelect() []string {
	cols := make([]string, 0, len(contactColumns)+1)
	for _, col := range contactColumns {
		cols = append(cols, "c."+col)
	}
	return append(cols, "l.name AS line_name")
}

var contactTable = postgres.NewTable[Contact](postgres.Meta{
	Table:      "contacts",
	Alias:      "c",
	Columns:    contactColumns,
	Select:     contactSelect(),
	Joins:      []string{"LEFT JOIN lines l ON l.id = c.line_id"},
	Searchable: []string{"protocol", "name", "tax_id", "email", "phone"},
	Returning:  append(append([]string(nil), contactColumns...), "(SELECT name FROM lines WHERE id = line_id) AS line_name"),
	OrderBy:    "created_at",
})

const protocolExistsSQL = `SELECT EXISTS(SELECT 1 FROM contacts WHERE protocol = $1)`

// ContactInput carries the applicant fields of a new contact.
type ContactInput struct {
	LineID          int32           `json:"line_id"          validate:"required,gt=0"`
	TaxID           string          `json:"tax_id"           validate:"required,min=11,max=18"`
	Name            string          `json:"name"             validate:"required,max=200"`
	Phone           string          `json:"phone"            validate:"required,max=30"`
	Email           string          `json:"email"            validate:"omitempty,email,max=254"`
	CityID          *int64          `json:"city_id"          validate:"omitempty,gt=0"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	Fields          json.RawMessage `json:"fields"`
	ImportData      json.RawMessage `json:"import_data"`
}

func (in *ContactInput) validate() error {
	if err := core.Validate(in); err != nil {
		return err
	}
	if in.RequestedAmount.IsNegative() {
		return core.Invalid("requested_amount must not be negative")
	}
	if len(in.Fields) > 0 && !json.Valid(in.Fields) {
		return core.Invalid("fields must be valid JSON")
	}
	if len(in.ImportData) > 0 && !json.Valid(in.ImportData) {
		return core.Invalid("import_data must be valid JSON")
	}
	return nil
}

// ContactPatch updates attendance data of an existing contact.
type ContactPatch struct {
	Attended         *bool             `json:"attended,omitempty"`
	ProcessingStatus *ProcessingStatus `json:"processing_status,omitempty"`
	Name             *string           `json:"name,omitempty"              validate:"omitempty,min=1,max=200"`
	Phone            *string           `json:"phone,omitempty"             validate:"omitempty,min=1,max=30"`
	Email            *string           `json:"email,omitempty"             validate:"omitempty,email,max=254"`
	CityID           *int64            `json:"city_id,omitempty"           validate:"omitempty,gt=0"`
	RequestedAmount  *decimal.Decimal  `json:"requested_amount,omitempty"`
	Fields           *json.RawMessage  `json:"fields,omitempty"`
}

type ContactRepository struct {
	postgres.Repository[Contact, uuid.UUID]
}

func NewContactRepository(db postgres.DB) *ContactRepository {
	return &ContactRepository{Repository: postgres.NewRepository[Contact, uuid.UUID](db, contactTable)}
}

func (r *ContactRepository) WithTx(tx pgx.Tx) *ContactRepository {
	return &ContactRepository{Repository: r.WithDB(tx)}
}

// GetByProtocol looks a contact up by the code handed to the applicant.
func (r *ContactRepository) GetByProtocol(ctx context.Context, protocol string) (*Contact, error) {
	rows, err := contactTable.List(ctx, r.DB(), squirrel.Expr("c.protocol = ?", protocol))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}
	return &rows[0], nil
}

// ProtocolExists reports whether protocol is already assigned.
func (r *ContactRepository) ProtocolExists(ctx context.Context, protocol string) (bool, error) {
	var exists bool
	if err := r.DB().QueryRow(ctx, protocolExistsSQL, protocol).Scan(&exists); err != nil {
		return false, &postgres.QueryError{Phase: postgres.PhaseSelect, Table: "contacts", Err: err}
	}
	return exists, nil
}

// insertWithProtocol inserts a new contact unless protocol is already taken,
// in which case it returns (nil, nil). A concurrent duplicate is absorbed by
// ON CONFLICT so the surrounding transaction stays usable.
func (r *ContactRepository) insertWithProtocol(
	ctx context.Context,
	id uuid.UUID,
	protocol string,
	in *ContactInput,
) (*Contact, error) {
	fields := in.Fields
	if len(fields) == 0 {
		fields = json.RawMessage(`{}`)
	}
	var importData any
	if len(in.ImportData) > 0 {
		importData = in.ImportData
	}
	b := contactTable.Insert().
		SetMap(map[string]any{
			"id":                id,
			"line_id":           in.LineID,
			"protocol":          protocol,
			"attended":          false,
			"tax_id":            in.TaxID,
			"name":              in.Name,
			"phone":             in.Phone,
			"email":             in.Email,
			"city_id":           in.CityID,
			"requested_amount":  in.RequestedAmount,
			"processing_status": StatusAwaitingAttendance,
			"fields":            fields,
			"import_data":       importData,
		}).
		Suffix("ON CONFLICT (protocol) DO NOTHING")
	created, err := contactTable.InsertReturning(ctx, r.DB(), b)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	return created, err
}

func (r *ContactRepository) Update(ctx context.Context, id uuid.UUID, in *ContactPatch) (*Contact, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	if in.ProcessingStatus != nil && !in.ProcessingStatus.Valid() {
		return nil, core.Invalid("unknown processing status %d", *in.ProcessingStatus)
	}
	if in.RequestedAmount != nil && in.RequestedAmount.IsNegative() {
		return nil, core.Invalid("requested_amount must not be negative")
	}
	if in.Fields != nil && !json.Valid(*in.Fields) {
		return nil, core.Invalid("fields must be valid JSON")
	}
	fields := make(map[string]any)
	postgres.SetIfPresent(fields, "attended", in.Attended)
	postgres.SetIfPresent(fields, "processing_status", in.ProcessingStatus)
	postgres.SetIfPresent(fields, "name", in.Name)
	postgres.SetIfPresent(fields, "phone", in.Phone)
	postgres.SetIfPresent(fields, "email", in.Email)
	postgres.SetIfPresent(fields, "city_id", in.CityID)
	postgres.SetIfPresent(fields, "requested_amount", in.RequestedAmount)
	postgres.SetIfPresent(fields, "fields", in.Fields)
	if len(fields) > 0 {
		fields["updated_at"] = squirrel.Expr("now()")
	}
	return r.UpdateFields(ctx, id, fields)
}
