package ticket

import (
	"context"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/attachment"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/jackc/pgx/v5"
)

var ticketColumns = []string{
	"id", "title", "description", "status", "requester_id", "type_id", "category_id",
	"created_at", "updated_at",
}

func ticketSelect() []string {
	cols := make([]string, 0, len(ticketColumns)+3)
	for _, col := range ticketColumns {
		cols = append(cols, "t."+col)
	}
	return append(cols,
		"u.full_name AS requester_name",
		"tt.name AS type_name",
		"tc.name AS category_name",
	)
}

func ticketReturning() []string {
	return append(append([]string(nil), ticketColumns...),
		"(SELECT full_name FROM users WHERE id = requester_id) AS requester_name",
		"(SELECT name FROM ticket_types WHERE id = type_id) AS type_name",
		"(SELECT name FROM ticket_categories WHERE id = category_id) AS category_name",
	)
}

var ticketTable = postgres.NewTable[Ticket](postgres.Meta{
	Table:   "tickets",
	Alias:   "t",
	Columns: ticketColumns,
	Select:  ticketSelect(),
	Joins: []string{
		"JOIN users u ON u.id = t.requester_id",
		"JOIN ticket_types tt ON tt.id = t.type_id",
		"LEFT JOIN ticket_categories tc ON tc.id = t.category_id",
	},
	Searchable: []string{"title", "description", "u.full_name", "tt.name", "tc.name"},
	Returning:  ticketReturning(),
	OrderBy:    "created_at",
})

var emptyDescription = json.RawMessage(`{"blocks":[]}`)

type Input struct {
	Title       string          `json:"title"        validate:"required,max=200"`
	Description json.RawMessage `json:"description"`
	RequesterID int64           `json:"requester_id" validate:"required,gt=0"`
	TypeID      int32           `json:"type_id"      validate:"required,gt=0"`
	CategoryID  *int32          `json:"category_id"  validate:"omitempty,gt=0"`
}

type Patch struct {
	Title       *string          `json:"title,omitempty"       validate:"omitempty,min=1,max=200"`
	Description *json.RawMessage `json:"description,omitempty"`
	Status      *Status          `json:"status,omitempty"`
	TypeID      *int32           `json:"type_id,omitempty"     validate:"omitempty,gt=0"`
	CategoryID  *int32           `json:"category_id,omitempty" validate:"omitempty,gt=0"`
}

func (p *Patch) validate() error {
	if err := core.Validate(p); err != nil {
		return err
	}
	if p.Status != nil && !p.Status.Valid() {
		return core.Invalid("unknown ticket status %d", *p.Status)
	}
	if p.Description != nil {
		return validDescription(*p.Description)
	}
	return nil
}

func validDescription(doc json.RawMessage) error {
	if _, err := attachment.ImageURLs(doc); err != nil {
		return core.Invalid("description: %v", err)
	}
	return nil
}

type Repository struct {
	postgres.Repository[Ticket, int64]
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{Repository: postgres.NewRepository[Ticket, int64](db, ticketTable)}
}

func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{Repository: r.WithDB(tx)}
}

// Create opens a ticket. A missing description becomes an empty document.
func (r *Repository) Create(ctx context.Context, in *Input) (*Ticket, error) {
	if err := core.Validate(in); err != nil {
		return nil, err
	}
	desc := in.Description
	if len(desc) == 0 {
		desc = emptyDescription
	}
	if err := validDescription(desc); err != nil {
		return nil, err
	}
	return r.InsertFields(ctx, map[string]any{
		"title":        in.Title,
		"description":  desc,
		"status":       StatusOpen,
		"requester_id": in.RequesterID,
		"type_id":      in.TypeID,
		"category_id":  in.CategoryID,
	})
}

func (r *Repository) Update(ctx context.Context, id int64, in *Patch) (*Ticket, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	postgres.SetIfPresent(fields, "title", in.Title)
	postgres.SetIfPresent(fields, "description", in.Description)
	postgres.SetIfPresent(fields, "status", in.Status)
	postgres.SetIfPresent(fields, "type_id", in.TypeID)
	postgres.SetIfPresent(fields, "category_id", in.CategoryID)
	if len(fields) > 0 {
		fields["updated_at"] = squirrel.Expr("now()")
	}
	return r.UpdateFields(ctx, id, fields)
}

// ListByRequester returns every ticket opened by a user.
func (r *Repository) ListByRequester(ctx context.Context, requesterID int64) ([]Ticket, error) {
	return ticketTable.List(ctx, r.DB(), squirrel.Expr("t.requester_id = ?", requesterID))
}
