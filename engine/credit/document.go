package credit

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var documentMeta = postgres.Meta{
	Table:      "contact_documents",
	Alias:      "d",
	Columns:    []string{"id", "contact_id", "category", "file_path", "status", "note", "created_at"},
	Searchable: []string{"category", "file_path", "note"},
}

var documentTable = postgres.NewTable[Document](documentMeta)

// pendingDocumentTable lists only documents still waiting for review.
var pendingDocumentTable = func() *postgres.Table[Document] {
	meta := documentMeta
	meta.Extra = squirrel.Eq{"d.status": DocumentPending}
	return postgres.NewTable[Document](meta)
}()

type DocumentRepository struct {
	postgres.Repository[Document, int64]
}

func NewDocumentRepository(db postgres.DB) *DocumentRepository {
	return &DocumentRepository{Repository: postgres.NewRepository[Document, int64](db, documentTable)}
}

// NewPendingDocumentRepository returns a repository whose listings are
// restricted to pending documents. Lookups by id are not restricted.
func NewPendingDocumentRepository(db postgres.DB) *DocumentRepository {
	return &DocumentRepository{Repository: postgres.NewRepository[Document, int64](db, pendingDocumentTable)}
}

func (r *DocumentRepository) WithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{Repository: r.WithDB(tx)}
}

func (r *DocumentRepository) ListByContact(ctx context.Context, contactID uuid.UUID) ([]Document, error) {
	return r.Table().List(ctx, r.DB(), squirrel.Expr("d.contact_id = ?", contactID))
}

// Create records a stored file as a pending document of the contact.
func (r *DocumentRepository) Create(ctx context.Context, contactID uuid.UUID, category, filePath string) (*Document, error) {
	if category == "" || filePath == "" {
		return nil, core.Invalid("document requires category and file path")
	}
	return r.InsertFields(ctx, map[string]any{
		"contact_id": contactID,
		"category":   category,
		"file_path":  filePath,
		"status":     DocumentPending,
	})
}

// Review sets the review outcome of a document.
func (r *DocumentRepository) Review(ctx context.Context, id int64, status DocumentStatus, note string) (*Document, error) {
	if !status.Valid() {
		return nil, core.Invalid("unknown document status %d", status)
	}
	return r.UpdateFields(ctx, id, map[string]any{"status": status, "note": note})
}
