package ticket

import (
	"context"
	"fmt"
	"strconv"

	"github.com/credportal/credportal/engine/attachment"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/credportal/credportal/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const maxImageSize = 10 << 20

// Service keeps stored editor images in step with ticket descriptions.
type Service struct {
	db         postgres.DB
	repo       *Repository
	files      attachment.Store
	layout     attachment.Layout
	reconciler *attachment.Reconciler
	clock      core.Clock
}

func NewService(
	db postgres.DB,
	files attachment.Store,
	layout attachment.Layout,
	reconciler *attachment.Reconciler,
	clock core.Clock,
) *Service {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Service{
		db:         db,
		repo:       NewRepository(db),
		files:      files,
		layout:     layout,
		reconciler: reconciler,
		clock:      clock,
	}
}

func (s *Service) Repository() *Repository { return s.repo }

// Update applies the patch and then removes images the new description no
// longer references. Cleanup runs only after the row is committed.
func (s *Service) Update(ctx context.Context, id int64, in *Patch) (*Ticket, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var before, after *Ticket
	err := postgres.WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		var err error
		if in.Description != nil {
			if before, err = repo.GetByID(ctx, id); err != nil {
				return err
			}
		}
		after, err = repo.Update(ctx, id, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	if before != nil {
		s.reconcile(ctx, id, before.Description, after.Description)
	}
	return after, nil
}

// Delete removes the ticket and every local image its description referenced.
func (s *Service) Delete(ctx context.Context, id int64) (*Ticket, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.reconcile(ctx, id, deleted.Description, nil)
	return deleted, nil
}

// UploadImage stores an editor image for a ticket and returns the URL to embed
// in its description.
func (s *Service) UploadImage(ctx context.Context, ticketID int64, filename string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", core.Invalid("image is empty")
	}
	if len(content) > maxImageSize {
		return "", core.Invalid("image exceeds %d bytes", maxImageSize)
	}
	if _, err := s.repo.GetByID(ctx, ticketID); err != nil {
		return "", err
	}
	key, err := s.layout.Key(attachment.KindTicket, s.clock.Now(), strconv.FormatInt(ticketID, 10), filename, content)
	if err != nil {
		return "", err
	}
	if err := s.files.Write(ctx, key, content); err != nil {
		return "", fmt.Errorf("storing ticket image: %w", err)
	}
	logger.FromContext(ctx).Debug("Stored ticket image", "ticket_id", ticketID, "key", key)
	return s.layout.URL(key), nil
}

func (s *Service) reconcile(ctx context.Context, id int64, oldDoc, newDoc []byte) {
	removed, err := s.reconciler.Reconcile(ctx, oldDoc, newDoc)
	if err != nil {
		logger.FromContext(ctx).Warn("Skipped image cleanup", "ticket_id", id, "error", err)
		return
	}
	if len(removed) > 0 {
		logger.FromContext(ctx).Info("Removed dropped ticket images", "ticket_id", id, "count", len(removed))
	}
}
