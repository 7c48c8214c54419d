package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/credportal/credportal/engine/attachment"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/monitoring"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/credportal/credportal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxProtocolAttempts = 10
	defaultProtocolBackoff     = 5 * time.Millisecond
)

var errProtocolTaken = errors.New("protocol already assigned")

// AttachmentInput is a file uploaded with a new contact.
type AttachmentInput struct {
	Category string `json:"category" validate:"required,max=80"`
	Filename string `json:"filename" validate:"max=255"`
	Content  []byte `json:"-"        validate:"required"`
}

type IntakeInput struct {
	Contact     ContactInput
	Resources   []ResourceItem
	Attachments []AttachmentInput
}

func (in *IntakeInput) validate() error {
	if in == nil {
		return core.Invalid("intake input is required")
	}
	if err := in.Contact.validate(); err != nil {
		return err
	}
	for i := range in.Resources {
		if err := in.Resources[i].validate(); err != nil {
			return fmt.Errorf("resource %d: %w", i, err)
		}
	}
	for i := range in.Attachments {
		if err := core.Validate(&in.Attachments[i]); err != nil {
			return fmt.Errorf("attachment %d: %w", i, err)
		}
	}
	return nil
}

// IntakeResult is the persisted aggregate.
type IntakeResult struct {
	Contact   *Contact       `json:"contact"`
	Resources []ResourceLine `json:"resources"`
	Documents []Document     `json:"documents"`
}

// Intake creates a contact together with its resource lines and documents as
// one unit: either everything is stored or nothing is.
type Intake struct {
	db          postgres.DB
	files       attachment.Store
	layout      attachment.Layout
	clock       core.Clock
	protocols   ProtocolGenerator
	newID       func() uuid.UUID
	maxAttempts int
	backoff     time.Duration
	metrics     *monitoring.Metrics
}

type IntakeOption func(*Intake)

func WithClock(clock core.Clock) IntakeOption {
	return func(s *Intake) { s.clock = clock }
}

func WithProtocolGenerator(g ProtocolGenerator) IntakeOption {
	return func(s *Intake) { s.protocols = g }
}

// WithProtocolRetry bounds protocol allocation to attempts tries spaced by backoff.
func WithProtocolRetry(attempts int, backoff time.Duration) IntakeOption {
	return func(s *Intake) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

func WithLayout(layout attachment.Layout) IntakeOption {
	return func(s *Intake) { s.layout = layout }
}

func WithMetrics(m *monitoring.Metrics) IntakeOption {
	return func(s *Intake) { s.metrics = m }
}

func WithContactIDs(fn func() uuid.UUID) IntakeOption {
	return func(s *Intake) { s.newID = fn }
}

func NewIntake(db postgres.DB, files attachment.Store, opts ...IntakeOption) *Intake {
	s := &Intake{
		db:          db,
		files:       files,
		layout:      attachment.NewLayout(attachment.DefaultURLPrefix),
		clock:       core.SystemClock(),
		protocols:   RandomProtocols(),
		newID:       uuid.New,
		maxAttempts: DefaultMaxProtocolAttempts,
		backoff:     defaultProtocolBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in, then inside one transaction allocates a unique
// protocol, inserts the contact, its resource lines, stores each attachment
// and records it as a pending document. Any failure rolls the transaction
// back and removes files already written.
//
// Errors: core.ErrValidation for bad input, core.ErrConflict when no free
// protocol was found, core.ErrTransaction wrapping any other cause.
func (s *Intake) Create(ctx context.Context, in *IntakeInput) (*IntakeResult, error) {
	log := logger.FromContext(ctx)
	if err := in.validate(); err != nil {
		s.metrics.RecordIntake(monitoring.ResultFailure)
		return nil, err
	}
	now := s.clock.Now()
	var written []string
	var result *IntakeResult
	err := postgres.WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		contact, err := s.allocate(ctx, NewContactRepository(tx), &in.Contact, now.Year())
		if err != nil {
			return err
		}
		res := &IntakeResult{Contact: contact, Resources: []ResourceLine{}, Documents: []Document{}}
		resources := NewResourceRepository(tx)
		for i := range in.Resources {
			line, err := resources.Create(ctx, contact.ID, &in.Resources[i])
			if err != nil {
				return fmt.Errorf("resource %d: %w", i, err)
			}
			res.Resources = append(res.Resources, *line)
		}
		documents := NewDocumentRepository(tx)
		for i := range in.Attachments {
			att := &in.Attachments[i]
			if err := ctx.Err(); err != nil {
				return err
			}
			key, err := s.layout.Key(attachment.KindContact, now, contact.ID.String(), att.Filename, att.Content)
			if err != nil {
				return fmt.Errorf("attachment %d: %w", i, err)
			}
			if err := s.files.Write(ctx, key, att.Content); err != nil {
				return fmt.Errorf("attachment %d: %w", i, err)
			}
			written = append(written, key)
			doc, err := documents.Create(ctx, contact.ID, att.Category, key)
			if err != nil {
				return fmt.Errorf("attachment %d: %w", i, err)
			}
			res.Documents = append(res.Documents, *doc)
		}
		result = res
		return nil
	})
	if err != nil {
		s.removeWritten(ctx, written)
		if errors.Is(err, core.ErrConflict) && errors.Is(err, errProtocolTaken) {
			s.metrics.RecordIntake(monitoring.ResultConflict)
			return nil, err
		}
		s.metrics.RecordIntake(monitoring.ResultFailure)
		log.Warn("Contact intake rolled back", "error", err, "files_removed", len(written))
		return nil, fmt.Errorf("%w: %w", core.ErrTransaction, err)
	}
	s.metrics.RecordIntake(monitoring.ResultSuccess)
	log.Info("Contact created",
		"contact_id", result.Contact.ID,
		"protocol", result.Contact.Protocol,
		"resources", len(result.Resources),
		"documents", len(result.Documents),
	)
	return result, nil
}

// allocate tries protocol candidates until one is free. A candidate is
// rejected when the pre-check finds it or when the insert hits the unique
// constraint of a concurrent writer.
func (s *Intake) allocate(ctx context.Context, contacts *ContactRepository, in *ContactInput, year int) (*Contact, error) {
	id := s.newID()
	var created *Contact
	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewConstant(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		protocol := s.protocols.Next(year)
		taken, err := contacts.ProtocolExists(ctx, protocol)
		if err != nil {
			return err
		}
		if !taken {
			contact, err := contacts.insertWithProtocol(ctx, id, protocol, in)
			if err != nil {
				return err
			}
			if contact != nil {
				created = contact
				return nil
			}
		}
		s.metrics.RecordProtocolCollision()
		logger.FromContext(ctx).Debug("Protocol candidate taken", "protocol", protocol)
		return retry.RetryableError(errProtocolTaken)
	})
	if errors.Is(err, errProtocolTaken) {
		return nil, fmt.Errorf("%w: %w after %d attempts", core.ErrConflict, errProtocolTaken, s.maxAttempts)
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

// removeWritten deletes files stored by a transaction that did not commit.
func (s *Intake) removeWritten(ctx context.Context, keys []string) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.files.Remove(cleanupCtx, key); err != nil {
			logger.FromContext(ctx).Error("Failed to remove file of rolled back intake", "key", key, "error", err)
		}
	}
}
