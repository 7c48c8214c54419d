package repo

import (
	"github.com/credportal/credportal/engine/access"
	"github.com/credportal/credportal/engine/attachment"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/credit"
	"github.com/credportal/credportal/engine/infra/monitoring"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/credportal/credportal/engine/ticket"
)

// Provider builds the repositories and services of the application on one
// database handle and one byte store.
type Provider struct {
	db      postgres.DB
	files   attachment.Store
	layout  attachment.Layout
	metrics *monitoring.Metrics
	clock   core.Clock
	intake  []credit.IntakeOption
}

type Option func(*Provider)

func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

func WithClock(c core.Clock) Option {
	return func(p *Provider) { p.clock = c }
}

func WithLayout(l attachment.Layout) Option {
	return func(p *Provider) { p.layout = l }
}

// WithIntakeOptions appends options applied to every intake workflow.
func WithIntakeOptions(opts ...credit.IntakeOption) Option {
	return func(p *Provider) { p.intake = append(p.intake, opts...) }
}

func NewProvider(db postgres.DB, files attachment.Store, opts ...Option) *Provider {
	p := &Provider{
		db:     db,
		files:  files,
		layout: attachment.NewLayout(attachment.DefaultURLPrefix),
		clock:  core.SystemClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Modules() *access.ModuleRepository { return access.NewModuleRepository(p.db) }

func (p *Provider) Permissions() *access.PermissionRepository {
	return access.NewPermissionRepository(p.db)
}

func (p *Provider) Roles() *access.RoleRepository { return access.NewRoleRepository(p.db) }

func (p *Provider) Users() *access.UserRepository { return access.NewUserRepository(p.db) }

func (p *Provider) Lines() *credit.LineRepository { return credit.NewLineRepository(p.db) }

func (p *Provider) Municipalities() *credit.MunicipalityRepository {
	return credit.NewMunicipalityRepository(p.db)
}

func (p *Provider) Regions() *credit.RegionRepository { return credit.NewRegionRepository(p.db) }

func (p *Provider) Contacts() *credit.ContactRepository { return credit.NewContactRepository(p.db) }

func (p *Provider) Resources() *credit.ResourceRepository { return credit.NewResourceRepository(p.db) }

func (p *Provider) Documents() *credit.DocumentRepository { return credit.NewDocumentRepository(p.db) }

func (p *Provider) PendingDocuments() *credit.DocumentRepository {
	return credit.NewPendingDocumentRepository(p.db)
}

func (p *Provider) TicketTypes() *ticket.TypeRepository { return ticket.NewTypeRepository(p.db) }

func (p *Provider) TicketCategories() *ticket.CategoryRepository {
	return ticket.NewCategoryRepository(p.db)
}

func (p *Provider) Tickets() *ticket.Service {
	return ticket.NewService(p.db, p.files, p.layout, p.Reconciler(), p.clock)
}

func (p *Provider) Reconciler() *attachment.Reconciler {
	return attachment.NewReconciler(p.files, p.layout, p.metrics)
}

// Intake returns the contact creation workflow.
func (p *Provider) Intake() *credit.Intake {
	opts := []credit.IntakeOption{
		credit.WithClock(p.clock),
		credit.WithLayout(p.layout),
		credit.WithMetrics(p.metrics),
	}
	return credit.NewIntake(p.db, p.files, append(opts, p.intake...)...)
}
