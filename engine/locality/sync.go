package locality

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/credportal/credportal/engine/core"
	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/credportal/credportal/pkg/logger"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFetchers  = 4
	defaultBatchSize = 1000
)

// Source is the upstream the syncer reads from; *Client satisfies it.
type Source interface {
	States(ctx context.Context) ([]State, error)
	Municipalities(ctx context.Context, acronym string) ([]Municipality, error)
}

// Report summarizes one synchronization run.
type Report struct {
	States         int
	Municipalities int
	// Skipped lists the acronyms whose municipalities could not be fetched.
	Skipped []string
}

// Syncer refreshes the states and municipalities reference tables.
type Syncer struct {
	db        postgres.DB
	source    Source
	fetchers  int
	batchSize int
}

type Option func(*Syncer)

// WithFetchers bounds how many states are fetched concurrently.
func WithFetchers(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.fetchers = n
		}
	}
}

// WithBatchSize bounds the rows written per municipality statement.
func WithBatchSize(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func NewSyncer(db postgres.DB, source Source, opts ...Option) *Syncer {
	s := &Syncer{db: db, source: source, fetchers: defaultFetchers, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync fetches every state and its municipalities, then upserts them in one
// transaction keyed by the official codes. A state whose municipalities fail
// to download is still written and reported as skipped; failing to list the
// states writes nothing.
func (s *Syncer) Sync(ctx context.Context) (*Report, error) {
	log := logger.FromContext(ctx)
	states, err := s.source.States(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing states: %w", err)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: empty state list", ErrUpstream)
	}
	for _, st := range states {
		if st.ID <= 0 || len(st.Acronym) != 2 || st.Name == "" {
			return nil, fmt.Errorf("%w: malformed state %+v", ErrUpstream, st)
		}
	}
	byState, err := s.fetchMunicipalities(ctx, states)
	if err != nil {
		return nil, err
	}
	report := &Report{States: len(states)}
	for _, st := range states {
		list, ok := byState[st.ID]
		if !ok {
			report.Skipped = append(report.Skipped, st.Acronym)
			continue
		}
		report.Municipalities += len(list)
	}
	err = postgres.WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.upsertStates(ctx, tx, states); err != nil {
			return err
		}
		for _, st := range states {
			if err := s.upsertMunicipalities(ctx, tx, st, byState[st.ID]); err != nil {
				return fmt.Errorf("municipalities of %s: %w", st.Acronym, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrTransaction, err)
	}
	log.Info("Localities synchronized",
		"states", report.States,
		"municipalities", report.Municipalities,
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// fetchMunicipalities downloads each state's municipalities concurrently. A
// failed state is logged and left out of the result; only cancellation
// aborts the whole run.
func (s *Syncer) fetchMunicipalities(ctx context.Context, states []State) (map[int64][]Municipality, error) {
	log := logger.FromContext(ctx)
	var mu sync.Mutex
	out := make(map[int64][]Municipality, len(states))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchers)
	for _, st := range states {
		g.Go(func() error {
			list, err := s.source.Municipalities(gctx, st.Acronym)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("Skipping state municipalities", "state", st.Acronym, "error", err)
				return nil
			}
			mu.Lock()
			out[st.ID] = list
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching municipalities: %w", err)
	}
	return out, nil
}

func (s *Syncer) upsertStates(ctx context.Context, tx pgx.Tx, states []State) error {
	ins := squirrel.Insert("states").
		Columns("id", "acronym", "name").
		Suffix("ON CONFLICT (id) DO UPDATE SET acronym = EXCLUDED.acronym, name = EXCLUDED.name").
		PlaceholderFormat(squirrel.Dollar)
	for _, st := range states {
		ins = ins.Values(st.ID, st.Acronym, st.Name)
	}
	_, err := postgres.Exec(ctx, tx, postgres.PhaseInsert, "states", ins)
	return err
}

func (s *Syncer) upsertMunicipalities(ctx context.Context, tx pgx.Tx, st State, list []Municipality) error {
	for start := 0; start < len(list); start += s.batchSize {
		batch := list[start:min(start+s.batchSize, len(list))]
		ins := squirrel.Insert("municipalities").
			Columns("id", "name", "state_id").
			Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, state_id = EXCLUDED.state_id").
			PlaceholderFormat(squirrel.Dollar)
		for _, m := range batch {
			if m.ID <= 0 || m.Name == "" {
				return fmt.Errorf("%w: malformed municipality %+v", ErrUpstream, m)
			}
			ins = ins.Values(m.ID, m.Name, st.ID)
		}
		if _, err := postgres.Exec(ctx, tx, postgres.PhaseInsert, "municipalities", ins); err != nil {
			return err
		}
	}
	return nil
}
