package workout

import (
	"context"
	"log/slog"

	"github.com/myrjola/kuntoapp/internal/catalog"
	"github.com/myrjola/kuntoapp/internal/errors"
	"golang.org/x/sync/errgroup"
)

// Store combines everything a session needs from persistence.
type Store interface {
	DifficultyStore
	ReportSink
	CompletedThisWeek(ctx context.Context) (int, error)
}

// Service ties the catalog, the difficulty controller and persistence into
// session lifecycles.
type Service struct {
	logger  *slog.Logger
	catalog *catalog.Catalog
	store   Store
}

func NewService(cat *catalog.Catalog, store Store, logger *slog.Logger) *Service {
	return &Service{
		logger:  logger,
		catalog: cat,
		store:   store,
	}
}

// StartSession runs the Loading phase: difficulty state and the weekly
// completion count load concurrently, then the generator assembles the
// exercise list. An empty candidate pool is a user-visible condition, not a
// failure: the session lands in the Error state with a message and a nil
// error. Infrastructure failures return an error and no session.
func (s *Service) StartSession(ctx context.Context, params GenerationParams) (*Session, error) {
	session := newSession(nil, s.store, params.WeightKg, s.logger)

	var (
		controller *Controller
		completed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		controller, err = NewController(gctx, s.store, params.Experience, s.logger)
		if err != nil {
			return errors.Wrap(err, "initialise difficulty controller")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		completed, err = s.store.CompletedThisWeek(gctx)
		if err != nil {
			return errors.Wrap(err, "count completed sessions")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	session.controller = controller
	params.CompletedThisWeek = completed

	generator := NewGenerator(s.catalog, controller, s.logger)
	exercises, err := generator.Generate(ctx, params)
	if err != nil {
		if errors.Is(err, ErrNoCandidates) {
			session.fail("no exercises match your equipment and preferences")
			return session, nil
		}
		return nil, errors.Wrap(err, "generate workout")
	}

	session.ready(exercises)
	return session, nil
}

// CompleteWeek is forwarded to the controller of a finished session when the
// weekly target was hit.
func (s *Service) CompleteWeek(ctx context.Context, session *Session) {
	session.controller.CompleteWeek(ctx)
}
