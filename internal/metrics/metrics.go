package metrics

import (
	"context"

	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/logger"
	"github.com/google/uuid"
)

type service struct {
	repo  Repository
	cfg   Config
	runID string
}

// No-op implementation
type noopCollector struct{}

// NewService returns a collector writing to the sqlite history, or a
// no-op collector when disabled. Every snapshot recorded through the
// returned collector is tagged with one id per daemon run.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op collector
	if !cfg.Enabled {
		log.Debug().Msg("Transition history disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create metrics repository")
		return nil, err
	}

	s := &service{
		repo:  repo,
		cfg:   cfg,
		runID: uuid.NewString(),
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Str("run_id", s.runID).
		Msg("Metrics service initialized successfully")

	return s, nil
}

func (s *service) Record(ctx context.Context, snapshot *TransitionSnapshot) error {
	errFactory := errors.New()

	if snapshot == nil {
		return errFactory.New(ErrInvalidMetrics)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if snapshot.RunID == "" {
			snapshot.RunID = s.runID
		}
		if err := s.repo.Record(snapshot); err != nil {
			return errFactory.Wrap(ErrMetricsCollection, err)
		}
	}

	return nil
}

func (s *service) Recent(limit int) ([]TransitionSnapshot, error) {
	return s.repo.Recent(limit)
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}
	return nil
}

// No-op implementation
func (*noopCollector) Record(_ context.Context, _ *TransitionSnapshot) error {
	return nil
}

func (*noopCollector) Recent(_ int) ([]TransitionSnapshot, error) {
	return nil, nil
}

func (*noopCollector) Close() error {
	return nil
}
