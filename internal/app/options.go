package service

import (
	"time"

	"github.com/okian/coachplan/internal/adapters/repository"
	"github.com/okian/coachplan/internal/domain/optimizer"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of plan workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the plan queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many plan fingerprints are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCalcParallelism bounds the calculator fan-out and concurrent horizons.
func WithCalcParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.calcParallelism = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRuleTable activates t instead of the built-in table.
func WithRuleTable(t *rules.Table) Option {
	return func(s *Service) {
		if t != nil {
			s.registry = rules.NewRegistry(t)
		}
	}
}

// WithRulesPath loads the rule table from a YAML file on Start.
func WithRulesPath(path string) Option {
	return func(s *Service) {
		s.rulesPath = path
	}
}

// WithStore uses store for plan history. The service closes it on Stop.
func WithStore(store repository.PlanStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithDataDir keeps plan history in a pebble database under dir.
func WithDataDir(dir string) Option {
	return func(s *Service) {
		s.dataDir = dir
	}
}

// WithSolverOptions applies opts to every solver the service creates.
func WithSolverOptions(opts ...optimizer.Option) Option {
	return func(s *Service) {
		s.solverOpts = append(s.solverOpts, opts...)
	}
}

// WithClock sets the time source for plan timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
