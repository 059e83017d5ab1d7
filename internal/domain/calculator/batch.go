package calculator

import (
	"context"
	"errors"
	"runtime"

	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/okian/coachplan/pkg/logger"
	"github.com/okian/coachplan/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Batch is the outcome of processing many rows: the computed sessions for
// every valid row, in input order, next to the errors of the invalid ones.
type Batch struct {
	RuleVersion string
	Sessions    []model.Session
	Errors      []*ValidationError
}

type processOptions struct {
	parallelism int
	logger      logger.Logger
}

// Option applies a configuration option to Process.
type Option func(*processOptions)

// WithParallelism bounds the number of goroutines computing sessions.
func WithParallelism(n int) Option {
	return func(o *processOptions) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithLogger sets the logger used to report computation faults.
func WithLogger(l logger.Logger) Option {
	return func(o *processOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Process validates every row, then computes the valid ones in parallel.
// Validation problems never stop the batch; a computation fault does, since
// it means the rule table and validation disagree.
func Process(ctx context.Context, t *rules.Table, inputs []model.SessionInput, opts ...Option) (Batch, error) {
	o := processOptions{
		parallelism: runtime.NumCPU(),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	batch := Batch{RuleVersion: t.Version()}
	valid := make([]int, 0, len(inputs))
	for i, in := range inputs {
		errs := Validate(t, in)
		if len(errs) == 0 {
			valid = append(valid, i)
			continue
		}
		for _, err := range errs {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Row = i + 1
				batch.Errors = append(batch.Errors, ve)
			}
		}
	}
	metrics.RecordValidationErrors(len(batch.Errors))

	out := make([]model.Session, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for slot, idx := range valid {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := Compute(t, inputs[idx])
			if err != nil {
				return err
			}
			out[slot] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrComputationFault) {
			metrics.RecordComputationFault()
			o.logger.Error(ctx, "computation fault: rule table and validation disagree",
				logger.String("rule_version", t.Version()),
				logger.Error(err),
			)
		}
		return Batch{}, err
	}

	batch.Sessions = out
	metrics.RecordSessionsComputed(len(out))
	return batch, nil
}

func isRangeNotFound(err error) bool { return errors.Is(err, ErrRangeNotFound) }
