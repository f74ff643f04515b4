// Package survey migrates a set of shot gathers on a worker pool and stacks
// the resulting images.
package survey

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/observability"
	"github.com/0x5844/seismig/internal/shots"
	"github.com/0x5844/seismig/internal/stack"
	"github.com/0x5844/seismig/internal/wave"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Migrator images one gather. Implementations must be safe for concurrent
// use.
type Migrator interface {
	Method() string
	Migrate(ctx context.Context, g *shots.Gather) (*grid.Field, error)
}

// Source yields the gather of a source index, typically by simulating it or
// reading it back from a store.
type Source func(ctx context.Context, ix int) (*shots.Gather, error)

// FromGathers serves an already generated set of gathers.
func FromGathers(gathers []*shots.Gather) Source {
	byIndex := make(map[int]*shots.Gather, len(gathers))
	for _, g := range gathers {
		if g != nil {
			byIndex[g.Source] = g
		}
	}
	return func(_ context.Context, ix int) (*shots.Gather, error) {
		g, ok := byIndex[ix]
		if !ok {
			return nil, fmt.Errorf("survey: no gather for source %d", ix)
		}
		return g, nil
	}
}

// Report summarises a run.
type Report struct {
	RunID     string
	Method    string
	Stacked   *grid.Field
	Succeeded []int
	Failures  []shots.Failure
	Elapsed   time.Duration
}

type Runner struct {
	workers int
	logger  zerolog.Logger
}

// NewRunner returns a runner with at most workers shots in flight; workers
// < 1 means one.
func NewRunner(workers int, logger zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{workers: workers, logger: logger}
}

// Run migrates every source and stacks the images into acc. A shot whose
// simulation diverges is logged, reported and left out of the stack. Any
// other error, including cancellation, stops the run. The context is
// checked before each shot starts.
func (r *Runner) Run(ctx context.Context, sources []int, src Source, m Migrator, acc *stack.Accumulator) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Method: m.Method()}
	log := r.logger.With().Str("run_id", report.RunID).Str("method", m.Method()).Logger()
	start := time.Now()
	log.Info().Int("shots", len(sources)).Int("workers", r.workers).Msg("survey started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	var mu sync.Mutex
	for _, ix := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shotStart := time.Now()
			img, err := r.shot(gctx, ix, src, m)
			elapsed := time.Since(shotStart)
			if errors.Is(err, wave.ErrInstability) {
				observability.RecordShot(m.Method(), "unstable", elapsed)
				log.Warn().Err(err).Int("source", ix).Msg("shot skipped")
				mu.Lock()
				report.Failures = append(report.Failures, shots.Failure{Source: ix, Err: err})
				mu.Unlock()
				return nil
			}
			if err != nil {
				observability.RecordShot(m.Method(), "error", elapsed)
				return fmt.Errorf("survey: source %d: %w", ix, err)
			}
			if err := acc.Add(img); err != nil {
				return fmt.Errorf("survey: source %d: %w", ix, err)
			}
			observability.RecordShot(m.Method(), "ok", elapsed)
			log.Debug().Int("source", ix).Dur("elapsed", elapsed).Msg("shot stacked")
			mu.Lock()
			report.Succeeded = append(report.Succeeded, ix)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("survey aborted")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.Sort(report.Succeeded)
	slices.SortFunc(report.Failures, func(a, b shots.Failure) int { return cmp.Compare(a.Source, b.Source) })
	report.Elapsed = time.Since(start)

	if acc.Count() > 0 {
		stacked, err := acc.Mean()
		if err != nil {
			return nil, err
		}
		report.Stacked = stacked
	}
	log.Info().
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failures)).
		Dur("elapsed", report.Elapsed).
		Msg("survey finished")
	return report, nil
}

func (r *Runner) shot(ctx context.Context, ix int, src Source, m Migrator) (*grid.Field, error) {
	gather, err := src(ctx, ix)
	if err != nil {
		return nil, err
	}
	return m.Migrate(ctx, gather)
}
