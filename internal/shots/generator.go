// Package shots produces the surface records a migration consumes: for each
// source position the record over the true model, the record over the
// background model, and their difference.
package shots

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/0x5844/seismig/internal/stability"
	"github.com/0x5844/seismig/internal/velocity"
	"github.com/0x5844/seismig/internal/wave"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Gather is the record triple of one source. Scattered is always
// Observed − Background; it is only ever built by NewGather.
type Gather struct {
	Source     int
	Observed   *wave.Record
	Background *wave.Record
	Scattered  *wave.Record
}

// NewGather pairs the two records of a source and derives the scattered one.
func NewGather(source int, observed, background *wave.Record) (*Gather, error) {
	scattered, err := observed.Sub(background)
	if err != nil {
		return nil, err
	}
	return &Gather{Source: source, Observed: observed, Background: background, Scattered: scattered}, nil
}

// Sink persists gathers as they are produced.
type Sink interface {
	Put(g *Gather) error
}

// Failure is a source whose simulation diverged.
type Failure struct {
	Source int
	Err    error
}

func (f Failure) String() string { return fmt.Sprintf("source %d: %v", f.Source, f.Err) }

type Generator struct {
	sim    *wave.Simulator
	model  *velocity.Padded
	axis   stability.Axis
	logger zerolog.Logger
}

func NewGenerator(sim *wave.Simulator, model *velocity.Padded, axis stability.Axis, logger zerolog.Logger) *Generator {
	return &Generator{sim: sim, model: model, axis: axis, logger: logger}
}

// Generate simulates source position ix (unpadded) over both models.
func (g *Generator) Generate(ctx context.Context, ix int) (*Gather, error) {
	start := time.Now()
	observed, err := g.sim.Shot(ctx, wave.TrueMedium(g.model), g.axis, ix, false)
	if err != nil {
		return nil, fmt.Errorf("shots: source %d true model: %w", ix, err)
	}
	background, err := g.sim.Shot(ctx, wave.BackgroundMedium(g.model), g.axis, ix, false)
	if err != nil {
		return nil, fmt.Errorf("shots: source %d background model: %w", ix, err)
	}
	gather, err := NewGather(ix, observed.Record, background.Record)
	if err != nil {
		return nil, err
	}
	g.logger.Debug().
		Int("source", ix).
		Dur("elapsed", time.Since(start)).
		Float64("scattered_peak", gather.Scattered.MaxAbs()).
		Msg("shot generated")
	return gather, nil
}

// GenerateAll simulates every listed source on at most workers goroutines.
// Gathers come back in the order of sources. A source whose simulation
// diverges is logged, reported as a Failure and left nil; any other error
// stops the run. sink may be nil.
func (g *Generator) GenerateAll(ctx context.Context, sources []int, workers int, sink Sink) ([]*Gather, []Failure, error) {
	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	gathers := make([]*Gather, len(sources))
	var (
		mu       sync.Mutex
		failures []Failure
	)
	for i, ix := range sources {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			gather, err := g.Generate(ctx, ix)
			if errors.Is(err, wave.ErrInstability) {
				g.logger.Warn().Err(err).Int("source", ix).Msg("skipping unstable shot")
				mu.Lock()
				failures = append(failures, Failure{Source: ix, Err: err})
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}
			if sink != nil {
				if err := sink.Put(gather); err != nil {
					return fmt.Errorf("shots: persist source %d: %w", ix, err)
				}
			}
			gathers[i] = gather
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	slices.SortFunc(failures, func(a, b Failure) int { return cmp.Compare(a.Source, b.Source) })
	return gathers, failures, nil
}
