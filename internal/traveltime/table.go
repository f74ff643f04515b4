package traveltime

import (
	"context"
	"fmt"
	"sync"

	"github.com/0x5844/seismig/internal/grid"
	"golang.org/x/sync/errgroup"
)

// Table caches the travel-time field of every surface position of one
// background model. Each position is solved at most once, on first use, and
// the result is shared by every caller. Sources and receivers both sit on the
// surface, so one table serves both legs of a Kirchhoff sum.
type Table struct {
	solver     *Solver
	background *grid.Field
	depth      int

	entries []entry
}

type entry struct {
	once  sync.Once
	field *grid.Field
	err   error
}

// NewTable prepares a lazily filled table for sources on row depth of the
// unpadded background field.
func NewTable(solver *Solver, background *grid.Field, depth int) *Table {
	return &Table{
		solver:     solver,
		background: background,
		depth:      depth,
		entries:    make([]entry, background.NX),
	}
}

// Len is the number of surface positions.
func (t *Table) Len() int { return len(t.entries) }

// Shape is the shape of every travel-time field.
func (t *Table) Shape() (nz, nx int) { return t.background.NZ, t.background.NX }

// Get returns the travel-time field for surface position ix. The returned
// field is shared and must not be modified.
func (t *Table) Get(ix int) (*grid.Field, error) {
	if ix < 0 || ix >= len(t.entries) {
		return nil, fmt.Errorf("%w: surface position %d of %d", ErrSource, ix, len(t.entries))
	}
	e := &t.entries[ix]
	e.once.Do(func() {
		e.field, e.err = t.solver.Solve(t.background, t.depth, ix)
	})
	return e.field, e.err
}

// Volume solves every surface position with at most workers goroutines and
// returns the fields indexed by source. workers < 1 means one per position.
func (t *Table) Volume(ctx context.Context, workers int) (grid.Volume, error) {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	vol := make(grid.Volume, len(t.entries))
	for ix := range t.entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := t.Get(ix)
			if err != nil {
				return err
			}
			vol[ix] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vol, nil
}
