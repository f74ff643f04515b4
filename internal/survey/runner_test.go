package survey

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/shots"
	"github.com/0x5844/seismig/internal/stack"
	"github.com/0x5844/seismig/internal/wave"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMigrator returns an image filled with the source index.
type fakeMigrator struct {
	unstable map[int]bool
	broken   int
}

func (f *fakeMigrator) Method() string { return "fake" }

func (f *fakeMigrator) Migrate(_ context.Context, g *shots.Gather) (*grid.Field, error) {
	if f.unstable[g.Source] {
		return nil, fmt.Errorf("forward pass: %w", &wave.InstabilityError{Step: 12})
	}
	if g.Source == f.broken {
		return nil, errors.New("disk on fire")
	}
	return grid.Filled(2, 2, float64(g.Source)), nil
}

func gathers(n int) Source {
	var gs []*shots.Gather
	for i := 0; i < n; i++ {
		gs = append(gs, &shots.Gather{Source: i})
	}
	return FromGathers(gs)
}

func TestRunStacksSurvivorsAndReportsFailures(t *testing.T) {
	m := &fakeMigrator{unstable: map[int]bool{1: true, 4: true}, broken: -1}
	acc := stack.NewAccumulator(2, 2)

	report, err := NewRunner(3, zerolog.Nop()).Run(context.Background(), []int{0, 1, 2, 3, 4, 5}, gathers(6), m, acc)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "fake", report.Method)
	assert.Equal(t, []int{0, 2, 3, 5}, report.Succeeded)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, 1, report.Failures[0].Source)
	assert.Equal(t, 4, report.Failures[1].Source)
	assert.True(t, errors.Is(report.Failures[0].Err, wave.ErrInstability))

	require.NotNil(t, report.Stacked)
	assert.InDelta(t, (0+2+3+5)/4.0, report.Stacked.At(1, 1), 1e-12)
	assert.Equal(t, 4, acc.Count())
}

func TestRunAbortsOnOtherErrors(t *testing.T) {
	m := &fakeMigrator{broken: 2}
	_, err := NewRunner(2, zerolog.Nop()).Run(context.Background(), []int{0, 1, 2, 3}, gathers(4), m, stack.NewAccumulator(2, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestRunAbortsOnMissingGather(t *testing.T) {
	m := &fakeMigrator{broken: -1}
	_, err := NewRunner(1, zerolog.Nop()).Run(context.Background(), []int{0, 9}, gathers(2), m, stack.NewAccumulator(2, 2))
	assert.Error(t, err)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(2, zerolog.Nop()).Run(ctx, []int{0, 1}, gathers(2), &fakeMigrator{broken: -1}, stack.NewAccumulator(2, 2))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAllShotsFailingLeavesNoStack(t *testing.T) {
	m := &fakeMigrator{unstable: map[int]bool{0: true}, broken: -1}
	report, err := NewRunner(1, zerolog.Nop()).Run(context.Background(), []int{0}, gathers(1), m, stack.NewAccumulator(2, 2))
	require.NoError(t, err)
	assert.Nil(t, report.Stacked)
	assert.Len(t, report.Failures, 1)
}
