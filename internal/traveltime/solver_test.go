package traveltime

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStencilDirections(t *testing.T) {
	s := NewSolver(3, 24, 24)
	assert.Len(t, s.offsets, 32)
	for _, o := range s.offsets {
		assert.Equal(t, 1, gcd(abs(o.dz), abs(o.dx)))
	}

	assert.Len(t, NewSolver(2, 24, 24).offsets, 16)
	fallback := NewSolver(0, 24, 24)
	assert.Equal(t, DefaultRadius, fallback.Radius())
	assert.Len(t, fallback.offsets, 32)
}

func TestHomogeneousMatchesStraightRays(t *testing.T) {
	v := grid.Filled(30, 41, 3000)
	s := NewSolver(DefaultRadius, 24, 24)
	tt, err := s.Solve(v, 0, 20)
	require.NoError(t, err)

	assert.Equal(t, 0.0, tt.At(0, 20))
	assert.InDelta(t, 0.08, tt.At(10, 20), 1e-9, "240 m straight down")
	assert.InDelta(t, math.Hypot(240, 240)/3000, tt.At(10, 30), 1e-9)

	for iz := 0; iz < tt.NZ; iz++ {
		for ix := 0; ix < tt.NX; ix++ {
			exact := math.Hypot(float64(iz)*24, float64(ix-20)*24) / 3000
			got := tt.At(iz, ix)
			assert.GreaterOrEqual(t, got, exact*(1-1e-12), "cell (%d,%d)", iz, ix)
			assert.LessOrEqual(t, got, exact*1.02+1e-12, "cell (%d,%d)", iz, ix)
		}
	}
}

func TestFastLayerShortensDeepArrivals(t *testing.T) {
	slow := grid.Filled(40, 20, 2000)
	fast := slow.Clone()
	for iz := 10; iz < 40; iz++ {
		for ix := 0; ix < 20; ix++ {
			fast.Set(iz, ix, 4000)
		}
	}
	s := NewSolver(DefaultRadius, 10, 10)
	a, err := s.Solve(slow, 0, 10)
	require.NoError(t, err)
	b, err := s.Solve(fast, 0, 10)
	require.NoError(t, err)

	assert.InDelta(t, a.At(5, 10), b.At(5, 10), 1e-12, "above the layer nothing changes")
	assert.Less(t, b.At(35, 10), a.At(35, 10))
}

func TestSolveIsDeterministic(t *testing.T) {
	v := grid.Filled(20, 20, 2500)
	for iz := 8; iz < 12; iz++ {
		for ix := 0; ix < 20; ix++ {
			v.Set(iz, ix, 3500+float64(ix))
		}
	}
	s := NewSolver(DefaultRadius, 12, 12)
	a, err := s.Solve(v, 0, 4)
	require.NoError(t, err)
	b, err := s.Solve(v, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestSolveRejectsBadInput(t *testing.T) {
	s := NewSolver(DefaultRadius, 24, 24)
	_, err := s.Solve(grid.Filled(5, 5, 3000), 0, 5)
	assert.True(t, errors.Is(err, ErrSource))

	v := grid.Filled(5, 5, 3000)
	v.Set(2, 2, 0)
	_, err = s.Solve(v, 0, 2)
	assert.Error(t, err)
}

func TestTableCachesAndFillsVolume(t *testing.T) {
	v := grid.Filled(12, 9, 3000)
	table := NewTable(NewSolver(DefaultRadius, 24, 24), v, 0)
	assert.Equal(t, 9, table.Len())

	first, err := table.Get(4)
	require.NoError(t, err)
	again, err := table.Get(4)
	require.NoError(t, err)
	assert.Same(t, first, again)

	vol, err := table.Volume(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, vol, 9)
	assert.Same(t, first, vol[4])
	for ix, f := range vol {
		assert.Equal(t, 0.0, f.At(0, ix))
	}

	_, err = table.Get(9)
	assert.True(t, errors.Is(err, ErrSource))
}

func TestTableVolumeHonoursCancellation(t *testing.T) {
	table := NewTable(NewSolver(DefaultRadius, 24, 24), grid.Filled(8, 8, 3000), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := table.Volume(ctx, 2)
	assert.True(t, errors.Is(err, context.Canceled))
}
