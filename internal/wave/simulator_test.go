package wave

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/stability"
	"github.com/0x5844/seismig/internal/velocity"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMedium(t *testing.T, n int) (*velocity.Padded, stability.Axis) {
	t.Helper()
	m, err := velocity.Layered(n, n, 3000, 24, 24, velocity.Layer{Top: n / 2, Bottom: n/2 + 2, Velocity: 4000})
	require.NoError(t, err)
	p, err := m.Pad(velocity.DefaultBorder)
	require.NoError(t, err)
	axis, err := stability.PlanModel(m, 0)
	require.NoError(t, err)
	return p, axis
}

func TestRickerPeakAndSupport(t *testing.T) {
	r := Ricker{Peak: 10}
	assert.InDelta(t, 0.1, r.Delay(), 1e-12)
	assert.InDelta(t, 1.0, r.At(0.1), 1e-12)
	assert.Less(t, math.Abs(r.At(0)), 1e-3)

	axis := stability.Axis{DT: 0.001, NT: 1000}
	s := r.Samples(axis)
	assert.InDelta(t, 201, len(s), 1)
	assert.InDelta(t, 1.0, s[100], 1e-12)

	short := r.Samples(stability.Axis{DT: 0.001, NT: 50})
	assert.Len(t, short, 50)
}

func TestShotIsBitIdentical(t *testing.T) {
	p, axis := testMedium(t, 30)
	sim := NewSimulator(DefaultConfig(), zerolog.Nop())

	a, err := sim.Shot(context.Background(), TrueMedium(p), axis, 15, false)
	require.NoError(t, err)
	b, err := sim.Shot(context.Background(), TrueMedium(p), axis, 15, false)
	require.NoError(t, err)

	require.Equal(t, a.Record.Data, b.Record.Data)
	assert.Nil(t, a.Snapshots)
	assert.Equal(t, 30, a.Record.Receivers)
	assert.Equal(t, axis.NT, a.Record.NT)
	assert.Greater(t, a.Record.MaxAbs(), 0.0)
}

func TestShotAtDomainEdgeStaysFinite(t *testing.T) {
	p, axis := testMedium(t, 30)
	sim := NewSimulator(DefaultConfig(), zerolog.Nop())

	for _, ix := range []int{0, 29} {
		res, err := sim.Shot(context.Background(), TrueMedium(p), axis, ix, false)
		require.NoError(t, err, "source at %d", ix)
		assert.True(t, res.Record.Finite())
		assert.Greater(t, res.Record.MaxAbs(), 0.0)
	}

	_, err := sim.Shot(context.Background(), TrueMedium(p), axis, 30, false)
	assert.Error(t, err)
}

func TestStabilityViolationIsReported(t *testing.T) {
	p, axis := testMedium(t, 30)
	sim := NewSimulator(DefaultConfig(), zerolog.Nop())

	_, err := sim.Shot(context.Background(), TrueMedium(p), axis.Scaled(10), 15, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInstability))

	var ie *InstabilityError
	require.True(t, errors.As(err, &ie))
	assert.Less(t, ie.Step, axis.NT)
}

func TestShotRecordsSnapshots(t *testing.T) {
	p, axis := testMedium(t, 20)
	sim := NewSimulator(DefaultConfig(), zerolog.Nop())

	res, err := sim.Shot(context.Background(), BackgroundMedium(p), axis, 10, true)
	require.NoError(t, err)
	require.NotNil(t, res.Snapshots)
	assert.Equal(t, axis.NT, res.Snapshots.Len())

	last, ok := res.Snapshots.At(axis.NT - 1)
	require.True(t, ok)
	assert.Equal(t, p.Background.NZ, last.NZ)
	assert.Equal(t, p.Background.NX, last.NX)

	// The surface record is row 0 of each snapshot, shifted by the border.
	mid := axis.NT / 3
	snap, ok := res.Snapshots.At(mid)
	require.True(t, ok)
	assert.Equal(t, res.Record.At(4, mid), snap.At(0, 4+p.Border))
}

func TestObserversSeeEverySelectedSample(t *testing.T) {
	p, axis := testMedium(t, 20)
	sim := NewSimulator(DefaultConfig(), zerolog.Nop())
	src := PointSource{IZ: 0, IX: p.Border + 10, Wavelet: sim.Wavelet().Samples(axis)}

	var seen []int
	obs := ObserverFunc(func(sample int, f *grid.Field) {
		seen = append(seen, sample)
		assert.Equal(t, p.True.NZ, f.NZ)
	})
	_, err := sim.Simulate(context.Background(), TrueMedium(p), axis, src, RunOptions{
		Observers:    []Observer{obs},
		ObserveEvery: 50,
	})
	require.NoError(t, err)
	require.NotEmpty(t, seen)
	assert.Equal(t, 0, seen[0])
	for i := 1; i < len(seen); i++ {
		assert.Equal(t, seen[i-1]+50, seen[i])
	}
}

func TestReverseRunIndexesPhysicalTime(t *testing.T) {
	p, axis := testMedium(t, 20)
	sim := NewSimulator(DefaultConfig(), zerolog.Nop())

	data := NewRecord(20, axis.NT)
	data.Data[5*axis.NT+axis.NT-1] = 1 // last sample of receiver 5

	var order []int
	vol := NewDecimatedVolume(axis.NT, EveryNth(100))
	res, err := sim.Simulate(context.Background(), BackgroundMedium(p), axis,
		LineSource{IZ: 0, X0: p.Border, Data: data},
		RunOptions{
			Sink:         vol,
			Reverse:      true,
			ObserveEvery: 100,
			Observers: []Observer{ObserverFunc(func(sample int, _ *grid.Field) {
				order = append(order, sample)
			})},
		})
	require.NoError(t, err)

	require.NotEmpty(t, order)
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i], order[i-1], "reverse runs visit samples backwards")
	}
	assert.NotEqual(t, 0.0, res.Record.At(5, axis.NT-1), "injection at the last sample lands on the first step")

	first, ok := vol.At(0)
	require.True(t, ok)
	assert.Greater(t, math.Abs(first.Max())+math.Abs(first.Min()), 0.0)
	_, ok = vol.At(1)
	assert.False(t, ok)
	assert.Equal(t, (axis.NT-1)/100+1, vol.Kept())
}

func TestSpongeAbsorbsBoundaryReflections(t *testing.T) {
	m, err := velocity.Layered(30, 30, 3000, 24, 24)
	require.NoError(t, err)
	p, err := m.Pad(velocity.DefaultBorder)
	require.NoError(t, err)
	axis, err := stability.PlanModel(m, 0)
	require.NoError(t, err)
	axis.NT *= 2

	lateEnergy := func(strength float64) float64 {
		cfg := DefaultConfig()
		cfg.SpongeStrength = strength
		res, err := NewSimulator(cfg, zerolog.Nop()).Shot(context.Background(), TrueMedium(p), axis, 15, false)
		require.NoError(t, err)
		var e float64
		for r := 0; r < res.Record.Receivers; r++ {
			tr := res.Record.Trace(r)
			for _, v := range tr[axis.NT/2:] {
				e += v * v
			}
		}
		return e
	}

	absorbed := lateEnergy(DefaultSpongeStrength)
	reflected := lateEnergy(1e-9)
	assert.Less(t, absorbed, 0.5*reflected)
}

func TestStatsAccumulate(t *testing.T) {
	p, axis := testMedium(t, 20)
	sim := NewSimulator(DefaultConfig(), zerolog.Nop())
	_, err := sim.Shot(context.Background(), TrueMedium(p), axis, 3, false)
	require.NoError(t, err)

	steps, runs, _, _ := sim.Stats()
	assert.Equal(t, int64(axis.NT), steps)
	assert.Equal(t, int64(1), runs)
}

func TestCancelledContextStopsRun(t *testing.T) {
	p, axis := testMedium(t, 20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulator(DefaultConfig(), zerolog.Nop()).Shot(ctx, TrueMedium(p), axis, 3, false)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRecordSub(t *testing.T) {
	a := NewRecord(2, 3)
	b := NewRecord(2, 3)
	for i := range a.Data {
		a.Data[i] = float64(i) * 1.5
		b.Data[i] = float64(i) * 0.25
	}
	d, err := a.Sub(b)
	require.NoError(t, err)
	for i := range d.Data {
		assert.Equal(t, a.Data[i]-b.Data[i], d.Data[i])
	}

	_, err = a.Sub(NewRecord(3, 3))
	assert.Error(t, err)
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("fd6")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Halo())

	s, err = ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, "FD4", s.Name)

	_, err = ParseScheme("FD8")
	assert.Error(t, err)
}
