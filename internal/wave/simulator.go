// Package wave time-steps the 2-D constant-density acoustic wave equation on
// a padded velocity grid with an explicit leapfrog finite-difference scheme.
//
// The scheme is conditionally stable: the time axis must satisfy the bound
// computed by package stability. A run that produces a non-finite amplitude
// stops with an *InstabilityError.
package wave

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/observability"
	"github.com/0x5844/seismig/internal/stability"
	"github.com/rs/zerolog"
)

// DefaultSpongeStrength gives the Cerjan damping profile for a 20-cell border.
const DefaultSpongeStrength = 0.09

// ErrInstability reports a run whose amplitudes became NaN or ±Inf.
var ErrInstability = errors.New("wave: non-finite amplitude")

// InstabilityError records where a run diverged.
type InstabilityError struct {
	Step   int
	Sample int
	Time   float64
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("%v at step %d (sample %d, t=%.4fs)", ErrInstability, e.Step, e.Sample, e.Time)
}

func (e *InstabilityError) Unwrap() error { return ErrInstability }

// Config holds the numerical parameters of a Simulator. Zero fields take
// their defaults.
type Config struct {
	Scheme         Scheme
	PeakFrequency  float64
	SpongeStrength float64
	SourceDepth    int // padded row of the source
	ReceiverDepth  int // padded row of the receiver line
	CheckEvery     int // steps between context checks
}

func DefaultConfig() Config {
	return Config{
		Scheme:         FD4Standard,
		PeakFrequency:  DefaultPeakFrequency,
		SpongeStrength: DefaultSpongeStrength,
		CheckEvery:     64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Scheme.Coeffs) == 0 {
		c.Scheme = d.Scheme
	}
	if c.PeakFrequency <= 0 {
		c.PeakFrequency = d.PeakFrequency
	}
	if c.SpongeStrength <= 0 {
		c.SpongeStrength = d.SpongeStrength
	}
	if c.CheckEvery <= 0 {
		c.CheckEvery = d.CheckEvery
	}
	return c
}

// RunOptions selects what a run retains besides the surface record.
type RunOptions struct {
	// Sink retains snapshots; nil discards them.
	Sink SnapshotSink
	// Observers are called every ObserveEvery samples.
	Observers    []Observer
	ObserveEvery int
	// Reverse runs time backwards: step i is physical sample nt-1-i.
	// Injection, the record, the sink and the observers all see the
	// physical sample index.
	Reverse bool
}

// Result of a run.
type Result struct {
	Record    *Record
	Snapshots SnapshotSource
}

// Simulator runs finite-difference modelling. It holds no per-run state and
// is safe for concurrent use.
type Simulator struct {
	cfg    Config
	logger zerolog.Logger

	// Statistics
	stepCounter     int64
	runCounter      int64
	computationTime int64 // Nanoseconds
}

func NewSimulator(cfg Config, logger zerolog.Logger) *Simulator {
	return &Simulator{cfg: cfg.withDefaults(), logger: logger}
}

func (s *Simulator) Config() Config { return s.cfg }

// Wavelet is the source signature used by Shot.
func (s *Simulator) Wavelet() Ricker { return Ricker{Peak: s.cfg.PeakFrequency} }

// Shot fires the Ricker source at unpadded lateral index sourceIX and
// records the surface. With record set, every time sample is kept in a
// DenseVolume returned as Result.Snapshots.
func (s *Simulator) Shot(ctx context.Context, m Medium, axis stability.Axis, sourceIX int, record bool) (*Result, error) {
	if sourceIX < 0 || sourceIX >= m.Receivers() {
		return nil, fmt.Errorf("wave: source index %d outside 0..%d", sourceIX, m.Receivers()-1)
	}
	src := PointSource{
		IZ:      s.cfg.SourceDepth,
		IX:      m.Column(sourceIX),
		Wavelet: s.Wavelet().Samples(axis),
	}
	var opts RunOptions
	if record {
		opts.Sink = NewDenseVolume(axis.NT)
	}
	return s.Simulate(ctx, m, axis, src, opts)
}

// Simulate runs nt steps from a zero wavefield.
func (s *Simulator) Simulate(ctx context.Context, m Medium, axis stability.Axis, src Injector, opts RunOptions) (*Result, error) {
	if axis.NT <= 0 || !(axis.DT > 0) || math.IsInf(axis.DT, 0) {
		return nil, fmt.Errorf("wave: invalid time axis dt=%g nt=%d", axis.DT, axis.NT)
	}
	if m.Receivers() <= 0 || m.Velocity.NZ <= m.Border {
		return nil, fmt.Errorf("wave: medium %dx%d too small for border %d", m.Velocity.NZ, m.Velocity.NX, m.Border)
	}
	if s.cfg.ReceiverDepth >= m.Velocity.NZ || s.cfg.SourceDepth >= m.Velocity.NZ {
		return nil, fmt.Errorf("wave: source/receiver depth outside medium")
	}

	st := newState(m, axis.DT, s.cfg)
	rec := NewRecord(m.Receivers(), axis.NT)
	every := opts.ObserveEvery
	if every < 1 {
		every = 1
	}
	var frame *grid.Field
	if opts.Sink != nil || len(opts.Observers) > 0 {
		frame = grid.New(st.nz, st.nx)
	}

	start := time.Now()
	steps := 0
	defer func() {
		duration := time.Since(start)
		atomic.AddInt64(&s.stepCounter, int64(steps))
		atomic.AddInt64(&s.runCounter, 1)
		atomic.AddInt64(&s.computationTime, duration.Nanoseconds())
		observability.RecordSimulation(steps, duration)
	}()

	for step := 0; step < axis.NT; step++ {
		if step%s.cfg.CheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sample := step
		if opts.Reverse {
			sample = axis.NT - 1 - step
		}

		sum := st.advance()
		src.Inject(sample, st)
		sum += st.injected
		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			err := &InstabilityError{Step: step, Sample: sample, Time: axis.Time(sample)}
			s.logger.Debug().Err(err).Msg("wavefield diverged")
			return nil, err
		}
		st.absorb()
		st.rotate()
		steps++

		st.recordSurface(rec, sample)

		if frame == nil {
			continue
		}
		wantSink := opts.Sink != nil && opts.Sink.Retains(sample)
		wantObs := len(opts.Observers) > 0 && sample%every == 0
		if !wantSink && !wantObs {
			continue
		}
		st.copyCurrent(frame)
		if wantSink {
			if err := opts.Sink.Store(sample, frame); err != nil {
				return nil, fmt.Errorf("wave: store sample %d: %w", sample, err)
			}
		}
		if wantObs {
			for _, o := range opts.Observers {
				o.Observe(sample, frame)
			}
		}
	}

	res := &Result{Record: rec}
	if snaps, ok := opts.Sink.(SnapshotSource); ok {
		res.Snapshots = snaps
	}
	return res, nil
}

// Stats reports cumulative work done by this simulator.
func (s *Simulator) Stats() (steps, runs int64, compTime, avgStepTime time.Duration) {
	steps = atomic.LoadInt64(&s.stepCounter)
	runs = atomic.LoadInt64(&s.runCounter)
	compTime = time.Duration(atomic.LoadInt64(&s.computationTime))
	if steps > 0 {
		avgStepTime = compTime / time.Duration(steps)
	}
	return
}

// state is the triple-buffered wavefield of one run. Buffers carry a zero
// halo of Scheme.Halo() cells around the padded grid, so the stencil never
// needs bounds checks and reads zero outside every edge.
type state struct {
	nz, nx int // padded grid
	h      int // halo
	w      int // buffer row stride

	prev, curr, next []float64
	coef             []float64 // (v·dt)² per buffer cell
	c                []float64 // stencil, centre at c[h]
	invDX2, invDZ2   float64
	srcScale         float64

	spongeIdx []int
	spongeG   []float64

	injected float64

	recRow, recX0, recN int
}

func newState(m Medium, dt float64, cfg Config) *state {
	v := m.Velocity
	h := cfg.Scheme.Halo()
	w := v.NX + 2*h
	size := (v.NZ + 2*h) * w
	st := &state{
		nz: v.NZ, nx: v.NX, h: h, w: w,
		prev:     make([]float64, size),
		curr:     make([]float64, size),
		next:     make([]float64, size),
		coef:     make([]float64, size),
		c:        cfg.Scheme.Coeffs,
		invDX2:   1 / (m.DX * m.DX),
		invDZ2:   1 / (m.DZ * m.DZ),
		srcScale: 1 / (m.DX * m.DZ),
		recRow:   cfg.ReceiverDepth,
		recX0:    m.Border,
		recN:     m.Receivers(),
	}
	for iz := 0; iz < v.NZ; iz++ {
		row := v.Row(iz)
		base := st.index(iz, 0)
		for ix, vel := range row {
			st.coef[base+ix] = vel * vel * dt * dt
		}
	}
	st.buildSponge(m.Border, cfg.SpongeStrength)
	return st
}

func (s *state) index(iz, ix int) int {
	return (iz+s.h)*s.w + ix + s.h
}

// buildSponge precomputes damping factors for the border cells: bottom rows
// and both lateral strips. The factor falls off quadratically towards the
// outer edge, exp(-strength·ratio²).
func (s *state) buildSponge(border int, strength float64) {
	if border <= 0 {
		return
	}
	for iz := 0; iz < s.nz; iz++ {
		for ix := 0; ix < s.nx; ix++ {
			dist := border
			if d := s.nz - 1 - iz; d < dist {
				dist = d
			}
			if ix < dist {
				dist = ix
			}
			if d := s.nx - 1 - ix; d < dist {
				dist = d
			}
			if dist >= border {
				continue
			}
			ratio := float64(border-dist) / float64(border)
			s.spongeIdx = append(s.spongeIdx, s.index(iz, ix))
			s.spongeG = append(s.spongeG, math.Exp(-strength*ratio*ratio))
		}
	}
}

// advance computes next from curr and prev and returns the sum of the new
// amplitudes, which is non-finite as soon as any amplitude is.
func (s *state) advance() float64 {
	s.injected = 0
	var sum float64
	cur, prv, nxt, coef := s.curr, s.prev, s.next, s.coef
	w, h, c := s.w, s.h, s.c
	for iz := 0; iz < s.nz; iz++ {
		base := (iz+h)*w + h
		switch h {
		case 1:
			c0, c1 := c[1], c[2]
			for i := base; i < base+s.nx; i++ {
				u := cur[i]
				lx := c0*u + c1*(cur[i-1]+cur[i+1])
				lz := c0*u + c1*(cur[i-w]+cur[i+w])
				v := 2*u - prv[i] + coef[i]*(lx*s.invDX2+lz*s.invDZ2)
				nxt[i] = v
				sum += v
			}
		case 2:
			// 4th order scheme - unrolled for performance
			c0, c1, c2 := c[2], c[3], c[4]
			w2 := 2 * w
			for i := base; i < base+s.nx; i++ {
				u := cur[i]
				lx := c0*u + c1*(cur[i-1]+cur[i+1]) + c2*(cur[i-2]+cur[i+2])
				lz := c0*u + c1*(cur[i-w]+cur[i+w]) + c2*(cur[i-w2]+cur[i+w2])
				v := 2*u - prv[i] + coef[i]*(lx*s.invDX2+lz*s.invDZ2)
				nxt[i] = v
				sum += v
			}
		default:
			for i := base; i < base+s.nx; i++ {
				u := cur[i]
				lx := c[h] * u
				lz := c[h] * u
				for k := 1; k <= h; k++ {
					lx += c[h+k] * (cur[i-k] + cur[i+k])
					lz += c[h+k] * (cur[i-k*w] + cur[i+k*w])
				}
				v := 2*u - prv[i] + coef[i]*(lx*s.invDX2+lz*s.invDZ2)
				nxt[i] = v
				sum += v
			}
		}
	}
	return sum
}

// Add injects amp at padded cell (iz, ix) of the wavefield being computed,
// scaled by (v·dt)²/(dx·dz). Cells outside the grid are ignored.
func (s *state) Add(iz, ix int, amp float64) {
	if iz < 0 || iz >= s.nz || ix < 0 || ix >= s.nx {
		return
	}
	i := s.index(iz, ix)
	v := s.coef[i] * amp * s.srcScale
	s.next[i] += v
	s.injected += v
}

func (s *state) absorb() {
	for k, i := range s.spongeIdx {
		g := s.spongeG[k]
		s.curr[i] *= g
		s.next[i] *= g
	}
}

// rotate: previous <- current <- next <- previous. The halo of the recycled
// buffer is still zero; its interior is overwritten by the next advance.
func (s *state) rotate() {
	s.prev, s.curr, s.next = s.curr, s.next, s.prev
}

func (s *state) recordSurface(rec *Record, sample int) {
	base := s.index(s.recRow, s.recX0)
	for r := 0; r < s.recN; r++ {
		rec.Data[r*rec.NT+sample] = s.curr[base+r]
	}
}

func (s *state) copyCurrent(dst *grid.Field) {
	for iz := 0; iz < s.nz; iz++ {
		base := s.index(iz, 0)
		copy(dst.Row(iz), s.curr[base:base+s.nx])
	}
}
