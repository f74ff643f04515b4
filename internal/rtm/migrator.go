// Package rtm implements reverse-time migration: the source wavefield is
// propagated forward through the background model, the scattered record is
// propagated backward from the receiver line, and the image is their
// zero-lag cross-correlation.
package rtm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/shots"
	"github.com/0x5844/seismig/internal/stability"
	"github.com/0x5844/seismig/internal/velocity"
	"github.com/0x5844/seismig/internal/wave"
	"github.com/rs/zerolog"
)

const Method = "rtm"

type Config struct {
	// Stride decimates the imaging condition in time.
	Stride int
	// Cutoff excludes samples at or after this time (s).
	Cutoff float64
	// Normalize divides the image by Σ F² + Epsilon·max(Σ F²).
	Normalize bool
	Epsilon   float64
}

func DefaultConfig() Config {
	return Config{Stride: 10, Cutoff: 0.9, Epsilon: 1e-3}
}

// Backing allocates the snapshot volumes of one shot. keep is the imaging
// selection; a backing may retain more samples than it asks for.
type Backing interface {
	NewVolume(nt int, keep func(sample int) bool) (wave.Volume, error)
}

// DenseBacking keeps every time sample in memory.
type DenseBacking struct{}

func (DenseBacking) NewVolume(nt int, _ func(int) bool) (wave.Volume, error) {
	return wave.NewDenseVolume(nt), nil
}

// DecimatedBacking keeps only the selected samples in memory.
type DecimatedBacking struct{}

func (DecimatedBacking) NewVolume(nt int, keep func(int) bool) (wave.Volume, error) {
	return wave.NewDecimatedVolume(nt, keep), nil
}

type Migrator struct {
	sim     *wave.Simulator
	model   *velocity.Padded
	axis    stability.Axis
	cfg     Config
	backing Backing
	logger  zerolog.Logger
}

// New returns a migrator over the padded background of model. A nil backing
// means DecimatedBacking.
func New(sim *wave.Simulator, model *velocity.Padded, axis stability.Axis, cfg Config, backing Backing, logger zerolog.Logger) *Migrator {
	if backing == nil {
		backing = DecimatedBacking{}
	}
	if cfg.Stride < 1 {
		cfg.Stride = 1
	}
	return &Migrator{sim: sim, model: model, axis: axis, cfg: cfg, backing: backing, logger: logger}
}

func (m *Migrator) Method() string { return Method }

// Migrate images the scattered record of g. The image is cropped to the
// unpadded model.
func (m *Migrator) Migrate(ctx context.Context, g *shots.Gather) (*grid.Field, error) {
	c, err := m.Correlate(ctx, g)
	if err != nil {
		return nil, err
	}
	img := c.Image
	if m.cfg.Normalize {
		img = c.Normalized(m.cfg.Epsilon)
	}
	return m.model.Crop(img), nil
}

// Correlate runs both passes and returns the uncropped correlation.
func (m *Migrator) Correlate(ctx context.Context, g *shots.Gather) (*Correlation, error) {
	medium := wave.BackgroundMedium(m.model)
	if g.Source < 0 || g.Source >= medium.Receivers() {
		return nil, fmt.Errorf("rtm: source %d outside model", g.Source)
	}
	if g.Scattered.Receivers != medium.Receivers() || g.Scattered.NT != m.axis.NT {
		return nil, fmt.Errorf("rtm: record %dx%d does not match %d receivers x %d samples",
			g.Scattered.Receivers, g.Scattered.NT, medium.Receivers(), m.axis.NT)
	}
	sel := NewSelection(m.axis, m.cfg.Stride, m.cfg.Cutoff)
	start := time.Now()

	fwd, err := m.backing.NewVolume(m.axis.NT, sel.Keeps)
	if err != nil {
		return nil, err
	}
	defer release(fwd)
	cfg := m.sim.Config()
	src := wave.PointSource{
		IZ:      cfg.SourceDepth,
		IX:      medium.Column(g.Source),
		Wavelet: m.sim.Wavelet().Samples(m.axis),
	}
	if _, err := m.sim.Simulate(ctx, medium, m.axis, src, wave.RunOptions{Sink: fwd}); err != nil {
		return nil, fmt.Errorf("rtm: forward pass: %w", err)
	}

	bwd, err := m.backing.NewVolume(m.axis.NT, sel.Keeps)
	if err != nil {
		return nil, err
	}
	defer release(bwd)
	rec := wave.LineSource{IZ: cfg.ReceiverDepth, X0: m.model.Border, Data: g.Scattered}
	if _, err := m.sim.Simulate(ctx, medium, m.axis, rec, wave.RunOptions{Sink: bwd, Reverse: true}); err != nil {
		return nil, fmt.Errorf("rtm: backward pass: %w", err)
	}

	c, err := Correlate(fwd, bwd, sel, medium.Velocity.NZ, medium.Velocity.NX)
	if err != nil {
		return nil, err
	}
	if c.Samples == 0 {
		m.logger.Warn().Int("source", g.Source).Float64("cutoff", m.cfg.Cutoff).Msg("no samples below cutoff")
	}
	m.logger.Debug().
		Int("source", g.Source).
		Int("samples", c.Samples).
		Dur("elapsed", time.Since(start)).
		Msg("rtm shot correlated")
	return c, nil
}

func release(v wave.Volume) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
