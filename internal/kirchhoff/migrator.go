// Package kirchhoff images a shot by diffraction summation: every image point
// collects the recorded amplitude at the two-way travel time from the source
// to the point and back to each receiver.
package kirchhoff

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/shots"
	"github.com/0x5844/seismig/internal/stability"
	"github.com/0x5844/seismig/internal/traveltime"
	"github.com/rs/zerolog"
)

const Method = "kirchhoff"

// Config controls the aperture. Angles are measured from the vertical, per
// leg, in degrees. Inside ApertureDeg a leg has weight 1; beyond it the
// weight falls off as exp(-Taper·(θ-ApertureDeg)²). Contributions whose
// combined weight drops below MinWeight are skipped and counted.
type Config struct {
	ApertureDeg float64
	Taper       float64
	MinWeight   float64
	// Workers bounds the travel-time solves run in parallel.
	Workers int
}

func DefaultConfig() Config {
	return Config{ApertureDeg: 60, Taper: 0.02, MinWeight: 1e-3}
}

type Migrator struct {
	cfg    Config
	table  *traveltime.Table
	axis   stability.Axis
	delay  float64
	legW   *grid.Field // weight by (depth, lateral distance in cells)
	logger zerolog.Logger

	excluded atomic.Int64
}

// New builds a migrator over a travel-time table of the background model.
// delay is the time of the source wavelet peak; it is added to every travel
// time so the image is not shifted by the pulse onset.
func New(table *traveltime.Table, axis stability.Axis, delay, dx, dz float64, cfg Config, logger zerolog.Logger) *Migrator {
	nz, nx := table.Shape()
	legW := grid.New(nz, nx)
	for iz := 0; iz < nz; iz++ {
		for d := 0; d < nx; d++ {
			theta := math.Atan2(float64(d)*dx, float64(iz)*dz) * 180 / math.Pi
			w := 1.0
			if over := theta - cfg.ApertureDeg; over > 0 {
				w = math.Exp(-cfg.Taper * over * over)
			}
			legW.Set(iz, d, w)
		}
	}
	return &Migrator{cfg: cfg, table: table, axis: axis, delay: delay, legW: legW, logger: logger}
}

func (m *Migrator) Method() string { return Method }

// Excluded is the total number of contributions dropped by the aperture.
func (m *Migrator) Excluded() int64 { return m.excluded.Load() }

// Migrate images the scattered record of g. The image has the shape of the
// unpadded model.
func (m *Migrator) Migrate(ctx context.Context, g *shots.Gather) (*grid.Field, error) {
	data := g.Scattered
	nz, nx := m.table.Shape()
	if data.Receivers != nx {
		return nil, fmt.Errorf("kirchhoff: record has %d receivers, model has %d columns", data.Receivers, nx)
	}
	if g.Source < 0 || g.Source >= nx {
		return nil, fmt.Errorf("kirchhoff: source %d outside model", g.Source)
	}
	vol, err := m.table.Volume(ctx, m.cfg.Workers)
	if err != nil {
		return nil, err
	}

	ts := vol[g.Source]
	img := grid.New(nz, nx)
	dt, nt := m.axis.DT, min(m.axis.NT, data.NT)
	var excluded int64
	for r := 0; r < nx; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr := vol[r]
		trace := data.Trace(r)
		for iz := 0; iz < nz; iz++ {
			row := iz * nx
			for ix := 0; ix < nx; ix++ {
				w := m.legW.At(iz, absInt(ix-g.Source)) * m.legW.At(iz, absInt(ix-r))
				if w < m.cfg.MinWeight {
					excluded++
					continue
				}
				it := int(math.Round((ts.Data[row+ix] + tr.Data[row+ix] + m.delay) / dt))
				if it < 0 || it >= nt {
					continue
				}
				img.Data[row+ix] += w * trace[it]
			}
		}
	}

	m.excluded.Add(excluded)
	if excluded > 0 {
		m.logger.Debug().
			Int("source", g.Source).
			Int64("excluded", excluded).
			Msg("contributions outside aperture")
	}
	return img, nil
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
