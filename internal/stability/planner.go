// Package stability derives the time axis of a finite-difference run from
// the velocity field and the grid spacing.
package stability

import (
	"fmt"
	"math"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/velocity"
)

// DefaultCourant is the safety factor C in dt = C·dz/(v_max·√2).
const DefaultCourant = 0.2

// Axis is the sampled time axis of a simulation.
type Axis struct {
	DT float64
	NT int
}

// Times returns t_i = i·dt for i in [0, nt).
func (a Axis) Times() []float64 {
	t := make([]float64, a.NT)
	for i := range t {
		t[i] = float64(i) * a.DT
	}
	return t
}

// Time returns t_i for a single sample.
func (a Axis) Time(i int) float64 {
	return float64(i) * a.DT
}

// Duration is the physical length of the axis.
func (a Axis) Duration() float64 {
	return float64(a.NT-1) * a.DT
}

// Scaled returns an axis with the same sample count and dt multiplied by k.
func (a Axis) Scaled(k float64) Axis {
	return Axis{DT: a.DT * k, NT: a.NT}
}

// Plan computes the time axis for a velocity field with spacing (dx, dz).
// courant <= 0 selects DefaultCourant.
func Plan(v *grid.Field, dx, dz, courant float64) (Axis, error) {
	if courant <= 0 {
		courant = DefaultCourant
	}
	if v.NZ == 0 || v.NX == 0 {
		return Axis{}, fmt.Errorf("%w: empty velocity field", velocity.ErrDegenerateModel)
	}
	if err := velocity.CheckPositive("planning", v); err != nil {
		return Axis{}, err
	}
	vmin, vmax := v.Min(), v.Max()

	// min(dz/v) over the grid is dz/v_max for a uniform dz.
	dt := courant * (dz / vmax) / math.Sqrt2
	if !(dt > 0) || math.IsInf(dt, 0) {
		return Axis{}, fmt.Errorf("%w: time step %g", velocity.ErrDegenerateModel, dt)
	}

	// Travel to the farthest corner and back at the slowest velocity.
	nx := float64(v.NX)
	reach := math.Sqrt((dx*nx)*(dx*nx) + (dz*nx)*(dz*nx))
	nt := int(math.Round(reach*(2/(vmin*dt)))) + 1
	return Axis{DT: dt, NT: nt}, nil
}

// PlanModel returns the axis that is stable for both fields of m: the smaller
// dt and the larger sample count of the two plans.
func PlanModel(m *velocity.Model, courant float64) (Axis, error) {
	axis, err := Plan(m.True, m.DX, m.DZ, courant)
	if err != nil {
		return Axis{}, err
	}
	back, err := Plan(m.Background, m.DX, m.DZ, courant)
	if err != nil {
		return Axis{}, err
	}
	if back.DT < axis.DT {
		axis.DT = back.DT
	}
	if back.NT > axis.NT {
		axis.NT = back.NT
	}
	return axis, nil
}
