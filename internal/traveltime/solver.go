// Package traveltime computes first-arrival travel times from a surface
// source to every cell of a velocity grid.
//
// The solver is a shortest-path wavefront expansion: every cell is a graph
// node joined to the cells of a small stencil, and the edge cost is the
// segment length times the mean slowness sampled along it. The recorded time
// of a cell is the minimum over all paths through the graph.
package traveltime

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/0x5844/seismig/internal/grid"
)

// DefaultRadius gives 32 stencil directions, enough to keep the angular
// error of a homogeneous solve under 1.5%.
const DefaultRadius = 3

var ErrSource = errors.New("traveltime: source outside grid")

type offset struct {
	dz, dx int
	length float64      // metres
	taps   [][2]float64 // fractional (z, x) sample points along the segment
}

// Solver holds the precomputed stencil. It is immutable and safe for
// concurrent use.
type Solver struct {
	radius  int
	dx, dz  float64
	offsets []offset
}

// NewSolver builds the stencil for grid spacing (dx, dz). Offsets whose
// components share a divisor are dropped; the shorter parallel step covers
// them.
func NewSolver(radius int, dx, dz float64) *Solver {
	if radius < 1 {
		radius = DefaultRadius
	}
	s := &Solver{radius: radius, dx: dx, dz: dz}
	for oz := -radius; oz <= radius; oz++ {
		for ox := -radius; ox <= radius; ox++ {
			if (oz == 0 && ox == 0) || gcd(abs(oz), abs(ox)) != 1 {
				continue
			}
			n := max(abs(oz), abs(ox))
			taps := make([][2]float64, 0, 2*n+1)
			for k := 0; k <= 2*n; k++ {
				f := float64(k) / float64(2*n)
				taps = append(taps, [2]float64{f * float64(oz), f * float64(ox)})
			}
			s.offsets = append(s.offsets, offset{
				dz:     oz,
				dx:     ox,
				length: math.Hypot(float64(oz)*dz, float64(ox)*dx),
				taps:   taps,
			})
		}
	}
	return s
}

func (s *Solver) Radius() int { return s.radius }

// Solve returns first-arrival times from cell (srcZ, srcX) of the velocity
// field v. Cells with equal tentative times are settled in ascending linear
// index order, so identical inputs always give identical tables.
func (s *Solver) Solve(v *grid.Field, srcZ, srcX int) (*grid.Field, error) {
	if srcZ < 0 || srcZ >= v.NZ || srcX < 0 || srcX >= v.NX {
		return nil, fmt.Errorf("%w: (%d, %d) in %dx%d", ErrSource, srcZ, srcX, v.NZ, v.NX)
	}
	slow := grid.New(v.NZ, v.NX)
	for i, vel := range v.Data {
		if !(vel > 0) || math.IsInf(vel, 0) {
			return nil, fmt.Errorf("traveltime: invalid velocity %g at cell %d", vel, i)
		}
		slow.Data[i] = 1 / vel
	}

	times := grid.Filled(v.NZ, v.NX, math.Inf(1))
	done := make([]bool, len(times.Data))
	src := srcZ*v.NX + srcX
	times.Data[src] = 0

	q := &frontier{{t: 0, idx: src}}
	for q.Len() > 0 {
		n := heap.Pop(q).(node)
		if done[n.idx] {
			continue
		}
		done[n.idx] = true
		iz, ix := n.idx/v.NX, n.idx%v.NX
		for k := range s.offsets {
			o := &s.offsets[k]
			jz, jx := iz+o.dz, ix+o.dx
			if jz < 0 || jz >= v.NZ || jx < 0 || jx >= v.NX {
				continue
			}
			j := jz*v.NX + jx
			if done[j] {
				continue
			}
			t := n.t + o.length*meanSlowness(slow, iz, ix, o.taps)
			if t < times.Data[j] {
				times.Data[j] = t
				heap.Push(q, node{t: t, idx: j})
			}
		}
	}
	return times, nil
}

// meanSlowness averages the bilinearly interpolated slowness at the taps of
// a segment starting at (iz, ix). Every tap lies inside the grid because both
// end points do.
func meanSlowness(slow *grid.Field, iz, ix int, taps [][2]float64) float64 {
	var sum float64
	for _, tp := range taps {
		sum += bilinear(slow, float64(iz)+tp[0], float64(ix)+tp[1])
	}
	return sum / float64(len(taps))
}

func bilinear(f *grid.Field, z, x float64) float64 {
	z0, x0 := int(math.Floor(z)), int(math.Floor(x))
	fz, fx := z-float64(z0), x-float64(x0)
	z1, x1 := min(z0+1, f.NZ-1), min(x0+1, f.NX-1)
	a := f.Data[z0*f.NX+x0]*(1-fx) + f.Data[z0*f.NX+x1]*fx
	b := f.Data[z1*f.NX+x0]*(1-fx) + f.Data[z1*f.NX+x1]*fx
	return a*(1-fz) + b*fz
}

type node struct {
	t   float64
	idx int
}

// frontier is a min-heap ordered by time, then linear index.
type frontier []node

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].t != f[j].t {
		return f[i].t < f[j].t
	}
	return f[i].idx < f[j].idx
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(node)) }
func (f *frontier) Pop() any {
	old := *f
	n := old[len(old)-1]
	*f = old[:len(old)-1]
	return n
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
