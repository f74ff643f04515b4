// Package grid holds the dense 2-D arrays shared by the modelling and imaging
// packages: velocity fields, wavefields, travel-time tables and images.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrRagged is returned when rows of unequal length are converted to a Field.
var ErrRagged = errors.New("grid: ragged rows")

// Field represents a 2-D grid stored in a linear array for cache efficiency.
// Rows are depth samples (iz), columns are lateral positions (ix).
type Field struct {
	NZ, NX int
	Data   []float64
}

func New(nz, nx int) *Field {
	return &Field{NZ: nz, NX: nx, Data: make([]float64, nz*nx)}
}

// Filled returns an nz×nx field with every cell set to v.
func Filled(nz, nx int, v float64) *Field {
	f := New(nz, nx)
	for i := range f.Data {
		f.Data[i] = v
	}
	return f
}

// FromRows copies a row-major [depth][lateral] slice into a Field.
func FromRows(rows [][]float64) (*Field, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	nx := len(rows[0])
	f := New(len(rows), nx)
	for iz, row := range rows {
		if len(row) != nx {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrRagged, iz, len(row), nx)
		}
		copy(f.Data[iz*nx:(iz+1)*nx], row)
	}
	return f, nil
}

// At returns the value at (iz, ix), or zero outside the grid.
func (f *Field) At(iz, ix int) float64 {
	if iz < 0 || iz >= f.NZ || ix < 0 || ix >= f.NX {
		return 0
	}
	return f.Data[iz*f.NX+ix]
}

func (f *Field) Set(iz, ix int, v float64) {
	if iz >= 0 && iz < f.NZ && ix >= 0 && ix < f.NX {
		f.Data[iz*f.NX+ix] = v
	}
}

// Row returns the backing slice of depth row iz.
func (f *Field) Row(iz int) []float64 {
	return f.Data[iz*f.NX : (iz+1)*f.NX]
}

func (f *Field) Clear() {
	for i := range f.Data {
		f.Data[i] = 0
	}
}

func (f *Field) Clone() *Field {
	c := &Field{NZ: f.NZ, NX: f.NX, Data: make([]float64, len(f.Data))}
	copy(c.Data, f.Data)
	return c
}

// SameShape reports whether f and other have identical dimensions.
func (f *Field) SameShape(other *Field) bool {
	return f.NZ == other.NZ && f.NX == other.NX
}

func (f *Field) Min() float64 {
	return floats.Min(f.Data)
}

func (f *Field) Max() float64 {
	return floats.Max(f.Data)
}

// AllFinite reports whether no cell holds NaN or ±Inf.
func (f *Field) AllFinite() bool {
	for _, v := range f.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Crop returns a copy of the nz×nx window whose top-left corner is (z0, x0).
func (f *Field) Crop(z0, x0, nz, nx int) *Field {
	out := New(nz, nx)
	for iz := 0; iz < nz; iz++ {
		src := f.Data[(z0+iz)*f.NX+x0 : (z0+iz)*f.NX+x0+nx]
		copy(out.Data[iz*nx:(iz+1)*nx], src)
	}
	return out
}

// Rows converts the field back into [depth][lateral] slices.
func (f *Field) Rows() [][]float64 {
	rows := make([][]float64, f.NZ)
	for iz := range rows {
		rows[iz] = append([]float64(nil), f.Row(iz)...)
	}
	return rows
}

// Volume is an ordered sequence of fields, indexed by source or time sample.
type Volume []*Field
