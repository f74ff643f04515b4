// Package velocity holds the true and background velocity fields of an
// experiment and derives the padded fields used by the wave simulator.
package velocity

import (
	"errors"
	"fmt"
	"math"

	"github.com/0x5844/seismig/internal/grid"
)

// DefaultBorder is the absorbing border width, in cells.
const DefaultBorder = 20

var (
	// ErrShapeMismatch indicates true and background fields of different shape.
	ErrShapeMismatch = errors.New("velocity: true and background shapes differ")

	// ErrDegenerateModel indicates a non-positive or non-finite velocity.
	ErrDegenerateModel = errors.New("velocity: degenerate model")
)

// ShapeMismatchError carries both shapes of a rejected model pair.
type ShapeMismatchError struct {
	TrueNZ, TrueNX int
	BackNZ, BackNX int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%v: true %dx%d, background %dx%d",
		ErrShapeMismatch, e.TrueNZ, e.TrueNX, e.BackNZ, e.BackNX)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// DegenerateModelError identifies the first offending cell.
type DegenerateModelError struct {
	Field  string
	IZ, IX int
	Value  float64
}

func (e *DegenerateModelError) Error() string {
	return fmt.Sprintf("%v: %s velocity %g at (%d,%d)", ErrDegenerateModel, e.Field, e.Value, e.IZ, e.IX)
}

func (e *DegenerateModelError) Unwrap() error { return ErrDegenerateModel }

// Model is a validated pair of velocity fields on a regular grid.
// Both fields are read-only once the model is constructed.
type Model struct {
	True       *grid.Field
	Background *grid.Field
	DX, DZ     float64
}

// New validates the pair and returns a Model. The fields are not copied.
func New(trueField, background *grid.Field, dx, dz float64) (*Model, error) {
	if !trueField.SameShape(background) {
		return nil, &ShapeMismatchError{
			TrueNZ: trueField.NZ, TrueNX: trueField.NX,
			BackNZ: background.NZ, BackNX: background.NX,
		}
	}
	if trueField.NZ == 0 || trueField.NX == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrDegenerateModel)
	}
	if !(dx > 0) || !(dz > 0) || math.IsInf(dx, 0) || math.IsInf(dz, 0) {
		return nil, fmt.Errorf("%w: grid spacing dx=%g dz=%g", ErrDegenerateModel, dx, dz)
	}
	if err := CheckPositive("true", trueField); err != nil {
		return nil, err
	}
	if err := CheckPositive("background", background); err != nil {
		return nil, err
	}
	return &Model{True: trueField, Background: background, DX: dx, DZ: dz}, nil
}

// CheckPositive returns a *DegenerateModelError for the first cell of f that is
// not a finite positive velocity.
func CheckPositive(name string, f *grid.Field) error {
	for i, v := range f.Data {
		if !(v > 0) || math.IsInf(v, 0) {
			return &DegenerateModelError{Field: name, IZ: i / f.NX, IX: i % f.NX, Value: v}
		}
	}
	return nil
}

func (m *Model) NZ() int { return m.True.NZ }
func (m *Model) NX() int { return m.True.NX }

// Perturbation returns True − Background.
func (m *Model) Perturbation() *grid.Field {
	out := grid.New(m.True.NZ, m.True.NX)
	for i := range out.Data {
		out.Data[i] = m.True.Data[i] - m.Background.Data[i]
	}
	return out
}

// Padded is the simulation-ready form of a Model. Border cells are added
// below the deepest row and on both lateral sides; the top row stays the
// acquisition surface.
type Padded struct {
	True       *grid.Field
	Background *grid.Field
	Border     int
	NZ, NX     int // unpadded shape
	DX, DZ     float64
}

// Pad builds the padded pair by edge replication.
func (m *Model) Pad(border int) (*Padded, error) {
	if border < 0 {
		return nil, fmt.Errorf("velocity: negative border %d", border)
	}
	return &Padded{
		True:       PadField(m.True, border),
		Background: PadField(m.Background, border),
		Border:     border,
		NZ:         m.NZ(),
		NX:         m.NX(),
		DX:         m.DX,
		DZ:         m.DZ,
	}, nil
}

// PadField extends f by border cells at the bottom and on both sides,
// replicating its outermost rows and columns. The result has shape
// (nz+border) × (nx+2·border).
func PadField(f *grid.Field, border int) *grid.Field {
	nz, nx := f.NZ+border, f.NX+2*border
	out := grid.New(nz, nx)
	for iz := 0; iz < nz; iz++ {
		sz := iz
		if sz >= f.NZ {
			sz = f.NZ - 1
		}
		row := out.Row(iz)
		src := f.Row(sz)
		left, right := src[0], src[f.NX-1]
		for ix := 0; ix < border; ix++ {
			row[ix] = left
			row[nx-1-ix] = right
		}
		copy(row[border:border+f.NX], src)
	}
	return out
}

// Crop removes the padding from a field with the padded shape.
func (p *Padded) Crop(f *grid.Field) *grid.Field {
	return f.Crop(0, p.Border, p.NZ, p.NX)
}
