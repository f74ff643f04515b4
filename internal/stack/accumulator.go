// Package stack combines per-shot migrated images into a stacked image.
package stack

import (
	"errors"
	"fmt"
	"sync"

	"github.com/0x5844/seismig/internal/grid"
	"gonum.org/v1/gonum/floats"
)

var ErrEmpty = errors.New("stack: no images accumulated")

// Accumulator keeps a running sum of images and their count. It is safe for
// concurrent use; Mean never observes a partially added image.
type Accumulator struct {
	mu    sync.Mutex
	sum   *grid.Field
	count int
}

func NewAccumulator(nz, nx int) *Accumulator {
	return &Accumulator{sum: grid.New(nz, nx)}
}

func (a *Accumulator) Add(img *grid.Field) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sum.SameShape(img) {
		return fmt.Errorf("stack: image %dx%d, want %dx%d", img.NZ, img.NX, a.sum.NZ, a.sum.NX)
	}
	floats.Add(a.sum.Data, img.Data)
	a.count++
	return nil
}

func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Mean returns the arithmetic mean of the accumulated images as a new field.
func (a *Accumulator) Mean() (*grid.Field, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return nil, ErrEmpty
	}
	out := a.sum.Clone()
	floats.Scale(1/float64(a.count), out.Data)
	return out, nil
}
