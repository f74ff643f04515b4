package wave

import (
	"github.com/0x5844/seismig/internal/grid"
)

// SnapshotSource is an indexed source of wavefield time samples. At reports
// false for samples that were never retained.
type SnapshotSource interface {
	Len() int
	At(sample int) (*grid.Field, bool)
}

// SnapshotSink retains wavefield samples during a run. Store must copy f;
// the simulator reuses the frame after the call returns.
type SnapshotSink interface {
	Retains(sample int) bool
	Store(sample int, f *grid.Field) error
}

// Volume is both ends of a snapshot backing.
type Volume interface {
	SnapshotSource
	SnapshotSink
}

// DenseVolume keeps every time sample in memory.
type DenseVolume struct {
	frames grid.Volume
}

func NewDenseVolume(nt int) *DenseVolume {
	return &DenseVolume{frames: make(grid.Volume, nt)}
}

func (v *DenseVolume) Len() int { return len(v.frames) }

func (v *DenseVolume) Retains(sample int) bool {
	return sample >= 0 && sample < len(v.frames)
}

func (v *DenseVolume) Store(sample int, f *grid.Field) error {
	if !v.Retains(sample) {
		return nil
	}
	if dst := v.frames[sample]; dst != nil && dst.SameShape(f) {
		copy(dst.Data, f.Data)
		return nil
	}
	v.frames[sample] = f.Clone()
	return nil
}

func (v *DenseVolume) At(sample int) (*grid.Field, bool) {
	if sample < 0 || sample >= len(v.frames) || v.frames[sample] == nil {
		return nil, false
	}
	return v.frames[sample], true
}

// DecimatedVolume keeps only the samples accepted by its predicate, which
// bounds memory to the number of accepted samples.
type DecimatedVolume struct {
	keep   func(sample int) bool
	frames grid.Volume
	kept   int
}

func NewDecimatedVolume(nt int, keep func(sample int) bool) *DecimatedVolume {
	return &DecimatedVolume{keep: keep, frames: make(grid.Volume, nt)}
}

// EveryNth keeps samples 0, n, 2n, …
func EveryNth(n int) func(int) bool {
	if n < 1 {
		n = 1
	}
	return func(sample int) bool { return sample%n == 0 }
}

func (v *DecimatedVolume) Len() int { return len(v.frames) }

func (v *DecimatedVolume) Retains(sample int) bool {
	return sample >= 0 && sample < len(v.frames) && v.keep(sample)
}

func (v *DecimatedVolume) Store(sample int, f *grid.Field) error {
	if !v.Retains(sample) {
		return nil
	}
	if v.frames[sample] == nil {
		v.kept++
	}
	v.frames[sample] = f.Clone()
	return nil
}

func (v *DecimatedVolume) At(sample int) (*grid.Field, bool) {
	if sample < 0 || sample >= len(v.frames) || v.frames[sample] == nil {
		return nil, false
	}
	return v.frames[sample], true
}

// Kept is the number of retained samples.
func (v *DecimatedVolume) Kept() int { return v.kept }
