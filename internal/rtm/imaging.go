package rtm

import (
	"fmt"

	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/stability"
	"github.com/0x5844/seismig/internal/wave"
	"gonum.org/v1/gonum/floats"
)

// Selection is the set of time samples the imaging condition visits:
// k = nt-1-i for i = 0, stride, 2·stride, … with t_k below the cutoff.
type Selection struct {
	NT     int
	Stride int
	Cutoff float64
	axis   stability.Axis
}

func NewSelection(axis stability.Axis, stride int, cutoff float64) Selection {
	if stride < 1 {
		stride = 1
	}
	return Selection{NT: axis.NT, Stride: stride, Cutoff: cutoff, axis: axis}
}

// Keeps reports whether sample k takes part in the image.
func (s Selection) Keeps(k int) bool {
	if k < 0 || k >= s.NT {
		return false
	}
	return (s.NT-1-k)%s.Stride == 0 && s.axis.Time(k) < s.Cutoff
}

// Correlation is the zero-lag cross-correlation of two wavefields together
// with the source illumination Σ F².
type Correlation struct {
	Image   *grid.Field
	Illum   *grid.Field
	Samples int
}

// Correlate applies the imaging condition Σ F[k]·B[k] over the selected
// samples of nz×nx wavefields. Both sources must hold every selected sample.
// A selection with nothing below the cutoff gives a zero image.
func Correlate(fwd, bwd wave.SnapshotSource, sel Selection, nz, nx int) (*Correlation, error) {
	c := &Correlation{Image: grid.New(nz, nx), Illum: grid.New(nz, nx)}
	tmp := make([]float64, nz*nx)
	for i := 0; i < sel.NT; i += sel.Stride {
		k := sel.NT - 1 - i
		if !sel.Keeps(k) {
			continue
		}
		f, ok := fwd.At(k)
		if !ok {
			return nil, fmt.Errorf("rtm: forward wavefield missing sample %d", k)
		}
		b, ok := bwd.At(k)
		if !ok {
			return nil, fmt.Errorf("rtm: backward wavefield missing sample %d", k)
		}
		if !f.SameShape(c.Image) || !b.SameShape(c.Image) {
			return nil, fmt.Errorf("rtm: sample %d shapes %dx%d and %dx%d, want %dx%d",
				k, f.NZ, f.NX, b.NZ, b.NX, nz, nx)
		}
		floats.MulTo(tmp, f.Data, b.Data)
		floats.Add(c.Image.Data, tmp)
		floats.MulTo(tmp, f.Data, f.Data)
		floats.Add(c.Illum.Data, tmp)
		c.Samples++
	}
	return c, nil
}

// Normalized divides the image by the illumination, stabilised by
// eps·max(illum).
func (c *Correlation) Normalized(eps float64) *grid.Field {
	out := c.Image.Clone()
	floor := eps * c.Illum.Max()
	for i, v := range c.Illum.Data {
		d := v + floor
		if d == 0 {
			out.Data[i] = 0
			continue
		}
		out.Data[i] /= d
	}
	return out
}
