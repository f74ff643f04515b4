package wave

import (
	"math"

	"github.com/0x5844/seismig/internal/stability"
)

// DefaultPeakFrequency is the Ricker peak frequency in Hz.
const DefaultPeakFrequency = 10.0

// Ricker is a zero-phase Ricker wavelet delayed by one period so that it
// starts close to zero at t = 0.
type Ricker struct {
	Peak float64
}

// Delay is the time of the wavelet peak.
func (r Ricker) Delay() float64 {
	return 1 / r.Peak
}

// At evaluates the wavelet at time t.
func (r Ricker) At(t float64) float64 {
	a := math.Pi * r.Peak * (t - r.Delay())
	return (1 - 2*a*a) * math.Exp(-a*a)
}

// Samples returns the wavelet on axis over its support [0, 2·Delay].
// The slice is never longer than the axis.
func (r Ricker) Samples(axis stability.Axis) []float64 {
	n := int(math.Floor(2*r.Delay()/axis.DT)) + 1
	if n > axis.NT {
		n = axis.NT
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = r.At(axis.Time(i))
	}
	return out
}
