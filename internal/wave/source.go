package wave

import (
	"github.com/0x5844/seismig/internal/grid"
	"github.com/0x5844/seismig/internal/velocity"
)

// Target receives source energy for the wavefield being computed.
type Target interface {
	Add(iz, ix int, amp float64)
}

// Injector adds source terms for a physical time sample.
type Injector interface {
	Inject(sample int, t Target)
}

// PointSource injects a sampled wavelet at one padded grid cell.
type PointSource struct {
	IZ, IX  int
	Wavelet []float64
}

func (p PointSource) Inject(sample int, t Target) {
	if sample < 0 || sample >= len(p.Wavelet) {
		return
	}
	t.Add(p.IZ, p.IX, p.Wavelet[sample])
}

// LineSource injects a shot record along a row of the padded grid: receiver
// r drives column X0+r with sample i of its trace.
type LineSource struct {
	IZ, X0 int
	Data   *Record
}

func (l LineSource) Inject(sample int, t Target) {
	if sample < 0 || sample >= l.Data.NT {
		return
	}
	for r := 0; r < l.Data.Receivers; r++ {
		if amp := l.Data.Data[r*l.Data.NT+sample]; amp != 0 {
			t.Add(l.IZ, l.X0+r, amp)
		}
	}
}

// Medium is a padded velocity field with the geometry needed to place
// sources and receivers on it.
type Medium struct {
	Velocity *grid.Field
	Border   int
	DX, DZ   float64
}

// TrueMedium and BackgroundMedium select one field of a padded model.
func TrueMedium(p *velocity.Padded) Medium {
	return Medium{Velocity: p.True, Border: p.Border, DX: p.DX, DZ: p.DZ}
}

func BackgroundMedium(p *velocity.Padded) Medium {
	return Medium{Velocity: p.Background, Border: p.Border, DX: p.DX, DZ: p.DZ}
}

// Receivers is the number of unpadded surface positions.
func (m Medium) Receivers() int { return m.Velocity.NX - 2*m.Border }

// Column maps an unpadded lateral index to its padded column.
func (m Medium) Column(ix int) int { return ix + m.Border }
