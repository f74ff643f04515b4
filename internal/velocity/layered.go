package velocity

import (
	"fmt"

	"github.com/0x5844/seismig/internal/grid"
)

// Layer overrides the velocity of depth rows [Top, Bottom).
type Layer struct {
	Top, Bottom int
	Velocity    float64
}

// Layered builds a homogeneous background of velocity base and a true model
// equal to the background with each layer applied in order.
func Layered(nz, nx int, base float64, dx, dz float64, layers ...Layer) (*Model, error) {
	background := grid.Filled(nz, nx, base)
	trueField := background.Clone()
	for _, l := range layers {
		if l.Top < 0 || l.Bottom > nz || l.Top >= l.Bottom {
			return nil, fmt.Errorf("velocity: layer rows [%d,%d) outside 0..%d", l.Top, l.Bottom, nz)
		}
		for iz := l.Top; iz < l.Bottom; iz++ {
			row := trueField.Row(iz)
			for ix := range row {
				row[ix] = l.Velocity
			}
		}
	}
	return New(trueField, background, dx, dz)
}
