package wave

import (
	"fmt"
	"strings"
)

// Scheme is a central finite-difference stencil for the second derivative.
// Coeffs are symmetric around the centre tap.
type Scheme struct {
	Name   string
	Order  int
	Coeffs []float64
}

// Halo is the number of cells the stencil reaches on each side.
func (s Scheme) Halo() int {
	return len(s.Coeffs) / 2
}

var (
	// Standard 2nd order scheme
	FD2Standard = Scheme{
		Name:   "FD2",
		Order:  2,
		Coeffs: []float64{1, -2, 1},
	}

	// 4th order standard scheme
	FD4Standard = Scheme{
		Name:   "FD4",
		Order:  4,
		Coeffs: []float64{-1.0 / 12, 4.0 / 3, -5.0 / 2, 4.0 / 3, -1.0 / 12},
	}

	// 6th order scheme for high accuracy
	FD6Standard = Scheme{
		Name:   "FD6",
		Order:  6,
		Coeffs: []float64{1.0 / 90, -3.0 / 20, 3.0 / 2, -49.0 / 18, 3.0 / 2, -3.0 / 20, 1.0 / 90},
	}
)

// ParseScheme resolves a scheme by name (FD2, FD4, FD6; case-insensitive).
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "FD2":
		return FD2Standard, nil
	case "", "FD4":
		return FD4Standard, nil
	case "FD6":
		return FD6Standard, nil
	}
	return Scheme{}, fmt.Errorf("wave: unknown finite difference scheme %q", name)
}
