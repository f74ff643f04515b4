package wave

import "github.com/0x5844/seismig/internal/grid"

// Observer is notified with the padded wavefield of each observed time
// sample. The field is only valid for the duration of the call.
type Observer interface {
	Observe(sample int, field *grid.Field)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(sample int, field *grid.Field)

func (f ObserverFunc) Observe(sample int, field *grid.Field) { f(sample, field) }
