package wave

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Record is a shot record: one trace per surface receiver, nt samples each.
// Data is receiver-major, so Data[r*NT+i] is sample i of receiver r.
type Record struct {
	Receivers int
	NT        int
	Data      []float64
}

func NewRecord(receivers, nt int) *Record {
	return &Record{Receivers: receivers, NT: nt, Data: make([]float64, receivers*nt)}
}

// At returns sample i of receiver r, or zero outside the record.
func (r *Record) At(rec, i int) float64 {
	if rec < 0 || rec >= r.Receivers || i < 0 || i >= r.NT {
		return 0
	}
	return r.Data[rec*r.NT+i]
}

// Trace returns the backing slice of one receiver.
func (r *Record) Trace(rec int) []float64 {
	return r.Data[rec*r.NT : (rec+1)*r.NT]
}

// Sub returns r − other elementwise.
func (r *Record) Sub(other *Record) (*Record, error) {
	if r.Receivers != other.Receivers || r.NT != other.NT {
		return nil, fmt.Errorf("wave: record shape %dx%d does not match %dx%d",
			r.Receivers, r.NT, other.Receivers, other.NT)
	}
	out := NewRecord(r.Receivers, r.NT)
	floats.SubTo(out.Data, r.Data, other.Data)
	return out, nil
}

// Finite reports whether every sample is a finite number.
func (r *Record) Finite() bool {
	for _, v := range r.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MaxAbs returns the largest absolute amplitude in the record.
func (r *Record) MaxAbs() float64 {
	if len(r.Data) == 0 {
		return 0
	}
	return math.Max(floats.Max(r.Data), -floats.Min(r.Data))
}
