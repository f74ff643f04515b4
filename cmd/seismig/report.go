package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/0x5844/seismig/internal/shots"
	"github.com/0x5844/seismig/internal/stability"
	"github.com/0x5844/seismig/internal/survey"
	"github.com/0x5844/seismig/internal/wave"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type failureReport struct {
	Source int    `json:"source"`
	Error  string `json:"error"`
}

func failureReports(in []shots.Failure) []failureReport {
	out := make([]failureReport, 0, len(in))
	for _, f := range in {
		out = append(out, failureReport{Source: f.Source, Error: f.Err.Error()})
	}
	return out
}

type gatherReport struct {
	Source        int     `json:"source"`
	ObservedPeak  float64 `json:"observed_peak"`
	ScatteredPeak float64 `json:"scattered_peak"`
}

type shotsReport struct {
	DT       float64         `json:"dt"`
	NT       int             `json:"nt"`
	Gathers  []gatherReport  `json:"gathers"`
	Failures []failureReport `json:"failures"`
}

func newShotsReport(axis stability.Axis, gathers []*shots.Gather, failures []shots.Failure) shotsReport {
	r := shotsReport{DT: axis.DT, NT: axis.NT, Failures: failureReports(failures)}
	for _, g := range gathers {
		if g == nil {
			continue
		}
		r.Gathers = append(r.Gathers, gatherReport{
			Source:        g.Source,
			ObservedPeak:  g.Observed.MaxAbs(),
			ScatteredPeak: g.Scattered.MaxAbs(),
		})
	}
	return r
}

type imageReport struct {
	RunID          string          `json:"run_id"`
	Method         string          `json:"method"`
	Succeeded      []int           `json:"succeeded"`
	Failures       []failureReport `json:"failures"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	NZ             int             `json:"nz,omitempty"`
	NX             int             `json:"nx,omitempty"`
	Min            float64         `json:"min"`
	Max            float64         `json:"max"`
	// PeakRow is the depth row carrying the most image energy.
	PeakRow int         `json:"peak_row"`
	Image   [][]float64 `json:"image,omitempty"`
}

func newImageReport(r *survey.Report, withImage bool) imageReport {
	out := imageReport{
		RunID:          r.RunID,
		Method:         r.Method,
		Succeeded:      r.Succeeded,
		Failures:       failureReports(r.Failures),
		ElapsedSeconds: r.Elapsed.Seconds(),
		PeakRow:        -1,
	}
	img := r.Stacked
	if img == nil {
		return out
	}
	out.NZ, out.NX = img.NZ, img.NX
	out.Min, out.Max = img.Min(), img.Max()
	best := -1.0
	for iz := 0; iz < img.NZ; iz++ {
		var e float64
		for _, v := range img.Row(iz) {
			e += v * v
		}
		if e > best {
			best, out.PeakRow = e, iz
		}
	}
	if withImage {
		out.Image = img.Rows()
	}
	return out
}

func writeJSON(path string, v any) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportSimulation logs the simulator's cumulative work.
func reportSimulation(logger zerolog.Logger, sim *wave.Simulator) {
	steps, runs, compTime, avgStepTime := sim.Stats()
	logger.Info().
		Int64("runs", runs).
		Int64("steps", steps).
		Dur("computation_time", compTime).
		Dur("avg_step_time", avgStepTime).
		Msg("simulation report")
}

// logMetrics dumps the seismig counters and histogram totals of the default
// registry.
func logMetrics(logger zerolog.Logger) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		logger.Warn().Err(err).Msg("gather metrics")
		return
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "seismig_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			fields := map[string]any{"metric": mf.GetName()}
			for _, lp := range m.GetLabel() {
				fields[lp.GetName()] = lp.GetValue()
			}
			if c := m.GetCounter(); c != nil {
				fields["value"] = c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				fields["count"] = h.GetSampleCount()
				fields["sum"] = h.GetSampleSum()
			}
			logger.Info().Fields(fields).Msg("metric")
		}
	}
}
