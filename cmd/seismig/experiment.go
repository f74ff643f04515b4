package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/0x5844/seismig/internal/config"
	"github.com/0x5844/seismig/internal/kirchhoff"
	"github.com/0x5844/seismig/internal/rtm"
	"github.com/0x5844/seismig/internal/shots"
	"github.com/0x5844/seismig/internal/stability"
	"github.com/0x5844/seismig/internal/stack"
	"github.com/0x5844/seismig/internal/store"
	"github.com/0x5844/seismig/internal/survey"
	"github.com/0x5844/seismig/internal/traveltime"
	"github.com/0x5844/seismig/internal/velocity"
	"github.com/0x5844/seismig/internal/wave"
	"github.com/rs/zerolog"
)

// experiment is everything built from one configuration before any shot
// runs. Model errors surface here and abort the command.
type experiment struct {
	cfg    config.Config
	model  *velocity.Model
	padded *velocity.Padded
	axis   stability.Axis
	sim    *wave.Simulator
	gen    *shots.Generator
	db     *store.DB
	logger zerolog.Logger
}

func newExperiment(cfg config.Config, logger zerolog.Logger) (*experiment, error) {
	model, err := cfg.VelocityModel()
	if err != nil {
		return nil, err
	}
	padded, err := model.Pad(cfg.Model.Border)
	if err != nil {
		return nil, err
	}
	axis, err := stability.PlanModel(model, cfg.Simulation.Courant)
	if err != nil {
		return nil, err
	}
	wcfg, err := cfg.WaveConfig()
	if err != nil {
		return nil, err
	}
	sim := wave.NewSimulator(wcfg, logger.With().Str("component", "wave").Logger())

	e := &experiment{
		cfg:    cfg,
		model:  model,
		padded: padded,
		axis:   axis,
		sim:    sim,
		gen:    shots.NewGenerator(sim, padded, axis, logger.With().Str("component", "shots").Logger()),
		logger: logger,
	}
	if cfg.Store.Enabled() {
		e.db, err = store.Open(store.Options{
			Path:       cfg.Store.Path,
			InMemory:   cfg.Store.InMemory,
			SyncWrites: cfg.Store.SyncWrites,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	logger.Info().
		Float64("dt", axis.DT).
		Int("nt", axis.NT).
		Float64("duration", axis.Duration()).
		Int("border", padded.Border).
		Msg("time axis planned")
	return e, nil
}

func (e *experiment) Close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("closing store")
		}
	}
}

func (e *experiment) migrator(ctx context.Context, method string, workers int) (survey.Migrator, error) {
	switch method {
	case kirchhoff.Method:
		solver := traveltime.NewSolver(e.cfg.Kirchhoff.StencilRadius, e.model.DX, e.model.DZ)
		table := traveltime.NewTable(solver, e.model.Background, 0)
		if _, err := table.Volume(ctx, workers); err != nil {
			return nil, fmt.Errorf("travel-time tables: %w", err)
		}
		e.logger.Info().Int("sources", table.Len()).Int("radius", solver.Radius()).Msg("travel-time tables ready")
		return kirchhoff.New(table, e.axis, e.sim.Wavelet().Delay(), e.model.DX, e.model.DZ,
			e.cfg.KirchhoffConfig(workers), e.logger.With().Str("component", "kirchhoff").Logger()), nil
	case rtm.Method:
		var backing rtm.Backing
		switch e.cfg.RTM.Retention {
		case "dense":
			backing = rtm.DenseBacking{}
		case "store":
			if e.db == nil {
				return nil, fmt.Errorf("rtm retention %q needs a store", e.cfg.RTM.Retention)
			}
			backing = e.db
		default:
			backing = rtm.DecimatedBacking{}
		}
		return rtm.New(e.sim, e.padded, e.axis, e.cfg.RTMConfig(), backing,
			e.logger.With().Str("component", "rtm").Logger()), nil
	}
	return nil, fmt.Errorf("unknown migration method %q", method)
}

var errNotStored = errors.New("no stored gather")

// source picks where the survey reads gathers from and which of the
// configured sources it covers. Reading from the store, a configured source
// with no gather (a shot skipped as unstable) is returned as a failure.
func (e *experiment) source(fromStore bool, name string) (survey.Source, []int, []shots.Failure, error) {
	if !fromStore {
		return e.gen.Generate, e.cfg.Sources(), nil, nil
	}
	if e.db == nil {
		return nil, nil, nil, fmt.Errorf("--from-store needs store.path or store.in_memory")
	}
	stored := e.db.Shots(name)
	have, err := stored.Sources()
	if err != nil {
		return nil, nil, nil, err
	}
	present, missing := splitStored(e.cfg.Sources(), have)
	get := func(_ context.Context, ix int) (*shots.Gather, error) {
		return stored.Get(ix)
	}
	return get, present, missing, nil
}

func splitStored(wanted, stored []int) (present []int, missing []shots.Failure) {
	have := make(map[int]bool, len(stored))
	for _, ix := range stored {
		have[ix] = true
	}
	for _, ix := range wanted {
		if have[ix] {
			present = append(present, ix)
		} else {
			missing = append(missing, shots.Failure{Source: ix, Err: errNotStored})
		}
	}
	return present, missing
}

func runShots(ctx context.Context) error {
	e, err := newExperiment(cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	var sink shots.Sink
	if e.db != nil {
		sink = e.db.Shots(opts.Survey)
	}
	sources := cfg.Sources()
	gathers, failures, err := e.gen.GenerateAll(ctx, sources, opts.Workers, sink)
	if err != nil {
		return err
	}
	reportSimulation(e.logger, e.sim)
	return writeJSON(opts.Output, newShotsReport(e.axis, gathers, failures))
}

func runMigrate(ctx context.Context) error {
	e, err := newExperiment(cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	m, err := e.migrator(ctx, method, opts.Workers)
	if err != nil {
		return err
	}
	src, sources, missing, err := e.source(fromStore, opts.Survey)
	if err != nil {
		return err
	}
	for _, f := range missing {
		logger.Warn().Int("source", f.Source).Str("survey", opts.Survey).Msg("gather not in store")
	}
	acc := stack.NewAccumulator(e.model.NZ(), e.model.NX())
	report, err := survey.NewRunner(opts.Workers, logger).Run(ctx, sources, src, m, acc)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		report.Failures = append(report.Failures, missing...)
		slices.SortFunc(report.Failures, func(a, b shots.Failure) int { return cmp.Compare(a.Source, b.Source) })
	}
	if k, ok := m.(*kirchhoff.Migrator); ok {
		logger.Info().Int64("excluded", k.Excluded()).Msg("kirchhoff aperture")
	}
	reportSimulation(e.logger, e.sim)
	return writeJSON(opts.Output, newImageReport(report, withImage))
}
