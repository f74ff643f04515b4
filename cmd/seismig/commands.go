package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/0x5844/seismig/internal/config"
	"github.com/0x5844/seismig/internal/observability"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Flags shared by every command.
type options struct {
	ConfigFile string
	Workers    int
	Verbose    bool
	Quiet      bool
	ProfileCPU string
	ProfileMem string
	Output     string
	Survey     string
	Metrics    bool
}

var (
	opts options

	// Populated by the root pre-run.
	cfg     config.Config
	logger  zerolog.Logger
	cpuProf *os.File

	rootCmd = &cobra.Command{
		Use:           "seismig",
		Short:         "2-D acoustic modelling and depth migration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == versionCmd.Name() {
				return nil
			}
			return setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return teardown()
		},
	}

	shotsCmd = &cobra.Command{
		Use:   "shots",
		Short: "Simulate the survey over the true and background models and store the gathers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignals(runShots)
		},
	}

	method    string
	fromStore bool
	withImage bool

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the survey and write the stacked image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignals(runMigrate)
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("seismig version %s\n", Version)
			fmt.Printf("Built: %s\n", BuildTime)
			fmt.Printf("Go: %s\n", GoVersion)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigFile, "config", "c", "", "TOML experiment file (defaults to the reference layered model)")
	pf.IntVar(&opts.Workers, "workers", 0, "concurrent shots (0 = survey.workers, then the CPU count)")
	pf.BoolVar(&opts.Verbose, "verbose", false, "debug logging")
	pf.BoolVar(&opts.Quiet, "quiet", false, "minimal output")
	pf.StringVar(&opts.ProfileCPU, "profile-cpu", "", "CPU profile output file")
	pf.StringVar(&opts.ProfileMem, "profile-mem", "", "memory profile output file")
	pf.StringVarP(&opts.Output, "output", "o", "", "JSON output file (default stdout)")
	pf.StringVar(&opts.Survey, "survey", "default", "name under which gathers are stored")
	pf.BoolVar(&opts.Metrics, "metrics", false, "log the collected metrics on exit")

	migrateCmd.Flags().StringVarP(&method, "method", "m", "kirchhoff", "migration method (kirchhoff, rtm)")
	migrateCmd.Flags().BoolVar(&fromStore, "from-store", false, "read gathers written by a previous shots run")
	migrateCmd.Flags().BoolVar(&withImage, "image", false, "include the stacked image in the output")

	rootCmd.AddCommand(shotsCmd, migrateCmd, versionCmd)
}

func setup() error {
	var err error
	cfg = config.Default()
	if opts.ConfigFile != "" {
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return err
		}
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	logger = observability.InitLogger("seismig", level, opts.Quiet)
	observability.RegisterMetrics()

	if opts.Workers <= 0 {
		opts.Workers = cfg.Survey.Workers
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	runtime.GOMAXPROCS(opts.Workers)

	if opts.ProfileCPU != "" {
		f, err := os.Create(opts.ProfileCPU)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		cpuProf = f
	}

	logger.Info().
		Str("version", Version).
		Int("nz", cfg.Model.NZ).
		Int("nx", cfg.Model.NX).
		Float64("dx", cfg.Model.DX).
		Float64("dz", cfg.Model.DZ).
		Str("scheme", cfg.Simulation.Scheme).
		Int("cpus", runtime.NumCPU()).
		Int("workers", opts.Workers).
		Msg("starting")
	return nil
}

func teardown() error {
	if cpuProf != nil {
		pprof.StopCPUProfile()
		cpuProf.Close()
		cpuProf = nil
	}
	if opts.ProfileMem != "" {
		f, err := os.Create(opts.ProfileMem)
		if err != nil {
			logger.Warn().Err(err).Msg("could not create memory profile")
		} else {
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				logger.Warn().Err(err).Msg("could not write memory profile")
			}
		}
	}
	if opts.Metrics {
		logMetrics(logger)
	}
	return nil
}

// withSignals runs fn with a context cancelled on SIGINT or SIGTERM.
func withSignals(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Warn().Msg("shutting down gracefully")
			cancel()
		case <-ctx.Done():
		}
	}()

	return fn(ctx)
}
