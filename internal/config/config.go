// Package config loads experiment files: the velocity model, numerical
// parameters, migration tuning and survey layout.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/0x5844/seismig/internal/kirchhoff"
	"github.com/0x5844/seismig/internal/rtm"
	"github.com/0x5844/seismig/internal/velocity"
	"github.com/0x5844/seismig/internal/wave"
	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

var ErrInvalid = errors.New("config: invalid")

var validate = validator.New()

type Config struct {
	Model      Model      `toml:"model"`
	Simulation Simulation `toml:"simulation"`
	Kirchhoff  Kirchhoff  `toml:"kirchhoff"`
	RTM        RTM        `toml:"rtm"`
	Survey     Survey     `toml:"survey"`
	Store      Store      `toml:"store"`
	Log        Log        `toml:"log"`
}

// Model describes a layered experiment: a constant background with
// velocity overrides on depth-row ranges.
type Model struct {
	NZ       int     `toml:"nz" validate:"gte=1"`
	NX       int     `toml:"nx" validate:"gte=1"`
	DX       float64 `toml:"dx" validate:"gt=0"`
	DZ       float64 `toml:"dz" validate:"gt=0"`
	Velocity float64 `toml:"velocity" validate:"gt=0"`
	Border   int     `toml:"border" validate:"gte=0"`
	Layers   []Layer `toml:"layers" validate:"dive"`
}

type Layer struct {
	Top      int     `toml:"top" validate:"gte=0"`
	Bottom   int     `toml:"bottom" validate:"gtfield=Top"`
	Velocity float64 `toml:"velocity" validate:"gt=0"`
}

type Simulation struct {
	Scheme         string  `toml:"scheme" validate:"oneof=FD2 FD4 FD6"`
	Courant        float64 `toml:"courant" validate:"gt=0,lte=1"`
	PeakFrequency  float64 `toml:"peak_frequency" validate:"gt=0"`
	SpongeStrength float64 `toml:"sponge_strength" validate:"gt=0"`
}

type Kirchhoff struct {
	ApertureDeg   float64 `toml:"aperture_deg" validate:"gt=0,lte=90"`
	Taper         float64 `toml:"taper" validate:"gte=0"`
	MinWeight     float64 `toml:"min_weight" validate:"gte=0,lt=1"`
	StencilRadius int     `toml:"stencil_radius" validate:"gte=1,lte=8"`
}

type RTM struct {
	Stride    int     `toml:"stride" validate:"gte=1"`
	Cutoff    float64 `toml:"cutoff" validate:"gt=0"`
	Normalize bool    `toml:"normalize"`
	Epsilon   float64 `toml:"epsilon" validate:"gte=0"`
	Retention string  `toml:"retention" validate:"oneof=dense decimated store"`
}

type Survey struct {
	// Sources lists surface positions explicitly; empty means every Step-th
	// column.
	Sources []int `toml:"sources" validate:"dive,gte=0"`
	Step    int   `toml:"step" validate:"gte=1"`
	Workers int   `toml:"workers" validate:"gte=0"`
}

type Store struct {
	Path       string `toml:"path"`
	InMemory   bool   `toml:"in_memory"`
	SyncWrites bool   `toml:"sync_writes"`
}

// Enabled reports whether gathers and snapshots have a database to go to.
// Nothing is persisted unless store.path or store.in_memory is set.
func (s Store) Enabled() bool { return s.InMemory || s.Path != "" }

type Log struct {
	Level string `toml:"level"`
}

// Default is the reference layered experiment: 100×100 cells of 24 m at
// 3000 m/s with a 4000 m/s layer in rows 50–51.
func Default() Config {
	k := kirchhoff.DefaultConfig()
	r := rtm.DefaultConfig()
	return Config{
		Model: Model{
			NZ: 100, NX: 100, DX: 24, DZ: 24,
			Velocity: 3000,
			Border:   velocity.DefaultBorder,
			Layers:   []Layer{{Top: 50, Bottom: 52, Velocity: 4000}},
		},
		Simulation: Simulation{
			Scheme:         wave.FD4Standard.Name,
			Courant:        0.2,
			PeakFrequency:  wave.DefaultPeakFrequency,
			SpongeStrength: wave.DefaultSpongeStrength,
		},
		Kirchhoff: Kirchhoff{
			ApertureDeg:   k.ApertureDeg,
			Taper:         k.Taper,
			MinWeight:     k.MinWeight,
			StencilRadius: 3,
		},
		RTM: RTM{
			Stride:    r.Stride,
			Cutoff:    r.Cutoff,
			Normalize: r.Normalize,
			Epsilon:   r.Epsilon,
			Retention: "decimated",
		},
		Survey: Survey{Step: 1},
		Store:  Store{},
		Log:    Log{Level: "info"},
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	layers := cfg.Model.Layers
	cfg.Model.Layers = nil

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("model", "layers") {
		cfg.Model.Layers = layers
	}
	if meta.IsDefined("simulation", "scheme") {
		cfg.Simulation.Scheme = strings.ToUpper(strings.TrimSpace(cfg.Simulation.Scheme))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and the cross-field constraints the tags
// cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for i, l := range c.Model.Layers {
		if l.Bottom > c.Model.NZ {
			return fmt.Errorf("%w: layer %d ends at row %d, model has %d", ErrInvalid, i, l.Bottom, c.Model.NZ)
		}
	}
	for _, s := range c.Survey.Sources {
		if s >= c.Model.NX {
			return fmt.Errorf("%w: source %d outside %d columns", ErrInvalid, s, c.Model.NX)
		}
	}
	if c.RTM.Retention == "store" && !c.Store.Enabled() {
		return fmt.Errorf("%w: rtm retention \"store\" needs store.path or store.in_memory", ErrInvalid)
	}
	return nil
}

// VelocityModel builds the layered model of the experiment.
func (c Config) VelocityModel() (*velocity.Model, error) {
	layers := make([]velocity.Layer, len(c.Model.Layers))
	for i, l := range c.Model.Layers {
		layers[i] = velocity.Layer{Top: l.Top, Bottom: l.Bottom, Velocity: l.Velocity}
	}
	return velocity.Layered(c.Model.NZ, c.Model.NX, c.Model.Velocity, c.Model.DX, c.Model.DZ, layers...)
}

func (c Config) WaveConfig() (wave.Config, error) {
	scheme, err := wave.ParseScheme(c.Simulation.Scheme)
	if err != nil {
		return wave.Config{}, err
	}
	cfg := wave.DefaultConfig()
	cfg.Scheme = scheme
	cfg.PeakFrequency = c.Simulation.PeakFrequency
	cfg.SpongeStrength = c.Simulation.SpongeStrength
	return cfg, nil
}

func (c Config) KirchhoffConfig(workers int) kirchhoff.Config {
	return kirchhoff.Config{
		ApertureDeg: c.Kirchhoff.ApertureDeg,
		Taper:       c.Kirchhoff.Taper,
		MinWeight:   c.Kirchhoff.MinWeight,
		Workers:     workers,
	}
}

func (c Config) RTMConfig() rtm.Config {
	return rtm.Config{
		Stride:    c.RTM.Stride,
		Cutoff:    c.RTM.Cutoff,
		Normalize: c.RTM.Normalize,
		Epsilon:   c.RTM.Epsilon,
	}
}

// Sources resolves the survey layout to surface positions.
func (c Config) Sources() []int {
	if len(c.Survey.Sources) > 0 {
		return append([]int(nil), c.Survey.Sources...)
	}
	var out []int
	for ix := 0; ix < c.Model.NX; ix += c.Survey.Step {
		out = append(out, ix)
	}
	return out
}
