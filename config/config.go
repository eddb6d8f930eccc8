// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Experience modes.
const (
	ModeNormal       = "normal"
	ModeOptimisation = "optimisation"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Sim        SimConfig        `yaml:"sim"`
	Units      []UnitConfig     `yaml:"units"`
	Experience ExperienceConfig `yaml:"experience"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// SimConfig holds tick and flow parameters.
type SimConfig struct {
	DT                float64 `yaml:"dt"`
	Seed              int64   `yaml:"seed"` // 0 = time-based
	ParticlesPerLayer int     `yaml:"particles_per_layer"`
	FlowSpeed         float64 `yaml:"flow_speed"`
	MinFlowSpeed      float64 `yaml:"min_flow_speed"`
	MaxFlowSpeed      float64 `yaml:"max_flow_speed"`
	TargetTolerance   float64 `yaml:"target_tolerance"`
}

// UnitConfig places one silo unit in the world.
type UnitConfig struct {
	Name       string  `yaml:"name"`
	WorldX     float64 `yaml:"world_x"`
	StartDelay float64 `yaml:"start_delay"` // seconds after run start before the outlet opens
	Layers     int     `yaml:"layers"`
}

// ProfileConfig describes how a silo is filled.
type ProfileConfig struct {
	FillRatio    float64   `yaml:"fill_ratio"`
	LayerWeights []float64 `yaml:"layer_weights"`
}

// RandomProfileConfig bounds the profiles drawn in normal mode.
type RandomProfileConfig struct {
	FillMin     float64 `yaml:"fill_min"`
	FillRange   float64 `yaml:"fill_range"`
	WeightMin   float64 `yaml:"weight_min"`
	WeightRange float64 `yaml:"weight_range"`
}

// ExperienceConfig holds the settings of both experience modes.
type ExperienceConfig struct {
	Mode          string              `yaml:"mode"`
	HeelRatio     float64             `yaml:"heel_ratio"`
	Random        RandomProfileConfig `yaml:"random"`
	FixedProfiles []ProfileConfig     `yaml:"fixed_profiles"`
	Targets       []float64           `yaml:"targets"`
	NormalPalette []string            `yaml:"normal_palette"`
	Palettes      [][]string          `yaml:"palettes"`
}

// TelemetryConfig holds telemetry and output parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // seconds per telemetry row
	PerfWindow  int     `yaml:"perf_window"`  // ticks per perf sample
	Plots       bool    `yaml:"plots"`
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	DT32          float32
	FlowSpeed32   float32
	MinFlow32     float32
	MaxFlow32     float32
	Tolerance32   float32
	NormalTarget  float32 // 1 - heel ratio
	NormalPalette []color.RGBA
	Palettes      [][]color.RGBA
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks the settings the simulation cannot clamp on its own.
func (c *Config) Validate() error {
	var errs []error
	if c.Sim.DT <= 0 {
		errs = append(errs, fmt.Errorf("sim.dt must be positive, got %g", c.Sim.DT))
	}
	if c.Sim.ParticlesPerLayer < 1 {
		errs = append(errs, fmt.Errorf("sim.particles_per_layer must be at least 1, got %d", c.Sim.ParticlesPerLayer))
	}
	if c.Sim.MinFlowSpeed <= 0 || c.Sim.MaxFlowSpeed < c.Sim.MinFlowSpeed {
		errs = append(errs, fmt.Errorf("sim flow range [%g, %g] is invalid", c.Sim.MinFlowSpeed, c.Sim.MaxFlowSpeed))
	}
	if len(c.Units) == 0 {
		errs = append(errs, errors.New("at least one unit is required"))
	}
	for i, u := range c.Units {
		if u.Layers < 1 || u.Layers > 255 {
			errs = append(errs, fmt.Errorf("units[%d] (%s): layers must be in [1, 255], got %d", i, u.Name, u.Layers))
		}
		if u.StartDelay < 0 {
			errs = append(errs, fmt.Errorf("units[%d] (%s): start_delay must not be negative", i, u.Name))
		}
	}

	e := c.Experience
	if e.Mode != ModeNormal && e.Mode != ModeOptimisation {
		errs = append(errs, fmt.Errorf("experience.mode %q is not %q or %q", e.Mode, ModeNormal, ModeOptimisation))
	}
	if e.HeelRatio < 0 || e.HeelRatio >= 1 {
		errs = append(errs, fmt.Errorf("experience.heel_ratio must be in [0, 1), got %g", e.HeelRatio))
	}
	if len(e.FixedProfiles) < len(c.Units) {
		errs = append(errs, fmt.Errorf("experience.fixed_profiles has %d entries for %d units", len(e.FixedProfiles), len(c.Units)))
	}
	if len(e.Targets) < len(c.Units) {
		errs = append(errs, fmt.Errorf("experience.targets has %d entries for %d units", len(e.Targets), len(c.Units)))
	}
	for i, t := range e.Targets {
		if t < 0 || t > 1 {
			errs = append(errs, fmt.Errorf("experience.targets[%d] must be in [0, 1], got %g", i, t))
		}
	}
	if len(e.Palettes) < len(c.Units) {
		errs = append(errs, fmt.Errorf("experience.palettes has %d entries for %d units", len(e.Palettes), len(c.Units)))
	}
	for _, s := range e.NormalPalette {
		if _, err := ParseHexColor(s); err != nil {
			errs = append(errs, fmt.Errorf("experience.normal_palette: %w", err))
		}
	}
	for i, p := range e.Palettes {
		for _, s := range p {
			if _, err := ParseHexColor(s); err != nil {
				errs = append(errs, fmt.Errorf("experience.palettes[%d]: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Sim.DT)
	c.Derived.FlowSpeed32 = float32(c.Sim.FlowSpeed)
	c.Derived.MinFlow32 = float32(c.Sim.MinFlowSpeed)
	c.Derived.MaxFlow32 = float32(c.Sim.MaxFlowSpeed)
	c.Derived.Tolerance32 = float32(c.Sim.TargetTolerance)
	c.Derived.NormalTarget = float32(1 - c.Experience.HeelRatio)

	c.Derived.NormalPalette = parsePalette(c.Experience.NormalPalette)
	c.Derived.Palettes = make([][]color.RGBA, len(c.Experience.Palettes))
	for i, p := range c.Experience.Palettes {
		c.Derived.Palettes[i] = parsePalette(p)
	}
}

// Palette returns the layer colours for unit i in the given mode. Short
// palettes repeat their last colour.
func (c *Config) Palette(mode string, unit, layers int) []color.RGBA {
	src := c.Derived.NormalPalette
	if mode == ModeOptimisation && unit < len(c.Derived.Palettes) {
		src = c.Derived.Palettes[unit]
	}
	out := make([]color.RGBA, layers)
	for l := range out {
		switch {
		case len(src) == 0:
			out[l] = color.RGBA{R: 200, G: 200, B: 200, A: 255}
		case l < len(src):
			out[l] = src[l]
		default:
			out[l] = src[len(src)-1]
		}
	}
	return out
}

// Target returns the discharge target of unit i in the given mode.
func (c *Config) Target(mode string, unit int) float32 {
	if mode == ModeOptimisation && unit < len(c.Experience.Targets) {
		return float32(c.Experience.Targets[unit])
	}
	return c.Derived.NormalTarget
}

// ClampFlow limits a requested flow speed to the configured range.
func (c *Config) ClampFlow(v float32) float32 {
	return min(max(v, c.Derived.MinFlow32), c.Derived.MaxFlow32)
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 && len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("colour %q: want #RRGGBB or #RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("colour %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func parsePalette(in []string) []color.RGBA {
	out := make([]color.RGBA, 0, len(in))
	for _, s := range in {
		if c, err := ParseHexColor(s); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
