package game

import (
	"image/color"
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/silodrop/components"
	"github.com/pthm-cable/silodrop/config"
	"github.com/pthm-cable/silodrop/systems"
	"github.com/pthm-cable/silodrop/telemetry"
)

// Controller drives the plant's per-tick inputs: start, stop, reset, flow
// speed and experience mode. Every transition takes effect on the next tick.
type Controller struct {
	cfg   *config.Config
	rng   *rand.Rand
	plant *Plant

	inputs     Inputs
	experience string
	profiles   []systems.Profile
	targets    []float32

	// OnEvent is called after every run-level transition.
	OnEvent func(t telemetry.EventType)
}

// NewController creates a controller in idle mode for the given experience.
func NewController(cfg *config.Config, rng *rand.Rand, plant *Plant, experience string) *Controller {
	c := &Controller{
		cfg:   cfg,
		rng:   rng,
		plant: plant,
		inputs: Inputs{
			Mode:      components.ModeIdle,
			FlowSpeed: cfg.Derived.FlowSpeed32,
		},
	}
	c.applyExperience(experience)
	c.regenerate()
	return c
}

// Inputs returns the inputs for the next tick.
func (c *Controller) Inputs() Inputs { return c.inputs }

// Experience returns the active experience mode.
func (c *Controller) Experience() string { return c.experience }

// Profiles returns the fill profiles of the current run.
func (c *Controller) Profiles() []systems.Profile { return c.profiles }

// Targets returns the per-unit discharge targets.
func (c *Controller) Targets() []float32 { return c.targets }

// Discharging reports whether a run is in progress.
func (c *Controller) Discharging() bool {
	return c.inputs.Mode == components.ModeDischarging
}

// StartDischarge refills every silo and begins a new run.
func (c *Controller) StartDischarge() {
	c.regenerate()
	c.inputs.ResetTrigger++
	c.inputs.RunID++
	c.inputs.Mode = components.ModeDischarging
	slog.Info("run start", "run", c.inputs.RunID, "experience", c.experience, "flow_speed", c.inputs.FlowSpeed)
	c.emit(telemetry.EventRunStart)
}

// StopDischarge closes every outlet. Particles already in flight keep moving.
func (c *Controller) StopDischarge() {
	if c.inputs.Mode == components.ModeIdle {
		return
	}
	c.inputs.Mode = components.ModeIdle
	slog.Info("run stop", "run", c.inputs.RunID)
}

// Reset stops the run, restores the default flow speed and refills every silo.
func (c *Controller) Reset() {
	c.inputs.Mode = components.ModeIdle
	c.inputs.FlowSpeed = c.cfg.Derived.FlowSpeed32
	c.regenerate()
	c.inputs.ResetTrigger++
	slog.Info("reset", "experience", c.experience)
	c.emit(telemetry.EventReset)
}

// SetFlowSpeed sets the flow speed, clamped to the configured range.
func (c *Controller) SetFlowSpeed(v float32) {
	c.inputs.FlowSpeed = c.cfg.ClampFlow(v)
}

// SetExperience switches experience mode and refills every silo with the
// new mode's profiles. The run mode, run id and flow speed are kept, so a
// discharging plant keeps discharging from the fresh fill.
func (c *Controller) SetExperience(mode string) {
	c.applyExperience(mode)
	c.regenerate()
	c.inputs.ResetTrigger++
	slog.Info("experience", "experience", c.experience, "discharging", c.Discharging())
	c.emit(telemetry.EventReset)
}

func (c *Controller) applyExperience(mode string) {
	if mode != config.ModeOptimisation {
		mode = config.ModeNormal
	}
	c.experience = mode

	n := min(c.plant.UnitCount(), len(c.cfg.Units))
	c.targets = make([]float32, n)
	palettes := make([][]color.RGBA, n)
	for i := range n {
		c.targets[i] = c.cfg.Target(mode, i)
		palettes[i] = c.cfg.Palette(mode, i, c.cfg.Units[i].Layers)
	}
	c.plant.SetTargets(c.targets)
	c.plant.SetPalettes(palettes)
}

// regenerate draws new fill profiles for the active experience and
// rebuilds every particle store.
func (c *Controller) regenerate() {
	c.profiles = GenerateProfiles(c.cfg, c.experience, c.plant.UnitCount(), c.rng)
	c.plant.SetProfiles(c.profiles, c.rng)
}

// CheckAutoStop stops the run once every unit has reached its target.
// It returns true when it stopped the run.
func (c *Controller) CheckAutoStop(progress []components.Progress) bool {
	if c.inputs.Mode != components.ModeDischarging || len(progress) == 0 {
		return false
	}
	for _, p := range progress {
		if !p.TargetReached(c.cfg.Derived.Tolerance32) {
			return false
		}
	}
	c.inputs.Mode = components.ModeIdle
	slog.Info("auto stop", "run", c.inputs.RunID)
	c.emit(telemetry.EventAutoStop)
	return true
}

func (c *Controller) emit(t telemetry.EventType) {
	if c.OnEvent != nil {
		c.OnEvent(t)
	}
}

// GenerateProfiles returns n fill profiles for the given experience.
// Normal mode draws random fills and lot weights; optimisation mode uses
// the configured fixed profiles.
func GenerateProfiles(cfg *config.Config, mode string, n int, rng *rand.Rand) []systems.Profile {
	out := make([]systems.Profile, n)
	for i := range out {
		layers := 1
		if i < len(cfg.Units) {
			layers = cfg.Units[i].Layers
		}

		if mode == config.ModeOptimisation && i < len(cfg.Experience.FixedProfiles) {
			fp := cfg.Experience.FixedProfiles[i]
			w := make([]float32, len(fp.LayerWeights))
			for l, v := range fp.LayerWeights {
				w[l] = float32(v)
			}
			out[i] = systems.Profile{
				FillRatio:    float32(fp.FillRatio),
				LayerWeights: systems.NormalizeWeights(w, layers),
			}
			continue
		}

		r := cfg.Experience.Random
		w := make([]float32, layers)
		for l := range w {
			w[l] = float32(r.WeightMin + rng.Float64()*r.WeightRange)
		}
		out[i] = systems.Profile{
			FillRatio:    float32(r.FillMin + rng.Float64()*r.FillRange),
			LayerWeights: systems.NormalizeWeights(w, layers),
		}
	}
	return out
}
