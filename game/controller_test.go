package game

import (
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/silodrop/components"
	"github.com/pthm-cable/silodrop/config"
	"github.com/pthm-cable/silodrop/telemetry"
)

func init() {
	config.MustInit("")
}

// testConfig returns the defaults with small silos placed near the belt drop.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Sim.ParticlesPerLayer = 40
	cfg.Experience.Mode = config.ModeNormal
	cfg.Units = []config.UnitConfig{
		{Name: "a", WorldX: 6, StartDelay: 0, Layers: 3},
		{Name: "b", WorldX: 5.5, StartDelay: 0.5, Layers: 3},
	}
	return cfg
}

func newTestController(t *testing.T, mode string) (*Controller, *Plant, *[]telemetry.EventType) {
	t.Helper()
	cfg := testConfig(t)
	rng := rand.New(rand.NewSource(1))
	specs := make([]UnitSpec, len(cfg.Units))
	for i, u := range cfg.Units {
		specs[i] = UnitSpec{Name: u.Name, WorldX: float32(u.WorldX), StartDelay: float32(u.StartDelay), Layers: u.Layers}
	}
	plant := NewPlant(specs, cfg.Sim.ParticlesPerLayer, rng)
	c := NewController(cfg, rng, plant, mode)

	var events []telemetry.EventType
	c.OnEvent = func(e telemetry.EventType) { events = append(events, e) }
	return c, plant, &events
}

func TestController_StartStopReset(t *testing.T) {
	c, _, events := newTestController(t, config.ModeNormal)

	in := c.Inputs()
	assert.Equal(t, components.ModeIdle, in.Mode)
	assert.InDelta(t, 0.45, in.FlowSpeed, 1e-6)

	c.StartDischarge()
	in = c.Inputs()
	assert.True(t, c.Discharging())
	assert.Equal(t, int64(1), in.ResetTrigger)
	assert.Equal(t, int64(1), in.RunID)

	c.SetFlowSpeed(1.2)
	c.StopDischarge()
	in = c.Inputs()
	assert.Equal(t, components.ModeIdle, in.Mode)
	assert.Equal(t, int64(1), in.ResetTrigger, "stop does not reset")
	assert.InDelta(t, 1.2, in.FlowSpeed, 1e-6)

	c.Reset()
	in = c.Inputs()
	assert.Equal(t, int64(2), in.ResetTrigger)
	assert.Equal(t, int64(1), in.RunID, "reset keeps the run id")
	assert.InDelta(t, 0.45, in.FlowSpeed, 1e-6, "reset restores the default flow")

	assert.Equal(t, []telemetry.EventType{telemetry.EventRunStart, telemetry.EventReset}, *events)
}

func TestController_FlowSpeedClamped(t *testing.T) {
	c, _, _ := newTestController(t, config.ModeNormal)

	c.SetFlowSpeed(9)
	assert.InDelta(t, 1.5, c.Inputs().FlowSpeed, 1e-6)
	c.SetFlowSpeed(0.01)
	assert.InDelta(t, 0.3, c.Inputs().FlowSpeed, 1e-6)
}

func TestController_Experience(t *testing.T) {
	c, plant, _ := newTestController(t, config.ModeOptimisation)

	assert.Equal(t, config.ModeOptimisation, c.Experience())
	require.Len(t, c.Targets(), 2)
	assert.InDelta(t, 2.0/3.0, c.Targets()[0], 1e-5)
	assert.InDelta(t, 1.0/6.0, c.Targets()[1], 1e-5)
	assert.InDelta(t, 0.86, c.Profiles()[0].FillRatio, 1e-6)
	assert.InDelta(t, 0.46, c.Profiles()[0].LayerWeights[0], 1e-5)

	units := plant.Units()
	assert.Equal(t, c.Targets()[1], units[1].Progress.Target)
	assert.Equal(t, color255(0xFF, 0xD7, 0x00), units[0].Palette.Colors[0])

	c.SetExperience("anything else")
	assert.Equal(t, config.ModeNormal, c.Experience())
	for _, target := range c.Targets() {
		assert.InDelta(t, 0.8, target, 1e-6)
	}
	for _, p := range c.Profiles() {
		assert.GreaterOrEqual(t, p.FillRatio, float32(0.6))
		assert.LessOrEqual(t, p.FillRatio, float32(0.88))
	}
	assert.Equal(t, int64(1), c.Inputs().ResetTrigger, "switching experience resets")
}

func TestController_ExperienceKeepsRunState(t *testing.T) {
	c, _, events := newTestController(t, config.ModeNormal)

	c.SetFlowSpeed(1.1)
	c.StartDischarge()
	before := c.Inputs()

	c.SetExperience(config.ModeOptimisation)
	in := c.Inputs()
	assert.True(t, c.Discharging(), "switching experience keeps the run going")
	assert.InDelta(t, 1.1, in.FlowSpeed, 1e-6)
	assert.Equal(t, before.RunID, in.RunID)
	assert.Equal(t, before.ResetTrigger+1, in.ResetTrigger)
	assert.InDelta(t, 0.86, c.Profiles()[0].FillRatio, 1e-6)

	c.StopDischarge()
	c.SetExperience(config.ModeNormal)
	assert.False(t, c.Discharging(), "an idle plant stays idle")
	assert.InDelta(t, 1.1, c.Inputs().FlowSpeed, 1e-6)

	assert.Equal(t, []telemetry.EventType{
		telemetry.EventRunStart, telemetry.EventReset, telemetry.EventReset,
	}, *events)
}

func TestController_AutoStop(t *testing.T) {
	c, _, events := newTestController(t, config.ModeOptimisation)

	progress := []components.Progress{
		{FillRatio: 0.66, Target: 2.0 / 3.0},
		{FillRatio: 0.10, Target: 1.0 / 6.0},
	}

	assert.False(t, c.CheckAutoStop(progress), "idle controller never auto-stops")

	c.StartDischarge()
	assert.False(t, c.CheckAutoStop(progress))
	assert.True(t, c.Discharging())

	progress[1].FillRatio = 0.158 // within tolerance
	assert.True(t, c.CheckAutoStop(progress))
	assert.False(t, c.Discharging())
	assert.Contains(t, *events, telemetry.EventAutoStop)
}

func TestGenerateProfiles_NormalWeightsNormalised(t *testing.T) {
	cfg := testConfig(t)
	profiles := GenerateProfiles(cfg, config.ModeNormal, 2, rand.New(rand.NewSource(3)))

	require.Len(t, profiles, 2)
	for _, p := range profiles {
		require.Len(t, p.LayerWeights, 3)
		var sum float32
		for _, w := range p.LayerWeights {
			assert.Positive(t, w)
			sum += w
		}
		assert.InDelta(t, 1, sum, 1e-5)
	}
}

func color255(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
