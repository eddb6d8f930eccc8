package game

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/silodrop/components"
	"github.com/pthm-cable/silodrop/systems"
	"github.com/pthm-cable/silodrop/telemetry"
)

const testDT = float32(1.0 / 60.0)

// testSpecs places two units close to the belt drop so runs finish quickly.
func testSpecs() []UnitSpec {
	return []UnitSpec{
		{Name: "near", WorldX: 6, StartDelay: 0, Layers: 3, Target: 0.8,
			Profile: systems.Profile{FillRatio: 0.8, LayerWeights: []float32{0.46, 0.32, 0.22}}},
		{Name: "late", WorldX: 5.5, StartDelay: 1, Layers: 2, Target: 0.8,
			Profile: systems.Profile{FillRatio: 0.7, LayerWeights: []float32{0.5, 0.5}}},
	}
}

func newTestPlant(seed int64, perLayer int) *Plant {
	return NewPlant(testSpecs(), perLayer, rand.New(rand.NewSource(seed)))
}

// runPlant ticks p n times from elapsed start and returns the new elapsed.
func runPlant(p *Plant, start float32, n int, in Inputs) float32 {
	elapsed := start
	for i := 0; i < n; i++ {
		elapsed += testDT
		p.Tick(elapsed, testDT, in)
	}
	return elapsed
}

func discharging(trigger, run int64) Inputs {
	return Inputs{Mode: components.ModeDischarging, ResetTrigger: trigger, RunID: run, FlowSpeed: 1.5}
}

func TestPlant_UnitsAreEntities(t *testing.T) {
	p := newTestPlant(1, 20)
	require.Equal(t, 2, p.UnitCount())

	units := p.Units()
	assert.Equal(t, "near", units[0].Unit.Name)
	assert.Equal(t, float32(5.5), units[1].Placement.WorldX)
	assert.Equal(t, 60, units[0].Progress.Total)
	assert.Equal(t, 40, units[1].Progress.Total)
	assert.Equal(t, float32(0.8), p.Progress()[1].Target)
}

func TestPlant_StartDelayGatesOutlet(t *testing.T) {
	p := newTestPlant(2, 20)

	runPlant(p, 0, 30, discharging(1, 1))

	early, late := p.Result(0), p.Result(1)
	assert.Zero(t, early.Phases[systems.PhaseAtRest], "unit without delay should be flowing")
	assert.Equal(t, late.Total, late.Phases[systems.PhaseAtRest], "delayed unit should still be closed")

	// A new run id restarts the delay timer.
	elapsed := runPlant(p, 0.5, 40, discharging(1, 1))
	require.Zero(t, p.Result(1).Phases[systems.PhaseAtRest])
	runPlant(p, elapsed, 10, discharging(1, 2))
	assert.Zero(t, p.Result(1).Phases[systems.PhaseSiloFlow], "new run should close the delayed outlet again")
	assert.Positive(t, p.Result(1).Phases[systems.PhaseAtRest])
}

func TestPlant_ResetIsIdempotent(t *testing.T) {
	p := newTestPlant(3, 30)
	initial := make([][]systems.Particle, p.UnitCount())
	for i := range initial {
		initial[i] = append([]systems.Particle(nil), p.Store(i).Particles...)
	}

	elapsed := runPlant(p, 0, 900, discharging(1, 1))
	require.Greater(t, p.Bed().TotalHeight(), float32(0), "run should have deposited material")

	reset := Inputs{Mode: components.ModeIdle, ResetTrigger: 2, RunID: 1, FlowSpeed: 1.5}
	for i := 0; i < 2; i++ {
		elapsed = runPlant(p, elapsed, 1, reset)

		assert.Zero(t, p.Bed().MaxHeight())
		for u := range initial {
			if diff := cmp.Diff(initial[u], p.Store(u).Particles); diff != "" {
				t.Fatalf("unit %d not restored after reset tick %d (-want +got):\n%s", u, i, diff)
			}
			assert.Zero(t, p.Progress()[u].Captured)
			assert.Zero(t, p.Progress()[u].FillRatio)
		}
	}
}

func TestPlant_FillMonotoneAndBounded(t *testing.T) {
	p := newTestPlant(4, 30)

	var fills [][]float32
	p.SetCallbacks(Callbacks{OnFill: func(unit int, v float32) {
		for len(fills) <= unit {
			fills = append(fills, nil)
		}
		fills[unit] = append(fills[unit], v)
	}})

	captures := 0
	p.callbacks.OnCaptures = func(_, n int) { captures += n }

	prev := make([]int, p.UnitCount())
	elapsed := float32(0)
	for tick := 0; tick < 1500; tick++ {
		elapsed = runPlant(p, elapsed, 1, discharging(1, 1))
		for u, prog := range p.Progress() {
			require.GreaterOrEqual(t, prog.Captured, prev[u], "captured count dropped")
			require.Equal(t, p.Store(u).CountCaptured(), prog.Captured)
			require.InDelta(t, float32(prog.Captured)/float32(prog.Total), prog.FillRatio, 1e-6)
			prev[u] = prog.Captured
		}
	}

	assert.Greater(t, captures, 0)
	assert.Equal(t, p.Progress()[0].Captured+p.Progress()[1].Captured, captures)
	for u, series := range fills {
		require.NotEmpty(t, series)
		assert.Zero(t, series[0], "first report after a reset is zero")
		for i, v := range series {
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
			if i > 0 {
				assert.GreaterOrEqual(t, v, series[i-1], "unit %d fill went backwards", u)
			}
		}
	}
}

func TestPlant_LotsCapturedMatchProgress(t *testing.T) {
	p := newTestPlant(7, 30)
	runPlant(p, 0, 1500, discharging(1, 1))

	for u, prog := range p.Progress() {
		lots := p.LotsCaptured(u)
		require.Len(t, lots, p.Store(u).LayerCount())
		sum := 0
		for _, n := range lots {
			sum += n
		}
		assert.Equal(t, prog.Captured, sum, "unit %d", u)
	}
	assert.Greater(t, p.Progress()[0].Captured, 0)

	// A reset empties the blend.
	runPlant(p, 30, 1, discharging(2, 1))
	assert.Equal(t, []int{0, 0, 0}, p.LotsCaptured(0))
}

func TestPlant_DeterministicBed(t *testing.T) {
	run := func() []float32 {
		p := newTestPlant(9, 30)
		runPlant(p, 0, 900, discharging(1, 1))
		return p.Bed().Snapshot()
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("bed differs between seeded runs (-first +second):\n%s", diff)
	}
}

func TestPlant_SetProfilesRebuildsStores(t *testing.T) {
	p := newTestPlant(5, 10)
	p.SetProfiles([]systems.Profile{{FillRatio: 0.5}, {FillRatio: 0.9}}, rand.New(rand.NewSource(5)))

	assert.Equal(t, 30, p.Store(0).Len())
	assert.Equal(t, 20, p.Store(1).Len())
	assert.Equal(t, float32(0.9), p.Store(1).Profile.FillRatio)
	assert.Equal(t, float32(0.8), p.Progress()[0].Target, "targets survive a profile change")
}

type sinkCount struct{ calls int }

func (s *sinkCount) UpdateInstances(int, []components.Vec3) { s.calls++ }

func TestPlant_SyncsEveryLayer(t *testing.T) {
	p := newTestPlant(6, 10)
	sink := &sinkCount{}
	p.SetSink(1, sink)

	runPlant(p, 0, 3, discharging(1, 1))
	assert.Equal(t, 3*2, sink.calls)
}

// phaseLog records the phase sequence and the stepped counts.
type phaseLog struct {
	phases []string
	active map[int]int
}

func (l *phaseLog) StartPhase(name string) { l.phases = append(l.phases, name) }

func (l *phaseLog) UnitStepped(unit, active int) {
	l.phases = append(l.phases, "stepped")
	l.active[unit] = active
}

func TestPlant_TimerSeesEachUnitStep(t *testing.T) {
	p := newTestPlant(8, 10)
	log := &phaseLog{active: map[int]int{}}
	p.SetPhaseTimer(log)

	runPlant(p, 0, 1, discharging(1, 1))
	assert.Equal(t, []string{
		telemetry.PhaseBedReset,
		telemetry.PhaseIntegrate, "stepped", telemetry.PhaseReport, telemetry.PhaseRenderSync,
		telemetry.PhaseIntegrate, "stepped", telemetry.PhaseReport, telemetry.PhaseRenderSync,
	}, log.phases)
	assert.Equal(t, map[int]int{0: 30, 1: 20}, log.active, "nothing has left a silo after one tick")
}

func TestPlant_ProfilerReportsUnitThroughput(t *testing.T) {
	p := newTestPlant(9, 10)
	prof := telemetry.NewTickProfiler(8, []string{"near", "late"})
	p.SetPhaseTimer(prof)

	elapsed := float32(0)
	for range 4 {
		prof.StartTick()
		elapsed = runPlant(p, elapsed, 1, discharging(1, 1))
		prof.EndTick()
	}

	s := prof.Stats()
	require.Len(t, s.Units, 2)
	assert.Equal(t, "near", s.Units[0].Name)
	assert.Equal(t, 30.0, s.Units[0].Active)
	assert.Equal(t, 20.0, s.Units[1].Active)
	assert.Equal(t, 50.0, s.ActiveParticles)
}
