package systems

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/silodrop/components"
)

const testDT = float32(1.0 / 60.0)

// nearContainerFrame places the silo close to the belt drop so runs finish quickly.
var nearContainerFrame = LocalFrame{WorldX: 6}

func stepInput(flow float32, enabled bool, frame LocalFrame) StepInput {
	return StepInput{DT: testDT, FlowSpeed: flow, Enabled: enabled, Frame: frame}
}

func TestIntegrator_ClosedOutletHoldsSilo(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)
	s := newTestStore(5, 3, 50)

	for i := 0; i < 30; i++ {
		it.Step(s, bed, stepInput(1, false, nearContainerFrame))
	}
	for _, p := range s.Particles {
		require.Equal(t, p.Initial, p.Pos)
		require.Equal(t, PhaseAtRest, p.Phase)
	}
}

func TestIntegrator_StopFreezesSiloButNotInFlight(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)

	inSilo := Particle{Pos: components.Vec3{Y: -0.5}, Vel: components.Vec3{Y: -0.4}, Phase: PhaseSiloFlow}
	falling := Particle{Pos: components.Vec3{Y: -2}, Vel: components.Vec3{Y: -0.4}, Phase: PhaseFreeFall}

	in := stepInput(1, false, nearContainerFrame)
	it.StepParticle(&inSilo, bed, in)
	it.StepParticle(&falling, bed, in)

	assert.Equal(t, PhaseAtRest, inSilo.Phase)
	assert.True(t, inSilo.Vel.IsZero())
	assert.Equal(t, float32(-0.5), inSilo.Pos.Y)

	assert.Equal(t, PhaseFreeFall, falling.Phase)
	assert.Less(t, falling.Pos.Y, float32(-2))
}

func TestIntegrator_GravityLinearInFlowSpeed(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)

	dv := func(flow float32) float32 {
		p := Particle{Pos: components.Vec3{Y: OutletExitY - 0.1}, Phase: PhaseFreeFall}
		it.StepParticle(&p, bed, stepInput(flow, true, nearContainerFrame))
		return p.Vel.Y
	}

	base := dv(0.5)
	assert.InDelta(t, Gravity*0.5*testDT, base, 1e-7)
	assert.InDelta(t, 2*base, dv(1.0), 1e-7)
}

func TestIntegrator_SiloParticleExitsOutlet(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)
	p := Particle{Pos: components.Vec3{Y: ConeBottomY + 0.02}, Phase: PhaseAtRest}

	in := stepInput(1.5, true, nearContainerFrame)
	for i := 0; i < 120 && p.Phase.InSilo(); i++ {
		it.StepParticle(&p, bed, in)
		if r := p.Pos.RadiusXZ(); p.Phase.InSilo() && r > wallRadius(p.Pos.Y) {
			t.Fatalf("particle left the wall: r=%.3f at y=%.3f", r, p.Pos.Y)
		}
	}
	assert.Equal(t, PhaseFreeFall, p.Phase)
	assert.Less(t, p.Pos.Y, OutletExitY)
}

func TestIntegrator_LandsOnBeltAndRides(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)
	p := Particle{
		Pos:             components.Vec3{Y: ConveyorSurfaceY + 0.001},
		Vel:             components.Vec3{Y: -1},
		Phase:           PhaseFreeFall,
		BeltSpeedFactor: 1,
		LateralBias:     0.01,
	}

	in := stepInput(1, true, nearContainerFrame)
	it.StepParticle(&p, bed, in)
	require.Equal(t, PhaseOnBelt, p.Phase)
	assert.Equal(t, ConveyorSurfaceY, p.Pos.Y)
	assert.Equal(t, float32(0), p.Vel.Y)
	assert.Greater(t, p.Vel.X, float32(0))

	for i := 0; i < 20; i++ {
		it.StepParticle(&p, bed, in)
		require.Equal(t, PhaseOnBelt, p.Phase)
		assert.LessOrEqual(t, p.Pos.Z, BeltHalfWidthZ)
		assert.GreaterOrEqual(t, p.Pos.Z, -BeltHalfWidthZ)
	}
}

func TestIntegrator_RetiresPastBeltExit(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)
	frame := LocalFrame{}

	for _, phase := range []Phase{PhaseFreeFall, PhaseOnBelt, PhaseFallingToContainer} {
		p := Particle{Pos: components.Vec3{X: BeltExitWorldX + 0.05, Y: ConveyorSurfaceY}, Vel: components.Vec3{X: 1}, Phase: phase}
		it.StepParticle(&p, bed, stepInput(1, true, frame))

		assert.Equal(t, PhaseRetired, p.Phase, "from %s", phase)
		assert.Equal(t, components.Vec3{Y: SentinelY}, p.Pos)
		assert.True(t, p.Vel.IsZero())
	}

	deep := Particle{Pos: components.Vec3{X: 2, Y: ContainerFloorY - EscapeDepth - 0.1}, Phase: PhaseFreeFall}
	it.StepParticle(&deep, bed, stepInput(1, true, frame))
	assert.Equal(t, PhaseRetired, deep.Phase)

	// Retired particles stay parked.
	it.StepParticle(&deep, bed, stepInput(1, true, frame))
	assert.Equal(t, components.Vec3{Y: SentinelY}, deep.Pos)
}

func TestIntegrator_CaptureRelaxesOnPile(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)
	frame := LocalFrame{}

	drop := func(c Cell) Particle {
		wx, wz := it.Mapper.CellToWorld(c)
		p := Particle{Pos: components.Vec3{X: wx, Y: ContainerFloorY + bed.HeightAt(c) + 0.01, Z: wz}, Phase: PhaseFallingToContainer}
		res := StepResult{}
		ctx := it.newContext(bed, stepInput(1, true, frame), &res)
		ctx.stepParticle(&p)
		require.Equal(t, 1, res.NewCaptures)
		return p
	}

	peak := Cell{IX: 15, IZ: 10}
	p := drop(peak)
	require.Equal(t, PhaseCaptured, p.Phase)
	assert.InDelta(t, ContainerFloorY+HeightPerCapture, p.Pos.Y, 1e-6)
	assert.InDelta(t, HeightPerCapture, bed.HeightAt(peak), 1e-7)

	for i := 0; i < 20; i++ {
		bed.Deposit(peak, HeightPerCapture)
	}
	p = drop(peak)
	wx, wz := it.Mapper.CellToWorld(Cell{IX: 14, IZ: 10})
	assert.InDelta(t, wx, p.Pos.X, 1e-5)
	assert.InDelta(t, wz, p.Pos.Z, 1e-5)
	assert.InDelta(t, HeightPerCapture, bed.HeightAt(Cell{IX: 14, IZ: 10}), 1e-7)
}

func TestIntegrator_ContainerWallsReflect(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)
	p := Particle{
		Pos:   components.Vec3{X: ContainerMaxWorldX - 0.01, Y: ConveyorSurfaceY - 0.5, Z: 0},
		Vel:   components.Vec3{X: 1},
		Phase: PhaseFallingToContainer,
	}
	it.StepParticle(&p, bed, stepInput(1, true, LocalFrame{}))

	assert.Equal(t, PhaseFallingToContainer, p.Phase)
	assert.InDelta(t, ContainerMaxWorldX-ContainerWallPad, p.Pos.X, 1e-6)
	assert.Less(t, p.Vel.X, float32(0))
}

func TestIntegrator_LongTickClampsAtFarWall(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)
	p := Particle{
		Pos:   components.Vec3{X: 9.7, Y: ConveyorSurfaceY - 0.5, Z: 0},
		Vel:   components.Vec3{X: 2},
		Phase: PhaseFallingToContainer,
	}
	in := stepInput(1.5, true, LocalFrame{})
	in.DT = 0.1
	it.StepParticle(&p, bed, in)

	require.Equal(t, PhaseFallingToContainer, p.Phase)
	assert.InDelta(t, ContainerMaxWorldX-ContainerWallPad, p.Pos.X, 1e-6)
	assert.Less(t, p.Vel.X, float32(0))
}

// runUnit drives one store against the bed and checks per-tick invariants.
func runUnit(t *testing.T, seed int64, ticks int) (*ParticleStore, *BedModel) {
	t.Helper()
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)
	bed.ResetIfVersionChanged(0)
	s := newTestStore(seed, 3, 60, 0.46, 0.32, 0.22)
	layers := make([]uint8, s.Len())
	for i, p := range s.Particles {
		layers[i] = p.Layer
	}

	prevBed := bed.Snapshot()
	prevCaptured := 0
	for tick := 0; tick < ticks; tick++ {
		in := stepInput(1.5, true, nearContainerFrame)
		in.Elapsed = float32(tick) * testDT
		res := it.Step(s, bed, in)

		if res.Captured < prevCaptured {
			t.Fatalf("tick %d: captured dropped from %d to %d", tick, prevCaptured, res.Captured)
		}
		if res.Captured != s.CountCaptured() || res.Discharged != s.CountDischarged() {
			t.Fatalf("tick %d: result %+v disagrees with store", tick, res)
		}
		prevCaptured = res.Captured

		for i, h := range bed.Heights() {
			if h < prevBed[i] {
				t.Fatalf("tick %d: cell %d lowered from %f to %f", tick, i, prevBed[i], h)
			}
		}
		prevBed = bed.Snapshot()
	}

	for i, p := range s.Particles {
		if p.Layer != layers[i] {
			t.Fatalf("particle %d changed layer", i)
		}
	}
	return s, bed
}

func TestIntegrator_FullRunInvariants(t *testing.T) {
	s, bed := runUnit(t, 11, 1200)

	assert.Greater(t, s.CountCaptured(), 0)
	assert.Greater(t, bed.TotalHeight(), float32(0))
	assert.InDelta(t, float32(s.CountCaptured())*HeightPerCapture, bed.TotalHeight(), 1e-3)
}

func TestIntegrator_Deterministic(t *testing.T) {
	s1, bed1 := runUnit(t, 21, 600)
	s2, bed2 := runUnit(t, 21, 600)

	if diff := cmp.Diff(bed1.Snapshot(), bed2.Snapshot()); diff != "" {
		t.Errorf("bed differs between identical runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(s1.Particles, s2.Particles); diff != "" {
		t.Errorf("particles differ between identical runs (-first +second):\n%s", diff)
	}
}

func TestIntegrator_StepCountsPhases(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	bed := NewBedModel(it.Mapper)
	s := NewParticleStore(2, 10, Profile{}, rand.New(rand.NewSource(1)))

	res := it.Step(s, bed, stepInput(1, false, nearContainerFrame))
	assert.Equal(t, 20, res.Total)
	assert.Equal(t, 20, res.Phases[PhaseAtRest])
	assert.Equal(t, 0, res.Discharged)
}
