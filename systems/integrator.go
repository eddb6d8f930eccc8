package systems

import (
	"github.com/chewxy/math32"

	"github.com/pthm-cable/silodrop/components"
)

// StepInput carries everything one unit needs for a tick.
type StepInput struct {
	Elapsed   float32 // seconds since the host clock started; drives the belt pulse
	DT        float32 // seconds since the previous tick
	FlowSpeed float32 // multiplies gravity and every velocity integration
	Enabled   bool    // silo outlet open: mode is discharging and the start delay has passed
	Frame     LocalFrame
}

// StepResult aggregates a unit's particles after a tick.
type StepResult struct {
	Total       int
	Captured    int // settled in the bed, including earlier ticks
	Discharged  int // captured or retired
	NewCaptures int // captured during this tick
	Phases      PhaseCounts
}

// Integrator advances particles through the silo, belt and container regimes.
// It holds no particle state; everything it mutates lives in the store and bed.
type Integrator struct {
	Mapper ContainerMapper
}

// NewIntegrator creates an integrator for the given container.
func NewIntegrator(m ContainerMapper) *Integrator {
	return &Integrator{Mapper: m}
}

// stepContext is the per-unit, per-tick state shared by the phase functions.
type stepContext struct {
	in      StepInput
	lm      Landmarks
	bed     *BedModel
	gravity float32 // velocity change per tick
	advance float32 // position scale per unit velocity
	result  *StepResult
}

// Step advances every particle of s by one tick.
func (it *Integrator) Step(s *ParticleStore, bed *BedModel, in StepInput) StepResult {
	res := StepResult{Total: s.Len()}
	ctx := it.newContext(bed, in, &res)

	for i := range s.Particles {
		p := &s.Particles[i]
		ctx.stepParticle(p)
		res.Phases[p.Phase]++
		switch p.Phase {
		case PhaseCaptured:
			res.Captured++
			res.Discharged++
		case PhaseRetired:
			res.Discharged++
		}
	}
	return res
}

// StepParticle advances a single particle. Exposed for regime-level tests.
func (it *Integrator) StepParticle(p *Particle, bed *BedModel, in StepInput) {
	var res StepResult
	ctx := it.newContext(bed, in, &res)
	ctx.stepParticle(p)
}

func (it *Integrator) newContext(bed *BedModel, in StepInput, res *StepResult) stepContext {
	return stepContext{
		in:      in,
		lm:      in.Frame.LocalLandmarks(it.Mapper),
		bed:     bed,
		gravity: Gravity * in.FlowSpeed * in.DT,
		advance: in.DT * in.FlowSpeed,
		result:  res,
	}
}

func (c *stepContext) stepParticle(p *Particle) {
	switch p.Phase {
	case PhaseAtRest:
		c.stepAtRest(p)
	case PhaseSiloFlow:
		c.stepSiloFlow(p)
	case PhaseFreeFall:
		c.stepFreeFall(p)
	case PhaseOnBelt:
		c.stepOnBelt(p)
	case PhaseFallingToContainer:
		c.stepFallingToContainer(p)
	case PhaseCaptured, PhaseRetired:
		// terminal until reset
	}
}

// stepAtRest opens the particle to flow once the outlet is enabled.
func (c *stepContext) stepAtRest(p *Particle) {
	if !c.in.Enabled {
		p.Vel = components.Vec3{}
		return
	}
	p.Phase = PhaseSiloFlow
	c.stepSiloFlow(p)
}

// stepSiloFlow applies gravity with funnel damping and radial pull, then
// keeps the particle inside the wall radius for its height.
func (c *stepContext) stepSiloFlow(p *Particle) {
	if !c.in.Enabled {
		// Outlet closed: material above the outlet stops at once.
		p.Vel = components.Vec3{}
		p.Phase = PhaseAtRest
		return
	}

	flow := c.in.FlowSpeed
	p.Vel.Y += c.gravity

	r := p.Pos.RadiusXZ()
	zone := ZoneFactorWall
	switch {
	case r < activeRadius(p.Pos.Y):
		zone = ZoneFactorCore
	case r < SlowZoneRadius:
		zone = ZoneFactorMid
	}
	p.Vel = p.Vel.Scale(ZoneDampingBase + zone*ZoneDampingGain)

	if p.Pos.Y < 0 {
		heightBias := max(HeightBiasMin, HeightBiasMax-(p.Pos.Y-ConeBottomY)/HeightBiasSpan)
		pull := RadialPull * heightBias * flow
		p.Vel.X -= p.Pos.X * pull * c.in.DT
		p.Vel.Z -= p.Pos.Z * pull * c.in.DT
	}

	p.Pos = p.Pos.AddScaled(p.Vel, c.advance)

	dist := p.Pos.RadiusXZ()
	limit := max(wallRadius(p.Pos.Y)-WallClampMargin, 0)
	if dist > limit && dist > 1e-6 {
		s := limit / dist
		p.Pos.X *= s
		p.Pos.Z *= s
		p.Vel.X *= WallTangentialKeep
		p.Vel.Z *= WallTangentialKeep
	}

	if p.Pos.Y < OutletExitY {
		p.Phase = PhaseFreeFall
	}
}

// stepFreeFall drops the particle until it meets the belt or passes the
// belt end.
func (c *stepContext) stepFreeFall(p *Particle) {
	if c.retireIfEscaped(p) {
		return
	}
	c.integrate(p)
	switch {
	case p.Pos.X >= c.lm.BeltDropStartX:
		p.Phase = PhaseFallingToContainer
		c.release(p)
		c.contain(p)
	case p.Pos.Y <= ConveyorSurfaceY:
		p.Phase = PhaseOnBelt
		c.ride(p)
	}
	c.sweep(p)
}

// stepOnBelt carries the particle along the conveyor surface.
func (c *stepContext) stepOnBelt(p *Particle) {
	if c.retireIfEscaped(p) {
		return
	}
	c.integrate(p)
	switch {
	case p.Pos.X >= c.lm.BeltDropStartX:
		p.Phase = PhaseFallingToContainer
		c.release(p)
		c.contain(p)
	case p.Pos.Y <= ConveyorSurfaceY:
		c.ride(p)
	default:
		p.Phase = PhaseFreeFall
	}
	c.sweep(p)
}

// stepFallingToContainer funnels the released particle into the container
// and settles it on the bed.
func (c *stepContext) stepFallingToContainer(p *Particle) {
	if c.retireIfEscaped(p) {
		return
	}
	c.integrate(p)
	if p.Pos.X >= c.lm.BeltDropStartX {
		c.release(p)
	}
	c.contain(p)
	c.sweep(p)
}

// integrate applies gravity and advances the position.
func (c *stepContext) integrate(p *Particle) {
	p.Vel.Y += c.gravity
	p.Pos = p.Pos.AddScaled(p.Vel, c.advance)
}

// beltPulse returns the packet modulation in [PulseBase, PulseBase+PulseGain].
func (c *stepContext) beltPulse(p *Particle) float32 {
	wave := math32.Sin(c.in.Elapsed*PulseFrequency - p.Pos.X*PulseSpatialFreq + p.PacketPhase)
	return PulseBase + PulseGain*max(0, wave)
}

// ride snaps the particle to the belt and eases it toward its packet speed.
func (c *stepContext) ride(p *Particle) {
	pulse := c.beltPulse(p)
	target := BeltTravelSpeed * c.in.FlowSpeed * p.BeltSpeedFactor * pulse

	p.Pos.Y = ConveyorSurfaceY
	p.Vel.Y = 0
	p.Vel.X = lerp(p.Vel.X, target, BeltSpeedBlend)
	p.Vel.Z = p.LateralBias * (LateralBase + LateralGain*pulse)
	p.Pos.Z = clampFloat(p.Pos.Z, -BeltHalfWidthZ, BeltHalfWidthZ)
}

// release pushes a particle off the belt end and steers it toward z=0.
func (c *stepContext) release(p *Particle) {
	if p.Pos.Y > ConveyorSurfaceY-ReleaseDrop {
		p.Pos.Y = ConveyorSurfaceY - ReleaseDrop
	}
	p.Vel.X = max(p.Vel.X, ReleaseMinSpeed*c.in.FlowSpeed)
	p.Vel.Z += -p.Pos.Z * ReleaseCentering * c.in.DT
	p.Vel.Z *= ReleaseLateralDamp
}

// contain bounces the particle off the container walls and captures it
// when it reaches the bed surface.
func (c *stepContext) contain(p *Particle) {
	lm := c.lm
	if p.Pos.X < lm.ContainerMinX-ContainerEntryPad {
		return
	}

	inside := p.Pos.X >= lm.ContainerMinX && p.Pos.X <= lm.ContainerMaxX &&
		math32.Abs(p.Pos.Z) <= ContainerHalfZ

	minX := lm.ContainerMinX + ContainerWallPad
	maxX := lm.ContainerMaxX - ContainerWallPad
	maxZ := ContainerHalfZ - ContainerWallPad

	if p.Pos.X < minX {
		p.Pos.X = minX
		p.Vel.X = math32.Abs(p.Vel.X) * ContainerWallBounce
	} else if p.Pos.X > maxX {
		p.Pos.X = maxX
		p.Vel.X *= -ContainerWallBounce
	}
	if p.Pos.Z < -maxZ {
		p.Pos.Z = -maxZ
		p.Vel.Z *= -ContainerWallBounce
	} else if p.Pos.Z > maxZ {
		p.Pos.Z = maxZ
		p.Vel.Z *= -ContainerWallBounce
	}

	if !inside {
		return
	}

	bed := c.bed
	impact := bed.Mapper.WorldToCell(c.in.Frame.ToWorldX(p.Pos.X), p.Pos.Z)
	surface := ContainerFloorY + bed.HeightAt(impact)
	if p.Pos.Y > surface+CaptureTolerance {
		return
	}

	land := bed.FindStableCell(impact)
	h := bed.Deposit(land, HeightPerCapture)
	wx, wz := bed.Mapper.CellToWorld(land)
	p.Pos = components.Vec3{X: c.in.Frame.ToLocalX(wx), Y: ContainerFloorY + h, Z: wz}
	p.Vel = components.Vec3{}
	p.Phase = PhaseCaptured
	c.result.NewCaptures++
}

// sweep retires a particle still outside every volume after wall
// handling and capture have run for the tick.
func (c *stepContext) sweep(p *Particle) {
	if p.Phase != PhaseCaptured {
		c.retireIfEscaped(p)
	}
}

// retireIfEscaped parks particles that left every containment volume.
func (c *stepContext) retireIfEscaped(p *Particle) bool {
	if p.Pos.X <= c.lm.BeltExitX && p.Pos.Y >= ContainerFloorY-EscapeDepth {
		return false
	}
	p.Pos = components.Vec3{Y: SentinelY}
	p.Vel = components.Vec3{}
	p.Phase = PhaseRetired
	return true
}
