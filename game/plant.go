package game

import (
	"image/color"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/silodrop/components"
	"github.com/pthm-cable/silodrop/systems"
	"github.com/pthm-cable/silodrop/telemetry"
)

// Inputs are the external controls read at the start of every tick.
type Inputs struct {
	Mode         components.Mode
	ResetTrigger int64 // any change resets particles, reporters and the bed
	RunID        int64 // any change restarts the start-delay timer
	FlowSpeed    float32
}

// Callbacks receive plant output. Any field may be nil.
type Callbacks struct {
	OnFill      func(unit int, ratio float32)
	OnMilestone func(m systems.Milestone)
	OnCaptures  func(unit, n int)
}

// PhaseTimer is notified as the tick moves between phases, and after each
// unit's integrate step with the number of particles it moved.
type PhaseTimer interface {
	StartPhase(phase string)
	UnitStepped(unit, active int)
}

// UnitSpec describes one silo unit at plant creation.
type UnitSpec struct {
	Name       string
	WorldX     float32
	StartDelay float32
	Layers     int
	Profile    systems.Profile
	Colors     []color.RGBA
	Target     float32
}

// Plant owns every silo unit, the shared container bed and the per-unit
// particle stores. Units are ECS entities; their particle stores and
// reporters live alongside, keyed by Unit.Index.
type Plant struct {
	world *ecs.World

	unitMapper *ecs.Map4[components.Unit, components.Placement, components.Palette, components.Progress]
	unitFilter *ecs.Filter4[components.Unit, components.Placement, components.Palette, components.Progress]
	progMap    *ecs.Map[components.Progress]
	paletteMap *ecs.Map[components.Palette]
	entities   []ecs.Entity

	perLayer  int
	layers    []int
	stores    []*systems.ParticleStore
	reporters []*systems.ProgressReporter
	syncs     []*systems.RenderSync
	results   []systems.StepResult

	bed        *systems.BedModel
	integrator *systems.Integrator
	callbacks  Callbacks
	timer      PhaseTimer

	primed    bool
	lastReset int64
	lastRunID int64
	runStart  float32
}

// NewPlant creates the units in specs with perLayer particles per layer.
func NewPlant(specs []UnitSpec, perLayer int, rng *rand.Rand) *Plant {
	world := ecs.NewWorld()
	mapper := systems.DefaultContainerMapper()

	p := &Plant{
		world:      world,
		unitMapper: ecs.NewMap4[components.Unit, components.Placement, components.Palette, components.Progress](world),
		unitFilter: ecs.NewFilter4[components.Unit, components.Placement, components.Palette, components.Progress](world),
		progMap:    ecs.NewMap[components.Progress](world),
		paletteMap: ecs.NewMap[components.Palette](world),
		perLayer:   perLayer,
		bed:        systems.NewBedModel(mapper),
		integrator: systems.NewIntegrator(mapper),
	}

	for i, spec := range specs {
		unit := components.Unit{Index: i, Name: spec.Name}
		place := components.Placement{WorldX: spec.WorldX, StartDelay: spec.StartDelay}
		palette := components.Palette{Colors: spec.Colors}
		store := systems.NewParticleStore(spec.Layers, perLayer, spec.Profile, rng)
		prog := components.Progress{Total: store.Len(), Target: spec.Target}

		p.entities = append(p.entities, p.unitMapper.NewEntity(&unit, &place, &palette, &prog))
		p.layers = append(p.layers, spec.Layers)
		p.stores = append(p.stores, store)
		p.reporters = append(p.reporters, p.newReporter(i))
		p.syncs = append(p.syncs, systems.NewRenderSync(nil))
		p.results = append(p.results, systems.StepResult{Total: store.Len()})
	}

	return p
}

func (p *Plant) newReporter(unit int) *systems.ProgressReporter {
	r := systems.NewProgressReporter(unit)
	r.OnFill = func(v float32) {
		if p.callbacks.OnFill != nil {
			p.callbacks.OnFill(unit, v)
		}
	}
	r.OnMilestone = func(m systems.Milestone) {
		if p.callbacks.OnMilestone != nil {
			p.callbacks.OnMilestone(m)
		}
	}
	return r
}

// SetCallbacks replaces the output callbacks.
func (p *Plant) SetCallbacks(cb Callbacks) {
	p.callbacks = cb
}

// SetPhaseTimer installs a timer notified at every phase boundary.
func (p *Plant) SetPhaseTimer(t PhaseTimer) {
	p.timer = t
}

// SetSink routes unit's render sync to sink.
func (p *Plant) SetSink(unit int, sink systems.InstanceSink) {
	p.syncs[unit] = systems.NewRenderSync(sink)
}

// SetProfiles regenerates every unit's particles for new fill profiles.
// The bed is left alone; callers bump the reset trigger alongside.
func (p *Plant) SetProfiles(profiles []systems.Profile, rng *rand.Rand) {
	for i := range p.stores {
		var prof systems.Profile
		if i < len(profiles) {
			prof = profiles[i]
		}
		p.stores[i] = systems.NewParticleStore(p.layers[i], p.perLayer, prof, rng)
		p.results[i] = systems.StepResult{Total: p.stores[i].Len()}
		prog := p.progMap.Get(p.entities[i])
		*prog = components.Progress{Total: p.stores[i].Len(), Target: prog.Target}
	}
}

// SetTargets updates each unit's discharge target.
func (p *Plant) SetTargets(targets []float32) {
	for i, e := range p.entities {
		if i < len(targets) {
			p.progMap.Get(e).Target = targets[i]
		}
	}
}

// SetPalettes updates each unit's layer colours.
func (p *Plant) SetPalettes(palettes [][]color.RGBA) {
	for i, e := range p.entities {
		if i < len(palettes) {
			p.paletteMap.Get(e).Colors = palettes[i]
		}
	}
}

func (p *Plant) phase(name string) {
	if p.timer != nil {
		p.timer.StartPhase(name)
	}
}

// Tick advances every unit by dt. elapsed is the host clock in seconds.
func (p *Plant) Tick(elapsed, dt float32, in Inputs) {
	p.phase(telemetry.PhaseBedReset)
	p.bed.ResetIfVersionChanged(in.ResetTrigger)
	if !p.primed || in.ResetTrigger != p.lastReset {
		for i := range p.stores {
			p.stores[i].Reset()
			p.reporters[i].Reset()
		}
		p.lastReset = in.ResetTrigger
	}
	if !p.primed || in.RunID != p.lastRunID {
		p.runStart = elapsed
		p.lastRunID = in.RunID
	}
	p.primed = true

	query := p.unitFilter.Query()
	for query.Next() {
		unit, place, _, prog := query.Get()
		i := unit.Index
		frame := systems.LocalFrame{WorldX: place.WorldX}

		p.phase(telemetry.PhaseIntegrate)
		res := p.integrator.Step(p.stores[i], p.bed, systems.StepInput{
			Elapsed:   elapsed,
			DT:        dt,
			FlowSpeed: in.FlowSpeed,
			Enabled:   in.Mode == components.ModeDischarging && elapsed-p.runStart >= place.StartDelay,
			Frame:     frame,
		})
		p.results[i] = res
		if p.timer != nil {
			p.timer.UnitStepped(i, res.Total-res.Discharged)
		}

		p.phase(telemetry.PhaseReport)
		fill, _ := p.reporters[i].Observe(res)
		prog.Total = res.Total
		prog.Captured = res.Captured
		prog.Discharged = res.Discharged
		prog.FillRatio = fill
		if res.NewCaptures > 0 && p.callbacks.OnCaptures != nil {
			p.callbacks.OnCaptures(i, res.NewCaptures)
		}

		p.phase(telemetry.PhaseRenderSync)
		p.syncs[i].Sync(p.stores[i], components.Vec3{X: place.WorldX})
	}
}

// UnitView is a read-only copy of one unit's components.
type UnitView struct {
	Unit      components.Unit
	Placement components.Placement
	Palette   components.Palette
	Progress  components.Progress
}

// Units returns a snapshot of every unit, ordered by index.
func (p *Plant) Units() []UnitView {
	out := make([]UnitView, len(p.entities))
	query := p.unitFilter.Query()
	for query.Next() {
		unit, place, palette, prog := query.Get()
		out[unit.Index] = UnitView{Unit: *unit, Placement: *place, Palette: *palette, Progress: *prog}
	}
	return out
}

// Progress returns the progress of every unit, ordered by index.
func (p *Plant) Progress() []components.Progress {
	out := make([]components.Progress, len(p.entities))
	for i, e := range p.entities {
		out[i] = *p.progMap.Get(e)
	}
	return out
}

// UnitCount returns the number of units.
func (p *Plant) UnitCount() int { return len(p.entities) }

// Store returns unit's particle store.
func (p *Plant) Store(unit int) *systems.ParticleStore { return p.stores[unit] }

// LotsCaptured returns unit's captured count per lot (layer).
func (p *Plant) LotsCaptured(unit int) []int { return p.stores[unit].CapturedByLayer() }

// Result returns unit's aggregates from the last tick.
func (p *Plant) Result(unit int) systems.StepResult { return p.results[unit] }

// Bed returns the shared container bed.
func (p *Plant) Bed() *systems.BedModel { return p.bed }
