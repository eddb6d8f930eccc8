package telemetry

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Tick phases, in the order a game tick runs them.
const (
	PhaseBedReset   = "bed_reset"
	PhaseIntegrate  = "integrate"
	PhaseReport     = "report"
	PhaseRenderSync = "render_sync"
	PhaseController = "controller"
	PhaseTelemetry  = "telemetry"
)

var tickPhases = [...]string{
	PhaseBedReset, PhaseIntegrate, PhaseReport,
	PhaseRenderSync, PhaseController, PhaseTelemetry,
}

const numPhases = len(tickPhases)

var integrateSlot = phaseSlot(PhaseIntegrate)

// PhaseNames returns the tick phases in reporting order.
func PhaseNames() []string {
	return slices.Clone(tickPhases[:])
}

// phaseSlot returns the index of name in tickPhases, or -1.
func phaseSlot(name string) int {
	return slices.Index(tickPhases[:], name)
}

// tickSample is the timing of one tick.
type tickSample struct {
	dur    time.Duration
	phases [numPhases]time.Duration
	units  []time.Duration // integrate time per unit
	active []int           // particles stepped per unit
}

// TickProfiler times game ticks over a rolling window. Integrate time is
// charged to the unit whose step just ran, along with the number of
// particles that step moved.
type TickProfiler struct {
	now   func() time.Time
	units []string

	ring  []tickSample
	next  int
	count int

	cur        tickSample
	tickStart  time.Time
	phaseStart time.Time
	phase      int // slot of the running phase, -1 when none

	lastFrame time.Time
	frame     time.Duration
}

// NewTickProfiler creates a profiler averaging over window ticks for the
// named units.
func NewTickProfiler(window int, units []string) *TickProfiler {
	if window < 1 {
		window = 60
	}
	tp := &TickProfiler{
		now:   time.Now,
		units: slices.Clone(units),
		ring:  make([]tickSample, window),
		phase: -1,
	}
	for i := range tp.ring {
		tp.ring[i] = tp.blank()
	}
	tp.cur = tp.blank()
	return tp
}

func (tp *TickProfiler) blank() tickSample {
	return tickSample{
		units:  make([]time.Duration, len(tp.units)),
		active: make([]int, len(tp.units)),
	}
}

// StartTick opens a new tick.
func (tp *TickProfiler) StartTick() {
	tp.tickStart = tp.now()
	tp.phaseStart = tp.tickStart
	tp.phase = -1
	tp.cur.phases = [numPhases]time.Duration{}
	clear(tp.cur.units)
	clear(tp.cur.active)
}

// StartPhase closes the running phase and opens name. Time spent in a
// phase that is not one of PhaseNames is not attributed.
func (tp *TickProfiler) StartPhase(name string) {
	now := tp.now()
	tp.closePhase(now)
	tp.phase = phaseSlot(name)
	tp.phaseStart = now
}

func (tp *TickProfiler) closePhase(now time.Time) {
	if tp.phase >= 0 {
		tp.cur.phases[tp.phase] += now.Sub(tp.phaseStart)
	}
}

// UnitStepped charges the time since the integrate phase opened to unit
// and records how many particles its step moved. Ignored outside the
// integrate phase.
func (tp *TickProfiler) UnitStepped(unit, active int) {
	if tp.phase != integrateSlot || unit < 0 || unit >= len(tp.units) {
		return
	}
	tp.cur.units[unit] += tp.now().Sub(tp.phaseStart)
	tp.cur.active[unit] += active
}

// EndTick closes the tick and stores it in the window.
func (tp *TickProfiler) EndTick() {
	now := tp.now()
	tp.closePhase(now)
	tp.phase = -1

	slot := &tp.ring[tp.next]
	slot.dur = now.Sub(tp.tickStart)
	slot.phases = tp.cur.phases
	copy(slot.units, tp.cur.units)
	copy(slot.active, tp.cur.active)

	tp.next = (tp.next + 1) % len(tp.ring)
	if tp.count < len(tp.ring) {
		tp.count++
	}
}

// RecordFrame marks a rendered frame. Graphics mode only.
func (tp *TickProfiler) RecordFrame() {
	now := tp.now()
	if !tp.lastFrame.IsZero() {
		tp.frame = now.Sub(tp.lastFrame)
	}
	tp.lastFrame = now
}

// UnitPerf is the integrate cost of one unit.
type UnitPerf struct {
	Name         string
	AvgIntegrate time.Duration
	Active       float64 // mean particles stepped per tick
}

// PerfStats summarises the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	P95TickDuration time.Duration
	MaxTickDuration time.Duration
	TicksPerSecond  float64

	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64 // share of the average tick

	// ActiveParticles is the mean number of particles stepped per tick
	// across all units. ParticlesPerSecond divides the particles stepped
	// by the integrate time spent on them.
	ActiveParticles    float64
	ParticlesPerSecond float64
	Units              []UnitPerf

	FPS float64
}

// Stats aggregates the ticks in the window.
func (tp *TickProfiler) Stats() PerfStats {
	s := PerfStats{
		PhaseAvg: make(map[string]time.Duration, numPhases),
		PhasePct: make(map[string]float64, numPhases),
		Units:    make([]UnitPerf, len(tp.units)),
	}
	for i, name := range tp.units {
		s.Units[i].Name = name
	}
	if tp.frame > 0 {
		s.FPS = float64(time.Second) / float64(tp.frame)
	}
	if tp.count == 0 {
		return s
	}

	var (
		total      time.Duration
		phases     [numPhases]time.Duration
		unitTime   = make([]time.Duration, len(tp.units))
		unitActive = make([]int, len(tp.units))
		ticks      = make([]float64, tp.count)
	)
	for i := range tp.count {
		smp := &tp.ring[i]
		ticks[i] = float64(smp.dur)
		total += smp.dur
		s.MaxTickDuration = max(s.MaxTickDuration, smp.dur)
		for p, d := range smp.phases {
			phases[p] += d
		}
		for u := range unitTime {
			unitTime[u] += smp.units[u]
			unitActive[u] += smp.active[u]
		}
	}

	n := time.Duration(tp.count)
	s.AvgTickDuration = total / n
	slices.Sort(ticks)
	s.P95TickDuration = time.Duration(stat.Quantile(0.95, stat.Empirical, ticks, nil))
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}

	for p, name := range tickPhases {
		avg := phases[p] / n
		s.PhaseAvg[name] = avg
		if s.AvgTickDuration > 0 {
			s.PhasePct[name] = 100 * float64(avg) / float64(s.AvgTickDuration)
		}
	}

	var stepped int
	var integrate time.Duration
	for u := range s.Units {
		s.Units[u].AvgIntegrate = unitTime[u] / n
		s.Units[u].Active = float64(unitActive[u]) / float64(tp.count)
		stepped += unitActive[u]
		integrate += unitTime[u]
	}
	s.ActiveParticles = float64(stepped) / float64(tp.count)
	if integrate > 0 {
		s.ParticlesPerSecond = float64(stepped) / integrate.Seconds()
	}
	return s
}

// LogStats logs the window summary.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"p95_tick_us", s.P95TickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
		"active_particles", int(s.ActiveParticles),
		"particles_per_sec", int(s.ParticlesPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for _, u := range s.Units {
		attrs = append(attrs, "integrate_us_"+u.Name, u.AvgIntegrate.Microseconds())
	}
	for _, name := range tickPhases {
		if pct := s.PhasePct[name]; pct > 0.1 {
			attrs = append(attrs, name+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	SessionID       string  `csv:"session"`
	WindowEnd       int32   `csv:"window_end"`
	AvgTickUS       int64   `csv:"avg_tick_us"`
	P95TickUS       int64   `csv:"p95_tick_us"`
	MaxTickUS       int64   `csv:"max_tick_us"`
	TicksPerSec     float64 `csv:"ticks_per_sec"`
	FPS             float64 `csv:"fps"`
	ActiveParticles float64 `csv:"active_particles"`
	ParticlesPerSec float64 `csv:"particles_per_sec"`
	UnitIntegrateUS string  `csv:"unit_integrate_us"` // name=us pairs, ";"-joined
	BedResetPct     float64 `csv:"bed_reset_pct"`
	IntegratePct    float64 `csv:"integrate_pct"`
	ReportPct       float64 `csv:"report_pct"`
	RenderSyncPct   float64 `csv:"render_sync_pct"`
	ControllerPct   float64 `csv:"controller_pct"`
	TelemetryPct    float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the stats for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	units := make([]string, len(s.Units))
	for i, u := range s.Units {
		units[i] = u.Name + "=" + strconv.FormatInt(u.AvgIntegrate.Microseconds(), 10)
	}
	return PerfStatsCSV{
		WindowEnd:       windowEnd,
		AvgTickUS:       s.AvgTickDuration.Microseconds(),
		P95TickUS:       s.P95TickDuration.Microseconds(),
		MaxTickUS:       s.MaxTickDuration.Microseconds(),
		TicksPerSec:     s.TicksPerSecond,
		FPS:             s.FPS,
		ActiveParticles: s.ActiveParticles,
		ParticlesPerSec: s.ParticlesPerSecond,
		UnitIntegrateUS: strings.Join(units, ";"),
		BedResetPct:     s.PhasePct[PhaseBedReset],
		IntegratePct:    s.PhasePct[PhaseIntegrate],
		ReportPct:       s.PhasePct[PhaseReport],
		RenderSyncPct:   s.PhasePct[PhaseRenderSync],
		ControllerPct:   s.PhasePct[PhaseController],
		TelemetryPct:    s.PhasePct[PhaseTelemetry],
	}
}
