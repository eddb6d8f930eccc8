package telemetry

import (
	"testing"
	"time"
)

// stepClock is a manual clock for TickProfiler.now.
type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProfiler(window int, units ...string) (*TickProfiler, *stepClock) {
	clk := &stepClock{t: time.Unix(1000, 0)}
	tp := NewTickProfiler(window, units)
	tp.now = clk.now
	return tp, clk
}

// runTick drives one plant-shaped tick: bed reset, then integrate and
// report per unit, then controller.
func runTick(tp *TickProfiler, clk *stepClock, integrate []time.Duration, active []int) {
	tp.StartTick()
	tp.StartPhase(PhaseBedReset)
	clk.advance(10 * time.Microsecond)
	for u := range integrate {
		tp.StartPhase(PhaseIntegrate)
		clk.advance(integrate[u])
		tp.UnitStepped(u, active[u])
		tp.StartPhase(PhaseReport)
		clk.advance(5 * time.Microsecond)
	}
	tp.StartPhase(PhaseController)
	clk.advance(5 * time.Microsecond)
	tp.EndTick()
}

func TestTickProfilerPhaseBreakdown(t *testing.T) {
	tp, clk := newTestProfiler(10, "silo1", "silo2")
	for range 4 {
		runTick(tp, clk, []time.Duration{300 * time.Microsecond, 100 * time.Microsecond}, []int{600, 100})
	}

	s := tp.Stats()
	// 10 + 300 + 5 + 100 + 5 + 5
	if s.AvgTickDuration != 425*time.Microsecond {
		t.Fatalf("avg tick = %v, want 425µs", s.AvgTickDuration)
	}
	if s.PhaseAvg[PhaseIntegrate] != 400*time.Microsecond {
		t.Errorf("integrate avg = %v, want 400µs", s.PhaseAvg[PhaseIntegrate])
	}
	if s.PhaseAvg[PhaseReport] != 10*time.Microsecond {
		t.Errorf("report avg = %v, want 10µs", s.PhaseAvg[PhaseReport])
	}
	if s.PhasePct[PhaseIntegrate] <= s.PhasePct[PhaseBedReset] {
		t.Errorf("integrate pct %v should exceed bed reset pct %v",
			s.PhasePct[PhaseIntegrate], s.PhasePct[PhaseBedReset])
	}
	if s.PhaseAvg[PhaseTelemetry] != 0 {
		t.Errorf("unvisited phase has time %v", s.PhaseAvg[PhaseTelemetry])
	}
}

func TestTickProfilerUnitThroughput(t *testing.T) {
	tp, clk := newTestProfiler(10, "silo1", "silo2")
	for range 3 {
		runTick(tp, clk, []time.Duration{300 * time.Microsecond, 100 * time.Microsecond}, []int{600, 100})
	}

	s := tp.Stats()
	if len(s.Units) != 2 {
		t.Fatalf("got %d units, want 2", len(s.Units))
	}
	if s.Units[0].Name != "silo1" || s.Units[0].AvgIntegrate != 300*time.Microsecond || s.Units[0].Active != 600 {
		t.Errorf("silo1 = %+v", s.Units[0])
	}
	if s.Units[1].AvgIntegrate != 100*time.Microsecond || s.Units[1].Active != 100 {
		t.Errorf("silo2 = %+v", s.Units[1])
	}
	if s.ActiveParticles != 700 {
		t.Errorf("active particles = %v, want 700", s.ActiveParticles)
	}
	// 700 particles per 400µs of integrate time
	if got, want := s.ParticlesPerSecond, 1_750_000.0; got < want-1 || got > want+1 {
		t.Errorf("particles/s = %v, want %v", got, want)
	}
}

func TestTickProfilerUnitSteppedOutsideIntegrate(t *testing.T) {
	tp, clk := newTestProfiler(4, "silo1")
	tp.StartTick()
	tp.StartPhase(PhaseReport)
	clk.advance(time.Millisecond)
	tp.UnitStepped(0, 50)
	tp.UnitStepped(3, 50)
	tp.EndTick()

	s := tp.Stats()
	if s.Units[0].Active != 0 || s.Units[0].AvgIntegrate != 0 {
		t.Errorf("step outside integrate was recorded: %+v", s.Units[0])
	}
	if s.ParticlesPerSecond != 0 {
		t.Errorf("particles/s = %v, want 0", s.ParticlesPerSecond)
	}
}

func TestTickProfilerWindowAndTail(t *testing.T) {
	tp, clk := newTestProfiler(20)
	// 25 ticks; the window keeps the last 20, lasting 6..25ms.
	for i := range 25 {
		tp.StartTick()
		clk.advance(time.Duration(i+1) * time.Millisecond)
		tp.EndTick()
	}

	s := tp.Stats()
	if s.MaxTickDuration != 25*time.Millisecond {
		t.Errorf("max = %v, want 25ms", s.MaxTickDuration)
	}
	if s.P95TickDuration != 24*time.Millisecond {
		t.Errorf("p95 = %v, want 24ms", s.P95TickDuration)
	}
	if s.AvgTickDuration != 15500*time.Microsecond {
		t.Errorf("avg = %v, want 15.5ms", s.AvgTickDuration)
	}
	if s.TicksPerSecond <= 64 || s.TicksPerSecond >= 65 {
		t.Errorf("ticks/s = %v, want ~64.5", s.TicksPerSecond)
	}
}

func TestTickProfilerEmpty(t *testing.T) {
	tp, _ := newTestProfiler(10, "silo1")

	s := tp.Stats()
	if s.AvgTickDuration != 0 || s.P95TickDuration != 0 {
		t.Errorf("empty profiler reported ticks: %+v", s)
	}
	if s.PhaseAvg == nil || s.PhasePct == nil {
		t.Error("phase maps must be non-nil")
	}
	if len(s.Units) != 1 || s.Units[0].Name != "silo1" {
		t.Errorf("units = %+v", s.Units)
	}
}

func TestTickProfilerFrameRate(t *testing.T) {
	tp, clk := newTestProfiler(10)
	tp.RecordFrame()
	if fps := tp.Stats().FPS; fps != 0 {
		t.Errorf("fps after one frame = %v, want 0", fps)
	}
	clk.advance(20 * time.Millisecond)
	tp.RecordFrame()

	if fps := tp.Stats().FPS; fps != 50 {
		t.Errorf("fps = %v, want 50", fps)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	tp, clk := newTestProfiler(4, "silo1", "silo2")
	runTick(tp, clk, []time.Duration{300 * time.Microsecond, 100 * time.Microsecond}, []int{600, 100})

	rec := tp.Stats().ToCSV(120)
	if rec.WindowEnd != 120 || rec.AvgTickUS != 425 {
		t.Errorf("rec = %+v", rec)
	}
	if rec.UnitIntegrateUS != "silo1=300;silo2=100" {
		t.Errorf("unit integrate = %q", rec.UnitIntegrateUS)
	}
	if rec.ActiveParticles != 700 {
		t.Errorf("active = %v, want 700", rec.ActiveParticles)
	}
}
