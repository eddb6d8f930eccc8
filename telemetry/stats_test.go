package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/silodrop/systems"
)

func TestComputeBedStats(t *testing.T) {
	heights := []float32{0, 0, 0, 0, 0, 0, 0, 0, 1, 3}
	s := ComputeBedStats(heights)

	if math.Abs(s.Mean-0.4) > 1e-9 {
		t.Errorf("mean = %v, want 0.4", s.Mean)
	}
	if s.Max != 3 {
		t.Errorf("max = %v, want 3", s.Max)
	}
	if s.Volume != 4 {
		t.Errorf("volume = %v, want 4", s.Volume)
	}
	if math.Abs(s.Coverage-0.2) > 1e-9 {
		t.Errorf("coverage = %v, want 0.2", s.Coverage)
	}
	if s.P50 != 0 {
		t.Errorf("p50 = %v, want 0", s.P50)
	}
	if s.P90 != 1 {
		t.Errorf("p90 = %v, want 1", s.P90)
	}
	if s.StdDev <= 0 {
		t.Errorf("stddev = %v, want > 0", s.StdDev)
	}
}

func TestComputeBedStatsEmpty(t *testing.T) {
	if s := ComputeBedStats(nil); s != (BedStats{}) {
		t.Errorf("empty bed should return zero stats, got %+v", s)
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(1.0, 0.1, 2, "session")
	if c.WindowDurationTicks() != 10 {
		t.Fatalf("ticks per window = %d, want 10", c.WindowDurationTicks())
	}
	if c.ShouldFlush(9) {
		t.Error("window should not flush before 10 ticks")
	}

	c.RecordCaptures(0, 3)
	c.RecordCaptures(0, 2)
	c.RecordMilestone(1)
	c.RecordCaptures(5, 1) // unknown unit is ignored

	var phases systems.PhaseCounts
	phases[systems.PhaseOnBelt] = 4
	units := []UnitSample{
		{Unit: 0, Name: "silo1", Total: 10, Captured: 5, Discharged: 6, Target: 0.8, Phases: phases},
		{Unit: 1, Name: "silo2", Total: 0},
	}

	rows := c.Flush(10, WindowContext{RunID: 3, Mode: "normal", FlowSpeed: 0.45}, units, []float32{0, 1})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	r := rows[0]
	if r.Captures != 5 || r.OnBelt != 4 || r.RunID != 3 || r.SessionID != "session" {
		t.Errorf("unexpected row %+v", r)
	}
	if math.Abs(r.FillRatio-0.5) > 1e-9 || math.Abs(r.DischargedPct-60) > 1e-9 {
		t.Errorf("fill %v / discharged %v, want 0.5 / 60", r.FillRatio, r.DischargedPct)
	}
	if r.BedMax != 1 {
		t.Errorf("bed max = %v, want 1", r.BedMax)
	}
	if rows[1].Milestones != 1 || rows[1].FillRatio != 0 {
		t.Errorf("unexpected row %+v", rows[1])
	}

	// Counters reset after a flush.
	rows = c.Flush(20, WindowContext{}, units, nil)
	if rows[0].Captures != 0 || rows[1].Milestones != 0 {
		t.Error("counters should reset between windows")
	}
	if rows[0].WindowStartTick != 10 {
		t.Errorf("window start = %d, want 10", rows[0].WindowStartTick)
	}
}

func TestWindowStatsSetLots(t *testing.T) {
	var s WindowStats
	s.SetLots([]int{30, 50, 20})

	if s.LotsCount != "30;50;20" {
		t.Errorf("lots_captured = %q, want 30;50;20", s.LotsCount)
	}
	if s.LotsShare != "0.300;0.500;0.200" {
		t.Errorf("lots_share = %q, want 0.300;0.500;0.200", s.LotsShare)
	}
	if s.LeadingLot != 1 {
		t.Errorf("leading lot = %d, want 1", s.LeadingLot)
	}

	s.SetLots([]int{0, 0})
	if s.LeadingLot != -1 || s.LotsShare != "0.000;0.000" {
		t.Errorf("empty blend gave leading %d, share %q", s.LeadingLot, s.LotsShare)
	}
}

func TestCollectorFlushCarriesLots(t *testing.T) {
	c := NewCollector(1.0, 0.1, 1, "session")
	lots := []int{2, 3}
	rows := c.Flush(10, WindowContext{}, []UnitSample{{Unit: 0, Total: 10, Captured: 5, Lots: lots}}, nil)

	lots[0] = 99
	if got := rows[0].Lots; len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("lots = %v, want a copy of [2 3]", got)
	}
	if rows[0].LotsCount != "2;3" {
		t.Errorf("lots_captured = %q, want 2;3", rows[0].LotsCount)
	}
}
