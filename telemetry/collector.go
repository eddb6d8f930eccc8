package telemetry

import "github.com/pthm-cable/silodrop/systems"

// UnitSample is one unit's state at flush time.
type UnitSample struct {
	Unit       int
	Name       string
	Total      int
	Captured   int
	Discharged int
	Target     float32
	Phases     systems.PhaseCounts
	Lots       []int // captured count per lot (layer)
}

// Collector accumulates per-unit events within time windows and produces WindowStats.
type Collector struct {
	windowDurationTicks int32
	dt                  float32
	sessionID           string

	windowStartTick int32

	// Event counters for current window, per unit
	captures   []int
	milestones []int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float32, units int, sessionID string) *Collector {
	ticksPerWindow := int32(windowDurationSec / float64(dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	return &Collector{
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		sessionID:           sessionID,
		captures:            make([]int, units),
		milestones:          make([]int, units),
	}
}

// RecordCaptures adds particles captured by unit this tick.
func (c *Collector) RecordCaptures(unit, n int) {
	if unit >= 0 && unit < len(c.captures) {
		c.captures[unit] += n
	}
}

// RecordMilestone counts a milestone for unit.
func (c *Collector) RecordMilestone(unit int) {
	if unit >= 0 && unit < len(c.milestones) {
		c.milestones[unit]++
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// WindowContext is the run-level state stamped on every row.
type WindowContext struct {
	RunID     int64
	Mode      string
	FlowSpeed float32
}

// Flush produces one WindowStats per unit and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, ctx WindowContext, units []UnitSample, bed []float32) []WindowStats {
	bedStats := ComputeBedStats(bed)
	out := make([]WindowStats, 0, len(units))

	for _, u := range units {
		s := WindowStats{
			SessionID:       c.sessionID,
			RunID:           ctx.RunID,
			WindowStartTick: c.windowStartTick,
			WindowEndTick:   currentTick,
			SimTimeSec:      float64(currentTick) * float64(c.dt),
			Mode:            ctx.Mode,
			FlowSpeed:       float64(ctx.FlowSpeed),
			Unit:            u.Unit,
			UnitName:        u.Name,
			Total:           u.Total,
			Target:          float64(u.Target),
			AtRest:          u.Phases[systems.PhaseAtRest],
			SiloFlow:        u.Phases[systems.PhaseSiloFlow],
			FreeFall:        u.Phases[systems.PhaseFreeFall],
			OnBelt:          u.Phases[systems.PhaseOnBelt],
			Falling:         u.Phases[systems.PhaseFallingToContainer],
			Captured:        u.Phases[systems.PhaseCaptured],
			Retired:         u.Phases[systems.PhaseRetired],
		}
		if u.Total > 0 {
			s.FillRatio = float64(u.Captured) / float64(u.Total)
			s.DischargedPct = float64(u.Discharged) / float64(u.Total) * 100
		}
		if u.Unit >= 0 && u.Unit < len(c.captures) {
			s.Captures = c.captures[u.Unit]
			s.Milestones = c.milestones[u.Unit]
		}
		s.SetLots(u.Lots)
		s.SetBed(bedStats)
		out = append(out, s)
	}

	c.windowStartTick = currentTick
	clear(c.captures)
	clear(c.milestones)

	return out
}

// Restart aligns the window with a new run starting at tick.
func (c *Collector) Restart(tick int32) {
	c.windowStartTick = tick
	clear(c.captures)
	clear(c.milestones)
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}

// SessionID returns the id stamped on every row.
func (c *Collector) SessionID() string {
	return c.sessionID
}
