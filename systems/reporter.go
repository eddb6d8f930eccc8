package systems

// Milestone is raised when a unit's discharged share crosses the next
// third of its contents.
type Milestone struct {
	Unit      int     // index of the reporting unit
	Index     int     // 1 for the first threshold, 2 for the second, ...
	Threshold float32 // percentage that was crossed
	Percent   float32 // discharged percentage at the time of crossing
}

// ProgressReporter turns per-tick particle counts into edge-triggered fill
// and milestone notifications for one unit.
type ProgressReporter struct {
	Unit        int
	OnFill      func(ratio float32)
	OnMilestone func(m Milestone)

	lastFill      float32
	nextThreshold float32
	fired         int
}

// NewProgressReporter creates a reporter for unit, armed for a fresh run.
func NewProgressReporter(unit int) *ProgressReporter {
	r := &ProgressReporter{Unit: unit}
	r.rearm()
	return r
}

func (r *ProgressReporter) rearm() {
	r.lastFill = -1
	r.nextThreshold = MilestoneInitial
	r.fired = 0
}

// Reset re-arms the milestones and reports an empty container.
func (r *ProgressReporter) Reset() {
	r.rearm()
	r.lastFill = 0
	if r.OnFill != nil {
		r.OnFill(0)
	}
}

// LastFill returns the most recently reported fill ratio, or -1 before the
// first report.
func (r *ProgressReporter) LastFill() float32 {
	return r.lastFill
}

// NextThreshold returns the discharge percentage that triggers the next milestone.
func (r *ProgressReporter) NextThreshold() float32 {
	return r.nextThreshold
}

// Observe consumes a tick's aggregates. It returns the fill ratio and
// whether it was reported.
func (r *ProgressReporter) Observe(res StepResult) (float32, bool) {
	if res.Total == 0 {
		return 0, false
	}

	fill := float32(res.Captured) / float32(res.Total)
	reported := false
	delta := fill - r.lastFill
	if delta < 0 {
		delta = -delta
	}
	if delta > FillReportDelta || fill == 0 || fill >= FillReportFull {
		r.lastFill = fill
		reported = true
		if r.OnFill != nil {
			r.OnFill(fill)
		}
	}

	// One threshold per tick: a jump across two thirds fires them on
	// consecutive ticks, in order.
	pct := float32(res.Discharged) / float32(res.Total) * 100
	if pct >= r.nextThreshold {
		r.fired++
		m := Milestone{Unit: r.Unit, Index: r.fired, Threshold: r.nextThreshold, Percent: pct}
		r.nextThreshold += MilestoneStep
		if r.OnMilestone != nil {
			r.OnMilestone(m)
		}
	}

	return fill, reported
}
