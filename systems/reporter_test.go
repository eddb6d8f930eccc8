package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	fills      []float32
	milestones []Milestone
}

func newRecordedReporter(unit int) (*ProgressReporter, *recorder) {
	rec := &recorder{}
	r := NewProgressReporter(unit)
	r.OnFill = func(v float32) { rec.fills = append(rec.fills, v) }
	r.OnMilestone = func(m Milestone) { rec.milestones = append(rec.milestones, m) }
	return r, rec
}

func TestProgressReporter_FillEdges(t *testing.T) {
	r, rec := newRecordedReporter(0)

	steps := []struct {
		captured int
		reported bool
	}{
		{0, true},    // empty is always reported
		{1, false},   // 0.001 vs 0: below delta
		{3, false},   // 0.003
		{6, true},    // 0.006
		{10, false},  // 0.010 vs 0.006
		{12, true},   // 0.012
		{1000, true}, // full
		{1000, true}, // full is reported every tick
	}

	for i, s := range steps {
		fill, reported := r.Observe(StepResult{Total: 1000, Captured: s.captured, Discharged: s.captured})
		assert.InDelta(t, float32(s.captured)/1000, fill, 1e-7)
		assert.Equal(t, s.reported, reported, "step %d (captured=%d)", i, s.captured)
	}
	require.NotEmpty(t, rec.fills)
	assert.Equal(t, float32(1), rec.fills[len(rec.fills)-1])
}

func TestProgressReporter_MilestonesInOrder(t *testing.T) {
	r, rec := newRecordedReporter(2)

	r.Observe(StepResult{Total: 100, Discharged: 10})
	assert.Empty(t, rec.milestones)

	// Jump past two thresholds: they fire one per tick.
	r.Observe(StepResult{Total: 100, Discharged: 70})
	require.Len(t, rec.milestones, 1)
	r.Observe(StepResult{Total: 100, Discharged: 70})
	require.Len(t, rec.milestones, 2)
	r.Observe(StepResult{Total: 100, Discharged: 70})
	require.Len(t, rec.milestones, 2, "no threshold left below 70 percent")

	r.Observe(StepResult{Total: 100, Discharged: 100})
	require.Len(t, rec.milestones, 3)
	r.Observe(StepResult{Total: 100, Discharged: 100})
	require.Len(t, rec.milestones, 3, "each threshold fires once")

	for i, m := range rec.milestones {
		assert.Equal(t, 2, m.Unit)
		assert.Equal(t, i+1, m.Index)
		assert.InDelta(t, MilestoneStep*float32(i+1), m.Threshold, 1e-3)
		assert.GreaterOrEqual(t, m.Percent, m.Threshold)
	}
}

func TestProgressReporter_Reset(t *testing.T) {
	r, rec := newRecordedReporter(0)
	r.Observe(StepResult{Total: 10, Captured: 5, Discharged: 5})
	require.Len(t, rec.milestones, 1)

	r.Reset()
	assert.Equal(t, float32(0), rec.fills[len(rec.fills)-1])
	assert.Equal(t, MilestoneInitial, r.NextThreshold())
	assert.Equal(t, float32(0), r.LastFill())

	r.Observe(StepResult{Total: 10, Captured: 5, Discharged: 5})
	require.Len(t, rec.milestones, 2)
	assert.Equal(t, 1, rec.milestones[1].Index, "milestone numbering restarts")
}

func TestProgressReporter_EmptyStoreIsSilent(t *testing.T) {
	r, rec := newRecordedReporter(0)
	fill, reported := r.Observe(StepResult{})
	assert.Equal(t, float32(0), fill)
	assert.False(t, reported)
	assert.Empty(t, rec.fills)
}
