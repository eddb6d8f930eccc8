// Package components defines ECS components and shared value types for the simulation.
package components

import "image/color"

// Mode is the externally supplied run mode.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeDischarging
)

// String returns the mode name used in config and logs.
func (m Mode) String() string {
	if m == ModeDischarging {
		return "discharging"
	}
	return "idle"
}

// Unit identifies a silo unit. Index keys the unit's particle store in the plant.
type Unit struct {
	Index int
	Name  string
}

// Placement positions a unit along the shared conveyor.
type Placement struct {
	WorldX     float32 // world X offset of the silo axis
	StartDelay float32 // seconds after a run starts before this silo opens
}

// Palette holds the render colour of each material layer.
type Palette struct {
	Colors []color.RGBA
}

// Progress holds the aggregate discharge state of a unit, refreshed every tick.
type Progress struct {
	Total      int
	Captured   int
	Discharged int     // captured plus retired
	FillRatio  float32 // last value reported to observers
	Target     float32 // fill ratio at which the unit counts as done
}

// TargetReached reports whether the unit is within tolerance of its target.
func (p Progress) TargetReached(tolerance float32) bool {
	t := p.Target - tolerance
	if t < 0 {
		t = 0
	}
	return p.FillRatio >= t
}
