package systems

// Phase is the physical regime a particle is in.
type Phase uint8

const (
	PhaseAtRest             Phase = iota // inside the silo, outlet closed
	PhaseSiloFlow                        // funnelling toward the outlet
	PhaseFreeFall                        // dropped from the outlet, not yet on the belt
	PhaseOnBelt                          // riding the conveyor surface
	PhaseFallingToContainer              // released off the belt end
	PhaseCaptured                        // settled in the bed; terminal until reset
	PhaseRetired                         // escaped containment; parked at SentinelY
)

var phaseNames = [...]string{
	PhaseAtRest:             "at_rest",
	PhaseSiloFlow:           "silo_flow",
	PhaseFreeFall:           "free_fall",
	PhaseOnBelt:             "on_belt",
	PhaseFallingToContainer: "falling_to_container",
	PhaseCaptured:           "captured",
	PhaseRetired:            "retired",
}

// String returns the phase name.
func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// InSilo reports whether the particle is still above the outlet.
func (p Phase) InSilo() bool {
	return p == PhaseAtRest || p == PhaseSiloFlow
}

// Terminal reports whether the particle no longer takes part in physics.
// Terminal particles are the unit's discharged mass.
func (p Phase) Terminal() bool {
	return p == PhaseCaptured || p == PhaseRetired
}

// PhaseCounts tallies particles per phase.
type PhaseCounts [len(phaseNames)]int
