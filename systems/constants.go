package systems

// Silo geometry, in silo-local units. The silo axis is x=z=0; y=0 is the
// cylinder/cone seam, the cone runs down to y=-ConeHeight.
const (
	SiloRadius      float32 = 1.5
	CylinderHeight  float32 = 3.0
	ConeHeight      float32 = 1.5
	OutletRadius    float32 = 0.12 // outlet radius << SiloRadius
	ConeBottomY             = -ConeHeight
	OutletExitY             = ConeBottomY - 0.05 // below this a particle has left the silo
	SpawnWallMargin float32 = 0.03               // inward margin for seeded particles
	WallClampMargin float32 = 0.02               // inward margin for the flow clamp
)

// Layer seeding.
const (
	DefaultFillFraction float32 = 0.75 // share of silo height filled when no profile fill is given
	LayerMixRatio       float32 = 0.4  // vertical mixing, as a fraction of the layer band height
)

// Funnel flow. The zone thresholds are tuned by eye, not derived.
const (
	Gravity            float32 = -3.4
	ActiveRadiusTop    float32 = 0.35 // fast-flow core radius above the cone
	ActiveRadiusSpread float32 = 0.18 // core radius growth across the cone height
	SlowZoneRadius     float32 = 0.9
	ZoneFactorCore     float32 = 1.0
	ZoneFactorMid      float32 = 0.45
	ZoneFactorWall     float32 = 0.25
	ZoneDampingBase    float32 = 0.9
	ZoneDampingGain    float32 = 0.08
	RadialPull         float32 = 0.6
	HeightBiasMin      float32 = 0.45
	HeightBiasMax      float32 = 1.25
	HeightBiasSpan     float32 = 3.0
	WallTangentialKeep float32 = 0.5
)

// Conveyor, in world units.
const (
	ConveyorSurfaceY     float32 = -3.22
	BeltTravelSpeed      float32 = 1.02
	BeltDropStartWorldX  float32 = 7.55
	BeltExitWorldX       float32 = 9.95
	BeltHalfWidthZ       float32 = 0.56
	PulseFrequency       float32 = 3.3
	PulseSpatialFreq     float32 = 1.4
	PulseBase            float32 = 0.32
	PulseGain            float32 = 0.68
	BeltSpeedBlend       float32 = 0.28 // exponential smoothing toward the target belt speed
	LateralBase          float32 = 0.45
	LateralGain          float32 = 0.55
	ReleaseDrop          float32 = 0.02 // released particles stay this far below the belt
	ReleaseMinSpeed      float32 = 0.45 // minimum forward speed off the belt, times flow speed
	ReleaseCentering     float32 = 3.1
	ReleaseLateralDamp   float32 = 0.965
	BeltSpeedFactorMin   float32 = 0.75
	BeltSpeedFactorRange float32 = 0.55
	LateralBiasRange     float32 = 0.03
)

// Receiving container, in world units.
const (
	ContainerFloorY     float32 = -4.45
	ContainerMinWorldX  float32 = 7.62
	ContainerMaxWorldX  float32 = 9.84
	ContainerHalfZ      float32 = 0.82
	ContainerEntryPad   float32 = 0.02 // wall handling starts this far before the near wall
	ContainerWallPad    float32 = 0.05
	ContainerWallBounce float32 = 0.22
	CaptureTolerance    float32 = 0.06 // capture when within this height of the bed surface
	EscapeDepth         float32 = 2.2  // below floor by this much a particle is retired
)

// Bed model.
const (
	GridX            = 30
	GridZ            = 20
	AngleOfRepose    = 32.0 // degrees
	RelaxIterations  = 18
	RelaxEpsilon     = 1e-4
	HeightPerCapture = 0.0043 // << target fill height so the pile grows smoothly
)

// SentinelY marks a retired particle parked off-screen.
const SentinelY float32 = -1000

// Reporting.
const (
	FillReportDelta  float32 = 0.005
	FillReportFull   float32 = 0.999
	MilestoneStep    float32 = 33.3
	MilestoneInitial float32 = MilestoneStep
)
