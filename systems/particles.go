package systems

import (
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/pthm-cable/silodrop/components"
)

// Particle is one grain packet. Particles live by value in a ParticleStore
// and are never reallocated; reset cycles them back to Initial.
type Particle struct {
	Pos, Vel components.Vec3 // silo-local frame
	Initial  components.Vec3
	ID       int32
	Layer    uint8
	Phase    Phase

	// Drawn once at creation to break the belt flow into packets.
	BeltSpeedFactor float32
	LateralBias     float32
	PacketPhase     float32
}

// Captured reports whether the particle has settled in the bed.
func (p *Particle) Captured() bool {
	return p.Phase == PhaseCaptured
}

// IndexRange is a half-open [Start, End) range into ParticleStore.Particles.
type IndexRange struct {
	Start, End int
}

// Len returns the number of indices in the range.
func (r IndexRange) Len() int { return r.End - r.Start }

// Profile describes how a silo is filled.
type Profile struct {
	FillRatio    float32   // share of the silo height filled; 0 uses DefaultFillFraction
	LayerWeights []float32 // relative volume per layer; normalised on use
}

// ParticleStore holds every particle of one silo unit.
// Particles of a layer are contiguous and in creation order.
type ParticleStore struct {
	Particles   []Particle
	LayerRanges []IndexRange
	Profile     Profile
}

// NewParticleStore seeds layers*perLayer particles into the silo volume.
// Layer thickness and particle count follow the profile's layer weights so
// particle density is uniform across layers.
func NewParticleStore(layers, perLayer int, profile Profile, rng *rand.Rand) *ParticleStore {
	if layers < 1 {
		layers = 1
	}
	weights := NormalizeWeights(profile.LayerWeights, layers)
	counts := apportion(weights, layers*perLayer)

	fill := profile.FillRatio
	if fill <= 0 {
		fill = DefaultFillFraction
	}
	fill = clamp01(fill)
	fillHeight := fill * (CylinderHeight + ConeHeight)
	minY := ConeBottomY
	maxY := ConeBottomY + fillHeight

	s := &ParticleStore{
		Particles:   make([]Particle, 0, layers*perLayer),
		LayerRanges: make([]IndexRange, layers),
		Profile:     Profile{FillRatio: fill, LayerWeights: weights},
	}

	bandBottom := minY
	for layer := 0; layer < layers; layer++ {
		band := fillHeight * weights[layer]
		mix := band * LayerMixRatio
		start := len(s.Particles)

		for i := 0; i < counts[layer]; i++ {
			y := bandBottom + rng.Float32()*band + (rng.Float32()*2-1)*mix
			y = clampFloat(y, minY, maxY)

			maxR := wallRadius(y) - SpawnWallMargin
			angle := rng.Float32() * 2 * math32.Pi
			r := math32.Sqrt(rng.Float32()) * maxR
			pos := components.Vec3{X: math32.Cos(angle) * r, Y: y, Z: math32.Sin(angle) * r}

			s.Particles = append(s.Particles, Particle{
				Pos:             pos,
				Initial:         pos,
				ID:              int32(len(s.Particles)),
				Layer:           uint8(layer),
				Phase:           PhaseAtRest,
				BeltSpeedFactor: BeltSpeedFactorMin + rng.Float32()*BeltSpeedFactorRange,
				LateralBias:     (rng.Float32() - 0.5) * LateralBiasRange,
				PacketPhase:     rng.Float32() * 2 * math32.Pi,
			})
		}

		s.LayerRanges[layer] = IndexRange{Start: start, End: len(s.Particles)}
		bandBottom += band
	}

	return s
}

// Reset restores every particle to its creation state.
func (s *ParticleStore) Reset() {
	for i := range s.Particles {
		p := &s.Particles[i]
		p.Pos = p.Initial
		p.Vel = components.Vec3{}
		p.Phase = PhaseAtRest
	}
}

// Len returns the total particle count.
func (s *ParticleStore) Len() int { return len(s.Particles) }

// LayerCount returns the number of material layers.
func (s *ParticleStore) LayerCount() int { return len(s.LayerRanges) }

// LayerSlice returns the particles of one layer, aliasing the store.
func (s *ParticleStore) LayerSlice(layer int) []Particle {
	r := s.LayerRanges[layer]
	return s.Particles[r.Start:r.End]
}

// CountCaptured returns how many particles have settled in the bed.
func (s *ParticleStore) CountCaptured() int {
	n := 0
	for i := range s.Particles {
		if s.Particles[i].Phase == PhaseCaptured {
			n++
		}
	}
	return n
}

// CountDischarged returns how many particles are captured or retired.
func (s *ParticleStore) CountDischarged() int {
	n := 0
	for i := range s.Particles {
		if s.Particles[i].Phase.Terminal() {
			n++
		}
	}
	return n
}

// CapturedByLayer returns the captured count of each layer, i.e. the blend
// of lots that has reached the container.
func (s *ParticleStore) CapturedByLayer() []int {
	out := make([]int, len(s.LayerRanges))
	for layer := range s.LayerRanges {
		for _, p := range s.LayerSlice(layer) {
			if p.Phase == PhaseCaptured {
				out[layer]++
			}
		}
	}
	return out
}

// NormalizeWeights returns n weights summing to 1. Missing, negative or
// all-zero input falls back to uniform weights.
func NormalizeWeights(w []float32, n int) []float32 {
	out := make([]float32, n)
	var sum float32
	for i := 0; i < n && i < len(w); i++ {
		if w[i] > 0 {
			out[i] = w[i]
			sum += w[i]
		}
	}
	if len(w) < n || sum <= 0 {
		for i := range out {
			out[i] = 1 / float32(n)
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// apportion splits total into len(weights) integer counts using largest
// remainders, so the counts always sum to total.
func apportion(weights []float32, total int) []int {
	counts := make([]int, len(weights))
	rem := make([]float32, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := w * float32(total)
		counts[i] = int(exact)
		rem[i] = exact - float32(counts[i])
		assigned += counts[i]
	}
	for assigned < total {
		best := 0
		for i := range rem {
			if rem[i] > rem[best] {
				best = i
			}
		}
		counts[best]++
		rem[best] = -1
		assigned++
	}
	return counts
}
