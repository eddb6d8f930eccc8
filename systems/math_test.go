package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/silodrop/components"
)

func TestConeRadius_Profile(t *testing.T) {
	assert.Equal(t, SiloRadius, wallRadius(0.5))
	assert.Equal(t, SiloRadius, wallRadius(0))
	assert.InDelta(t, OutletRadius, wallRadius(ConeBottomY), 1e-6)
	assert.InDelta(t, (SiloRadius+OutletRadius)/2, wallRadius(ConeBottomY/2), 1e-6)
}

func TestConeRadius_ThroatKeepsTapering(t *testing.T) {
	exit := wallRadius(OutletExitY)
	assert.InDelta(t, 0.074, exit, 1e-3)
	assert.Less(t, wallRadius(ConeBottomY-0.02), OutletRadius)
	assert.Greater(t, wallRadius(ConeBottomY-0.02), exit)
	assert.Greater(t, exit, float32(0))
}

func TestSiloFlow_ThroatClampUsesTaper(t *testing.T) {
	it := NewIntegrator(DefaultContainerMapper())
	p := Particle{Pos: components.Vec3{X: OutletRadius, Y: ConeBottomY - 0.03}, Phase: PhaseSiloFlow}
	it.StepParticle(&p, NewBedModel(it.Mapper), stepInput(1, true, LocalFrame{}))

	require.Equal(t, PhaseSiloFlow, p.Phase)
	assert.LessOrEqual(t, p.Pos.RadiusXZ(), wallRadius(p.Pos.Y)-WallClampMargin+1e-5)
}
