package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/silodrop/systems"
)

var (
	steel      = rl.Color{R: 150, G: 160, B: 172, A: 255}
	steelDark  = rl.Color{R: 90, G: 98, B: 110, A: 255}
	beltColor  = rl.Color{R: 45, G: 48, B: 52, A: 255}
	bedLow     = rl.Color{R: 120, G: 96, B: 60, A: 255}
	bedHigh    = rl.Color{R: 226, G: 196, B: 128, A: 255}
	floorColor = rl.Color{R: 32, G: 36, B: 40, A: 255}
)

// SceneryRenderer draws the static plant: silos, conveyor, container and
// the bed height field.
type SceneryRenderer struct {
	mapper systems.ContainerMapper
	siloXs []float32
}

// NewSceneryRenderer creates a renderer for silos at the given world X offsets.
func NewSceneryRenderer(siloXs []float32) *SceneryRenderer {
	return &SceneryRenderer{mapper: systems.DefaultContainerMapper(), siloXs: siloXs}
}

// Draw renders the scenery. Call inside BeginMode3D.
func (r *SceneryRenderer) Draw(bed *systems.BedModel) {
	rl.DrawPlane(rl.Vector3{X: 3, Y: systems.ContainerFloorY - 0.01, Z: 0}, rl.Vector2{X: 30, Y: 14}, floorColor)

	for _, x := range r.siloXs {
		r.drawSilo(x)
	}
	r.drawConveyor()
	r.drawContainer()
	if bed != nil {
		r.drawBed(bed)
	}
}

func (r *SceneryRenderer) drawSilo(worldX float32) {
	base := rl.Vector3{X: worldX, Y: 0, Z: 0}
	top := rl.Vector3{X: worldX, Y: systems.CylinderHeight, Z: 0}
	rl.DrawCylinderWiresEx(base, top, systems.SiloRadius, systems.SiloRadius, 24, steel)

	cone := rl.Vector3{X: worldX, Y: systems.ConeBottomY, Z: 0}
	rl.DrawCylinderWiresEx(cone, base, systems.OutletRadius, systems.SiloRadius, 24, steelDark)

	// legs
	for _, dz := range []float32{-1, 1} {
		for _, dx := range []float32{-1, 1} {
			x := worldX + dx*systems.SiloRadius*0.7
			z := dz * systems.SiloRadius * 0.7
			rl.DrawLine3D(rl.Vector3{X: x, Y: 0, Z: z}, rl.Vector3{X: x, Y: systems.ConveyorSurfaceY, Z: z}, steelDark)
		}
	}
}

func (r *SceneryRenderer) drawConveyor() {
	minX := r.siloXs[0] - systems.SiloRadius
	for _, x := range r.siloXs {
		minX = min(minX, x-systems.SiloRadius)
	}
	maxX := systems.BeltDropStartWorldX
	const thick = 0.08

	center := rl.Vector3{X: (minX + maxX) / 2, Y: systems.ConveyorSurfaceY - thick/2, Z: 0}
	rl.DrawCube(center, maxX-minX, thick, 2*systems.BeltHalfWidthZ, beltColor)
	rl.DrawCubeWires(center, maxX-minX, thick, 2*systems.BeltHalfWidthZ, steelDark)
}

func (r *SceneryRenderer) drawContainer() {
	m := r.mapper
	h := systems.ConveyorSurfaceY - 0.1 - systems.ContainerFloorY
	center := rl.Vector3{
		X: (m.MinX + m.MaxX) / 2,
		Y: systems.ContainerFloorY + h/2,
		Z: 0,
	}
	rl.DrawCubeWires(center, m.MaxX-m.MinX, h, 2*m.HalfZ, steel)
}

func (r *SceneryRenderer) drawBed(bed *systems.BedModel) {
	m := r.mapper
	cw, cz := m.CellSize()
	peak := max(bed.MaxHeight(), 1e-3)

	for iz := 0; iz < m.H; iz++ {
		for ix := 0; ix < m.W; ix++ {
			c := systems.Cell{IX: ix, IZ: iz}
			h := bed.HeightAt(c)
			if h <= 0 {
				continue
			}
			x, z := m.CellToWorld(c)
			col := lerpColor(bedLow, bedHigh, h/peak)
			rl.DrawCube(rl.Vector3{X: x, Y: systems.ContainerFloorY + h/2, Z: z}, cw, h, cz, col)
		}
	}
}

func lerpColor(a, b rl.Color, t float32) rl.Color {
	t = min(max(t, 0), 1)
	mix := func(x, y uint8) uint8 { return uint8(float32(x) + (float32(y)-float32(x))*t) }
	return rl.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}
