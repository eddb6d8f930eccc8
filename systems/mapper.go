package systems

import "github.com/chewxy/math32"

// Cell indexes one column of the container bed grid.
type Cell struct {
	IX, IZ int
}

// ContainerMapper converts between world coordinates and bed grid cells.
// It is a value type; all methods are pure.
type ContainerMapper struct {
	MinX, MaxX float32 // world X extent of the container
	HalfZ      float32 // container spans [-HalfZ, HalfZ] in Z
	W, H       int     // grid columns (X) and rows (Z)
}

// DefaultContainerMapper returns the mapper for the standard receiving container.
func DefaultContainerMapper() ContainerMapper {
	return ContainerMapper{
		MinX:  ContainerMinWorldX,
		MaxX:  ContainerMaxWorldX,
		HalfZ: ContainerHalfZ,
		W:     GridX,
		H:     GridZ,
	}
}

// CellSize returns the world size of one cell along X and Z.
func (m ContainerMapper) CellSize() (float32, float32) {
	return (m.MaxX - m.MinX) / float32(m.W), (m.HalfZ * 2) / float32(m.H)
}

// WorldToCell maps a world position onto the grid, clamping outside points
// onto the nearest edge cell.
func (m ContainerMapper) WorldToCell(worldX, worldZ float32) Cell {
	nx := (worldX - m.MinX) / (m.MaxX - m.MinX)
	nz := (worldZ + m.HalfZ) / (m.HalfZ * 2)
	return Cell{
		IX: clampInt(int(math32.Floor(nx*float32(m.W))), 0, m.W-1),
		IZ: clampInt(int(math32.Floor(nz*float32(m.H))), 0, m.H-1),
	}
}

// CellToWorld returns the world position of the cell centre.
func (m ContainerMapper) CellToWorld(c Cell) (worldX, worldZ float32) {
	cx, cz := m.CellSize()
	worldX = m.MinX + (float32(c.IX)+0.5)*cx
	worldZ = -m.HalfZ + (float32(c.IZ)+0.5)*cz
	return worldX, worldZ
}

// Contains reports whether the world point lies within the container footprint.
func (m ContainerMapper) Contains(worldX, worldZ float32) bool {
	return worldX >= m.MinX && worldX <= m.MaxX && math32.Abs(worldZ) <= m.HalfZ
}

// Index returns the row-major slice index of c.
func (m ContainerMapper) Index(c Cell) int {
	return c.IZ*m.W + c.IX
}

// Clamp pulls c into the valid index range.
func (m ContainerMapper) Clamp(c Cell) Cell {
	return Cell{IX: clampInt(c.IX, 0, m.W-1), IZ: clampInt(c.IZ, 0, m.H-1)}
}

// LocalFrame is a silo unit's coordinate frame. Silo-local and world frames
// differ only by a translation along X.
type LocalFrame struct {
	WorldX float32
}

// ToWorldX converts a silo-local X to world X.
func (f LocalFrame) ToWorldX(localX float32) float32 { return localX + f.WorldX }

// ToLocalX converts a world X to silo-local X.
func (f LocalFrame) ToLocalX(worldX float32) float32 { return worldX - f.WorldX }

// Landmarks are the belt and container X coordinates expressed in one
// unit's local frame.
type Landmarks struct {
	BeltDropStartX float32
	BeltExitX      float32
	ContainerMinX  float32
	ContainerMaxX  float32
}

// LocalLandmarks converts the world landmarks into this frame.
func (f LocalFrame) LocalLandmarks(m ContainerMapper) Landmarks {
	return Landmarks{
		BeltDropStartX: f.ToLocalX(BeltDropStartWorldX),
		BeltExitX:      f.ToLocalX(BeltExitWorldX),
		ContainerMinX:  f.ToLocalX(m.MinX),
		ContainerMaxX:  f.ToLocalX(m.MaxX),
	}
}
