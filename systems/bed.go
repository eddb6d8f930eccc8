package systems

import "github.com/chewxy/math32"

// BedModel is the settled-height field over the receiving container floor.
// One instance is shared by every silo unit feeding the container. It has a
// single writer: the plant tick.
//
// Heights only grow between resets; ResetIfVersionChanged is the only path
// that lowers them.
type BedModel struct {
	Mapper  ContainerMapper
	heights []float32
	version int64
	primed  bool // false until the first version has been observed
}

// NewBedModel creates an all-zero bed over the mapper's grid.
func NewBedModel(m ContainerMapper) *BedModel {
	return &BedModel{
		Mapper:  m,
		heights: make([]float32, m.W*m.H),
	}
}

// ResetIfVersionChanged clears the bed the first time a new reset version
// is observed. Repeated calls with the same version are no-ops.
// Returns true if the bed was cleared.
func (b *BedModel) ResetIfVersionChanged(version int64) bool {
	if b.primed && b.version == version {
		return false
	}
	clear(b.heights)
	b.version = version
	b.primed = true
	return true
}

// Version returns the last observed reset version.
func (b *BedModel) Version() int64 {
	return b.version
}

// HeightAt returns the settled height of c. Out-of-range cells are clamped.
func (b *BedModel) HeightAt(c Cell) float32 {
	return b.heights[b.Mapper.Index(b.Mapper.Clamp(c))]
}

// Deposit adds amount to c and returns the new height.
// Non-positive amounts leave the cell unchanged.
func (b *BedModel) Deposit(c Cell, amount float32) float32 {
	i := b.Mapper.Index(b.Mapper.Clamp(c))
	if amount > 0 {
		b.heights[i] += amount
	}
	return b.heights[i]
}

// FindStableCell walks downhill from start until no neighbour is steeper
// than the angle of repose allows. Each step moves to the neighbour with the
// largest excess drop; the walk stops after RelaxIterations steps or when
// the best excess is at most RelaxEpsilon.
//
// Neighbours are clamped to the grid; a clamped neighbour that lands back on
// the current cell is skipped.
func (b *BedModel) FindStableCell(start Cell) Cell {
	m := b.Mapper
	cellX, cellZ := m.CellSize()
	cur := m.Clamp(start)

	for step := 0; step < RelaxIterations; step++ {
		currentH := b.heights[m.Index(cur)]
		best := cur
		var bestDrop float32

		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dz == 0 {
					continue
				}
				n := m.Clamp(Cell{IX: cur.IX + dx, IZ: cur.IZ + dz})
				if n == cur {
					continue
				}

				neighborH := b.heights[m.Index(n)]
				dist := math32.Hypot(float32(dx)*cellX, float32(dz)*cellZ)
				drop := currentH - (neighborH + maxSlope*dist)
				if drop > bestDrop {
					bestDrop = drop
					best = n
				}
			}
		}

		if bestDrop <= RelaxEpsilon {
			break
		}
		cur = best
	}

	return cur
}

// Heights returns the row-major height slice (index iz*W+ix).
// Callers must not modify it.
func (b *BedModel) Heights() []float32 {
	return b.heights
}

// Snapshot returns a copy of the height field.
func (b *BedModel) Snapshot() []float32 {
	out := make([]float32, len(b.heights))
	copy(out, b.heights)
	return out
}

// MaxHeight returns the tallest column.
func (b *BedModel) MaxHeight() float32 {
	var h float32
	for _, v := range b.heights {
		if v > h {
			h = v
		}
	}
	return h
}

// TotalHeight returns the sum of all column heights.
func (b *BedModel) TotalHeight() float32 {
	var sum float32
	for _, v := range b.heights {
		sum += v
	}
	return sum
}
