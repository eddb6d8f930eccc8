package components

import "github.com/chewxy/math32"

// Vec3 is a position or velocity in a silo's local frame (x right, y up, z depth).
type Vec3 struct {
	X, Y, Z float32
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// AddScaled returns v + o*s.
func (v Vec3) AddScaled(o Vec3, s float32) Vec3 {
	return Vec3{X: v.X + o.X*s, Y: v.Y + o.Y*s, Z: v.Z + o.Z*s}
}

// RadiusXZ returns the horizontal distance from the vertical axis.
func (v Vec3) RadiusXZ() float32 {
	return math32.Hypot(v.X, v.Z)
}

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}
