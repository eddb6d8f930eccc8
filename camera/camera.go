// Package camera provides an orbit camera around the plant.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/pthm-cable/silodrop/components"
)

// Orbit circles a target point. Yaw is measured around +Y from +Z,
// pitch is the elevation above the XZ plane.
type Orbit struct {
	Target   components.Vec3
	Yaw      float32 // radians
	Pitch    float32 // radians
	Distance float32

	// Constraints
	MinDistance, MaxDistance float32
	MinPitch, MaxPitch       float32

	home pose
}

// pose is the initial view restored by Reset.
type pose struct {
	Target     components.Vec3
	Yaw, Pitch float32
	Distance   float32
}

// New creates an orbit camera looking at target from the given pose.
func New(target components.Vec3, yaw, pitch, distance float32) *Orbit {
	c := &Orbit{
		MinDistance: 4,
		MaxDistance: 40,
		MinPitch:    -0.2,
		MaxPitch:    1.45,
	}
	c.home = pose{Target: target, Yaw: yaw, Pitch: pitch, Distance: distance}
	c.Reset()
	return c
}

// Position returns the camera eye in world space.
func (c *Orbit) Position() components.Vec3 {
	cp := math32.Cos(c.Pitch)
	return components.Vec3{
		X: c.Target.X + c.Distance*cp*math32.Sin(c.Yaw),
		Y: c.Target.Y + c.Distance*math32.Sin(c.Pitch),
		Z: c.Target.Z + c.Distance*cp*math32.Cos(c.Yaw),
	}
}

// Rotate turns the camera by the given yaw and pitch deltas in radians.
func (c *Orbit) Rotate(dYaw, dPitch float32) {
	c.Yaw = wrapAngle(c.Yaw + dYaw)
	c.Pitch = clamp(c.Pitch+dPitch, c.MinPitch, c.MaxPitch)
}

// ZoomBy multiplies the orbit distance by factor, clamped to min/max.
func (c *Orbit) ZoomBy(factor float32) {
	c.Distance = clamp(c.Distance*factor, c.MinDistance, c.MaxDistance)
}

// Pan slides the target in the camera's ground plane. dx moves right,
// dz moves away from the viewer.
func (c *Orbit) Pan(dx, dz float32) {
	sin, cos := math32.Sincos(c.Yaw)
	// right = (cos, 0, -sin), forward (into the screen) = (-sin, 0, -cos)
	c.Target.X += dx*cos - dz*sin
	c.Target.Z += -dx*sin - dz*cos
}

// Reset returns the camera to its initial pose.
func (c *Orbit) Reset() {
	c.Target = c.home.Target
	c.Yaw = c.home.Yaw
	c.Pitch = clamp(c.home.Pitch, c.MinPitch, c.MaxPitch)
	c.Distance = clamp(c.home.Distance, c.MinDistance, c.MaxDistance)
}

// wrapAngle wraps a to [-pi, pi).
func wrapAngle(a float32) float32 {
	a = math32.Mod(a+math32.Pi, 2*math32.Pi)
	if a < 0 {
		a += 2 * math32.Pi
	}
	return a - math32.Pi
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
