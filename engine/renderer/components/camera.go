package components

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	defaultMinDistance = 0.1
	defaultMaxDistance = 10.0
	// 89 degrees, keeps the view away from the poles
	pitchLimit = float32(1.55334306)
)

// ArcBallCamera orbits a target point at a given distance. Dragging rotates
// the orbit and scrolling zooms in and out.
type ArcBallCamera struct {
	Target   mgl32.Vec3
	Distance float32
	// Yaw and Pitch in radians.
	Yaw   float32
	Pitch float32

	RotateSpeed float32
	ZoomSpeed   float32

	MinDistance float32
	MaxDistance float32

	isDirty    bool
	viewMatrix mgl32.Mat4
}

func NewArcBallCamera(target mgl32.Vec3, distance float32) *ArcBallCamera {
	c := &ArcBallCamera{
		Target:      target,
		RotateSpeed: 0.005,
		ZoomSpeed:   0.1,
		MinDistance: defaultMinDistance,
		MaxDistance: defaultMaxDistance,
		isDirty:     true,
	}
	c.Distance = c.clampDistance(distance)
	return c
}

// SetDistanceBounds derives the zoom range from the projection planes:
// [near*10, far/2]. The current distance is clamped into the new range.
func (c *ArcBallCamera) SetDistanceBounds(near, far float32) {
	c.MinDistance = near * 10
	c.MaxDistance = far / 2
	if c.MaxDistance < c.MinDistance {
		c.MaxDistance = c.MinDistance
	}
	c.Distance = c.clampDistance(c.Distance)
	c.isDirty = true
}

// Update applies a mouse drag (in pixels) and a scroll offset and returns
// the resulting view matrix. Drags only rotate while rotating is true.
func (c *ArcBallCamera) Update(dx, dy float32, scroll float32, rotating bool) mgl32.Mat4 {
	if rotating && (dx != 0 || dy != 0) {
		c.Yaw += dx * c.RotateSpeed
		c.Pitch = mgl32.Clamp(c.Pitch+dy*c.RotateSpeed, -pitchLimit, pitchLimit)
		c.isDirty = true
	}
	if scroll != 0 {
		c.Distance = c.clampDistance(c.Distance * (1 - scroll*c.ZoomSpeed))
		c.isDirty = true
	}
	return c.View()
}

// Position is the eye position on the orbit.
func (c *ArcBallCamera) Position() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	offset := mgl32.Vec3{
		cp * float32(math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		cp * float32(math.Cos(float64(c.Yaw))),
	}
	return c.Target.Add(offset.Mul(c.Distance))
}

func (c *ArcBallCamera) View() mgl32.Mat4 {
	if c.isDirty {
		c.viewMatrix = mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
		c.isDirty = false
	}
	return c.viewMatrix
}

func (c *ArcBallCamera) clampDistance(d float32) float32 {
	return mgl32.Clamp(d, c.MinDistance, c.MaxDistance)
}
