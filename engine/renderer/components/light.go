package components

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/subsurface/engine/core"
)

// LightController moves a spot light on a horizontal circle of radius one
// around the vertical axis, aimed at a fixed target.
type LightController struct {
	// Theta is the angle on the circle in [0, 2π).
	Theta       float32
	AngularRate float32
	Height      float32
	Target      mgl32.Vec3

	fovY float32
	near float32
	far  float32
}

func NewLightController(cfg core.LightConfig) *LightController {
	return &LightController{
		AngularRate: cfg.AngularRate,
		Height:      cfg.Height,
		Target:      mgl32.Vec3(cfg.Target),
		fovY:        cfg.FovY,
		near:        cfg.Near,
		far:         cfg.Far,
	}
}

// Update advances the angle by dt seconds: left turns counter-clockwise seen
// from above, right clockwise.
func (l *LightController) Update(dt float64, left, right bool) {
	var dir float64
	if left {
		dir++
	}
	if right {
		dir--
	}
	if dir == 0 {
		return
	}
	theta := math.Mod(float64(l.Theta)+dir*float64(l.AngularRate)*dt, 2*math.Pi)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	l.Theta = float32(theta)
}

func (l *LightController) Position() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(l.Theta))),
		l.Height,
		float32(math.Sin(float64(l.Theta))),
	}
}

func (l *LightController) View() mgl32.Mat4 {
	return mgl32.LookAtV(l.Position(), l.Target, mgl32.Vec3{0, 1, 0})
}

func (l *LightController) Projection() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(l.fovY), 1, l.near, l.far)
}

// ShadowMatrix maps world space to the light's clip space.
func (l *LightController) ShadowMatrix() mgl32.Mat4 {
	return ProjectionCorrection.Mul4(l.Projection()).Mul4(l.View())
}
