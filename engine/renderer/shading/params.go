package shading

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/subsurface/engine/core"
)

// Params are the tunable coefficients of the translucency model.
type Params struct {
	// Radius is the distance over which transmitted light falls off by 1/e.
	Radius       float32
	Translucency float32
	ShadowBias   float32
	// Distortion bends the light vector along the surface normal.
	Distortion float32
	Power      float32
	Ambient    float32
	// Attenuation is the quadratic light falloff coefficient.
	Attenuation     float32
	Albedo          mgl32.Vec3
	SubsurfaceColor mgl32.Vec3
}

func FromConfig(c core.ShadingConfig) Params {
	return Params{
		Radius:          c.Radius,
		Translucency:    c.Translucency,
		ShadowBias:      c.ShadowBias,
		Distortion:      c.Distortion,
		Power:           c.Power,
		Ambient:         c.Ambient,
		Attenuation:     c.Attenuation,
		Albedo:          mgl32.Vec3(c.Albedo),
		SubsurfaceColor: mgl32.Vec3(c.SubsurfaceColor),
	}
}

func DefaultParams() Params {
	return FromConfig(core.DefaultShadingConfig())
}
