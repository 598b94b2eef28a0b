package shading

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Sample is the input of one shaded fragment. LightDepth is the fragment's
// own depth in light clip space and ShadowDepth the depth stored in the
// shadow map at the same texel, both in [0,1].
type Sample struct {
	Position    mgl32.Vec3
	Normal      mgl32.Vec3
	LightDepth  float32
	ShadowDepth float32
	// Thickness is the distance light travelled inside the object.
	Thickness float32
}

type Result struct {
	Visibility float32
	Direct     mgl32.Vec3
	Scatter    mgl32.Vec3
	Color      mgl32.Vec3
}

// Attenuation is the light falloff at distance d.
func Attenuation(p Params, d float32) float32 {
	return 1 / (1 + p.Attenuation*d*d)
}

// Visibility is 0 when the fragment lies behind the occluder stored in the
// shadow map, 1 otherwise.
func Visibility(lightDepth, shadowDepth, bias float32) float32 {
	if lightDepth-bias > shadowDepth {
		return 0
	}
	return 1
}

// Thickness returns the distance between position and the point where the
// light ray entered the object. The entry point is recovered by unprojecting
// the stored shadow depth at ndc (light-space x,y in [-1,1]) through the
// inverse shadow matrix.
func Thickness(inverseShadow mgl32.Mat4, ndc mgl32.Vec2, shadowDepth float32, position mgl32.Vec3) float32 {
	h := inverseShadow.Mul4x1(mgl32.Vec4{ndc.X(), ndc.Y(), shadowDepth, 1})
	if h.W() == 0 {
		return 0
	}
	entry := h.Vec3().Mul(1 / h.W())
	return position.Sub(entry).Len()
}

// Shade evaluates the lighting of one fragment: shadowed diffuse plus a
// transmitted term driven by thickness. Transmission does not depend on
// visibility, which is what lets thin geometry glow when back-lit.
func Shade(p Params, light, eye mgl32.Vec3, s Sample) Result {
	n := s.Normal.Normalize()
	toLight := light.Sub(s.Position)
	a := Attenuation(p, toLight.Len())
	l := toLight.Normalize()
	v := eye.Sub(s.Position).Normalize()

	vis := Visibility(s.LightDepth, s.ShadowDepth, p.ShadowBias)
	diffuse := float32(math.Max(float64(n.Dot(l)), 0)) * a
	direct := p.Albedo.Mul(vis * diffuse)

	h := l.Add(n.Mul(p.Distortion)).Normalize()
	backLit := float32(math.Pow(float64(saturate(v.Dot(h.Mul(-1)))), float64(p.Power)))
	transmit := p.Translucency * float32(math.Exp(float64(-s.Thickness/p.Radius))) * a * (backLit + p.Ambient)
	scatter := p.SubsurfaceColor.Mul(transmit)

	return Result{
		Visibility: vis,
		Direct:     direct,
		Scatter:    scatter,
		Color:      direct.Add(scatter),
	}
}

func saturate(x float32) float32 {
	return mgl32.Clamp(x, 0, 1)
}
