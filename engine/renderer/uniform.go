package renderer

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/math/f32"

	"github.com/spaghettifunk/subsurface/engine/renderer/shading"
)

// UniformBlockSize is the std140 size of UniformBlock.
const UniformBlockSize = 3*64 + 6*16

// UniformBlock mirrors the `Frame` uniform block shared by every shader.
// Field order and types match the std140 layout on the GPU.
type UniformBlock struct {
	ViewProjection      mgl32.Mat4
	ShadowMatrix        mgl32.Mat4
	InverseShadowMatrix mgl32.Mat4
	LightPosition       f32.Vec4
	CameraPosition      f32.Vec4
	// radius, translucency, shadow bias, distortion
	Scattering f32.Vec4
	// power, ambient, attenuation, unused
	Falloff         f32.Vec4
	Albedo          f32.Vec4
	SubsurfaceColor f32.Vec4
}

// NewUniformBlock fills the block for one frame. The light position is
// recovered from the shadow matrix and the eye from the view-projection.
func NewUniformBlock(viewProjection, shadowMatrix mgl32.Mat4, p shading.Params) UniformBlock {
	light := EyeFromViewProjection(shadowMatrix)
	eye := EyeFromViewProjection(viewProjection)
	return UniformBlock{
		ViewProjection:      viewProjection,
		ShadowMatrix:        shadowMatrix,
		InverseShadowMatrix: shadowMatrix.Inv(),
		LightPosition:       f32.Vec4{light.X(), light.Y(), light.Z(), 1},
		CameraPosition:      f32.Vec4{eye.X(), eye.Y(), eye.Z(), 1},
		Scattering:          f32.Vec4{p.Radius, p.Translucency, p.ShadowBias, p.Distortion},
		Falloff:             f32.Vec4{p.Power, p.Ambient, p.Attenuation, 0},
		Albedo:              f32.Vec4{p.Albedo.X(), p.Albedo.Y(), p.Albedo.Z(), 1},
		SubsurfaceColor:     f32.Vec4{p.SubsurfaceColor.X(), p.SubsurfaceColor.Y(), p.SubsurfaceColor.Z(), 1},
	}
}

// Bytes encodes the block in the little-endian layout the GPU reads.
func (u UniformBlock) Bytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, UniformBlockSize))
	// writing fixed-size values into a bytes.Buffer cannot fail
	_ = binary.Write(buf, binary.LittleEndian, u)
	return buf.Bytes()
}

// EyeFromViewProjection recovers the centre of projection of a perspective
// view-projection matrix: the point that maps to clip x = y = w = 0. It is
// the null vector of rows 0, 1 and 3, taken as a generalized cross product.
func EyeFromViewProjection(m mgl32.Mat4) mgl32.Vec3 {
	r0, r1, r3 := m.Row(0), m.Row(1), m.Row(3)
	minor := func(skip int) float32 {
		cols := make([]int, 0, 3)
		for c := 0; c < 4; c++ {
			if c != skip {
				cols = append(cols, c)
			}
		}
		// determinant is invariant under transpose, so rows fill columns
		return mgl32.Mat3{
			r0[cols[0]], r0[cols[1]], r0[cols[2]],
			r1[cols[0]], r1[cols[1]], r1[cols[2]],
			r3[cols[0]], r3[cols[1]], r3[cols[2]],
		}.Det()
	}
	h := mgl32.Vec4{minor(0), -minor(1), minor(2), -minor(3)}
	if math.Abs(float64(h.W())) < 1e-12 {
		return mgl32.Vec3{}
	}
	return h.Vec3().Mul(1 / h.W())
}
