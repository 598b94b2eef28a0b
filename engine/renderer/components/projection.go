package components

import "github.com/go-gl/mathgl/mgl32"

// ProjectionCorrection maps OpenGL clip space to Vulkan clip space: Y is
// flipped and depth is remapped from [-1,1] to [0,1].
var ProjectionCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// ViewProjection builds a corrected perspective view-projection.
func ViewProjection(fovYDegrees, aspect, near, far float32, view mgl32.Mat4) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(fovYDegrees), aspect, near, far)
	return ProjectionCorrection.Mul4(proj).Mul4(view)
}
