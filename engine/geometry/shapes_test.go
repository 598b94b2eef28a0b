package geometry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertFrontFacing checks every triangle winds counter-clockwise around its
// vertex normals.
func assertFrontFacing(t *testing.T, m *Mesh) {
	t.Helper()
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Vertices[m.Indices[i]], m.Vertices[m.Indices[i+1]], m.Vertices[m.Indices[i+2]]
		face := b.Position.Sub(a.Position).Cross(c.Position.Sub(a.Position))
		if face.Len() < 1e-9 {
			continue
		}
		n := a.Normal.Add(b.Normal).Add(c.Normal)
		if !assert.Greater(t, face.Dot(n), float32(0), "triangle %d of %s", i/3, m.Name) {
			return
		}
	}
}

func TestGeneratePlane(t *testing.T) {
	m, err := GeneratePlane(2, 4, 2, 3, 0.5)
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 2*3*4)
	assert.Len(t, m.Indices, 2*3*6)
	for _, v := range m.Vertices {
		assert.Equal(t, float32(0.5), v.Position.Y())
		assert.Equal(t, mgl32.Vec3{0, 1, 0}, v.Normal)
		assert.LessOrEqual(t, math.Abs(float64(v.Position.X())), 1.0)
		assert.LessOrEqual(t, math.Abs(float64(v.Position.Z())), 2.0)
	}
	assertFrontFacing(t, m)

	_, err = GeneratePlane(0, 1, 1, 1, 0)
	assert.Error(t, err)

	// zero segments fall back to one
	m, err = GeneratePlane(1, 1, 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, m.Indices, 6)
}

func TestGenerateTorus(t *testing.T) {
	center := mgl32.Vec3{0, 0.3, 0}
	m, err := GenerateTorus(0.25, 0.1, 16, 8, center)
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 17*9)
	assert.Len(t, m.Indices, 16*8*6)

	for _, v := range m.Vertices {
		assert.InDelta(t, 1.0, v.Normal.Len(), 1e-5)
		// every vertex sits on the tube surface
		p := v.Position.Sub(center)
		ring := mgl32.Vec2{p.X(), p.Z()}.Len()
		tube := mgl32.Vec2{ring - 0.25, p.Y()}.Len()
		assert.InDelta(t, 0.1, tube, 1e-5)
	}
	assertFrontFacing(t, m)

	_, err = GenerateTorus(0.1, 0.25, 16, 8, center)
	assert.Error(t, err)
	_, err = GenerateTorus(0.25, 0.1, 2, 8, center)
	assert.Error(t, err)
}

func TestSceneMergesTorusAndPlane(t *testing.T) {
	torus, err := GenerateTorus(0.25, 0.1, 64, 32, mgl32.Vec3{0, 0.3, 0})
	require.NoError(t, err)
	scene, err := Scene()
	require.NoError(t, err)

	assert.Greater(t, len(scene.Vertices), len(torus.Vertices))
	for _, i := range scene.Indices {
		assert.Less(t, int(i), len(scene.Vertices))
	}
	// plane indices are rebased past the torus vertices
	first := scene.Indices[len(torus.Indices)]
	assert.Equal(t, uint32(len(torus.Vertices)), first)
	assert.Equal(t, uint32(len(scene.Indices)), scene.IndexCount())
}

func TestMeshBytes(t *testing.T) {
	m := &Mesh{
		Vertices: []Vertex{{Position: mgl32.Vec3{1, 2, 3}, Normal: mgl32.Vec3{0, 1, 0}}},
		Indices:  []uint32{0, 0, 0},
	}
	vb := m.VertexBytes()
	require.Len(t, vb, VertexStride)
	assert.Equal(t, math.Float32bits(2), binary.LittleEndian.Uint32(vb[4:8]))
	assert.Equal(t, math.Float32bits(1), binary.LittleEndian.Uint32(vb[16:20]))
	assert.Len(t, m.IndexBytes(), 12)

	layout := Layout()
	assert.Equal(t, uint32(VertexStride), layout.Stride)
	assert.Len(t, layout.Attributes, 2)
}
