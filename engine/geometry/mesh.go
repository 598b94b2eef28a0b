package geometry

import (
	"bytes"
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/subsurface/engine/renderer/metadata"
)

// VertexStride is the size in bytes of one interleaved Vertex.
const VertexStride = 24

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

// Layout is the vertex input layout every pipeline is built with.
func Layout() metadata.VertexLayout {
	return metadata.VertexLayout{
		Stride: VertexStride,
		Attributes: []metadata.VertexAttribute{
			{Location: 0, Format: metadata.VertexFormatFloat3, Offset: 0},
			{Location: 1, Format: metadata.VertexFormatFloat3, Offset: 12},
		},
	}
}

// Mesh is indexed triangle geometry. Triangles are counter-clockwise when
// seen from the side their normals point to.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

// Append merges other into m, rebasing its indices.
func (m *Mesh) Append(other *Mesh) {
	base := uint32(len(m.Vertices))
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, i := range other.Indices {
		m.Indices = append(m.Indices, base+i)
	}
}

func (m *Mesh) IndexCount() uint32 {
	return uint32(len(m.Indices))
}

// VertexBytes encodes the vertices in the little-endian interleaved layout.
func (m *Mesh) VertexBytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(m.Vertices)*VertexStride))
	_ = binary.Write(buf, binary.LittleEndian, m.Vertices)
	return buf.Bytes()
}

func (m *Mesh) IndexBytes() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(m.Indices)*4))
	_ = binary.Write(buf, binary.LittleEndian, m.Indices)
	return buf.Bytes()
}
