package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/subsurface/engine/core"
)

// GeneratePlane builds a horizontal plane at height y facing +Y, centred on
// the origin and split into xSegments*zSegments quads.
func GeneratePlane(width, depth float32, xSegments, zSegments uint32, y float32) (*Mesh, error) {
	if width <= 0 || depth <= 0 {
		return nil, fmt.Errorf("plane size must be positive, got %gx%g", width, depth)
	}
	if xSegments < 1 {
		core.LogWarn("xSegments must be a positive number. Defaulting to one.")
		xSegments = 1
	}
	if zSegments < 1 {
		core.LogWarn("zSegments must be a positive number. Defaulting to one.")
		zSegments = 1
	}

	mesh := &Mesh{
		Name:     "plane",
		Vertices: make([]Vertex, 0, xSegments*zSegments*4),
		Indices:  make([]uint32, 0, xSegments*zSegments*6),
	}
	up := mgl32.Vec3{0, 1, 0}
	segW := width / float32(xSegments)
	segD := depth / float32(zSegments)
	for z := uint32(0); z < zSegments; z++ {
		for x := uint32(0); x < xSegments; x++ {
			minX := float32(x)*segW - width*0.5
			minZ := float32(z)*segD - depth*0.5
			maxX := minX + segW
			maxZ := minZ + segD

			base := uint32(len(mesh.Vertices))
			mesh.Vertices = append(mesh.Vertices,
				Vertex{Position: mgl32.Vec3{minX, y, minZ}, Normal: up},
				Vertex{Position: mgl32.Vec3{minX, y, maxZ}, Normal: up},
				Vertex{Position: mgl32.Vec3{maxX, y, maxZ}, Normal: up},
				Vertex{Position: mgl32.Vec3{maxX, y, minZ}, Normal: up},
			)
			mesh.Indices = append(mesh.Indices,
				base+0, base+1, base+2,
				base+0, base+2, base+3,
			)
		}
	}
	return mesh, nil
}

// GenerateTorus builds a torus lying in the XZ plane around center. rings
// subdivide the major circle and sides the tube.
func GenerateTorus(major, minor float32, rings, sides uint32, center mgl32.Vec3) (*Mesh, error) {
	if major <= 0 || minor <= 0 || minor >= major {
		return nil, fmt.Errorf("torus radii must satisfy 0 < minor < major, got %g and %g", minor, major)
	}
	if rings < 3 || sides < 3 {
		return nil, fmt.Errorf("torus needs at least 3 rings and 3 sides, got %d and %d", rings, sides)
	}

	mesh := &Mesh{
		Name:     "torus",
		Vertices: make([]Vertex, 0, (rings+1)*(sides+1)),
		Indices:  make([]uint32, 0, rings*sides*6),
	}
	for i := uint32(0); i <= rings; i++ {
		u := 2 * math.Pi * float64(i) / float64(rings)
		cu, su := float32(math.Cos(u)), float32(math.Sin(u))
		for j := uint32(0); j <= sides; j++ {
			v := 2 * math.Pi * float64(j) / float64(sides)
			cv, sv := float32(math.Cos(v)), float32(math.Sin(v))
			r := major + minor*cv
			mesh.Vertices = append(mesh.Vertices, Vertex{
				Position: center.Add(mgl32.Vec3{r * cu, minor * sv, r * su}),
				Normal:   mgl32.Vec3{cv * cu, sv, cv * su},
			})
		}
	}
	row := sides + 1
	for i := uint32(0); i < rings; i++ {
		for j := uint32(0); j < sides; j++ {
			a := i*row + j
			b := (i+1)*row + j
			c := (i+1)*row + j + 1
			d := i*row + j + 1
			mesh.Indices = append(mesh.Indices, a, c, b, a, d, c)
		}
	}
	return mesh, nil
}

// Scene is the demo scene: a torus floating above a ground plane.
func Scene() (*Mesh, error) {
	torus, err := GenerateTorus(0.25, 0.1, 64, 32, mgl32.Vec3{0, 0.3, 0})
	if err != nil {
		return nil, err
	}
	plane, err := GeneratePlane(4, 4, 8, 8, 0)
	if err != nil {
		return nil, err
	}
	scene := &Mesh{Name: "scene"}
	scene.Append(torus)
	scene.Append(plane)
	return scene, nil
}
