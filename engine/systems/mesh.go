package systems

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

// Floats per vertex: position xyz, texture coordinates uv.
const vertexFloats = 5

type MeshConfig struct {
	Name     string
	Vertices []float32
	Indices  []uint32
	Texture  metadata.TextureID
}

// MeshSystem owns the vertex and index buffers of every mesh.
type MeshSystem struct {
	device driver.Device
	meshes map[string]*metadata.Mesh
}

func NewMeshSystem(device driver.Device) *MeshSystem {
	return &MeshSystem{
		device: device,
		meshes: make(map[string]*metadata.Mesh),
	}
}

func (ms *MeshSystem) Create(config MeshConfig) (*metadata.Mesh, error) {
	if _, exists := ms.meshes[config.Name]; exists {
		return nil, errors.Newf("mesh `%s` already exists", config.Name)
	}
	if len(config.Vertices) == 0 || len(config.Vertices)%vertexFloats != 0 {
		return nil, errors.Newf("mesh `%s`: %d floats is not a whole number of vertices", config.Name, len(config.Vertices))
	}
	if len(config.Indices) == 0 {
		return nil, errors.Newf("mesh `%s` has no indices", config.Name)
	}

	vb, err := ms.upload(driver.BufferUsageVertex, floatBytes(config.Vertices))
	if err != nil {
		return nil, errors.Wrapf(err, "vertex buffer of mesh `%s`", config.Name)
	}
	ib, err := ms.upload(driver.BufferUsageIndex, indexBytes(config.Indices))
	if err != nil {
		vb.Destroy()
		return nil, errors.Wrapf(err, "index buffer of mesh `%s`", config.Name)
	}

	mesh := &metadata.Mesh{
		ID:           config.Name,
		VertexBuffer: vb,
		IndexBuffer:  ib,
		IndexCount:   uint32(len(config.Indices)),
		TextureID:    config.Texture,
	}
	ms.meshes[config.Name] = mesh
	core.LogDebug("mesh `%s` created: %d vertices, %d indices", config.Name, len(config.Vertices)/vertexFloats, len(config.Indices))
	return mesh, nil
}

func (ms *MeshSystem) upload(usage driver.BufferUsage, data []byte) (driver.Buffer, error) {
	b, err := ms.device.CreateBuffer(driver.BufferDesc{
		Size:        uint64(len(data)),
		Usage:       usage,
		HostVisible: true,
	})
	if err != nil {
		return nil, errors.Mark(err, core.ErrDeviceFailure)
	}
	if err := b.Write(0, data); err != nil {
		b.Destroy()
		return nil, errors.Mark(err, core.ErrDeviceFailure)
	}
	return b, nil
}

func (ms *MeshSystem) Get(name string) (*metadata.Mesh, bool) {
	m, ok := ms.meshes[name]
	return m, ok
}

// Destroy frees the buffers of the mesh. The renderer must have been told
// through OnMeshUnloaded first.
func (ms *MeshSystem) Destroy(name string) {
	m, ok := ms.meshes[name]
	if !ok {
		return
	}
	delete(ms.meshes, name)
	m.VertexBuffer.Destroy()
	m.IndexBuffer.Destroy()
}

func (ms *MeshSystem) Shutdown() {
	for name := range ms.meshes {
		ms.Destroy(name)
	}
}

// GenerateCube returns a cube centered on the origin with 4 vertices per
// face, so every face gets the full texture.
func GenerateCube(width, height, depth, tileX, tileY float32) ([]float32, []uint32) {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1.0
	}
	if tileX == 0 {
		tileX = 1.0
	}
	if tileY == 0 {
		tileY = 1.0
	}
	half := mgl32.Vec3{width * 0.5, height * 0.5, depth * 0.5}

	// Each face: normal axis, then the in-plane axes u and v.
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},   // front
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}}, // back
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},  // left
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},  // right
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},  // bottom
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},  // top
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	vertices := make([]float32, 0, len(faces)*4*vertexFloats)
	indices := make([]uint32, 0, len(faces)*6)
	for f, face := range faces {
		for _, c := range corners {
			p := face.n.Add(face.u.Mul(c[0])).Add(face.v.Mul(c[1]))
			p = mgl32.Vec3{p[0] * half[0], p[1] * half[1], p[2] * half[2]}
			vertices = append(vertices, p[0], p[1], p[2], (c[0]+1)*0.5*tileX, (c[1]+1)*0.5*tileY)
		}
		base := uint32(f * 4)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}

func floatBytes(fs []float32) []byte {
	out := make([]byte, len(fs)*4)
	for i, f := range fs {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func indexBytes(is []uint32) []byte {
	out := make([]byte, len(is)*4)
	for i, v := range is {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}
