package forward

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

// textureTable is a TextureLookup over textures created in the test.
type textureTable struct {
	ids *core.IdentifierPool
}

func newTextureTable() *textureTable {
	return &textureTable{ids: core.NewIdentifierPool(8)}
}

func (tt *textureTable) add(t *TextureResource) metadata.TextureID {
	return tt.ids.Acquire(t)
}

func (tt *textureTable) remove(id metadata.TextureID) {
	if t, ok := tt.ids.Owner(id).(*TextureResource); ok {
		_ = tt.ids.Release(id)
		t.Destroy()
	}
}

func (tt *textureTable) TextureView(id metadata.TextureID) (driver.ImageView, bool) {
	t, ok := tt.ids.Owner(id).(*TextureResource)
	if !ok || t.View == nil {
		return nil, false
	}
	return t.View, true
}

// testScene is a fixed projection and a list of entities.
type testScene struct {
	projection mgl32.Mat4
	entities   []metadata.Entity
}

func (s *testScene) Projection() mgl32.Mat4 {
	return s.projection
}

func (s *testScene) EntitiesByMesh(meshID string) []metadata.Entity {
	var out []metadata.Entity
	for _, e := range s.entities {
		if e.MeshID == meshID {
			out = append(out, e)
		}
	}
	return out
}

func solidPixels(w, h uint32) []byte {
	px := make([]byte, w*h*4)
	for i := range px {
		px[i] = 0xff
	}
	return px
}

func newUploader(t *testing.T, dev *drivertest.Device) *TextureUploader {
	t.Helper()
	pool, err := dev.CreateCommandPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Destroy)
	return NewTextureUploader(dev, dev.Queue(), pool, driver.WaitForever)
}

func newMesh(t *testing.T, dev *drivertest.Device, id string, texture metadata.TextureID) *metadata.Mesh {
	t.Helper()
	vb, err := dev.CreateBuffer(driver.BufferDesc{Size: 4 * 20, Usage: driver.BufferUsageVertex, HostVisible: true})
	if err != nil {
		t.Fatal(err)
	}
	ib, err := dev.CreateBuffer(driver.BufferDesc{Size: 6 * 4, Usage: driver.BufferUsageIndex, HostVisible: true})
	if err != nil {
		t.Fatal(err)
	}
	return &metadata.Mesh{ID: id, VertexBuffer: vb, IndexBuffer: ib, IndexCount: 6, TextureID: texture}
}

// writeShaders writes two minimal SPIR-V files and returns a config that
// points at them.
func writeShaders(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	word := make([]byte, 8)
	binary.LittleEndian.PutUint32(word, 0x07230203)
	binary.LittleEndian.PutUint32(word[4:], 0x00010000)

	cfg := DefaultConfig()
	cfg.VertexShader = filepath.Join(dir, "fwd_vertex.spv")
	cfg.FragmentShader = filepath.Join(dir, "fwd_fragment.spv")
	for _, p := range []string{cfg.VertexShader, cfg.FragmentShader} {
		if err := os.WriteFile(p, word, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func pushedMatrix(data []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return m
}
