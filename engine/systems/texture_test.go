package systems

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/anima-forward/engine/renderer/forward"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

func newTextureSystem(t *testing.T, max uint32) (*drivertest.Device, *TextureSystem) {
	t.Helper()
	dev := drivertest.NewDevice()
	pool, err := dev.CreateCommandPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Destroy)
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: max}, forward.NewTextureUploader(dev, dev.Queue(), pool, driver.WaitForever))
	if err != nil {
		t.Fatal(err)
	}
	return dev, ts
}

func image(name string, w, h uint32) *metadata.ImageResourceData {
	return &metadata.ImageResourceData{Name: name, ChannelCount: 4, Width: w, Height: h, Pixels: make([]uint8, w*h*4)}
}

func TestTextureSystemDefault(t *testing.T) {
	_, ts := newTextureSystem(t, 4)
	if err := ts.Initialize(); err != nil {
		t.Fatal(err)
	}
	id := ts.Default()
	tex, ok := ts.Get(id)
	if !ok || tex.Width != 256 || tex.State() != forward.TextureReady {
		t.Fatalf("default texture %+v", tex)
	}
	if byName, ok := ts.Acquire(metadata.DEFAULT_TEXTURE_NAME); !ok || byName != id {
		t.Fatal("default texture not registered by name")
	}
	if view, ok := ts.TextureView(id); !ok || view != tex.View {
		t.Fatal("TextureView does not resolve the default texture")
	}
}

func TestTextureSystemLimits(t *testing.T) {
	_, ts := newTextureSystem(t, 2)
	if _, err := ts.Load(image("a", 1, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.Load(image("a", 1, 1)); err == nil {
		t.Fatal("loaded the same name twice")
	}
	if _, err := ts.Load(&metadata.ImageResourceData{Name: "bad", Width: 2, Height: 2}); !errors.Is(err, core.ErrTextureLoad) {
		t.Fatalf("err = %v, want ErrTextureLoad", err)
	}
	if _, _, err := ts.Stage(image("b", 1, 1)); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.Load(image("c", 1, 1)); err == nil {
		t.Fatal("loaded past MaxTextureCount")
	}

	if _, err := NewTextureSystem(&TextureSystemConfig{}, nil); err == nil {
		t.Fatal("created a texture system without capacity")
	}
}

func TestTextureSystemReleaseInvalidatesID(t *testing.T) {
	dev, ts := newTextureSystem(t, 4)
	id, err := ts.Load(image("a", 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Release(id); err != nil {
		t.Fatal(err)
	}
	if _, ok := ts.TextureView(id); ok {
		t.Fatal("released id still resolves")
	}
	if err := ts.Release(id); !errors.Is(err, core.ErrStaleTexture) {
		t.Fatalf("second Release = %v, want ErrStaleTexture", err)
	}
	if _, ok := ts.Acquire("a"); ok {
		t.Fatal("released texture still known by name")
	}

	// The slot is reused with a new generation.
	again, err := ts.Load(image("b", 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	if again.Index != id.Index || again.Generation == id.Generation {
		t.Fatalf("reused id %+v after %+v", again, id)
	}
	if _, ok := ts.TextureView(id); ok {
		t.Fatal("stale id resolves to the new texture")
	}
	if err := ts.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if dev.Live(drivertest.KindImage) != 0 || dev.Live(drivertest.KindImageView) != 0 {
		t.Fatalf("leaked %v", dev.Leaks())
	}
}

func TestTextureSystemReplace(t *testing.T) {
	_, ts := newTextureSystem(t, 4)
	old, err := ts.Load(image("wall", 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	gotOld, replacement, err := ts.Replace(image("wall", 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	if gotOld != old || replacement == old {
		t.Fatalf("Replace returned %+v %+v", gotOld, replacement)
	}
	if byName, _ := ts.Acquire("wall"); byName != replacement {
		t.Fatal("name still maps to the old texture")
	}
	// Both stay alive until the old one is released.
	if ts.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ts.Len())
	}
	if err := ts.Release(old); err != nil {
		t.Fatal(err)
	}
	if byName, ok := ts.Acquire("wall"); !ok || byName != replacement {
		t.Fatal("releasing the old texture dropped the name")
	}
	if _, _, err := ts.Replace(image("unknown", 1, 1)); err == nil {
		t.Fatal("replaced a texture that was never loaded")
	}
}
