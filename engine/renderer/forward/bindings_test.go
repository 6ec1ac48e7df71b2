package forward

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

func newCacheWithTexture(t *testing.T, maxSets uint32) (*drivertest.Device, *BindingCache, *textureTable, metadata.TextureID) {
	t.Helper()
	dev := drivertest.NewDevice()
	table := newTextureTable()
	tex, err := newUploader(t, dev).Upload("t", solidPixels(2, 2), 2, 2, driver.FormatRGBA8Srgb)
	if err != nil {
		t.Fatal(err)
	}
	id := table.add(tex)
	c, err := NewBindingCache(dev, table, maxSets)
	if err != nil {
		t.Fatal(err)
	}
	return dev, c, table, id
}

func TestBindingCacheGetIsIdempotent(t *testing.T) {
	dev, c, table, id := newCacheWithTexture(t, 4)
	defer c.Destroy()

	first, err := c.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatal("Get returned a different set for the same texture")
	}
	if got := dev.Created(drivertest.KindDescriptorSet); got != 1 {
		t.Fatalf("allocated %d sets, want 1", got)
	}
	w := first.(*drivertest.DescriptorSet).Writes[textureBinding]
	if view, _ := table.TextureView(id); w.View != view || w.Sampler == nil {
		t.Fatalf("set does not sample the texture view: %+v", w)
	}
}

func TestBindingCacheEvictThenGetAllocatesAgain(t *testing.T) {
	dev, c, _, id := newCacheWithTexture(t, 4)
	defer c.Destroy()

	first, _ := c.Get(id)
	if err := c.Evict(id); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after Evict", c.Len())
	}
	if !first.(*drivertest.DescriptorSet).Destroyed() {
		t.Fatal("evicted set was not freed")
	}
	second, err := c.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("Get after Evict returned the freed set")
	}
	if got := dev.Created(drivertest.KindDescriptorSet); got != 2 {
		t.Fatalf("allocated %d sets, want 2", got)
	}

	// Unknown ids are ignored.
	if err := c.Evict(metadata.InvalidTextureID); err != nil {
		t.Fatal(err)
	}
}

func TestBindingCacheRejectsStaleTexture(t *testing.T) {
	_, c, table, id := newCacheWithTexture(t, 4)
	defer c.Destroy()

	table.remove(id)
	if _, err := c.Get(id); !errors.Is(err, core.ErrStaleTexture) {
		t.Fatalf("Get on a released texture = %v, want ErrStaleTexture", err)
	}
	if c.Len() != 0 {
		t.Fatal("stale lookup created an entry")
	}
}

func TestBindingCachePoolExhaustion(t *testing.T) {
	dev := drivertest.NewDevice()
	table := newTextureTable()
	up := newUploader(t, dev)
	c, err := NewBindingCache(dev, table, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Destroy()

	var ids []metadata.TextureID
	for _, name := range []string{"a", "b"} {
		tex, err := up.Upload(name, solidPixels(1, 1), 1, 1, driver.FormatRGBA8Srgb)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, table.add(tex))
	}
	if _, err := c.Get(ids[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ids[1]); !errors.Is(err, core.ErrDeviceFailure) {
		t.Fatalf("Get beyond pool size = %v, want ErrDeviceFailure", err)
	}
	// Evicting makes room again.
	if err := c.Evict(ids[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ids[1]); err != nil {
		t.Fatal(err)
	}
}

func TestBindingCacheDestroy(t *testing.T) {
	dev, c, table, id := newCacheWithTexture(t, 4)
	if _, err := c.Get(id); err != nil {
		t.Fatal(err)
	}
	c.Destroy()
	table.remove(id)
	leaks := dev.Leaks()
	// The uploader's command pool is released by t.Cleanup.
	if len(leaks) != 1 || dev.Live(drivertest.KindCommandPool) != 1 {
		t.Fatalf("leaked %v", leaks)
	}
}
