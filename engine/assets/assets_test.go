package assets

import (
	"context"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func assetDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "textures"), 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "textures", "a.png"), 1, 1)
	writePNG(t, filepath.Join(dir, "textures", "b.png"), 2, 3)
	spv := make([]byte, 4)
	binary.LittleEndian.PutUint32(spv, 0x07230203)
	if err := os.WriteFile(filepath.Join(dir, "vert.spv"), spv, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newManager(t *testing.T, dir string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { am.Close() })
	return am
}

func TestInitializeIndexesKnownTypes(t *testing.T) {
	dir := assetDir(t)
	am := newManager(t, dir)

	if am.Len() != 3 {
		t.Fatalf("indexed %d assets, want 3", am.Len())
	}
	images := am.Assets(metadata.ResourceTypeImage)
	want := []string{filepath.Join(dir, "textures", "a.png"), filepath.Join(dir, "textures", "b.png")}
	if len(images) != 2 || images[0] != want[0] || images[1] != want[1] {
		t.Fatalf("images = %v, want %v", images, want)
	}
	if shaders := am.Assets(metadata.ResourceTypeShader); len(shaders) != 1 {
		t.Fatalf("shaders = %v", shaders)
	}
}

func TestLoadTexturesKeepsOrder(t *testing.T) {
	dir := assetDir(t)
	am := newManager(t, dir)

	paths := []string{filepath.Join(dir, "textures", "b.png"), filepath.Join(dir, "textures", "a.png")}
	out, err := am.LoadTextures(context.Background(), paths, &metadata.ImageResourceParams{FlipY: true})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Name != "b" || out[0].Width != 2 || out[0].Height != 3 || out[1].Name != "a" {
		t.Fatalf("loaded %s %s", out[0].Name, out[1].Name)
	}
}

func TestLoadTexturesFailures(t *testing.T) {
	dir := assetDir(t)
	am := newManager(t, dir)

	if _, err := am.LoadTextures(context.Background(), []string{filepath.Join(dir, "missing.png")}, nil); err == nil {
		t.Fatal("loaded an unindexed path")
	}
	if _, err := am.LoadTextures(context.Background(), []string{filepath.Join(dir, "vert.spv")}, nil); !errors.Is(err, core.ErrTextureLoad) {
		t.Fatalf("err = %v, want ErrTextureLoad", err)
	}
}

func TestChangesReportsRewrittenImages(t *testing.T) {
	dir := assetDir(t)
	am := newManager(t, dir)

	path := filepath.Join(dir, "textures", "a.png")
	writePNG(t, path, 4, 4)

	select {
	case c := <-am.Changes():
		if c.Path != path || c.Type != metadata.ResourceTypeImage {
			t.Fatalf("change %+v", c)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestCloseEndsChanges(t *testing.T) {
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(assetDir(t)); err != nil {
		t.Fatal(err)
	}
	if err := am.Close(); err != nil {
		t.Fatal(err)
	}
	for range am.Changes() {
	}
	if err := am.Close(); err != nil {
		t.Fatal(err)
	}
}
