package loaders

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadShader(t *testing.T) {
	good := make([]byte, 12)
	binary.LittleEndian.PutUint32(good, spirvMagic)
	binary.LittleEndian.PutUint32(good[4:], 0x00010000)
	binary.LittleEndian.PutUint32(good[8:], 42)

	code, err := LoadShader(writeFile(t, "ok.spv", good))
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 3 || code[0] != spirvMagic || code[2] != 42 {
		t.Fatalf("code = %#x", code)
	}

	badMagic := make([]byte, 8)
	binary.BigEndian.PutUint32(badMagic, spirvMagic)
	for name, path := range map[string]string{
		"missing":   filepath.Join(t.TempDir(), "nope.spv"),
		"empty":     writeFile(t, "empty.spv", nil),
		"odd size":  writeFile(t, "odd.spv", good[:7]),
		"bad magic": writeFile(t, "swapped.spv", badMagic),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadShader(path); !errors.Is(err, core.ErrShaderLoad) {
				t.Fatalf("err = %v, want ErrShaderLoad", err)
			}
		})
	}
}

func TestShaderLoaderResource(t *testing.T) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, spirvMagic)
	path := writeFile(t, "fwd_vertex.spv", data)

	res, err := (&ShaderLoader{}).Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Name != "fwd_vertex" || res.DataSize != 4 || res.FullPath != path {
		t.Fatalf("resource %+v", res)
	}
}

// twoRows is a 2x2 image with a red top row and a blue bottom row.
func twoRows() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for x := 0; x < 2; x++ {
		img.Set(x, 0, color.NRGBA{R: 255, A: 255})
		img.Set(x, 1, color.NRGBA{B: 255, A: 255})
	}
	return img
}

func TestToRGBA8(t *testing.T) {
	data := ToRGBA8(twoRows(), false)
	if data.Width != 2 || data.Height != 2 || data.ChannelCount != 4 || len(data.Pixels) != 16 {
		t.Fatalf("data %+v", data)
	}
	if data.Pixels[0] != 255 || data.Pixels[2] != 0 {
		t.Fatalf("first pixel %v, want red", data.Pixels[:4])
	}

	flipped := ToRGBA8(twoRows(), true)
	if flipped.Pixels[0] != 0 || flipped.Pixels[2] != 255 {
		t.Fatalf("first pixel %v after flip, want blue", flipped.Pixels[:4])
	}
}

func TestToRGBA8SubImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(2, 2, color.RGBA{G: 255, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 4, 4))

	data := ToRGBA8(sub, false)
	if data.Width != 2 || data.Height != 2 {
		t.Fatalf("size %dx%d", data.Width, data.Height)
	}
	if data.Pixels[1] != 255 {
		t.Fatalf("origin pixel %v, want green", data.Pixels[:4])
	}
}

func TestTextureLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stripes.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, twoRows()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	res, err := (&TextureLoader{}).Load(path, &metadata.ImageResourceParams{FlipY: true})
	if err != nil {
		t.Fatal(err)
	}
	data := res.Data.(*metadata.ImageResourceData)
	if data.Name != "stripes" || res.Name != "stripes" {
		t.Fatalf("name %q", data.Name)
	}
	if data.Pixels[2] != 255 {
		t.Fatal("FlipY was not applied")
	}

	if _, err := (&TextureLoader{}).Load(writeFile(t, "junk.png", []byte("not a png")), nil); !errors.Is(err, core.ErrTextureLoad) {
		t.Fatalf("err = %v, want ErrTextureLoad", err)
	}
	if _, err := (&TextureLoader{}).Load(filepath.Join(t.TempDir(), "missing.png"), nil); !errors.Is(err, core.ErrTextureLoad) {
		t.Fatalf("err = %v, want ErrTextureLoad", err)
	}
}
