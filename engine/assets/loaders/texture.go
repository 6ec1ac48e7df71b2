package loaders

import (
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

type TextureLoader struct{}

// Load decodes an image file into RGBA8 pixels. params may be a
// *metadata.ImageResourceParams.
func (tl *TextureLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	flip := false
	if p, ok := params.(*metadata.ImageResourceParams); ok && p != nil {
		flip = p.FlipY
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "texture `%s`", path), core.ErrTextureLoad)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decoding texture `%s`", path), core.ErrTextureLoad)
	}
	data := ToRGBA8(img, flip)
	data.Name = resourceName(path)
	core.LogDebug("decoded %s texture `%s` (%dx%d)", format, data.Name, data.Width, data.Height)

	return &metadata.Resource{
		Name:     data.Name,
		FullPath: path,
		DataSize: uint64(len(data.Pixels)),
		Data:     data,
	}, nil
}

// ToRGBA8 converts any decoded image into tightly packed RGBA8 rows,
// optionally flipped on the y axis.
func ToRGBA8(img image.Image, flipY bool) *metadata.ImageResourceData {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	w, h := b.Dx(), b.Dy()
	pixels := make([]uint8, 4*w*h)
	row := 4 * w
	for y := 0; y < h; y++ {
		src := y
		if flipY {
			src = h - 1 - y
		}
		copy(pixels[y*row:(y+1)*row], rgba.Pix[src*rgba.Stride:src*rgba.Stride+row])
	}
	return &metadata.ImageResourceData{
		ChannelCount: 4,
		Width:        uint32(w),
		Height:       uint32(h),
		Pixels:       pixels,
	}
}

func resourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
