package systems

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/forward"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount uint32
}

// TextureSystem owns every texture on the GPU and hands out generational
// ids for them. It is the lookup behind the renderer's binding cache.
type TextureSystem struct {
	Config *TextureSystemConfig

	uploader  *forward.TextureUploader
	ids       *core.IdentifierPool
	byName    map[string]metadata.TextureID
	defaultID metadata.TextureID
}

func NewTextureSystem(config *TextureSystemConfig, uploader *forward.TextureUploader) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := errors.New("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &TextureSystem{
		Config:    config,
		uploader:  uploader,
		ids:       core.NewIdentifierPool(int(config.MaxTextureCount)),
		byName:    make(map[string]metadata.TextureID),
		defaultID: metadata.InvalidTextureID,
	}, nil
}

// Initialize uploads the default texture, a 256x256 blue/white checkerboard.
func (ts *TextureSystem) Initialize() error {
	const texDimension = 256
	pixels := make([]uint8, texDimension*texDimension*4)
	for i := range pixels {
		pixels[i] = 255
	}
	// Each pixel.
	for row := 0; row < texDimension; row++ {
		for col := 0; col < texDimension; col++ {
			if row%2 == col%2 {
				index := (row*texDimension + col) * 4
				pixels[index+0] = 0
				pixels[index+1] = 0
			}
		}
	}
	id, err := ts.Load(&metadata.ImageResourceData{
		Name:         metadata.DEFAULT_TEXTURE_NAME,
		ChannelCount: 4,
		Width:        texDimension,
		Height:       texDimension,
		Pixels:       pixels,
	})
	if err != nil {
		return errors.Wrap(err, "default texture")
	}
	ts.defaultID = id
	return nil
}

func (ts *TextureSystem) Default() metadata.TextureID {
	return ts.defaultID
}

func (ts *TextureSystem) reserve(name string) error {
	if _, exists := ts.byName[name]; exists {
		return errors.Newf("texture `%s` already loaded", name)
	}
	if uint32(ts.ids.Live()) >= ts.Config.MaxTextureCount {
		return errors.Newf("cannot load texture `%s`: %d textures already loaded", name, ts.Config.MaxTextureCount)
	}
	return nil
}

// Load uploads decoded pixels and waits until the texture can be sampled.
func (ts *TextureSystem) Load(data *metadata.ImageResourceData) (metadata.TextureID, error) {
	if err := ts.reserve(data.Name); err != nil {
		return metadata.InvalidTextureID, err
	}
	t, err := ts.uploader.Upload(data.Name, data.Pixels, data.Width, data.Height, driver.FormatRGBA8Srgb)
	if err != nil {
		core.LogError("failed to load texture `%s`: %v", data.Name, err)
		return metadata.InvalidTextureID, err
	}
	return ts.register(t), nil
}

// Stage prepares a texture whose upload the renderer records into its next
// frame (forward.Renderer.QueueTextureUpload).
func (ts *TextureSystem) Stage(data *metadata.ImageResourceData) (metadata.TextureID, *forward.TextureResource, error) {
	if err := ts.reserve(data.Name); err != nil {
		return metadata.InvalidTextureID, nil, err
	}
	t, err := ts.uploader.Stage(data.Name, data.Pixels, data.Width, data.Height, driver.FormatRGBA8Srgb)
	if err != nil {
		return metadata.InvalidTextureID, nil, err
	}
	return ts.register(t), t, nil
}

func (ts *TextureSystem) register(t *forward.TextureResource) metadata.TextureID {
	id := ts.ids.Acquire(t)
	ts.byName[t.Name] = id
	core.LogDebug("texture `%s` registered as %d (gen %d)", t.Name, id.Index, id.Generation)
	return id
}

// Replace uploads new pixels for an already loaded name. The old texture
// stays alive until Release is called with the returned old id.
func (ts *TextureSystem) Replace(data *metadata.ImageResourceData) (old, replacement metadata.TextureID, err error) {
	old, ok := ts.byName[data.Name]
	if !ok {
		return metadata.InvalidTextureID, metadata.InvalidTextureID, errors.Newf("texture `%s` is not loaded", data.Name)
	}
	t, err := ts.uploader.Upload(data.Name, data.Pixels, data.Width, data.Height, driver.FormatRGBA8Srgb)
	if err != nil {
		return metadata.InvalidTextureID, metadata.InvalidTextureID, err
	}
	replacement = ts.ids.Acquire(t)
	ts.byName[data.Name] = replacement
	return old, replacement, nil
}

func (ts *TextureSystem) Acquire(name string) (metadata.TextureID, bool) {
	id, ok := ts.byName[name]
	return id, ok
}

func (ts *TextureSystem) Get(id metadata.TextureID) (*forward.TextureResource, bool) {
	t, ok := ts.ids.Owner(id).(*forward.TextureResource)
	return t, ok
}

// TextureView implements forward.TextureLookup.
func (ts *TextureSystem) TextureView(id metadata.TextureID) (driver.ImageView, bool) {
	t, ok := ts.Get(id)
	if !ok || t.View == nil {
		return nil, false
	}
	return t.View, true
}

// Release destroys the texture. Binding sets referring to it must have
// been evicted already.
func (ts *TextureSystem) Release(id metadata.TextureID) error {
	t, ok := ts.Get(id)
	if !ok {
		return errors.Wrapf(core.ErrStaleTexture, "release of texture %d (gen %d)", id.Index, id.Generation)
	}
	if err := ts.ids.Release(id); err != nil {
		return err
	}
	if cur, ok := ts.byName[t.Name]; ok && cur == id {
		delete(ts.byName, t.Name)
	}
	t.Destroy()
	return nil
}

func (ts *TextureSystem) Len() int {
	return ts.ids.Live()
}

func (ts *TextureSystem) Shutdown() error {
	for _, id := range ts.ids.Identifiers() {
		if err := ts.Release(id); err != nil {
			return err
		}
	}
	ts.defaultID = metadata.InvalidTextureID
	return nil
}
