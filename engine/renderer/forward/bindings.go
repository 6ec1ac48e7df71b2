package forward

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

const textureBinding uint32 = 0

// TextureLookup resolves a texture id to the view sampled by shaders. It
// reports false for ids that were released or never existed.
type TextureLookup interface {
	TextureView(id metadata.TextureID) (driver.ImageView, bool)
}

// BindingCache keeps one descriptor set per texture, created on first use.
// It is used from the render thread only.
type BindingCache struct {
	textures TextureLookup
	pool     driver.DescriptorPool
	layout   driver.DescriptorSetLayout
	sampler  driver.Sampler
	sets     map[metadata.TextureID]driver.DescriptorSet
}

func NewBindingCache(device driver.Device, textures TextureLookup, maxSets uint32) (*BindingCache, error) {
	c := &BindingCache{
		textures: textures,
		sets:     make(map[metadata.TextureID]driver.DescriptorSet),
	}
	var err error
	c.layout, err = device.CreateDescriptorSetLayout([]driver.DescriptorBinding{{
		Binding: textureBinding,
		Type:    driver.DescriptorCombinedImageSampler,
		Stages:  driver.ShaderStageFragment,
	}})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "texture set layout"), core.ErrDeviceFailure)
	}
	c.pool, err = device.CreateDescriptorPool(maxSets, map[driver.DescriptorType]uint32{
		driver.DescriptorCombinedImageSampler: maxSets,
	})
	if err != nil {
		c.Destroy()
		return nil, errors.Mark(errors.Wrap(err, "texture descriptor pool"), core.ErrDeviceFailure)
	}
	c.sampler, err = device.CreateSampler(driver.SamplerDesc{MaxAnisotropy: 16, MipLevels: 1})
	if err != nil {
		c.Destroy()
		return nil, errors.Mark(errors.Wrap(err, "texture sampler"), core.ErrDeviceFailure)
	}
	return c, nil
}

func (c *BindingCache) Layout() driver.DescriptorSetLayout {
	return c.layout
}

// Get returns the set sampling the texture, allocating it on first use.
func (c *BindingCache) Get(id metadata.TextureID) (driver.DescriptorSet, error) {
	view, ok := c.textures.TextureView(id)
	if !ok {
		return nil, errors.Wrapf(core.ErrStaleTexture, "texture %d (gen %d)", id.Index, id.Generation)
	}
	if set, ok := c.sets[id]; ok {
		return set, nil
	}

	set, err := c.pool.Allocate(c.layout)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "binding set for texture %d", id.Index), core.ErrDeviceFailure)
	}
	set.WriteImageSampler(textureBinding, view, c.sampler)
	c.sets[id] = set
	return set, nil
}

// Evict frees the set of the texture. Unknown ids are ignored. No frame in
// flight may still reference the set.
func (c *BindingCache) Evict(id metadata.TextureID) error {
	set, ok := c.sets[id]
	if !ok {
		return nil
	}
	delete(c.sets, id)
	if err := set.Free(); err != nil {
		return errors.Mark(errors.Wrapf(err, "freeing binding set of texture %d", id.Index), core.ErrDeviceFailure)
	}
	return nil
}

func (c *BindingCache) Len() int {
	return len(c.sets)
}

// Destroy frees every set along with the pool, the layout and the sampler.
func (c *BindingCache) Destroy() {
	c.sets = make(map[metadata.TextureID]driver.DescriptorSet)
	if c.pool != nil {
		c.pool.Destroy()
		c.pool = nil
	}
	if c.sampler != nil {
		c.sampler.Destroy()
		c.sampler = nil
	}
	if c.layout != nil {
		c.layout.Destroy()
		c.layout = nil
	}
}
