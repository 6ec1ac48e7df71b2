package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

// viewHandle is implemented by every image view of this backend, including
// the ones the swapchain owns.
type viewHandle interface {
	viewHandle() vk.ImageView
}

type image struct {
	ctx    *Context
	handle vk.Image
	memory vk.DeviceMemory
	width  uint32
	height uint32
	format driver.Format
	mips   uint32
	// Swapchain images are destroyed with the swapchain.
	owned bool
}

func (d *Device) CreateImage(desc driver.ImageDesc) (driver.Image, error) {
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     mips,
		ArrayLayers:   1,
		Format:        toVkFormat(desc.Format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         toVkImageUsage(desc.Usage),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var handle vk.Image
	if err := checkResult(vk.CreateImage(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateImage"); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.ctx.Device, handle, &reqs)
	memory, err := d.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.ctx.Device, handle, d.ctx.Allocator)
		return nil, err
	}
	if err := checkResult(vk.BindImageMemory(d.ctx.Device, handle, memory, 0), "vkBindImageMemory"); err != nil {
		vk.FreeMemory(d.ctx.Device, memory, d.ctx.Allocator)
		vk.DestroyImage(d.ctx.Device, handle, d.ctx.Allocator)
		return nil, err
	}
	return &image{
		ctx:    d.ctx,
		handle: handle,
		memory: memory,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		mips:   mips,
		owned:  true,
	}, nil
}

func (i *image) Width() uint32         { return i.width }
func (i *image) Height() uint32        { return i.height }
func (i *image) Format() driver.Format { return i.format }

func (i *image) Destroy() {
	if !i.owned || i.handle == nil {
		return
	}
	vk.DestroyImage(i.ctx.Device, i.handle, i.ctx.Allocator)
	vk.FreeMemory(i.ctx.Device, i.memory, i.ctx.Allocator)
	i.handle = nil
	i.memory = nil
}

type imageView struct {
	ctx    *Context
	handle vk.ImageView
	image  *image
}

func (d *Device) CreateImageView(img driver.Image, aspect driver.ImageAspect) (driver.ImageView, error) {
	return createImageView(d.ctx, img.(*image), aspect)
}

func createImageView(ctx *Context, img *image, aspect driver.ImageAspect) (*imageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: vk.ImageViewType2d,
		Format:   toVkFormat(img.format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     toVkAspect(aspect),
			BaseMipLevel:   0,
			LevelCount:     img.mips,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var handle vk.ImageView
	if err := checkResult(vk.CreateImageView(ctx.Device, &info, ctx.Allocator, &handle), "vkCreateImageView"); err != nil {
		return nil, err
	}
	return &imageView{ctx: ctx, handle: handle, image: img}, nil
}

func (v *imageView) Image() driver.Image {
	return v.image
}

func (v *imageView) viewHandle() vk.ImageView {
	return v.handle
}

func (v *imageView) Destroy() {
	if v.handle != nil {
		vk.DestroyImageView(v.ctx.Device, v.handle, v.ctx.Allocator)
		v.handle = nil
	}
}
