package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type swapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// Swapchain implements driver.Swapchain. The frame index it reports is the
// image acquired last, so frame slots and framebuffers line up with images.
type Swapchain struct {
	device *Device
	handle vk.Swapchain
	format vk.SurfaceFormat
	extent driver.Extent2D

	images []*image
	views  []*imageView
	sync   []driver.SyncSemaphores
	// Image index -> sync set used to acquire it.
	bound []int

	nextSync int
	current  int
}

func NewSwapchain(device *Device, width, height uint32) (*Swapchain, error) {
	sc := &Swapchain{device: device}
	if err := sc.create(width, height); err != nil {
		sc.Destroy()
		return nil, err
	}
	return sc, nil
}

func querySwapchainSupport(ctx *Context) (*swapchainSupportInfo, error) {
	info := &swapchainSupportInfo{}
	if err := checkResult(vk.GetPhysicalDeviceSurfaceCapabilities(ctx.PhysicalDevice, ctx.Surface, &info.Capabilities), "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return nil, err
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := checkResult(vk.GetPhysicalDeviceSurfaceFormats(ctx.PhysicalDevice, ctx.Surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return nil, err
	}
	info.Formats = make([]vk.SurfaceFormat, formatCount)
	if err := checkResult(vk.GetPhysicalDeviceSurfaceFormats(ctx.PhysicalDevice, ctx.Surface, &formatCount, info.Formats), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return nil, err
	}
	for i := range info.Formats {
		info.Formats[i].Deref()
	}

	var modeCount uint32
	if err := checkResult(vk.GetPhysicalDeviceSurfacePresentModes(ctx.PhysicalDevice, ctx.Surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return nil, err
	}
	info.PresentModes = make([]vk.PresentMode, modeCount)
	if err := checkResult(vk.GetPhysicalDeviceSurfacePresentModes(ctx.PhysicalDevice, ctx.Surface, &modeCount, info.PresentModes), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return nil, err
	}
	if len(info.Formats) == 0 || len(info.PresentModes) == 0 {
		return nil, errors.New("required swapchain support not present")
	}
	return info, nil
}

func (sc *Swapchain) create(width, height uint32) error {
	ctx := sc.device.ctx
	support, err := querySwapchainSupport(ctx)
	if err != nil {
		return err
	}

	// Preferred format, else whatever comes first.
	sc.format = support.Formats[0]
	for _, f := range support.Formats {
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			sc.format = f
			break
		}
	}

	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	caps := support.Capabilities
	extent := vk.Extent2D{Width: width, Height: height}
	if caps.CurrentExtent.Width != math.MaxUint32 {
		extent = caps.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	extent.Width = clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	if extent.Width == 0 || extent.Height == 0 {
		return errors.Wrap(core.ErrSwapchainBooting, "window is < 1 in a dimension")
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          ctx.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.format.Format,
		ImageColorSpace:  sc.format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if err := checkResult(vk.CreateSwapchain(ctx.Device, &createInfo, ctx.Allocator, &sc.handle), "vkCreateSwapchain"); err != nil {
		return err
	}
	sc.extent = driver.Extent2D{Width: extent.Width, Height: extent.Height}

	var count uint32
	if err := checkResult(vk.GetSwapchainImages(ctx.Device, sc.handle, &count, nil), "vkGetSwapchainImages"); err != nil {
		return err
	}
	handles := make([]vk.Image, count)
	if err := checkResult(vk.GetSwapchainImages(ctx.Device, sc.handle, &count, handles), "vkGetSwapchainImages"); err != nil {
		return err
	}

	colorFormat := fromVkFormat(sc.format.Format)
	for _, h := range handles {
		img := &image{
			ctx:    ctx,
			handle: h,
			width:  extent.Width,
			height: extent.Height,
			format: colorFormat,
			mips:   1,
		}
		view, err := createImageView(ctx, img, driver.AspectColor)
		if err != nil {
			return err
		}
		sc.images = append(sc.images, img)
		sc.views = append(sc.views, view)
	}

	if len(sc.sync) != len(handles) {
		sc.destroySync()
		for range handles {
			acquired, err := sc.device.CreateSemaphore()
			if err != nil {
				return err
			}
			complete, err := sc.device.CreateSemaphore()
			if err != nil {
				acquired.Destroy()
				return err
			}
			sc.sync = append(sc.sync, driver.SyncSemaphores{ImageAcquired: acquired, RenderComplete: complete})
		}
	}
	sc.bound = make([]int, len(handles))
	for i := range sc.bound {
		sc.bound[i] = i
	}
	sc.nextSync = 0
	sc.current = 0

	core.LogInfo("Swapchain created: %d images %dx%d %s", len(handles), extent.Width, extent.Height, colorFormat)
	return nil
}

func (sc *Swapchain) Extent() driver.Extent2D {
	return sc.extent
}

func (sc *Swapchain) ImageCount() int {
	return len(sc.images)
}

func (sc *Swapchain) ColorViews() []driver.ImageView {
	out := make([]driver.ImageView, len(sc.views))
	for i, v := range sc.views {
		out[i] = v
	}
	return out
}

func (sc *Swapchain) ColorFormat() driver.Format {
	return fromVkFormat(sc.format.Format)
}

func (sc *Swapchain) CurrentFrame() int {
	return sc.current
}

func (sc *Swapchain) SyncSemaphores(frame int) driver.SyncSemaphores {
	return sc.sync[sc.bound[frame]]
}

// AcquireNextImage makes the next presentable image the current frame.
// core.ErrSwapchainBooting means the swapchain has to be recreated first.
func (sc *Swapchain) AcquireNextImage() error {
	ctx := sc.device.ctx
	set := sc.nextSync
	var index uint32
	result := vk.AcquireNextImage(ctx.Device, sc.handle, math.MaxUint64, sc.sync[set].ImageAcquired.(*semaphore).handle, vk.NullFence, &index)
	switch result {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		return errors.Wrap(core.ErrSwapchainBooting, "acquire")
	default:
		return checkResult(result, "vkAcquireNextImage")
	}
	sc.current = int(index)
	sc.bound[index] = set
	sc.nextSync = (set + 1) % len(sc.sync)
	return nil
}

// Present gives the current image back once its frame signalled
// RenderComplete.
func (sc *Swapchain) Present(queue *Queue) error {
	index := uint32(sc.current)
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sc.SyncSemaphores(sc.current).RenderComplete.(*semaphore).handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{index},
	}
	var result vk.Result
	queue.ctx.locks.SafeCall(queueManagement, func() error {
		result = vk.QueuePresent(queue.handle, &presentInfo)
		return nil
	})
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		// Out of date, suboptimal or a resize happened.
		return errors.Wrap(core.ErrSwapchainBooting, "present")
	default:
		return checkResult(result, "vkQueuePresent")
	}
}

// Recreate replaces the swapchain for a new window size. The caller waits
// for the device to be idle first.
func (sc *Swapchain) Recreate(width, height uint32) error {
	sc.destroySwapchain()
	return sc.create(width, height)
}

func (sc *Swapchain) destroySwapchain() {
	// Only destroy the views, not the images, since those are owned by the
	// swapchain and are destroyed with it.
	for _, v := range sc.views {
		v.Destroy()
	}
	sc.views = nil
	sc.images = nil
	if sc.handle != vk.NullSwapchain {
		vk.DestroySwapchain(sc.device.ctx.Device, sc.handle, sc.device.ctx.Allocator)
		sc.handle = vk.NullSwapchain
	}
}

func (sc *Swapchain) destroySync() {
	for _, s := range sc.sync {
		s.ImageAcquired.Destroy()
		s.RenderComplete.Destroy()
	}
	sc.sync = nil
}

func (sc *Swapchain) Destroy() {
	sc.destroySwapchain()
	sc.destroySync()
}
