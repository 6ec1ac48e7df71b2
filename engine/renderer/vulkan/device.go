package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

// Device implements driver.Device on top of a Context.
type Device struct {
	ctx *Context
}

func NewDevice(ctx *Context) *Device {
	return &Device{ctx: ctx}
}

// Queue returns the graphics queue of the device.
func (d *Device) Queue() *Queue {
	return &Queue{ctx: d.ctx, handle: d.ctx.GraphicsQueue}
}

func (d *Device) WaitIdle() error {
	return checkResult(vk.DeviceWaitIdle(d.ctx.Device), "vkDeviceWaitIdle")
}

func (d *Device) allocate(reqs vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	reqs.Deref()
	index := d.ctx.FindMemoryIndex(reqs.MemoryTypeBits, flags)
	if index < 0 {
		return nil, errors.Newf("no memory type for properties %#x", uint32(flags))
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	if err := checkResult(vk.AllocateMemory(d.ctx.Device, &info, d.ctx.Allocator, &memory), "vkAllocateMemory"); err != nil {
		return nil, err
	}
	return memory, nil
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if err := checkResult(vk.CreateFence(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateFence"); err != nil {
		return nil, err
	}
	return &fence{ctx: d.ctx, handle: handle}, nil
}

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if err := checkResult(vk.CreateSemaphore(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateSemaphore"); err != nil {
		return nil, err
	}
	return &semaphore{ctx: d.ctx, handle: handle}, nil
}

func (d *Device) CreateCommandPool() (driver.CommandPool, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.ctx.QueueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var handle vk.CommandPool
	if err := checkResult(vk.CreateCommandPool(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateCommandPool"); err != nil {
		return nil, err
	}
	return &commandPool{ctx: d.ctx, handle: handle}, nil
}

func (d *Device) CreateSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	maxAnisotropy := clamp(desc.MaxAnisotropy, 1, d.ctx.Properties.Limits.MaxSamplerAnisotropy)
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           maxAnisotropy,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MinLod:                  0,
		MaxLod:                  float32(desc.MipLevels),
	}
	var handle vk.Sampler
	if err := checkResult(vk.CreateSampler(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateSampler"); err != nil {
		return nil, err
	}
	return &sampler{ctx: d.ctx, handle: handle}, nil
}

func (d *Device) CreateShaderModule(stage driver.ShaderStage, code []uint32) (driver.ShaderModule, error) {
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var handle vk.ShaderModule
	if err := checkResult(vk.CreateShaderModule(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateShaderModule"); err != nil {
		return nil, err
	}
	return &shaderModule{ctx: d.ctx, handle: handle, stage: stage}, nil
}

func (d *Device) CreateFramebuffer(pass driver.RenderPass, attachments []driver.ImageView, extent driver.Extent2D) (driver.Framebuffer, error) {
	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		views[i] = a.(viewHandle).viewHandle()
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.(*renderPass).handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var handle vk.Framebuffer
	if err := checkResult(vk.CreateFramebuffer(d.ctx.Device, &info, d.ctx.Allocator, &handle), "vkCreateFramebuffer"); err != nil {
		return nil, err
	}
	return &framebuffer{ctx: d.ctx, handle: handle, extent: extent}, nil
}

type framebuffer struct {
	ctx    *Context
	handle vk.Framebuffer
	extent driver.Extent2D
}

func (f *framebuffer) Extent() driver.Extent2D {
	return f.extent
}

func (f *framebuffer) Destroy() {
	if f.handle != nil {
		vk.DestroyFramebuffer(f.ctx.Device, f.handle, f.ctx.Allocator)
		f.handle = nil
	}
}

type sampler struct {
	ctx    *Context
	handle vk.Sampler
}

func (s *sampler) Destroy() {
	if s.handle != nil {
		vk.DestroySampler(s.ctx.Device, s.handle, s.ctx.Allocator)
		s.handle = nil
	}
}

type shaderModule struct {
	ctx    *Context
	handle vk.ShaderModule
	stage  driver.ShaderStage
}

func (s *shaderModule) Stage() driver.ShaderStage {
	return s.stage
}

func (s *shaderModule) Destroy() {
	if s.handle != nil {
		vk.DestroyShaderModule(s.ctx.Device, s.handle, s.ctx.Allocator)
		s.handle = nil
	}
}
