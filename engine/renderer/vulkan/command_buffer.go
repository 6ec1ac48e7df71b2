package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type commandPool struct {
	ctx    *Context
	handle vk.CommandPool
}

func (p *commandPool) Allocate() (driver.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, 1)
	err := p.ctx.locks.SafeCall(commandPoolManagement, func() error {
		return checkResult(vk.AllocateCommandBuffers(p.ctx.Device, &info, handles), "vkAllocateCommandBuffers")
	})
	if err != nil {
		return nil, err
	}
	return &commandBuffer{pool: p, handle: handles[0]}, nil
}

// Destroy frees every command buffer allocated from the pool.
func (p *commandPool) Destroy() {
	if p.handle != nil {
		vk.DestroyCommandPool(p.ctx.Device, p.handle, p.ctx.Allocator)
		p.handle = nil
	}
}

type commandBuffer struct {
	pool   *commandPool
	handle vk.CommandBuffer
}

func (c *commandBuffer) Begin(oneTimeSubmit bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return checkResult(vk.BeginCommandBuffer(c.handle, &beginInfo), "vkBeginCommandBuffer")
}

func (c *commandBuffer) End() error {
	return checkResult(vk.EndCommandBuffer(c.handle), "vkEndCommandBuffer")
}

func (c *commandBuffer) Reset() error {
	return checkResult(vk.ResetCommandBuffer(c.handle, 0), "vkResetCommandBuffer")
}

func (c *commandBuffer) Free() {
	if c.handle == nil || c.pool.handle == nil {
		return
	}
	c.pool.ctx.locks.SafeCall(commandPoolManagement, func() error {
		vk.FreeCommandBuffers(c.pool.ctx.Device, c.pool.handle, 1, []vk.CommandBuffer{c.handle})
		return nil
	})
	c.handle = nil
}

func (c *commandBuffer) BeginRenderPass(info driver.RenderPassBegin) {
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(info.Clear.Color[:])
	clearValues[1].SetDepthStencil(info.Clear.Depth, info.Clear.Stencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  info.RenderPass.(*renderPass).handle,
		Framebuffer: info.Framebuffer.(*framebuffer).handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: info.Area.X, Y: info.Area.Y},
			Extent: vk.Extent2D{Width: info.Area.Width, Height: info.Area.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(c.handle, &beginInfo, vk.SubpassContentsInline)
}

func (c *commandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
}

func (c *commandBuffer) BindPipeline(p driver.Pipeline) {
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, p.(*pipeline).handle)
}

func (c *commandBuffer) SetViewport(v driver.Viewport) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}})
}

func (c *commandBuffer) SetScissor(r driver.Rect2D) {
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}})
}

func (c *commandBuffer) BindVertexBuffer(b driver.Buffer) {
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{b.(*buffer).handle}, []vk.DeviceSize{0})
}

func (c *commandBuffer) BindIndexBuffer(b driver.Buffer) {
	vk.CmdBindIndexBuffer(c.handle, b.(*buffer).handle, 0, vk.IndexTypeUint32)
}

func (c *commandBuffer) BindDescriptorSets(p driver.Pipeline, firstSet uint32, sets []driver.DescriptorSet) {
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		handles[i] = s.(*descriptorSet).handle
	}
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, p.(*pipeline).layout, firstSet, uint32(len(handles)), handles, 0, nil)
}

func (c *commandBuffer) PushConstants(p driver.Pipeline, stages driver.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.handle, p.(*pipeline).layout, toVkShaderStages(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *commandBuffer) DrawIndexed(indexCount uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, 1, 0, 0, 0)
}

func (c *commandBuffer) PipelineBarrier(src, dst driver.PipelineStage, barriers []driver.ImageBarrier) {
	vkBarriers := make([]vk.ImageMemoryBarrier, len(barriers))
	for i, b := range barriers {
		mips := b.MipLevels
		if mips == 0 {
			mips = 1
		}
		vkBarriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       toVkAccess(b.SrcAccess),
			DstAccessMask:       toVkAccess(b.DstAccess),
			OldLayout:           toVkLayout(b.OldLayout),
			NewLayout:           toVkLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               b.Image.(*image).handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     toVkAspect(b.Aspect),
				BaseMipLevel:   0,
				LevelCount:     mips,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
	}
	vk.CmdPipelineBarrier(c.handle, toVkStage(src), toVkStage(dst), 0, 0, nil, 0, nil, uint32(len(vkBarriers)), vkBarriers)
}

// CopyBufferToImage expects dst in the transfer destination layout.
func (c *commandBuffer) CopyBufferToImage(src driver.Buffer, dst driver.Image, region driver.BufferImageCopy) {
	copyRegion := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     toVkAspect(region.Aspect),
			MipLevel:       region.MipLevel,
			BaseArrayLayer: region.ArrayLayer,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{
			Width:  region.Width,
			Height: region.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(c.handle, src.(*buffer).handle, dst.(*image).handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{copyRegion})
}
