// Package driver is the GPU surface the forward renderer is written against.
// The Vulkan backend lives in renderer/vulkan; tests use driver/drivertest.
//
// Every resource has a single Destroy entry point. Calling it more than
// once is a no-op in both backends.
package driver

import (
	"time"

	"github.com/cockroachdb/errors"
)

// WaitForever disables the timeout of a fence wait.
const WaitForever time.Duration = 0

// ErrTimeout is returned by Fence.Wait when the timeout expires first.
var ErrTimeout = errors.New("wait timed out")

type Extent2D struct {
	Width  uint32
	Height uint32
}

type Rect2D struct {
	X, Y          int32
	Width, Height uint32
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type ImageDesc struct {
	Width     uint32
	Height    uint32
	Format    Format
	Usage     ImageUsage
	MipLevels uint32
}

type BufferDesc struct {
	Size  uint64
	Usage BufferUsage
	// Host visible and coherent memory; otherwise device local.
	HostVisible bool
}

type SamplerDesc struct {
	MaxAnisotropy float32
	MipLevels     uint32
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type VertexAttribute struct {
	Location uint32
	Format   Format
	Offset   uint32
}

type RenderPassDesc struct {
	ColorFormat Format
	DepthFormat Format
}

type PipelineDesc struct {
	RenderPass        RenderPass
	Shaders           []ShaderModule
	SetLayouts        []DescriptorSetLayout
	PushConstants     []PushConstantRange
	VertexStride      uint32
	VertexAttributes  []VertexAttribute
	DepthTest         bool
	DepthWrite        bool
	DepthCompare      CompareOp
	CullMode          CullMode
	ColorAttachments  uint32
	BlendAlphaEnabled bool
}

// ImageBarrier describes one image memory barrier with its layout change.
type ImageBarrier struct {
	Image     Image
	OldLayout ImageLayout
	NewLayout ImageLayout
	SrcAccess AccessFlags
	DstAccess AccessFlags
	Aspect    ImageAspect
	MipLevels uint32
}

// BufferImageCopy is a single region copy starting at offset zero of the
// buffer into the given mip level and array layer of the image.
type BufferImageCopy struct {
	Width      uint32
	Height     uint32
	MipLevel   uint32
	ArrayLayer uint32
	Aspect     ImageAspect
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect2D
	Clear       ClearValues
}

type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Wait           []Semaphore
	WaitStages     []PipelineStage
	Signal         []Semaphore
	Fence          Fence
}

// SyncSemaphores chain acquire -> render -> present for one frame slot.
type SyncSemaphores struct {
	ImageAcquired  Semaphore
	RenderComplete Semaphore
}

type Device interface {
	CreateImage(desc ImageDesc) (Image, error)
	CreateImageView(image Image, aspect ImageAspect) (ImageView, error)
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateFramebuffer(pass RenderPass, attachments []ImageView, extent Extent2D) (Framebuffer, error)
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)
	CreateCommandPool() (CommandPool, error)
	CreateSampler(desc SamplerDesc) (Sampler, error)
	CreateDescriptorPool(maxSets uint32, sizes map[DescriptorType]uint32) (DescriptorPool, error)
	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	CreateShaderModule(stage ShaderStage, code []uint32) (ShaderModule, error)
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	// WaitIdle blocks until every queue of the device is idle.
	WaitIdle() error
}

type Queue interface {
	Submit(info SubmitInfo) error
	WaitIdle() error
}

type Image interface {
	Width() uint32
	Height() uint32
	Format() Format
	Destroy()
}

type ImageView interface {
	Image() Image
	Destroy()
}

type Buffer interface {
	Size() uint64
	// Write copies data into host visible memory at offset.
	Write(offset uint64, data []byte) error
	Destroy()
}

type Framebuffer interface {
	Extent() Extent2D
	Destroy()
}

type Fence interface {
	// Wait blocks until the fence is signaled. A zero timeout waits forever.
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

type Semaphore interface {
	Destroy()
}

type CommandPool interface {
	Allocate() (CommandBuffer, error)
	Destroy()
}

type CommandBuffer interface {
	Begin(oneTimeSubmit bool) error
	End() error
	Reset() error
	Free()

	BeginRenderPass(info RenderPassBegin)
	EndRenderPass()
	BindPipeline(p Pipeline)
	SetViewport(v Viewport)
	SetScissor(r Rect2D)
	BindVertexBuffer(b Buffer)
	BindIndexBuffer(b Buffer)
	BindDescriptorSets(p Pipeline, firstSet uint32, sets []DescriptorSet)
	PushConstants(p Pipeline, stages ShaderStage, offset uint32, data []byte)
	DrawIndexed(indexCount uint32)
	PipelineBarrier(src, dst PipelineStage, barriers []ImageBarrier)
	CopyBufferToImage(src Buffer, dst Image, region BufferImageCopy)
}

type Sampler interface {
	Destroy()
}

type DescriptorPool interface {
	Allocate(layout DescriptorSetLayout) (DescriptorSet, error)
	Destroy()
}

type DescriptorSetLayout interface {
	Destroy()
}

type DescriptorSet interface {
	WriteUniformBuffer(binding uint32, buffer Buffer)
	WriteImageSampler(binding uint32, view ImageView, sampler Sampler)
	// Free returns the set to its pool.
	Free() error
}

type ShaderModule interface {
	Stage() ShaderStage
	Destroy()
}

type RenderPass interface {
	Destroy()
}

type Pipeline interface {
	Destroy()
}

// Swapchain is owned by the window collaborator. The renderer only reads it.
type Swapchain interface {
	Extent() Extent2D
	ImageCount() int
	ColorViews() []ImageView
	ColorFormat() Format
	// CurrentFrame is the slot the next recorded frame belongs to.
	CurrentFrame() int
	SyncSemaphores(frame int) SyncSemaphores
}
