package drivertest

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type resource struct {
	device    *Device
	id        uint64
	kind      Kind
	destroyed bool
}

// ID is unique for the lifetime of the device.
func (r *resource) ID() uint64 {
	return r.id
}

func (r *resource) Destroyed() bool {
	return r.destroyed
}

func (r *resource) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.device.release(r.id)
}

type Image struct {
	resource
	Desc driver.ImageDesc
}

func (i *Image) Width() uint32         { return i.Desc.Width }
func (i *Image) Height() uint32        { return i.Desc.Height }
func (i *Image) Format() driver.Format { return i.Desc.Format }

type ImageView struct {
	resource
	image  *Image
	Aspect driver.ImageAspect
}

func (v *ImageView) Image() driver.Image {
	return v.image
}

type Buffer struct {
	resource
	Desc driver.BufferDesc
	data []byte
}

func (b *Buffer) Size() uint64 {
	return b.Desc.Size
}

func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.destroyed {
		return errors.Wrap(ErrDestroyedInput, "write to buffer")
	}
	if !b.Desc.HostVisible {
		return errors.Wrap(ErrInvalidUsage, "write to device local buffer")
	}
	if offset+uint64(len(data)) > b.Desc.Size {
		return errors.Wrapf(ErrInvalidUsage, "write of %d bytes at %d overflows %d", len(data), offset, b.Desc.Size)
	}
	copy(b.data[offset:], data)
	return nil
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	return append([]byte(nil), b.data...)
}

type Framebuffer struct {
	resource
	extent      driver.Extent2D
	Attachments []driver.ImageView
}

func (f *Framebuffer) Extent() driver.Extent2D {
	return f.extent
}

// Fence is signaled by queue completion. Waiting on a fence that is neither
// signaled nor armed by a submission fails instead of hanging.
type Fence struct {
	resource
	mu      sync.Mutex
	done    chan struct{}
	pending bool
}

func (f *Fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	done, pending := f.done, f.pending
	f.mu.Unlock()

	select {
	case <-done:
		return nil
	default:
	}
	if !pending {
		return ErrNeverSignaled
	}
	if timeout == driver.WaitForever {
		<-done
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return driver.ErrTimeout
	}
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		return errors.Wrap(ErrInvalidUsage, "reset of a fence in use by the queue")
	}
	select {
	case <-f.done:
		f.done = make(chan struct{})
	default:
	}
	return nil
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *Fence) arm() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return errors.Wrap(ErrInvalidUsage, "submit with a signaled fence")
	default:
	}
	if f.pending {
		return errors.Wrap(ErrInvalidUsage, "submit with a fence already in use")
	}
	f.pending = true
	return nil
}

func (f *Fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
	select {
	case <-f.done:
	default:
		close(f.done)
	}
}

type Semaphore struct {
	resource
}

type CommandPool struct {
	resource
}

func (p *CommandPool) Allocate() (driver.CommandBuffer, error) {
	if p.destroyed {
		return nil, errors.Wrap(ErrDestroyedInput, "allocate from command pool")
	}
	r, err := p.device.track(KindCommandBuffer)
	if err != nil {
		return nil, err
	}
	return &CommandBuffer{resource: r}, nil
}

type Sampler struct {
	resource
	Desc driver.SamplerDesc
}

type DescriptorSetLayout struct {
	resource
	Bindings []driver.DescriptorBinding
}

type DescriptorPool struct {
	resource
	MaxSets uint32
	sets    map[uint64]*DescriptorSet
}

func (p *DescriptorPool) Allocate(layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	if p.destroyed {
		return nil, errors.Wrap(ErrDestroyedInput, "allocate from descriptor pool")
	}
	if l, ok := layout.(*DescriptorSetLayout); !ok || l.Destroyed() {
		return nil, errors.Wrap(ErrDestroyedInput, "descriptor set layout")
	}
	if uint32(len(p.sets)) >= p.MaxSets {
		return nil, ErrPoolExhausted
	}
	r, err := p.device.track(KindDescriptorSet)
	if err != nil {
		return nil, err
	}
	s := &DescriptorSet{resource: r, pool: p, Writes: make(map[uint32]Write)}
	p.sets[s.id] = s
	return s, nil
}

// Allocated is the number of sets currently taken from the pool.
func (p *DescriptorPool) Allocated() int {
	return len(p.sets)
}

func (p *DescriptorPool) Destroy() {
	if p.destroyed {
		return
	}
	for _, s := range p.sets {
		s.resource.Destroy()
	}
	p.sets = nil
	p.resource.Destroy()
}

type Write struct {
	Buffer  driver.Buffer
	View    driver.ImageView
	Sampler driver.Sampler
}

type DescriptorSet struct {
	resource
	pool   *DescriptorPool
	Writes map[uint32]Write
}

func (s *DescriptorSet) WriteUniformBuffer(binding uint32, buffer driver.Buffer) {
	s.Writes[binding] = Write{Buffer: buffer}
}

func (s *DescriptorSet) WriteImageSampler(binding uint32, view driver.ImageView, sampler driver.Sampler) {
	s.Writes[binding] = Write{View: view, Sampler: sampler}
}

func (s *DescriptorSet) Free() error {
	if s.destroyed {
		return nil
	}
	if s.pool.destroyed {
		return errors.Wrap(ErrDestroyedInput, "free into a destroyed pool")
	}
	delete(s.pool.sets, s.id)
	s.resource.Destroy()
	return nil
}

type ShaderModule struct {
	resource
	stage driver.ShaderStage
}

func (m *ShaderModule) Stage() driver.ShaderStage {
	return m.stage
}

type RenderPass struct {
	resource
	Desc driver.RenderPassDesc
}

type Pipeline struct {
	resource
	Desc driver.PipelineDesc
}
