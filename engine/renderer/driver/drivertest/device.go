// Package drivertest provides an in-memory driver.Device that records what
// the renderer does to it. Handles are never reused, every live object is
// counted per kind, and queue completion can be driven by the test.
package drivertest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type Kind string

const (
	KindImage               Kind = "image"
	KindImageView           Kind = "image_view"
	KindBuffer              Kind = "buffer"
	KindFramebuffer         Kind = "framebuffer"
	KindFence               Kind = "fence"
	KindSemaphore           Kind = "semaphore"
	KindCommandPool         Kind = "command_pool"
	KindCommandBuffer       Kind = "command_buffer"
	KindSampler             Kind = "sampler"
	KindDescriptorPool      Kind = "descriptor_pool"
	KindDescriptorSetLayout Kind = "descriptor_set_layout"
	KindDescriptorSet       Kind = "descriptor_set"
	KindShaderModule        Kind = "shader_module"
	KindRenderPass          Kind = "render_pass"
	KindPipeline            Kind = "pipeline"
)

var (
	ErrInjected       = errors.New("injected failure")
	ErrPoolExhausted  = errors.New("descriptor pool exhausted")
	ErrNeverSignaled  = errors.New("fence is unsignaled and was never submitted")
	ErrInvalidUsage   = errors.New("invalid usage")
	ErrDestroyedInput = errors.New("use of a destroyed object")
)

type Device struct {
	mu      sync.Mutex
	next    uint64
	live    map[uint64]Kind
	created map[Kind]int
	failOn  map[Kind]int
	queue   *Queue
}

var _ driver.Device = (*Device)(nil)

func NewDevice() *Device {
	d := &Device{
		live:    make(map[uint64]Kind),
		created: make(map[Kind]int),
		failOn:  make(map[Kind]int),
	}
	d.queue = &Queue{device: d, autoComplete: true}
	return d
}

// Queue is the single graphics queue of the device.
func (d *Device) Queue() *Queue {
	return d.queue
}

// FailOn makes the nth upcoming creation of kind fail, starting at 1.
func (d *Device) FailOn(kind Kind, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOn[kind] = n
}

func (d *Device) Live(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

func (d *Device) LiveTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Created counts every object of kind ever created, destroyed or not.
func (d *Device) Created(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

func (d *Device) IsLive(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.live[id]
	return ok
}

// Leaks describes every live object, sorted by handle.
func (d *Device) Leaks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uint64, 0, len(d.live))
	for id := range d.live {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf("%s#%d", d.live[id], id))
	}
	return out
}

func (d *Device) track(kind Kind) (resource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.failOn[kind]; ok {
		if n <= 1 {
			delete(d.failOn, kind)
			return resource{}, errors.Wrapf(ErrInjected, "create %s", kind)
		}
		d.failOn[kind] = n - 1
	}
	d.next++
	d.live[d.next] = kind
	d.created[kind]++
	return resource{device: d, id: d.next, kind: kind}, nil
}

func (d *Device) release(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, id)
}

func (d *Device) CreateImage(desc driver.ImageDesc) (driver.Image, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, errors.Wrapf(ErrInvalidUsage, "image extent %dx%d", desc.Width, desc.Height)
	}
	r, err := d.track(KindImage)
	if err != nil {
		return nil, err
	}
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	return &Image{resource: r, Desc: desc}, nil
}

func (d *Device) CreateImageView(image driver.Image, aspect driver.ImageAspect) (driver.ImageView, error) {
	img, ok := image.(*Image)
	if !ok || img.Destroyed() {
		return nil, errors.Wrap(ErrDestroyedInput, "image view over a dead image")
	}
	r, err := d.track(KindImageView)
	if err != nil {
		return nil, err
	}
	return &ImageView{resource: r, image: img, Aspect: aspect}, nil
}

func (d *Device) CreateBuffer(desc driver.BufferDesc) (driver.Buffer, error) {
	if desc.Size == 0 {
		return nil, errors.Wrap(ErrInvalidUsage, "zero sized buffer")
	}
	r, err := d.track(KindBuffer)
	if err != nil {
		return nil, err
	}
	return &Buffer{resource: r, Desc: desc, data: make([]byte, desc.Size)}, nil
}

func (d *Device) CreateFramebuffer(pass driver.RenderPass, attachments []driver.ImageView, extent driver.Extent2D) (driver.Framebuffer, error) {
	if pass == nil {
		return nil, errors.Wrap(ErrInvalidUsage, "framebuffer without render pass")
	}
	for _, a := range attachments {
		if v, ok := a.(*ImageView); !ok || v.Destroyed() {
			return nil, errors.Wrap(ErrDestroyedInput, "framebuffer attachment")
		}
	}
	r, err := d.track(KindFramebuffer)
	if err != nil {
		return nil, err
	}
	return &Framebuffer{resource: r, extent: extent, Attachments: append([]driver.ImageView(nil), attachments...)}, nil
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	r, err := d.track(KindFence)
	if err != nil {
		return nil, err
	}
	f := &Fence{resource: r, done: make(chan struct{})}
	if signaled {
		close(f.done)
	}
	return f, nil
}

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	r, err := d.track(KindSemaphore)
	if err != nil {
		return nil, err
	}
	return &Semaphore{resource: r}, nil
}

func (d *Device) CreateCommandPool() (driver.CommandPool, error) {
	r, err := d.track(KindCommandPool)
	if err != nil {
		return nil, err
	}
	return &CommandPool{resource: r}, nil
}

func (d *Device) CreateSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	r, err := d.track(KindSampler)
	if err != nil {
		return nil, err
	}
	return &Sampler{resource: r, Desc: desc}, nil
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes map[driver.DescriptorType]uint32) (driver.DescriptorPool, error) {
	if maxSets == 0 {
		return nil, errors.Wrap(ErrInvalidUsage, "descriptor pool with no sets")
	}
	r, err := d.track(KindDescriptorPool)
	if err != nil {
		return nil, err
	}
	return &DescriptorPool{resource: r, MaxSets: maxSets, sets: make(map[uint64]*DescriptorSet)}, nil
}

func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.DescriptorSetLayout, error) {
	r, err := d.track(KindDescriptorSetLayout)
	if err != nil {
		return nil, err
	}
	return &DescriptorSetLayout{resource: r, Bindings: append([]driver.DescriptorBinding(nil), bindings...)}, nil
}

func (d *Device) CreateShaderModule(stage driver.ShaderStage, code []uint32) (driver.ShaderModule, error) {
	if len(code) == 0 {
		return nil, errors.Wrap(ErrInvalidUsage, "empty shader code")
	}
	r, err := d.track(KindShaderModule)
	if err != nil {
		return nil, err
	}
	return &ShaderModule{resource: r, stage: stage}, nil
}

func (d *Device) CreateRenderPass(desc driver.RenderPassDesc) (driver.RenderPass, error) {
	r, err := d.track(KindRenderPass)
	if err != nil {
		return nil, err
	}
	return &RenderPass{resource: r, Desc: desc}, nil
}

func (d *Device) CreatePipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	if desc.RenderPass == nil {
		return nil, errors.Wrap(ErrInvalidUsage, "pipeline without render pass")
	}
	r, err := d.track(KindPipeline)
	if err != nil {
		return nil, err
	}
	return &Pipeline{resource: r, Desc: desc}, nil
}

func (d *Device) WaitIdle() error {
	return d.queue.WaitIdle()
}
