package forward

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/assets/loaders"
	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

const (
	// position (vec3) + texture coordinates (vec2)
	vertexStride uint32 = 5 * 4

	projectionBinding uint32 = 0
)

type Config struct {
	VertexShader   string
	FragmentShader string
	ClearColor     [4]float32
	DepthCompare   driver.CompareOp
	DepthFormat    driver.Format
	// Zero waits forever.
	FenceTimeout   time.Duration
	MaxBindingSets uint32
}

func DefaultConfig() Config {
	return Config{
		VertexShader:   "assets/shaders/fwd_vertex.spv",
		FragmentShader: "assets/shaders/fwd_fragment.spv",
		ClearColor:     [4]float32{0.5, 0.7, 0.9, 1.0},
		DepthCompare:   driver.CompareLess,
		DepthFormat:    driver.FormatD32Sfloat,
		FenceTimeout:   driver.WaitForever,
		MaxBindingSets: 100,
	}
}

// Renderer draws the loaded meshes of a scene into the swapchain, one frame
// slot per swapchain image. All methods must be called from the render thread.
type Renderer struct {
	device    driver.Device
	queue     driver.Queue
	swapchain driver.Swapchain
	scene     metadata.Scene
	textures  TextureLookup
	cfg       Config

	pool         driver.CommandPool
	renderPass   driver.RenderPass
	globalLayout driver.DescriptorSetLayout
	globalPool   driver.DescriptorPool
	globalSet    driver.DescriptorSet
	projection   driver.Buffer
	bindings     *BindingCache
	pipeline     driver.Pipeline
	attachments  *Attachments
	slots        *FrameSlots
	recorder     *Recorder

	meshes  []*metadata.Mesh
	pending []*TextureResource
	stats   FrameStats
	// First error raised by an event handler, reported by the next frame.
	deferred error
	cleaned  bool
}

// New builds every GPU object the forward pass needs. On failure whatever
// was created is destroyed again.
func New(device driver.Device, queue driver.Queue, swapchain driver.Swapchain, textures TextureLookup, scene metadata.Scene, cfg Config) (*Renderer, error) {
	r := &Renderer{
		device:    device,
		queue:     queue,
		swapchain: swapchain,
		scene:     scene,
		textures:  textures,
		cfg:       cfg,
	}
	if err := r.init(textures); err != nil {
		r.Cleanup()
		return nil, err
	}
	core.LogInfo("forward renderer ready: %d frame slots, %dx%d", r.slots.Len(), r.attachments.Extent().Width, r.attachments.Extent().Height)
	return r, nil
}

func (r *Renderer) init(textures TextureLookup) error {
	var err error

	r.pool, err = r.device.CreateCommandPool()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "command pool"), core.ErrDeviceFailure)
	}
	r.renderPass, err = r.device.CreateRenderPass(driver.RenderPassDesc{
		ColorFormat: r.swapchain.ColorFormat(),
		DepthFormat: r.cfg.DepthFormat,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "render pass"), core.ErrDeviceFailure)
	}

	r.globalLayout, err = r.device.CreateDescriptorSetLayout([]driver.DescriptorBinding{{
		Binding: projectionBinding,
		Type:    driver.DescriptorUniformBuffer,
		Stages:  driver.ShaderStageVertex,
	}})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "global set layout"), core.ErrDeviceFailure)
	}
	r.bindings, err = NewBindingCache(r.device, textures, r.cfg.MaxBindingSets)
	if err != nil {
		return err
	}

	if err := r.createPipeline(); err != nil {
		return err
	}
	if err := r.createGlobals(); err != nil {
		return err
	}

	r.attachments = NewAttachments(r.device, r.renderPass, r.cfg.DepthFormat)
	if err := r.attachments.Build(r.swapchain.Extent(), r.swapchain.ColorViews()); err != nil {
		return err
	}
	r.slots, err = NewFrameSlots(r.device, r.pool, r.swapchain.ImageCount(), r.cfg.FenceTimeout)
	if err != nil {
		return errors.Mark(err, core.ErrDeviceFailure)
	}

	r.recorder = NewRecorder(r.renderPass, r.pipeline, r.globalSet, r.bindings, r.cfg.ClearColor, r.cfg.DepthCompare)
	return nil
}

func (r *Renderer) createPipeline() error {
	stages := []struct {
		path  string
		stage driver.ShaderStage
	}{
		{r.cfg.VertexShader, driver.ShaderStageVertex},
		{r.cfg.FragmentShader, driver.ShaderStageFragment},
	}
	modules := make([]driver.ShaderModule, 0, len(stages))
	// Modules are only needed while the pipeline is created.
	defer func() {
		for _, m := range modules {
			m.Destroy()
		}
	}()
	for _, s := range stages {
		code, err := loaders.LoadShader(s.path)
		if err != nil {
			return err
		}
		m, err := r.device.CreateShaderModule(s.stage, code)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "shader module `%s`", s.path), core.ErrDeviceFailure)
		}
		modules = append(modules, m)
	}

	var err error
	r.pipeline, err = r.device.CreatePipeline(driver.PipelineDesc{
		RenderPass: r.renderPass,
		Shaders:    modules,
		SetLayouts: []driver.DescriptorSetLayout{r.globalLayout, r.bindings.Layout()},
		PushConstants: []driver.PushConstantRange{{
			Stages: driver.ShaderStageVertex,
			Offset: 0,
			Size:   matrixSize,
		}},
		VertexStride: vertexStride,
		VertexAttributes: []driver.VertexAttribute{
			{Location: 0, Format: driver.FormatRGB32Sfloat, Offset: 0},
			{Location: 1, Format: driver.FormatRG32Sfloat, Offset: 3 * 4},
		},
		DepthTest:        true,
		DepthWrite:       true,
		DepthCompare:     r.cfg.DepthCompare,
		CullMode:         driver.CullModeBack,
		ColorAttachments: 1,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "forward pipeline"), core.ErrDeviceFailure)
	}
	return nil
}

// createGlobals makes the projection uniform and the set that binds it.
func (r *Renderer) createGlobals() error {
	var err error
	r.projection, err = r.device.CreateBuffer(driver.BufferDesc{
		Size:        matrixSize,
		Usage:       driver.BufferUsageUniform,
		HostVisible: true,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "projection uniform"), core.ErrDeviceFailure)
	}
	if err := r.writeProjection(); err != nil {
		return err
	}

	r.globalPool, err = r.device.CreateDescriptorPool(1, map[driver.DescriptorType]uint32{
		driver.DescriptorUniformBuffer: 1,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "global descriptor pool"), core.ErrDeviceFailure)
	}
	r.globalSet, err = r.globalPool.Allocate(r.globalLayout)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "global descriptor set"), core.ErrDeviceFailure)
	}
	r.globalSet.WriteUniformBuffer(projectionBinding, r.projection)
	return nil
}

func (r *Renderer) writeProjection() error {
	if err := r.projection.Write(0, matrixBytes(r.scene.Projection())); err != nil {
		return errors.Mark(errors.Wrap(err, "writing projection"), core.ErrDeviceFailure)
	}
	return nil
}

// RecordAndSubmit records the scene into the current frame slot and submits
// it. It blocks only while the slot's previous frame is still executing.
func (r *Renderer) RecordAndSubmit(scene metadata.Scene) error {
	if r.cleaned {
		return errors.AssertionFailedf("RecordAndSubmit after Cleanup")
	}
	if r.deferred != nil {
		err := r.deferred
		r.deferred = nil
		return err
	}
	r.scene = scene

	idx := r.swapchain.CurrentFrame()
	if idx >= r.attachments.Count() {
		// A failed rebuild leaves no framebuffers until the next resize succeeds.
		return errors.Mark(errors.Newf("no framebuffer for swapchain image %d, %d built", idx, r.attachments.Count()), core.ErrDeviceFailure)
	}
	slot, err := r.slots.Acquire(idx)
	if err != nil {
		return err
	}
	// The previous frame of this slot has finished, so have its uploads.
	for _, t := range slot.uploads {
		t.ReleaseStaging()
	}
	slot.uploads = nil

	if err := r.slots.Begin(slot); err != nil {
		return err
	}
	if err := r.recordUploads(slot); err != nil {
		return err
	}

	items := BuildDrawItems(r.meshes, scene)
	stats, err := r.recorder.Record(slot.Commands, RenderTarget{
		Framebuffer: r.attachments.Framebuffer(idx),
		Extent:      r.attachments.Extent(),
	}, items)
	if err != nil {
		r.abortFrame(slot)
		return err
	}

	if err := SubmitFrame(r.slots, slot, r.queue, r.swapchain.SyncSemaphores(idx)); err != nil {
		r.abortFrame(slot)
		return err
	}
	// Only a submitted frame takes the pending uploads with it.
	r.pending = nil
	r.stats = stats
	return nil
}

// recordUploads records every pending upload into slot. A texture that
// cannot be recorded is dropped from the queue and the others stay pending.
func (r *Renderer) recordUploads(slot *FrameSlot) error {
	for i, t := range r.pending {
		if err := t.RecordUpload(slot.Commands); err != nil {
			r.abortFrame(slot)
			r.pending = append(r.pending[:i:i], r.pending[i+1:]...)
			return errors.Wrapf(err, "in-frame upload of `%s`", t.Name)
		}
		slot.uploads = append(slot.uploads, t)
	}
	return nil
}

// abortFrame drops a recording that will not be submitted. Uploads recorded
// into it go back to Staged and remain pending.
func (r *Renderer) abortFrame(slot *FrameSlot) {
	r.slots.Abort(slot)
	for _, t := range slot.uploads {
		t.abortUpload()
	}
	slot.uploads = nil
}

// QueueTextureUpload records the upload of a staged texture at the start of
// the next frame. The caller keeps ownership of t.
func (r *Renderer) QueueTextureUpload(t *TextureResource) error {
	if t.State() != TextureStaged {
		return errors.AssertionFailedf("texture `%s` queued for upload while %s", t.Name, t.State())
	}
	for _, p := range r.pending {
		if p == t {
			return errors.AssertionFailedf("texture `%s` queued for upload twice", t.Name)
		}
	}
	r.pending = append(r.pending, t)
	return nil
}

// OnMeshesLoaded starts drawing meshes and creates their binding sets.
func (r *Renderer) OnMeshesLoaded(meshes []*metadata.Mesh) error {
	for _, m := range meshes {
		if _, err := r.bindings.Get(m.TextureID); err != nil {
			return errors.Wrapf(err, "mesh `%s`", m.ID)
		}
		r.meshes = append(r.meshes, m)
	}
	core.LogDebug("%d meshes loaded, %d drawn", len(meshes), len(r.meshes))
	return nil
}

// OnMeshUnloaded stops drawing mesh and drops the binding set of its
// texture. It waits for every frame in flight first, since those may still
// sample through the set.
func (r *Renderer) OnMeshUnloaded(mesh *metadata.Mesh) error {
	if err := r.slots.WaitAll(); err != nil {
		return err
	}
	if err := r.bindings.Evict(mesh.TextureID); err != nil {
		return err
	}
	kept := r.meshes[:0]
	for _, m := range r.meshes {
		if m != mesh && m.ID != mesh.ID {
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(r.meshes); i++ {
		r.meshes[i] = nil
	}
	r.meshes = kept
	return nil
}

// ReplaceTexture makes meshes sampling old sample replacement instead. Once
// no frame in flight uses old, its binding set and any upload of it queued
// or held by a slot are dropped, so the caller may destroy it.
func (r *Renderer) ReplaceTexture(old, replacement metadata.TextureID) error {
	if err := r.slots.WaitAll(); err != nil {
		return err
	}
	if err := r.bindings.Evict(old); err != nil {
		return err
	}
	r.dropUploads(old)
	for _, m := range r.meshes {
		if m.TextureID == old {
			m.TextureID = replacement
		}
	}
	_, err := r.bindings.Get(replacement)
	return err
}

// dropUploads forgets the texture behind id in the upload queue and in
// every slot, so it can be destroyed. Slots must be idle.
func (r *Renderer) dropUploads(id metadata.TextureID) {
	view, ok := r.textures.TextureView(id)
	if !ok {
		return
	}
	pending := r.pending[:0]
	for _, t := range r.pending {
		if t.View != view {
			pending = append(pending, t)
		}
	}
	for i := len(pending); i < len(r.pending); i++ {
		r.pending[i] = nil
	}
	r.pending = pending

	for i := 0; i < r.slots.Len(); i++ {
		slot := r.slots.Slot(i)
		uploads := slot.uploads[:0]
		for _, t := range slot.uploads {
			if t.View == view {
				t.ReleaseStaging()
				continue
			}
			uploads = append(uploads, t)
		}
		slot.uploads = uploads
	}
}

// releaseUploads frees the staging buffers of uploads submitted through any
// slot. Slots must be idle.
func (r *Renderer) releaseUploads() {
	for i := 0; i < r.slots.Len(); i++ {
		slot := r.slots.Slot(i)
		for _, t := range slot.uploads {
			t.ReleaseStaging()
		}
		slot.uploads = nil
	}
}

// OnResize rebuilds the attachments against the recreated swapchain and
// rewrites the projection uniform.
func (r *Renderer) OnResize(extent driver.Extent2D) error {
	if extent.Width == 0 || extent.Height == 0 {
		// Minimized; keep the current attachments until a real size comes in.
		core.LogDebug("ignoring resize to %dx%d", extent.Width, extent.Height)
		return nil
	}
	if err := r.slots.WaitAll(); err != nil {
		return err
	}
	if err := r.attachments.Rebuild(extent, r.swapchain.ColorViews()); err != nil {
		return err
	}
	if n := r.swapchain.ImageCount(); n != r.slots.Len() {
		r.releaseUploads()
		r.slots.Destroy()
		var err error
		r.slots, err = NewFrameSlots(r.device, r.pool, n, r.cfg.FenceTimeout)
		if err != nil {
			return errors.Mark(err, core.ErrDeviceFailure)
		}
	}
	if err := r.writeProjection(); err != nil {
		return err
	}
	core.LogInfo("resized to %dx%d", extent.Width, extent.Height)
	return nil
}

// RegisterEvents routes resize and mesh lifetime events to the renderer.
// Handler errors are returned by the next RecordAndSubmit.
func (r *Renderer) RegisterEvents(bus *core.EventBus) {
	bus.Register(core.EVENT_CODE_RESIZED, r, func(ctx core.EventContext) bool {
		e := ctx.Data.(*core.ResizeEvent)
		r.keep(r.OnResize(driver.Extent2D{Width: e.Width, Height: e.Height}))
		return false
	})
	bus.Register(core.EVENT_CODE_MESHES_LOADED, r, func(ctx core.EventContext) bool {
		r.keep(r.OnMeshesLoaded(ctx.Data.([]*metadata.Mesh)))
		return true
	})
	bus.Register(core.EVENT_CODE_MESH_UNLOADED, r, func(ctx core.EventContext) bool {
		r.keep(r.OnMeshUnloaded(ctx.Data.(*metadata.Mesh)))
		return false
	})
}

func (r *Renderer) keep(err error) {
	if err == nil {
		return
	}
	core.LogError("%v", err)
	if r.deferred == nil {
		r.deferred = err
	}
}

func (r *Renderer) Stats() FrameStats {
	return r.stats
}

func (r *Renderer) BindingCount() int {
	return r.bindings.Len()
}

func (r *Renderer) Attachments() *Attachments {
	return r.attachments
}

func (r *Renderer) Slots() *FrameSlots {
	return r.slots
}

// Cleanup waits for the device and destroys everything in reverse creation
// order. Calling it again does nothing.
func (r *Renderer) Cleanup() {
	if r.cleaned {
		return
	}
	r.cleaned = true
	if err := r.device.WaitIdle(); err != nil {
		core.LogError("wait idle before cleanup: %v", err)
	}

	if r.slots != nil {
		r.releaseUploads()
		r.slots.Destroy()
	}
	if r.attachments != nil {
		r.attachments.Destroy()
	}
	if r.globalPool != nil {
		r.globalPool.Destroy()
	}
	if r.projection != nil {
		r.projection.Destroy()
	}
	if r.pipeline != nil {
		r.pipeline.Destroy()
	}
	if r.bindings != nil {
		r.bindings.Destroy()
	}
	if r.globalLayout != nil {
		r.globalLayout.Destroy()
	}
	if r.renderPass != nil {
		r.renderPass.Destroy()
	}
	if r.pool != nil {
		r.pool.Destroy()
	}
	r.meshes = nil
	r.pending = nil
	core.LogDebug("forward renderer destroyed")
}
