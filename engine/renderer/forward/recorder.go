package forward

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

const (
	globalSet  uint32 = 0
	textureSet uint32 = 1

	// One column-major 4x4 float matrix.
	matrixSize = 16 * 4
)

// DrawItem is one entity drawn with one mesh. Rebuilt every frame.
type DrawItem struct {
	Mesh      *metadata.Mesh
	Transform mgl32.Mat4
}

// BuildDrawItems walks meshes in order and, for each, the entities the
// scene places with it.
func BuildDrawItems(meshes []*metadata.Mesh, scene metadata.Scene) []DrawItem {
	var items []DrawItem
	for _, m := range meshes {
		for _, e := range scene.EntitiesByMesh(m.ID) {
			items = append(items, DrawItem{Mesh: m, Transform: e.Transform})
		}
	}
	return items
}

type FrameStats struct {
	DrawCalls    int
	MeshBinds    int
	TextureBinds int
}

type RenderTarget struct {
	Framebuffer driver.Framebuffer
	Extent      driver.Extent2D
}

// Recorder turns draw items into the commands of one render pass.
type Recorder struct {
	renderPass driver.RenderPass
	pipeline   driver.Pipeline
	global     driver.DescriptorSet
	bindings   *BindingCache
	clear      driver.ClearValues
}

func NewRecorder(renderPass driver.RenderPass, pipeline driver.Pipeline, global driver.DescriptorSet, bindings *BindingCache, clearColor [4]float32, depthCompare driver.CompareOp) *Recorder {
	return &Recorder{
		renderPass: renderPass,
		pipeline:   pipeline,
		global:     global,
		bindings:   bindings,
		clear: driver.ClearValues{
			Color: clearColor,
			Depth: depthCompare.DepthClear(),
		},
	}
}

func (r *Recorder) Record(cmd driver.CommandBuffer, target RenderTarget, items []DrawItem) (FrameStats, error) {
	var stats FrameStats
	w, h := target.Extent.Width, target.Extent.Height

	cmd.BeginRenderPass(driver.RenderPassBegin{
		RenderPass:  r.renderPass,
		Framebuffer: target.Framebuffer,
		Area:        driver.Rect2D{Width: w, Height: h},
		Clear:       r.clear,
	})
	cmd.BindPipeline(r.pipeline)
	// Y points up in clip space, like the projection expects.
	cmd.SetViewport(driver.Viewport{
		X:        0,
		Y:        float32(h),
		Width:    float32(w),
		Height:   -float32(h),
		MinDepth: 0,
		MaxDepth: 1,
	})
	cmd.SetScissor(driver.Rect2D{Width: w, Height: h})
	cmd.BindDescriptorSets(r.pipeline, globalSet, []driver.DescriptorSet{r.global})

	var (
		lastMesh *metadata.Mesh
		lastSet  driver.DescriptorSet
	)
	for _, item := range items {
		if item.Mesh != lastMesh {
			cmd.BindVertexBuffer(item.Mesh.VertexBuffer)
			cmd.BindIndexBuffer(item.Mesh.IndexBuffer)
			lastMesh = item.Mesh
			stats.MeshBinds++
		}
		set, err := r.bindings.Get(item.Mesh.TextureID)
		if err != nil {
			cmd.EndRenderPass()
			return stats, err
		}
		if set != lastSet {
			cmd.BindDescriptorSets(r.pipeline, textureSet, []driver.DescriptorSet{set})
			lastSet = set
			stats.TextureBinds++
		}
		cmd.PushConstants(r.pipeline, driver.ShaderStageVertex, 0, matrixBytes(item.Transform))
		cmd.DrawIndexed(item.Mesh.IndexCount)
		stats.DrawCalls++
	}

	cmd.EndRenderPass()
	return stats, nil
}

// matrixBytes lays m out the way std140 and push constant blocks expect.
func matrixBytes(m mgl32.Mat4) []byte {
	out := make([]byte, matrixSize)
	for i, v := range m {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
