package forward

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/anima-forward/engine/renderer/metadata"
)

type recorderFixture struct {
	dev      *drivertest.Device
	table    *textureTable
	up       *TextureUploader
	bindings *BindingCache
	pipeline driver.Pipeline
	global   driver.DescriptorSet
	cmd      *drivertest.CommandBuffer
	target   RenderTarget
}

func newRecorderFixture(t *testing.T) *recorderFixture {
	t.Helper()
	f := &recorderFixture{dev: drivertest.NewDevice(), table: newTextureTable()}
	f.up = newUploader(t, f.dev)

	pass, _ := f.dev.CreateRenderPass(driver.RenderPassDesc{ColorFormat: driver.FormatBGRA8Srgb, DepthFormat: driver.FormatD32Sfloat})
	var err error
	f.bindings, err = NewBindingCache(f.dev, f.table, 8)
	if err != nil {
		t.Fatal(err)
	}
	f.pipeline, _ = f.dev.CreatePipeline(driver.PipelineDesc{RenderPass: pass})
	layout, _ := f.dev.CreateDescriptorSetLayout(nil)
	gpool, _ := f.dev.CreateDescriptorPool(1, nil)
	f.global, _ = gpool.Allocate(layout)

	view, _ := f.dev.CreateImageView(mustImage(t, f.dev), driver.AspectColor)
	fb, _ := f.dev.CreateFramebuffer(pass, []driver.ImageView{view}, driver.Extent2D{Width: 800, Height: 600})
	f.target = RenderTarget{Framebuffer: fb, Extent: driver.Extent2D{Width: 800, Height: 600}}

	pool, _ := f.dev.CreateCommandPool()
	cb, _ := pool.Allocate()
	f.cmd = cb.(*drivertest.CommandBuffer)
	if err := f.cmd.Begin(true); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		pool.Destroy()
		f.bindings.Destroy()
		gpool.Destroy()
		layout.Destroy()
		f.pipeline.Destroy()
		pass.Destroy()
	})
	return f
}

func mustImage(t *testing.T, dev *drivertest.Device) driver.Image {
	t.Helper()
	img, err := dev.CreateImage(driver.ImageDesc{Width: 800, Height: 600, Format: driver.FormatBGRA8Srgb})
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func (f *recorderFixture) texture(t *testing.T, name string) metadata.TextureID {
	t.Helper()
	tex, err := f.up.Upload(name, solidPixels(1, 1), 1, 1, driver.FormatRGBA8Srgb)
	if err != nil {
		t.Fatal(err)
	}
	return f.table.add(tex)
}

func (f *recorderFixture) recorder(compare driver.CompareOp) *Recorder {
	return NewRecorder(nil, f.pipeline, f.global, f.bindings, [4]float32{0.1, 0.2, 0.3, 1}, compare)
}

func TestRecorderCommandOrder(t *testing.T) {
	f := newRecorderFixture(t)
	tex := f.texture(t, "t")
	mesh := newMesh(t, f.dev, "cube", tex)
	items := []DrawItem{{Mesh: mesh, Transform: mgl32.Ident4()}}

	stats, err := f.recorder(driver.CompareLess).Record(f.cmd, f.target, items)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.cmd.End(); err != nil {
		t.Fatal(err)
	}
	if stats != (FrameStats{DrawCalls: 1, MeshBinds: 1, TextureBinds: 1}) {
		t.Fatalf("stats %+v", stats)
	}

	want := []drivertest.Op{
		drivertest.OpBeginRenderPass,
		drivertest.OpBindPipeline,
		drivertest.OpSetViewport,
		drivertest.OpSetScissor,
		drivertest.OpBindDescriptorSets,
		drivertest.OpBindVertexBuffer,
		drivertest.OpBindIndexBuffer,
		drivertest.OpBindDescriptorSets,
		drivertest.OpPushConstants,
		drivertest.OpDrawIndexed,
		drivertest.OpEndRenderPass,
	}
	cmds := f.cmd.Commands()
	if len(cmds) != len(want) {
		t.Fatalf("recorded %d commands, want %d", len(cmds), len(want))
	}
	for i, op := range want {
		if cmds[i].Op != op {
			t.Fatalf("command %d is %s, want %s", i, cmds[i].Op, op)
		}
	}

	sets := drivertest.Filter(cmds, drivertest.OpBindDescriptorSets)
	if sets[0].FirstSet != globalSet || sets[0].Sets[0] != f.global {
		t.Fatal("global set not bound at set 0")
	}
	if sets[1].FirstSet != textureSet {
		t.Fatalf("texture set bound at %d", sets[1].FirstSet)
	}
	push := drivertest.Filter(cmds, drivertest.OpPushConstants)[0]
	if push.Stages != driver.ShaderStageVertex || push.Offset != 0 || len(push.Data) != 64 {
		t.Fatalf("push constant %+v", push)
	}
	if got := pushedMatrix(push.Data); got != mgl32.Ident4() {
		t.Fatalf("pushed %v", got)
	}
	if draw := drivertest.Filter(cmds, drivertest.OpDrawIndexed)[0]; draw.IndexCount != 6 {
		t.Fatalf("drew %d indices", draw.IndexCount)
	}
}

func TestRecorderViewportAndClear(t *testing.T) {
	tests := []struct {
		compare   driver.CompareOp
		wantDepth float32
	}{
		{driver.CompareLess, 1},
		{driver.CompareLessOrEqual, 1},
		{driver.CompareGreater, 0},
		{driver.CompareGreaterOrEqual, 0},
	}
	for _, tt := range tests {
		t.Run(tt.compare.String(), func(t *testing.T) {
			f := newRecorderFixture(t)
			if _, err := f.recorder(tt.compare).Record(f.cmd, f.target, nil); err != nil {
				t.Fatal(err)
			}
			cmds := f.cmd.Commands()
			begin := cmds[0].Begin
			if begin.Clear.Depth != tt.wantDepth || begin.Clear.Color != [4]float32{0.1, 0.2, 0.3, 1} {
				t.Fatalf("clear %+v", begin.Clear)
			}
			if begin.Area != (driver.Rect2D{Width: 800, Height: 600}) || begin.Framebuffer != f.target.Framebuffer {
				t.Fatalf("render area %+v", begin.Area)
			}
			vp := drivertest.Filter(cmds, drivertest.OpSetViewport)[0].Viewport
			if vp != (driver.Viewport{X: 0, Y: 600, Width: 800, Height: -600, MinDepth: 0, MaxDepth: 1}) {
				t.Fatalf("viewport %+v", vp)
			}
			sc := drivertest.Filter(cmds, drivertest.OpSetScissor)[0].Scissor
			if sc != (driver.Rect2D{Width: 800, Height: 600}) {
				t.Fatalf("scissor %+v", sc)
			}
			if len(drivertest.Filter(cmds, drivertest.OpDrawIndexed)) != 0 {
				t.Fatal("empty scene produced draws")
			}
		})
	}
}

func TestRecorderGroupsBindsPerMesh(t *testing.T) {
	f := newRecorderFixture(t)
	shared := f.texture(t, "shared")
	other := f.texture(t, "other")
	a := newMesh(t, f.dev, "a", shared)
	b := newMesh(t, f.dev, "b", shared)
	c := newMesh(t, f.dev, "c", other)

	scene := &testScene{entities: []metadata.Entity{
		{ID: "a1", MeshID: "a", Transform: mgl32.Translate3D(1, 0, 0)},
		{ID: "c1", MeshID: "c", Transform: mgl32.Translate3D(0, 0, 3)},
		{ID: "a2", MeshID: "a", Transform: mgl32.Translate3D(2, 0, 0)},
		{ID: "b1", MeshID: "b", Transform: mgl32.Translate3D(0, 1, 0)},
		{ID: "ghost", MeshID: "missing", Transform: mgl32.Ident4()},
	}}
	items := BuildDrawItems([]*metadata.Mesh{a, b, c}, scene)
	if len(items) != 4 {
		t.Fatalf("built %d items, want 4", len(items))
	}

	stats, err := f.recorder(driver.CompareLess).Record(f.cmd, f.target, items)
	if err != nil {
		t.Fatal(err)
	}
	// a and b share a texture, so only c switches the set.
	if stats != (FrameStats{DrawCalls: 4, MeshBinds: 3, TextureBinds: 2}) {
		t.Fatalf("stats %+v", stats)
	}

	wantX := []float32{1, 2, 0, 0}
	for i, push := range drivertest.Filter(f.cmd.Commands(), drivertest.OpPushConstants) {
		m := pushedMatrix(push.Data)
		if m.Col(3).X() != wantX[i] {
			t.Fatalf("draw %d translated by %v", i, m.Col(3))
		}
	}
}

func TestRecorderStaleTextureEndsPass(t *testing.T) {
	f := newRecorderFixture(t)
	tex := f.texture(t, "gone")
	mesh := newMesh(t, f.dev, "m", tex)
	f.table.remove(tex)

	_, err := f.recorder(driver.CompareLess).Record(f.cmd, f.target, []DrawItem{{Mesh: mesh, Transform: mgl32.Ident4()}})
	if !errors.Is(err, core.ErrStaleTexture) {
		t.Fatalf("err = %v, want ErrStaleTexture", err)
	}
	cmds := f.cmd.Commands()
	if cmds[len(cmds)-1].Op != drivertest.OpEndRenderPass {
		t.Fatal("render pass left open")
	}
	if err := f.cmd.End(); err != nil {
		t.Fatal(err)
	}
}
