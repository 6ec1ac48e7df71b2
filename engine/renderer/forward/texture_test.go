package forward

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver/drivertest"
)

func TestUploadLeavesTextureReady(t *testing.T) {
	dev := drivertest.NewDevice()
	up := newUploader(t, dev)

	tex, err := up.Upload("brick", solidPixels(4, 2), 4, 2, driver.FormatRGBA8Srgb)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Destroy()

	if tex.State() != TextureReady {
		t.Fatalf("state = %s, want ready", tex.State())
	}
	if tex.View == nil || tex.HasStaging() {
		t.Fatalf("view %v staging %v", tex.View, tex.HasStaging())
	}
	if got := dev.Live(drivertest.KindBuffer); got != 0 {
		t.Fatalf("%d staging buffers still live", got)
	}
	if dev.Live(drivertest.KindCommandBuffer) != 0 || dev.Live(drivertest.KindFence) != 0 {
		t.Fatal("single use command buffer or fence leaked")
	}

	sub := dev.Queue().LastSubmission()
	if sub == nil || sub.Info.Fence == nil || len(sub.Commands) != 1 {
		t.Fatal("upload was not submitted as one command buffer with a fence")
	}
	cmds := sub.Commands[0]
	ops := make([]drivertest.Op, len(cmds))
	for i, c := range cmds {
		ops[i] = c.Op
	}
	want := []drivertest.Op{drivertest.OpPipelineBarrier, drivertest.OpCopyBufferToImage, drivertest.OpPipelineBarrier}
	if len(ops) != len(want) {
		t.Fatalf("recorded %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("recorded %v, want %v", ops, want)
		}
	}
	if b := cmds[0].Barriers[0]; b.OldLayout != driver.LayoutUndefined || b.NewLayout != driver.LayoutTransferDst {
		t.Fatalf("first barrier %s -> %s", b.OldLayout, b.NewLayout)
	}
	if b := cmds[2].Barriers[0]; b.OldLayout != driver.LayoutTransferDst || b.NewLayout != driver.LayoutShaderReadOnly {
		t.Fatalf("second barrier %s -> %s", b.OldLayout, b.NewLayout)
	}
	if r := cmds[1].Region; r.Width != 4 || r.Height != 2 || cmds[1].Image != tex.Image {
		t.Fatalf("copy region %+v", r)
	}
}

func TestUploadRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name          string
		pixels        []byte
		width, height uint32
		format        driver.Format
	}{
		{name: "zero width", pixels: solidPixels(1, 1), width: 0, height: 1, format: driver.FormatRGBA8Srgb},
		{name: "short pixel data", pixels: solidPixels(2, 1), width: 2, height: 2, format: driver.FormatRGBA8Srgb},
		{name: "depth format", pixels: solidPixels(1, 1), width: 1, height: 1, format: driver.FormatD32Sfloat},
		{name: "no pixels", pixels: nil, width: 1, height: 1, format: driver.FormatRGBA8Unorm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := drivertest.NewDevice()
			up := newUploader(t, dev)
			if _, err := up.Upload(tt.name, tt.pixels, tt.width, tt.height, tt.format); !errors.Is(err, core.ErrTextureLoad) {
				t.Fatalf("err = %v, want ErrTextureLoad", err)
			}
			// Only the uploader's command pool.
			if got := dev.LiveTotal(); got != 1 {
				t.Fatalf("leaked %v", dev.Leaks())
			}
		})
	}
}

func TestUploadCleansUpOnDeviceFailure(t *testing.T) {
	for _, kind := range []drivertest.Kind{
		drivertest.KindImage,
		drivertest.KindImageView,
		drivertest.KindBuffer,
		drivertest.KindCommandBuffer,
		drivertest.KindFence,
	} {
		t.Run(string(kind), func(t *testing.T) {
			dev := drivertest.NewDevice()
			up := newUploader(t, dev)
			dev.FailOn(kind, 1)
			_, err := up.Upload("x", solidPixels(2, 2), 2, 2, driver.FormatRGBA8Srgb)
			if !errors.Is(err, core.ErrDeviceFailure) {
				t.Fatalf("err = %v, want ErrDeviceFailure", err)
			}
			if got := dev.LiveTotal(); got != 1 {
				t.Fatalf("leaked %v", dev.Leaks())
			}
		})
	}
}

func TestUploadSubmitFailure(t *testing.T) {
	dev := drivertest.NewDevice()
	up := newUploader(t, dev)
	dev.Queue().FailNextSubmit(errors.New("lost"))
	if _, err := up.Upload("x", solidPixels(1, 1), 1, 1, driver.FormatRGBA8Srgb); !errors.Is(err, core.ErrDeviceFailure) {
		t.Fatalf("err = %v, want ErrDeviceFailure", err)
	}
	if got := dev.LiveTotal(); got != 1 {
		t.Fatalf("leaked %v", dev.Leaks())
	}
}

func TestStagedUploadInCallerCommands(t *testing.T) {
	dev := drivertest.NewDevice()
	up := newUploader(t, dev)
	pixels := solidPixels(2, 2)
	pixels[0] = 0x10

	tex, err := up.Stage("deferred", pixels, 2, 2, driver.FormatRGBA8Srgb)
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Destroy()
	if tex.State() != TextureStaged || !tex.HasStaging() || tex.View == nil {
		t.Fatalf("after Stage: state %s staging %v view %v", tex.State(), tex.HasStaging(), tex.View)
	}
	staged := tex.staging.(*drivertest.Buffer).Bytes()
	if !bytes.Equal(staged, pixels) {
		t.Fatal("staging buffer does not hold the pixels")
	}

	pool, _ := dev.CreateCommandPool()
	defer pool.Destroy()
	cmd, _ := pool.Allocate()
	_ = cmd.Begin(true)
	if err := tex.RecordUpload(cmd); err != nil {
		t.Fatal(err)
	}
	if tex.State() != TextureCopied {
		t.Fatalf("after RecordUpload: %s", tex.State())
	}
	// Recording twice is a bug.
	if err := tex.RecordUpload(cmd); !core.IsAssertionFailure(err) {
		t.Fatalf("second RecordUpload = %v", err)
	}

	tex.ReleaseStaging()
	if tex.State() != TextureReady || tex.HasStaging() {
		t.Fatalf("after ReleaseStaging: %s staging %v", tex.State(), tex.HasStaging())
	}
	if dev.Live(drivertest.KindBuffer) != 0 {
		t.Fatal("staging buffer still live")
	}
}

func TestTextureDestroy(t *testing.T) {
	dev := drivertest.NewDevice()
	up := newUploader(t, dev)
	tex, err := up.Stage("x", solidPixels(1, 1), 1, 1, driver.FormatRGBA8Srgb)
	if err != nil {
		t.Fatal(err)
	}
	tex.Destroy()
	tex.Destroy()
	if tex.State() != TextureUnloaded || dev.LiveTotal() != 1 {
		t.Fatalf("state %s leaks %v", tex.State(), dev.Leaks())
	}
}

func TestTextureStateString(t *testing.T) {
	for state, want := range map[TextureState]string{
		TextureUnloaded:    "unloaded",
		TextureStaged:      "staged",
		TextureTransferDst: "transfer_dst",
		TextureCopied:      "copied",
		TextureReady:       "ready",
		TextureState(42):   "unknown",
		TextureState(-1):   "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("TextureState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
