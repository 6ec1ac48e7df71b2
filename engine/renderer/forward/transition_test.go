package forward

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver/drivertest"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name     string
		from, to driver.ImageLayout
		want     *transition
	}{
		{
			name: "undefined to transfer dst",
			from: driver.LayoutUndefined, to: driver.LayoutTransferDst,
			want: &transition{
				srcAccess: driver.AccessNone, dstAccess: driver.AccessTransferWrite,
				srcStage: driver.StageTopOfPipe, dstStage: driver.StageTransfer,
			},
		},
		{
			name: "transfer dst to shader read",
			from: driver.LayoutTransferDst, to: driver.LayoutShaderReadOnly,
			want: &transition{
				srcAccess: driver.AccessTransferWrite, dstAccess: driver.AccessShaderRead,
				srcStage: driver.StageTransfer, dstStage: driver.StageFragmentShader,
			},
		},
		{name: "undefined to shader read", from: driver.LayoutUndefined, to: driver.LayoutShaderReadOnly},
		{name: "shader read to transfer dst", from: driver.LayoutShaderReadOnly, to: driver.LayoutTransferDst},
		{name: "transfer dst to itself", from: driver.LayoutTransferDst, to: driver.LayoutTransferDst},
		{name: "shader read to undefined", from: driver.LayoutShaderReadOnly, to: driver.LayoutUndefined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lookupTransition(tt.from, tt.to)
			if tt.want == nil {
				if !errors.Is(err, core.ErrUnsupportedTransition) || !core.IsAssertionFailure(err) {
					t.Fatalf("err = %v, want ErrUnsupportedTransition assertion", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != *tt.want {
				t.Fatalf("got %+v, want %+v", got, *tt.want)
			}
		})
	}
}

func TestRecordTransitionEmitsNoBarrierOnError(t *testing.T) {
	dev := drivertest.NewDevice()
	pool, _ := dev.CreateCommandPool()
	defer pool.Destroy()
	cb, _ := pool.Allocate()
	cmd := cb.(*drivertest.CommandBuffer)
	img, _ := dev.CreateImage(driver.ImageDesc{Width: 1, Height: 1, Format: driver.FormatRGBA8Srgb})
	defer img.Destroy()

	_ = cmd.Begin(true)
	if err := recordTransition(cmd, img, 1, driver.LayoutShaderReadOnly, driver.LayoutTransferDst); err == nil {
		t.Fatal("unsupported transition recorded")
	}
	if len(cmd.Commands()) != 0 {
		t.Fatalf("recorded %v", cmd.Commands())
	}

	if err := recordTransition(cmd, img, 1, driver.LayoutUndefined, driver.LayoutTransferDst); err != nil {
		t.Fatal(err)
	}
	cmds := cmd.Commands()
	if len(cmds) != 1 || cmds[0].Op != drivertest.OpPipelineBarrier {
		t.Fatalf("recorded %v", cmds)
	}
	b := cmds[0].Barriers[0]
	if b.Image != img || b.OldLayout != driver.LayoutUndefined || b.NewLayout != driver.LayoutTransferDst || b.Aspect != driver.AspectColor {
		t.Fatalf("barrier %+v", b)
	}
}
