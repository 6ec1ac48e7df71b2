package forward

import (
	"testing"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver/drivertest"
)

func newAttachmentsFixture(t *testing.T, images int, extent driver.Extent2D) (*drivertest.Device, *drivertest.Swapchain, *Attachments) {
	t.Helper()
	dev := drivertest.NewDevice()
	sc, err := drivertest.NewSwapchain(dev, images, extent)
	if err != nil {
		t.Fatal(err)
	}
	pass, err := dev.CreateRenderPass(driver.RenderPassDesc{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		pass.Destroy()
		sc.Destroy()
	})
	return dev, sc, NewAttachments(dev, pass, driver.FormatD32Sfloat)
}

func TestAttachmentsBuild(t *testing.T) {
	extent := driver.Extent2D{Width: 800, Height: 600}
	dev, sc, a := newAttachmentsFixture(t, 3, extent)
	if err := a.Build(extent, sc.ColorViews()); err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()

	if a.Count() != 3 || a.Extent() != extent {
		t.Fatalf("count %d extent %+v", a.Count(), a.Extent())
	}
	names := map[string]bool{}
	for i := 0; i < a.Count(); i++ {
		d := a.Depth(i)
		img := d.Image.(*drivertest.Image)
		if img.Width() != 800 || img.Height() != 600 || img.Format() != driver.FormatD32Sfloat {
			t.Fatalf("depth %d is %dx%d %s", i, img.Width(), img.Height(), img.Format())
		}
		if d.View.(*drivertest.ImageView).Aspect != driver.AspectDepth {
			t.Fatalf("depth view %d has aspect %d", i, d.View.(*drivertest.ImageView).Aspect)
		}
		names[d.Name] = true

		fb := a.Framebuffer(i).(*drivertest.Framebuffer)
		if fb.Extent() != extent {
			t.Fatalf("framebuffer %d extent %+v", i, fb.Extent())
		}
		if fb.Attachments[0] != sc.ColorViews()[i] || fb.Attachments[1] != d.View {
			t.Fatalf("framebuffer %d attachments out of order", i)
		}
	}
	if len(names) != 3 {
		t.Fatalf("depth names are not unique: %v", names)
	}
	if got := dev.Live(drivertest.KindFramebuffer); got != 3 {
		t.Fatalf("%d framebuffers live", got)
	}
}

func TestAttachmentsBuildTwiceIsAssertion(t *testing.T) {
	extent := driver.Extent2D{Width: 64, Height: 64}
	_, sc, a := newAttachmentsFixture(t, 2, extent)
	if err := a.Build(extent, sc.ColorViews()); err != nil {
		t.Fatal(err)
	}
	defer a.Destroy()
	if err := a.Build(extent, sc.ColorViews()); !core.IsAssertionFailure(err) {
		t.Fatalf("second Build = %v, want assertion failure", err)
	}
}

func TestAttachmentsRejectZeroExtent(t *testing.T) {
	dev, sc, a := newAttachmentsFixture(t, 2, driver.Extent2D{Width: 64, Height: 64})
	before := dev.LiveTotal()
	if err := a.Build(driver.Extent2D{Width: 0, Height: 64}, sc.ColorViews()); err == nil {
		t.Fatal("built attachments for a zero extent")
	}
	if dev.LiveTotal() != before || a.Count() != 0 {
		t.Fatalf("leaked %v", dev.Leaks())
	}
}

func TestAttachmentsRebuildSameExtent(t *testing.T) {
	extent := driver.Extent2D{Width: 320, Height: 200}
	dev, sc, a := newAttachmentsFixture(t, 3, extent)
	if err := a.Build(extent, sc.ColorViews()); err != nil {
		t.Fatal(err)
	}
	live := dev.LiveTotal()
	first := a.Depth(0)

	for i := 0; i < 2; i++ {
		if err := a.Rebuild(extent, sc.ColorViews()); err != nil {
			t.Fatal(err)
		}
		if got := dev.LiveTotal(); got != live {
			t.Fatalf("rebuild %d: %d live objects, want %d", i, got, live)
		}
		if a.Extent() != extent || a.Count() != 3 {
			t.Fatalf("rebuild %d: extent %+v count %d", i, a.Extent(), a.Count())
		}
	}
	if !first.Image.(*drivertest.Image).Destroyed() || !first.View.(*drivertest.ImageView).Destroyed() {
		t.Fatal("old depth attachment still live")
	}
	a.Destroy()
	if dev.Live(drivertest.KindFramebuffer) != 0 || a.Count() != 0 {
		t.Fatal("Destroy left framebuffers behind")
	}
}

func TestAttachmentsBuildFailureCleansUp(t *testing.T) {
	for _, tc := range []struct {
		kind drivertest.Kind
		n    int
	}{
		{drivertest.KindImage, 2},
		{drivertest.KindImageView, 3},
		{drivertest.KindFramebuffer, 3},
	} {
		t.Run(string(tc.kind), func(t *testing.T) {
			extent := driver.Extent2D{Width: 16, Height: 16}
			dev, sc, a := newAttachmentsFixture(t, 3, extent)
			before := dev.LiveTotal()
			dev.FailOn(tc.kind, tc.n)
			if err := a.Build(extent, sc.ColorViews()); err == nil {
				t.Fatal("Build succeeded")
			}
			if dev.LiveTotal() != before || a.Count() != 0 {
				t.Fatalf("leaked %v", dev.Leaks())
			}
			// A failed build can be retried.
			if err := a.Build(extent, sc.ColorViews()); err != nil {
				t.Fatal(err)
			}
			a.Destroy()
		})
	}
}
