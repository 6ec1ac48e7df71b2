package forward

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

// DepthAttachment is the depth image bound to one framebuffer.
type DepthAttachment struct {
	Name  string
	Image driver.Image
	View  driver.ImageView
}

// Attachments owns one framebuffer and one depth attachment per swapchain
// image, all sized to the current extent.
type Attachments struct {
	device      driver.Device
	renderPass  driver.RenderPass
	depthFormat driver.Format

	extent       driver.Extent2D
	depth        []*DepthAttachment
	framebuffers []driver.Framebuffer
}

func NewAttachments(device driver.Device, renderPass driver.RenderPass, depthFormat driver.Format) *Attachments {
	return &Attachments{
		device:      device,
		renderPass:  renderPass,
		depthFormat: depthFormat,
	}
}

// Build creates a depth attachment and a framebuffer for every color view.
// On failure everything created by this call is destroyed again.
func (a *Attachments) Build(extent driver.Extent2D, colorViews []driver.ImageView) error {
	if len(a.framebuffers) > 0 || len(a.depth) > 0 {
		return errors.AssertionFailedf("attachments built twice without Destroy")
	}
	if extent.Width == 0 || extent.Height == 0 {
		return errors.Newf("cannot build attachments for extent %dx%d", extent.Width, extent.Height)
	}

	for i, color := range colorViews {
		depth, err := a.createDepth(extent)
		if err != nil {
			a.Destroy()
			return errors.Wrapf(err, "depth attachment %d", i)
		}
		a.depth = append(a.depth, depth)

		fb, err := a.device.CreateFramebuffer(a.renderPass, []driver.ImageView{color, depth.View}, extent)
		if err != nil {
			a.Destroy()
			return errors.Mark(errors.Wrapf(err, "framebuffer %d", i), core.ErrDeviceFailure)
		}
		a.framebuffers = append(a.framebuffers, fb)
	}
	a.extent = extent
	core.LogDebug("built %d framebuffers at %dx%d", len(a.framebuffers), extent.Width, extent.Height)
	return nil
}

func (a *Attachments) createDepth(extent driver.Extent2D) (*DepthAttachment, error) {
	img, err := a.device.CreateImage(driver.ImageDesc{
		Width:     extent.Width,
		Height:    extent.Height,
		Format:    a.depthFormat,
		Usage:     driver.UsageDepthAttachment,
		MipLevels: 1,
	})
	if err != nil {
		return nil, errors.Mark(err, core.ErrDeviceFailure)
	}
	view, err := a.device.CreateImageView(img, driver.AspectDepth)
	if err != nil {
		img.Destroy()
		return nil, errors.Mark(err, core.ErrDeviceFailure)
	}
	return &DepthAttachment{
		Name:  "depth_" + uuid.NewString(),
		Image: img,
		View:  view,
	}, nil
}

// Rebuild replaces every attachment with one of the new extent. Callers
// must make sure no in-flight frame still references the old ones.
func (a *Attachments) Rebuild(extent driver.Extent2D, colorViews []driver.ImageView) error {
	a.Destroy()
	return a.Build(extent, colorViews)
}

// Destroy releases framebuffers first, then depth views and images.
func (a *Attachments) Destroy() {
	for _, fb := range a.framebuffers {
		fb.Destroy()
	}
	a.framebuffers = nil
	for _, d := range a.depth {
		d.View.Destroy()
	}
	for _, d := range a.depth {
		d.Image.Destroy()
	}
	a.depth = nil
	a.extent = driver.Extent2D{}
}

func (a *Attachments) Count() int {
	return len(a.framebuffers)
}

func (a *Attachments) Extent() driver.Extent2D {
	return a.extent
}

func (a *Attachments) Framebuffer(i int) driver.Framebuffer {
	return a.framebuffers[i]
}

func (a *Attachments) Depth(i int) *DepthAttachment {
	return a.depth[i]
}
