package forward

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type TextureState int

const (
	TextureUnloaded TextureState = iota
	TextureStaged
	TextureTransferDst
	TextureCopied
	TextureReady
)

func (s TextureState) String() string {
	switch s {
	case TextureUnloaded:
		return "unloaded"
	case TextureStaged:
		return "staged"
	case TextureTransferDst:
		return "transfer_dst"
	case TextureCopied:
		return "copied"
	case TextureReady:
		return "ready"
	}
	return "unknown"
}

// TextureResource is a sampled image on the GPU. The staging buffer only
// lives between Stage and ReleaseStaging.
type TextureResource struct {
	Name      string
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    driver.Format
	Image     driver.Image
	View      driver.ImageView

	device  driver.Device
	staging driver.Buffer
	state   TextureState
}

func (t *TextureResource) State() TextureState {
	return t.state
}

func (t *TextureResource) HasStaging() bool {
	return t.staging != nil
}

// RecordUpload records the copy of the staged pixels into the image,
// surrounded by the two layout transitions. The staging buffer must stay
// alive until cmd has executed.
func (t *TextureResource) RecordUpload(cmd driver.CommandBuffer) error {
	if t.state != TextureStaged {
		return errors.AssertionFailedf("texture `%s` recorded for upload while %s", t.Name, t.state)
	}
	if err := recordTransition(cmd, t.Image, t.MipLevels, driver.LayoutUndefined, driver.LayoutTransferDst); err != nil {
		return err
	}
	t.state = TextureTransferDst

	cmd.CopyBufferToImage(t.staging, t.Image, driver.BufferImageCopy{
		Width:  t.Width,
		Height: t.Height,
		Aspect: driver.AspectColor,
	})
	t.state = TextureCopied

	return recordTransition(cmd, t.Image, t.MipLevels, driver.LayoutTransferDst, driver.LayoutShaderReadOnly)
}

// abortUpload returns a texture whose recorded upload will never execute to
// Staged. The staging buffer is kept so the upload can be recorded again.
func (t *TextureResource) abortUpload() {
	if t.state == TextureTransferDst || t.state == TextureCopied {
		t.state = TextureStaged
	}
}

// ReleaseStaging frees the staging buffer once the upload has executed.
func (t *TextureResource) ReleaseStaging() {
	if t.staging != nil {
		t.staging.Destroy()
		t.staging = nil
	}
	if t.state == TextureCopied && t.View != nil {
		t.state = TextureReady
	}
}

func (t *TextureResource) Destroy() {
	if t.staging != nil {
		t.staging.Destroy()
		t.staging = nil
	}
	if t.View != nil {
		t.View.Destroy()
		t.View = nil
	}
	if t.Image != nil {
		t.Image.Destroy()
		t.Image = nil
	}
	t.state = TextureUnloaded
}

type TextureUploader struct {
	device  driver.Device
	queue   driver.Queue
	pool    driver.CommandPool
	timeout time.Duration
}

func NewTextureUploader(device driver.Device, queue driver.Queue, pool driver.CommandPool, fenceTimeout time.Duration) *TextureUploader {
	return &TextureUploader{
		device:  device,
		queue:   queue,
		pool:    pool,
		timeout: fenceTimeout,
	}
}

func validatePixels(name string, pixels []byte, width, height uint32, format driver.Format) error {
	bpp := format.BytesPerPixel()
	if bpp != 4 {
		return errors.Wrapf(core.ErrTextureLoad, "texture `%s`: unsupported format %s", name, format)
	}
	if width == 0 || height == 0 {
		return errors.Wrapf(core.ErrTextureLoad, "texture `%s`: invalid size %dx%d", name, width, height)
	}
	want := uint64(width) * uint64(height) * uint64(bpp)
	if uint64(len(pixels)) < want {
		return errors.Wrapf(core.ErrTextureLoad, "texture `%s`: got %d bytes of pixel data, need %d", name, len(pixels), want)
	}
	return nil
}

// Stage creates the image with its view and fills a staging buffer with
// pixels. The returned texture still needs RecordUpload and ReleaseStaging.
func (u *TextureUploader) Stage(name string, pixels []byte, width, height uint32, format driver.Format) (*TextureResource, error) {
	if err := validatePixels(name, pixels, width, height, format); err != nil {
		return nil, err
	}

	t := &TextureResource{
		Name:      name,
		Width:     width,
		Height:    height,
		MipLevels: 1,
		Format:    format,
		device:    u.device,
	}
	img, err := u.device.CreateImage(driver.ImageDesc{
		Width:     width,
		Height:    height,
		Format:    format,
		Usage:     driver.UsageTransferDst | driver.UsageSampled,
		MipLevels: t.MipLevels,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "image for texture `%s`", name), core.ErrDeviceFailure)
	}
	t.Image = img
	// The view does not depend on the layout, so binding sets can be written
	// before the upload executes. Nothing may sample it until then.
	view, err := u.device.CreateImageView(img, driver.AspectColor)
	if err != nil {
		t.Destroy()
		return nil, errors.Mark(errors.Wrapf(err, "image view for texture `%s`", name), core.ErrDeviceFailure)
	}
	t.View = view

	size := uint64(width) * uint64(height) * uint64(format.BytesPerPixel())
	staging, err := u.device.CreateBuffer(driver.BufferDesc{
		Size:        size,
		Usage:       driver.BufferUsageTransferSrc,
		HostVisible: true,
	})
	if err != nil {
		t.Destroy()
		return nil, errors.Mark(errors.Wrapf(err, "staging buffer for texture `%s`", name), core.ErrDeviceFailure)
	}
	t.staging = staging
	if err := staging.Write(0, pixels[:size]); err != nil {
		t.Destroy()
		return nil, errors.Mark(errors.Wrapf(err, "filling staging buffer for texture `%s`", name), core.ErrDeviceFailure)
	}
	t.state = TextureStaged
	return t, nil
}

// Upload stages the pixels and runs the copy on a single-use command
// buffer, waiting for it. The texture is Ready when this returns.
func (u *TextureUploader) Upload(name string, pixels []byte, width, height uint32, format driver.Format) (*TextureResource, error) {
	t, err := u.Stage(name, pixels, width, height, format)
	if err != nil {
		return nil, err
	}
	err = withSingleUseCommands(u.device, u.pool, u.queue, u.timeout, t.RecordUpload)
	if err != nil {
		t.Destroy()
		return nil, errors.Wrapf(err, "uploading texture `%s`", name)
	}
	t.ReleaseStaging()
	core.LogDebug("texture `%s` uploaded (%dx%d %s)", name, width, height, format)
	return t, nil
}

// withSingleUseCommands records fn into a fresh command buffer, submits it
// and waits for completion. The command buffer and its fence are always
// released.
func withSingleUseCommands(device driver.Device, pool driver.CommandPool, queue driver.Queue, timeout time.Duration, fn func(cmd driver.CommandBuffer) error) error {
	cmd, err := pool.Allocate()
	if err != nil {
		return errors.Mark(errors.Wrap(err, "allocating single use command buffer"), core.ErrDeviceFailure)
	}
	defer cmd.Free()

	fence, err := device.CreateFence(false)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating single use fence"), core.ErrDeviceFailure)
	}
	defer fence.Destroy()

	if err := cmd.Begin(true); err != nil {
		return errors.Mark(err, core.ErrDeviceFailure)
	}
	if err := fn(cmd); err != nil {
		return err
	}
	if err := cmd.End(); err != nil {
		return errors.Mark(err, core.ErrDeviceFailure)
	}
	if err := queue.Submit(driver.SubmitInfo{
		CommandBuffers: []driver.CommandBuffer{cmd},
		Fence:          fence,
	}); err != nil {
		return errors.Mark(errors.Wrap(err, "submitting single use command buffer"), core.ErrDeviceFailure)
	}
	if err := fence.Wait(timeout); err != nil {
		if errors.Is(err, driver.ErrTimeout) {
			return errors.Wrapf(core.ErrFenceTimeout, "single use command buffer after %s", timeout)
		}
		return errors.Mark(err, core.ErrDeviceFailure)
	}
	return nil
}
