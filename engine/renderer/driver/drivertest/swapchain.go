package drivertest

import (
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

// Swapchain owns its color images and one semaphore pair per image.
type Swapchain struct {
	device *Device
	extent driver.Extent2D
	format driver.Format
	images []driver.Image
	views  []driver.ImageView
	sync   []driver.SyncSemaphores
	frame  int
}

var _ driver.Swapchain = (*Swapchain)(nil)

func NewSwapchain(device *Device, imageCount int, extent driver.Extent2D) (*Swapchain, error) {
	s := &Swapchain{device: device, format: driver.FormatBGRA8Srgb}
	for i := 0; i < imageCount; i++ {
		acquired, err := device.CreateSemaphore()
		if err != nil {
			s.Destroy()
			return nil, err
		}
		done, err := device.CreateSemaphore()
		if err != nil {
			acquired.Destroy()
			s.Destroy()
			return nil, err
		}
		s.sync = append(s.sync, driver.SyncSemaphores{ImageAcquired: acquired, RenderComplete: done})
	}
	if err := s.create(imageCount, extent); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) create(count int, extent driver.Extent2D) error {
	s.extent = extent
	for i := 0; i < count; i++ {
		img, err := s.device.CreateImage(driver.ImageDesc{
			Width:  extent.Width,
			Height: extent.Height,
			Format: s.format,
			Usage:  driver.UsageColorAttachment,
		})
		if err != nil {
			return err
		}
		s.images = append(s.images, img)
		view, err := s.device.CreateImageView(img, driver.AspectColor)
		if err != nil {
			return err
		}
		s.views = append(s.views, view)
	}
	return nil
}

func (s *Swapchain) destroyImages() {
	for _, v := range s.views {
		v.Destroy()
	}
	for _, img := range s.images {
		img.Destroy()
	}
	s.views, s.images = nil, nil
}

// Resize replaces every color image with one of the new extent.
func (s *Swapchain) Resize(extent driver.Extent2D) error {
	return s.Recreate(len(s.images), extent)
}

// Recreate is Resize with a new image count, as a surface may report after
// a mode change.
func (s *Swapchain) Recreate(count int, extent driver.Extent2D) error {
	for len(s.sync) > count {
		last := s.sync[len(s.sync)-1]
		last.ImageAcquired.Destroy()
		last.RenderComplete.Destroy()
		s.sync = s.sync[:len(s.sync)-1]
	}
	for len(s.sync) < count {
		acquired, err := s.device.CreateSemaphore()
		if err != nil {
			return err
		}
		done, err := s.device.CreateSemaphore()
		if err != nil {
			acquired.Destroy()
			return err
		}
		s.sync = append(s.sync, driver.SyncSemaphores{ImageAcquired: acquired, RenderComplete: done})
	}
	s.destroyImages()
	s.frame = 0
	return s.create(count, extent)
}

// Advance moves to the next frame, as a present would.
func (s *Swapchain) Advance() {
	s.frame = (s.frame + 1) % len(s.views)
}

func (s *Swapchain) Destroy() {
	s.destroyImages()
	for _, p := range s.sync {
		p.ImageAcquired.Destroy()
		p.RenderComplete.Destroy()
	}
	s.sync = nil
}

func (s *Swapchain) Extent() driver.Extent2D                       { return s.extent }
func (s *Swapchain) ImageCount() int                               { return len(s.views) }
func (s *Swapchain) ColorViews() []driver.ImageView                { return append([]driver.ImageView(nil), s.views...) }
func (s *Swapchain) ColorFormat() driver.Format                    { return s.format }
func (s *Swapchain) CurrentFrame() int                             { return s.frame }
func (s *Swapchain) SyncSemaphores(frame int) driver.SyncSemaphores { return s.sync[frame] }
