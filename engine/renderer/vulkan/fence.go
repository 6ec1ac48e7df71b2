package vulkan

import (
	"math"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type fence struct {
	ctx    *Context
	handle vk.Fence
}

func (f *fence) Wait(timeout time.Duration) error {
	ns := uint64(math.MaxUint64)
	if timeout != driver.WaitForever {
		ns = uint64(timeout.Nanoseconds())
	}
	result := vk.WaitForFences(f.ctx.Device, 1, []vk.Fence{f.handle}, vk.True, ns)
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return driver.ErrTimeout
	default:
		return checkResult(result, "vkWaitForFences")
	}
}

func (f *fence) Reset() error {
	return checkResult(vk.ResetFences(f.ctx.Device, 1, []vk.Fence{f.handle}), "vkResetFences")
}

func (f *fence) Destroy() {
	if f.handle != nil {
		vk.DestroyFence(f.ctx.Device, f.handle, f.ctx.Allocator)
		f.handle = nil
	}
}

type semaphore struct {
	ctx    *Context
	handle vk.Semaphore
}

func (s *semaphore) Destroy() {
	if s.handle != nil {
		vk.DestroySemaphore(s.ctx.Device, s.handle, s.ctx.Allocator)
		s.handle = nil
	}
}
