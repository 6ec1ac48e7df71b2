package forward

import (
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

// SubmitFrame queues the recorded slot. Rendering waits for the swapchain
// image at color output and signals RenderComplete for the presenter.
func SubmitFrame(slots *FrameSlots, slot *FrameSlot, queue driver.Queue, sync driver.SyncSemaphores) error {
	return slots.Submit(slot, queue, sync.ImageAcquired, driver.StageColorAttachmentOutput, sync.RenderComplete)
}
