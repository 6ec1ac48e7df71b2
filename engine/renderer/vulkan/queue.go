package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

// Queue implements driver.Queue. Submissions are serialized, so uploads
// and frames may share it.
type Queue struct {
	ctx    *Context
	handle vk.Queue
}

func (q *Queue) Submit(info driver.SubmitInfo) error {
	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}

	cmds := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, c := range info.CommandBuffers {
		cmds[i] = c.(*commandBuffer).handle
	}
	submitInfo.CommandBufferCount = uint32(len(cmds))
	submitInfo.PCommandBuffers = cmds

	if len(info.Wait) > 0 {
		wait := make([]vk.Semaphore, len(info.Wait))
		stages := make([]vk.PipelineStageFlags, len(info.Wait))
		for i, s := range info.Wait {
			wait[i] = s.(*semaphore).handle
			stages[i] = toVkStage(info.WaitStages[i])
		}
		submitInfo.WaitSemaphoreCount = uint32(len(wait))
		submitInfo.PWaitSemaphores = wait
		submitInfo.PWaitDstStageMask = stages
	}
	if len(info.Signal) > 0 {
		signal := make([]vk.Semaphore, len(info.Signal))
		for i, s := range info.Signal {
			signal[i] = s.(*semaphore).handle
		}
		submitInfo.SignalSemaphoreCount = uint32(len(signal))
		submitInfo.PSignalSemaphores = signal
	}

	fenceHandle := vk.NullFence
	if info.Fence != nil {
		fenceHandle = info.Fence.(*fence).handle
	}
	return q.ctx.locks.SafeCall(queueManagement, func() error {
		return checkResult(vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{submitInfo}, fenceHandle), "vkQueueSubmit")
	})
}

func (q *Queue) WaitIdle() error {
	return q.ctx.locks.SafeCall(queueManagement, func() error {
		return checkResult(vk.QueueWaitIdle(q.handle), "vkQueueWaitIdle")
	})
}
