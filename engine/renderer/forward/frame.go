package forward

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/core"
	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

type SlotState int

const (
	SlotIdle SlotState = iota
	SlotRecording
	SlotSubmitted
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotRecording:
		return "recording"
	case SlotSubmitted:
		return "submitted"
	}
	return "unknown"
}

// FrameSlot is one of the frames that may be in flight at the same time.
type FrameSlot struct {
	Index    int
	Fence    driver.Fence
	Commands driver.CommandBuffer

	state SlotState
	// armed is true while the fence is guaranteed to signal: created
	// signaled, or reset and then handed to a submission.
	armed bool
	// Textures whose upload was recorded into this slot. Their staging
	// buffers are released the next time the slot is acquired.
	uploads []*TextureResource
}

func (s *FrameSlot) State() SlotState {
	return s.state
}

type FrameSlots struct {
	slots   []*FrameSlot
	timeout time.Duration
}

// NewFrameSlots creates count slots with signaled fences, so the first
// Acquire of every slot does not block.
func NewFrameSlots(device driver.Device, pool driver.CommandPool, count int, fenceTimeout time.Duration) (*FrameSlots, error) {
	if count <= 0 {
		return nil, errors.Newf("frame slot count must be positive, got %d", count)
	}
	fs := &FrameSlots{
		slots:   make([]*FrameSlot, 0, count),
		timeout: fenceTimeout,
	}
	for i := 0; i < count; i++ {
		fence, err := device.CreateFence(true)
		if err != nil {
			fs.Destroy()
			return nil, errors.Wrapf(err, "failed to create fence for frame slot %d", i)
		}
		cmd, err := pool.Allocate()
		if err != nil {
			fence.Destroy()
			fs.Destroy()
			return nil, errors.Wrapf(err, "failed to allocate command buffer for frame slot %d", i)
		}
		fs.slots = append(fs.slots, &FrameSlot{Index: i, Fence: fence, Commands: cmd, armed: true})
	}
	return fs, nil
}

func (fs *FrameSlots) Len() int {
	return len(fs.slots)
}

func (fs *FrameSlots) Slot(index int) *FrameSlot {
	return fs.slots[index]
}

func (fs *FrameSlots) wait(s *FrameSlot) error {
	if !s.armed {
		return nil
	}
	if err := s.Fence.Wait(fs.timeout); err != nil {
		if errors.Is(err, driver.ErrTimeout) {
			return errors.Wrapf(core.ErrFenceTimeout, "frame slot %d after %s", s.Index, fs.timeout)
		}
		return errors.Mark(errors.Wrapf(err, "waiting on frame slot %d", s.Index), core.ErrDeviceFailure)
	}
	if s.state == SlotSubmitted {
		s.state = SlotIdle
	}
	return nil
}

// Acquire blocks until the previous submission of the slot completed, then
// resets its fence and command buffer for a new recording.
func (fs *FrameSlots) Acquire(index int) (*FrameSlot, error) {
	if index < 0 || index >= len(fs.slots) {
		return nil, errors.AssertionFailedf("frame slot %d out of range [0,%d)", index, len(fs.slots))
	}
	s := fs.slots[index]
	if s.state == SlotRecording {
		return nil, core.AssertionFailed(core.ErrSlotInFlight, "frame slot %d acquired while recording", index)
	}
	if err := fs.wait(s); err != nil {
		return nil, err
	}
	if s.armed {
		if err := s.Fence.Reset(); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "resetting fence of frame slot %d", index), core.ErrDeviceFailure)
		}
		s.armed = false
	}
	if err := s.Commands.Reset(); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "resetting command buffer of frame slot %d", index), core.ErrDeviceFailure)
	}
	s.state = SlotIdle
	return s, nil
}

// Begin starts recording into an acquired slot.
func (fs *FrameSlots) Begin(s *FrameSlot) error {
	if s.state != SlotIdle {
		return core.AssertionFailed(core.ErrSlotInFlight, "frame slot %d begun while %s", s.Index, s.state)
	}
	if err := s.Commands.Begin(true); err != nil {
		return errors.Mark(errors.Wrapf(err, "beginning command buffer of frame slot %d", s.Index), core.ErrDeviceFailure)
	}
	s.state = SlotRecording
	return nil
}

// Submit ends the recording and hands the command buffer to the queue,
// arming the slot fence.
func (fs *FrameSlots) Submit(s *FrameSlot, queue driver.Queue, wait driver.Semaphore, waitStage driver.PipelineStage, signal driver.Semaphore) error {
	switch s.state {
	case SlotSubmitted:
		return core.AssertionFailed(core.ErrSlotInFlight, "frame slot %d submitted twice", s.Index)
	case SlotIdle:
		return core.AssertionFailed(core.ErrSlotInFlight, "frame slot %d submitted without recording", s.Index)
	}
	if err := s.Commands.End(); err != nil {
		s.state = SlotIdle
		return errors.Mark(errors.Wrapf(err, "ending command buffer of frame slot %d", s.Index), core.ErrDeviceFailure)
	}

	info := driver.SubmitInfo{
		CommandBuffers: []driver.CommandBuffer{s.Commands},
		Fence:          s.Fence,
	}
	if wait != nil {
		info.Wait = []driver.Semaphore{wait}
		info.WaitStages = []driver.PipelineStage{waitStage}
	}
	if signal != nil {
		info.Signal = []driver.Semaphore{signal}
	}
	if err := queue.Submit(info); err != nil {
		// Nothing was queued; the slot can be acquired again.
		s.state = SlotIdle
		return errors.Mark(errors.Wrapf(err, "submitting frame slot %d", s.Index), core.ErrDeviceFailure)
	}
	s.state = SlotSubmitted
	s.armed = true
	return nil
}

// Abort drops a recording that will never be submitted. The next Acquire
// resets the command buffer.
func (fs *FrameSlots) Abort(s *FrameSlot) {
	if s.state == SlotRecording {
		s.state = SlotIdle
	}
}

// WaitAll blocks until no slot has work in flight.
func (fs *FrameSlots) WaitAll() error {
	for _, s := range fs.slots {
		if err := fs.wait(s); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FrameSlots) Destroy() {
	for _, s := range fs.slots {
		s.Commands.Free()
		s.Fence.Destroy()
	}
	fs.slots = nil
}
