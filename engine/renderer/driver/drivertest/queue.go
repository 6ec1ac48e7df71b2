package drivertest

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/anima-forward/engine/renderer/driver"
)

// Submission is a snapshot of one Submit call.
type Submission struct {
	Info     driver.SubmitInfo
	Commands [][]Command
}

// Queue completes work immediately unless auto completion is turned off,
// in which case the test drives it with CompleteNext and CompleteAll.
type Queue struct {
	device       *Device
	mu           sync.Mutex
	autoComplete bool
	failNext     error
	pending      []*Submission
	submitted    []*Submission
}

var _ driver.Queue = (*Queue)(nil)

func (q *Queue) SetAutoComplete(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.autoComplete = on
}

// FailNextSubmit makes the next Submit return err without side effects.
func (q *Queue) FailNextSubmit(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failNext = err
}

func (q *Queue) Submit(info driver.SubmitInfo) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.failNext != nil {
		err := q.failNext
		q.failNext = nil
		return err
	}
	if len(info.Wait) != len(info.WaitStages) {
		return errors.Wrapf(ErrInvalidUsage, "%d wait semaphores with %d stages", len(info.Wait), len(info.WaitStages))
	}
	cbs := make([]*CommandBuffer, 0, len(info.CommandBuffers))
	for _, cb := range info.CommandBuffers {
		c, ok := cb.(*CommandBuffer)
		if !ok || c.Destroyed() {
			return errors.Wrap(ErrDestroyedInput, "submit of a freed command buffer")
		}
		if c.state != cbExecutable {
			return errors.Wrap(ErrInvalidUsage, "submit of a command buffer that is not executable")
		}
		if c.pending.Load() {
			return errors.Wrap(ErrInvalidUsage, "submit of a command buffer already pending")
		}
		cbs = append(cbs, c)
	}
	if info.Fence != nil {
		if err := info.Fence.(*Fence).arm(); err != nil {
			return err
		}
	}

	s := &Submission{Info: info}
	for _, c := range cbs {
		s.Commands = append(s.Commands, c.Commands())
		c.pending.Store(true)
	}
	q.submitted = append(q.submitted, s)
	if q.autoComplete {
		complete(s)
	} else {
		q.pending = append(q.pending, s)
	}
	return nil
}

func complete(s *Submission) {
	for _, cb := range s.Info.CommandBuffers {
		c := cb.(*CommandBuffer)
		c.pending.Store(false)
		if c.oneTime {
			c.state = cbInitial
		}
	}
	if s.Info.Fence != nil {
		s.Info.Fence.(*Fence).signal()
	}
}

// CompleteNext finishes the oldest pending submission.
func (q *Queue) CompleteNext() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return false
	}
	s := q.pending[0]
	q.pending = q.pending[1:]
	complete(s)
	return true
}

func (q *Queue) CompleteAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	for _, s := range q.pending {
		complete(s)
	}
	q.pending = nil
	return n
}

func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) Submissions() []*Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Submission(nil), q.submitted...)
}

func (q *Queue) LastSubmission() *Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.submitted) == 0 {
		return nil
	}
	return q.submitted[len(q.submitted)-1]
}

// WaitIdle behaves as if the GPU drained every pending submission.
func (q *Queue) WaitIdle() error {
	q.CompleteAll()
	return nil
}
