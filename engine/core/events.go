package core

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-forward/engine/containers"
)

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * data := ctx.Data.(*KeyEvent)
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released.
	/* Context usage:
	 * data := ctx.Data.(*KeyEvent)
	 */
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * data := ctx.Data.(*ResizeEvent)
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// Mesh data finished loading on a worker and is resident on the GPU.
	/* Context usage:
	 * meshes := ctx.Data.([]*metadata.Mesh)
	 */
	EVENT_CODE_MESHES_LOADED SystemEventCode = 0x100

	// A mesh is about to be dropped by its owner.
	/* Context usage:
	 * mesh := ctx.Data.(*metadata.Mesh)
	 */
	EVENT_CODE_MESH_UNLOADED SystemEventCode = 0x101

	// An image on disk changed and was decoded again on a worker.
	/* Context usage:
	 * data := ctx.Data.(*metadata.ImageResourceData)
	 */
	EVENT_CODE_TEXTURE_RELOADED SystemEventCode = 0x102
)

type EventContext struct {
	Code   SystemEventCode
	Sender interface{}
	Data   interface{}
}

type ResizeEvent struct {
	Width  uint32
	Height uint32
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus delivers events to listeners on the thread that calls Dispatch.
// Post may be called from any goroutine; it only enqueues. This is how
// worker goroutines hand GPU lifetime changes to the render thread.
type EventBus struct {
	mu         sync.Mutex
	pending    *containers.RingQueue[EventContext]
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventBus(capacity int) *EventBus {
	return &EventBus{
		pending:    containers.NewRingQueue[EventContext](capacity),
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listener/callback combos will not be registered again and will cause this to return FALSE.
 */
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code `%d`", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	// Not found.
	return false
}

// Post queues an event for the next Dispatch.
func (b *EventBus) Post(ctx EventContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.pending.Enqueue(ctx); err != nil {
		return errors.Wrapf(err, "dropping event code `%d`", ctx.Code)
	}
	return nil
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * TRUE, the event is considered handled and is not passed on to any more listeners.
 */
func (b *EventBus) Fire(ctx EventContext) bool {
	b.mu.Lock()
	events := make([]*registeredEvent, len(b.registered[ctx.Code]))
	copy(events, b.registered[ctx.Code])
	b.mu.Unlock()

	for _, e := range events {
		if e.callback(ctx) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}

// Dispatch fires every queued event in posting order and returns how many
// were delivered. Call it from the render thread only.
func (b *EventBus) Dispatch() int {
	n := 0
	for {
		b.mu.Lock()
		ctx, err := b.pending.Dequeue()
		b.mu.Unlock()
		if err != nil {
			return n
		}
		b.Fire(ctx)
		n++
	}
}
