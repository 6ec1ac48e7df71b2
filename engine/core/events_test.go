package core

import (
	"sync"
	"testing"
)

func TestEventBusFireStopsWhenHandled(t *testing.T) {
	bus := NewEventBus(4)
	var calls []string
	first, second := new(int), new(int)
	bus.Register(EVENT_CODE_RESIZED, first, func(ctx EventContext) bool {
		calls = append(calls, "first")
		return true
	})
	bus.Register(EVENT_CODE_RESIZED, second, func(ctx EventContext) bool {
		calls = append(calls, "second")
		return false
	})

	if !bus.Fire(EventContext{Code: EVENT_CODE_RESIZED}) {
		t.Fatal("Fire should report the event as handled")
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Fatalf("calls = %v, want [first]", calls)
	}

	bus.Unregister(EVENT_CODE_RESIZED, first)
	calls = nil
	if bus.Fire(EventContext{Code: EVENT_CODE_RESIZED}) {
		t.Fatal("no listener handles the event any more")
	}
	if len(calls) != 1 || calls[0] != "second" {
		t.Fatalf("calls = %v, want [second]", calls)
	}
}

func TestEventBusRejectsDuplicateListener(t *testing.T) {
	bus := NewEventBus(1)
	l := new(int)
	noop := func(EventContext) bool { return false }
	if !bus.Register(EVENT_CODE_APPLICATION_QUIT, l, noop) {
		t.Fatal("first Register failed")
	}
	if bus.Register(EVENT_CODE_APPLICATION_QUIT, l, noop) {
		t.Fatal("duplicate Register succeeded")
	}
	if bus.Unregister(EVENT_CODE_RESIZED, l) {
		t.Fatal("Unregister for a code never registered succeeded")
	}
}

// Posting from many goroutines only enqueues; delivery happens on Dispatch
// in posting order per goroutine.
func TestEventBusPostDeliversOnDispatch(t *testing.T) {
	bus := NewEventBus(64)
	var got []uint32
	bus.Register(EVENT_CODE_RESIZED, t, func(ctx EventContext) bool {
		got = append(got, ctx.Data.(*ResizeEvent).Width)
		return true
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(base uint32) {
			defer wg.Done()
			for j := uint32(0); j < 8; j++ {
				if err := bus.Post(EventContext{Code: EVENT_CODE_RESIZED, Data: &ResizeEvent{Width: base + j}}); err != nil {
					t.Error(err)
				}
			}
		}(uint32(i * 100))
	}
	wg.Wait()
	if len(got) != 0 {
		t.Fatal("Post delivered before Dispatch")
	}

	if n := bus.Dispatch(); n != 32 {
		t.Fatalf("Dispatch() = %d, want 32", n)
	}
	last := map[uint32]uint32{}
	for _, w := range got {
		base := w / 100 * 100
		if prev, ok := last[base]; ok && w < prev {
			t.Fatalf("events of poster %d out of order: %d after %d", base, w, prev)
		}
		last[base] = w
	}
	if bus.Dispatch() != 0 {
		t.Fatal("second Dispatch delivered again")
	}
}

func TestEventBusPostFullQueue(t *testing.T) {
	bus := NewEventBus(1)
	if err := bus.Post(EventContext{Code: EVENT_CODE_APPLICATION_QUIT}); err != nil {
		t.Fatal(err)
	}
	if err := bus.Post(EventContext{Code: EVENT_CODE_APPLICATION_QUIT}); err == nil {
		t.Fatal("Post on a full queue succeeded")
	}
}
