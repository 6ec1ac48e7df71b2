package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFO(t *testing.T) {
	q := NewRingQueue[int](3)
	for i := 1; i <= 3; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	if !q.IsFull() {
		t.Fatal("queue of 3 with 3 items should be full")
	}
	if err := q.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue on full queue = %v, want ErrQueueFull", err)
	}

	if v, _ := q.Peek(); v != 1 {
		t.Errorf("Peek() = %d, want 1", v)
	}
	for want := 1; want <= 3; want++ {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if got != want {
			t.Errorf("Dequeue() = %d, want %d", got, want)
		}
	}
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("Dequeue on empty queue = %v, want ErrQueueEmpty", err)
	}
}

func TestRingQueueWrapsAround(t *testing.T) {
	q := NewRingQueue[string](2)
	_ = q.Enqueue("a")
	_ = q.Enqueue("b")
	_, _ = q.Dequeue()
	if err := q.Enqueue("c"); err != nil {
		t.Fatalf("Enqueue after Dequeue: %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	for _, want := range []string{"b", "c"} {
		if got, _ := q.Dequeue(); got != want {
			t.Errorf("Dequeue() = %q, want %q", got, want)
		}
	}
}
