package systems

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	if err != nil {
		t.Fatal(err)
	}
	var (
		wg       sync.WaitGroup
		sum      atomic.Int64
		failures atomic.Int64
	)
	for i := 1; i <= 10; i++ {
		i := i
		wg.Add(1)
		fail := i%5 == 0
		err := js.Submit(JobTask{
			Name: "add",
			Run: func() (interface{}, error) {
				if fail {
					return nil, errors.New("boom")
				}
				return int64(i), nil
			},
			OnComplete: func(result interface{}) {
				sum.Add(result.(int64))
				wg.Done()
			},
			OnFailure: func(error) {
				failures.Add(1)
				wg.Done()
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
	if sum.Load() != 55-5-10 || failures.Load() != 2 {
		t.Fatalf("sum %d failures %d", sum.Load(), failures.Load())
	}

	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := js.Submit(JobTask{Run: func() (interface{}, error) { return nil, nil }}); !errors.Is(err, ErrJobSystemClosed) {
		t.Fatalf("Submit after Shutdown = %v", err)
	}
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestNewJobSystemValidates(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Fatalf("err = %v", err)
	}
}
