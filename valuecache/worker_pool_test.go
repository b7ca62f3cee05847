package valuecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolExecutesTasks(t *testing.T) {
	wp := NewWorkerPool(2)
	defer wp.Close()

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := wp.Submit(context.Background(), func() {
			defer wg.Done()
			done.Add(1)
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	wg.Wait()

	if got := done.Load(); got != 10 {
		t.Errorf("executed %d tasks, want 10", got)
	}
}

func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	wp := NewWorkerPool(1)
	wp.Close()

	if err := wp.Submit(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrClosed", err)
	}
}

func TestWorkerPoolCloseIdempotent(t *testing.T) {
	wp := NewWorkerPool(1)
	wp.Close()
	wp.Close()
}
