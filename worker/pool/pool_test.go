package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"cadconverter/worker/kafka"
)

func testMessage(id string) *kafka.TaskMessage {
	return &kafka.TaskMessage{TaskID: id, TraceID: "trace-" + id}
}

func TestWorkerPool_DoRunsHandlerBeforeReturning(t *testing.T) {
	p := NewWorkerPool(2, zaptest.NewLogger(t))

	var ran atomic.Bool
	err := p.Do(context.Background(), testMessage("1"), func(ctx context.Context, msg *kafka.TaskMessage) error {
		time.Sleep(10 * time.Millisecond)
		ran.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !ran.Load() {
		t.Fatal("Expected handler to complete before Do returned")
	}
}

func TestWorkerPool_DoPropagatesHandlerError(t *testing.T) {
	p := NewWorkerPool(1, zaptest.NewLogger(t))

	want := errors.New("conversion blew up")
	err := p.Do(context.Background(), testMessage("1"), func(ctx context.Context, msg *kafka.TaskMessage) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Expected handler error back, got %v", err)
	}
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	const limit = 2
	p := NewWorkerPool(limit, zaptest.NewLogger(t))

	var active, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Do(context.Background(), testMessage("n"), func(ctx context.Context, msg *kafka.TaskMessage) error {
				n := atomic.AddInt64(&active, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&peak); got > limit {
		t.Errorf("Expected at most %d concurrent handlers, saw %d", limit, got)
	}
}

func TestWorkerPool_DoSkipsOnCanceledContext(t *testing.T) {
	p := NewWorkerPool(1, zaptest.NewLogger(t))

	// Occupy the only slot so Do has to wait, then cancel.
	release := make(chan struct{})
	go p.Do(context.Background(), testMessage("1"), func(ctx context.Context, msg *kafka.TaskMessage) error {
		<-release
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, testMessage("2"), func(ctx context.Context, msg *kafka.TaskMessage) error {
		t.Error("Handler must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	close(release)
	p.Wait()
}
