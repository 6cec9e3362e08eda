package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLoop_StartStop(t *testing.T) {
	l := NewLoop()

	if err := l.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !l.IsRunning() {
		t.Error("expected loop to be running after Start()")
	}

	if err := l.Start(); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if l.IsRunning() {
		t.Error("expected loop to not be running after Stop()")
	}

	if err := l.Stop(ctx); err != ErrNotRunning {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestLoop_PostNotRunning(t *testing.T) {
	l := NewLoop()

	if err := l.Post(func() {}); err != ErrNotRunning {
		t.Errorf("Post() = %v, expected ErrNotRunning", err)
	}
	if err := l.Call(func() {}); err != ErrNotRunning {
		t.Errorf("Call() = %v, expected ErrNotRunning", err)
	}
	if err := l.Send(func() {}); err != ErrNotRunning {
		t.Errorf("Send() = %v, expected ErrNotRunning", err)
	}
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := NewLoop()
	if err := l.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer l.Stop(context.Background())

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		if err := l.Post(func() { order = append(order, i) }); err != nil {
			t.Fatalf("Post(%d) failed: %v", i, err)
		}
	}

	// Call runs after everything posted before it.
	var got []int
	if err := l.Call(func() { got = append(got, order...) }); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}

	if len(got) != 10 {
		t.Fatalf("ran %d tasks, expected 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("order[%d] = %d, expected %d", i, v, i)
		}
	}
}

func TestLoop_CallReturnsAfterTask(t *testing.T) {
	l := NewLoop()
	l.Start()
	defer l.Stop(context.Background())

	verdict := false
	if err := l.Call(func() { verdict = true }); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if !verdict {
		t.Error("Call() returned before the task ran")
	}
}

func TestLoop_PanicRecovered(t *testing.T) {
	var mu sync.Mutex
	var panicValue any

	l := NewLoop(WithLoopPanicHandler(func(event any, v any, stack []byte) {
		mu.Lock()
		panicValue = v
		mu.Unlock()
	}))
	l.Start()
	defer l.Stop(context.Background())

	if err := l.Call(func() { panic("boom") }); err != nil {
		t.Fatalf("Call() failed: %v", err)
	}

	ran := false
	if err := l.Call(func() { ran = true }); err != nil {
		t.Fatalf("Call() after panic failed: %v", err)
	}
	if !ran {
		t.Error("loop stopped running tasks after a panic")
	}

	mu.Lock()
	defer mu.Unlock()
	if panicValue != "boom" {
		t.Errorf("panic value = %v, expected boom", panicValue)
	}
	if stats := l.Stats(); stats.Panicked != 1 {
		t.Errorf("Stats().Panicked = %d, expected 1", stats.Panicked)
	}
}

func TestLoop_QueueFull(t *testing.T) {
	l := NewLoop(WithQueueSize(1))
	l.Start()

	blocker := make(chan struct{})
	started := make(chan struct{})
	if err := l.Post(func() {
		close(started)
		<-blocker
	}); err != nil {
		t.Fatalf("Post() failed: %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("loop did not start the first task")
	}

	if err := l.Post(func() {}); err != nil {
		t.Fatalf("Post() into free slot failed: %v", err)
	}
	if err := l.Post(func() {}); err != ErrQueueFull {
		t.Errorf("Post() = %v, expected ErrQueueFull", err)
	}

	close(blocker)
	l.Stop(context.Background())

	stats := l.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Stats().Dropped = %d, expected 1", stats.Dropped)
	}
	if stats.Processed != 2 {
		t.Errorf("Stats().Processed = %d, expected 2", stats.Processed)
	}
}

func TestLoop_SendWaitsForSpace(t *testing.T) {
	l := NewLoop(WithQueueSize(1))
	l.Start()

	blocker := make(chan struct{})
	started := make(chan struct{})
	l.Post(func() {
		close(started)
		<-blocker
	})
	<-started
	if err := l.Post(func() {}); err != nil {
		t.Fatalf("Post() into free slot failed: %v", err)
	}

	ran := make(chan struct{})
	sent := make(chan error, 1)
	go func() {
		sent <- l.Send(func() { close(ran) })
	}()

	select {
	case err := <-sent:
		t.Fatalf("Send() = %v on a full queue, expected it to wait", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(blocker)
	select {
	case err := <-sent:
		if err != nil {
			t.Fatalf("Send() failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send() still blocked after the queue drained")
	}
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("sent task did not run")
	}

	l.Stop(context.Background())
	if stats := l.Stats(); stats.Dropped != 0 {
		t.Errorf("Stats().Dropped = %d, expected 0", stats.Dropped)
	}
}

func TestLoop_StopDrainsQueue(t *testing.T) {
	l := NewLoop()
	l.Start()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 5; i++ {
		l.Post(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 5 {
		t.Errorf("ran %d tasks before stop, expected 5", count)
	}
}
