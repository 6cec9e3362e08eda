package clock

import (
	"errors"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresInDeadlineOrder(t *testing.T) {
	c := NewFake(epoch)

	var order []int
	var seen []time.Duration
	record := func(id int) func() {
		return func() {
			order = append(order, id)
			seen = append(seen, c.Now().Sub(epoch))
		}
	}

	_, _ = c.AfterFunc(300*time.Millisecond, record(3))
	_, _ = c.AfterFunc(100*time.Millisecond, record(1))
	_, _ = c.AfterFunc(200*time.Millisecond, record(2))

	c.Advance(250 * time.Millisecond)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("fired %v, expected [1 2]", order)
	}
	if seen[0] != 100*time.Millisecond || seen[1] != 200*time.Millisecond {
		t.Errorf("Now() inside callbacks = %v, expected deadlines", seen)
	}
	if got := c.Now().Sub(epoch); got != 250*time.Millisecond {
		t.Errorf("Now() after Advance = %v, expected 250ms", got)
	}
	if c.Pending() != 1 {
		t.Errorf("Pending() = %d, expected 1", c.Pending())
	}
}

func TestFake_Stop(t *testing.T) {
	c := NewFake(epoch)

	fired := false
	timer, err := c.AfterFunc(time.Second, func() { fired = true })
	if err != nil {
		t.Fatalf("AfterFunc() error = %v", err)
	}

	if !timer.Stop() {
		t.Error("Stop() = false, expected true for armed timer")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, expected false")
	}

	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFake_NestedScheduling(t *testing.T) {
	c := NewFake(epoch)

	count := 0
	var tick func()
	tick = func() {
		count++
		_, _ = c.AfterFunc(time.Second, tick)
	}
	_, _ = c.AfterFunc(time.Second, tick)

	c.Advance(5 * time.Second)
	if count != 5 {
		t.Errorf("tick count = %d, expected 5", count)
	}
}

func TestFake_Failing(t *testing.T) {
	c := NewFake(epoch)
	c.SetFailing(true)

	if _, err := c.AfterFunc(time.Second, func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("AfterFunc() error = %v, expected ErrStopped", err)
	}
}

type recordingPoster struct {
	tasks []func()
}

func (p *recordingPoster) Post(task func()) error {
	p.tasks = append(p.tasks, task)
	return nil
}

func TestOnLoop_PostsCallbacks(t *testing.T) {
	base := NewFake(epoch)
	poster := &recordingPoster{}
	c := OnLoop(base, poster, nil)

	ran := false
	if _, err := c.AfterFunc(time.Second, func() { ran = true }); err != nil {
		t.Fatalf("AfterFunc() error = %v", err)
	}

	base.Advance(time.Second)
	if ran {
		t.Fatal("callback ran on timer path, expected it to be posted")
	}
	if len(poster.tasks) != 1 {
		t.Fatalf("posted %d tasks, expected 1", len(poster.tasks))
	}

	poster.tasks[0]()
	if !ran {
		t.Error("posted task did not run callback")
	}
}

func TestOnLoop_ReportsDroppedCallbacks(t *testing.T) {
	base := NewFake(epoch)
	errFull := errors.New("queue full")
	poster := PosterFunc(func(func()) error { return errFull })

	var dropped []error
	c := OnLoop(base, poster, func(err error) {
		dropped = append(dropped, err)
	})

	ran := false
	for i := 0; i < 2; i++ {
		if _, err := c.AfterFunc(time.Second, func() { ran = true }); err != nil {
			t.Fatalf("AfterFunc() error = %v", err)
		}
	}
	base.Advance(time.Second)

	if ran {
		t.Error("dropped callback ran")
	}
	if len(dropped) != 2 || !errors.Is(dropped[0], errFull) {
		t.Errorf("dropped = %v, expected two %v", dropped, errFull)
	}
}

func TestOnLoop_NilDropHandler(t *testing.T) {
	base := NewFake(epoch)
	c := OnLoop(base, PosterFunc(func(func()) error { return errors.New("closed") }), nil)

	if _, err := c.AfterFunc(time.Second, func() {}); err != nil {
		t.Fatalf("AfterFunc() error = %v", err)
	}
	base.Advance(time.Second)
}
