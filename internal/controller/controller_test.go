package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/keymapper/internal/clock"
	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/event/dispatch"
	"github.com/dshills/keymapper/internal/mapping"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type recordingPerformer struct {
	mu      sync.Mutex
	actions []mapping.Action
}

func (p *recordingPerformer) Perform(_ context.Context, a mapping.Action) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, a)
	return nil
}

func (p *recordingPerformer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.actions)
}

type recordingListener struct {
	mu        sync.Mutex
	keys      []RecordedKey
	countdown []int
	stopped   int
}

func (l *recordingListener) OnRecordedKey(k RecordedKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, k)
}

func (l *recordingListener) OnRecordCountdown(timeLeft int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.countdown = append(l.countdown, timeLeft)
}

func (l *recordingListener) OnRecordingStopped() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped++
}

type screenChecker struct{ on bool }

func (s screenChecker) Allowed(cs mapping.ConstraintState) bool {
	return len(cs.Constraints) == 0 || s.on
}

type fixture struct {
	t         *testing.T
	clock     *clock.Fake
	ctl       *Controller
	performer *recordingPerformer
	listener  *recordingListener
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		clock:     clock.NewFake(epoch),
		performer: &recordingPerformer{},
		listener:  &recordingListener{},
	}
	opts = append([]Option{WithClock(f.clock), WithListener(f.listener)}, opts...)
	f.ctl = New(DefaultConfig(), f.performer, opts...)
	if err := f.ctl.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.ctl.Stop(ctx)
	})
	return f
}

// advance moves the clock and waits for the posted timer callbacks and the
// actions they caused to run.
func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.flush()
}

func (f *fixture) flush() {
	if err := f.ctl.loop.Call(func() {}); err != nil {
		f.t.Fatalf("loop flush: %v", err)
	}
	if err := f.ctl.actions.Call(func() {}); err != nil {
		f.t.Fatalf("action loop flush: %v", err)
	}
}

func (f *fixture) key(code int, action detect.KeyAction) bool {
	return f.ctl.OnKeyEvent(detect.KeyEvent{KeyCode: code, Action: action})
}

func (f *fixture) tap(code int) {
	f.key(code, detect.KeyDown)
	f.advance(50 * time.Millisecond)
	f.key(code, detect.KeyUp)
	f.flush()
}

func (f *fixture) load(s mapping.Snapshot) {
	f.t.Helper()
	if err := f.ctl.OnConfigurationChanged(s); err != nil {
		f.t.Fatalf("OnConfigurationChanged() error = %v", err)
	}
}

var (
	flashlight = mapping.Action{Type: "test", Data: "flashlight"}
	intKey     = func(code int) mapping.TriggerKey {
		return mapping.NewTriggerKey(code).WithDevice(mapping.InternalDevice())
	}
)

func TestController_DetectsThroughLoop(t *testing.T) {
	f := newFixture(t)
	f.load(mapping.Snapshot{KeyMaps: []mapping.KeyMap{
		mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeA), intKey(mapping.KeyCodeB)), flashlight),
		mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeVolumeUp).WithClickType(mapping.LongPress)), flashlight),
	}})

	f.tap(mapping.KeyCodeA)
	f.tap(mapping.KeyCodeB)
	if got := f.performer.count(); got != 1 {
		t.Fatalf("performed %d actions, expected 1", got)
	}

	if !f.key(mapping.KeyCodeVolumeUp, detect.KeyDown) {
		t.Error("long press key down not consumed")
	}
	f.advance(500 * time.Millisecond)
	if got := f.performer.count(); got != 2 {
		t.Errorf("performed %d actions after long press, expected 2", got)
	}
	f.key(mapping.KeyCodeVolumeUp, detect.KeyUp)

	if f.ctl.Metrics().Snapshot().Firings != 2 {
		t.Errorf("Firings = %d, expected 2", f.ctl.Metrics().Snapshot().Firings)
	}
	if got := f.ctl.ActionStats().Processed; got < 2 {
		t.Errorf("action loop processed %d tasks, expected the firings to run there", got)
	}
}

func TestController_NotStartedPassesThrough(t *testing.T) {
	ctl := New(DefaultConfig(), &recordingPerformer{})
	if ctl.OnKeyEvent(detect.KeyEvent{KeyCode: mapping.KeyCodeA}) {
		t.Error("OnKeyEvent() = true on a stopped controller")
	}
	if err := ctl.OnConfigurationChanged(mapping.Snapshot{}); err == nil {
		t.Error("OnConfigurationChanged() succeeded on a stopped controller")
	}
}

func TestController_InvalidConfiguration(t *testing.T) {
	f := newFixture(t)
	err := f.ctl.OnConfigurationChanged(mapping.Snapshot{KeyMaps: []mapping.KeyMap{
		mapping.NewKeyMap(mapping.Sequence(), flashlight),
	}})
	if !errors.Is(err, mapping.ErrInvalidConfiguration) {
		t.Errorf("error = %v, expected ErrInvalidConfiguration", err)
	}
}

func TestController_RecordingCountdown(t *testing.T) {
	f := newFixture(t)
	f.load(mapping.Snapshot{KeyMaps: []mapping.KeyMap{
		mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeA)), flashlight),
	}})

	if err := f.ctl.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if err := f.ctl.StartRecording(); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second StartRecording() error = %v, expected ErrAlreadyRecording", err)
	}
	if !f.ctl.IsRecording() {
		t.Fatal("IsRecording() = false")
	}

	if !f.ctl.OnKeyEvent(detect.KeyEvent{KeyCode: mapping.KeyCodeA, Action: detect.KeyDown, DeviceName: "kbd"}) {
		t.Error("key down not consumed while recording")
	}
	if !f.key(mapping.KeyCodeA, detect.KeyUp) {
		t.Error("key up not consumed while recording")
	}
	if f.performer.count() != 0 {
		t.Error("trigger fired while recording")
	}

	for i := 0; i < 4; i++ {
		f.advance(time.Second)
	}
	if f.listener.stopped != 0 {
		t.Fatal("recording stopped before the countdown ended")
	}
	f.advance(time.Second)

	expected := []int{5, 4, 3, 2, 1}
	if len(f.listener.countdown) != len(expected) {
		t.Fatalf("countdown = %v, expected %v", f.listener.countdown, expected)
	}
	for i := range expected {
		if f.listener.countdown[i] != expected[i] {
			t.Errorf("countdown[%d] = %d, expected %d", i, f.listener.countdown[i], expected[i])
		}
	}
	if f.listener.stopped != 1 {
		t.Errorf("stopped %d times, expected 1", f.listener.stopped)
	}
	if len(f.listener.keys) != 1 || f.listener.keys[0].KeyCode != mapping.KeyCodeA || f.listener.keys[0].DeviceName != "kbd" {
		t.Errorf("recorded %+v", f.listener.keys)
	}

	f.tap(mapping.KeyCodeA)
	if f.performer.count() != 1 {
		t.Error("detection did not resume after recording")
	}
}

func TestController_StopRecording(t *testing.T) {
	f := newFixture(t)

	if keys := f.ctl.StopRecording(); keys != nil {
		t.Errorf("StopRecording() = %v while idle, expected nil", keys)
	}

	_ = f.ctl.StartRecording()
	f.key(mapping.KeyCodeVolumeDown, detect.KeyDown)
	f.key(mapping.KeyCodeVolumeDown, detect.KeyUp)
	f.key(mapping.KeyCodeVolumeUp, detect.KeyDown)

	keys := f.ctl.StopRecording()
	if len(keys) != 2 || keys[0].KeyCode != mapping.KeyCodeVolumeDown || keys[1].KeyCode != mapping.KeyCodeVolumeUp {
		t.Errorf("StopRecording() = %+v", keys)
	}
	if f.listener.stopped != 1 {
		t.Errorf("stopped %d times, expected 1", f.listener.stopped)
	}

	// The stale countdown timer must not report anything.
	f.advance(10 * time.Second)
	if len(f.listener.countdown) != 1 || f.listener.stopped != 1 {
		t.Errorf("countdown = %v, stopped = %d after stop", f.listener.countdown, f.listener.stopped)
	}
}

func TestController_RecordingDiscardsPartialMatch(t *testing.T) {
	f := newFixture(t)
	f.load(mapping.Snapshot{KeyMaps: []mapping.KeyMap{
		mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeA), intKey(mapping.KeyCodeB)), flashlight),
	}})

	f.tap(mapping.KeyCodeA)
	_ = f.ctl.StartRecording()
	f.ctl.StopRecording()
	f.tap(mapping.KeyCodeB)
	if f.performer.count() != 0 {
		t.Error("partial match survived recording")
	}
}

func TestController_Pause(t *testing.T) {
	f := newFixture(t)
	f.load(mapping.Snapshot{KeyMaps: []mapping.KeyMap{
		mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeA), intKey(mapping.KeyCodeB)), flashlight),
	}})

	f.tap(mapping.KeyCodeA)
	if err := f.ctl.SetPaused(true); err != nil {
		t.Fatalf("SetPaused() error = %v", err)
	}
	if !f.ctl.IsPaused() {
		t.Error("IsPaused() = false")
	}
	if f.key(mapping.KeyCodeA, detect.KeyDown) {
		t.Error("key consumed while paused")
	}
	f.key(mapping.KeyCodeA, detect.KeyUp)

	_ = f.ctl.SetPaused(false)
	f.tap(mapping.KeyCodeB)
	if f.performer.count() != 0 {
		t.Error("partial match survived pausing")
	}

	f.tap(mapping.KeyCodeA)
	f.tap(mapping.KeyCodeB)
	if f.performer.count() != 1 {
		t.Error("trigger did not fire after resuming")
	}
}

func TestController_FingerprintGestures(t *testing.T) {
	f := newFixture(t, WithConstraintChecker(screenChecker{on: false}))
	f.load(mapping.Snapshot{FingerprintMaps: []mapping.FingerprintMap{
		{Gesture: mapping.SwipeDown, Actions: []mapping.Action{flashlight}, Enabled: true},
		{Gesture: mapping.SwipeUp, Actions: []mapping.Action{flashlight}},
		{
			Gesture: mapping.SwipeLeft, Actions: []mapping.Action{flashlight}, Enabled: true,
			Constraints: mapping.ConstraintState{Constraints: []mapping.Constraint{{Kind: mapping.ScreenOn}}},
		},
	}})

	if !f.ctl.WantsFingerprintGestures() {
		t.Error("WantsFingerprintGestures() = false with an enabled map")
	}

	tests := []struct {
		gesture mapping.FingerprintGesture
		wantErr error
	}{
		{mapping.SwipeDown, nil},
		{mapping.SwipeUp, ErrNoFingerprintMap},
		{mapping.SwipeRight, ErrNoFingerprintMap},
		{mapping.SwipeLeft, ErrConstraintsNotMet},
	}
	for _, tt := range tests {
		t.Run(tt.gesture.String(), func(t *testing.T) {
			err := f.ctl.OnFingerprintGesture(tt.gesture)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("OnFingerprintGesture() error = %v, expected %v", err, tt.wantErr)
			}
		})
	}
	if f.performer.count() != 1 {
		t.Errorf("performed %d actions, expected 1", f.performer.count())
	}

	_ = f.ctl.SetPaused(true)
	if f.ctl.WantsFingerprintGestures() {
		t.Error("WantsFingerprintGestures() = true while paused")
	}
	if err := f.ctl.OnFingerprintGesture(mapping.SwipeDown); !errors.Is(err, ErrPaused) {
		t.Errorf("OnFingerprintGesture() error = %v while paused, expected ErrPaused", err)
	}
}

func TestController_TriggerKeyMapFromIntent(t *testing.T) {
	f := newFixture(t, WithConstraintChecker(screenChecker{on: false}))

	allowed := mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeA)), flashlight).WithTriggerFromOtherApps(true)
	denied := mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeB)), flashlight)
	blocked := mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeC)), flashlight).
		WithTriggerFromOtherApps(true).
		WithConstraints(mapping.ConstraintAnd, mapping.Constraint{Kind: mapping.ScreenOn})
	f.load(mapping.Snapshot{KeyMaps: []mapping.KeyMap{allowed, denied, blocked}})

	tests := []struct {
		name    string
		uid     string
		wantErr error
	}{
		{"allowed", allowed.UID, nil},
		{"not allowed", denied.UID, ErrNotTriggerable},
		{"constraints", blocked.UID, ErrConstraintsNotMet},
		{"unknown", "missing", ErrKeyMapNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ctl.TriggerKeyMapFromIntent(tt.uid)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("TriggerKeyMapFromIntent() error = %v, expected %v", err, tt.wantErr)
			}
		})
	}
	if f.performer.count() != 1 {
		t.Errorf("performed %d actions, expected 1", f.performer.count())
	}

	_ = f.ctl.SetPaused(true)
	if err := f.ctl.TriggerKeyMapFromIntent(allowed.UID); !errors.Is(err, ErrPaused) {
		t.Errorf("error = %v while paused, expected ErrPaused", err)
	}
}

type blockingPerformer struct {
	errs chan error
}

func (p blockingPerformer) Perform(ctx context.Context, _ mapping.Action) error {
	<-ctx.Done()
	p.errs <- ctx.Err()
	return ctx.Err()
}

func TestController_ActionTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ActionTimeout = 20 * time.Millisecond
	p := blockingPerformer{errs: make(chan error, 1)}
	ctl := New(cfg, p)
	if err := ctl.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer ctl.Stop(context.Background())

	km := mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeA)), flashlight)
	km.TriggerFromOtherApps = true
	if err := ctl.OnConfigurationChanged(mapping.Snapshot{KeyMaps: []mapping.KeyMap{km}}); err != nil {
		t.Fatalf("OnConfigurationChanged() error = %v", err)
	}

	if err := ctl.TriggerKeyMapFromIntent(km.UID); err != nil {
		t.Fatalf("TriggerKeyMapFromIntent() error = %v", err)
	}
	select {
	case err := <-p.errs:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("action context error = %v, expected DeadlineExceeded", err)
		}
	default:
		t.Fatal("action did not run")
	}
	if got := ctl.Metrics().Snapshot().ActionFailures; got != 1 {
		t.Errorf("ActionFailures = %d, expected 1", got)
	}
}

func TestController_KeyHeldAcrossPause(t *testing.T) {
	f := newFixture(t)
	f.load(mapping.Snapshot{KeyMaps: []mapping.KeyMap{
		mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeA)), flashlight),
	}})

	if !f.key(mapping.KeyCodeA, detect.KeyDown) {
		t.Fatal("trigger key down not consumed")
	}
	_ = f.ctl.SetPaused(true)
	if !f.key(mapping.KeyCodeA, detect.KeyUp) {
		t.Error("release while paused did not keep the verdict of its press")
	}
	_ = f.ctl.SetPaused(false)

	f.tap(mapping.KeyCodeA)
	if got := f.performer.count(); got != 1 {
		t.Fatalf("performed %d actions after resuming, expected 1", got)
	}

	_ = f.ctl.SetPaused(true)
	if f.key(mapping.KeyCodeA, detect.KeyDown) {
		t.Error("key consumed while paused")
	}
	_ = f.ctl.SetPaused(false)
	if f.key(mapping.KeyCodeA, detect.KeyUp) {
		t.Error("release of a press made while paused was consumed")
	}

	f.tap(mapping.KeyCodeA)
	if got := f.performer.count(); got != 2 {
		t.Errorf("performed %d actions, expected 2", got)
	}
}

func TestController_KeyHeldAcrossRecording(t *testing.T) {
	f := newFixture(t)
	f.load(mapping.Snapshot{KeyMaps: []mapping.KeyMap{
		mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeA)), flashlight),
	}})

	if !f.key(mapping.KeyCodeA, detect.KeyDown) {
		t.Fatal("trigger key down not consumed")
	}
	if f.key(mapping.KeyCodeC, detect.KeyDown) {
		t.Fatal("foreign key down consumed")
	}
	if err := f.ctl.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if !f.key(mapping.KeyCodeA, detect.KeyUp) {
		t.Error("release of a consumed press passed through while recording")
	}
	if f.key(mapping.KeyCodeC, detect.KeyUp) {
		t.Error("release of a passed press consumed while recording")
	}

	if !f.key(mapping.KeyCodeB, detect.KeyDown) {
		t.Error("key down not consumed while recording")
	}
	if !f.ctl.OnKeyEvent(detect.KeyEvent{KeyCode: mapping.KeyCodeB, Action: detect.KeyDown, Repeat: true}) {
		t.Error("repeated key down not consumed while recording")
	}
	keys := f.ctl.StopRecording()
	if len(keys) != 1 || keys[0].KeyCode != mapping.KeyCodeB {
		t.Errorf("StopRecording() = %+v, expected only B", keys)
	}
	if !f.key(mapping.KeyCodeB, detect.KeyUp) {
		t.Error("release of a recorded press passed through")
	}

	f.tap(mapping.KeyCodeA)
	if got := f.performer.count(); got != 1 {
		t.Errorf("performed %d actions after recording, expected 1", got)
	}
}

func TestController_SetPaused(t *testing.T) {
	ctl := New(DefaultConfig(), &recordingPerformer{})
	if err := ctl.SetPaused(true); err == nil {
		t.Error("SetPaused() succeeded on a stopped controller")
	}
	if ctl.IsPaused() {
		t.Error("IsPaused() = true after a failed SetPaused()")
	}

	f := newFixture(t)
	for _, paused := range []bool{true, true, false, false} {
		if err := f.ctl.SetPaused(paused); err != nil {
			t.Fatalf("SetPaused(%t) error = %v", paused, err)
		}
		if f.ctl.IsPaused() != paused {
			t.Errorf("IsPaused() = %t, expected %t", f.ctl.IsPaused(), paused)
		}
	}
}

type gatedPerformer struct {
	started chan struct{}
	release chan struct{}
}

func (p gatedPerformer) Perform(context.Context, mapping.Action) error {
	p.started <- struct{}{}
	<-p.release
	return nil
}

func TestController_ActionsDoNotDelayKeyEvents(t *testing.T) {
	p := gatedPerformer{started: make(chan struct{}, 4), release: make(chan struct{})}
	ctl := New(DefaultConfig(), p, WithClock(clock.NewFake(epoch)))
	if err := ctl.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = ctl.Stop(context.Background()) })
	t.Cleanup(func() { close(p.release) })

	km := mapping.NewKeyMap(mapping.Sequence(intKey(mapping.KeyCodeA)), flashlight, flashlight)
	if err := ctl.OnConfigurationChanged(mapping.Snapshot{KeyMaps: []mapping.KeyMap{km}}); err != nil {
		t.Fatalf("OnConfigurationChanged() error = %v", err)
	}

	press := func(code int) {
		for _, action := range []detect.KeyAction{detect.KeyDown, detect.KeyUp} {
			done := make(chan bool, 1)
			go func() { done <- ctl.OnKeyEvent(detect.KeyEvent{KeyCode: code, Action: action}) }()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatalf("OnKeyEvent(%d %s) blocked behind a running action", code, action)
			}
		}
	}

	press(mapping.KeyCodeA)
	select {
	case <-p.started:
	case <-time.After(time.Second):
		t.Fatal("action did not start")
	}

	press(mapping.KeyCodeB)
	press(mapping.KeyCodeA)
	if got := ctl.Metrics().Snapshot().Firings; got != 2 {
		t.Errorf("Firings = %d while an action was running, expected 2", got)
	}
}

func TestController_DroppedTimerCounted(t *testing.T) {
	f := newFixture(t)

	f.ctl.onTimerDropped(dispatch.ErrQueueFull)
	f.ctl.onTimerDropped(dispatch.ErrNotRunning)
	if got := f.ctl.Metrics().Snapshot().TimerFailures; got != 1 {
		t.Errorf("TimerFailures = %d, expected 1", got)
	}
}
