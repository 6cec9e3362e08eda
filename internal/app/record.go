package app

import (
	"context"
	"sync"

	"github.com/dshills/keymapper/internal/controller"
	"github.com/dshills/keymapper/internal/mapping"
)

// RecordListener receives recording progress. Callbacks run on the
// controller loop and must not block.
type RecordListener = controller.Listener

// recordSession collects the keys of one recording.
type recordSession struct {
	forward RecordListener

	mu      sync.Mutex
	keys    []controller.RecordedKey
	stopped chan struct{}
	once    sync.Once
}

func (s *recordSession) OnRecordedKey(key controller.RecordedKey) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	if s.forward != nil {
		s.forward.OnRecordedKey(key)
	}
}

func (s *recordSession) OnRecordCountdown(timeLeft int) {
	if s.forward != nil {
		s.forward.OnRecordCountdown(timeLeft)
	}
}

func (s *recordSession) OnRecordingStopped() {
	s.once.Do(func() { close(s.stopped) })
	if s.forward != nil {
		s.forward.OnRecordingStopped()
	}
}

func (s *recordSession) recorded() []controller.RecordedKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]controller.RecordedKey(nil), s.keys...)
}

// Record records a trigger: every key pressed until the countdown runs out
// or ctx is cancelled. Input must be running, see Run.
func (app *Application) Record(ctx context.Context, listener RecordListener) (mapping.Trigger, error) {
	if !app.IsRunning() {
		return mapping.Trigger{}, ErrNotRunning
	}

	session := &recordSession{forward: listener, stopped: make(chan struct{})}
	app.listener.set(session)
	defer app.listener.set(nil)

	if err := app.ctl.StartRecording(); err != nil {
		return mapping.Trigger{}, &OperationError{Op: "record", Err: err}
	}

	select {
	case <-session.stopped:
	case <-ctx.Done():
		app.ctl.StopRecording()
		if len(session.recorded()) == 0 {
			return mapping.Trigger{}, ErrRecordingCancelled
		}
	}

	return RecordedTrigger(session.recorded()), nil
}

// RecordedTrigger builds a sequence of short presses from recorded keys.
// External keys are bound to the device they were pressed on, built-in
// keys to the built-in devices.
func RecordedTrigger(keys []controller.RecordedKey) mapping.Trigger {
	tks := make([]mapping.TriggerKey, 0, len(keys))
	for _, k := range keys {
		device := mapping.InternalDevice()
		if k.IsExternal {
			device = mapping.ExternalDevice(k.Descriptor)
		}
		tks = append(tks, mapping.NewTriggerKey(k.KeyCode).WithDevice(device))
	}
	return mapping.Sequence(tks...)
}
