package source

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/mapping"
)

func TestTerminalKeyCode(t *testing.T) {
	tests := []struct {
		name     string
		key      tcell.Key
		r        rune
		expected int
		ok       bool
	}{
		{"lower letter", tcell.KeyRune, 'a', mapping.KeyCodeA, true},
		{"upper letter", tcell.KeyRune, 'C', mapping.KeyCodeC, true},
		{"digit", tcell.KeyRune, '5', 12, true},
		{"space", tcell.KeyRune, ' ', mapping.KeyCodeSpace, true},
		{"plus is volume up", tcell.KeyRune, '+', mapping.KeyCodeVolumeUp, true},
		{"minus is volume down", tcell.KeyRune, '-', mapping.KeyCodeVolumeDown, true},
		{"enter", tcell.KeyEnter, 0, mapping.KeyCodeEnter, true},
		{"arrow", tcell.KeyUp, 0, mapping.KeyCodeDpadUp, true},
		{"f5", tcell.KeyF5, 0, 135, true},
		{"unmapped rune", tcell.KeyRune, 'é', 0, false},
		{"unmapped key", tcell.KeyCtrlA, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := terminalKeyCode(tcell.NewEventKey(tt.key, tt.r, tcell.ModNone))
			if got != tt.expected || ok != tt.ok {
				t.Errorf("terminalKeyCode() = %d, %v, expected %d, %v", got, ok, tt.expected, tt.ok)
			}
		})
	}
}

type consumingSink struct {
	mu      sync.Mutex
	events  []detect.KeyEvent
	consume int
}

func (s *consumingSink) OnKeyEvent(ev detect.KeyEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return ev.KeyCode == s.consume
}

func (s *consumingSink) snapshot() []detect.KeyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]detect.KeyEvent(nil), s.events...)
}

func TestTerminal_Run(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	term := NewTerminalWithScreen(screen, nil)
	sink := &consumingSink{consume: mapping.KeyCodeVolumeDown}

	done := make(chan error, 1)
	go func() { done <- term.Run(context.Background(), sink) }()

	// Wait for Init before posting.
	deadline := time.Now().Add(2 * time.Second)
	for len(term.Lines()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_ = screen.PostEvent(tcell.NewEventKey(tcell.KeyRune, '-', tcell.ModNone))
	_ = screen.PostEvent(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	_ = screen.PostEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl))

	select {
	case err := <-done:
		if !errors.Is(err, ErrQuit) {
			t.Fatalf("Run() error = %v, expected ErrQuit", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop on Ctrl-C")
	}

	events := sink.snapshot()
	if len(events) != 4 {
		t.Fatalf("received %d events, expected 4: %v", len(events), events)
	}
	expected := []struct {
		code   int
		action detect.KeyAction
	}{
		{mapping.KeyCodeVolumeDown, detect.KeyDown},
		{mapping.KeyCodeVolumeDown, detect.KeyUp},
		{mapping.KeyCodeA + 23, detect.KeyDown},
		{mapping.KeyCodeA + 23, detect.KeyUp},
	}
	for i, e := range expected {
		if events[i].KeyCode != e.code || events[i].Action != e.action {
			t.Errorf("events[%d] = %s, expected %s %s", i, events[i], mapping.KeyCodeName(e.code), e.action)
		}
		if events[i].IsExternal {
			t.Errorf("events[%d] should come from a built-in device", i)
		}
	}

	lines := strings.Join(term.Lines(), "\n")
	if !strings.Contains(lines, "VOLUME_DOWN consumed") {
		t.Errorf("output %q should report the consumed key", lines)
	}
}

func TestTerminal_StopsOnCancel(t *testing.T) {
	term := NewTerminalWithScreen(tcell.NewSimulationScreen("UTF-8"), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- term.Run(ctx, SinkFunc(func(detect.KeyEvent) bool { return false })) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop on cancel")
	}
}

func TestTerminal_ImitateKeyPress(t *testing.T) {
	term := NewTerminalWithScreen(tcell.NewSimulationScreen("UTF-8"), nil)
	term.ImitateKeyPress(detect.KeyEvent{KeyCode: mapping.KeyCodeVolumeUp})

	lines := term.Lines()
	if len(lines) != 1 || lines[0] != "imitated VOLUME_UP" {
		t.Errorf("Lines() = %v, expected [imitated VOLUME_UP]", lines)
	}
}

func TestTerminal_Commands(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")

	var mu sync.Mutex
	var gestures []mapping.FingerprintGesture
	pauses := 0
	term := NewTerminalWithScreen(screen, nil,
		WithGestureHandler(func(g mapping.FingerprintGesture) {
			mu.Lock()
			gestures = append(gestures, g)
			mu.Unlock()
		}),
		WithPauseToggle(func() {
			mu.Lock()
			pauses++
			mu.Unlock()
		}),
	)
	sink := &consumingSink{}

	done := make(chan error, 1)
	go func() { done <- term.Run(context.Background(), sink) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(term.Lines()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	_ = screen.PostEvent(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModShift))
	_ = screen.PostEvent(tcell.NewEventKey(tcell.KeyCtrlP, 0, tcell.ModCtrl))
	_ = screen.PostEvent(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))
	_ = screen.PostEvent(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl))
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(gestures) != 1 || gestures[0] != mapping.SwipeLeft {
		t.Errorf("gestures = %v, expected [swipe_left]", gestures)
	}
	if pauses != 1 {
		t.Errorf("pause toggled %d times, expected 1", pauses)
	}
	// Only the plain arrow reaches the sink.
	if events := sink.snapshot(); len(events) != 2 || events[0].KeyCode != mapping.KeyCodeDpadLeft {
		t.Errorf("sink events = %v, expected DPAD_LEFT down and up", events)
	}
}
