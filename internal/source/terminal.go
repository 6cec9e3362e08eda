package source

import (
	"context"
	"fmt"
	"sync"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

// maxTerminalLines bounds the scrollback drawn on screen.
const maxTerminalLines = 200

// Terminal reads keys from a terminal through tcell. Its keys count as
// built-in device keys.
//
// Terminals only report key presses, so each key is delivered as a down
// immediately followed by an up: short and double presses work, long
// presses cannot be produced. The terminal has no volume keys; '+' and
// '-' stand in for VOLUME_UP and VOLUME_DOWN. Shift with an arrow key is
// reported as a fingerprint swipe, Ctrl-P toggles pause and Ctrl-C stops
// the source.
type Terminal struct {
	screen tcell.Screen
	log    *logging.Logger

	onGesture func(mapping.FingerprintGesture)
	onPause   func()

	mu     sync.Mutex
	lines  []string
	active bool
	fini   sync.Once
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithGestureHandler receives the swipes entered with Shift+arrow.
func WithGestureHandler(f func(mapping.FingerprintGesture)) TerminalOption {
	return func(t *Terminal) {
		t.onGesture = f
	}
}

// WithPauseToggle is called when Ctrl-P is pressed.
func WithPauseToggle(f func()) TerminalOption {
	return func(t *Terminal) {
		t.onPause = f
	}
}

// NewTerminal creates a terminal source on the controlling terminal.
func NewTerminal(log *logging.Logger, opts ...TerminalOption) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewTerminalWithScreen(screen, log, opts...), nil
}

// NewTerminalWithScreen creates a terminal source on screen, which must not
// be initialized yet.
func NewTerminalWithScreen(screen tcell.Screen, log *logging.Logger, opts ...TerminalOption) *Terminal {
	if log == nil {
		log = logging.Nop()
	}
	t := &Terminal{screen: screen, log: log}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns "terminal".
func (t *Terminal) Name() string {
	return "terminal"
}

// Run polls key events until ctx is cancelled or Ctrl-C is pressed, which
// returns ErrQuit.
func (t *Terminal) Run(ctx context.Context, sink Sink) error {
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	t.mu.Lock()
	t.active = true
	t.mu.Unlock()

	stop := context.AfterFunc(ctx, t.shutdown)
	defer stop()
	defer t.shutdown()

	t.Printf("keymapper: press keys to test triggers, Ctrl-C to quit")

	for {
		ev := t.screen.PollEvent()
		switch e := ev.(type) {
		case nil:
			// Screen finalized.
			return nil

		case *tcell.EventKey:
			if e.Key() == tcell.KeyCtrlC {
				return ErrQuit
			}
			if t.command(e) {
				continue
			}
			code, ok := terminalKeyCode(e)
			if !ok {
				t.Printf("unmapped key %s", e.Name())
				continue
			}
			t.press(sink, code)

		case *tcell.EventResize:
			t.redraw()
		}
	}
}

// ImitateKeyPress shows the key the system would have received.
func (t *Terminal) ImitateKeyPress(ev detect.KeyEvent) {
	t.Printf("imitated %s", mapping.KeyCodeName(ev.KeyCode))
}

// Printf adds a line to the terminal output.
func (t *Terminal) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)

	t.mu.Lock()
	t.lines = append(t.lines, line)
	if len(t.lines) > maxTerminalLines {
		t.lines = t.lines[len(t.lines)-maxTerminalLines:]
	}
	t.mu.Unlock()

	t.redraw()
}

// Lines returns the output shown so far.
func (t *Terminal) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

func (t *Terminal) press(sink Sink, code int) {
	down := detect.KeyEvent{KeyCode: code, Action: detect.KeyDown, DeviceName: "terminal"}
	up := down
	up.Action = detect.KeyUp

	consumed := sink.OnKeyEvent(down)
	sink.OnKeyEvent(up)

	if consumed {
		t.Printf("%s consumed", mapping.KeyCodeName(code))
	} else {
		t.Printf("%s", mapping.KeyCodeName(code))
	}
}

// command handles the keys that control the mapper rather than feed it.
func (t *Terminal) command(e *tcell.EventKey) bool {
	if e.Key() == tcell.KeyCtrlP && t.onPause != nil {
		t.onPause()
		return true
	}
	if e.Modifiers()&tcell.ModShift == 0 || t.onGesture == nil {
		return false
	}
	g, ok := terminalGestures[e.Key()]
	if !ok {
		return false
	}
	t.Printf("fingerprint %s", g)
	t.onGesture(g)
	return true
}

func (t *Terminal) shutdown() {
	t.fini.Do(func() {
		t.mu.Lock()
		t.active = false
		t.mu.Unlock()
		t.screen.Fini()
	})
}

// redraw shows the newest lines that fit the screen.
func (t *Terminal) redraw() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	width, height := t.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}
	t.screen.Clear()

	lines := t.lines
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for y, line := range lines {
		x := 0
		for _, r := range line {
			if x >= width {
				break
			}
			t.screen.SetContent(x, y, r, nil, tcell.StyleDefault)
			x++
		}
	}
	t.screen.Show()
}

var terminalKeys = map[tcell.Key]int{
	tcell.KeyEnter:      mapping.KeyCodeEnter,
	tcell.KeyEscape:     mapping.KeyCodeEscape,
	tcell.KeyTab:        61,  // TAB
	tcell.KeyBackspace:  67,  // DEL
	tcell.KeyBackspace2: 67,  // DEL
	tcell.KeyDelete:     112, // FORWARD_DEL
	tcell.KeyInsert:     124, // INSERT
	tcell.KeyHome:       122, // MOVE_HOME
	tcell.KeyEnd:        123, // MOVE_END
	tcell.KeyPgUp:       92,  // PAGE_UP
	tcell.KeyPgDn:       93,  // PAGE_DOWN
	tcell.KeyUp:         mapping.KeyCodeDpadUp,
	tcell.KeyDown:       mapping.KeyCodeDpadDown,
	tcell.KeyLeft:       mapping.KeyCodeDpadLeft,
	tcell.KeyRight:      mapping.KeyCodeDpadRight,
	tcell.KeyF1:         131,
	tcell.KeyF2:         132,
	tcell.KeyF3:         133,
	tcell.KeyF4:         134,
	tcell.KeyF5:         135,
	tcell.KeyF6:         136,
	tcell.KeyF7:         137,
	tcell.KeyF8:         138,
	tcell.KeyF9:         139,
	tcell.KeyF10:        140,
	tcell.KeyF11:        141,
	tcell.KeyF12:        142,
}

var terminalGestures = map[tcell.Key]mapping.FingerprintGesture{
	tcell.KeyDown:  mapping.SwipeDown,
	tcell.KeyUp:    mapping.SwipeUp,
	tcell.KeyLeft:  mapping.SwipeLeft,
	tcell.KeyRight: mapping.SwipeRight,
}

var terminalRunes = map[rune]int{
	' ':  mapping.KeyCodeSpace,
	'+':  mapping.KeyCodeVolumeUp,
	'-':  mapping.KeyCodeVolumeDown,
	',':  55, // COMMA
	'.':  56, // PERIOD
	'/':  76, // SLASH
	';':  74, // SEMICOLON
	'\'': 75, // APOSTROPHE
	'`':  68, // GRAVE
	'=':  70, // EQUALS
	'[':  71, // LEFT_BRACKET
	']':  72, // RIGHT_BRACKET
	'\\': 73, // BACKSLASH
	'@':  77, // AT
	'*':  17, // STAR
	'#':  18, // POUND
}

// terminalKeyCode maps a tcell key to an Android key code.
func terminalKeyCode(ev *tcell.EventKey) (int, bool) {
	if ev.Key() != tcell.KeyRune {
		code, ok := terminalKeys[ev.Key()]
		return code, ok
	}

	r := unicode.ToUpper(ev.Rune())
	switch {
	case r >= 'A' && r <= 'Z':
		return mapping.KeyCodeA + int(r-'A'), true
	case r >= '0' && r <= '9':
		return 7 + int(r-'0'), true
	}
	code, ok := terminalRunes[r]
	return code, ok
}

var (
	_ Source             = (*Terminal)(nil)
	_ detect.KeyImitator = (*Terminal)(nil)
)
