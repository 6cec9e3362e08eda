package detect

import (
	"time"

	"github.com/dshills/keymapper/internal/mapping"
)

type parPhase uint8

const (
	// parCollecting gathers key downs until every key is held.
	parCollecting parPhase = iota
	// parAllDown has every key held and the click type not yet classified.
	parAllDown
)

// parallelMatcher requires every trigger key to be held at the same time.
type parallelMatcher struct {
	km    *mapping.KeyMap
	env   *matchEnv
	click mapping.ClickType

	phase    parPhase
	down     []bool
	count    int
	lastDown time.Time

	// second is set while collecting or holding the second press of a
	// double press.
	second bool

	// press times the long press.
	press timerSlot
	// gap times the wait for the second press of a double press.
	gap timerSlot
}

func newParallelMatcher(km *mapping.KeyMap, env *matchEnv) *parallelMatcher {
	return &parallelMatcher{
		km:    km,
		env:   env,
		click: km.Trigger.ParallelClickType(),
		down:  make([]bool, len(km.Trigger.Keys)),
		press: env.slot(),
		gap:   env.slot(),
	}
}

func (m *parallelMatcher) keyMap() *mapping.KeyMap {
	return m.km
}

func (m *parallelMatcher) handles(keyCode int) bool {
	return m.km.Trigger.HasKeyCode(keyCode)
}

func (m *parallelMatcher) idle() bool {
	return m.phase == parCollecting && m.count == 0 && !m.second
}

func (m *parallelMatcher) reset() {
	m.press.stop()
	m.gap.stop()
	m.clearDown()
	m.phase = parCollecting
	m.second = false
	m.lastDown = time.Time{}
}

func (m *parallelMatcher) clearDown() {
	for i := range m.down {
		m.down[i] = false
	}
	m.count = 0
}

// indexOf returns the first trigger key accepting ev whose down state is
// want, or -1.
func (m *parallelMatcher) indexOf(ev KeyEvent, want bool) int {
	for i, key := range m.km.Trigger.Keys {
		if m.down[i] == want && key.Accepts(ev.KeyCode, ev.Descriptor, ev.IsExternal) {
			return i
		}
	}
	return -1
}

func (m *parallelMatcher) onKey(ev KeyEvent, now time.Time) step {
	if ev.Action == KeyDown {
		return m.onDown(ev, now)
	}
	return m.onUp(ev, now)
}

func (m *parallelMatcher) onDown(ev KeyEvent, now time.Time) step {
	i := -1
	if m.phase == parCollecting {
		i = m.indexOf(ev, false)
	}

	if i < 0 {
		// A foreign key, a key from the wrong device or an extra key while
		// everything is held. No partial credit.
		if m.idle() {
			return step{}
		}
		m.reset()
		return step{outcome: outcomeReset}
	}

	key := m.km.Trigger.Keys[i]
	m.down[i] = true
	m.count++
	m.lastDown = now

	if m.count == len(m.down) {
		m.phase = parAllDown
		m.gap.stop()
		if m.click == mapping.LongPress {
			if err := m.press.arm(m.env.cfg.LongPressDelay, m.onLongPress); err != nil {
				m.reset()
				return failed(err)
			}
		}
	}

	return claim(key)
}

func (m *parallelMatcher) onUp(ev KeyEvent, now time.Time) step {
	if m.indexOf(ev, true) < 0 {
		return step{}
	}

	if m.phase == parCollecting {
		// Released before every key was down.
		m.reset()
		return step{outcome: outcomeReset}
	}

	cfg := m.env.cfg
	hold := now.Sub(m.lastDown)

	switch m.click {
	case mapping.ShortPress:
		if hold < cfg.LongPressDelay {
			m.reset()
			return step{outcome: outcomeMatched, click: mapping.ShortPress}
		}

	case mapping.DoublePress:
		if hold <= cfg.DoublePressDelay {
			if m.second {
				m.reset()
				return step{outcome: outcomeMatched, click: mapping.DoublePress}
			}
			m.press.stop()
			m.clearDown()
			m.phase = parCollecting
			m.second = true
			if err := m.gap.arm(cfg.DoublePressDelay, m.onGapExpired); err != nil {
				m.reset()
				return failed(err)
			}
			return step{outcome: outcomeAdvanced}
		}
	}

	// Long press released early, or held too long.
	m.reset()
	return step{outcome: outcomeReset}
}

func (m *parallelMatcher) onLongPress() {
	if m.phase != parAllDown {
		return
	}
	m.reset()
	m.env.notify(m, step{outcome: outcomeMatched, click: mapping.LongPress})
}

func (m *parallelMatcher) onGapExpired() {
	if !m.second || m.phase != parCollecting {
		return
	}
	m.reset()
	m.env.notify(m, step{outcome: outcomeReset})
}
