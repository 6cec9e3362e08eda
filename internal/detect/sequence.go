package detect

import (
	"time"

	"github.com/dshills/keymapper/internal/mapping"
)

type seqPhase uint8

const (
	// seqWaiting waits for keys[next] to go down.
	seqWaiting seqPhase = iota
	// seqPressed has keys[next] down with its click type not yet classified.
	seqPressed
	// seqLongHeld has a long press reached on a key that is not the last;
	// the sequence advances on release.
	seqLongHeld
	// seqDoubleGap waits for the second press of a double press.
	seqDoubleGap
	// seqDoublePressed has the second press of a double press down.
	seqDoublePressed
)

// sequenceMatcher accepts the trigger keys one at a time in order.
type sequenceMatcher struct {
	km  *mapping.KeyMap
	env *matchEnv

	next   int
	phase  seqPhase
	downAt time.Time

	// press times the long press and the double press gap.
	press timerSlot
	// gap times the wait for the next key.
	gap timerSlot
}

func newSequenceMatcher(km *mapping.KeyMap, env *matchEnv) *sequenceMatcher {
	return &sequenceMatcher{
		km:    km,
		env:   env,
		press: env.slot(),
		gap:   env.slot(),
	}
}

func (m *sequenceMatcher) keyMap() *mapping.KeyMap {
	return m.km
}

func (m *sequenceMatcher) handles(keyCode int) bool {
	return m.km.Trigger.HasKeyCode(keyCode)
}

func (m *sequenceMatcher) idle() bool {
	return m.next == 0 && m.phase == seqWaiting
}

func (m *sequenceMatcher) reset() {
	m.press.stop()
	m.gap.stop()
	m.next = 0
	m.phase = seqWaiting
	m.downAt = time.Time{}
}

func (m *sequenceMatcher) current() mapping.TriggerKey {
	return m.km.Trigger.Keys[m.next]
}

func (m *sequenceMatcher) onKey(ev KeyEvent, now time.Time) step {
	if ev.Action == KeyDown {
		return m.onDown(ev, now, true)
	}
	return m.onUp(ev, now)
}

func (m *sequenceMatcher) onDown(ev KeyEvent, now time.Time, retry bool) step {
	key := m.current()
	accepted := key.Accepts(ev.KeyCode, ev.Descriptor, ev.IsExternal)

	switch {
	case accepted && m.phase == seqWaiting:
		m.gap.stop()
		m.phase = seqPressed
		m.downAt = now
		if key.EffectiveClickType() == mapping.LongPress {
			if err := m.press.arm(m.env.cfg.LongPressDelay, m.onLongPress); err != nil {
				m.reset()
				return failed(err)
			}
		}
		return claim(key)

	case accepted && m.phase == seqDoubleGap:
		m.press.stop()
		m.phase = seqDoublePressed
		m.downAt = now
		return claim(key)
	}

	if m.idle() {
		return m.member(ev, step{})
	}

	// Out of order. Start over and give the key a chance as a first key.
	m.reset()
	if !retry {
		return step{outcome: outcomeReset}
	}
	s := m.onDown(ev, now, false)
	if s.outcome == outcomeIgnored {
		s.outcome = outcomeReset
	}
	return s
}

func (m *sequenceMatcher) onUp(ev KeyEvent, now time.Time) step {
	key := m.current()
	if !key.Accepts(ev.KeyCode, ev.Descriptor, ev.IsExternal) {
		return step{}
	}

	cfg := m.env.cfg
	hold := now.Sub(m.downAt)

	switch m.phase {
	case seqPressed:
		switch key.EffectiveClickType() {
		case mapping.ShortPress:
			if hold < cfg.LongPressDelay {
				return m.complete()
			}
		case mapping.DoublePress:
			if hold <= cfg.DoublePressDelay {
				if err := m.press.arm(cfg.DoublePressDelay, m.onDoubleGapExpired); err != nil {
					m.reset()
					return failed(err)
				}
				m.phase = seqDoubleGap
				return step{outcome: outcomeAdvanced}
			}
		}
		// A long press released early, or a short or double press held
		// too long.
		m.reset()
		return step{outcome: outcomeReset}

	case seqDoublePressed:
		if hold <= cfg.DoublePressDelay {
			return m.complete()
		}
		m.reset()
		return step{outcome: outcomeReset}

	case seqLongHeld:
		return m.complete()
	}

	return step{}
}

// member claims a key of the trigger that arrived out of order. It is
// consumed like an in-order key and imitated on release unless some trigger
// uses it.
func (m *sequenceMatcher) member(ev KeyEvent, s step) step {
	for _, key := range m.km.Trigger.Keys {
		if !key.Accepts(ev.KeyCode, ev.Descriptor, ev.IsExternal) {
			continue
		}
		s.claimed = true
		if key.ConsumeEvent {
			s.consume = true
			break
		}
	}
	return s
}

// complete records the current key as classified.
func (m *sequenceMatcher) complete() step {
	m.press.stop()
	key := m.current()
	m.next++

	if m.next == len(m.km.Trigger.Keys) {
		m.reset()
		return step{outcome: outcomeMatched, click: key.EffectiveClickType()}
	}

	m.phase = seqWaiting
	m.downAt = time.Time{}
	if err := m.gap.arm(m.env.cfg.SequenceTriggerTimeout, m.onTimeout); err != nil {
		m.reset()
		return failed(err)
	}
	return step{outcome: outcomeAdvanced}
}

func (m *sequenceMatcher) onLongPress() {
	if m.phase != seqPressed {
		return
	}
	if m.next == len(m.km.Trigger.Keys)-1 {
		m.reset()
		m.env.notify(m, step{outcome: outcomeMatched, click: mapping.LongPress})
		return
	}
	m.phase = seqLongHeld
	m.env.notify(m, step{outcome: outcomeAdvanced})
}

func (m *sequenceMatcher) onDoubleGapExpired() {
	m.reset()
	m.env.notify(m, step{outcome: outcomeReset})
}

func (m *sequenceMatcher) onTimeout() {
	m.reset()
	m.env.notify(m, step{outcome: outcomeReset, timedOut: true})
}
