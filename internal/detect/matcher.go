package detect

import (
	"time"

	"github.com/dshills/keymapper/internal/clock"
	"github.com/dshills/keymapper/internal/mapping"
)

// outcome is what one event or timer did to a matcher.
type outcome uint8

const (
	// outcomeIgnored means the matcher's state did not change.
	outcomeIgnored outcome = iota
	// outcomeAdvanced means the matcher accepted the input and moved on.
	outcomeAdvanced
	// outcomeMatched means the trigger fired. The matcher has re-armed.
	outcomeMatched
	// outcomeReset means partial progress was discarded.
	outcomeReset
)

func (o outcome) String() string {
	switch o {
	case outcomeAdvanced:
		return "advanced"
	case outcomeMatched:
		return "matched"
	case outcomeReset:
		return "reset"
	default:
		return "ignored"
	}
}

// progressed reports whether the input counted toward the trigger.
func (o outcome) progressed() bool {
	return o == outcomeAdvanced || o == outcomeMatched
}

// step is the result of feeding one input to a matcher.
type step struct {
	outcome outcome

	// claimed is set when a key down was accepted as a trigger key.
	claimed bool
	// consume is the accepted key's ConsumeEvent flag.
	consume bool

	// click is the classified click type of a match.
	click mapping.ClickType

	// timedOut marks a reset caused by the inter-key timeout.
	timedOut bool

	// err is set when a timer could not be armed.
	err error
}

func claim(key mapping.TriggerKey) step {
	return step{outcome: outcomeAdvanced, claimed: true, consume: key.ConsumeEvent}
}

func failed(err error) step {
	return step{outcome: outcomeReset, err: err}
}

// matcher tracks one trigger's progress. Sequence and parallel triggers
// share no state, only this shape.
type matcher interface {
	keyMap() *mapping.KeyMap

	// handles reports whether the trigger contains the key code.
	handles(keyCode int) bool

	// idle reports whether the matcher has no partial progress.
	idle() bool

	onKey(ev KeyEvent, now time.Time) step

	// reset discards progress and cancels timers.
	reset()
}

// matchEnv is shared by all matchers of one engine.
type matchEnv struct {
	clock clock.Clock
	cfg   Config

	// notify receives outcomes produced by timers.
	notify func(m matcher, s step)
}

func (env *matchEnv) slot() timerSlot {
	return timerSlot{clock: env.clock}
}

func newMatcher(km *mapping.KeyMap, env *matchEnv) matcher {
	if km.Trigger.Mode == mapping.ModeParallel {
		return newParallelMatcher(km, env)
	}
	return newSequenceMatcher(km, env)
}
