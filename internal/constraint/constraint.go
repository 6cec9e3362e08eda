// Package constraint decides whether a key map may fire given the current
// device state.
//
// The Evaluator implements detect.ConstraintChecker. Device state comes from a
// StateProvider; StaticState is a settable provider used by the command line
// tool and tests.
package constraint

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

// Orientation is the screen orientation.
type Orientation uint8

const (
	OrientationUnknown Orientation = iota
	OrientationPortrait
	OrientationLandscape
)

// String returns the configuration name of the orientation.
func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationLandscape:
		return "landscape"
	default:
		return "unknown"
	}
}

// ParseOrientation parses "portrait" or "landscape". The empty string is
// OrientationUnknown.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return OrientationUnknown, nil
	case "portrait":
		return OrientationPortrait, nil
	case "landscape":
		return OrientationLandscape, nil
	default:
		return OrientationUnknown, fmt.Errorf("unknown orientation %q", s)
	}
}

// State is a point-in-time view of the device.
type State struct {
	// ForegroundApp is the package name of the app in the foreground.
	ForegroundApp string
	Orientation   Orientation
	ScreenOn      bool
}

// StateProvider supplies the current device state.
type StateProvider interface {
	State() State
}

// StaticState is a StateProvider whose state is set explicitly.
// It is safe for concurrent use.
type StaticState struct {
	mu    sync.RWMutex
	state State
}

// NewStaticState creates a provider reporting s.
func NewStaticState(s State) *StaticState {
	return &StaticState{state: s}
}

// State returns the current state.
func (p *StaticState) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Set replaces the state.
func (p *StaticState) Set(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

// Update applies fn to the state.
func (p *StaticState) Update(fn func(*State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.state)
}

// Evaluator checks constraint sets against a StateProvider.
type Evaluator struct {
	provider StateProvider
	log      *logging.Logger
}

// NewEvaluator creates an evaluator. log may be nil.
func NewEvaluator(provider StateProvider, log *logging.Logger) *Evaluator {
	if log == nil {
		log = logging.Nop()
	}
	return &Evaluator{provider: provider, log: log}
}

// Allowed reports whether the constraint set holds. An empty set always
// holds. In ConstraintAnd mode every constraint must hold, in ConstraintOr
// mode at least one.
func (e *Evaluator) Allowed(cs mapping.ConstraintState) bool {
	if len(cs.Constraints) == 0 {
		return true
	}

	state := e.provider.State()
	for _, c := range cs.Constraints {
		ok := Holds(c, state)
		e.log.Debug("constraint %s: %t", c, ok)

		if cs.Mode == mapping.ConstraintOr && ok {
			return true
		}
		if cs.Mode != mapping.ConstraintOr && !ok {
			return false
		}
	}
	return cs.Mode != mapping.ConstraintOr
}

// Holds reports whether a single constraint holds in state.
func Holds(c mapping.Constraint, state State) bool {
	switch c.Kind {
	case mapping.AppInForeground:
		return state.ForegroundApp == c.PackageName
	case mapping.AppNotInForeground:
		return state.ForegroundApp != c.PackageName
	case mapping.OrientationPortrait:
		return state.Orientation == OrientationPortrait
	case mapping.OrientationLandscape:
		return state.Orientation == OrientationLandscape
	case mapping.ScreenOn:
		return state.ScreenOn
	case mapping.ScreenOff:
		return !state.ScreenOn
	default:
		return false
	}
}
