package mapping

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Action is one thing a mapping does when it fires. Type selects the
// performer; Data and Args are interpreted by it.
type Action struct {
	// Type is the performer name, e.g. "log", "command", "lua", "key".
	Type string

	// Data is the primary argument: a message, a command line, a script or
	// a key code name.
	Data string

	// Args are performer-specific options.
	Args map[string]string
}

// String renders the action for logs.
func (a Action) String() string {
	if a.Data == "" {
		return a.Type
	}
	return a.Type + ":" + a.Data
}

// KeyMap binds a trigger to actions.
type KeyMap struct {
	// ID is the storage id.
	ID int64

	// UID is the stable identifier used by intents and logs.
	UID string

	Trigger     Trigger
	Actions     []Action
	Constraints ConstraintState
	Enabled     bool

	// TriggerFromOtherApps allows TriggerKeyMapFromIntent to run the actions.
	TriggerFromOtherApps bool
}

// NewKeyMap creates an enabled key map with a fresh UID.
func NewKeyMap(trigger Trigger, actions ...Action) KeyMap {
	return KeyMap{
		UID:     uuid.NewString(),
		Trigger: trigger,
		Actions: actions,
		Enabled: true,
	}
}

// WithID sets the storage id.
func (k KeyMap) WithID(id int64) KeyMap {
	k.ID = id
	return k
}

// WithConstraints sets the constraints.
func (k KeyMap) WithConstraints(mode ConstraintMode, constraints ...Constraint) KeyMap {
	k.Constraints = ConstraintState{Constraints: constraints, Mode: mode}
	return k
}

// WithEnabled sets whether the key map is active.
func (k KeyMap) WithEnabled(enabled bool) KeyMap {
	k.Enabled = enabled
	return k
}

// WithTriggerFromOtherApps sets whether intents may run the key map.
func (k KeyMap) WithTriggerFromOtherApps(allow bool) KeyMap {
	k.TriggerFromOtherApps = allow
	return k
}

// Detectable reports whether the engine should build a matcher for k.
func (k KeyMap) Detectable() bool {
	return k.Enabled && len(k.Actions) > 0 && len(k.Trigger.Keys) > 0
}

// Validate checks the key map and returns every problem found, combined.
func (k KeyMap) Validate() error {
	return multierr.Combine(k.validate()...)
}

func (k KeyMap) validate() []error {
	id := k.UID
	if id == "" {
		id = fmt.Sprintf("#%d", k.ID)
	}

	var errs []error
	t := k.Trigger

	if len(t.Keys) == 0 {
		errs = append(errs, configErr(id, "trigger.keys", "trigger has no keys"))
	}
	switch t.Mode {
	case ModeSequence, ModeParallel:
	case ModeUndefined:
		errs = append(errs, configErr(id, "trigger.mode", "mode is undefined"))
	default:
		errs = append(errs, configErr(id, "trigger.mode", "unknown mode %d", t.Mode))
	}
	if !t.ClickType.Valid() {
		errs = append(errs, configErr(id, "trigger.click_type", "unknown click type %d", t.ClickType))
	}

	for i, key := range t.Keys {
		path := fmt.Sprintf("trigger.keys[%d]", i)
		if key.KeyCode <= 0 {
			errs = append(errs, configErr(id, path+".key_code", "invalid key code %d", key.KeyCode))
		}
		if !key.ClickType.Valid() {
			errs = append(errs, configErr(id, path+".click_type", "unknown click type %d", key.ClickType))
		}
		if !key.Device.Resolvable() {
			errs = append(errs, configErr(id, path+".device", "cannot resolve device filter %s", key.Device))
		}
	}

	if t.Mode == ModeParallel {
		seen := make(map[int]bool, len(t.Keys))
		for i, key := range t.Keys {
			if seen[key.KeyCode] {
				errs = append(errs, configErr(id, fmt.Sprintf("trigger.keys[%d]", i),
					"key %s appears twice in a parallel trigger", KeyCodeName(key.KeyCode)))
			}
			seen[key.KeyCode] = true
		}
	}

	for i, a := range k.Actions {
		if strings.TrimSpace(a.Type) == "" {
			errs = append(errs, configErr(id, fmt.Sprintf("actions[%d].type", i), "action type is empty"))
		}
	}

	errs = append(errs, k.Constraints.validate(id, "constraints")...)
	return errs
}

// FingerprintGesture identifies a swipe on the fingerprint sensor.
type FingerprintGesture uint8

const (
	SwipeDown FingerprintGesture = iota + 1
	SwipeUp
	SwipeLeft
	SwipeRight
)

// String returns the configuration name of the gesture.
func (g FingerprintGesture) String() string {
	switch g {
	case SwipeDown:
		return "swipe_down"
	case SwipeUp:
		return "swipe_up"
	case SwipeLeft:
		return "swipe_left"
	case SwipeRight:
		return "swipe_right"
	default:
		return fmt.Sprintf("FingerprintGesture(%d)", g)
	}
}

// ParseFingerprintGesture parses a configuration name such as "swipe_down".
func ParseFingerprintGesture(s string) (FingerprintGesture, error) {
	for g := SwipeDown; g <= SwipeRight; g++ {
		if strings.EqualFold(strings.TrimSpace(s), g.String()) {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown fingerprint gesture %q", s)
}

// FingerprintMap binds a fingerprint gesture to actions.
type FingerprintMap struct {
	Gesture     FingerprintGesture
	Actions     []Action
	Constraints ConstraintState
	Enabled     bool
}

func (f FingerprintMap) validate() []error {
	id := f.Gesture.String()
	var errs []error
	if f.Gesture < SwipeDown || f.Gesture > SwipeRight {
		errs = append(errs, configErr(id, "gesture", "unknown gesture"))
	}
	for i, a := range f.Actions {
		if strings.TrimSpace(a.Type) == "" {
			errs = append(errs, configErr(id, fmt.Sprintf("actions[%d].type", i), "action type is empty"))
		}
	}
	return append(errs, f.Constraints.validate(id, "constraints")...)
}

// Snapshot is the complete, read-only mapping configuration handed to the
// engine and controller. A new snapshot replaces the previous one entirely.
type Snapshot struct {
	KeyMaps         []KeyMap
	FingerprintMaps []FingerprintMap
}

// Validate checks every enabled key map and fingerprint map. Disabled maps
// are editor state and are not checked. All problems are combined with
// multierr; use multierr.Errors to list them.
func (s Snapshot) Validate() error {
	var errs []error
	uids := make(map[string]bool, len(s.KeyMaps))

	for _, km := range s.KeyMaps {
		if km.UID != "" {
			if uids[km.UID] {
				errs = append(errs, configErr(km.UID, "uid", "duplicate key map uid"))
			}
			uids[km.UID] = true
		}
		if !km.Enabled {
			continue
		}
		errs = append(errs, km.validate()...)
	}

	gestures := make(map[FingerprintGesture]bool, len(s.FingerprintMaps))
	for _, fm := range s.FingerprintMaps {
		if gestures[fm.Gesture] {
			errs = append(errs, configErr(fm.Gesture.String(), "gesture", "duplicate fingerprint map"))
		}
		gestures[fm.Gesture] = true
		if !fm.Enabled {
			continue
		}
		errs = append(errs, fm.validate()...)
	}

	return multierr.Combine(errs...)
}

// KeyMapByUID returns the key map with the given UID.
func (s Snapshot) KeyMapByUID(uid string) (KeyMap, bool) {
	for _, km := range s.KeyMaps {
		if km.UID == uid {
			return km, true
		}
	}
	return KeyMap{}, false
}

// FingerprintMap returns the map for the gesture.
func (s Snapshot) FingerprintMap(g FingerprintGesture) (FingerprintMap, bool) {
	for _, fm := range s.FingerprintMaps {
		if fm.Gesture == g {
			return fm, true
		}
	}
	return FingerprintMap{}, false
}
