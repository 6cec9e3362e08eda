// Package mapping defines the immutable configuration model: triggers, key
// maps, actions, constraints and fingerprint maps, collected in a Snapshot.
//
// A Trigger is an ordered list of TriggerKeys combined in Sequence or
// Parallel mode. Each key names an Android key code, a device filter and a
// click type:
//
//	trigger := mapping.Sequence(
//	    mapping.NewTriggerKey(mapping.KeyCodeVolumeDown),
//	    mapping.NewTriggerKey(mapping.KeyCodeVolumeUp).WithClickType(mapping.LongPress),
//	)
//	km := mapping.NewKeyMap(trigger, mapping.Action{Type: "log", Data: "hello"})
//
// Snapshot.Validate reports every malformed part as a *ConfigurationError,
// combined with go.uber.org/multierr. Snapshots are never mutated after they
// are handed to the engine.
package mapping
