package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/dshills/keymapper/internal/mapping"
)

// Format is a key map file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf returns the key map format for a file name.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// keyMapFile is the on-disk structure of a key map file.
//
//	keymaps:
//	  - uid: torch
//	    mode: sequence
//	    keys:
//	      - key: VOLUME_DOWN
//	        click: long
//	        device: internal
//	    actions:
//	      - type: command
//	        data: torch toggle
//	    constraints:
//	      mode: and
//	      list:
//	        - kind: screen_on
//	fingerprint_maps:
//	  - gesture: swipe_down
//	    actions:
//	      - type: log
//	        data: swiped
type keyMapFile struct {
	KeyMaps         []keyMapEntry         `yaml:"keymaps" toml:"keymaps"`
	FingerprintMaps []fingerprintMapEntry `yaml:"fingerprint_maps,omitempty" toml:"fingerprint_maps,omitempty"`
}

type keyMapEntry struct {
	ID                   int64             `yaml:"id,omitempty" toml:"id,omitempty"`
	UID                  string            `yaml:"uid,omitempty" toml:"uid,omitempty"`
	Enabled              *bool             `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Mode                 string            `yaml:"mode,omitempty" toml:"mode,omitempty"`
	Click                string            `yaml:"click,omitempty" toml:"click,omitempty"`
	TriggerFromOtherApps bool              `yaml:"trigger_from_other_apps,omitempty" toml:"trigger_from_other_apps,omitempty"`
	Keys                 []triggerKeyEntry `yaml:"keys" toml:"keys"`
	Actions              []actionEntry     `yaml:"actions" toml:"actions"`
	Constraints          constraintsEntry  `yaml:"constraints,omitempty" toml:"constraints,omitempty"`
}

type triggerKeyEntry struct {
	// Key is a key code name or number.
	Key     any    `yaml:"key" toml:"key"`
	Click   string `yaml:"click,omitempty" toml:"click,omitempty"`
	Device  string `yaml:"device,omitempty" toml:"device,omitempty"`
	Consume *bool  `yaml:"consume,omitempty" toml:"consume,omitempty"`
}

type actionEntry struct {
	Type string            `yaml:"type" toml:"type"`
	Data string            `yaml:"data,omitempty" toml:"data,omitempty"`
	Args map[string]string `yaml:"args,omitempty" toml:"args,omitempty"`
}

type constraintsEntry struct {
	Mode string            `yaml:"mode,omitempty" toml:"mode,omitempty"`
	List []constraintEntry `yaml:"list,omitempty" toml:"list,omitempty"`
}

type constraintEntry struct {
	Kind    string `yaml:"kind" toml:"kind"`
	Package string `yaml:"package,omitempty" toml:"package,omitempty"`
}

type fingerprintMapEntry struct {
	Gesture     string           `yaml:"gesture" toml:"gesture"`
	Enabled     *bool            `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Actions     []actionEntry    `yaml:"actions" toml:"actions"`
	Constraints constraintsEntry `yaml:"constraints,omitempty" toml:"constraints,omitempty"`
}

// LoadKeyMaps reads and decodes a key map file. The snapshot is not
// validated; the engine does that when it is applied.
func LoadKeyMaps(path string) (mapping.Snapshot, error) {
	format, err := FormatOf(path)
	if err != nil {
		return mapping.Snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mapping.Snapshot{}, &LoadError{Path: path, Err: err}
	}
	snap, err := DecodeKeyMaps(data, format)
	if err != nil {
		return mapping.Snapshot{}, &LoadError{Path: path, Err: err}
	}
	return snap, nil
}

// DecodeKeyMaps decodes key map file data. Every malformed field is
// reported, combined with multierr.
func DecodeKeyMaps(data []byte, format Format) (mapping.Snapshot, error) {
	var file keyMapFile
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return mapping.Snapshot{}, fmt.Errorf("decoding yaml: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return mapping.Snapshot{}, fmt.Errorf("decoding toml: %w", err)
		}
	default:
		return mapping.Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return file.snapshot()
}

func (f keyMapFile) snapshot() (mapping.Snapshot, error) {
	var snap mapping.Snapshot
	var errs []error

	for i, e := range f.KeyMaps {
		km, err := e.keyMap()
		if err != nil {
			errs = append(errs, fmt.Errorf("keymaps[%d]: %w", i, err))
			continue
		}
		snap.KeyMaps = append(snap.KeyMaps, km)
	}
	for i, e := range f.FingerprintMaps {
		fm, err := e.fingerprintMap()
		if err != nil {
			errs = append(errs, fmt.Errorf("fingerprint_maps[%d]: %w", i, err))
			continue
		}
		snap.FingerprintMaps = append(snap.FingerprintMaps, fm)
	}

	if err := multierr.Combine(errs...); err != nil {
		return mapping.Snapshot{}, err
	}
	return snap, nil
}

func (e keyMapEntry) keyMap() (mapping.KeyMap, error) {
	var errs []error

	keys := make([]mapping.TriggerKey, 0, len(e.Keys))
	for i, ke := range e.Keys {
		k, err := ke.triggerKey()
		if err != nil {
			errs = append(errs, fmt.Errorf("keys[%d]: %w", i, err))
			continue
		}
		keys = append(keys, k)
	}

	mode, err := mapping.ParseMode(e.Mode)
	if err != nil {
		errs = append(errs, err)
	}
	// One key has nothing to combine; treat it as a sequence.
	if mode == mapping.ModeUndefined && e.Mode == "" && len(e.Keys) == 1 {
		mode = mapping.ModeSequence
	}

	click, err := mapping.ParseClickType(e.Click)
	if err != nil {
		errs = append(errs, err)
	}

	cs, err := e.Constraints.state()
	if err != nil {
		errs = append(errs, err)
	}

	if err := multierr.Combine(errs...); err != nil {
		return mapping.KeyMap{}, err
	}

	trigger := mapping.Trigger{Keys: keys, Mode: mode, ClickType: click}
	km := mapping.NewKeyMap(trigger, actions(e.Actions)...).
		WithID(e.ID).
		WithTriggerFromOtherApps(e.TriggerFromOtherApps)
	km.Constraints = cs
	if e.UID != "" {
		km.UID = e.UID
	}
	if e.Enabled != nil {
		km = km.WithEnabled(*e.Enabled)
	}
	return km, nil
}

func (e triggerKeyEntry) triggerKey() (mapping.TriggerKey, error) {
	var code int
	var err error
	switch v := e.Key.(type) {
	case string:
		code, err = mapping.ParseKeyCode(v)
	case int:
		code = v
	case int64:
		code = int(v)
	case uint64:
		code = int(v)
	case nil:
		err = fmt.Errorf("key is required")
	default:
		err = fmt.Errorf("key must be a name or number, got %T", v)
	}
	if err != nil {
		return mapping.TriggerKey{}, err
	}

	click, err := mapping.ParseClickType(e.Click)
	if err != nil {
		return mapping.TriggerKey{}, err
	}
	device, err := mapping.ParseDeviceFilter(e.Device)
	if err != nil {
		return mapping.TriggerKey{}, err
	}

	k := mapping.NewTriggerKey(code).WithClickType(click).WithDevice(device)
	if e.Consume != nil {
		k = k.WithConsume(*e.Consume)
	}
	return k, nil
}

func (e constraintsEntry) state() (mapping.ConstraintState, error) {
	mode, err := mapping.ParseConstraintMode(e.Mode)
	if err != nil {
		return mapping.ConstraintState{}, err
	}

	cs := mapping.ConstraintState{Mode: mode}
	for i, c := range e.List {
		kind, err := mapping.ParseConstraintKind(c.Kind)
		if err != nil {
			return mapping.ConstraintState{}, fmt.Errorf("constraints[%d]: %w", i, err)
		}
		cs.Constraints = append(cs.Constraints, mapping.Constraint{Kind: kind, PackageName: c.Package})
	}
	return cs, nil
}

func (e fingerprintMapEntry) fingerprintMap() (mapping.FingerprintMap, error) {
	g, err := mapping.ParseFingerprintGesture(e.Gesture)
	if err != nil {
		return mapping.FingerprintMap{}, err
	}
	cs, err := e.Constraints.state()
	if err != nil {
		return mapping.FingerprintMap{}, err
	}

	fm := mapping.FingerprintMap{
		Gesture:     g,
		Actions:     actions(e.Actions),
		Constraints: cs,
		Enabled:     true,
	}
	if e.Enabled != nil {
		fm.Enabled = *e.Enabled
	}
	return fm, nil
}

func actions(entries []actionEntry) []mapping.Action {
	out := make([]mapping.Action, 0, len(entries))
	for _, a := range entries {
		out = append(out, mapping.Action{Type: a.Type, Data: a.Data, Args: a.Args})
	}
	return out
}

// EncodeKeyMaps writes a snapshot in the key map file format.
func EncodeKeyMaps(snap mapping.Snapshot, format Format) ([]byte, error) {
	var file keyMapFile
	for _, km := range snap.KeyMaps {
		file.KeyMaps = append(file.KeyMaps, keyMapEntryOf(km))
	}
	for _, fm := range snap.FingerprintMaps {
		enabled := fm.Enabled
		file.FingerprintMaps = append(file.FingerprintMaps, fingerprintMapEntry{
			Gesture:     fm.Gesture.String(),
			Enabled:     &enabled,
			Actions:     actionEntries(fm.Actions),
			Constraints: constraintsEntryOf(fm.Constraints),
		})
	}

	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(file); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatTOML:
		return toml.Marshal(file)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func keyMapEntryOf(km mapping.KeyMap) keyMapEntry {
	enabled := km.Enabled
	e := keyMapEntry{
		ID:                   km.ID,
		UID:                  km.UID,
		Enabled:              &enabled,
		Mode:                 km.Trigger.Mode.String(),
		TriggerFromOtherApps: km.TriggerFromOtherApps,
		Actions:              actionEntries(km.Actions),
		Constraints:          constraintsEntryOf(km.Constraints),
	}
	if km.Trigger.ClickType != mapping.ClickUnspecified {
		e.Click = km.Trigger.ClickType.String()
	}

	for _, k := range km.Trigger.Keys {
		ke := triggerKeyEntry{
			Key:    mapping.KeyCodeName(k.KeyCode),
			Device: k.Device.String(),
		}
		if k.ClickType != mapping.ClickUnspecified {
			ke.Click = k.ClickType.String()
		}
		if !k.ConsumeEvent {
			consume := false
			ke.Consume = &consume
		}
		e.Keys = append(e.Keys, ke)
	}
	return e
}

func actionEntries(actions []mapping.Action) []actionEntry {
	out := make([]actionEntry, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionEntry{Type: a.Type, Data: a.Data, Args: a.Args})
	}
	return out
}

func constraintsEntryOf(cs mapping.ConstraintState) constraintsEntry {
	var e constraintsEntry
	if cs.Mode == mapping.ConstraintOr {
		e.Mode = cs.Mode.String()
	}
	for _, c := range cs.Constraints {
		e.List = append(e.List, constraintEntry{Kind: c.Kind.String(), Package: c.PackageName})
	}
	return e
}
