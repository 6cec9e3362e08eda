package mapping

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func TestParseClickType(t *testing.T) {
	tests := []struct {
		input    string
		expected ClickType
		wantErr  bool
	}{
		{"", ClickUnspecified, false},
		{"short", ShortPress, false},
		{"SHORT_PRESS", ShortPress, false},
		{"long-press", LongPress, false},
		{"double", DoublePress, false},
		{"triple", ClickUnspecified, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClickType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClickType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseClickType(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDeviceFilter_Matches(t *testing.T) {
	tests := []struct {
		name       string
		filter     DeviceFilter
		descriptor string
		external   bool
		expected   bool
	}{
		{"any internal", AnyDevice(), "", false, true},
		{"any external", AnyDevice(), "kbd", true, true},
		{"internal internal", InternalDevice(), "", false, true},
		{"internal external", InternalDevice(), "kbd", true, false},
		{"external same", ExternalDevice("kbd"), "kbd", true, true},
		{"external other", ExternalDevice("kbd"), "headset", true, false},
		{"external internal", ExternalDevice("kbd"), "kbd", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.descriptor, tt.external); got != tt.expected {
				t.Errorf("Matches() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestParseDeviceFilter(t *testing.T) {
	tests := []struct {
		input    string
		expected DeviceFilter
		wantErr  bool
	}{
		{"", AnyDevice(), false},
		{"any", AnyDevice(), false},
		{"internal", InternalDevice(), false},
		{"external:usb-kbd", ExternalDevice("usb-kbd"), false},
		{"bluetooth", DeviceFilter{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDeviceFilter(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDeviceFilter(%q) error = %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseDeviceFilter(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTrigger_ParallelClickType(t *testing.T) {
	long := NewTriggerKey(KeyCodeVolumeDown).WithClickType(LongPress)
	short := NewTriggerKey(KeyCodeVolumeUp)

	if got := Parallel(long, short).ParallelClickType(); got != LongPress {
		t.Errorf("first key click type = %v, expected long", got)
	}
	if got := Parallel(long, short).WithClickType(DoublePress).ParallelClickType(); got != DoublePress {
		t.Errorf("mode-level click type = %v, expected double", got)
	}
	unspecified := NewTriggerKey(KeyCodeA).WithClickType(ClickUnspecified)
	if got := Parallel(unspecified).ParallelClickType(); got != ShortPress {
		t.Errorf("unspecified click type = %v, expected short", got)
	}
}

func TestTrigger_String(t *testing.T) {
	tr := Sequence(
		NewTriggerKey(KeyCodeVolumeDown),
		NewTriggerKey(KeyCodeVolumeUp).WithClickType(LongPress),
	)
	if got, want := tr.String(), "sequence[VOLUME_DOWN/short VOLUME_UP/long]"; got != want {
		t.Errorf("String() = %q, expected %q", got, want)
	}
}

func TestNewTriggerKey_UniqueIDs(t *testing.T) {
	a := NewTriggerKey(KeyCodeA)
	b := NewTriggerKey(KeyCodeA)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("IDs %q and %q should be distinct and non-empty", a.ID, b.ID)
	}
	if !a.ConsumeEvent || a.Device != AnyDevice() || a.ClickType != ShortPress {
		t.Errorf("unexpected defaults %+v", a)
	}
}

func TestKeyMap_Validate(t *testing.T) {
	action := Action{Type: "log"}

	tests := []struct {
		name    string
		keyMap  KeyMap
		wantErr int
	}{
		{
			name:   "valid sequence",
			keyMap: NewKeyMap(Sequence(NewTriggerKey(KeyCodeVolumeDown)), action),
		},
		{
			name:    "no keys",
			keyMap:  NewKeyMap(Sequence(), action),
			wantErr: 1,
		},
		{
			name:    "undefined mode",
			keyMap:  NewKeyMap(Trigger{Keys: []TriggerKey{NewTriggerKey(KeyCodeA)}}, action),
			wantErr: 1,
		},
		{
			name: "unresolvable device and bad click type",
			keyMap: NewKeyMap(Sequence(
				NewTriggerKey(KeyCodeA).WithDevice(ExternalDevice("")),
				NewTriggerKey(KeyCodeB).WithClickType(ClickType(9)),
			), action),
			wantErr: 2,
		},
		{
			name: "duplicate parallel key",
			keyMap: NewKeyMap(Parallel(
				NewTriggerKey(KeyCodeA),
				NewTriggerKey(KeyCodeA),
			), action),
			wantErr: 1,
		},
		{
			name: "foreground constraint without package",
			keyMap: NewKeyMap(Sequence(NewTriggerKey(KeyCodeA)), action).
				WithConstraints(ConstraintAnd, Constraint{Kind: AppInForeground}),
			wantErr: 1,
		},
		{
			name:    "empty action type",
			keyMap:  NewKeyMap(Sequence(NewTriggerKey(KeyCodeA)), Action{}),
			wantErr: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.keyMap.Validate()
			errs := multierr.Errors(err)
			if len(errs) != tt.wantErr {
				t.Fatalf("Validate() returned %d errors (%v), expected %d", len(errs), err, tt.wantErr)
			}
			for _, e := range errs {
				var cfgErr *ConfigurationError
				if !errors.As(e, &cfgErr) {
					t.Errorf("error %v is not a *ConfigurationError", e)
				}
				if !errors.Is(e, ErrInvalidConfiguration) {
					t.Errorf("error %v does not match ErrInvalidConfiguration", e)
				}
			}
		})
	}
}

func TestSnapshot_ValidateSkipsDisabled(t *testing.T) {
	s := Snapshot{
		KeyMaps: []KeyMap{
			NewKeyMap(Sequence(), Action{Type: "log"}).WithEnabled(false),
			NewKeyMap(Sequence(NewTriggerKey(KeyCodeA)), Action{Type: "log"}),
		},
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v, expected nil", err)
	}
}

func TestSnapshot_ValidateAggregates(t *testing.T) {
	s := Snapshot{
		KeyMaps: []KeyMap{
			NewKeyMap(Sequence(), Action{Type: "log"}),
			NewKeyMap(Trigger{Keys: []TriggerKey{NewTriggerKey(KeyCodeA)}}, Action{Type: "log"}),
		},
		FingerprintMaps: []FingerprintMap{
			{Gesture: SwipeDown, Enabled: true},
			{Gesture: SwipeDown, Enabled: true},
		},
	}

	errs := multierr.Errors(s.Validate())
	if len(errs) != 3 {
		t.Fatalf("Validate() returned %d errors, expected 3: %v", len(errs), errs)
	}
	if !strings.Contains(errs[2].Error(), "duplicate fingerprint map") {
		t.Errorf("last error = %v, expected duplicate fingerprint map", errs[2])
	}
}

func TestSnapshot_Lookup(t *testing.T) {
	km := NewKeyMap(Sequence(NewTriggerKey(KeyCodeA)), Action{Type: "log"})
	s := Snapshot{
		KeyMaps:         []KeyMap{km},
		FingerprintMaps: []FingerprintMap{{Gesture: SwipeLeft, Enabled: true}},
	}

	if got, ok := s.KeyMapByUID(km.UID); !ok || got.UID != km.UID {
		t.Errorf("KeyMapByUID() = %v, %v", got.UID, ok)
	}
	if _, ok := s.KeyMapByUID("missing"); ok {
		t.Error("KeyMapByUID(missing) = true, expected false")
	}
	if _, ok := s.FingerprintMap(SwipeLeft); !ok {
		t.Error("FingerprintMap(SwipeLeft) not found")
	}
	if _, ok := s.FingerprintMap(SwipeUp); ok {
		t.Error("FingerprintMap(SwipeUp) found, expected missing")
	}
}

func TestParseKeyCode(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		{"VOLUME_DOWN", 25, false},
		{"keycode_volume_up", 24, false},
		{"a", 29, false},
		{"Z", 54, false},
		{"5", 12, false},
		{"F12", 142, false},
		{"#5", 5, false},
		{"300", 300, false},
		{"NOT_A_KEY", 0, true},
		{"", 0, true},
		{"#-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKeyCode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKeyCode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseKeyCode(%q) = %d, expected %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestKeyCodeName(t *testing.T) {
	if got := KeyCodeName(KeyCodeVolumeDown); got != "VOLUME_DOWN" {
		t.Errorf("KeyCodeName(25) = %q", got)
	}
	if got := KeyCodeName(9999); got != "9999" {
		t.Errorf("KeyCodeName(9999) = %q", got)
	}
}

func TestParseConstraintKind(t *testing.T) {
	for kind, name := range constraintNames {
		got, err := ParseConstraintKind(strings.ToUpper(name))
		if err != nil || got != kind {
			t.Errorf("ParseConstraintKind(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseConstraintKind("wifi_on"); err == nil {
		t.Error("ParseConstraintKind(wifi_on) expected error")
	}
}
