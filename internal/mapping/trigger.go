package mapping

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ClickType classifies how a trigger key must be pressed.
type ClickType uint8

const (
	// ClickUnspecified means no click type was set. On a key it behaves as
	// ShortPress; on a trigger it defers to the first key.
	ClickUnspecified ClickType = iota
	ShortPress
	LongPress
	DoublePress
)

// String returns the configuration name of the click type.
func (c ClickType) String() string {
	switch c {
	case ClickUnspecified:
		return "unspecified"
	case ShortPress:
		return "short"
	case LongPress:
		return "long"
	case DoublePress:
		return "double"
	default:
		return fmt.Sprintf("ClickType(%d)", c)
	}
}

// Valid reports whether c is one of the known click types.
func (c ClickType) Valid() bool {
	return c <= DoublePress
}

// orShort maps ClickUnspecified to ShortPress.
func (c ClickType) orShort() ClickType {
	if c == ClickUnspecified {
		return ShortPress
	}
	return c
}

// ParseClickType parses "short", "long" or "double" (with an optional
// "_press" or "-press" suffix). The empty string is ClickUnspecified.
func ParseClickType(s string) (ClickType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimSuffix(strings.TrimSuffix(norm, "_press"), "-press")
	switch norm {
	case "":
		return ClickUnspecified, nil
	case "short":
		return ShortPress, nil
	case "long":
		return LongPress, nil
	case "double":
		return DoublePress, nil
	default:
		return ClickUnspecified, fmt.Errorf("unknown click type %q", s)
	}
}

// Mode is how the keys of a trigger combine.
type Mode uint8

const (
	// ModeUndefined is an editor-only state and is rejected by validation.
	ModeUndefined Mode = iota
	// ModeSequence requires keys one after another in order.
	ModeSequence
	// ModeParallel requires all keys held down together.
	ModeParallel
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeUndefined:
		return "undefined"
	case ModeSequence:
		return "sequence"
	case ModeParallel:
		return "parallel"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// ParseMode parses "sequence" or "parallel". The empty string and
// "undefined" yield ModeUndefined.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "undefined":
		return ModeUndefined, nil
	case "sequence":
		return ModeSequence, nil
	case "parallel":
		return ModeParallel, nil
	default:
		return ModeUndefined, fmt.Errorf("unknown trigger mode %q", s)
	}
}

// DeviceKind selects which input devices a trigger key accepts.
type DeviceKind uint8

const (
	// DeviceAny accepts events from every device.
	DeviceAny DeviceKind = iota
	// DeviceInternal accepts events from built-in devices only.
	DeviceInternal
	// DeviceExternal accepts events from one external device, by descriptor.
	DeviceExternal
)

// DeviceFilter restricts a trigger key to a device.
type DeviceFilter struct {
	Kind DeviceKind

	// Descriptor identifies the external device. Only used with DeviceExternal.
	Descriptor string
}

// AnyDevice returns a filter accepting every device.
func AnyDevice() DeviceFilter {
	return DeviceFilter{Kind: DeviceAny}
}

// InternalDevice returns a filter accepting built-in devices.
func InternalDevice() DeviceFilter {
	return DeviceFilter{Kind: DeviceInternal}
}

// ExternalDevice returns a filter accepting the device with the given descriptor.
func ExternalDevice(descriptor string) DeviceFilter {
	return DeviceFilter{Kind: DeviceExternal, Descriptor: descriptor}
}

// Matches reports whether an event from the described device passes the filter.
func (f DeviceFilter) Matches(descriptor string, isExternal bool) bool {
	switch f.Kind {
	case DeviceAny:
		return true
	case DeviceInternal:
		return !isExternal
	case DeviceExternal:
		return isExternal && descriptor == f.Descriptor
	default:
		return false
	}
}

// Resolvable reports whether the filter can ever match an event.
func (f DeviceFilter) Resolvable() bool {
	switch f.Kind {
	case DeviceAny, DeviceInternal:
		return true
	case DeviceExternal:
		return f.Descriptor != ""
	default:
		return false
	}
}

// String returns "any", "internal" or "external:<descriptor>".
func (f DeviceFilter) String() string {
	switch f.Kind {
	case DeviceAny:
		return "any"
	case DeviceInternal:
		return "internal"
	case DeviceExternal:
		return "external:" + f.Descriptor
	default:
		return fmt.Sprintf("DeviceKind(%d)", f.Kind)
	}
}

// ParseDeviceFilter parses the String form. The empty string is AnyDevice.
func ParseDeviceFilter(s string) (DeviceFilter, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "any":
		return AnyDevice(), nil
	case "internal", "this_device":
		return InternalDevice(), nil
	}
	if desc, ok := strings.CutPrefix(s, "external:"); ok {
		return ExternalDevice(desc), nil
	}
	return DeviceFilter{}, fmt.Errorf("unknown device filter %q", s)
}

// TriggerKey is one key of a trigger.
type TriggerKey struct {
	// ID identifies the key within its trigger. It carries no meaning for
	// detection.
	ID string

	// KeyCode is the Android key code.
	KeyCode int

	// Device restricts which device the key must come from.
	Device DeviceFilter

	// ClickType is how this key must be pressed.
	ClickType ClickType

	// ConsumeEvent suppresses the key's normal function while it is part
	// of a possible trigger.
	ConsumeEvent bool
}

// NewTriggerKey creates a short-press key from any device that consumes
// its events.
func NewTriggerKey(keyCode int) TriggerKey {
	return TriggerKey{
		ID:           uuid.NewString(),
		KeyCode:      keyCode,
		Device:       AnyDevice(),
		ClickType:    ShortPress,
		ConsumeEvent: true,
	}
}

// WithDevice sets the device filter.
func (k TriggerKey) WithDevice(f DeviceFilter) TriggerKey {
	k.Device = f
	return k
}

// WithClickType sets the click type.
func (k TriggerKey) WithClickType(c ClickType) TriggerKey {
	k.ClickType = c
	return k
}

// WithConsume sets whether the key's events are consumed.
func (k TriggerKey) WithConsume(consume bool) TriggerKey {
	k.ConsumeEvent = consume
	return k
}

// EffectiveClickType returns the click type with ClickUnspecified mapped
// to ShortPress.
func (k TriggerKey) EffectiveClickType() ClickType {
	return k.ClickType.orShort()
}

// Accepts reports whether an event with the given key code and device
// satisfies this key.
func (k TriggerKey) Accepts(keyCode int, descriptor string, isExternal bool) bool {
	return k.KeyCode == keyCode && k.Device.Matches(descriptor, isExternal)
}

// Trigger is an ordered set of keys and the way they combine.
type Trigger struct {
	Keys []TriggerKey
	Mode Mode

	// ClickType applies to the whole combination in parallel mode. When
	// unspecified the first key's click type is used.
	ClickType ClickType
}

// Sequence builds a sequence trigger.
func Sequence(keys ...TriggerKey) Trigger {
	return Trigger{Keys: keys, Mode: ModeSequence}
}

// Parallel builds a parallel trigger.
func Parallel(keys ...TriggerKey) Trigger {
	return Trigger{Keys: keys, Mode: ModeParallel}
}

// WithClickType sets the mode-level click type.
func (t Trigger) WithClickType(c ClickType) Trigger {
	t.ClickType = c
	return t
}

// ParallelClickType resolves the click type applied to a parallel combination.
func (t Trigger) ParallelClickType() ClickType {
	if t.ClickType != ClickUnspecified {
		return t.ClickType
	}
	if len(t.Keys) == 0 {
		return ShortPress
	}
	return t.Keys[0].EffectiveClickType()
}

// HasKeyCode reports whether any key of the trigger has the key code.
func (t Trigger) HasKeyCode(keyCode int) bool {
	for _, k := range t.Keys {
		if k.KeyCode == keyCode {
			return true
		}
	}
	return false
}

// String renders the trigger for logs, e.g. "sequence[25/short 24/long]".
func (t Trigger) String() string {
	var b strings.Builder
	b.WriteString(t.Mode.String())
	b.WriteByte('[')
	for i, k := range t.Keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s/%s", KeyCodeName(k.KeyCode), k.EffectiveClickType())
	}
	b.WriteByte(']')
	if t.Mode == ModeParallel && t.ClickType != ClickUnspecified {
		b.WriteString(":" + t.ClickType.String())
	}
	return b.String()
}
