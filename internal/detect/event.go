package detect

import (
	"fmt"

	"github.com/dshills/keymapper/internal/mapping"
)

// KeyAction is the direction of a key event.
type KeyAction uint8

const (
	KeyDown KeyAction = iota
	KeyUp
)

// String returns "down" or "up".
func (a KeyAction) String() string {
	if a == KeyUp {
		return "up"
	}
	return "down"
}

// KeyEvent is one raw key transition from an input device.
type KeyEvent struct {
	KeyCode int
	Action  KeyAction

	// Descriptor identifies the physical device. Empty for built-in devices.
	Descriptor string
	IsExternal bool

	// Repeat marks an auto-repeated down of a key that is still held.
	Repeat bool

	MetaState int
	DeviceID  int
	ScanCode  int

	// DeviceName is informational and only used when recording triggers.
	DeviceName string
}

// String renders the event for logs.
func (e KeyEvent) String() string {
	dev := "internal"
	if e.IsExternal {
		dev = e.Descriptor
	}
	return fmt.Sprintf("%s %s (%s)", mapping.KeyCodeName(e.KeyCode), e.Action, dev)
}

// Firing reports that a key map's trigger was detected.
type Firing struct {
	KeyMapID  int64
	KeyMapUID string
	ClickType mapping.ClickType
	Trigger   mapping.Trigger
}
