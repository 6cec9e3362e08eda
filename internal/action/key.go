package action

import (
	"context"
	"fmt"

	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/mapping"
)

// KeyHandler imitates a press of the key named by the action data, such as
// "VOLUME_UP" or "#187". The optional "device" argument sets the event's
// descriptor.
type KeyHandler struct {
	imitator detect.KeyImitator
}

// NewKeyHandler creates a key handler.
func NewKeyHandler(imitator detect.KeyImitator) *KeyHandler {
	return &KeyHandler{imitator: imitator}
}

// Handle imitates the key press.
func (h *KeyHandler) Handle(_ context.Context, a mapping.Action) error {
	if a.Data == "" {
		return ErrMissingData
	}
	code, err := mapping.ParseKeyCode(a.Data)
	if err != nil {
		return fmt.Errorf("key action: %w", err)
	}

	desc := a.Args["device"]
	h.imitator.ImitateKeyPress(detect.KeyEvent{
		KeyCode:    code,
		Action:     detect.KeyDown,
		Descriptor: desc,
		IsExternal: desc != "",
	})
	return nil
}
