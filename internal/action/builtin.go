package action

import (
	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/logging"
)

// Built-in action types.
const (
	TypeLog     = "log"
	TypeCommand = "command"
	TypeLua     = "lua"
	TypeKey     = "key"
)

// NewDefaultRegistry creates a registry with every built-in handler.
// The key handler and the Lua key function are only available when
// imitator is non-nil.
func NewDefaultRegistry(log *logging.Logger, imitator detect.KeyImitator, opts ...CommandOption) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	r := NewRegistry(log.WithComponent("action"))

	// Registration into a fresh registry cannot collide.
	_ = r.Register(TypeLog, NewLogHandler(log))
	_ = r.Register(TypeCommand, NewCommandHandler(log, opts...))
	_ = r.Register(TypeLua, NewLuaHandler(log, imitator))
	if imitator != nil {
		_ = r.Register(TypeKey, NewKeyHandler(imitator))
	}
	return r
}
