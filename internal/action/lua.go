package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keymapper/internal/detect"
	"github.com/dshills/keymapper/internal/logging"
	"github.com/dshills/keymapper/internal/mapping"
)

// DefaultScriptTimeout bounds a single script run.
const DefaultScriptTimeout = 2 * time.Second

// LuaHandler runs Lua scripts in a fresh sandboxed state per action.
//
// The script sees a global table "action" with fields type, data and args,
// and a module "keymapper" with:
//
//	keymapper.log(msg)   log msg at info level
//	keymapper.key(name)  imitate a key press, if an imitator is set
//
// If the "file" argument is set the script is loaded from that path and
// Data is ignored.
type LuaHandler struct {
	timeout  time.Duration
	imitator detect.KeyImitator
	log      *logging.Logger
}

// NewLuaHandler creates a Lua handler. imitator may be nil.
func NewLuaHandler(log *logging.Logger, imitator detect.KeyImitator) *LuaHandler {
	return &LuaHandler{
		timeout:  DefaultScriptTimeout,
		imitator: imitator,
		log:      log.WithComponent("action.lua"),
	}
}

// SetTimeout sets the per-script timeout.
func (h *LuaHandler) SetTimeout(d time.Duration) {
	h.timeout = d
}

// Handle runs the script.
func (h *LuaHandler) Handle(ctx context.Context, a mapping.Action) error {
	file := a.Args["file"]
	if file == "" && a.Data == "" {
		return ErrMissingData
	}

	state := newLuaState()
	defer state.close()

	state.setGlobal("action", actionTable(state.L, a))
	state.registerModule("keymapper", map[string]lua.LGFunction{
		"log": h.luaLog,
		"key": h.luaKey,
	})

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var err error
	if file != "" {
		err = state.doFile(ctx, file)
	} else {
		err = state.doString(ctx, a.Data)
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("lua script timed out after %s: %w", h.timeout, err)
		}
		return fmt.Errorf("lua script: %w", err)
	}
	return nil
}

func actionTable(L *lua.LState, a mapping.Action) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(a.Type))
	tbl.RawSetString("data", lua.LString(a.Data))

	args := L.NewTable()
	for k, v := range a.Args {
		args.RawSetString(k, lua.LString(v))
	}
	tbl.RawSetString("args", args)
	return tbl
}

func (h *LuaHandler) luaLog(L *lua.LState) int {
	h.log.Info("%s", L.CheckString(1))
	return 0
}

func (h *LuaHandler) luaKey(L *lua.LState) int {
	name := L.CheckString(1)
	code, err := mapping.ParseKeyCode(name)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if h.imitator != nil {
		h.imitator.ImitateKeyPress(detect.KeyEvent{KeyCode: code, Action: detect.KeyDown})
	}
	return 0
}
