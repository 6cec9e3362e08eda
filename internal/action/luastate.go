package action

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// luaState wraps a gopher-lua state opened with the safe libraries only.
//
// gopher-lua's LState is not goroutine-safe; the mutex serializes Go callers.
type luaState struct {
	L *lua.LState

	mu     sync.Mutex
	closed bool
}

func newLuaState() *luaState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return &luaState{L: L}
}

// openSafeLibraries opens the libraries that cannot reach the file system
// or the process.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// doString executes code. ctx cancels a running script.
func (s *luaState) doString(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	return s.doWithRecovery(func() error {
		return s.L.DoString(code)
	})
}

// doFile executes the script at path.
func (s *luaState) doFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	return s.doWithRecovery(func() error {
		return s.L.DoFile(path)
	})
}

func (s *luaState) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

func (s *luaState) setGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.L.SetGlobal(name, value)
	}
}

func (s *luaState) registerModule(name string, funcs map[string]lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.L.SetGlobal(name, s.L.SetFuncs(s.L.NewTable(), funcs))
	}
}

func (s *luaState) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.L.Close()
		s.closed = true
	}
}
