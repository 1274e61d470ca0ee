package action

import (
	"context"
	"fmt"
	"log"

	lua "github.com/yuin/gopher-lua"
)

// Lua runs a script in a fresh sandboxed state. The script sees a global
// table "chord" with the chord's name and a log(msg) function.
type Lua struct {
	Name   string
	Script string

	// Logf receives chord.log output. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Run implements Action.
func (a *Lua) Run(ctx context.Context) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	openSafeLibraries(L)
	L.SetGlobal("chord", a.module(L))

	if err := L.DoString(a.Script); err != nil {
		return fmt.Errorf("chord %q: lua: %w", a.Name, err)
	}
	return nil
}

func (a *Lua) module(L *lua.LState) *lua.LTable {
	logf := a.Logf
	if logf == nil {
		logf = log.Printf
	}
	mod := L.NewTable()
	mod.RawSetString("name", lua.LString(a.Name))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		logf("Action: chord %q: %s", a.Name, L.CheckString(1))
		return 0
	}))
	return mod
}

// openSafeLibraries opens base, table, string and math, and removes the
// base functions that load code from files or strings.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}
