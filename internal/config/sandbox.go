package config

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// sandboxLibs are the only standard libraries a manifest can use. os, io,
// package, debug and coroutine are never opened.
var sandboxLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// sandboxDisabledGlobals are base functions that load code, reach the
// filesystem or bypass the read-only platform table.
var sandboxDisabledGlobals = []string{
	"require",
	"module",
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"getfenv",
	"setfenv",
	"rawset",
	"collectgarbage",
}

// newSandboxedVM creates a Lua VM that can only evaluate declarative
// manifests. Execution is interrupted when ctx is cancelled.
func newSandboxedVM(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range sandboxLibs {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open lua library %q: %w", lib.name, err)
		}
	}

	for _, name := range sandboxDisabledGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetContext(ctx)
	return L, nil
}
