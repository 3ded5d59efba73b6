package pkgdef

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxLuaVM removes everything that lets descriptor code reach outside
// the VM: the os, io, package and debug libraries and the code loading
// builtins. string, table and math remain.
func sandboxLuaVM(L *lua.LState) {
	for _, name := range []string{
		"os", "io", "package", "debug",
		"require", "dofile", "loadfile", "load", "loadstring",
		"collectgarbage",
	} {
		L.SetGlobal(name, lua.LNil)
	}
}

// newSandboxedVM creates a Lua VM with sandboxing applied.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
