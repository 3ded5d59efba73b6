package platform

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestInjectPlatformTable_Windows(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	info := &Info{OS: OSWindows, Arch: ArchX64, OSRaw: "windows", ArchRaw: "AMD64"}
	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	tests := []struct {
		name string
		code string
		want lua.LValue
	}{
		{"os", `return platform.os`, lua.LString("windows")},
		{"arch", `return platform.arch`, lua.LString("x64")},
		{"os_raw", `return platform.os_raw`, lua.LString("windows")},
		{"arch_raw", `return platform.arch_raw`, lua.LString("AMD64")},
		{"is_windows", `return platform.is_windows`, lua.LTrue},
		{"is_linux", `return platform.is_linux`, lua.LFalse},
		{"is_macos", `return platform.is_macos`, lua.LFalse},
		{"is_x64", `return platform.is_x64`, lua.LTrue},
		{"is_arm64", `return platform.is_arm64`, lua.LFalse},
		{"distro_nil", `return platform.distro`, lua.LNil},
		{"when_true", `return platform.when(platform.is_windows, "zip")`, lua.LString("zip")},
		{"when_false", `return platform.when(platform.is_linux, "tar.gz")`, lua.LNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := L.DoString(tt.code); err != nil {
				t.Fatalf("DoString() error = %v", err)
			}
			got := L.Get(-1)
			L.Pop(1)
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestInjectPlatformTable_LinuxDistro(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	info := &Info{OS: OSLinux, Arch: ArchARM64, Distro: "ubuntu", Family: FamilyDebian, Version: "24.04"}
	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	if err := L.DoString(`return platform.distro.id .. "/" .. platform.distro.family .. "/" .. platform.distro.version`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if got := L.Get(-1).String(); got != "ubuntu/debian/24.04" {
		t.Errorf("distro = %q, want %q", got, "ubuntu/debian/24.04")
	}
}

func TestInjectPlatformTable_ReadOnly(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"modify_existing", `platform.os = "haiku"`},
		{"add_new_key", `platform.custom = true`},
		{"rawset_blocked_by_metatable", `setmetatable(platform, {})`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := lua.NewState()
			defer L.Close()

			if err := InjectPlatformTable(L, &Info{OS: OSWindows, Arch: ArchX64}); err != nil {
				t.Fatalf("InjectPlatformTable() error = %v", err)
			}

			err := L.DoString(tt.code)
			if err == nil {
				t.Fatal("expected error when modifying platform table")
			}
			if tt.name != "rawset_blocked_by_metatable" && !strings.Contains(err.Error(), "read-only") {
				t.Errorf("error = %v, want read-only error", err)
			}
		})
	}
}
