// Package pkgdef loads the package descriptor: the Lua file that names the
// rez package, the release templates and archive formats per OS, the
// environment exposed to consumers and the optional verification material.
//
// # Descriptor
//
// A descriptor assigns a global table named pkg:
//
//	pkg = {
//	  name = "IntelOpenImageDenoise",
//	  version = "2.3.1",
//	  uuid = "com.intel.oidn",
//	  release = {
//	    filename = "oidn-{major}.{minor}.{patch}.{arch}.{os}.{ext}",
//	    url = "https://github.com/RenderKit/oidn/releases/download/v{major}.{minor}.{patch}/{filename}",
//	    archives = { windows = "zip" },
//	  },
//	  env = { root = "OIDN_ROOT", dir = "oidn", bin = "bin" },
//	  executables = {
//	    windows = { oidnDenoise = "oidnDenoise.exe" },
//	  },
//	}
//
// The OS keys of release.archives are the supported platforms. A build on
// any other OS is rejected before any I/O.
//
// # Sandbox
//
// Descriptor code runs in a gopher-lua VM without the os, io, package and
// debug libraries and without the code loading builtins. A read-only
// platform table (see the platform package) is available so descriptors can
// branch on the host.
//
// # Validation
//
// After extraction the descriptor is marshalled to JSON and validated
// against the embedded package.schema.json, then checked for rules the
// schema cannot express.
//
// When the rez source directory holds a package.lua it is used; otherwise
// the embedded default for OIDN is loaded.
package pkgdef
