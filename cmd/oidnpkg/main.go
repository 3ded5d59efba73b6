package main

import (
	"os"

	"github.com/rezpkg/oidnpkg/internal/cli"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	cli.Version = Version
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
