// cmd/main.go is the application entry point.
// It wires together all layers behind the events CLI.
package main

import (
	"fmt"
	"os"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd(fmt.Sprintf("%s (commit: %s)", version, commit)).Execute(); err != nil {
		os.Exit(1)
	}
}
