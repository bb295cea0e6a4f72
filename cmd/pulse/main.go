// Package main is the entry point for the pulse CLI.
package main

import (
	"os"

	"github.com/UncleTupelo/pulse/cmd/pulse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
