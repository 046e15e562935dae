// Package main provides the entry point for the markdex CLI.
package main

import (
	"os"

	"github.com/markdex/markdex/cmd/markdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
