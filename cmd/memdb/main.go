package main

import (
	"os"

	"github.com/conduit-lang/memdb/internal/cli/commands"
)

func main() {
	// Execute renders its own errors
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
