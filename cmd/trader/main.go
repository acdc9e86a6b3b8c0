package main

import (
	"os"

	"github.com/wonny/aegis-us/cmd/trader/commands"
)

// main is the entry point for the trader CLI
// ⭐ single CLI entry point: go run ./cmd/trader [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
