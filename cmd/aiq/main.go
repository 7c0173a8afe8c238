package main

import (
	"os"

	"github.com/wonny/aiqdata/cmd/aiq/commands"
)

// main is the entry point for the aiq CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/aiq [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
