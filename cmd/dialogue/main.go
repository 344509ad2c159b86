// Package main is the entry point for the dialogue command.
package main

import (
	"os"

	"github.com/capitalize-ai/persona-dialogue/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
