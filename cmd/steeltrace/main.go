// Package main provides the entry point for the steeltrace CLI.
package main

import (
	"os"

	"github.com/steeltrace/steeltrace/cmd/steeltrace/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
