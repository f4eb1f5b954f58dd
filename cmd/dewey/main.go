// Package main provides the entry point for the dewey CLI.
package main

import (
	"os"

	"github.com/dewey-index/dewey/cmd/dewey/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCodeFor(err))
	}
}
