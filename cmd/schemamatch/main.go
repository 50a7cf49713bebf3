// Package main provides the entry point for the schemamatch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/schemamatch/cmd/schemamatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
