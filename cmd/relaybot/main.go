// Package main is the entry point for the relaybot CLI.
package main

import (
	"os"

	"github.com/iXty9/relaybot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
