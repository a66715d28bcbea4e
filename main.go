// Package main is the entry point for the pulse observability daemon and CLI.
package main

import (
	"os"

	"firestige.xyz/pulse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
