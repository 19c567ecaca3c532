// Command wewc compiles wew programs for a 16-bit register machine.
package main

import (
	"os"

	"github.com/wewlang/wewc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
