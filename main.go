// ./main.go
package main

import (
	"github.com/nkratz/pagepilot/cmd"
)

// main is the entry point for the PagePilot server.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
