// The main package for the ricwatch executable.
package main

import (
	"github.com/akozlov/ricwatch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
