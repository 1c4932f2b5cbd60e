// cmdlens is the command-line client for recording usage and querying
// statistics, patterns and suggestions.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/runger/cmdlens/internal/cmd"
	"github.com/runger/cmdlens/internal/picker"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, picker.ErrCancelled) {
			fmt.Fprintf(os.Stderr, "cmdlens: %v\n", err)
		}
		os.Exit(1)
	}
}
