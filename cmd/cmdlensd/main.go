// cmdlensd is the cmdlens background daemon. It owns the usage database
// and serves the usage API on a Unix socket until SIGINT or SIGTERM.
package main

import (
	"fmt"
	"os"

	"github.com/runger/cmdlens/internal/cmd"
)

func main() {
	if err := cmd.NewDaemonRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cmdlensd: %v\n", err)
		os.Exit(1)
	}
}
