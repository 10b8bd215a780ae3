// Command tstate runs, checks and inspects store scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tstate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
