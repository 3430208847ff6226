// Command prodsys compiles, runs and traces production rules.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/prodsys/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
