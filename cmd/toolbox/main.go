// Command toolbox manages the durable checkout cart of one device.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/toolbox/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
