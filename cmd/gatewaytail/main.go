// Command gatewaytail feeds gateway frames through a dispatch router and
// prints what the router delivers.
package main

import (
	"fmt"
	"os"

	"github.com/bjaus/gateway/dispatch/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
