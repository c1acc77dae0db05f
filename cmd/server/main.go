package main

import (
	"fmt"
	"os"

	"github.com/microgrid-sizing/backend/internal/cli"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	root := cli.NewRootCommand(cli.BuildInfo{Version: Version, BuildTime: BuildTime})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
