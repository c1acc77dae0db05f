// Package cli holds the command line interface of the sizing service.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo is stamped at build time.
type BuildInfo struct {
	Version   string
	BuildTime string
}

// NewRootCommand builds the command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	if info.Version == "" {
		info.Version = "dev"
	}

	var configPath string
	root := &cobra.Command{
		Use:   "microgrid",
		Short: "Microgrid sizing optimization service",
		Long: "Runs the microgrid sizing optimizer over HTTP or against local input files.\n" +
			"Every run gets its own workspace holding the inputs and the reports the optimizer writes.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: info.Version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML or JSON config file")

	root.AddCommand(newServeCommand(&configPath, info))
	root.AddCommand(newRunCommand(&configPath))
	root.AddCommand(newVersionCommand(info))
	return root
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "microgrid %s (built %s, %s/%s, %s)\n",
				info.Version, orUnknown(info.BuildTime), runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
