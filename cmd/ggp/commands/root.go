package commands

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "ggp",
	Short: "go-gemm-partition - GEMM cluster resolution for dataflow graphs",
	Long: `go-gemm-partition decides which matrix-multiply-family operations in a
dataflow graph can be delegated to the accelerator backend, and computes the
exact node cluster accompanying each accepted operation.

Commands:
  partition   Resolve clusters for every GEMM-like op in a graph
  inspect     Summarize a serialized graph
  init        Create a config file interactively
  doctor      Run health checks on configuration and cache state

Use "ggp [command] --help" for more information about a command.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}
