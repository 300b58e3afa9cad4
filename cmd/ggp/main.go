// Package main implements the go-gemm-partition CLI (ggp).
// It provides commands for resolving GEMM clusters in serialized dataflow
// graphs and managing configuration.
package main

import (
	"os"

	"github.com/nnfission/go-gemm-partition/cmd/ggp/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Flags().BoolP("version", "v", false, "Print version information")
	commands.RootCmd.SetVersionTemplate(`ggp version {{.Version}}
`)
	commands.RootCmd.Version = version

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
