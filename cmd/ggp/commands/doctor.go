package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nnfission/go-gemm-partition/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [graph-file]",
	Short: "Run health checks on configuration and cache state",
	Long: `Checks which configuration file is in effect, validates it, and
verifies the report cache directory is usable. With a graph file argument
it also checks that the file is readable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graphPath := ""
		if len(args) == 1 {
			graphPath = args[0]
		}

		result := healthcheck.Check(graphPath)
		displayDoctorResult(result)

		if !result.Healthy() {
			return fmt.Errorf("health check failed")
		}
		return nil
	},
}

func displayDoctorResult(result *healthcheck.Result) {
	if result.ConfigPath != "" {
		fmt.Printf("Using config: %s (%s)\n\n", result.ConfigPath, result.ConfigScope)
	} else {
		fmt.Printf("Using config: built-in defaults\n\n")
	}

	for _, check := range result.Checks {
		fmt.Printf("%s %s", statusIcon(check.Status), check.Name)
		if check.Detail != "" {
			fmt.Printf(": %s", check.Detail)
		}
		fmt.Println()
	}
}

func statusIcon(status string) string {
	switch status {
	case "ok":
		return "✓"
	case "warning":
		return "◐"
	case "error":
		return "✗"
	default:
		return "?"
	}
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
