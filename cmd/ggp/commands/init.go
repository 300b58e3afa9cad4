package commands

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nnfission/go-gemm-partition/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ggp configuration interactively",
	Long: `Guides you through setting up ggp configuration step by step.
Creates a project config file with the enabled precisions and operators.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func init() {
	RootCmd.AddCommand(initCmd)
}

func runInit() error {
	cfg := config.DefaultConfig()

	precisions := cfg.EnabledPrecisions
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Enabled precisions").
				Description("Which precision regimes may the backend execute?").
				Options(
					huh.NewOption("Full precision (fp32)", config.PrecisionFP32).Selected(true),
					huh.NewOption("Static quantization", config.PrecisionStaticQuant).Selected(true),
					huh.NewOption("Dynamic activation quantization", config.PrecisionDynamicQuant).Selected(true),
				).
				Value(&precisions),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	operators := cfg.Operators
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Operator families").
				Description("Which GEMM-like operators should be resolved?").
				Options(
					huh.NewOption("linear", config.OperatorLinear).Selected(true),
					huh.NewOption("convolution", config.OperatorConvolution).Selected(true),
					huh.NewOption("addmm", config.OperatorAddmm).Selected(true),
					huh.NewOption("mm", config.OperatorMM).Selected(true),
				).
				Value(&operators),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	force := false
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Force non-static weights for fp32 linear?").
				Description("Keeps fp32 linear weights out of partitions so they stay runtime inputs.").
				Value(&force),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.EnabledPrecisions = precisions
	cfg.Operators = operators
	cfg.ForceNonStaticWeights = force

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveProject(); err != nil {
		return err
	}
	fmt.Println("Wrote .ggp/config.yaml")
	return nil
}
