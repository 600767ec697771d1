package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/gokernel/internal/config"
	"github.com/itsmostafa/gokernel/internal/render"
	"github.com/itsmostafa/gokernel/internal/session"
)

var jsonOutput bool

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Evaluate files as input blocks",
	Long: `Evaluate each file as one input block, in order, in a single session.
With no files the whole of standard input is one block.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			cfg.Output = config.OutputJSON
		}

		k, err := openKernel(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		defer k.Close()

		if len(args) == 0 {
			block, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			return runBlock(cmd, k, string(block))
		}

		for _, path := range args {
			block, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read input file: %w", err)
			}
			if err := runBlock(cmd, k, string(block)); err != nil {
				return err
			}
		}
		return nil
	},
}

func runBlock(cmd *cobra.Command, k *kernel, block string) error {
	res, err := k.session.Run(cmd.Context(), block)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), res)
}

func writeResult(w io.Writer, res *session.Result) error {
	if cfg.Output == config.OutputJSON {
		return render.JSON(w, res)
	}
	render.Pretty(w, res)
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "Write one JSON document per block")

	rootCmd.AddCommand(runCmd)
}
