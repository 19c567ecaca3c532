package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wewlang/wewc/internal/cli/config"
	"github.com/wewlang/wewc/internal/cli/output"
	"github.com/wewlang/wewc/internal/vm"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var maxSteps int

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Compile a source file and execute it",
		Long: `Compile a wew source file and execute it on the built-in interpreter.
The program's character IO is connected to stdin and stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			styles := output.NewStyles(cfg.NoColor)

			prog, _, _, err := assembleFile(cfg, args[0])
			if err != nil {
				return err
			}

			m, err := vm.New(prog.Binary, cfg.RegCount, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if maxSteps > 0 {
				m.MaxSteps = maxSteps
			}
			if err := m.Run(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render(fmt.Sprintf(
				"main returned %d after %d steps", m.ReturnValue(1), m.Steps())))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Abort after this many instructions (0 for the default limit)")

	return cmd
}
