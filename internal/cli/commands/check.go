package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wewlang/wewc/internal/cli/config"
	"github.com/wewlang/wewc/internal/cli/output"
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Parse and type-check a source file without building",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			styles := output.NewStyles(cfg.NoColor)

			if _, _, err := compileFile(cfg, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styles.Success.Render("ok"), args[0])
			return nil
		},
	}
}
