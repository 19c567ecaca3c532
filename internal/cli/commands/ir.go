package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wewlang/wewc/internal/cli/config"
	"github.com/wewlang/wewc/internal/cli/output"
	"github.com/wewlang/wewc/pkg/ir"
)

// NewIRCommand creates the ir command.
func NewIRCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ir <file>",
		Short: "Print the intermediate representation of each object",
		Long: `Compile a source file and print the register IR of every toplevel
block and function, before register allocation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			styles := output.NewStyles(cfg.NoColor)

			comp, _, err := compileFile(cfg, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, obj := range comp.Objects() {
				fmt.Fprintf(w, "%s\n", styles.Header.Render(obj.Name+":"))
				fmt.Fprint(w, ir.Dump(obj.Code))
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}
