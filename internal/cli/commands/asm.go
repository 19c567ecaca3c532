package commands

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wewlang/wewc/internal/backend/rustvm"
	"github.com/wewlang/wewc/internal/cli/config"
	"github.com/wewlang/wewc/internal/cli/output"
)

// NewAsmCommand creates the asm command.
func NewAsmCommand() *cobra.Command {
	var offsetsOnly bool

	cmd := &cobra.Command{
		Use:   "asm <file>",
		Short: "Print the encoded machine instructions and image layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			styles := output.NewStyles(cfg.NoColor)
			w := cmd.OutOrStdout()

			if !offsetsOnly {
				comp, _, err := compileFile(cfg, args[0])
				if err != nil {
					return err
				}
				objects, err := rustvm.Encode(comp, cfg.RegCount)
				if err != nil {
					return err
				}
				for _, obj := range objects {
					fmt.Fprintf(w, "%s\n", styles.Header.Render(obj.Name+":"))
					for _, instr := range obj.Instrs {
						fmt.Fprintf(w, "    %s\n", instr)
					}
					fmt.Fprintln(w)
				}
			}

			// assembling consumes a compiler, so lay the image out from
			// a fresh compilation
			prog, _, _, err := assembleFile(cfg, args[0])
			if err != nil {
				return err
			}

			names := make([]string, 0, len(prog.Offsets))
			for name := range prog.Offsets {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				return prog.Offsets[names[i]] < prog.Offsets[names[j]]
			})

			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Offset", "Symbol"})
			for _, name := range names {
				t.AppendRow(table.Row{fmt.Sprintf("0x%04x", prog.Offsets[name]), name})
			}
			t.Render()
			fmt.Fprintf(w, "image size: %d bytes\n", len(prog.Binary))
			return nil
		},
	}

	cmd.Flags().BoolVar(&offsetsOnly, "offsets", false, "Only print the symbol offset table")

	return cmd
}
