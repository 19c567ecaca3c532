package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wewlang/wewc/internal/cli/config"
	"github.com/wewlang/wewc/internal/cli/output"
	"github.com/wewlang/wewc/internal/state"
)

// NewBuildsCommand creates the builds command.
func NewBuildsCommand() *cobra.Command {
	var (
		source string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "builds",
		Short: "List recorded builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			styles := output.NewStyles(cfg.NoColor)

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			builds, err := store.ListBuilds(source, limit)
			if err != nil {
				return err
			}
			if len(builds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no builds recorded")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Source", "Status", "Size", "Regs", "Duration", "When"})
			for _, b := range builds {
				status := styles.Success.Render(string(b.Status))
				if b.Status == state.BuildStatusFailed {
					status = styles.Error.Render(string(b.Status))
				}
				t.AppendRow(table.Row{
					shortID(b.ID),
					b.SourceFile,
					status,
					b.BinarySize,
					b.RegCount,
					b.Duration.Round(time.Microsecond),
					b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Only show builds of this source file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of builds to show")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
