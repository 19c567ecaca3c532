// Package cli provides the command-line interface for wewc.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wewlang/wewc/internal/cli/commands"
	"github.com/wewlang/wewc/internal/cli/config"
)

// Version is set at build time.
var Version = "0.1.0"

var cfgFile string

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wewc",
		Short: "wewc - compiler for the wew language",
		Long: `wewc compiles wew source files into binary images for a 16-bit
register machine and can execute them on the built-in interpreter.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			setupLogging(cfg.Verbose)
			cmd.SetContext(config.NewContext(cmd.Context(), cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./wewc.yaml)")
	rootCmd.PersistentFlags().Int("reg-count", config.DefaultRegCount, "Number of general purpose registers to compile for")
	rootCmd.PersistentFlags().String("state-path", config.DefaultStateFile, "Path to the build history database")
	rootCmd.PersistentFlags().Bool("no-stdlib", false, "Do not append the bundled standard library")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable styled output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewIRCommand())
	rootCmd.AddCommand(commands.NewAsmCommand())
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewREPLCommand())
	rootCmd.AddCommand(commands.NewBuildsCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version))

	return rootCmd
}

// setupLogging points slog at stderr. Debug messages only appear under
// --verbose.
func setupLogging(verbose bool) {
	var h slog.Handler
	if verbose {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		h = slog.NewTextHandler(io.Discard, nil)
	}
	slog.SetDefault(slog.New(h))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
