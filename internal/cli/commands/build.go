package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/wewlang/wewc/internal/cli/config"
	"github.com/wewlang/wewc/internal/cli/output"
	"github.com/wewlang/wewc/internal/state"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Output string
	Watch  bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build <file>",
		Short: "Compile a wew source file to a binary image",
		Long: `Compile a wew source file and write the binary image next to it.

Every build, successful or not, is recorded in the build history database.`,
		Example: `  # Compile main.wew to main.bin
  wewc build main.wew

  # Choose the output path
  wewc build main.wew -o build/main.img

  # Rebuild whenever the file changes
  wewc build main.wew --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if opts.Watch {
				return watchAndBuild(cmd, cfg, args[0], opts)
			}
			return runBuild(cmd, cfg, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output path (default: source with .bin extension)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Rebuild when the source file changes")

	return cmd
}

func outputPath(input, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".bin"
}

func runBuild(cmd *cobra.Command, cfg *config.Config, input string, opts *BuildOptions) error {
	styles := output.NewStyles(cfg.NoColor)
	start := time.Now()

	prog, comp, hash, err := assembleFile(cfg, input)
	record := &state.Build{
		SourceFile: input,
		SourceHash: hash,
		RegCount:   cfg.RegCount,
		Duration:   time.Since(start),
	}

	if err != nil {
		record.Status = state.BuildStatusFailed
		record.Error = err.Error()
		recordBuild(cfg, record)
		return err
	}

	out := outputPath(input, opts.Output)
	if err := os.WriteFile(out, prog.Binary, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	record.Status = state.BuildStatusOK
	record.OutputPath = out
	record.BinarySize = len(prog.Binary)
	record.Functions, record.DataBytes = imageStats(comp)
	record.Duration = time.Since(start)
	recordBuild(cfg, record)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s -> %s\n", styles.Success.Render("built"), input, out)
	fmt.Fprintln(w, styles.Muted.Render(fmt.Sprintf(
		"  %d bytes, %d functions, %d data bytes, %d registers, %s",
		record.BinarySize, record.Functions, record.DataBytes,
		cfg.RegCount, record.Duration.Round(time.Microsecond))))
	return nil
}

// recordBuild writes the record, but never fails the build over history
// bookkeeping.
func recordBuild(cfg *config.Config, b *state.Build) {
	store, err := openStore(cfg)
	if err != nil {
		slog.Warn("build not recorded", slog.String("error", err.Error()))
		return
	}
	defer store.Close()
	if err := store.RecordBuild(b); err != nil {
		slog.Warn("build not recorded", slog.String("error", err.Error()))
	}
}

// watchAndBuild rebuilds on every change to the source file until
// interrupted. Editors replace files rather than writing in place, so the
// watch covers the directory and filters on the file name.
func watchAndBuild(cmd *cobra.Command, cfg *config.Config, input string, opts *BuildOptions) error {
	styles := output.NewStyles(cfg.NoColor)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(input)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	build := func() {
		if err := runBuild(cmd, cfg, input, opts); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", styles.Error.Render("error:"), err)
		}
	}
	build()
	fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("watching "+input))

	// debounce bursts of events from a single save
	var pending *time.Timer
	rebuild := make(chan struct{}, 1)
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-rebuild:
			build()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(input) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case rebuild <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", styles.Error.Render("watch error:"), err)
		}
	}
}
