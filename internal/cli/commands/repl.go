package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/wewlang/wewc/internal/backend/rustvm"
	"github.com/wewlang/wewc/internal/cli/config"
	"github.com/wewlang/wewc/internal/cli/output"
	"github.com/wewlang/wewc/internal/compile"
	"github.com/wewlang/wewc/internal/stdlib"
	"github.com/wewlang/wewc/internal/vm"
	"github.com/wewlang/wewc/pkg/ir"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Evaluate wew expressions interactively",
		Long: `Start an interactive session. Declarations (fn, var) persist for the
rest of the session; any other input is compiled, run, and its value
printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			return runREPL(cmd, cfg)
		},
	}
}

// session holds the declarations accumulated over a REPL session.
type session struct {
	cfg   *config.Config
	decls []string
	// showIR prints the IR of each evaluated program.
	showIR bool
}

func runREPL(cmd *cobra.Command, cfg *config.Config) error {
	styles := output.NewStyles(cfg.NoColor)
	w := cmd.OutOrStdout()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wew> ",
		HistoryFile:     ".wewc_history",
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(w, "wewc %s repl, %d registers\n", cmd.Root().Version, cfg.RegCount)
	fmt.Fprintln(w, "Type .help for commands, .quit to exit")
	fmt.Fprintln(w)

	s := &session{cfg: cfg}
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := s.dotCommand(w, line); quit {
				return nil
			}
			continue
		}

		if err := s.eval(w, styles, line); err != nil {
			fmt.Fprintf(w, "%s %v\n", styles.Error.Render("error:"), err)
		}
	}
}

func (s *session) dotCommand(w io.Writer, line string) (quit bool) {
	switch line {
	case ".quit", ".exit":
		return true
	case ".help":
		fmt.Fprintln(w, ".list   show session declarations")
		fmt.Fprintln(w, ".reset  drop session declarations")
		fmt.Fprintln(w, ".ir     toggle printing IR for each input")
		fmt.Fprintln(w, ".quit   exit")
	case ".list":
		for _, d := range s.decls {
			fmt.Fprintln(w, d)
		}
	case ".reset":
		s.decls = nil
	case ".ir":
		s.showIR = !s.showIR
		fmt.Fprintf(w, "ir %v\n", s.showIR)
	default:
		fmt.Fprintf(w, "unknown command %s\n", line)
	}
	return false
}

// eval compiles and runs one line of input. Declarations are kept for
// later lines, anything else runs as the body of a fresh main.
func (s *session) eval(w io.Writer, styles *output.Styles, line string) error {
	if strings.HasPrefix(line, "fn ") || strings.HasPrefix(line, "var ") {
		return s.declare(line)
	}

	// an expression evaluates to main's return value; inputs with no
	// value, like calls to void functions, run for their effects
	prog, comp, err := s.assemble(s.program("return (" + line + ")::u8"))
	hasValue := err == nil
	if err != nil {
		prog, comp, err = s.assemble(s.program(line + "\nreturn 0"))
		if err != nil {
			return err
		}
	}

	if s.showIR {
		for _, obj := range comp.Objects() {
			fmt.Fprintf(w, "%s\n", styles.Header.Render(obj.Name+":"))
			// the compiler is consumed by assembly, so this shows the
			// allocated form
			fmt.Fprint(w, ir.Dump(obj.Code))
		}
	}

	var out bytes.Buffer
	m, err := vm.New(prog.Binary, s.cfg.RegCount, strings.NewReader(""), &out)
	if err != nil {
		return err
	}
	if err := m.Run(); err != nil {
		return err
	}
	if out.Len() > 0 {
		fmt.Fprint(w, out.String())
		if !strings.HasSuffix(out.String(), "\n") {
			fmt.Fprintln(w)
		}
	}
	if hasValue {
		fmt.Fprintln(w, styles.Success.Render(fmt.Sprintf("= %d", m.ReturnValue(8))))
	}
	return nil
}

// declare keeps a declaration if the session still compiles with it.
func (s *session) declare(line string) error {
	candidate := append(append([]string{}, s.decls...), line)
	src := strings.Join(candidate, "\n") + "\nfn wewc_repl_probe() -> u1 { return 0 }"
	if !s.cfg.NoStdlib {
		src = stdlib.Append(src)
	}
	if _, err := compile.CompileSource("repl", src); err != nil {
		return err
	}
	s.decls = candidate
	return nil
}

func (s *session) program(body string) string {
	src := strings.Join(s.decls, "\n") + "\nfn main() -> u8 {\n" + body + "\n}"
	if !s.cfg.NoStdlib {
		src = stdlib.Append(src)
	}
	return src
}

func (s *session) assemble(src string) (*rustvm.Program, *compile.Compiler, error) {
	comp, err := compile.CompileSource("repl", src)
	if err != nil {
		return nil, nil, err
	}
	prog, err := rustvm.Assemble(comp, s.cfg.RegCount)
	if err != nil {
		return nil, nil, err
	}
	return prog, comp, nil
}
