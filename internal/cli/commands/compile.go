// Package commands implements the wewc subcommands.
package commands

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/wewlang/wewc/internal/backend/rustvm"
	"github.com/wewlang/wewc/internal/cli/config"
	"github.com/wewlang/wewc/internal/compile"
	"github.com/wewlang/wewc/internal/state"
	"github.com/wewlang/wewc/internal/stdlib"
)

// loadSource reads a wew source file and appends the standard library
// unless disabled. The returned hash covers the file as read, not the
// appended library.
func loadSource(cfg *config.Config, path string) (src, hash string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	sum := sha256.Sum256(raw)
	src = string(raw)
	if !cfg.NoStdlib {
		src = stdlib.Append(src)
	}
	return src, hex.EncodeToString(sum[:]), nil
}

// compileFile compiles a source file to internal form without assembling.
func compileFile(cfg *config.Config, path string) (*compile.Compiler, string, error) {
	src, hash, err := loadSource(cfg, path)
	if err != nil {
		return nil, "", err
	}
	comp, err := compile.CompileSource(path, src)
	if err != nil {
		return nil, hash, err
	}
	return comp, hash, nil
}

// assembleFile compiles a source file all the way to a binary image.
func assembleFile(cfg *config.Config, path string) (*rustvm.Program, *compile.Compiler, string, error) {
	comp, hash, err := compileFile(cfg, path)
	if err != nil {
		return nil, nil, hash, err
	}
	prog, err := rustvm.Assemble(comp, cfg.RegCount)
	if err != nil {
		return nil, nil, hash, err
	}
	return prog, comp, hash, nil
}

// openStore opens the build history database.
func openStore(cfg *config.Config) (*state.SQLiteStore, error) {
	s := state.NewSQLiteStore(slog.Default())
	if err := s.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return s, nil
}

// imageStats summarizes a compiled program for build records.
func imageStats(comp *compile.Compiler) (functions, dataBytes int) {
	fns, _ := comp.Functions()
	for _, item := range comp.Data() {
		dataBytes += item.Size()
	}
	return len(fns), dataBytes
}
