package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/compiler"
	"github.com/nebula-lang/nebula/pkg/value"
)

// CompileCmd compiles a .neb source file to a .nbc bytecode file, so a
// host can distribute pre-compiled scripts and skip parsing at load time.
type CompileCmd struct {
	In  string `arg:"" help:"source file to compile"`
	Out string `arg:"" optional:"" help:"output bytecode file (default: input with .nbc extension)"`
}

func (c *CompileCmd) Run(cctx *Context) error {
	out := c.Out
	if out == "" {
		ext := filepath.Ext(c.In)
		out = strings.TrimSuffix(c.In, ext) + ".nbc"
	}

	data, err := os.ReadFile(c.In)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.In, err)
	}

	level := compiler.OptimizeOff
	if cctx.Optimize != 0 {
		level = compiler.OptimizeDefault
	}
	bco, err := compiler.Compile(string(data), c.In, level)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer f.Close()

	enc := value.NewEncoder(f)
	if err := bytecode.EncodeBCO(enc, bco); err != nil {
		return fmt.Errorf("encoding bytecode: %w", err)
	}

	fmt.Printf("compiled %s -> %s\n", c.In, out)
	return nil
}
