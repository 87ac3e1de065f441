package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
)

// DisasmCmd renders a .nbc bytecode file as a symbolic instruction
// listing, colorized when stdout is a terminal.
type DisasmCmd struct {
	File string `arg:"" help:"bytecode (.nbc) file to disassemble"`
}

func (c *DisasmCmd) Run(cctx *Context) error {
	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.File, err)
	}
	defer f.Close()

	dec := value.NewDecoder(f)
	if _, _, err := dec.ReadTagPayload(); err != nil {
		return fmt.Errorf("decoding %s: %w", c.File, err)
	}
	bco, err := bytecode.DecodeBCO(dec)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", c.File, err)
	}

	colorize := isatty.IsTerminal(os.Stdout.Fd())
	bytecode.Disassemble(os.Stdout, bco, colorize)
	return nil
}
