package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/nebula-lang/nebula/pkg/compiler"
	"github.com/nebula-lang/nebula/pkg/vm"
)

// ReplCmd starts an interactive read-eval-print loop. Each complete
// input (terminated by `;` or a blank line) is compiled as a one-shot
// program and run as a fresh statement list on a Process that persists
// across inputs, so `Dim Shared`/bare-global assignments and any hooks
// or keymaps registered along the way stick around for later lines —
// that state all lives on the shared World, not the Process.
type ReplCmd struct {
	History string `default:"" placeholder:"<path>" help:"file to persist line-editing history across sessions"`
}

func (c *ReplCmd) Run(cctx *Context) error {
	fmt.Println("nebula repl — statements end with ';' or a blank line, :quit to exit")

	w, closeWorld, err := newWorld(cctx)
	if err != nil {
		return err
	}
	defer closeWorld()
	p := vm.NewProcess(w, w.AllocateProcessID(), "repl", "default", false)

	level := compiler.OptimizeOff
	if cctx.Optimize != 0 {
		level = compiler.OptimizeDefault
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := c.History
	if historyPath == "" {
		if home, herr := os.UserHomeDir(); herr == nil {
			historyPath = home + "/.nebula_history"
		}
	}
	if historyPath != "" {
		if f, herr := os.Open(historyPath); herr == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	var buf strings.Builder
	for {
		prompt := "nebula> "
		if buf.Len() != 0 {
			prompt = "....> "
		}

		input, rerr := line.Prompt(prompt)
		if rerr != nil {
			if errors.Is(rerr, liner.ErrPromptAborted) || errors.Is(rerr, io.EOF) {
				break
			}
			return rerr
		}

		if buf.Len() == 0 {
			switch strings.TrimSpace(input) {
			case ":quit", ":exit":
				c.saveHistory(line, historyPath)
				return nil
			case "":
				continue
			}
		}
		line.AppendHistory(input)

		buf.WriteString(input)
		buf.WriteString("\n")

		trimmed := strings.TrimSpace(buf.String())
		if !strings.HasSuffix(trimmed, ";") && input != "" {
			continue
		}

		c.eval(p, level, trimmed)
		buf.Reset()
	}

	c.saveHistory(line, historyPath)
	return nil
}

func (c *ReplCmd) saveHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}

func (c *ReplCmd) eval(p *vm.Process, level compiler.OptimizeLevel, source string) {
	bco, err := compiler.Compile(source, "<repl>", level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
		return
	}
	if err := p.Start(bco, nil); err != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %s\n", err.Error())
		return
	}
	if rerr := p.Run(); rerr != nil {
		fmt.Fprintf(os.Stderr, "runtime error: %s\n", rerr.Error())
		return
	}
	if top, ok := p.StackTop(); ok {
		fmt.Println("=>", top.String())
	}
}
