package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"

	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/compiler"
	"github.com/nebula-lang/nebula/pkg/scheduler"
	"github.com/nebula-lang/nebula/pkg/value"
)

// RunCmd compiles (if needed) and runs one script file as a default-kind
// Process, driven to completion by a single-group Scheduler.
type RunCmd struct {
	File string `arg:"" help:"script (.neb) or bytecode (.nbc) file to run"`
}

func (c *RunCmd) Run(cctx *Context) error {
	entry, err := loadEntry(c.File, cctx.Optimize)
	if err != nil {
		return err
	}
	if cctx.Debug {
		spew.Dump(entry)
	}

	w, closeWorld, err := newWorld(cctx)
	if err != nil {
		return err
	}
	defer closeWorld()

	s := scheduler.New(w, cctx.Logger)
	p, verr := s.Spawn(entry, scheduler.SpawnOptions{Name: filepath.Base(c.File), Kind: "default"})
	if verr != nil {
		return fmt.Errorf("spawn: %w", verr)
	}

	if err := s.Run(context.Background()); err != nil {
		return err
	}
	if p.LastError != nil {
		return fmt.Errorf("runtime error: %s", p.LastError.Error())
	}
	return nil
}

// loadEntry reads filename and returns its top-level BCO, compiling
// source (anything not ending .nbc) at the given optimizer level or
// decoding a pre-compiled bytecode file directly.
func loadEntry(filename string, optimize int) (*bytecode.BCO, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}

	if filepath.Ext(filename) == ".nbc" {
		dec := value.NewDecoder(bytes.NewReader(data))
		if _, _, err := dec.ReadTagPayload(); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", filename, err)
		}
		return bytecode.DecodeBCO(dec)
	}

	level := compiler.OptimizeOff
	if optimize != 0 {
		level = compiler.OptimizeDefault
	}
	return compiler.Compile(string(data), filename, level)
}
