package main

import (
	"context"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"

	"github.com/nebula-lang/nebula/internal/shipdemo"
	"github.com/nebula-lang/nebula/pkg/compiler"
	"github.com/nebula-lang/nebula/pkg/scheduler"
)

// DemoCmd runs a script against the illustrative ship/planet Context
// fixture (internal/shipdemo), so a script author can try `Ship1.LOC.X`-
// style property access without a real game host attached.
type DemoCmd struct {
	File string `arg:"" help:"script file to run against the ship/planet demo universe"`
}

func (c *DemoCmd) Run(cctx *Context) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.File, err)
	}

	w, closeWorld, err := newWorld(cctx)
	if err != nil {
		return err
	}
	defer closeWorld()
	shipdemo.NewUniverse().Install(w)

	level := compiler.OptimizeOff
	if cctx.Optimize != 0 {
		level = compiler.OptimizeDefault
	}
	bco, err := compiler.Compile(string(data), c.File, level)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if cctx.Debug {
		spew.Dump(bco)
	}

	s := scheduler.New(w, cctx.Logger)
	p, verr := s.Spawn(bco, scheduler.SpawnOptions{Name: "demo", Kind: "ship"})
	if verr != nil {
		return fmt.Errorf("spawn: %w", verr)
	}
	if err := s.Run(context.Background()); err != nil {
		return err
	}
	if p.LastError != nil {
		return fmt.Errorf("runtime error: %s", p.LastError.Error())
	}
	if top, ok := p.StackTop(); ok {
		fmt.Println(top.String())
	}
	return nil
}
