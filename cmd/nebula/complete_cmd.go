package main

import (
	"fmt"

	"github.com/nebula-lang/nebula/pkg/completion"
	"github.com/nebula-lang/nebula/pkg/world"
)

// CompleteCmd lists completion candidates for a partial script line,
// exercising the completion package from the command line rather than a
// UI text box.
type CompleteCmd struct {
	Line string `arg:"" help:"partial script line, cursor at the end of the string"`
}

func (c *CompleteCmd) Run(cctx *Context) error {
	w := world.NewWorld(cctx.Logger)
	list := completion.Complete(c.Line, w.GlobalContexts(), w, nil)
	if list.IsEmpty() {
		fmt.Println("(no candidates)")
		return nil
	}
	for _, word := range list.Words() {
		fmt.Println(word)
	}
	fmt.Println("---")
	fmt.Println("longest common prefix:", list.ImmediateCompletion())
	return nil
}
