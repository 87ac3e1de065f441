package main

import "fmt"

const version = "0.1.0"

// VersionCmd prints the runtime's version string.
type VersionCmd struct{}

func (c *VersionCmd) Run(cctx *Context) error {
	fmt.Printf("nebula %s\n", version)
	return nil
}
