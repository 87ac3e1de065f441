package compiler

import (
	"fmt"
	"strings"

	"github.com/nebula-lang/nebula/pkg/bytecode"
)

// Compile runs the full lexer-to-bytecode pipeline over source at the
// given optimizer level and returns the relocated top-level BCO,
// sourceFile naming the unit for backtraces. A non-nil error
// carries every diagnostic collected by the parser and compiler.
func Compile(source, sourceFile string, level OptimizeLevel) (*bytecode.BCO, error) {
	builtins := NewBuiltinTable()
	p := NewParser(source, builtins)
	prog := p.ParseProgram()

	if errs := p.Errors(); len(errs) > 0 {
		return nil, parseError(errs)
	}

	c := NewCompiler(bytecode.RoleProcedure, sourceFile, "", builtins, level)
	bco, err := c.Compile(prog)
	if err != nil {
		return nil, err
	}
	return bco, nil
}

type parseError []string

func (e parseError) Error() string {
	s := "compiler: "
	for i, msg := range e {
		if i > 0 {
			s += "; "
		}
		s += msg
	}
	return s
}

// CompileExpression compiles a single expression, as used by the Eval
// builtin and the EvalExpr special opcode, into a zero-argument function
// BCO whose body is "Return <expr>" so running it yields the expression's
// value.
func CompileExpression(source, sourceFile string, level OptimizeLevel) (*bytecode.BCO, error) {
	builtins := NewBuiltinTable()
	p := NewParser(source, builtins)
	expr := p.ParseExpression()

	if errs := p.Errors(); len(errs) > 0 {
		return nil, parseError(errs)
	}

	c := NewCompiler(bytecode.RoleFunction, sourceFile, "<eval>", builtins, level)
	c.compileExpr(expr)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialReturn), 0)

	if len(c.errors) > 0 {
		return nil, fmt.Errorf("compiler: %s", strings.Join(c.errors, "; "))
	}
	if err := c.bco.Relocate(); err != nil {
		return nil, err
	}
	Optimize(c.bco, c.optimizeLevel)
	return c.bco, nil
}
