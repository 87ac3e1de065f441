package compiler

import (
	"fmt"

	"github.com/nebula-lang/nebula/pkg/ast"
	"github.com/nebula-lang/nebula/pkg/bytecode"
	"github.com/nebula-lang/nebula/pkg/value"
)

// loopLabels tracks the exit/continue targets of the innermost enclosing
// loop, so Break/Continue can jump to them without threading state
// through every statement-compiling function.
type loopLabels struct {
	breakLabel    bytecode.Label
	continueLabel bytecode.Label
}

// Compiler walks an ast.Program (or a single ast.Statement/Expression,
// for Eval) and emits instructions into a *bytecode.BCO.
type Compiler struct {
	bco      *bytecode.BCO
	builtins *BuiltinTable
	locals   map[string]uint16
	loops    []loopLabels
	errors   []string

	// statementsAreExpressions mirrors the source dialect's
	// "expressions are statements" flag: when set, a top-level equality
	// compare in an ExpressionStatement is rewritten to an assignment.
	statementsAreExpressions bool

	optimizeLevel OptimizeLevel
}

// NewCompiler creates a Compiler emitting into a fresh BCO of the given
// role and source names, running the peephole optimizer at level once
// the BCO (and every nested Sub/Function it declares) is relocated.
func NewCompiler(role bytecode.Role, sourceFile, subName string, builtins *BuiltinTable, level OptimizeLevel) *Compiler {
	return &Compiler{
		bco:                      bytecode.NewBCO(role, sourceFile, subName),
		builtins:                 builtins,
		locals:                   make(map[string]uint16),
		statementsAreExpressions: true,
		optimizeLevel:            level,
	}
}

func (c *Compiler) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *Compiler) Errors() []string { return c.errors }

// Compile compiles an entire program and relocates the resulting BCO.
func (c *Compiler) Compile(prog *ast.Program) (*bytecode.BCO, error) {
	for _, stmt := range prog.Statements {
		c.compileStatement(stmt)
	}
	if len(c.errors) > 0 {
		return nil, fmt.Errorf("compiler: %v", c.errors)
	}
	if err := c.bco.Relocate(); err != nil {
		return nil, err
	}
	Optimize(c.bco, c.optimizeLevel)
	return c.bco, nil
}

func (c *Compiler) localSlot(name string) (uint16, bool) {
	idx, ok := c.locals[name]
	return idx, ok
}

func (c *Compiler) declareLocal(name string) uint16 {
	if idx, ok := c.locals[name]; ok {
		return idx
	}
	idx := c.bco.AddLocal(name)
	c.locals[name] = idx
	return idx
}

// ---- Statements --------------------------------------------------------

func (c *Compiler) compileStatement(stmt ast.Statement) {
	c.bco.EmitLine(stmt.Line())

	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		c.compileExpressionStatement(s)
	case *ast.DimStatement:
		c.compileDim(s)
	case *ast.ReDimStatement:
		c.compileReDim(s)
	case *ast.SubDecl:
		c.compileSubOrFunction(s.Name, s.Params, s.Variadic, s.Body, bytecode.RoleProcedure)
	case *ast.FunctionDecl:
		c.compileSubOrFunction(s.Name, s.Params, s.Variadic, s.Body, bytecode.RoleFunction)
	case *ast.StructDecl:
		c.compileStructDecl(s)
	case *ast.IfStatement:
		c.compileIf(s)
	case *ast.ForStatement:
		c.compileFor(s)
	case *ast.ForEachStatement:
		c.compileForEach(s)
	case *ast.WhileStatement:
		c.compileWhile(s)
	case *ast.DoLoopStatement:
		c.compileDoLoop(s)
	case *ast.SelectStatement:
		c.compileSelect(s)
	case *ast.WithStatement:
		c.compileWith(s)
	case *ast.TryStatement:
		c.compileTry(s)
	case *ast.BreakStatement:
		c.compileBreak()
	case *ast.ContinueStatement:
		c.compileContinue()
	case *ast.ReturnStatement:
		c.compileReturn(s)
	case *ast.StopStatement:
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialTerminate), 0)
	case *ast.AbortStatement:
		c.compileAbort(s)
	case *ast.RestartStatement:
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialRestart), 0)
	case *ast.SuspendStatement:
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialSuspend), 0)
	case *ast.WaitStatement:
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialSuspend), 1)
	case *ast.CallStatement:
		c.compileCall(s)
	case *ast.EvalStatement:
		c.compileEvalStatement(s)
	case *ast.PrintStatement:
		c.compilePrint(s)
	case *ast.LoadStatement:
		c.compileLoad(s.Callee, s.Args, s.Target, false)
	case *ast.TryLoadStatement:
		c.compileTryLoad(s)
	case *ast.BindStatement:
		c.compileBind(s)
	case *ast.OnStatement:
		c.compileOn(s)
	case *ast.CreateKeymapStatement:
		c.compileCreateKeymap(s)
	case *ast.UseKeymapStatement:
		c.emitNamePush(bytecode.ScopeLiteral, s.Name)
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialInstance), 0)
	case *ast.CreateShipPropertyStatement:
		c.emitNamePush(bytecode.ScopeLiteral, s.Name)
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialDefineShipProperty), 0)
	case *ast.CreatePlanetPropertyStatement:
		c.emitNamePush(bytecode.ScopeLiteral, s.Name)
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialDefinePlanetProperty), 0)
	case *ast.RunHookStatement:
		nameIdx := c.bco.AddName(s.Name)
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialRunHook), nameIdx)
	case *ast.OptionStatement:
		// Compiler directives (peephole level, case mode) are consumed at
		// compile time; they emit no bytecode.
		c.applyOption(s)
	case *ast.SelectionExecStatement:
		c.compileExpr(s.Expr)
		c.bco.Emit(bytecode.OpPop, 0, 0)
	default:
		c.errorf("unsupported statement %T", stmt)
	}
}

func (c *Compiler) compileExpressionStatement(s *ast.ExpressionStatement) {
	expr := s.Expr
	if c.statementsAreExpressions {
		if bin, ok := expr.(*ast.Binary); ok && bin.Op == "=" {
			expr = &ast.Assignment{Target: bin.Left, Value: bin.Right}
		}
	}
	c.compileExpr(expr)
	c.bco.Emit(bytecode.OpPop, 0, 0)
}

func (c *Compiler) compileDim(s *ast.DimStatement) {
	if s.Init != nil {
		c.compileExpr(s.Init)
	} else {
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.Null()))
	}
	nameIdx := c.bco.AddName(s.Name)
	if s.Scope == "Local" || s.Scope == "Static" {
		c.declareLocal(s.Name)
	}
	c.bco.Emit(bytecode.OpDim, byte(scopeForDim(s.Scope)), nameIdx)
}

func scopeForDim(scope string) bytecode.Scope {
	switch scope {
	case "Shared":
		return bytecode.ScopeShared
	case "Static":
		return bytecode.ScopeStatic
	default:
		return bytecode.ScopeLocal
	}
}

func (c *Compiler) compileReDim(s *ast.ReDimStatement) {
	for _, d := range s.Dims {
		c.compileExpr(d)
	}
	nameIdx := c.bco.AddName(s.Name)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialResizeArray), nameIdx)
}

// compileSubOrFunction compiles a nested Sub/Function declaration into
// its own BCO and assigns it to a Literal slot bound to the
// declaration's name, using the "define-sub" special opcode
// (define-ship-property/define-planet-property are its siblings for
// the property-declaration statements).
func (c *Compiler) compileSubOrFunction(name string, params []ast.Param, variadic bool, body []ast.Statement, role bytecode.Role) {
	inner := NewCompiler(role, c.bco.SourceFile, name, c.builtins, c.optimizeLevel)
	for _, param := range params {
		inner.declareLocal(param.Name)
	}
	for _, stmt := range body {
		inner.compileStatement(stmt)
	}
	inner.bco.Args = bytecode.ArgDescriptor{MinArgs: len(params), MaxArgs: len(params), Variadic: variadic}
	if err := inner.bco.Relocate(); err != nil {
		c.errorf("sub %s: %v", name, err)
		return
	}
	Optimize(inner.bco, inner.optimizeLevel)

	litIdx := c.bco.AddLiteral(value.Ref(value.KindSubroutine, inner.bco))
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), litIdx)
	nameIdx := c.bco.AddName(name)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialDefineSub), nameIdx)
}

func (c *Compiler) compileStructDecl(s *ast.StructDecl) {
	st := value.NewStructType(s.Name, s.Fields)
	litIdx := c.bco.AddLiteral(value.Ref(value.KindStructType, st))
	nameIdx := c.bco.AddName(s.Name)
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), litIdx)
	c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeNamedShared), nameIdx)
	c.bco.Emit(bytecode.OpPop, 0, 0)
}

func (c *Compiler) compileIf(s *ast.IfStatement) {
	elseLabel := c.bco.NewLabel()
	endLabel := c.bco.NewLabel()

	c.compileExpr(s.Cond)
	c.bco.EmitJump(byte(bytecode.JumpIfFalse|bytecode.JumpPopAlways), elseLabel)
	for _, stmt := range s.Then {
		c.compileStatement(stmt)
	}
	c.bco.EmitJump(byte(bytecode.JumpAlways), endLabel)
	c.bco.PlaceLabel(elseLabel)
	for _, stmt := range s.Else {
		c.compileStatement(stmt)
	}
	c.bco.PlaceLabel(endLabel)
}

// compileFor implements `For v:=from To to [Step step] Do ... Next`
// with a compare-and-increment pattern: each pass compares v against
// `to` and exits once v > to; after the body, v is incremented by `step`
// (default 1). Both `to` and `step` are re-evaluated on every pass, and
// no trip count is precomputed (the jump-dec-zero opcode is not used).
func (c *Compiler) compileFor(s *ast.ForStatement) {
	varSlot := c.declareLocal(s.Var)

	c.compileExpr(s.From)
	c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeLocal), varSlot)
	c.bco.Emit(bytecode.OpPop, 0, 0)

	startLabel := c.bco.NewLabel()
	endLabel := c.bco.NewLabel()
	continueLabel := c.bco.NewLabel()

	c.bco.PlaceLabel(startLabel)
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLocal), varSlot)
	c.compileExpr(s.To)
	c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinGt), 0)
	c.bco.EmitJump(byte(bytecode.JumpIfTrue|bytecode.JumpPopAlways), endLabel)

	c.loops = append(c.loops, loopLabels{breakLabel: endLabel, continueLabel: continueLabel})
	for _, stmt := range s.Body {
		c.compileStatement(stmt)
	}
	c.loops = c.loops[:len(c.loops)-1]

	c.bco.PlaceLabel(continueLabel)
	c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLocal), varSlot)
	if s.Step != nil {
		c.compileExpr(s.Step)
	} else {
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeInteger), 1)
	}
	c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinAdd), 0)
	c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeLocal), varSlot)
	c.bco.Emit(bytecode.OpPop, 0, 0)
	c.bco.EmitJump(byte(bytecode.JumpAlways), startLabel)
	c.bco.PlaceLabel(endLabel)
}

// compileForEach uses the first-index/next-index/end-index iteration
// pattern every Context-backed collection implements.
func (c *Compiler) compileForEach(s *ast.ForEachStatement) {
	varSlot := c.declareLocal(s.Var)

	c.compileExpr(s.Collection)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialFirstIndex), 0)
	endLabel := c.bco.NewLabel()
	c.bco.EmitJump(byte(bytecode.JumpIfFalse|bytecode.JumpPopAlways), endLabel)

	loopLabel := c.bco.NewLabel()
	continueLabel := c.bco.NewLabel()
	c.bco.PlaceLabel(loopLabel)

	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialFirst), 0)
	c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeLocal), varSlot)
	c.bco.Emit(bytecode.OpPop, 0, 0)

	c.loops = append(c.loops, loopLabels{breakLabel: endLabel, continueLabel: continueLabel})
	for _, stmt := range s.Body {
		c.compileStatement(stmt)
	}
	c.loops = c.loops[:len(c.loops)-1]

	c.bco.PlaceLabel(continueLabel)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialNextIndex), 0)
	c.bco.EmitJump(byte(bytecode.JumpIfTrue|bytecode.JumpPopAlways), loopLabel)
	c.bco.PlaceLabel(endLabel)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialEndIndex), 0)
}

func (c *Compiler) compileWhile(s *ast.WhileStatement) {
	startLabel := c.bco.NewLabel()
	endLabel := c.bco.NewLabel()

	c.bco.PlaceLabel(startLabel)
	c.compileExpr(s.Cond)
	c.bco.EmitJump(byte(bytecode.JumpIfFalse|bytecode.JumpPopAlways), endLabel)

	c.loops = append(c.loops, loopLabels{breakLabel: endLabel, continueLabel: startLabel})
	for _, stmt := range s.Body {
		c.compileStatement(stmt)
	}
	c.loops = c.loops[:len(c.loops)-1]

	c.bco.EmitJump(byte(bytecode.JumpAlways), startLabel)
	c.bco.PlaceLabel(endLabel)
}

func (c *Compiler) compileDoLoop(s *ast.DoLoopStatement) {
	startLabel := c.bco.NewLabel()
	endLabel := c.bco.NewLabel()
	continueLabel := c.bco.NewLabel()

	c.bco.PlaceLabel(startLabel)
	if s.CondFirst && s.Cond != nil {
		c.compileExpr(s.Cond)
		cond := bytecode.JumpIfFalse
		if s.Until {
			cond = bytecode.JumpIfTrue
		}
		c.bco.EmitJump(byte(cond|bytecode.JumpPopAlways), endLabel)
	}

	c.loops = append(c.loops, loopLabels{breakLabel: endLabel, continueLabel: continueLabel})
	for _, stmt := range s.Body {
		c.compileStatement(stmt)
	}
	c.loops = c.loops[:len(c.loops)-1]

	c.bco.PlaceLabel(continueLabel)
	if !s.CondFirst && s.Cond != nil {
		c.compileExpr(s.Cond)
		cond := bytecode.JumpIfFalse
		if s.Until {
			cond = bytecode.JumpIfTrue
		}
		c.bco.EmitJump(byte(cond|bytecode.JumpPopAlways), endLabel)
	}
	c.bco.EmitJump(byte(bytecode.JumpAlways), startLabel)
	c.bco.PlaceLabel(endLabel)
}

func (c *Compiler) compileSelect(s *ast.SelectStatement) {
	c.compileExpr(s.Expr)
	selectorSlot := c.declareLocal("$select")
	c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeLocal), selectorSlot)
	c.bco.Emit(bytecode.OpPop, 0, 0)

	endLabel := c.bco.NewLabel()
	for _, clause := range s.Cases {
		bodyLabel := c.bco.NewLabel()
		nextLabel := c.bco.NewLabel()
		if len(clause.Matches) == 0 {
			for _, stmt := range clause.Body {
				c.compileStatement(stmt)
			}
			continue
		}
		for _, m := range clause.Matches {
			c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLocal), selectorSlot)
			c.compileExpr(m)
			c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinEq), 0)
			c.bco.EmitJump(byte(bytecode.JumpIfTrue|bytecode.JumpPopAlways), bodyLabel)
		}
		c.bco.EmitJump(byte(bytecode.JumpAlways), nextLabel)
		c.bco.PlaceLabel(bodyLabel)
		for _, stmt := range clause.Body {
			c.compileStatement(stmt)
		}
		c.bco.EmitJump(byte(bytecode.JumpAlways), endLabel)
		c.bco.PlaceLabel(nextLabel)
	}
	c.bco.PlaceLabel(endLabel)
}

func (c *Compiler) compileWith(s *ast.WithStatement) {
	c.compileExpr(s.Expr)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialWith), 0)
	for _, stmt := range s.Body {
		c.compileStatement(stmt)
	}
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialEndWith), 0)
}

func (c *Compiler) compileTry(s *ast.TryStatement) {
	catchLabel := c.bco.NewLabel()
	c.bco.EmitJump(byte(bytecode.JumpCatch), catchLabel)
	for _, stmt := range s.Body {
		c.compileStatement(stmt)
	}
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialUncatch), 0)
	c.bco.PlaceLabel(catchLabel)
}

func (c *Compiler) compileBreak() {
	if len(c.loops) == 0 {
		c.errorf("Break outside a loop")
		return
	}
	c.bco.EmitJump(byte(bytecode.JumpAlways), c.loops[len(c.loops)-1].breakLabel)
}

func (c *Compiler) compileContinue() {
	if len(c.loops) == 0 {
		c.errorf("Continue outside a loop")
		return
	}
	c.bco.EmitJump(byte(bytecode.JumpAlways), c.loops[len(c.loops)-1].continueLabel)
}

func (c *Compiler) compileReturn(s *ast.ReturnStatement) {
	if s.Value != nil {
		c.compileExpr(s.Value)
	} else {
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.Null()))
	}
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialReturn), 0)
}

func (c *Compiler) compileAbort(s *ast.AbortStatement) {
	if s.Message != nil {
		c.compileExpr(s.Message)
	} else {
		c.bco.Emit(bytecode.OpPush, byte(bytecode.ScopeLiteral), c.bco.AddLiteral(value.String("")))
	}
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialThrow), 0)
}

func (c *Compiler) compileCall(s *ast.CallStatement) {
	for _, a := range s.Args {
		c.compileExpr(a)
	}
	c.compileExpr(s.Callee)
	c.bco.Emit(bytecode.OpIndirectCall, byte(bytecode.CallRefuseFunctions), uint16(len(s.Args)))
	c.bco.Emit(bytecode.OpPop, 0, 0)
}

func (c *Compiler) compileEvalStatement(s *ast.EvalStatement) {
	for _, l := range s.Lines {
		c.compileExpr(l)
	}
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialEvalStatement), uint16(len(s.Lines)))
	c.bco.Emit(bytecode.OpPop, 0, 0)
}

func (c *Compiler) compilePrint(s *ast.PrintStatement) {
	for _, a := range s.Args {
		c.compileExpr(a)
		c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialPrint), 0)
	}
}

// compileLoad implements the Load calling convention:
// a `load N` leaves one result on the stack even for procedures.
func (c *Compiler) compileLoad(callee ast.Expression, args []ast.Expression, target ast.Expression, underTry bool) {
	for _, a := range args {
		c.compileExpr(a)
	}
	c.compileExpr(callee)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialLoad), uint16(len(args)))
	if target != nil {
		c.compileAssignTo(target)
	}
	c.bco.Emit(bytecode.OpPop, 0, 0)
}

func (c *Compiler) compileTryLoad(s *ast.TryLoadStatement) {
	catchLabel := c.bco.NewLabel()
	c.bco.EmitJump(byte(bytecode.JumpCatch), catchLabel)
	c.compileLoad(s.Callee, s.Args, s.Target, true)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialUncatch), 0)
	c.bco.PlaceLabel(catchLabel)
}

func (c *Compiler) compileBind(s *ast.BindStatement) {
	for _, a := range s.Args {
		c.compileExpr(a)
	}
	c.compileExpr(s.Callee)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialBind), uint16(len(s.Args)))
	nameIdx := c.bco.AddName(s.Name)
	c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeShared), nameIdx)
	c.bco.Emit(bytecode.OpPop, 0, 0)
}

// compileOn registers Body as a closure against a host-named event slot;
// it is compiled the same way as a Sub declaration, then bound via
// add-hook so the scheduler/world can dispatch to it later.
func (c *Compiler) compileOn(s *ast.OnStatement) {
	c.compileSubOrFunction("ON$"+s.Event, nil, false, s.Body, bytecode.RoleProcedure)
	nameIdx := c.bco.AddName(s.Event)
	c.bco.Emit(bytecode.OpSpecial, byte(bytecode.SpecialAddHook), nameIdx)
}

func (c *Compiler) compileCreateKeymap(s *ast.CreateKeymapStatement) {
	c.emitNamePush(bytecode.ScopeLiteral, s.Name)
	for _, parent := range s.Parents {
		c.emitNamePush(bytecode.ScopeLiteral, parent)
		c.bco.Emit(bytecode.OpBinary, byte(bytecode.BinKeyAddParent), 0)
	}
	nameIdx := c.bco.AddName(s.Name)
	c.bco.Emit(bytecode.OpStore, byte(bytecode.ScopeNamedShared), nameIdx)
	c.bco.Emit(bytecode.OpPop, 0, 0)
}

func (c *Compiler) emitNamePush(scope bytecode.Scope, name string) {
	litIdx := c.bco.AddLiteral(value.String(name))
	c.bco.Emit(bytecode.OpPush, byte(scope), litIdx)
}

func (c *Compiler) applyOption(s *ast.OptionStatement) {
	switch s.Name {
	case "CaseSensitive":
		// The ambient comparison-mode flag lives on the Parser; by the
		// time a *ast.OptionStatement* reaches the compiler the parser
		// has already finished, so this simply documents the intent for
		// tooling that re-parses with the flag pre-set. See DESIGN.md.
	}
}
