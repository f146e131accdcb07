// Package interp implements the tree-walking interpreter (spec.md
// §4.7): statement execution, expression evaluation over the tagged
// value domain, method dispatch, and the builtin functions that
// populate the build model as a side effect of evaluation.
package interp

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/forgebuild/forge/internal/ast"
	"github.com/forgebuild/forge/internal/coredata"
	"github.com/forgebuild/forge/internal/depends"
	"github.com/forgebuild/forge/internal/diag"
	"github.com/forgebuild/forge/internal/model"
	"github.com/forgebuild/forge/internal/parser"
)

// breakSignal and continueSignal are sentinel errors used to unwind a
// foreach body without threading a separate control-flow return value
// through every eval call, mirroring how diag.Error already flows
// through the same error-returning calling convention.
type breakSignal struct{}
type continueSignal struct{}

func (breakSignal) Error() string    { return "break outside loop" }
func (continueSignal) Error() string { return "continue outside loop" }

// Interp holds everything evaluation of one project's source tree
// needs: the accumulating build model, the option registry, the
// dependency resolver, and the subdir() re-entry guard.
type Interp struct {
	Ctx context.Context

	Model    *model.Model
	Options  *coredata.Registry
	Resolver *depends.Resolver

	SourceRoot string
	BuildRoot  string

	// ReadFiles accumulates every build-definition file read over the
	// course of one Run, root file plus every subdir() and subproject(),
	// so the ninja backend can make build.ninja depend on all of them
	// (spec.md §4.9 regenerate rule).
	ReadFiles []string

	root           *scope
	cur            *scope
	curSubdir      string
	visitedSubdirs map[string]bool
	projectSeen    bool
	installPrefix  string
	subprojects    map[string]*SubprojectHandle
}

func New(ctx context.Context, sourceRoot, buildRoot string, opts *coredata.Registry, resolver *depends.Resolver) *Interp {
	root := newScope(nil)
	return &Interp{
		Ctx:            ctx,
		Model:          model.New(),
		Options:        opts,
		Resolver:       resolver,
		SourceRoot:     sourceRoot,
		BuildRoot:      buildRoot,
		root:           root,
		cur:            root,
		visitedSubdirs: map[string]bool{},
	}
}

// Run parses and executes the top-level build definition file. The
// first statement must be a call to project() (spec.md §4.7 invariant).
func (in *Interp) Run(file, src string) error {
	block, err := parser.Parse(file, src)
	if err != nil {
		return err
	}
	if len(block.Stmts) == 0 {
		return diag.New(diag.InvalidCode, diag.Pos{}, "%s: a build definition must start with project()", file)
	}
	first, ok := block.Stmts[0].(*ast.FuncCall)
	if !ok || first.Name != "project" {
		return diag.New(diag.InvalidCode, block.Stmts[0].Pos(), "the first statement must be a call to project()")
	}
	in.ReadFiles = append(in.ReadFiles, file)
	return in.execBlock(block)
}

func (in *Interp) execBlock(b *ast.Block) error {
	for _, stmt := range b.Stmts {
		if err := in.execStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) execStmt(n ast.Node) error {
	switch s := n.(type) {
	case *ast.Assign:
		v, err := in.eval(s.RHS)
		if err != nil {
			return err
		}
		in.cur.set(s.Name, v)
		return nil
	case *ast.PlusAssign:
		cur, ok := in.cur.get(s.Name)
		if !ok {
			return diag.New(diag.InvalidCode, s.Pos(), "undefined variable %q", s.Name)
		}
		rhs, err := in.eval(s.RHS)
		if err != nil {
			return err
		}
		sum, err := addValues(cur, rhs)
		if err != nil {
			return diag.New(diag.InvalidCode, s.Pos(), "%v", err)
		}
		in.cur.set(s.Name, sum)
		return nil
	case *ast.IfChain:
		return in.execIfChain(s)
	case *ast.Foreach:
		return in.execForeach(s)
	case *ast.Continue:
		return continueSignal{}
	case *ast.Break:
		return breakSignal{}
	case *ast.Block:
		return in.execBlock(s)
	default:
		// a bare expression statement, almost always a function call
		_, err := in.eval(n)
		return err
	}
}

func (in *Interp) execIfChain(s *ast.IfChain) error {
	for _, br := range s.Branches {
		if br.Cond == nil {
			return in.execBlock(br.Body)
		}
		v, err := in.eval(br.Cond)
		if err != nil {
			return err
		}
		truthy, err := v.Truthy()
		if err != nil {
			return diag.New(diag.InvalidCode, br.Cond.Pos(), "if condition: %v", err)
		}
		if truthy {
			return in.execBlock(br.Body)
		}
	}
	return nil
}

func (in *Interp) execForeach(s *ast.Foreach) error {
	iter, err := in.eval(s.Iterable)
	if err != nil {
		return err
	}
	run := func(bind func()) error {
		bind()
		err := in.execBlock(s.Body)
		if _, ok := err.(breakSignal); ok {
			return breakSignal{}
		}
		if _, ok := err.(continueSignal); ok {
			return nil
		}
		return err
	}
	switch iter.Kind {
	case KindArray:
		if len(s.Vars) != 1 {
			return diag.New(diag.InvalidCode, s.Pos(), "foreach over an array takes exactly one loop variable")
		}
		for _, elem := range iter.Arr {
			err := run(func() { in.cur.setLocal(s.Vars[0], elem) })
			if _, ok := err.(breakSignal); ok {
				break
			}
			if err != nil {
				return err
			}
		}
	case KindMap:
		if len(s.Vars) != 2 {
			return diag.New(diag.InvalidCode, s.Pos(), "foreach over a dict takes exactly two loop variables")
		}
		for _, k := range iter.MapKeys {
			v := iter.Map[k]
			err := run(func() {
				in.cur.setLocal(s.Vars[0], Str(k))
				in.cur.setLocal(s.Vars[1], v)
			})
			if _, ok := err.(breakSignal); ok {
				break
			}
			if err != nil {
				return err
			}
		}
	default:
		return diag.New(diag.InvalidCode, s.Iterable.Pos(), "foreach requires an array or dict, got %s", iter.Kind)
	}
	return nil
}

func (in *Interp) eval(n ast.Node) (Value, error) {
	switch e := n.(type) {
	case *ast.BoolLit:
		return Bool(e.Value), nil
	case *ast.IntLit:
		return Int(e.Value), nil
	case *ast.StringLit:
		return Str(e.Value), nil
	case *ast.IdentRef:
		v, ok := in.cur.get(e.Name)
		if !ok {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "undefined variable %q", e.Name)
		}
		return v, nil
	case *ast.ArrayLit:
		elems := make([]Value, len(e.Elems))
		for i, el := range e.Elems {
			v, err := in.eval(el)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Array(elems...), nil
	case *ast.MapLit:
		m := map[string]Value{}
		for _, entry := range e.Entries {
			v, err := in.eval(entry.Value)
			if err != nil {
				return Value{}, err
			}
			m[entry.Key] = v
		}
		return Map(m), nil
	case *ast.UnaryOp:
		v, err := in.eval(e.X)
		if err != nil {
			return Value{}, err
		}
		b, err := v.Truthy()
		if err != nil {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "not: %v", err)
		}
		return Bool(!b), nil
	case *ast.Binary:
		return in.evalBinary(e)
	case *ast.Index:
		return in.evalIndex(e)
	case *ast.Ternary:
		cond, err := in.eval(e.Cond)
		if err != nil {
			return Value{}, err
		}
		b, err := cond.Truthy()
		if err != nil {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "ternary condition: %v", err)
		}
		if b {
			return in.eval(e.Then)
		}
		return in.eval(e.Else)
	case *ast.MethodCall:
		return in.evalMethodCall(e)
	case *ast.FuncCall:
		return in.evalFuncCall(e)
	default:
		return Value{}, diag.New(diag.InternalError, n.Pos(), "unhandled expression node %T", n)
	}
}

func (in *Interp) evalIndex(e *ast.Index) (Value, error) {
	recv, err := in.eval(e.Recv)
	if err != nil {
		return Value{}, err
	}
	idx, err := in.eval(e.Index)
	if err != nil {
		return Value{}, err
	}
	switch recv.Kind {
	case KindArray:
		if idx.Kind != KindInt {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "array index must be an int")
		}
		i := idx.Int
		if i < 0 {
			i += int64(len(recv.Arr))
		}
		if i < 0 || i >= int64(len(recv.Arr)) {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "array index %d out of range (length %d)", idx.Int, len(recv.Arr))
		}
		return recv.Arr[i], nil
	case KindMap:
		if idx.Kind != KindString {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "dict index must be a string")
		}
		v, ok := recv.Map[idx.Str]
		if !ok {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "dict has no key %q", idx.Str)
		}
		return v, nil
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "cannot index a %s", recv.Kind)
	}
}

func (in *Interp) evalBinary(e *ast.Binary) (Value, error) {
	// logical operators short-circuit, so they evaluate Right lazily.
	if e.Op == ast.OpAnd || e.Op == ast.OpOr {
		l, err := in.eval(e.Left)
		if err != nil {
			return Value{}, err
		}
		lb, err := l.Truthy()
		if err != nil {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%v", err)
		}
		if e.Op == ast.OpAnd && !lb {
			return Bool(false), nil
		}
		if e.Op == ast.OpOr && lb {
			return Bool(true), nil
		}
		r, err := in.eval(e.Right)
		if err != nil {
			return Value{}, err
		}
		rb, err := r.Truthy()
		if err != nil {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%v", err)
		}
		return Bool(rb), nil
	}

	l, err := in.eval(e.Left)
	if err != nil {
		return Value{}, err
	}
	r, err := in.eval(e.Right)
	if err != nil {
		return Value{}, err
	}

	switch e.Op {
	case ast.OpEq:
		return Bool(Equal(l, r)), nil
	case ast.OpNeq:
		return Bool(!Equal(l, r)), nil
	case ast.OpAdd:
		v, err := addValues(l, r)
		if err != nil {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%v", err)
		}
		return v, nil
	case ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if l.Kind != KindInt || r.Kind != KindInt {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "arithmetic requires two ints, got %s and %s", l.Kind, r.Kind)
		}
		switch e.Op {
		case ast.OpSub:
			return Int(l.Int - r.Int), nil
		case ast.OpMul:
			return Int(l.Int * r.Int), nil
		case ast.OpDiv:
			if r.Int <= 0 {
				return Value{}, diag.New(diag.InvalidCode, e.Pos(), "division requires a positive right-hand side, got %d", r.Int)
			}
			return Int(l.Int / r.Int), nil
		default:
			if r.Int <= 0 {
				return Value{}, diag.New(diag.InvalidCode, e.Pos(), "modulo requires a positive right-hand side, got %d", r.Int)
			}
			return Int(l.Int % r.Int), nil
		}
	case ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		if l.Kind != KindInt || r.Kind != KindInt {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "comparison requires two ints, got %s and %s", l.Kind, r.Kind)
		}
		switch e.Op {
		case ast.OpLt:
			return Bool(l.Int < r.Int), nil
		case ast.OpLte:
			return Bool(l.Int <= r.Int), nil
		case ast.OpGt:
			return Bool(l.Int > r.Int), nil
		default:
			return Bool(l.Int >= r.Int), nil
		}
	case ast.OpIn, ast.OpNotIn:
		found, err := containsValue(r, l)
		if err != nil {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%v", err)
		}
		if e.Op == ast.OpNotIn {
			found = !found
		}
		return Bool(found), nil
	default:
		return Value{}, diag.New(diag.InternalError, e.Pos(), "unhandled binary operator")
	}
}

func addValues(l, r Value) (Value, error) {
	if l.Kind != r.Kind {
		// an array may be extended by appending a single non-array value
		if l.Kind == KindArray {
			return Array(append(append([]Value{}, l.Arr...), r)...), nil
		}
		return Value{}, fmt.Errorf("cannot add %s and %s", l.Kind, r.Kind)
	}
	switch l.Kind {
	case KindInt:
		return Int(l.Int + r.Int), nil
	case KindString:
		return Str(l.Str + r.Str), nil
	case KindArray:
		return Array(append(append([]Value{}, l.Arr...), r.Arr...)...), nil
	default:
		return Value{}, fmt.Errorf("cannot add two %s values", l.Kind)
	}
}

func containsValue(container, needle Value) (bool, error) {
	switch container.Kind {
	case KindArray:
		for _, e := range container.Arr {
			if Equal(e, needle) {
				return true, nil
			}
		}
		return false, nil
	case KindString:
		if needle.Kind != KindString {
			return false, fmt.Errorf("'in' on a string requires a string operand")
		}
		return indexOfSubstring(container.Str, needle.Str) >= 0, nil
	case KindMap:
		if needle.Kind != KindString {
			return false, fmt.Errorf("'in' on a dict requires a string key")
		}
		_, ok := container.Map[needle.Str]
		return ok, nil
	default:
		return false, fmt.Errorf("'in' requires an array, string, or dict, got %s", container.Kind)
	}
}

func indexOfSubstring(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// absSourcePath joins the current subdir with a project-relative path.
func (in *Interp) absSourcePath(rel string) string {
	return filepath.Join(in.SourceRoot, in.curSubdir, rel)
}

func (in *Interp) absBuildPath(rel string) string {
	return filepath.Join(in.BuildRoot, in.curSubdir, rel)
}
