// Package introspect implements the read-only `forge introspect`
// reporting commands (spec.md §4.10): dumping the persisted options,
// targets, and tests as newline-delimited JSON, plus an --ast dump of a
// parsed build file for debugging the parser itself. Resolved
// dependencies and the install plan are not dumped.
package introspect

import (
	"encoding/json"
	"io"

	"github.com/forgebuild/forge/internal/ast"
	"github.com/forgebuild/forge/internal/coredata"
	"github.com/forgebuild/forge/internal/model"
)

type targetReport struct {
	Name         string   `json:"name"`
	Kind         string   `json:"type"`
	Subdir       string   `json:"subdir"`
	Sources      []string `json:"sources"`
	Install      bool     `json:"installed"`
	ExternalDeps []string `json:"dependencies"`
}

func kindName(k model.TargetKind) string {
	switch k {
	case model.Executable:
		return "executable"
	case model.StaticLibrary:
		return "static_library"
	case model.SharedLibrary:
		return "shared_library"
	case model.CustomTarget:
		return "custom"
	case model.RunTarget:
		return "run"
	default:
		return "unknown"
	}
}

// WriteTargets emits one JSON object per target, in declaration order.
func WriteTargets(w io.Writer, m *model.Model) error {
	enc := json.NewEncoder(w)
	for _, t := range m.OrderedTargets() {
		r := targetReport{
			Name:         t.Name,
			Kind:         kindName(t.Kind),
			Subdir:       t.Subdir,
			Sources:      t.Sources,
			Install:      t.Install,
			ExternalDeps: t.ExternalDeps,
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

type optionReport struct {
	Name    string      `json:"name"`
	Value   interface{} `json:"value"`
	Default interface{} `json:"default"`
	Builtin bool        `json:"builtin"`
}

// WriteOptions emits the full option registry, builtins and project
// options mixed together the way meson's introspect --buildoptions does.
func WriteOptions(w io.Writer, reg *coredata.Registry) error {
	enc := json.NewEncoder(w)
	for name, opt := range reg.All() {
		r := optionReport{Name: name, Value: opt.Value, Default: opt.Default, Builtin: opt.Builtin}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

type testReport struct {
	Name       string   `json:"name"`
	Executable string   `json:"executable"`
	Suites     []string `json:"suites"`
}

func WriteTests(w io.Writer, m *model.Model) error {
	enc := json.NewEncoder(w)
	for _, t := range m.Tests {
		exe := ""
		if t.Exe != nil {
			exe = t.Exe.Name
		}
		if err := enc.Encode(testReport{Name: t.Name, Executable: exe, Suites: t.Suites}); err != nil {
			return err
		}
	}
	return nil
}

// astNode is the generic shape the --ast dumper renders every node
// into, since ast.Node has no exported type tag of its own.
type astNode struct {
	Type     string      `json:"type"`
	Line     int         `json:"line"`
	Column   int         `json:"column"`
	Detail   string      `json:"detail,omitempty"`
	Children []astNode   `json:"children,omitempty"`
}

// WriteAST renders a parsed block as nested JSON, for `forge introspect
// --ast <file>` (SPEC_FULL.md §4.10 supplement).
func WriteAST(w io.Writer, block *ast.Block) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dumpNode(block))
}

func dumpNode(n ast.Node) astNode {
	pos := n.Pos()
	out := astNode{Line: pos.Line, Column: pos.Column}
	switch v := n.(type) {
	case *ast.Block:
		out.Type = "block"
		for _, s := range v.Stmts {
			out.Children = append(out.Children, dumpNode(s))
		}
	case *ast.Assign:
		out.Type = "assign"
		out.Detail = v.Name
		out.Children = []astNode{dumpNode(v.RHS)}
	case *ast.PlusAssign:
		out.Type = "plus_assign"
		out.Detail = v.Name
		out.Children = []astNode{dumpNode(v.RHS)}
	case *ast.IfChain:
		out.Type = "if"
		for _, br := range v.Branches {
			if br.Cond != nil {
				out.Children = append(out.Children, dumpNode(br.Cond))
			}
			out.Children = append(out.Children, dumpNode(br.Body))
		}
	case *ast.Foreach:
		out.Type = "foreach"
		out.Detail = joinNames(v.Vars)
		out.Children = []astNode{dumpNode(v.Iterable), dumpNode(v.Body)}
	case *ast.FuncCall:
		out.Type = "call"
		out.Detail = v.Name
		for _, a := range v.Args {
			out.Children = append(out.Children, dumpNode(a.Value))
		}
	case *ast.MethodCall:
		out.Type = "method_call"
		out.Detail = v.Name
		out.Children = append([]astNode{dumpNode(v.Recv)}, dumpArgs(v.Args)...)
	case *ast.Binary:
		out.Type = "binary"
		out.Children = []astNode{dumpNode(v.Left), dumpNode(v.Right)}
	case *ast.UnaryOp:
		out.Type = "not"
		out.Children = []astNode{dumpNode(v.X)}
	case *ast.Index:
		out.Type = "index"
		out.Children = []astNode{dumpNode(v.Recv), dumpNode(v.Index)}
	case *ast.Ternary:
		out.Type = "ternary"
		out.Children = []astNode{dumpNode(v.Cond), dumpNode(v.Then), dumpNode(v.Else)}
	case *ast.ArrayLit:
		out.Type = "array"
		for _, e := range v.Elems {
			out.Children = append(out.Children, dumpNode(e))
		}
	case *ast.MapLit:
		out.Type = "dict"
		for _, e := range v.Entries {
			out.Children = append(out.Children, dumpNode(e.Value))
		}
	case *ast.StringLit:
		out.Type = "string"
		out.Detail = v.Value
	case *ast.IntLit:
		out.Type = "int"
	case *ast.BoolLit:
		out.Type = "bool"
	case *ast.IdentRef:
		out.Type = "id"
		out.Detail = v.Name
	case *ast.Continue:
		out.Type = "continue"
	case *ast.Break:
		out.Type = "break"
	default:
		out.Type = "unknown"
	}
	return out
}

func dumpArgs(args []ast.Arg) []astNode {
	out := make([]astNode, len(args))
	for i, a := range args {
		out[i] = dumpNode(a.Value)
	}
	return out
}

func joinNames(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += ","
		}
		s += n
	}
	return s
}
