package parser

import (
	"testing"

	"github.com/forgebuild/forge/internal/ast"
)

// TestParseMonotonicOffsets asserts spec.md §8 property 2: in a pre-order
// traversal, each node's start offset is non-decreasing.
func TestParseMonotonicOffsets(t *testing.T) {
	src := `project('p', 'c', version: '1.0')
x = 1 + 2 * 3
if x > 0
  y = [1, 2, 3]
else
  y = {'a': 1}
endif
foreach i : y
  message(i)
endforeach
`
	block, err := Parse("test.build", src)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	last := -1
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		if n == nil {
			return
		}
		off := n.Pos().Offset
		if off < last {
			t.Errorf("offset went backwards: %d after %d (node %T)", off, last, n)
		}
		last = off
		switch v := n.(type) {
		case *ast.Block:
			for _, s := range v.Stmts {
				walk(s)
			}
		case *ast.Assign:
			walk(v.RHS)
		case *ast.Binary:
			walk(v.Left)
			walk(v.Right)
		case *ast.IfChain:
			for _, b := range v.Branches {
				walk(b.Cond)
				walk(b.Body)
			}
		case *ast.Foreach:
			walk(v.Iterable)
			walk(v.Body)
		case *ast.FuncCall:
			for _, a := range v.Args {
				walk(a.Value)
			}
		case *ast.ArrayLit:
			for _, e := range v.Elems {
				walk(e)
			}
		case *ast.MapLit:
			for _, e := range v.Entries {
				walk(e.Value)
			}
		}
	}
	walk(block)
}

func TestParseRejectsPositionalAfterKeyword(t *testing.T) {
	_, err := Parse("test.build", "f(a: 1, 2)\n")
	if err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestParseAcceptsTrailingComma(t *testing.T) {
	_, err := Parse("test.build", "x = [1, 2, 3,]\nf(a: 1, b: 2,)\n")
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}
}

func TestParseMappingKeyMustBeString(t *testing.T) {
	_, err := Parse("test.build", "x = {1: 2}\n")
	if err == nil {
		t.Fatal("expected a parse error for non-string mapping key")
	}
}

func TestParseIfElifElse(t *testing.T) {
	src := "if true\n  x = 1\nelif false\n  x = 2\nelse\n  x = 3\nendif\n"
	block, err := Parse("test.build", src)
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if len(block.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(block.Stmts))
	}
	ifChain, ok := block.Stmts[0].(*ast.IfChain)
	if !ok {
		t.Fatalf("expected *ast.IfChain, got %T", block.Stmts[0])
	}
	if len(ifChain.Branches) != 3 {
		t.Fatalf("expected 3 branches, got %d", len(ifChain.Branches))
	}
	if ifChain.Branches[2].Cond != nil {
		t.Errorf("expected trailing else branch to have nil condition")
	}
}
