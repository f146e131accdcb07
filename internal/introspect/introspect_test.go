package introspect

import (
	"bytes"
	"strings"
	"testing"

	"github.com/forgebuild/forge/internal/model"
	"github.com/forgebuild/forge/internal/parser"
)

func TestWriteTargetsEmitsOnePerLine(t *testing.T) {
	m := model.New()
	m.AddTarget(&model.Target{Name: "a", Kind: model.Executable, Sources: []string{"a.c"}})
	m.AddTarget(&model.Target{Name: "b", Kind: model.StaticLibrary})
	var buf bytes.Buffer
	if err := WriteTargets(&buf, m); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
}

func TestWriteASTRendersCallArguments(t *testing.T) {
	block, err := parser.Parse("t.build", "project('demo')\n")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteAST(&buf, block); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"call"`) || !strings.Contains(out, `"demo"`) {
		t.Errorf("AST dump missing expected nodes:\n%s", out)
	}
}
