package ninja

import (
	"strings"
	"testing"

	"github.com/forgebuild/forge/internal/model"
	"github.com/forgebuild/forge/internal/toolchain"
)

func TestRenderIsDeterministic(t *testing.T) {
	m := model.New()
	if err := m.AddTarget(&model.Target{Name: "app", Kind: model.Executable, Sources: []string{"main.c"}}); err != nil {
		t.Fatal(err)
	}
	compilers := map[string]*toolchain.Compiler{"c": {Language: "c", Executable: "/usr/bin/cc", Family: toolchain.FamilyGCC}}
	a := Generate(m, compilers, "build", "/src", "forge", []string{"/src/meson.build"}).Render()
	b := Generate(m, compilers, "build", "/src", "forge", []string{"/src/meson.build"}).Render()
	if string(a) != string(b) {
		t.Error("Render() is not deterministic across two identical Generate calls")
	}
}

func TestQuoteEscapesSpecialChars(t *testing.T) {
	got := quote("a b:c$d")
	want := "a$ b$:c$$d"
	if got != want {
		t.Errorf("quote() = %q, want %q", got, want)
	}
}

func TestGeneratePhonyAggregatesAllTargets(t *testing.T) {
	m := model.New()
	if err := m.AddTarget(&model.Target{Name: "one", Kind: model.Executable}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddTarget(&model.Target{Name: "two", Kind: model.Executable}); err != nil {
		t.Fatal(err)
	}
	out := string(Generate(m, nil, "build", "/src", "forge", nil).Render())
	if !strings.Contains(out, "build all: phony one two") {
		t.Errorf("expected an 'all' phony covering both targets, got:\n%s", out)
	}
}

func TestPhonyDeduplicatesRepeatedDeps(t *testing.T) {
	w := New()
	w.Phony("all", "a", "b")
	w.Phony("all", "b", "c")
	if got := w.phonies["all"]; len(got) != 3 {
		t.Errorf("phonies[all] = %v, want 3 deduplicated entries", got)
	}
}
