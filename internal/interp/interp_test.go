package interp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgebuild/forge/internal/coredata"
	"github.com/forgebuild/forge/internal/depends"
)

func newTestInterp(t *testing.T) (*Interp, string, string) {
	t.Helper()
	src := t.TempDir()
	build := t.TempDir()
	reg := coredata.NewRegistry()
	resolver := depends.NewResolver(nil)
	return New(context.Background(), src, build, reg, resolver), src, build
}

func TestRunRequiresProjectFirst(t *testing.T) {
	in, _, _ := newTestInterp(t)
	err := in.Run("meson.build", "message('hi')\n")
	if err == nil {
		t.Fatal("expected an error when project() is not the first statement")
	}
}

func TestRunDeclaresExecutable(t *testing.T) {
	in, src, _ := newTestInterp(t)
	if err := os.WriteFile(filepath.Join(src, "main.c"), []byte("int main(void){return 0;}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	err := in.Run("meson.build", `project('demo', 'c')
app = executable('demo', 'main.c')
`)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if in.Model.ProjectName != "demo" {
		t.Errorf("ProjectName = %q", in.Model.ProjectName)
	}
	tgt, ok := in.Model.TargetsByName["demo"]
	if !ok {
		t.Fatal("expected target 'demo' to be registered")
	}
	if len(tgt.Sources) != 1 || tgt.Sources[0] != "main.c" {
		t.Errorf("Sources = %v", tgt.Sources)
	}
}

func TestForeachAccumulates(t *testing.T) {
	in, _, _ := newTestInterp(t)
	err := in.Run("meson.build", `project('demo')
total = 0
foreach x : [1, 2, 3]
  total = total + x
endforeach
set_variable('result', total)
`)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	v, ok := in.cur.get("result")
	if !ok || v.Int != 6 {
		t.Errorf("result = %+v, want 6", v)
	}
}

func TestAssertFailureIsInvalidCode(t *testing.T) {
	in, _, _ := newTestInterp(t)
	err := in.Run("meson.build", `project('demo')
assert(1 == 2, 'nope')
`)
	if err == nil {
		t.Fatal("expected assert() to fail")
	}
}

func TestGetOptionReturnsBuiltinDefault(t *testing.T) {
	in, _, _ := newTestInterp(t)
	err := in.Run("meson.build", `project('demo')
bt = get_option('buildtype')
assert(bt == 'debug', 'unexpected default buildtype')
`)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
}

func TestConfigureFileSubstitutesAndIsIdempotent(t *testing.T) {
	in, src, build := newTestInterp(t)
	if err := os.WriteFile(filepath.Join(src, "config.h.in"), []byte("#define GREETING \"@GREETING@\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	script := `project('demo')
configure_file(input: 'config.h.in', output: 'config.h', configuration: {'GREETING': 'hello'})
`
	if err := in.Run("meson.build", script); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	out := filepath.Join(build, "config.h")
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("config.h missing: %v", err)
	}
	if string(b) != "#define GREETING \"hello\"\n" {
		t.Errorf("config.h = %q", b)
	}

	info1, _ := os.Stat(out)
	reg2 := coredata.NewRegistry()
	in2 := New(context.Background(), src, build, reg2, depends.NewResolver(nil))
	if err := in2.Run("meson.build", script); err != nil {
		t.Fatalf("second Run() = %v", err)
	}
	info2, _ := os.Stat(out)
	if info1.ModTime() != info2.ModTime() {
		t.Error("expected configure_file to skip rewriting an unchanged output")
	}
}
