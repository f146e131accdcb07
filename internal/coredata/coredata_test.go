package coredata

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOptionFileRejectsNonOptionCalls(t *testing.T) {
	reg := NewRegistry()
	err := LoadOptionFile(reg, "meson.options", "message('hi')\n")
	if err == nil {
		t.Fatal("expected an error for a non-option() statement")
	}
}

func TestLoadOptionFileRejectsBuiltinRedeclaration(t *testing.T) {
	reg := NewRegistry()
	err := LoadOptionFile(reg, "meson.options", "option('prefix', type: 'string', value: '/opt')\n")
	if err == nil {
		t.Fatal("expected an error redeclaring a builtin option name")
	}
}

func TestLoadOptionFileDeclaresCombo(t *testing.T) {
	reg := NewRegistry()
	src := `option('backend', type: 'combo', choices: ['gl', 'vulkan'], value: 'gl', description: 'rendering backend')
`
	if err := LoadOptionFile(reg, "meson.options", src); err != nil {
		t.Fatalf("LoadOptionFile() = %v", err)
	}
	opt, ok := reg.Get("backend")
	if !ok {
		t.Fatal("expected 'backend' to be declared")
	}
	if opt.Value != "gl" {
		t.Errorf("Value = %v, want gl", opt.Value)
	}
}

// TestOptionRoundTrip asserts spec.md §8 property 8: only builtins or
// declared project options survive a persist/load round trip.
func TestOptionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()
	if err := LoadOptionFile(reg, "meson.options", "option('enable_x', type: 'boolean', value: true)\n"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Override("buildtype", "release"); err != nil {
		t.Fatal(err)
	}
	if err := Save(dir, reg, nil, nil, false); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "meson-private", "coredata.dat")); err != nil {
		t.Fatalf("coredata.dat missing: %v", err)
	}
	d, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	got := RegistryFromData(d)
	for name := range got.All() {
		if !BuiltinNames[name] {
			if _, declared := reg.Get(name); !declared {
				t.Errorf("option %q survived round trip but was never builtin or declared", name)
			}
		}
	}
	btOpt, _ := got.Get("buildtype")
	if btOpt.Value != "release" {
		t.Errorf("buildtype = %v, want release", btOpt.Value)
	}
	enableOpt, _ := got.Get("enable_x")
	if enableOpt.Value != true {
		t.Errorf("enable_x = %v, want true", enableOpt.Value)
	}
}
