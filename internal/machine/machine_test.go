package machine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cross.ini")
	content := `[binaries]
c = '/usr/bin/aarch64-linux-gnu-gcc'

[host_machine]
system = 'linux'
cpu_family = 'aarch64'

[properties]
needs_exe_wrapper = 'true'
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if d.Exe("c") != "/usr/bin/aarch64-linux-gnu-gcc" {
		t.Errorf("Exe(c) = %q", d.Exe("c"))
	}
	if !d.IsCrossBuild() {
		t.Error("expected IsCrossBuild() to be true")
	}
	if d.HostInfo["cpu_family"] != "aarch64" {
		t.Errorf("cpu_family = %q", d.HostInfo["cpu_family"])
	}
}

func TestNoFileIsNotCrossBuild(t *testing.T) {
	d := NewDescription()
	if d.IsCrossBuild() {
		t.Error("an empty description should not report a cross build")
	}
}
