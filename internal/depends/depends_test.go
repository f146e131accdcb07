package depends

import (
	"os"
	"path/filepath"
	"testing"
)

func writePC(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".pc"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFindViaPkgConfig(t *testing.T) {
	dir := t.TempDir()
	writePC(t, dir, "zlib", `prefix=/usr
libdir=${prefix}/lib
includedir=${prefix}/include

Name: zlib
Description: zlib compression library
Version: 1.2.13
Libs: -L${libdir} -lz
Cflags: -I${includedir}
`)
	r := NewResolver([]string{dir})
	res, err := r.Find(Request{Name: "zlib", Required: true})
	if err != nil {
		t.Fatalf("Find() = %v", err)
	}
	if !res.Found || res.Version != "1.2.13" {
		t.Fatalf("res = %+v", res)
	}
	if len(res.LinkArgs) != 2 || res.LinkArgs[1] != "-lz" {
		t.Errorf("LinkArgs = %v", res.LinkArgs)
	}
}

func TestFindCachesByCanonicalKey(t *testing.T) {
	dir := t.TempDir()
	writePC(t, dir, "foo", "Name: foo\nVersion: 1.0\nLibs: -lfoo\nCflags:\n")
	r := NewResolver([]string{dir})
	a, err := r.Find(Request{Name: "foo"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Find(Request{Name: "foo"})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected the second Find to return the cached *Result")
	}
}

func TestFindRequiredMissingIsError(t *testing.T) {
	r := NewResolver([]string{t.TempDir()})
	_, err := r.Find(Request{Name: "doesnotexist", Required: true})
	if err == nil {
		t.Fatal("expected an error for a required, unresolvable dependency")
	}
}

func TestFindOptionalMissingReturnsNotFound(t *testing.T) {
	r := NewResolver([]string{t.TempDir()})
	res, err := r.Find(Request{Name: "doesnotexist", Required: false})
	if err != nil {
		t.Fatalf("Find() = %v", err)
	}
	if res.Found {
		t.Error("expected Found = false")
	}
}

func TestVersionConstraintRejectsTooOld(t *testing.T) {
	dir := t.TempDir()
	writePC(t, dir, "old", "Name: old\nVersion: 1.0.0\nLibs:\nCflags:\n")
	r := NewResolver([]string{dir})
	_, err := r.Find(Request{
		Name:     "old",
		Required: true,
		Versions: []VersionConstraint{{Op: ">=", Operand: "2.0.0"}},
	})
	if err == nil {
		t.Fatal("expected a version mismatch error")
	}
}

func TestPkgConfigFilesFromRequires(t *testing.T) {
	got := pkgConfigFilesFromRequires("atk >= 2.15.1, glib-2.0")
	want := []string{"atk", "glib-2.0"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.3", "1.2.4", -1},
		{"1.10.0", "1.9.0", 1},
		{"2.0", "1.9.9", 1},
	}
	for _, c := range cases {
		if got := compareVersions(c.a, c.b); sign(got) != sign(c.want) {
			t.Errorf("compareVersions(%q, %q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
