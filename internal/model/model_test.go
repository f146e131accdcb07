package model

import "testing"

func TestAddTargetRejectsDuplicateName(t *testing.T) {
	m := New()
	if err := m.AddTarget(&Target{Name: "app", Kind: Executable}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddTarget(&Target{Name: "app", Kind: Executable}); err == nil {
		t.Fatal("expected an error on duplicate target name")
	}
}

func TestAddTargetRejectsForwardReference(t *testing.T) {
	m := New()
	forward := &Target{Name: "libfoo", Kind: StaticLibrary}
	err := m.AddTarget(&Target{Name: "app", Kind: Executable, Dependencies: []*Target{forward}})
	if err == nil {
		t.Fatal("expected an error referencing an undeclared dependency")
	}
}

func TestWouldCycleDetectsCycle(t *testing.T) {
	m := New()
	a := &Target{Name: "a", Kind: StaticLibrary}
	if err := m.AddTarget(a); err != nil {
		t.Fatal(err)
	}
	b := &Target{Name: "b", Kind: StaticLibrary, Dependencies: []*Target{a}}
	if err := m.AddTarget(b); err != nil {
		t.Fatal(err)
	}
	// Check a candidate a that depends on b (with a's edge to b added too),
	// which would cycle; AddTarget itself would reject the duplicate name first.
	aPrime := &Target{Name: "a", Kind: StaticLibrary, Dependencies: []*Target{b}}
	a.Dependencies = append(a.Dependencies, b)
	if cyclic, _ := m.wouldCycle(aPrime); !cyclic {
		t.Fatal("expected wouldCycle to detect a-b-a")
	}
}

func TestAddTargetRejectsAliasOnNonSharedLibrary(t *testing.T) {
	m := New()
	t1 := &Target{Name: "app", Kind: Executable, Aliases: []Alias{{ShortName: "app", SoName: "app.so.1"}}}
	if err := m.AddTarget(t1); err == nil {
		t.Fatal("expected an error declaring aliases on a non-shared-library target")
	}
}

func TestOrderedTargetsPreservesDeclarationOrder(t *testing.T) {
	m := New()
	names := []string{"one", "two", "three"}
	for _, n := range names {
		if err := m.AddTarget(&Target{Name: n, Kind: Executable}); err != nil {
			t.Fatal(err)
		}
	}
	got := m.OrderedTargets()
	if len(got) != len(names) {
		t.Fatalf("len = %d, want %d", len(got), len(names))
	}
	for i, n := range names {
		if got[i].Name != n {
			t.Errorf("position %d = %q, want %q", i, got[i].Name, n)
		}
	}
}

func TestAddConfigureFileRejectsDuplicateOutput(t *testing.T) {
	m := New()
	if err := m.AddConfigureFile(ConfigureFile{Input: "a.h.in", Output: "a.h"}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddConfigureFile(ConfigureFile{Input: "b.h.in", Output: "a.h"}); err == nil {
		t.Fatal("expected an error on duplicate configure_file output")
	}
}
