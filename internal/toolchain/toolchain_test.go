package toolchain

import "testing"

func TestClassifyGCC(t *testing.T) {
	out := "cc (Debian 12.2.0-14) 12.2.0\nCopyright (C) 2022 Free Software Foundation, Inc.\n"
	family, version := classify(out)
	if family != FamilyGCC {
		t.Errorf("family = %v, want gcc", family)
	}
	if version != "12.2.0" {
		t.Errorf("version = %q, want 12.2.0", version)
	}
}

func TestClassifyClang(t *testing.T) {
	out := "clang version 16.0.6\nTarget: x86_64-pc-linux-gnu\n"
	family, version := classify(out)
	if family != FamilyClang {
		t.Errorf("family = %v, want clang", family)
	}
	if version != "16.0.6" {
		t.Errorf("version = %q, want 16.0.6", version)
	}
}

func TestClassifyUnknown(t *testing.T) {
	family, _ := classify("some random program, version 1.0\n")
	if family != FamilyUnknown {
		t.Errorf("family = %v, want unknown", family)
	}
}

func TestFlagsForBuildtypeDiffersByFamily(t *testing.T) {
	gcc := &Compiler{Family: FamilyGCC}
	msvc := &Compiler{Family: FamilyMSVC}
	if got := gcc.FlagsForBuildtype("release"); len(got) == 0 || got[0] != "-O3" {
		t.Errorf("gcc release flags = %v", got)
	}
	if got := msvc.FlagsForBuildtype("release"); len(got) == 0 || got[0] != "/O2" {
		t.Errorf("msvc release flags = %v", got)
	}
}

func TestWarningFlagsEscalateWithLevel(t *testing.T) {
	gcc := &Compiler{Family: FamilyGCC}
	if got := gcc.WarningFlags("0"); got != nil {
		t.Errorf("level 0 flags = %v, want nil", got)
	}
	if got := gcc.WarningFlags("3"); len(got) != 3 {
		t.Errorf("level 3 flags = %v, want 3 entries", got)
	}
}
