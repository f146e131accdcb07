package manifest

import (
	"testing"

	"github.com/forgebuild/forge/internal/model"
)

func TestBuildInstallPlanSkipsUninstalledTargets(t *testing.T) {
	m := model.New()
	if err := m.AddTarget(&model.Target{Name: "app", Kind: model.Executable, Install: false}); err != nil {
		t.Fatal(err)
	}
	if err := m.AddTarget(&model.Target{Name: "tool", Kind: model.Executable, Install: true}); err != nil {
		t.Fatal(err)
	}
	plan := BuildInstallPlan(m, "/usr/local", "bin", "lib", "include", "share", "share/man")
	if len(plan.Entries) != 1 || plan.Entries[0].Source != "tool" {
		t.Errorf("Entries = %+v", plan.Entries)
	}
}

func TestBuildInstallPlanHeadersUseSubdir(t *testing.T) {
	m := model.New()
	m.AddHeaderInstall(model.HeaderInstall{Files: []string{"foo.h"}, Subdir: "mylib"})
	plan := BuildInstallPlan(m, "/usr/local", "bin", "lib", "include", "share", "share/man")
	if len(plan.Entries) != 1 || plan.Entries[0].Destination != "include/mylib/foo.h" {
		t.Errorf("Entries = %+v", plan.Entries)
	}
}

func TestBuildTestPlanCarriesExecutableName(t *testing.T) {
	m := model.New()
	exe := &model.Target{Name: "app", Kind: model.Executable}
	m.AddTarget(exe)
	m.AddTest(&model.Test{Name: "smoke", Exe: exe, Args: []string{"--fast"}})
	plan := BuildTestPlan(m)
	if len(plan.Tests) != 1 || plan.Tests[0].Executable != "app" {
		t.Errorf("Tests = %+v", plan.Tests)
	}
}
