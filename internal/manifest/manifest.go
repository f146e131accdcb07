// Package manifest writes the install plan and test plan forge derives
// from the build model (spec.md §4.9, §4.10): meson-info/intro-install_plan.json
// and meson-info/intro-tests.json equivalents, persisted the same
// versioned-JSON-plus-atomic-replace way as internal/coredata.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/internal/model"

	"github.com/google/renameio"
)

// InstallEntry is one file or directory copy the install step performs.
type InstallEntry struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Tag         string `json:"tag"` // "runtime", "devel", "header", "man", "data"
}

// InstallPlan is the full ordered install manifest.
type InstallPlan struct {
	Prefix  string         `json:"prefix"`
	Entries []InstallEntry `json:"entries"`
}

// BuildInstallPlan walks the model's targets and install declarations
// in declaration order, so re-running configure with no changes
// produces byte-identical output.
func BuildInstallPlan(m *model.Model, prefix, bindir, libdir, includedir, datadir, mandir string) *InstallPlan {
	plan := &InstallPlan{Prefix: prefix}
	for _, t := range m.OrderedTargets() {
		if !t.Install {
			continue
		}
		destDir := t.InstallDir
		if destDir == "" {
			switch t.Kind {
			case model.StaticLibrary, model.SharedLibrary:
				destDir = libdir
			default:
				destDir = bindir
			}
		}
		tag := "runtime"
		if t.Kind == model.StaticLibrary || t.Kind == model.SharedLibrary {
			tag = "devel"
		}
		plan.Entries = append(plan.Entries, InstallEntry{
			Source:      t.Name,
			Destination: filepath.Join(destDir, t.Name),
			Tag:         tag,
		})
		for _, alias := range t.Aliases {
			plan.Entries = append(plan.Entries, InstallEntry{
				Source:      t.Name,
				Destination: filepath.Join(destDir, alias.SoName),
				Tag:         "devel",
			})
		}
	}
	for _, h := range m.HeaderInstalls {
		for _, f := range h.Files {
			plan.Entries = append(plan.Entries, InstallEntry{
				Source:      f,
				Destination: filepath.Join(includedir, h.Subdir, filepath.Base(f)),
				Tag:         "header",
			})
		}
	}
	for _, man := range m.ManInstalls {
		for _, f := range man.Files {
			plan.Entries = append(plan.Entries, InstallEntry{
				Source:      f,
				Destination: filepath.Join(mandir, "man"+sectionOf(f), filepath.Base(f)),
				Tag:         "man",
			})
		}
	}
	for _, d := range m.DataInstalls {
		dir := d.InstallDir
		if dir == "" {
			dir = datadir
		}
		for _, f := range d.Files {
			plan.Entries = append(plan.Entries, InstallEntry{
				Source:      f,
				Destination: filepath.Join(dir, filepath.Base(f)),
				Tag:         "data",
			})
		}
	}
	return plan
}

func sectionOf(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) == 2 {
		return ext[1:]
	}
	return "1"
}

// TestEntry is one test plan row.
type TestEntry struct {
	Name       string   `json:"name"`
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
	WorkDir    string   `json:"workdir"`
	Suites     []string `json:"suites"`
	TimeoutSec int      `json:"timeout"`
	IsParallel bool     `json:"is_parallel"`
}

type TestPlan struct {
	Tests []TestEntry `json:"tests"`
}

func BuildTestPlan(m *model.Model) *TestPlan {
	plan := &TestPlan{}
	for _, test := range m.Tests {
		exe := ""
		if test.Exe != nil {
			exe = test.Exe.Name
		}
		plan.Tests = append(plan.Tests, TestEntry{
			Name:       test.Name,
			Executable: exe,
			Args:       test.Args,
			WorkDir:    test.WorkDir,
			Suites:     test.Suites,
			TimeoutSec: test.TimeoutSecs,
			IsParallel: test.IsParallel,
		})
	}
	return plan
}

// WriteJSON atomically persists v as indented JSON, creating the parent
// directory if necessary, the same discipline internal/coredata uses
// for coredata.dat.
func WriteJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, b, 0644)
}

// InstallPlanPath and TestPlanPath mirror spec.md §6's meson-info/
// naming convention so tooling built against those file names keeps
// working unmodified.
func InstallPlanPath(buildDir string) string {
	return filepath.Join(buildDir, "meson-info", "intro-install_plan.json")
}

func TestPlanPath(buildDir string) string {
	return filepath.Join(buildDir, "meson-info", "intro-tests.json")
}

func TargetsPath(buildDir string) string {
	return filepath.Join(buildDir, "meson-info", "intro-targets.ndjson")
}
