// Package model implements the build model (spec.md §3, §4.6): the
// project-wide mutable graph of targets, tests, and install rules the
// interpreter populates and the ninja backend serializes.
package model

import "fmt"

type TargetKind int

const (
	Executable TargetKind = iota
	StaticLibrary
	SharedLibrary
	CustomTarget
	RunTarget
)

// Generator describes a tool + argument template used to turn one input
// file into one or more output files in the owning target's private
// directory (spec.md §3).
type Generator struct {
	Name         string
	Executable   string // resolved program path or target output
	ArgTemplate  []string
	OutputSuffix []string // one or more @BASENAME@-relative output patterns
}

// GeneratedSource is one application of a Generator to one input.
type GeneratedSource struct {
	Generator *Generator
	Input     string
	Outputs   []string
}

// IncludeDir is a (base, subdirs) pair, kept both source- and
// build-relative per spec.md §3.
type IncludeDir struct {
	Base          string
	Subdirs       []string
	SourceRelative bool
}

// PrecompiledHeader is one PCH source for one language.
type PrecompiledHeader struct {
	Language string
	Header   string
}

// Alias is a shared library's short-name/soname pair.
type Alias struct {
	ShortName string
	SoName    string
}

// Target is one declared build artifact (spec.md §3).
type Target struct {
	Name      string
	Kind      TargetKind
	Subdir    string
	Sources   []string
	Generated []GeneratedSource

	Dependencies []*Target // direct target dependencies, in declaration order
	ExternalDeps []string  // canonical identifiers into the dependency cache

	ExtraCompileArgs map[string][]string // per language
	ExtraLinkArgs    []string

	// DependencyCompileArgs/DependencyLinkArgs are the resolved flags
	// contributed by this target's dependencies: entries (pkg-config
	// cflags/libs, declare_dependency() args, ...), kept separate from
	// ExtraCompileArgs/ExtraLinkArgs since they come from a different
	// kwarg and must still be composed into the backend's FLAGS /
	// LINK_FLAGS (spec.md §4.8.3.d).
	DependencyCompileArgs []string
	DependencyLinkArgs    []string

	Includes []IncludeDir
	PCH      []PrecompiledHeader

	Install    bool
	InstallDir string
	Aliases    []Alias // shared libraries only

	SoVersion string
	OutputFilename string

	// CustomCommand is set for CustomTarget and RunTarget kinds.
	CustomCommand []string
	CustomOutputs []string

	Languages []string // languages exercised by this target's Sources
}

// Output returns the i'th declared output of a custom target, for
// downstream targets that depend on one specific generated file rather
// than the whole output set (SPEC_FULL.md §4.6 supplement).
func (t *Target) Output(i int) string {
	if i < 0 || i >= len(t.CustomOutputs) {
		return ""
	}
	return t.CustomOutputs[i]
}

type Test struct {
	Name        string
	Exe         *Target
	Args        []string
	WorkDir     string
	Env         []string
	TimeoutSecs int
	Suites      []string
	IsParallel  bool
	IsCross     bool
	ExeWrapper  string
}

type HeaderInstall struct {
	Files      []string
	InstallDir string
	Subdir     string
}

type ManInstall struct {
	Files      []string
	InstallDir string
}

type DataInstall struct {
	Files      []string
	InstallDir string
}

type ConfigureFile struct {
	Input  string
	Output string
}

type Subproject struct {
	Name    string
	Exports map[string]interface{}
}

// Model is the project-wide root object (spec.md §3).
type Model struct {
	ProjectName     string
	Version         string
	DefaultLangs    []string
	TargetsByName   map[string]*Target
	TargetOrder     []string // declaration order, for topological emission
	Tests           []*Test
	HeaderInstalls  []HeaderInstall
	ManInstalls     []ManInstall
	DataInstalls    []DataInstall
	ConfigureFiles  []ConfigureFile
	Subprojects     map[string]*Subproject
}

func New() *Model {
	return &Model{
		TargetsByName: map[string]*Target{},
		Subprojects:   map[string]*Subproject{},
	}
}

// AddTarget registers a new target. It rejects name collisions and
// dependencies that were not declared before t, and, for static
// libraries, walks t.Dependencies depth-first to reject any edge that
// would make an already-registered target transitively depend on t —
// which, because declaration order is the only legal order, is
// equivalent to forbidding forward references (spec.md §4.6).
func (m *Model) AddTarget(t *Target) error {
	if _, exists := m.TargetsByName[t.Name]; exists {
		return fmt.Errorf("target %q: a target with this name already exists", t.Name)
	}
	for _, dep := range t.Dependencies {
		if _, known := m.TargetsByName[dep.Name]; !known {
			return fmt.Errorf("target %q: dependency %q was not declared before this target", t.Name, dep.Name)
		}
	}
	if t.Kind == StaticLibrary {
		if cyclic, via := m.wouldCycle(t); cyclic {
			return fmt.Errorf("target %q: dependency closure introduces a cycle via %q", t.Name, via)
		}
	}
	if len(t.Aliases) > 0 && t.Kind != SharedLibrary {
		return fmt.Errorf("target %q: aliases are only valid on shared libraries", t.Name)
	}
	m.TargetsByName[t.Name] = t
	m.TargetOrder = append(m.TargetOrder, t.Name)
	return nil
}

// wouldCycle walks t's dependency closure looking for a path back to t.
// Because AddTarget already enforces that every listed dependency was
// declared earlier, a cycle can only arise through a static library's
// transitively-linked dependency set re-including a target that now
// (directly or indirectly) depends on t.
func (m *Model) wouldCycle(t *Target) (bool, string) {
	visited := map[string]bool{}
	var walk func(cur *Target) (bool, string)
	walk = func(cur *Target) (bool, string) {
		for _, dep := range cur.Dependencies {
			if dep.Name == t.Name {
				return true, cur.Name
			}
			if visited[dep.Name] {
				continue
			}
			visited[dep.Name] = true
			if cyclic, via := walk(dep); cyclic {
				return true, via
			}
		}
		return false, ""
	}
	return walk(t)
}

func (m *Model) AddTest(t *Test) error {
	for _, existing := range m.Tests {
		if existing.Name == t.Name {
			return fmt.Errorf("test %q: already declared", t.Name)
		}
	}
	m.Tests = append(m.Tests, t)
	return nil
}

func (m *Model) AddHeaderInstall(h HeaderInstall) { m.HeaderInstalls = append(m.HeaderInstalls, h) }
func (m *Model) AddManInstall(man ManInstall)      { m.ManInstalls = append(m.ManInstalls, man) }
func (m *Model) AddDataInstall(d DataInstall)      { m.DataInstalls = append(m.DataInstalls, d) }

func (m *Model) AddConfigureFile(c ConfigureFile) error {
	for _, existing := range m.ConfigureFiles {
		if existing.Output == c.Output {
			return fmt.Errorf("configure_file: output %q already registered", c.Output)
		}
	}
	m.ConfigureFiles = append(m.ConfigureFiles, c)
	return nil
}

// RegisterGeneratorResult records the outputs of one generator
// application against the owning target, so downstream targets that
// reference those outputs by name can resolve them (spec.md §4.6).
func (m *Model) RegisterGeneratorResult(t *Target, gs GeneratedSource) {
	t.Generated = append(t.Generated, gs)
}

// OrderedTargets returns targets in a topological order (dependencies
// first), which for forge is simply declaration order, since AddTarget
// already forbids forward references.
func (m *Model) OrderedTargets() []*Target {
	out := make([]*Target, 0, len(m.TargetOrder))
	for _, name := range m.TargetOrder {
		out = append(out, m.TargetsByName[name])
	}
	return out
}
