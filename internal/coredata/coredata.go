package coredata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// FormatVersion is bumped whenever the persisted shape changes in a way
// older forge binaries cannot read. A mismatch on load is a hard error
// instructing the user to wipe the build directory (spec.md §4.3).
const FormatVersion = 1

// CompilerRecord remembers which executable and family forge picked for a
// language, and which environment variable (if any) drove the choice —
// spec.md §3 plus the SPEC_FULL.md §3 supplement about detecting a
// changed CC/CXX/etc. across runs.
type CompilerRecord struct {
	Language   string
	Executable string
	Family     string
	Version    string
	EnvVar     string // "" if chosen from the default list, not an env var
}

// DependencyRecord is one cached result of internal/depends.Find, keyed by
// its canonical identifier (spec.md §4.5).
type DependencyRecord struct {
	Key         string
	Found       bool
	Version     string
	CompileArgs []string
	LinkArgs    []string
	Strategy    string // "pkgconfig", "provider:<name>", "framework", "fallback"
}

// Data is the full persisted core-data record (spec.md §3).
type Data struct {
	FormatVersion int                          `json:"format_version"`
	Options       map[string]persistedOption   `json:"options"`
	Compilers     map[string]CompilerRecord    `json:"compilers"`
	Dependencies  map[string]DependencyRecord  `json:"dependencies"`
	Coverage      bool                         `json:"coverage"`
	CompileArgs   map[string][]string          `json:"compile_args"`   // per-language extra compile args
	LinkArgs      map[string][]string          `json:"link_args"`      // per-language extra link args
	CompilerOpts  map[string]map[string]string `json:"compiler_opts"`  // per-compiler options
}

type persistedOption struct {
	Kind        OptionKind  `json:"kind"`
	Value       interface{} `json:"value"`
	Default     interface{} `json:"default"`
	Description string      `json:"description"`
	Choices     []string    `json:"choices,omitempty"`
	Builtin     bool        `json:"builtin"`
	Readonly    bool        `json:"readonly"`
}

// coreDataFile returns <builddir>/meson-private/coredata.dat. forge keeps
// the teacher-adjacent external file names from spec.md §6 so tooling
// built against them doesn't need to change.
func coreDataFile(buildDir string) string {
	return filepath.Join(buildDir, "meson-private", "coredata.dat")
}

// Load reads a previously persisted Data record, or returns
// (nil, os.ErrNotExist-wrapping-error) if this is the first configure.
func Load(buildDir string) (*Data, error) {
	b, err := os.ReadFile(coreDataFile(buildDir))
	if err != nil {
		return nil, err
	}
	var d Data
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("coredata: corrupt %s: %w", coreDataFile(buildDir), err)
	}
	if d.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("coredata: %s was written by an incompatible forge version (format %d, want %d); wipe the build directory and reconfigure", coreDataFile(buildDir), d.FormatVersion, FormatVersion)
	}
	return &d, nil
}

// Save atomically replaces the persisted core-data file, via
// renameio.WriteFile so a crash mid-write never leaves a truncated or
// partially-written file in place (spec.md §5).
func Save(buildDir string, reg *Registry, compilers map[string]CompilerRecord, deps map[string]DependencyRecord, coverage bool) error {
	dir := filepath.Join(buildDir, "meson-private")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	d := Data{
		FormatVersion: FormatVersion,
		Options:       map[string]persistedOption{},
		Compilers:     compilers,
		Dependencies:  deps,
		Coverage:      coverage,
	}
	for name, opt := range reg.All() {
		d.Options[name] = persistedOption{
			Kind:        opt.Kind,
			Value:       opt.Value,
			Default:     opt.Default,
			Description: opt.Description,
			Choices:     opt.Choices,
			Builtin:     opt.Builtin,
			Readonly:    opt.Readonly,
		}
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(coreDataFile(buildDir), b, 0644)
}

// RegistryFromData reconstructs a Registry from a persisted Data record,
// for --reconfigure (spec.md §4.10).
func RegistryFromData(d *Data) *Registry {
	r := NewRegistry()
	for name, po := range d.Options {
		r.opts[name] = &Option{
			Name:        name,
			Kind:        po.Kind,
			Value:       po.Value,
			Default:     po.Default,
			Description: po.Description,
			Choices:     po.Choices,
			Builtin:     po.Builtin,
			Readonly:    po.Readonly,
		}
	}
	return r
}
