// Package coredata implements the persisted core-data record (spec.md §3,
// §4.3): builtin and project options, detected-compiler identity, and the
// dependency cache, loaded and saved as a versioned JSON document.
package coredata

import "fmt"

// OptionKind is the closed set of option value kinds spec.md §3 defines.
type OptionKind int

const (
	OptString OptionKind = iota
	OptBool
	OptCombo
	OptInt
	OptStringArray
)

// Option is one builtin or project-declared option.
type Option struct {
	Name        string
	Kind        OptionKind
	Description string
	Value       interface{} // string, bool, int64, or []string
	Default     interface{}
	Choices     []string // only meaningful for OptCombo
	Builtin     bool
	// Readonly marks a builtin option that only the interpreter itself may
	// mutate (never -Dname=value); see SPEC_FULL.md §3 supplement.
	Readonly bool
}

// BuiltinNames is the fixed set of builtin option names spec.md §3
// enumerates. Redeclaring any of these in a project option file is an
// error (spec.md §4.3).
var BuiltinNames = map[string]bool{
	"buildtype":        true,
	"warning_level":    true,
	"strip":            true,
	"b_coverage":       true,
	"default_library":  true,
	"unity":            true,
	"prefix":           true,
	"libdir":           true,
	"bindir":           true,
	"includedir":       true,
	"datadir":          true,
	"mandir":           true,
	"localedir":        true,
}

func defaultBuiltins() map[string]*Option {
	mk := func(name string, kind OptionKind, def interface{}, desc string, choices ...string) *Option {
		return &Option{Name: name, Kind: kind, Value: def, Default: def, Description: desc, Choices: choices, Builtin: true}
	}
	opts := map[string]*Option{
		"buildtype":       mk("buildtype", OptCombo, "debug", "build type", "plain", "debug", "debugoptimized", "release", "minsize"),
		"warning_level":   mk("warning_level", OptCombo, "1", "compiler warning level", "0", "1", "2", "3"),
		"strip":           mk("strip", OptBool, false, "strip symbols on install"),
		"b_coverage":      mk("b_coverage", OptBool, false, "enable coverage instrumentation"),
		"default_library": mk("default_library", OptCombo, "shared", "default library kind", "shared", "static", "both"),
		"unity":           mk("unity", OptCombo, "off", "unity build mode", "on", "off", "subprojects"),
		"prefix":          mk("prefix", OptString, "/usr/local", "install prefix"),
		"libdir":          mk("libdir", OptString, "lib", "library install dir, relative to prefix"),
		"bindir":          mk("bindir", OptString, "bin", "executable install dir, relative to prefix"),
		"includedir":      mk("includedir", OptString, "include", "header install dir, relative to prefix"),
		"datadir":         mk("datadir", OptString, "share", "data install dir, relative to prefix"),
		"mandir":          mk("mandir", OptString, "share/man", "man page install dir, relative to prefix"),
		"localedir":       mk("localedir", OptString, "share/locale", "locale install dir, relative to prefix"),
	}
	return opts
}

// Registry holds every option known to one configure run: builtins plus
// project-declared options, keyed by canonical name (subproject-prefixed
// where applicable).
type Registry struct {
	opts map[string]*Option
}

func NewRegistry() *Registry {
	r := &Registry{opts: map[string]*Option{}}
	for name, opt := range defaultBuiltins() {
		r.opts[name] = opt
	}
	return r
}

func (r *Registry) Get(name string) (*Option, bool) {
	o, ok := r.opts[name]
	return o, ok
}

func (r *Registry) All() map[string]*Option { return r.opts }

// Declare registers a project option. Redeclaring a builtin name, or
// declaring the same project option name twice, is an error.
func (r *Registry) Declare(opt *Option) error {
	if BuiltinNames[opt.Name] {
		return fmt.Errorf("option %q: reserved builtin option name cannot be redeclared", opt.Name)
	}
	if _, exists := r.opts[opt.Name]; exists {
		return fmt.Errorf("option %q: already declared", opt.Name)
	}
	r.opts[opt.Name] = opt
	return nil
}

// Override applies a `-Dname=value` command-line override. Lookups
// consult overrides before the option file and before builtin defaults
// (spec.md §4.3), so Override always wins once the option exists.
func (r *Registry) Override(name, rawValue string) error {
	opt, ok := r.opts[name]
	if !ok {
		return fmt.Errorf("unknown option %q", name)
	}
	if opt.Readonly {
		return fmt.Errorf("option %q is read-only and cannot be overridden", name)
	}
	v, err := parseValueForKind(opt.Kind, opt.Choices, rawValue)
	if err != nil {
		return fmt.Errorf("option %q: %w", name, err)
	}
	opt.Value = v
	return nil
}

func parseValueForKind(kind OptionKind, choices []string, raw string) (interface{}, error) {
	switch kind {
	case OptBool:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, fmt.Errorf("invalid boolean value %q", raw)
		}
	case OptCombo:
		for _, c := range choices {
			if c == raw {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("value %q is not one of %v", raw, choices)
	case OptInt:
		var n int64
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
			return nil, fmt.Errorf("invalid integer value %q", raw)
		}
		return n, nil
	case OptStringArray:
		if raw == "" {
			return []string{}, nil
		}
		var out []string
		cur := ""
		for _, r := range raw {
			if r == ',' {
				out = append(out, cur)
				cur = ""
				continue
			}
			cur += string(r)
		}
		out = append(out, cur)
		return out, nil
	default:
		return raw, nil
	}
}
