// Package ninja serializes a build model (spec.md §4.9) into a
// build.ninja manifest: one rule per language/link-step combination,
// one build statement per target, and a phony "all" aggregate, written
// with an atomic replace so a crash mid-regeneration never leaves ninja
// looking at a truncated manifest.
package ninja

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forgebuild/forge/internal/model"
	"github.com/forgebuild/forge/internal/toolchain"

	"github.com/google/renameio"
)

// Writer accumulates rules and build statements and renders them
// deterministically: rules in first-declared order, build statements in
// model.Target declaration order, so two configures of unchanged input
// produce byte-identical output (spec.md §8 property: ninja manifest
// idempotence).
type Writer struct {
	ruleOrder []string
	rules     map[string]rule
	builds    []buildStmt
	defaults  []string
	phonies   map[string][]string
	phonyOrder []string
}

type rule struct {
	name        string
	command     string
	description string
	depfile     string
	deps        string // "gcc" or "" (msvc's /showIncludes form is unsupported; spec.md Non-goals)
	restat      bool
}

type buildStmt struct {
	outputs     []string
	rule        string
	inputs      []string
	implicitIn  []string
	orderOnlyIn []string
	variables   map[string]string
}

func New() *Writer {
	return &Writer{rules: map[string]rule{}, phonies: map[string][]string{}}
}

func (w *Writer) AddRule(name, command, description string) {
	if _, exists := w.rules[name]; !exists {
		w.ruleOrder = append(w.ruleOrder, name)
	}
	w.rules[name] = rule{name: name, command: command, description: description}
}

func (w *Writer) AddRuleWithDeps(name, command, description, depfile, deps string) {
	if _, exists := w.rules[name]; !exists {
		w.ruleOrder = append(w.ruleOrder, name)
	}
	w.rules[name] = rule{name: name, command: command, description: description, depfile: depfile, deps: deps}
}

// SetRestat marks an already-declared rule as restat: ninja re-stats
// the rule's outputs after running it and skips anything that only
// depended on an output whose mtime didn't actually change — exactly
// what the regenerate rule needs so a reconfigure that produces an
// identical build.ninja doesn't cascade into rebuilding everything
// that depends on it.
func (w *Writer) SetRestat(name string) {
	r := w.rules[name]
	r.restat = true
	w.rules[name] = r
}

func (w *Writer) Build(outputs []string, ruleName string, inputs, implicitIn, orderOnlyIn []string, vars map[string]string) {
	w.builds = append(w.builds, buildStmt{
		outputs:     outputs,
		rule:        ruleName,
		inputs:      inputs,
		implicitIn:  implicitIn,
		orderOnlyIn: orderOnlyIn,
		variables:   vars,
	})
}

// Phony registers (or extends) a phony aggregate target, deduplicating
// repeated additions of the same dependency — spec.md §4.9 edge case:
// two targets in the same subdir both feeding the "all" phony.
func (w *Writer) Phony(name string, deps ...string) {
	if _, exists := w.phonies[name]; !exists {
		w.phonyOrder = append(w.phonyOrder, name)
	}
	existing := w.phonies[name]
	seen := map[string]bool{}
	for _, d := range existing {
		seen[d] = true
	}
	for _, d := range deps {
		if !seen[d] {
			existing = append(existing, d)
			seen[d] = true
		}
	}
	w.phonies[name] = existing
}

func (w *Writer) SetDefault(targets ...string) { w.defaults = append(w.defaults, targets...) }

// quote escapes ninja's three special characters: '$', ':' (output-list
// separator), and space.
func quote(s string) string {
	s = strings.ReplaceAll(s, "$", "$$")
	s = strings.ReplaceAll(s, ":", "$:")
	s = strings.ReplaceAll(s, " ", "$ ")
	return s
}

func quoteAll(ss []string) string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = quote(s)
	}
	return strings.Join(out, " ")
}

// Render produces the manifest text. It never touches the filesystem
// itself — Write does that — so tests can assert on content directly.
func (w *Writer) Render() []byte {
	var b bytes.Buffer
	fmt.Fprintln(&b, "# generated by forge; do not edit")
	fmt.Fprintln(&b, "ninja_required_version = 1.8.2")
	fmt.Fprintln(&b)
	for _, name := range w.ruleOrder {
		r := w.rules[name]
		fmt.Fprintf(&b, "rule %s\n", r.name)
		fmt.Fprintf(&b, "  command = %s\n", r.command)
		if r.description != "" {
			fmt.Fprintf(&b, "  description = %s\n", r.description)
		}
		if r.depfile != "" {
			fmt.Fprintf(&b, "  depfile = %s\n", r.depfile)
		}
		if r.deps != "" {
			fmt.Fprintf(&b, "  deps = %s\n", r.deps)
		}
		if r.restat {
			fmt.Fprintln(&b, "  restat = 1")
		}
		fmt.Fprintln(&b)
	}
	for _, stmt := range w.builds {
		line := fmt.Sprintf("build %s: %s", quoteAll(stmt.outputs), stmt.rule)
		if len(stmt.inputs) > 0 {
			line += " " + quoteAll(stmt.inputs)
		}
		if len(stmt.implicitIn) > 0 {
			line += " | " + quoteAll(stmt.implicitIn)
		}
		if len(stmt.orderOnlyIn) > 0 {
			line += " || " + quoteAll(stmt.orderOnlyIn)
		}
		fmt.Fprintln(&b, line)
		varNames := make([]string, 0, len(stmt.variables))
		for k := range stmt.variables {
			varNames = append(varNames, k)
		}
		sort.Strings(varNames)
		for _, k := range varNames {
			fmt.Fprintf(&b, "  %s = %s\n", k, stmt.variables[k])
		}
	}
	for _, name := range w.phonyOrder {
		fmt.Fprintf(&b, "build %s: phony %s\n", quote(name), quoteAll(w.phonies[name]))
	}
	if len(w.defaults) > 0 {
		fmt.Fprintf(&b, "default %s\n", quoteAll(w.defaults))
	}
	return b.Bytes()
}

// Write renders and atomically replaces buildNinjaPath.
func (w *Writer) Write(buildNinjaPath string) error {
	return renameio.WriteFile(buildNinjaPath, w.Render(), 0644)
}

// Generate is the full spec.md §4.9 pipeline: a C and a C++ compile
// rule (both always declared), one link rule per target kind,
// a build statement per target, a regenerate edge covering every
// build-definition file that was read, a clean target, and an "all" +
// per-target phony. build_always_stale marks RunTarget outputs so
// ninja reruns them on every invocation, matching meson's run_target
// semantics (SPEC_FULL.md §4.9 supplement).
func Generate(m *model.Model, compilers map[string]*toolchain.Compiler, buildDir, sourceRoot, forgeExe string, readFiles []string) *Writer {
	w := New()
	w.AddRuleWithDeps("cc", "$CC -MD -MF $DEPFILE $FLAGS -c $in -o $out", "Compiling C object $out", "$DEPFILE", "gcc")
	w.AddRuleWithDeps("cxx", "$CXX -MD -MF $DEPFILE $FLAGS -c $in -o $out", "Compiling C++ object $out", "$DEPFILE", "gcc")
	w.AddRule("link_exe", "$LINKER $FLAGS $in -o $out $LINK_FLAGS", "Linking target $out")
	w.AddRule("link_static", "rm -f $out && $AR crs $out $in", "Linking static target $out")
	w.AddRule("link_shared", "$LINKER -shared $FLAGS $in -o $OUT $LINK_FLAGS && $ALIASING", "Linking shared target $OUT")
	w.AddRule("custom", "$COMMAND", "Generating $out")
	w.AddRule("regenerate", forgeExe+" setup --reconfigure $SOURCE_ROOT $BUILD_ROOT", "Regenerating build files")
	w.SetRestat("regenerate")
	w.AddRule("clean", "rm -rf $FILES", "Cleaning build outputs")

	var allDeps []string
	var everyOutput []string
	for _, t := range m.OrderedTargets() {
		outputs := targetOutputs(t, buildDir)
		switch t.Kind {
		case model.Executable, model.StaticLibrary, model.SharedLibrary:
			objDir := filepath.Join(buildDir, t.Subdir, t.Name+".p")
			var objects []string
			for _, src := range t.Sources {
				lang := languageFor(src)
				obj := filepath.Join(objDir, filepath.Base(src)+".o")
				depfile := obj + ".d"
				rule := "cc"
				if lang == "cpp" {
					rule = "cxx"
				}
				w.Build([]string{obj}, rule, []string{filepath.Join(t.Subdir, src)}, nil, nil, map[string]string{
					"DEPFILE": depfile,
					"FLAGS":   strings.Join(compileArgsFor(t, lang, compilers), " "),
					"CC":      compilerExe(compilers, "c"),
					"CXX":     compilerExe(compilers, "cpp"),
				})
				objects = append(objects, obj)
				everyOutput = append(everyOutput, obj)
			}
			implicitDeps := dependencyOutputs(t, buildDir)
			switch t.Kind {
			case model.StaticLibrary:
				w.Build(outputs, "link_static", objects, implicitDeps, nil, map[string]string{"AR": "ar"})
			case model.SharedLibrary:
				linkFlags := append([]string{}, t.ExtraLinkArgs...)
				linkFlags = append(linkFlags, t.DependencyLinkArgs...)
				linkFlags = append(linkFlags, implicitDeps...)
				primary := outputs[0]
				aliasing := ":"
				buildOutputs := []string{primary}
				for _, alias := range t.Aliases {
					aliasPath := filepath.Join(buildDir, t.Subdir, alias.ShortName)
					aliasing = fmt.Sprintf("ln -sf %s %s", filepath.Base(primary), aliasPath)
					buildOutputs = append(buildOutputs, aliasPath)
				}
				if t.SoVersion != "" {
					linkFlags = append(linkFlags, "-Wl,-soname,lib"+t.Name+".so."+t.SoVersion)
				}
				w.Build(buildOutputs, "link_shared", objects, implicitDeps, nil, map[string]string{
					"LINKER": compilerExe(compilers, primaryLanguage(t)), "LINK_FLAGS": strings.Join(linkFlags, " "),
					"OUT": primary, "ALIASING": aliasing,
				})
				outputs = buildOutputs
			default:
				linkFlags := append([]string{}, t.ExtraLinkArgs...)
				linkFlags = append(linkFlags, t.DependencyLinkArgs...)
				linkFlags = append(linkFlags, implicitDeps...)
				w.Build(outputs, "link_exe", objects, implicitDeps, nil, map[string]string{
					"LINKER": compilerExe(compilers, primaryLanguage(t)), "LINK_FLAGS": strings.Join(linkFlags, " "),
				})
			}
		case model.CustomTarget, model.RunTarget:
			vars := map[string]string{"COMMAND": strings.Join(t.CustomCommand, " ")}
			var inputs []string
			for _, s := range t.Sources {
				inputs = append(inputs, filepath.Join(t.Subdir, s))
			}
			var implicit []string
			if t.Kind == model.RunTarget {
				// a phony with no inputs is always dirty, so anything
				// depending on it is rebuilt on every invocation.
				stale := t.Name + "_always_stale"
				w.Phony(stale)
				implicit = []string{stale}
			}
			w.Build(outputs, "custom", inputs, implicit, nil, vars)
		}
		w.Phony(t.Name, outputs...)
		everyOutput = append(everyOutput, outputs...)
		allDeps = append(allDeps, t.Name)
	}
	w.Phony("all", allDeps...)
	w.SetDefault("all")

	if len(readFiles) > 0 {
		w.Build([]string{filepath.Join(buildDir, "build.ninja")}, "regenerate", readFiles, nil, nil, map[string]string{
			"FORGE": forgeExe, "SOURCE_ROOT": sourceRoot, "BUILD_ROOT": buildDir,
		})
	}
	w.Build([]string{"clean"}, "clean", nil, nil, nil, map[string]string{"FILES": strings.Join(everyOutput, " ")})

	return w
}

// dependencyOutputs returns the built output paths of t's direct
// link_with targets, used both for ninja dependency tracking (so a
// rebuilt dependency retriggers a relink) and for the linker command
// line itself (spec.md §4.8.3.d).
func dependencyOutputs(t *model.Target, buildDir string) []string {
	var outs []string
	for _, dep := range t.Dependencies {
		outs = append(outs, targetOutputs(dep, buildDir)...)
	}
	return outs
}

func targetOutputs(t *model.Target, buildDir string) []string {
	if t.Kind == model.CustomTarget || t.Kind == model.RunTarget {
		outs := make([]string, len(t.CustomOutputs))
		for i, o := range t.CustomOutputs {
			outs[i] = filepath.Join(buildDir, t.Subdir, o)
		}
		return outs
	}
	name := t.Name
	switch t.Kind {
	case model.StaticLibrary:
		name = "lib" + t.Name + ".a"
	case model.SharedLibrary:
		name = "lib" + t.Name + ".so"
		if t.SoVersion != "" {
			name += "." + t.SoVersion
		}
	}
	return []string{filepath.Join(buildDir, t.Subdir, name)}
}

func languageFor(src string) string {
	switch filepath.Ext(src) {
	case ".cc", ".cpp", ".cxx":
		return "cpp"
	default:
		return "c"
	}
}

func primaryLanguage(t *model.Target) string {
	for _, s := range t.Sources {
		if languageFor(s) == "cpp" {
			return "cpp"
		}
	}
	return "c"
}

func compilerExe(compilers map[string]*toolchain.Compiler, lang string) string {
	if c, ok := compilers[lang]; ok {
		return c.Executable
	}
	return ""
}

func compileArgsFor(t *model.Target, lang string, compilers map[string]*toolchain.Compiler) []string {
	var args []string
	if c, ok := compilers[lang]; ok {
		args = append(args, c.WarningFlags("1")...)
	}
	for _, inc := range t.Includes {
		args = append(args, "-I"+inc.Base)
	}
	args = append(args, t.DependencyCompileArgs...)
	args = append(args, t.ExtraCompileArgs[lang]...)
	return args
}
