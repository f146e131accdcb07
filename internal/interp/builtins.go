package interp

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/forgebuild/forge/internal/ast"
	"github.com/forgebuild/forge/internal/depends"
	"github.com/forgebuild/forge/internal/diag"
	"github.com/forgebuild/forge/internal/model"
	"github.com/forgebuild/forge/internal/parser"

	"github.com/google/renameio"
)

func (in *Interp) evalFuncCall(e *ast.FuncCall) (Value, error) {
	if e.KeywordBeforePositional {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "keyword argument before positional argument")
	}
	args, kwargs, err := in.evalArgs(e.Args)
	if err != nil {
		return Value{}, err
	}
	switch e.Name {
	case "project":
		return in.biProject(e, args, kwargs)
	case "message":
		return in.biMessage(args)
	case "warning":
		return in.biWarning(args)
	case "error":
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%s", joinDisplay(args))
	case "assert":
		return in.biAssert(e, args)
	case "get_option":
		return in.biGetOption(e, args)
	case "set_variable":
		return in.biSetVariable(e, args)
	case "get_variable":
		return in.biGetVariable(e, args)
	case "executable":
		return in.biAddTarget(e, model.Executable, args, kwargs)
	case "static_library":
		return in.biAddTarget(e, model.StaticLibrary, args, kwargs)
	case "shared_library":
		return in.biAddTarget(e, model.SharedLibrary, args, kwargs)
	case "custom_target":
		return in.biCustomTarget(e, args, kwargs)
	case "dependency":
		return in.biDependency(e, args, kwargs)
	case "declare_dependency":
		return in.biDeclareDependency(e, kwargs)
	case "test":
		return in.biTest(e, args, kwargs)
	case "install_headers":
		return in.biInstallHeaders(args, kwargs)
	case "install_man":
		return in.biInstallMan(args)
	case "install_data":
		return in.biInstallData(args, kwargs)
	case "configure_file":
		return in.biConfigureFile(e, kwargs)
	case "subdir":
		return in.biSubdir(e, args)
	case "subproject":
		return in.biSubproject(e, args)
	case "configuration_data":
		return in.biConfigurationData(args)
	case "include_directories":
		return in.biIncludeDirectories(args)
	case "run_target":
		return in.biRunTarget(e, args, kwargs)
	case "run_command":
		return in.biRunCommand(e, args, kwargs)
	case "find_program":
		return in.biFindProgram(e, args)
	case "files":
		return in.biFiles(args)
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "unknown function %q", e.Name)
	}
}

func joinDisplay(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = ToDisplayString(a)
	}
	return strings.Join(parts, " ")
}

// biProject implements project(name, langs..., version: ..., default_options: ...)
// (spec.md §4.7). It must be the first statement; Run already checked that.
func (in *Interp) biProject(e *ast.FuncCall, args []Value, kwargs map[string]Value) (Value, error) {
	if in.projectSeen {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "project() may only be called once")
	}
	if len(args) == 0 || args[0].Kind != KindString {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "project() requires a name as its first argument")
	}
	in.Model.ProjectName = args[0].Str
	for _, a := range args[1:] {
		if a.Kind == KindString {
			in.Model.DefaultLangs = append(in.Model.DefaultLangs, a.Str)
		}
	}
	if v, ok := kwargs["version"]; ok && v.Kind == KindString {
		in.Model.Version = v.Str
	}
	if v, ok := kwargs["default_options"]; ok && v.Kind == KindArray {
		for _, opt := range v.Arr {
			if opt.Kind != KindString {
				continue
			}
			parts := strings.SplitN(opt.Str, "=", 2)
			if len(parts) == 2 {
				in.Options.Override(parts[0], parts[1])
			}
		}
	}
	in.projectSeen = true
	return Void(), nil
}

func (in *Interp) biMessage(args []Value) (Value, error) {
	diag.Log.Printf("%s", joinDisplay(args))
	return Void(), nil
}

func (in *Interp) biWarning(args []Value) (Value, error) {
	diag.Log.Warnf("%s", joinDisplay(args))
	return Void(), nil
}

func (in *Interp) biAssert(e *ast.FuncCall, args []Value) (Value, error) {
	if len(args) == 0 {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "assert() requires a condition")
	}
	ok, err := args[0].Truthy()
	if err != nil {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "assert(): %v", err)
	}
	if !ok {
		msg := "assertion failed"
		if len(args) > 1 {
			msg = ToDisplayString(args[1])
		}
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%s", msg)
	}
	return Void(), nil
}

func (in *Interp) biGetOption(e *ast.FuncCall, args []Value) (Value, error) {
	if len(args) == 0 || args[0].Kind != KindString {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "get_option() requires a string name")
	}
	opt, ok := in.Options.Get(args[0].Str)
	if !ok {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "unknown option %q", args[0].Str)
	}
	return goValueToForge(opt.Value), nil
}

func (in *Interp) biSetVariable(e *ast.FuncCall, args []Value) (Value, error) {
	if len(args) < 2 || args[0].Kind != KindString {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "set_variable() requires (name, value)")
	}
	in.cur.set(args[0].Str, args[1])
	return Void(), nil
}

func (in *Interp) biGetVariable(e *ast.FuncCall, args []Value) (Value, error) {
	if len(args) == 0 || args[0].Kind != KindString {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "get_variable() requires a string name")
	}
	if v, ok := in.cur.get(args[0].Str); ok {
		return v, nil
	}
	if len(args) > 1 {
		return args[1], nil
	}
	return Value{}, diag.New(diag.InvalidCode, e.Pos(), "undefined variable %q", args[0].Str)
}

func goValueToForge(v interface{}) Value {
	switch x := v.(type) {
	case bool:
		return Bool(x)
	case string:
		return Str(x)
	case int64:
		return Int(x)
	case []string:
		elems := make([]Value, len(x))
		for i, s := range x {
			elems[i] = Str(s)
		}
		return Array(elems...)
	default:
		return Str(fmt.Sprint(x))
	}
}

func stringArg(args []Value, i int) (string, bool) {
	if i >= len(args) || args[i].Kind != KindString {
		return "", false
	}
	return args[i].Str, true
}

func stringList(v Value) []string {
	if v.Kind == KindString {
		return []string{v.Str}
	}
	var out []string
	for _, e := range v.Arr {
		if e.Kind == KindString {
			out = append(out, e.Str)
		}
	}
	return out
}

func (in *Interp) biAddTarget(e *ast.FuncCall, kind model.TargetKind, args []Value, kwargs map[string]Value) (Value, error) {
	name, ok := stringArg(args, 0)
	if !ok {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "target name must be a string")
	}
	t := &model.Target{Name: name, Kind: kind, Subdir: in.curSubdir}
	for _, a := range args[1:] {
		t.Sources = append(t.Sources, stringList(a)...)
	}
	if srcs, ok := kwargs["sources"]; ok {
		t.Sources = append(t.Sources, stringList(srcs)...)
	}
	if depsV, ok := kwargs["dependencies"]; ok {
		for _, d := range flattenArray(depsV) {
			if d.Kind == KindDependency {
				t.ExternalDeps = append(t.ExternalDeps, d.Dep.Name)
				t.DependencyCompileArgs = append(t.DependencyCompileArgs, d.Dep.CompileArgs...)
				t.DependencyLinkArgs = append(t.DependencyLinkArgs, d.Dep.LinkArgs...)
			}
		}
	}
	if linkV, ok := kwargs["link_with"]; ok {
		for _, l := range flattenArray(linkV) {
			if l.Kind == KindTarget {
				t.Dependencies = append(t.Dependencies, l.Target)
			}
		}
	}
	if incV, ok := kwargs["include_directories"]; ok {
		for _, v := range flattenArray(incV) {
			if v.Kind == KindIncludeDirs {
				t.Includes = append(t.Includes, v.Inc.Dirs...)
			}
		}
	}
	if inst, ok := kwargs["install"]; ok && inst.Kind == KindBool {
		t.Install = inst.Bool
	}
	if dir, ok := kwargs["install_dir"]; ok && dir.Kind == KindString {
		t.InstallDir = dir.Str
	}
	if args2, ok := kwargs["c_args"]; ok {
		if t.ExtraCompileArgs == nil {
			t.ExtraCompileArgs = map[string][]string{}
		}
		t.ExtraCompileArgs["c"] = stringList(args2)
	}
	if args2, ok := kwargs["cpp_args"]; ok {
		if t.ExtraCompileArgs == nil {
			t.ExtraCompileArgs = map[string][]string{}
		}
		t.ExtraCompileArgs["cpp"] = stringList(args2)
	}
	if linkArgs, ok := kwargs["link_args"]; ok {
		t.ExtraLinkArgs = stringList(linkArgs)
	}
	if sov, ok := kwargs["soversion"]; ok {
		switch sov.Kind {
		case KindString:
			t.SoVersion = sov.Str
		case KindInt:
			t.SoVersion = fmt.Sprint(sov.Int)
		}
	}
	if t.Kind == model.SharedLibrary && t.SoVersion != "" {
		soName := "lib" + t.Name + ".so." + t.SoVersion
		shortName := "lib" + t.Name + ".so"
		t.Aliases = append(t.Aliases, model.Alias{ShortName: shortName, SoName: soName})
	}
	if err := in.Model.AddTarget(t); err != nil {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%v", err)
	}
	return TargetValue(t), nil
}

func flattenArray(v Value) []Value {
	if v.Kind != KindArray {
		return []Value{v}
	}
	var out []Value
	for _, e := range v.Arr {
		out = append(out, flattenArray(e)...)
	}
	return out
}

func (in *Interp) biCustomTarget(e *ast.FuncCall, args []Value, kwargs map[string]Value) (Value, error) {
	name, _ := stringArg(args, 0)
	if name == "" {
		name = fmt.Sprintf("custom_target_%d", len(in.Model.TargetOrder))
	}
	t := &model.Target{Name: name, Kind: model.CustomTarget, Subdir: in.curSubdir}
	if in2, ok := kwargs["input"]; ok {
		t.Sources = stringList(in2)
	}
	if out, ok := kwargs["output"]; ok {
		t.CustomOutputs = stringList(out)
	}
	if cmd, ok := kwargs["command"]; ok {
		t.CustomCommand = stringList(cmd)
	}
	if inst, ok := kwargs["install"]; ok && inst.Kind == KindBool {
		t.Install = inst.Bool
	}
	if dir, ok := kwargs["install_dir"]; ok && dir.Kind == KindString {
		t.InstallDir = dir.Str
	}
	if err := in.Model.AddTarget(t); err != nil {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%v", err)
	}
	return TargetValue(t), nil
}

var versionConstraintRe = regexp.MustCompile(`^\s*(>=|<=|==|!=|>|<|=)\s*(.+)$`)

func (in *Interp) biDependency(e *ast.FuncCall, args []Value, kwargs map[string]Value) (Value, error) {
	name, ok := stringArg(args, 0)
	if !ok {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "dependency() requires a name")
	}
	req := depends.Request{Name: name, Required: true}
	if r, ok := kwargs["required"]; ok && r.Kind == KindBool {
		req.Required = r.Bool
	}
	if s, ok := kwargs["static"]; ok && s.Kind == KindBool {
		req.Static = s.Bool
	}
	if v, ok := kwargs["version"]; ok {
		for _, vc := range stringList(v) {
			if m := versionConstraintRe.FindStringSubmatch(vc); m != nil {
				req.Versions = append(req.Versions, depends.VersionConstraint{Op: m[1], Operand: m[2]})
			}
		}
	}
	if comps, ok := kwargs["modules"]; ok {
		req.Components = stringList(comps)
	}

	var fallbackSubproject, fallbackVar string
	if fb, ok := kwargs["fallback"]; ok {
		items := stringList(fb)
		if len(items) == 2 {
			fallbackSubproject, fallbackVar = items[0], items[1]
		}
	}

	lookup := req
	if fallbackSubproject != "" {
		// don't let a required-but-not-yet-found lookup hard-fail before
		// the fallback subproject gets a chance to provide it.
		lookup.Required = false
	}
	res, err := in.Resolver.Find(lookup)
	if err != nil {
		return Value{}, err
	}
	if !res.Found && fallbackSubproject != "" {
		return in.dependencyFromSubprojectFallback(e, name, fallbackSubproject, fallbackVar, req.Required)
	}
	if !res.Found {
		if req.Required {
			return Value{}, diag.New(diag.DependencyError, e.Pos(), "dependency %q not found", name)
		}
		return DependencyResult(&DependencyValue{Name: name, Found: false}), nil
	}
	dv := &DependencyValue{
		Name:        name,
		Found:       res.Found,
		Version:     res.Version,
		CompileArgs: res.CompileArgs,
		LinkArgs:    res.LinkArgs,
	}
	return DependencyResult(dv), nil
}

// dependencyFromSubprojectFallback implements dependency()'s fallback:
// kwarg (spec.md §4.5 step 2): recursively configure the named
// subproject and look up the named exported variable, which must
// itself be a dependency-handle (typically returned by that
// subproject's own declare_dependency()).
func (in *Interp) dependencyFromSubprojectFallback(e *ast.FuncCall, name, subprojectName, varName string, required bool) (Value, error) {
	subVal, err := in.biSubproject(e, []Value{Str(subprojectName)})
	if err != nil {
		if required {
			return Value{}, err
		}
		return DependencyResult(&DependencyValue{Name: name, Found: false}), nil
	}
	depVal, ok := subVal.Sub.Vars[varName]
	if !ok || depVal.Kind != KindDependency {
		if required {
			return Value{}, diag.New(diag.DependencyError, e.Pos(), "subproject %q does not export a dependency variable %q", subprojectName, varName)
		}
		return DependencyResult(&DependencyValue{Name: name, Found: false}), nil
	}
	return depVal, nil
}

func (in *Interp) biDeclareDependency(e *ast.FuncCall, kwargs map[string]Value) (Value, error) {
	dv := &DependencyValue{Name: in.Model.ProjectName, Found: true}
	if la, ok := kwargs["link_args"]; ok {
		dv.LinkArgs = stringList(la)
	}
	if ca, ok := kwargs["compile_args"]; ok {
		dv.CompileArgs = stringList(ca)
	}
	return DependencyResult(dv), nil
}

func (in *Interp) biTest(e *ast.FuncCall, args []Value, kwargs map[string]Value) (Value, error) {
	name, ok := stringArg(args, 0)
	if !ok {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "test() requires a name")
	}
	if len(args) < 2 || args[1].Kind != KindTarget {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "test() requires an executable as its second argument")
	}
	test := &model.Test{Name: name, Exe: args[1].Target}
	if a, ok := kwargs["args"]; ok {
		test.Args = stringList(a)
	}
	if to, ok := kwargs["timeout"]; ok && to.Kind == KindInt {
		test.TimeoutSecs = int(to.Int)
	}
	if s, ok := kwargs["suite"]; ok {
		test.Suites = stringList(s)
	}
	if err := in.Model.AddTest(test); err != nil {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%v", err)
	}
	return Void(), nil
}

func (in *Interp) biInstallHeaders(args []Value, kwargs map[string]Value) (Value, error) {
	h := model.HeaderInstall{}
	for _, a := range args {
		h.Files = append(h.Files, stringList(a)...)
	}
	if d, ok := kwargs["subdir"]; ok && d.Kind == KindString {
		h.Subdir = d.Str
	}
	in.Model.AddHeaderInstall(h)
	return Void(), nil
}

func (in *Interp) biInstallMan(args []Value) (Value, error) {
	m := model.ManInstall{}
	for _, a := range args {
		m.Files = append(m.Files, stringList(a)...)
	}
	in.Model.AddManInstall(m)
	return Void(), nil
}

func (in *Interp) biInstallData(args []Value, kwargs map[string]Value) (Value, error) {
	d := model.DataInstall{}
	for _, a := range args {
		d.Files = append(d.Files, stringList(a)...)
	}
	if dir, ok := kwargs["install_dir"]; ok && dir.Kind == KindString {
		d.InstallDir = dir.Str
	}
	in.Model.AddDataInstall(d)
	return Void(), nil
}

var configureFileVarRe = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)@`)
var mesonDefineRe = regexp.MustCompile(`^#mesondefine\s+([A-Za-z_][A-Za-z0-9_]*)$`)

// biConfigureFile implements configure_file(input:, output:, configuration:)
// (spec.md §4.7): substitutes @VAR@ tokens, expands #mesondefine lines
// (spec.md §4.7, §6), and writes the result with an atomic replace,
// preserving the existing file's mtime when the rendered content is
// byte-identical so ninja does not see a spurious rebuild (spec.md
// §4.9 edge case).
func (in *Interp) biConfigureFile(e *ast.FuncCall, kwargs map[string]Value) (Value, error) {
	inputRel, ok := kwargs["input"]
	if !ok || inputRel.Kind != KindString {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "configure_file() requires input:")
	}
	outputRel, ok := kwargs["output"]
	if !ok || outputRel.Kind != KindString {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "configure_file() requires output:")
	}
	conf := map[string]Value{}
	if c, ok := kwargs["configuration"]; ok {
		switch c.Kind {
		case KindMap:
			for _, k := range c.MapKeys {
				conf[k] = c.Map[k]
			}
		case KindConfigData:
			for _, k := range c.Conf.Order {
				conf[k] = c.Conf.Values[k]
			}
		default:
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "configure_file(): configuration: must be a dict or configuration_data()")
		}
	}
	inPath := in.absSourcePath(inputRel.Str)
	outPath := in.absBuildPath(outputRel.Str)

	raw, err := os.ReadFile(inPath)
	if err != nil {
		return Value{}, diag.Wrap(diag.EnvironmentError, e.Pos(), err, "configure_file")
	}
	rendered, err := renderConfigureFile(string(raw), conf)
	if err != nil {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "configure_file: %v", err)
	}

	if existing, err := os.ReadFile(outPath); err == nil && string(existing) == rendered {
		return Str(outPath), nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return Value{}, err
	}
	if err := renameio.WriteFile(outPath, []byte(rendered), 0644); err != nil {
		return Value{}, diag.Wrap(diag.EnvironmentError, e.Pos(), err, "configure_file: writing %s", outPath)
	}
	if err := in.Model.AddConfigureFile(model.ConfigureFile{Input: inputRel.Str, Output: outputRel.Str}); err != nil {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%v", err)
	}
	return Str(outPath), nil
}

// renderConfigureFile applies @VAR@ substitution and #mesondefine
// expansion line by line (spec.md §4.7, §6): a line whose entire
// trimmed content is "#mesondefine VAR" is replaced wholesale; every
// other line only has its @VAR@ tokens substituted. No other form of
// #mesondefine is recognised.
func renderConfigureFile(raw string, conf map[string]Value) (string, error) {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if m := mesonDefineRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			lines[i] = renderMesonDefine(m[1], conf)
			continue
		}
		replaced, err := substituteConfigVars(line, conf)
		if err != nil {
			return "", err
		}
		lines[i] = replaced
	}
	return strings.Join(lines, "\n"), nil
}

func renderMesonDefine(name string, conf map[string]Value) string {
	v, ok := conf[name]
	if !ok {
		return "/* #undef " + name + " */"
	}
	if v.Kind == KindBool {
		if v.Bool {
			return "#define " + name
		}
		return "/* #undef " + name + " */"
	}
	return "#define " + name + " " + ToDisplayString(v)
}

func substituteConfigVars(line string, conf map[string]Value) (string, error) {
	var firstErr error
	result := configureFileVarRe.ReplaceAllStringFunc(line, func(tok string) string {
		name := tok[1 : len(tok)-1]
		v, ok := conf[name]
		if !ok {
			return tok
		}
		if v.Kind != KindString && v.Kind != KindInt {
			if firstErr == nil {
				firstErr = fmt.Errorf("@%s@ is not a string or string-like value", name)
			}
			return tok
		}
		return ToDisplayString(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// biSubdir implements subdir(name) (spec.md §4.7): parses and executes
// <subdir>/meson.build against the caller's own scope, so the
// subdirectory inherits the parent's variable environment by reference
// — anything it sets is visible to the caller once subdir() returns,
// and a subdir entered from within another subdir sees that enclosing
// subdir's bindings too, since no new scope is ever introduced. Only
// curSubdir (used to resolve subdir()-relative paths) is saved and
// restored; entering a subdir that has already been processed earlier
// in this run is rejected.
func (in *Interp) biSubdir(e *ast.FuncCall, args []Value) (Value, error) {
	name, ok := stringArg(args, 0)
	if !ok {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "subdir() requires a string")
	}
	full := filepath.Join(in.curSubdir, name)
	if in.visitedSubdirs[full] {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "subdir(%q): this subdirectory has already been processed", name)
	}
	in.visitedSubdirs[full] = true

	buildFile := filepath.Join(in.SourceRoot, full, "meson.build")
	src, err := os.ReadFile(buildFile)
	if err != nil {
		return Value{}, diag.Wrap(diag.EnvironmentError, e.Pos(), err, "subdir(%q)", name)
	}
	block, err := parser.Parse(buildFile, string(src))
	if err != nil {
		return Value{}, err
	}
	in.ReadFiles = append(in.ReadFiles, buildFile)

	savedSubdir := in.curSubdir
	in.curSubdir = full
	defer func() { in.curSubdir = savedSubdir }()
	return Void(), in.execBlock(block)
}

// biSubproject implements subproject(name) (spec.md §3, §4.5, §4.7):
// resolves subprojects/<name>/meson.build and evaluates it in its own
// isolated environment — a fresh Interp with its own scope and model,
// sharing only the context, option registry and dependency resolver —
// rather than the
// caller's scope the way subdir() does. The caller receives a
// subproject-handle whose .get_variable(name) retrieves the
// subproject's exported top-level variables. Repeated subproject()
// calls for the same name return the cached result instead of
// re-evaluating it.
func (in *Interp) biSubproject(e *ast.FuncCall, args []Value) (Value, error) {
	name, ok := stringArg(args, 0)
	if !ok {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "subproject() requires a name")
	}
	if cached, ok := in.subprojects[name]; ok {
		return Value{Kind: KindSubproject, Sub: cached}, nil
	}

	subRoot := filepath.Join(in.SourceRoot, "subprojects", name)
	buildFile := filepath.Join(subRoot, "meson.build")
	src, err := os.ReadFile(buildFile)
	if err != nil {
		return Value{}, diag.Wrap(diag.EnvironmentError, e.Pos(), err, "subproject(%q)", name)
	}

	sub := New(in.Ctx, subRoot, filepath.Join(in.BuildRoot, "subprojects", name), in.Options, in.Resolver)
	if err := sub.Run(buildFile, string(src)); err != nil {
		return Value{}, diag.Wrap(diag.InvalidCode, e.Pos(), err, "subproject(%q)", name)
	}
	in.ReadFiles = append(in.ReadFiles, sub.ReadFiles...)

	remapped := map[*model.Target]*model.Target{}
	for _, st := range sub.Model.OrderedTargets() {
		merged := *st
		merged.Subdir = filepath.Join("subprojects", name, st.Subdir)
		merged.Dependencies = nil
		for _, dep := range st.Dependencies {
			merged.Dependencies = append(merged.Dependencies, remapped[dep])
		}
		if err := in.Model.AddTarget(&merged); err != nil {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "subproject(%q): %v", name, err)
		}
		remapped[st] = &merged
	}

	exported := map[string]Value{}
	for k, v := range sub.root.vars {
		exported[k] = v
	}
	if in.subprojects == nil {
		in.subprojects = map[string]*SubprojectHandle{}
	}
	handle := &SubprojectHandle{Name: name, Found: true, Vars: exported}
	in.subprojects[name] = handle
	in.Model.Subprojects[name] = &model.Subproject{Name: name}
	return Value{Kind: KindSubproject, Sub: handle}, nil
}

// biConfigurationData implements configuration_data() (spec.md §3,
// §4.7): an empty, mutable key/value store whose .set() method
// populates it for later use as configure_file()'s configuration:
// argument.
func (in *Interp) biConfigurationData(args []Value) (Value, error) {
	return Value{Kind: KindConfigData, Conf: &ConfigData{Values: map[string]Value{}}}, nil
}

// biIncludeDirectories implements include_directories(dirs...)
// (spec.md §3): each argument names a source-relative directory under
// the current subdir, bundled into a handle a target's
// include_directories: kwarg accepts.
func (in *Interp) biIncludeDirectories(args []Value) (Value, error) {
	inc := &IncludeDirsValue{}
	for _, a := range args {
		for _, s := range stringList(a) {
			inc.Dirs = append(inc.Dirs, model.IncludeDir{Base: filepath.Join(in.curSubdir, s), SourceRelative: true})
		}
	}
	return Value{Kind: KindIncludeDirs, Inc: inc}, nil
}

// biRunTarget implements run_target(name, command: ...) (spec.md §3):
// a target with no real outputs that ninja always considers stale, so
// invoking it reruns its command unconditionally (SPEC_FULL.md §4.9
// supplement).
func (in *Interp) biRunTarget(e *ast.FuncCall, args []Value, kwargs map[string]Value) (Value, error) {
	name, ok := stringArg(args, 0)
	if !ok {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "run_target() requires a name")
	}
	t := &model.Target{Name: name, Kind: model.RunTarget, Subdir: in.curSubdir}
	if cmd, ok := kwargs["command"]; ok {
		t.CustomCommand = stringList(cmd)
	} else {
		for _, a := range args[1:] {
			t.CustomCommand = append(t.CustomCommand, stringList(a)...)
		}
	}
	if len(t.CustomCommand) == 0 {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "run_target(%q) requires a command", name)
	}
	t.CustomOutputs = []string{name + "_run_stamp"}
	if err := in.Model.AddTarget(t); err != nil {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%v", err)
	}
	return TargetValue(t), nil
}

// biRunCommand implements run_command(command, args...) (spec.md §3):
// runs a command immediately, at configure time, and returns its
// captured stdout/stderr/exit code as a dict so the caller can inspect
// it inline (e.g. to feed a version string into configuration_data()).
func (in *Interp) biRunCommand(e *ast.FuncCall, args []Value, kwargs map[string]Value) (Value, error) {
	if len(args) == 0 || args[0].Kind != KindString {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "run_command() requires a command")
	}
	var cmdArgs []string
	for _, a := range args[1:] {
		cmdArgs = append(cmdArgs, stringList(a)...)
	}
	cmd := exec.CommandContext(in.Ctx, args[0].Str, cmdArgs...)
	cmd.Dir = in.absSourcePath(".")
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	runErr := cmd.Run()
	rc := int64(0)
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		rc = int64(exitErr.ExitCode())
	} else if runErr != nil {
		if check, ok := kwargs["check"]; ok && check.Kind == KindBool && check.Bool {
			return Value{}, diag.Wrap(diag.EnvironmentError, e.Pos(), runErr, "run_command(%q)", args[0].Str)
		}
		rc = -1
	}
	return Map(map[string]Value{
		"stdout":     Str(out.String()),
		"stderr":     Str(errOut.String()),
		"returncode": Int(rc),
	}), nil
}

func (in *Interp) biFindProgram(e *ast.FuncCall, args []Value) (Value, error) {
	name, ok := stringArg(args, 0)
	if !ok {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "find_program() requires a name")
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return Value{}, diag.New(diag.EnvironmentError, e.Pos(), "program %q not found", name)
	}
	return Str(path), nil
}

func (in *Interp) biFiles(args []Value) (Value, error) {
	var elems []Value
	for _, a := range args {
		for _, s := range stringList(a) {
			elems = append(elems, Str(in.absSourcePath(s)))
		}
	}
	return Array(elems...), nil
}

