package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgebuild/forge/internal/backend/ninja"
	"github.com/forgebuild/forge/internal/coredata"
	"github.com/forgebuild/forge/internal/depends"
	"github.com/forgebuild/forge/internal/diag"
	"github.com/forgebuild/forge/internal/interp"
	"github.com/forgebuild/forge/internal/lock"
	"github.com/forgebuild/forge/internal/machine"
	"github.com/forgebuild/forge/internal/manifest"
	"github.com/forgebuild/forge/internal/toolchain"
)

// dlist is a repeatable -Dname=value flag, the spec.md §4.10 override
// mechanism.
type dlist []string

func (d *dlist) String() string     { return strings.Join(*d, ",") }
func (d *dlist) Set(v string) error { *d = append(*d, v); return nil }

func cmdSetup(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("setup", flag.ContinueOnError)
	var overrides dlist
	fset.Var(&overrides, "D", "override an option, e.g. -Dbuildtype=release (repeatable)")
	prefix := fset.String("prefix", "", "install prefix")
	libdir := fset.String("libdir", "", "library install dir")
	bindir := fset.String("bindir", "", "executable install dir")
	includedir := fset.String("includedir", "", "header install dir")
	datadir := fset.String("datadir", "", "data install dir")
	mandir := fset.String("mandir", "", "man page install dir")
	buildtype := fset.String("buildtype", "", "build type: plain, debug, debugoptimized, release, minsize")
	strip := fset.Bool("strip", false, "strip symbols on install")
	coverage := fset.Bool("b_coverage", false, "enable coverage instrumentation")
	defaultLibrary := fset.String("default-library", "", "default library kind: shared, static, both")
	crossFile := fset.String("cross-file", "", "path to a cross-compilation machine file")
	nativeFile := fset.String("native-file", "", "path to a native machine file")
	backend := fset.String("backend", "ninja", "backend to generate (only ninja is supported)")
	reconfigure := fset.Bool("reconfigure", false, "re-run configuration, keeping cached option values")
	wipe := fset.Bool("wipe", false, "wipe the build directory and start from scratch")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *backend != "ninja" {
		return diag.New(diag.InvalidArguments, diag.Pos{}, "unsupported backend %q; forge only generates ninja manifests", *backend)
	}

	rest := fset.Args()
	if len(rest) == 0 {
		return diag.New(diag.InvalidArguments, diag.Pos{}, "usage: forge setup [options] [<srcdir>] <builddir>")
	}
	buildDir := rest[0]
	srcDir := "."
	if len(rest) > 1 {
		srcDir, buildDir = rest[0], rest[1]
	}
	var err error
	srcDir, err = filepath.Abs(srcDir)
	if err != nil {
		return err
	}
	buildDir, err = filepath.Abs(buildDir)
	if err != nil {
		return err
	}

	if *wipe {
		os.RemoveAll(filepath.Join(buildDir, "meson-private"))
		os.RemoveAll(filepath.Join(buildDir, "meson-info"))
		os.RemoveAll(filepath.Join(buildDir, "meson-logs"))
		os.Remove(filepath.Join(buildDir, "build.ninja"))
	}

	l, err := lock.Acquire(buildDir)
	if err != nil {
		return err
	}
	defer l.Release()

	if err := diag.Log.Init(buildDir); err != nil {
		return err
	}
	defer diag.Log.Close()

	var reg *coredata.Registry
	_, statErr := os.Stat(filepath.Join(buildDir, "meson-private", "coredata.dat"))
	alreadyConfigured := statErr == nil
	if alreadyConfigured && !*reconfigure && !*wipe {
		return diag.New(diag.InvalidArguments, diag.Pos{}, "build directory %s is already configured; pass --reconfigure", buildDir)
	}
	if alreadyConfigured && *reconfigure {
		d, err := coredata.Load(buildDir)
		if err != nil {
			return err
		}
		reg = coredata.RegistryFromData(d)
	} else {
		reg = coredata.NewRegistry()
	}

	optionFile := filepath.Join(srcDir, "meson.options")
	if src, err := os.ReadFile(optionFile); err == nil {
		if err := coredata.LoadOptionFile(reg, optionFile, string(src)); err != nil {
			return err
		}
	}

	applyShortcut(reg, "prefix", *prefix)
	applyShortcut(reg, "libdir", *libdir)
	applyShortcut(reg, "bindir", *bindir)
	applyShortcut(reg, "includedir", *includedir)
	applyShortcut(reg, "datadir", *datadir)
	applyShortcut(reg, "mandir", *mandir)
	applyShortcut(reg, "buildtype", *buildtype)
	applyShortcut(reg, "default_library", *defaultLibrary)
	if *strip {
		reg.Override("strip", "true")
	}
	if *coverage {
		reg.Override("b_coverage", "true")
	}
	for _, ov := range overrides {
		parts := strings.SplitN(ov, "=", 2)
		if len(parts) != 2 {
			return diag.New(diag.InvalidArguments, diag.Pos{}, "-D%s: expected name=value", ov)
		}
		if err := reg.Override(parts[0], parts[1]); err != nil {
			return diag.New(diag.InvalidArguments, diag.Pos{}, "%v", err)
		}
	}

	var crossDesc *machine.Description
	if *crossFile != "" {
		crossDesc, err = machine.Load(*crossFile)
		if err != nil {
			return err
		}
	} else if *nativeFile != "" {
		crossDesc, err = machine.Load(*nativeFile)
		if err != nil {
			return err
		}
	}

	resolver := depends.DefaultResolver()
	in := interp.New(ctx, srcDir, buildDir, reg, resolver)

	rootBuildFile := filepath.Join(srcDir, "meson.build")
	src, err := os.ReadFile(rootBuildFile)
	if err != nil {
		return diag.Wrap(diag.EnvironmentError, diag.Pos{}, err, "reading %s", rootBuildFile)
	}
	span := diag.Log.Span("interpret")
	if err := in.Run(rootBuildFile, string(src)); err != nil {
		span()
		return err
	}
	span()

	langs := in.Model.DefaultLangs
	if len(langs) == 0 {
		langs = []string{"c"}
	}
	scratchDir := filepath.Join(buildDir, "meson-private", "tmp")
	compilers := map[string]*toolchain.Compiler{}
	compilerRecords := map[string]coredata.CompilerRecord{}
	for _, lang := range langs {
		if crossDesc != nil {
			if exe := crossDesc.Exe(lang); exe != "" {
				os.Setenv(envVarFor(lang), exe)
			}
		}
		c, err := toolchain.Probe(ctx, lang, scratchDir)
		if err != nil {
			return err
		}
		compilers[lang] = c
		compilerRecords[lang] = coredata.CompilerRecord{
			Language: c.Language, Executable: c.Executable, Family: c.Family.String(), Version: c.Version, EnvVar: c.EnvVar,
		}
	}
	os.RemoveAll(scratchDir)

	forgeExe, err := os.Executable()
	if err != nil {
		forgeExe = "forge"
	}
	w := ninja.Generate(in.Model, compilers, buildDir, srcDir, forgeExe, in.ReadFiles)
	if err := w.Write(filepath.Join(buildDir, "build.ninja")); err != nil {
		return err
	}

	prefixOpt, _ := reg.Get("prefix")
	bindirOpt, _ := reg.Get("bindir")
	libdirOpt, _ := reg.Get("libdir")
	includedirOpt, _ := reg.Get("includedir")
	datadirOpt, _ := reg.Get("datadir")
	mandirOpt, _ := reg.Get("mandir")
	installPlan := manifest.BuildInstallPlan(in.Model,
		asString(prefixOpt.Value), asString(bindirOpt.Value), asString(libdirOpt.Value),
		asString(includedirOpt.Value), asString(datadirOpt.Value), asString(mandirOpt.Value))
	if err := manifest.WriteJSON(manifest.InstallPlanPath(buildDir), installPlan); err != nil {
		return err
	}
	testPlan := manifest.BuildTestPlan(in.Model)
	if err := manifest.WriteJSON(manifest.TestPlanPath(buildDir), testPlan); err != nil {
		return err
	}
	if err := writeTargetsSnapshot(in.Model, buildDir); err != nil {
		return err
	}

	depRecords := map[string]coredata.DependencyRecord{}
	for key, res := range resolver.AllResults() {
		depRecords[key] = res.ToDependencyRecord()
	}
	covOpt, _ := reg.Get("b_coverage")
	if err := coredata.Save(buildDir, reg, compilerRecords, depRecords, covOpt.Value.(bool)); err != nil {
		return err
	}

	diag.Log.Printf("configured %s (%d targets) -> %s", in.Model.ProjectName, len(in.Model.TargetOrder), buildDir)
	return nil
}

func applyShortcut(reg *coredata.Registry, name, val string) {
	if val == "" {
		return
	}
	reg.Override(name, val)
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func envVarFor(lang string) string {
	switch lang {
	case "cpp":
		return "CXX"
	default:
		return "CC"
	}
}
