package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/internal/coredata"
	"github.com/forgebuild/forge/internal/diag"
	"github.com/forgebuild/forge/internal/introspect"
	"github.com/forgebuild/forge/internal/manifest"
	"github.com/forgebuild/forge/internal/parser"
)

func cmdIntrospect(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("introspect", flag.ContinueOnError)
	showTargets := fset.Bool("targets", false, "list configured targets")
	showOptions := fset.Bool("options", false, "list option values")
	showTests := fset.Bool("tests", false, "list configured tests")
	astFile := fset.String("ast", "", "dump the parsed AST of a build definition file")
	if err := fset.Parse(args); err != nil {
		return err
	}

	if *astFile != "" {
		src, err := os.ReadFile(*astFile)
		if err != nil {
			return err
		}
		block, err := parser.Parse(*astFile, string(src))
		if err != nil {
			return err
		}
		return introspect.WriteAST(os.Stdout, block)
	}

	rest := fset.Args()
	if len(rest) == 0 {
		return diag.New(diag.InvalidArguments, diag.Pos{}, "usage: forge introspect [--targets|--options|--tests|--ast FILE] <builddir>")
	}
	buildDir, err := filepath.Abs(rest[0])
	if err != nil {
		return err
	}

	if *showOptions {
		d, err := coredata.Load(buildDir)
		if err != nil {
			return err
		}
		reg := coredata.RegistryFromData(d)
		return introspect.WriteOptions(os.Stdout, reg)
	}

	if *showTests {
		b, err := os.ReadFile(manifest.TestPlanPath(buildDir))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(b)
		return err
	}

	// default and --targets both render the ndjson snapshot setup()
	// wrote alongside the install/test plans.
	_ = showTargets
	b, err := os.ReadFile(manifest.TargetsPath(buildDir))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}
