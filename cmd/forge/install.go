package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/internal/diag"
	"github.com/forgebuild/forge/internal/manifest"
)

// cmdInstall replays the install plan setup() persisted to
// meson-info/intro-install_plan.json (spec.md §4.9): every entry is
// copied from the build directory to prefix-relative destination,
// optionally rooted under DESTDIR the way meson install does.
func cmdInstall(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("install", flag.ContinueOnError)
	destdir := fset.String("destdir", os.Getenv("DESTDIR"), "root prefix-relative paths under this directory")
	dryRun := fset.Bool("dry-run", false, "print what would be installed without copying anything")
	if err := fset.Parse(args); err != nil {
		return err
	}
	rest := fset.Args()
	if len(rest) == 0 {
		return diag.New(diag.InvalidArguments, diag.Pos{}, "usage: forge install [-destdir DIR] [-dry-run] <builddir>")
	}
	buildDir, err := filepath.Abs(rest[0])
	if err != nil {
		return err
	}

	b, err := os.ReadFile(manifest.InstallPlanPath(buildDir))
	if err != nil {
		return diag.Wrap(diag.EnvironmentError, diag.Pos{}, err, "reading install plan; run forge setup first")
	}
	var plan manifest.InstallPlan
	if err := json.Unmarshal(b, &plan); err != nil {
		return err
	}

	for _, e := range plan.Entries {
		dest := filepath.Join(plan.Prefix, e.Destination)
		if *destdir != "" {
			dest = filepath.Join(*destdir, dest)
		}
		src := filepath.Join(buildDir, e.Source)

		if *dryRun {
			diag.Log.Printf("install %s -> %s", src, dest)
			continue
		}
		if err := copyFile(src, dest); err != nil {
			return diag.Wrap(diag.EnvironmentError, diag.Pos{}, err, "installing %s", e.Source)
		}
		diag.Log.Printf("installed %s", dest)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
