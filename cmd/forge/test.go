package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/forgebuild/forge/internal/diag"
	"github.com/forgebuild/forge/internal/manifest"
)

// cmdTest runs the test plan setup() persisted to meson-info/intro-tests.json
// (spec.md §4.9): each entry's executable is invoked with its args, workdir
// and a timeout, same as ninja test would drive a CTest-style harness.
func cmdTest(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("test", flag.ContinueOnError)
	suite := fset.String("suite", "", "only run tests in this suite")
	verbose := fset.Bool("v", false, "print test output even on success")
	if err := fset.Parse(args); err != nil {
		return err
	}
	rest := fset.Args()
	if len(rest) == 0 {
		return diag.New(diag.InvalidArguments, diag.Pos{}, "usage: forge test [-suite NAME] [-v] <builddir>")
	}
	buildDir, err := filepath.Abs(rest[0])
	if err != nil {
		return err
	}

	b, err := os.ReadFile(manifest.TestPlanPath(buildDir))
	if err != nil {
		return diag.Wrap(diag.EnvironmentError, diag.Pos{}, err, "reading test plan; run forge setup first")
	}
	var plan manifest.TestPlan
	if err := json.Unmarshal(b, &plan); err != nil {
		return err
	}

	var failed []string
	for _, t := range plan.Tests {
		if *suite != "" && !containsString(t.Suites, *suite) {
			continue
		}
		if t.Executable == "" {
			continue
		}
		exe := filepath.Join(buildDir, t.Executable)
		timeout := time.Duration(t.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		cmd := exec.CommandContext(runCtx, exe, t.Args...)
		if t.WorkDir != "" {
			cmd.Dir = t.WorkDir
		} else {
			cmd.Dir = buildDir
		}
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out
		runErr := cmd.Run()
		cancel()

		if runErr != nil {
			failed = append(failed, t.Name)
			fmt.Printf("FAIL: %s (%v)\n", t.Name, runErr)
			out.WriteTo(os.Stdout)
			continue
		}
		fmt.Printf("PASS: %s\n", t.Name)
		if *verbose {
			out.WriteTo(os.Stdout)
		}
	}

	if len(failed) > 0 {
		return diag.New(diag.EnvironmentError, diag.Pos{}, "%d test(s) failed: %v", len(failed), failed)
	}
	diag.Log.Printf("%d test(s) passed", len(plan.Tests))
	return nil
}

func containsString(hay []string, needle string) bool {
	for _, h := range hay {
		if h == needle {
			return true
		}
	}
	return false
}
