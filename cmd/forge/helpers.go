package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/forgebuild/forge/internal/diag"
	"github.com/forgebuild/forge/internal/introspect"
	"github.com/forgebuild/forge/internal/manifest"
	"github.com/forgebuild/forge/internal/model"
)

const version = "0.1.0"

func exitCode(err error) (int, bool) {
	var derr *diag.Error
	if errors.As(err, &derr) {
		return derr.ExitCode(), true
	}
	return 0, false
}

func enableTrace(w io.Writer) {
	diag.Log.EnableTrace(w)
}

func cmdVersion(ctx context.Context, args []string) error {
	fmt.Println("forge", version)
	return nil
}

func writeTargetsSnapshot(m *model.Model, buildDir string) error {
	path := manifest.TargetsPath(buildDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return introspect.WriteTargets(f, m)
}
