// Command forge configures a source tree described by a build
// definition file into a ninja-ready build directory (spec.md §1).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

var (
	debug      = flag.Bool("debug", false, "format error messages with additional detail")
	ctracefile = flag.String("ctracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")
)

type verb struct {
	fn func(ctx context.Context, args []string) error
}

func funcmain() error {
	flag.Parse()

	if *ctracefile != "" {
		f, err := os.Create(*ctracefile)
		if err != nil {
			return err
		}
		defer f.Close()
		enableTrace(f)
	}

	verbs := map[string]verb{
		"setup":       {cmdSetup},
		"configure":   {cmdConfigure}, // configure is setup against an existing build dir
		"introspect":  {cmdIntrospect},
		"test":        {cmdTest},
		"install":     {cmdInstall},
		"version":     {cmdVersion},
	}

	args := flag.Args()
	name := "setup"
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	if name == "--version" {
		name, args = "version", nil
	}
	if name == "help" || name == "--help" || name == "-h" {
		printUsage()
		return nil
	}

	v, ok := verbs[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
		printUsage()
		os.Exit(2)
	}

	ctx := context.Background()
	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", name, err)
		}
		return fmt.Errorf("%s: %v", name, err)
	}
	return nil
}

// cmdConfigure is setup with -reconfigure implied, so previously
// persisted option values are carried forward.
func cmdConfigure(ctx context.Context, args []string) error {
	return cmdSetup(ctx, append([]string{"-reconfigure"}, args...))
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "forge [-flags] <command> [-flags] <args>\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\tsetup       - configure a build directory\n")
	fmt.Fprintf(os.Stderr, "\tconfigure   - re-run configuration against an existing build directory\n")
	fmt.Fprintf(os.Stderr, "\tintrospect  - dump build model state as JSON\n")
	fmt.Fprintf(os.Stderr, "\ttest        - run the configured test suite\n")
	fmt.Fprintf(os.Stderr, "\tinstall     - run the install plan\n")
	fmt.Fprintf(os.Stderr, "\tversion     - print the forge version\n")
}

func main() {
	if err := funcmain(); err != nil {
		code := 1
		if ec, ok := exitCode(err); ok {
			code = ec
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}
