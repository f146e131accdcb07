package depends

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// registerBuiltinProviders wires the hand-coded fallbacks for libraries
// that do not reliably ship a .pc file: threads, Python, and Apple's
// system frameworks (spec.md §4.5).
func registerBuiltinProviders(r *Resolver) {
	r.providers["threads"] = threadsProvider
	r.providers["python3"] = pythonProvider
	r.providers["appleframeworks"] = appleFrameworksProvider
}

func threadsProvider(req Request) (*Result, bool, error) {
	switch runtime.GOOS {
	case "darwin":
		return &Result{Strategy: "provider:threads"}, true, nil
	default:
		return &Result{LinkArgs: []string{"-pthread"}, CompileArgs: []string{"-pthread"}, Strategy: "provider:threads"}, true, nil
	}
}

func pythonProvider(req Request) (*Result, bool, error) {
	exe, err := exec.LookPath("python3-config")
	if err != nil {
		return nil, false, nil
	}
	cflags, err := runAndSplit(exe, "--cflags")
	if err != nil {
		return nil, false, nil
	}
	libs, err := runAndSplit(exe, "--ldflags", "--embed")
	if err != nil {
		libs, err = runAndSplit(exe, "--ldflags")
		if err != nil {
			return nil, false, nil
		}
	}
	version, _ := runAndSplit(exe, "--python-version-nodots")
	ver := ""
	if len(version) == 1 {
		ver = version[0]
	}
	return &Result{Version: ver, CompileArgs: cflags, LinkArgs: libs, Strategy: "provider:python3"}, true, nil
}

func runAndSplit(exe string, args ...string) ([]string, error) {
	cmd := exec.Command(exe, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return splitFlags(string(out)), nil
}

// appleFrameworksProvider resolves `dependency('appleframeworks',
// modules: [...])` into -framework flags, without checking the
// frameworks actually exist beyond a directory-presence heuristic
// (spec.md §4.5 edge case: non-Darwin host requests this dependency).
func appleFrameworksProvider(req Request) (*Result, bool, error) {
	if runtime.GOOS != "darwin" {
		return nil, false, nil
	}
	var linkArgs []string
	for _, mod := range req.Components {
		fw := filepath.Join("/System/Library/Frameworks", mod+".framework")
		if _, err := os.Stat(fw); err != nil {
			return nil, false, nil
		}
		linkArgs = append(linkArgs, "-framework", mod)
	}
	return &Result{LinkArgs: linkArgs, Strategy: "provider:appleframeworks"}, true, nil
}
