// Package depends implements external dependency resolution (spec.md
// §4.5): turning a dependency() call into compile/link arguments, first
// by pkg-config lookup, then by name-specific hand-coded providers, then
// failing with a uniform not-found diagnostic.
package depends

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/forgebuild/forge/internal/coredata"
	"github.com/forgebuild/forge/internal/diag"
)

// VersionConstraint is one ">= 1.2", "< 3", "= 1.0" style requirement
// from a dependency() call's version: kwarg.
type VersionConstraint struct {
	Op      string
	Operand string
}

// Request is the resolved form of one dependency() call.
type Request struct {
	Name        string
	Versions    []VersionConstraint
	Required    bool
	Static      bool
	Method      string // "auto", "pkg-config", "system", "framework"
	Components  []string
}

// Result is what a successful resolution produces; it is exactly the
// shape persisted as coredata.DependencyRecord.
type Result struct {
	Key         string
	Found       bool
	Version     string
	CompileArgs []string
	LinkArgs    []string
	Strategy    string
}

// Resolver caches results for the lifetime of one configure run, keyed
// by canonical identifier so two dependency() calls for the same
// library (same name, same static/shared choice) reuse one probe.
type Resolver struct {
	searchPath []string
	cache      map[string]*Result
	providers  map[string]Provider
}

// Provider is a hand-coded resolution strategy for a library that has
// no usable .pc file on common platforms (spec.md §4.5 edge case).
type Provider func(req Request) (*Result, bool, error)

func NewResolver(pkgConfigPath []string) *Resolver {
	r := &Resolver{
		searchPath: pkgConfigPath,
		cache:      map[string]*Result{},
		providers:  map[string]Provider{},
	}
	registerBuiltinProviders(r)
	return r
}

// CanonicalKey is the identifier a dependency is cached and persisted
// under: the name plus a suffix when linkage was pinned explicitly, so
// `dependency('foo', static: true)` and the shared lookup never collide
// in the cache (spec.md §4.5).
func CanonicalKey(req Request) string {
	if req.Static {
		return req.Name + ":static"
	}
	return req.Name
}

// Find resolves req, consulting the cache first, then pkg-config,
// then any registered hand-coded provider, in that order (spec.md
// §4.5). A required dependency that cannot be found is a hard error;
// an optional one instead returns a not-found Result.
func (r *Resolver) Find(req Request) (*Result, error) {
	key := CanonicalKey(req)
	if cached, ok := r.cache[key]; ok {
		if !cached.Found && req.Required {
			return nil, diag.New(diag.DependencyError, diag.Pos{}, "dependency %q not found", req.Name)
		}
		return cached, nil
	}

	res, err := r.findViaPkgConfig(req)
	if err == nil && res != nil {
		return r.finish(key, req, res)
	}

	if provider, ok := r.providers[req.Name]; ok {
		pres, found, perr := provider(req)
		if perr != nil {
			return nil, perr
		}
		if found {
			return r.finish(key, req, pres)
		}
	}

	if req.Required {
		return nil, diag.New(diag.DependencyError, diag.Pos{}, "dependency %q not found", req.Name)
	}
	notFound := &Result{Key: key, Found: false}
	r.cache[key] = notFound
	return notFound, nil
}

func (r *Resolver) finish(key string, req Request, res *Result) (*Result, error) {
	if len(req.Versions) > 0 && res.Version != "" {
		for _, vc := range req.Versions {
			if !satisfiesConstraint(res.Version, vc) {
				if req.Required {
					return nil, diag.New(diag.DependencyError, diag.Pos{}, "dependency %q version %s does not satisfy %s %s", req.Name, res.Version, vc.Op, vc.Operand)
				}
				notFound := &Result{Key: key, Found: false}
				r.cache[key] = notFound
				return notFound, nil
			}
		}
	}
	res.Key = key
	res.Found = true
	r.cache[key] = res
	return res, nil
}

func (r *Resolver) findViaPkgConfig(req Request) (*Result, error) {
	path, ok := findPkgConfigFile(r.searchPath, req.Name)
	if !ok {
		return nil, fmt.Errorf("no .pc file for %q", req.Name)
	}
	pc, err := parsePkgConfig(path)
	if err != nil {
		return nil, err
	}
	cflags := splitFlags(pc.CFlags)
	libs := splitFlags(pc.Libs)
	if req.Static {
		libs = staticizeLibs(libs)
	}
	return &Result{
		Version:     pc.Version,
		CompileArgs: cflags,
		LinkArgs:    libs,
		Strategy:    "pkgconfig",
	}, nil
}

// staticizeLibs returns a copy of libs unchanged: -lfoo is not rewritten,
// and forge does not locate the .a file itself, leaving that to the
// linker's search path.
func staticizeLibs(libs []string) []string {
	out := make([]string, len(libs))
	copy(out, libs)
	return out
}

func satisfiesConstraint(version string, vc VersionConstraint) bool {
	cmp := compareVersions(version, vc.Operand)
	switch vc.Op {
	case ">=":
		return cmp >= 0
	case ">":
		return cmp > 0
	case "<=":
		return cmp <= 0
	case "<":
		return cmp < 0
	case "=", "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	default:
		return false
	}
}

// compareVersions does a dotted, numeric-segment comparison (forge does
// not special-case pre-release suffixes; a numeric segment sorts after a
// non-numeric or missing one at the same position).
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		var aNum, bNum bool
		if i < len(as) {
			if n, err := strconv.Atoi(as[i]); err == nil {
				av, aNum = n, true
			}
		}
		if i < len(bs) {
			if n, err := strconv.Atoi(bs[i]); err == nil {
				bv, bNum = n, true
			}
		}
		switch {
		case aNum && bNum:
			if av != bv {
				if av < bv {
					return -1
				}
				return 1
			}
		case aNum && !bNum:
			return 1
		case !aNum && bNum:
			return -1
		default:
			if i < len(as) && i < len(bs) && as[i] != bs[i] {
				return strings.Compare(as[i], bs[i])
			}
		}
	}
	return 0
}

// ToDependencyRecord adapts a Result into the shape coredata persists.
func (res *Result) ToDependencyRecord() coredata.DependencyRecord {
	return coredata.DependencyRecord{
		Key:         res.Key,
		Found:       res.Found,
		Version:     res.Version,
		CompileArgs: res.CompileArgs,
		LinkArgs:    res.LinkArgs,
		Strategy:    res.Strategy,
	}
}

// pkgConfigPathFromEnv builds the default pkg-config search path: the
// PKG_CONFIG_PATH environment variable first, then the usual system
// locations.
func pkgConfigPathFromEnv() []string {
	var out []string
	if v := os.Getenv("PKG_CONFIG_PATH"); v != "" {
		out = append(out, strings.Split(v, ":")...)
	}
	out = append(out, "/usr/lib/pkgconfig", "/usr/lib64/pkgconfig", "/usr/share/pkgconfig", "/usr/local/lib/pkgconfig")
	return out
}

// DefaultResolver constructs a Resolver using the environment's
// pkg-config search path.
func DefaultResolver() *Resolver {
	return NewResolver(pkgConfigPathFromEnv())
}

// AllResults returns every cached resolution, for persisting into
// coredata at the end of a configure run.
func (r *Resolver) AllResults() map[string]*Result {
	return r.cache
}
