package interp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/forgebuild/forge/internal/model"
)

// Kind is the closed tagged-variant value domain (spec.md §3).
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindString
	KindArray
	KindMap
	KindTarget
	KindDependency
	KindGenerator
	KindDisabler
	KindConfigData
	KindIncludeDirs
	KindSubproject
	KindVoid
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "str"
	case KindArray:
		return "array"
	case KindMap:
		return "dict"
	case KindTarget:
		return "target"
	case KindDependency:
		return "dependency"
	case KindGenerator:
		return "generator"
	case KindDisabler:
		return "disabler"
	case KindConfigData:
		return "configuration-data"
	case KindIncludeDirs:
		return "include-directory"
	case KindSubproject:
		return "subproject"
	default:
		return "void"
	}
}

// Value is a single dynamically-typed forge-language value.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Str    string
	Arr    []Value
	Map    map[string]Value
	MapKeys []string // sorted key order (Map sorts them), since Go maps have none
	Target *model.Target
	Dep    *DependencyValue
	Gen    *model.Generator
	Conf   *ConfigData
	Inc    *IncludeDirsValue
	Sub    *SubprojectHandle
}

// ConfigData backs configuration_data(): a mutable, insertion-ordered
// key/value store later consumed by configure_file()'s @VAR@ and
// #mesondefine substitution (spec.md §4.7, §6).
type ConfigData struct {
	Values map[string]Value
	Order  []string
}

// Set stores a value under key, preserving first-insertion order for
// keys that are set more than once.
func (c *ConfigData) Set(key string, v Value) {
	if _, exists := c.Values[key]; !exists {
		c.Order = append(c.Order, key)
	}
	c.Values[key] = v
}

// IncludeDirsValue wraps the include_directories() result, a handle
// passed into a target's include_directories: kwarg (spec.md §3).
type IncludeDirsValue struct {
	Dirs []model.IncludeDir
}

// SubprojectHandle is the result of subproject(name): the exported
// top-level variables of that subproject's own isolated evaluation,
// retrievable one at a time via .get_variable() (spec.md §4.7).
type SubprojectHandle struct {
	Name  string
	Found bool
	Vars  map[string]Value
}

// DependencyValue wraps a resolved (or not-found) dependency result for
// use as a first-class value, e.g. passed to a target's dependencies:
// kwarg or queried with .found().
type DependencyValue struct {
	Name        string
	Found       bool
	Version     string
	CompileArgs []string
	LinkArgs    []string
}

func Bool(b bool) Value   { return Value{Kind: KindBool, Bool: b} }
func Int(n int64) Value   { return Value{Kind: KindInt, Int: n} }
func Str(s string) Value  { return Value{Kind: KindString, Str: s} }
func Void() Value         { return Value{Kind: KindVoid} }
func Disabler() Value     { return Value{Kind: KindDisabler} }

func Array(elems ...Value) Value { return Value{Kind: KindArray, Arr: elems} }

func Map(pairs map[string]Value) Value {
	v := Value{Kind: KindMap, Map: map[string]Value{}}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Map[k] = pairs[k]
		v.MapKeys = append(v.MapKeys, k)
	}
	return v
}

func TargetValue(t *model.Target) Value { return Value{Kind: KindTarget, Target: t} }

func DependencyResult(d *DependencyValue) Value { return Value{Kind: KindDependency, Dep: d} }

func GeneratorValue(g *model.Generator) Value { return Value{Kind: KindGenerator, Gen: g} }

// Truthy implements the if/assert truthiness rule (spec.md §3): bools
// are truthy as themselves, everything else must be a bool — forge
// does not coerce ints or strings in boolean context.
func (v Value) Truthy() (bool, error) {
	if v.Kind != KindBool {
		return false, fmt.Errorf("expected bool, got %s", v.Kind)
	}
	return v.Bool, nil
}

// Equal implements value equality (spec.md §3): same kind, structurally
// equal contents. Values of different kinds are never equal.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindString:
		return a.Str == b.Str
	case KindArray:
		if len(a.Arr) != len(b.Arr) {
			return false
		}
		for i := range a.Arr {
			if !Equal(a.Arr[i], b.Arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Map) != len(b.Map) {
			return false
		}
		for k, av := range a.Map {
			bv, ok := b.Map[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindTarget:
		return a.Target == b.Target
	case KindDependency:
		return a.Dep == b.Dep
	case KindVoid:
		return true
	default:
		return false
	}
}

// ToDisplayString implements string interpolation and message()
// formatting (spec.md §4.7): the human-readable rendering of a value.
func ToDisplayString(v Value) string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		return v.Str
	case KindArray:
		parts := make([]string, len(v.Arr))
		for i, e := range v.Arr {
			parts[i] = quoteIfString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, 0, len(v.Map))
		for _, k := range v.MapKeys {
			parts = append(parts, strconv.Quote(k)+": "+quoteIfString(v.Map[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindTarget:
		if v.Target != nil {
			return v.Target.Name
		}
		return "<target>"
	case KindDependency:
		return "<dependency " + v.Dep.Name + ">"
	case KindDisabler:
		return "<disabler>"
	case KindConfigData:
		return "<configuration data>"
	case KindIncludeDirs:
		return "<include_directories>"
	case KindSubproject:
		return "<subproject " + v.Sub.Name + ">"
	default:
		return "void"
	}
}

func quoteIfString(v Value) string {
	if v.Kind == KindString {
		return strconv.Quote(v.Str)
	}
	return ToDisplayString(v)
}
