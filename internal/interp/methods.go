package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/forgebuild/forge/internal/ast"
	"github.com/forgebuild/forge/internal/diag"
)

func (in *Interp) evalMethodCall(e *ast.MethodCall) (Value, error) {
	if e.KeywordBeforePositional {
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "keyword argument before positional argument")
	}
	recv, err := in.eval(e.Recv)
	if err != nil {
		return Value{}, err
	}
	args, kwargs, err := in.evalArgs(e.Args)
	if err != nil {
		return Value{}, err
	}
	switch recv.Kind {
	case KindString:
		return callStringMethod(e, recv.Str, args, kwargs)
	case KindArray:
		return callArrayMethod(e, recv, args, kwargs)
	case KindMap:
		return callMapMethod(e, recv, args, kwargs)
	case KindDependency:
		return callDependencyMethod(e, recv, args)
	case KindTarget:
		return callTargetMethod(e, recv, args)
	case KindConfigData:
		return callConfigDataMethod(e, recv, args)
	case KindSubproject:
		return callSubprojectMethod(e, recv, args)
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "%s has no method %q", recv.Kind, e.Name)
	}
}

func (in *Interp) evalArgs(argNodes []ast.Arg) ([]Value, map[string]Value, error) {
	var positional []Value
	kwargs := map[string]Value{}
	for _, a := range argNodes {
		v, err := in.eval(a.Value)
		if err != nil {
			return nil, nil, err
		}
		if a.Name == "" {
			positional = append(positional, v)
		} else {
			kwargs[a.Name] = v
		}
	}
	return positional, kwargs, nil
}

func callStringMethod(e *ast.MethodCall, s string, args []Value, kwargs map[string]Value) (Value, error) {
	switch e.Name {
	case "strip":
		return Str(strings.TrimSpace(s)), nil
	case "to_upper":
		return Str(strings.ToUpper(s)), nil
	case "to_lower":
		return Str(strings.ToLower(s)), nil
	case "contains":
		return Bool(strings.Contains(s, mustStr(args, 0))), nil
	case "startswith":
		return Bool(strings.HasPrefix(s, mustStr(args, 0))), nil
	case "endswith":
		return Bool(strings.HasSuffix(s, mustStr(args, 0))), nil
	case "split":
		sep := "\n"
		if len(args) > 0 {
			sep = mustStr(args, 0)
		}
		parts := strings.Split(s, sep)
		elems := make([]Value, len(parts))
		for i, p := range parts {
			elems[i] = Str(p)
		}
		return Array(elems...), nil
	case "replace":
		if len(args) < 2 {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "replace() requires two arguments")
		}
		return Str(strings.ReplaceAll(s, mustStr(args, 0), mustStr(args, 1))), nil
	case "to_int":
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "to_int(): %v", err)
		}
		return Int(n), nil
	case "format":
		return Str(formatString(s, args)), nil
	case "version_compare":
		if len(args) < 1 {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "version_compare() requires an argument")
		}
		return Bool(evalVersionConstraint(s, mustStr(args, 0))), nil
	case "underscorify":
		return Str(underscorify(s)), nil
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "string has no method %q", e.Name)
	}
}

func mustStr(args []Value, i int) string {
	if i >= len(args) || args[i].Kind != KindString {
		return ""
	}
	return args[i].Str
}

// formatString implements @0@, @1@, ... positional substitution used by
// the string.format() builtin method (spec.md §4.7).
func formatString(s string, args []Value) string {
	out := s
	for i, a := range args {
		out = strings.ReplaceAll(out, fmt.Sprintf("@%d@", i), ToDisplayString(a))
	}
	return out
}

func underscorify(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func evalVersionConstraint(version, constraint string) bool {
	constraint = strings.TrimSpace(constraint)
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<", "="} {
		if strings.HasPrefix(constraint, op) {
			return compareOp(version, op, strings.TrimSpace(constraint[len(op):]))
		}
	}
	return compareOp(version, "=", constraint)
}

func compareOp(version, op, operand string) bool {
	cmp := compareDottedVersions(version, operand)
	switch op {
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

func compareDottedVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int64
		if i < len(as) {
			av, _ = strconv.ParseInt(as[i], 10, 64)
		}
		if i < len(bs) {
			bv, _ = strconv.ParseInt(bs[i], 10, 64)
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func callArrayMethod(e *ast.MethodCall, recv Value, args []Value, kwargs map[string]Value) (Value, error) {
	switch e.Name {
	case "length":
		return Int(int64(len(recv.Arr))), nil
	case "contains":
		if len(args) < 1 {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "contains() requires an argument")
		}
		for _, el := range recv.Arr {
			if Equal(el, args[0]) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case "get":
		if len(args) < 1 || args[0].Kind != KindInt {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "get() requires an int index")
		}
		i := args[0].Int
		if i < 0 {
			i += int64(len(recv.Arr))
		}
		if i < 0 || i >= int64(len(recv.Arr)) {
			if len(args) > 1 {
				return args[1], nil
			}
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "array.get(): index %d out of range", args[0].Int)
		}
		return recv.Arr[i], nil
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "array has no method %q", e.Name)
	}
}

func callMapMethod(e *ast.MethodCall, recv Value, args []Value, kwargs map[string]Value) (Value, error) {
	switch e.Name {
	case "keys":
		elems := make([]Value, len(recv.MapKeys))
		for i, k := range recv.MapKeys {
			elems[i] = Str(k)
		}
		return Array(elems...), nil
	case "has_key":
		if len(args) < 1 || args[0].Kind != KindString {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "has_key() requires a string argument")
		}
		_, ok := recv.Map[args[0].Str]
		return Bool(ok), nil
	case "get":
		if len(args) < 1 || args[0].Kind != KindString {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "get() requires a string key")
		}
		if v, ok := recv.Map[args[0].Str]; ok {
			return v, nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "dict.get(): no key %q and no default given", args[0].Str)
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "dict has no method %q", e.Name)
	}
}

func callDependencyMethod(e *ast.MethodCall, recv Value, args []Value) (Value, error) {
	switch e.Name {
	case "found":
		return Bool(recv.Dep.Found), nil
	case "version":
		return Str(recv.Dep.Version), nil
	case "name":
		return Str(recv.Dep.Name), nil
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "dependency has no method %q", e.Name)
	}
}

func callTargetMethod(e *ast.MethodCall, recv Value, args []Value) (Value, error) {
	switch e.Name {
	case "name":
		return Str(recv.Target.Name), nil
	case "full_path":
		return Str(recv.Target.OutputFilename), nil
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "target has no method %q", e.Name)
	}
}

// callConfigDataMethod implements configuration_data()'s .set()/.get()
// methods (spec.md §4.7): set() stores a value under a key for later
// #mesondefine/@VAR@ expansion; get() reads one back, e.g. to build one
// configuration_data() from another.
func callConfigDataMethod(e *ast.MethodCall, recv Value, args []Value) (Value, error) {
	switch e.Name {
	case "set":
		if len(args) < 2 || args[0].Kind != KindString {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "set() requires (name, value)")
		}
		recv.Conf.Set(args[0].Str, args[1])
		return Void(), nil
	case "get":
		if len(args) < 1 || args[0].Kind != KindString {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "get() requires a string key")
		}
		if v, ok := recv.Conf.Values[args[0].Str]; ok {
			return v, nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "configuration_data.get(): no key %q and no default given", args[0].Str)
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "configuration data has no method %q", e.Name)
	}
}

// callSubprojectMethod implements subproject()'s .get_variable() and
// .found() (spec.md §3, §4.7).
func callSubprojectMethod(e *ast.MethodCall, recv Value, args []Value) (Value, error) {
	switch e.Name {
	case "get_variable":
		if len(args) == 0 || args[0].Kind != KindString {
			return Value{}, diag.New(diag.InvalidCode, e.Pos(), "get_variable() requires a string name")
		}
		if v, ok := recv.Sub.Vars[args[0].Str]; ok {
			return v, nil
		}
		if len(args) > 1 {
			return args[1], nil
		}
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "subproject %q has no exported variable %q", recv.Sub.Name, args[0].Str)
	case "found":
		return Bool(recv.Sub.Found), nil
	default:
		return Value{}, diag.New(diag.InvalidCode, e.Pos(), "subproject has no method %q", e.Name)
	}
}
