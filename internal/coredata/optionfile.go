package coredata

import (
	"fmt"
	"regexp"

	"github.com/forgebuild/forge/internal/ast"
	"github.com/forgebuild/forge/internal/parser"
)

var validOptionName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// LoadOptionFile parses a meson_options.txt-equivalent file (forge calls
// it meson.options, same as the teacher's build.textproto convention of
// naming files after what downstream tooling already expects) and
// declares every option it contains into reg.
//
// The option file is a restricted interpreter: it accepts only a sequence
// of top-level `option(name, type: ..., value: ..., description: ...,
// choices: [...])` statements (spec.md §4.3). It reuses the main
// lexer/parser rather than inventing a second grammar.
func LoadOptionFile(reg *Registry, file, src string) error {
	block, err := parser.Parse(file, src)
	if err != nil {
		return err
	}
	for _, stmt := range block.Stmts {
		call, ok := stmt.(*ast.FuncCall)
		if !ok || call.Name != "option" {
			return fmt.Errorf("%s: only option(...) calls are allowed in an option file", stmt.Pos())
		}
		if err := declareFromCall(reg, call); err != nil {
			return fmt.Errorf("%s: %w", call.Pos(), err)
		}
	}
	return nil
}

func declareFromCall(reg *Registry, call *ast.FuncCall) error {
	var name string
	kwargs := map[string]ast.Node{}
	for i, a := range call.Args {
		if a.Name == "" {
			if i != 0 {
				return fmt.Errorf("option() takes exactly one positional argument (the name)")
			}
			lit, ok := a.Value.(*ast.StringLit)
			if !ok {
				return fmt.Errorf("option() name must be a string literal")
			}
			name = lit.Value
			continue
		}
		kwargs[a.Name] = a.Value
	}
	if name == "" {
		return fmt.Errorf("option() requires a name")
	}
	if !validOptionName.MatchString(name) {
		return fmt.Errorf("option name %q must match [A-Za-z0-9_-]+", name)
	}

	kindNode, ok := kwargs["type"]
	if !ok {
		return fmt.Errorf("option %q: missing required 'type' keyword argument", name)
	}
	kindLit, ok := kindNode.(*ast.StringLit)
	if !ok {
		return fmt.Errorf("option %q: 'type' must be a string literal", name)
	}
	var kind OptionKind
	switch kindLit.Value {
	case "string":
		kind = OptString
	case "boolean":
		kind = OptBool
	case "combo":
		kind = OptCombo
	case "integer":
		kind = OptInt
	case "array":
		kind = OptStringArray
	default:
		return fmt.Errorf("option %q: unknown type %q", name, kindLit.Value)
	}

	opt := &Option{Name: name, Kind: kind}

	if descNode, ok := kwargs["description"]; ok {
		lit, ok := descNode.(*ast.StringLit)
		if !ok {
			return fmt.Errorf("option %q: 'description' must be a string literal", name)
		}
		opt.Description = lit.Value
	}

	if choicesNode, ok := kwargs["choices"]; ok {
		arr, ok := choicesNode.(*ast.ArrayLit)
		if !ok {
			return fmt.Errorf("option %q: 'choices' must be an array literal", name)
		}
		for _, elem := range arr.Elems {
			lit, ok := elem.(*ast.StringLit)
			if !ok {
				return fmt.Errorf("option %q: every choice must be a string literal", name)
			}
			opt.Choices = append(opt.Choices, lit.Value)
		}
	}

	if valNode, ok := kwargs["value"]; ok {
		v, err := literalValue(valNode)
		if err != nil {
			return fmt.Errorf("option %q: value: %w", name, err)
		}
		opt.Value = v
		opt.Default = v
	} else {
		opt.Value = zeroValueForKind(kind)
		opt.Default = opt.Value
	}

	if kind == OptCombo && len(opt.Choices) == 0 {
		return fmt.Errorf("option %q: type 'combo' requires 'choices'", name)
	}

	return reg.Declare(opt)
}

func literalValue(n ast.Node) (interface{}, error) {
	switch v := n.(type) {
	case *ast.StringLit:
		return v.Value, nil
	case *ast.BoolLit:
		return v.Value, nil
	case *ast.IntLit:
		return v.Value, nil
	case *ast.ArrayLit:
		var out []string
		for _, e := range v.Elems {
			lit, ok := e.(*ast.StringLit)
			if !ok {
				return nil, fmt.Errorf("array elements must be string literals")
			}
			out = append(out, lit.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported literal expression")
	}
}

func zeroValueForKind(kind OptionKind) interface{} {
	switch kind {
	case OptBool:
		return false
	case OptInt:
		return int64(0)
	case OptStringArray:
		return []string{}
	default:
		return ""
	}
}
