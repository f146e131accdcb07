// Package parser implements the recursive-descent parser for the
// build-definition language described in spec.md §4.2.
package parser

import (
	"github.com/forgebuild/forge/internal/ast"
	"github.com/forgebuild/forge/internal/diag"
	"github.com/forgebuild/forge/internal/lexer"
)

// Parser consumes tokens from a lexer.Lexer and produces an *ast.Block at
// the root. It does not attempt error recovery: the first parse error
// aborts the whole parse, per spec.md §4.2.
type Parser struct {
	lex  *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
	file string
}

// Parse lexes and parses the full contents of one build-definition file,
// returning its root code-block.
func Parse(file, src string) (*ast.Block, error) {
	p := &Parser{lex: lexer.New(file, src), file: file}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	block, err := p.parseBlock(isTerminal)
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != lexer.EOF {
		return nil, p.errf("expected end of file, got %s", p.cur.Kind)
	}
	return block, nil
}

func isTerminal(k lexer.Kind) bool { return k == lexer.EOF }

func (p *Parser) advance() error {
	p.cur = p.peek
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

func (p *Parser) errf(format string, args ...interface{}) error {
	return diag.New(diag.ParseError, p.cur.Pos, format, args...)
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if p.cur.Kind != k {
		return lexer.Token{}, p.errf("expected %s, got %s", k, p.cur.Kind)
	}
	tok := p.cur
	return tok, p.advance()
}

func (p *Parser) skipEOLs() error {
	for p.cur.Kind == lexer.EOL {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

// parseBlock parses statements until a token satisfying stop is seen
// (without consuming it).
func (p *Parser) parseBlock(stop func(lexer.Kind) bool) (*ast.Block, error) {
	pos := p.cur.Pos
	block := &ast.Block{}
	block.P = pos
	for {
		if err := p.skipEOLs(); err != nil {
			return nil, err
		}
		if stop(p.cur.Kind) {
			return block, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
		if p.cur.Kind != lexer.EOL && !stop(p.cur.Kind) {
			return nil, p.errf("expected end of line, got %s", p.cur.Kind)
		}
	}
}

func (p *Parser) parseStatement() (ast.Node, error) {
	switch p.cur.Kind {
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwForeach:
		return p.parseForeach()
	case lexer.KwContinue:
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Continue{Base: ast.Base{P: pos}}, nil
	case lexer.KwBreak:
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Break{Base: ast.Base{P: pos}}, nil
	}
	return p.parseAssignOrExpr()
}



func isBlockEnd(k lexer.Kind) bool {
	switch k {
	case lexer.KwElif, lexer.KwElse, lexer.KwEndif, lexer.KwEndforeach, lexer.EOF:
		return true
	}
	return false
}

func (p *Parser) parseIf() (ast.Node, error) {
	pos := p.cur.Pos
	var branches []ast.Branch
	if err := p.advance(); err != nil { // consume 'if'
		return nil, err
	}
	for {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.skipEOLs(); err != nil {
			return nil, err
		}
		body, err := p.parseBlock(isBlockEnd)
		if err != nil {
			return nil, err
		}
		branches = append(branches, ast.Branch{Cond: cond, Body: body})
		switch p.cur.Kind {
		case lexer.KwElif:
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		case lexer.KwElse:
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.skipEOLs(); err != nil {
				return nil, err
			}
			elseBody, err := p.parseBlock(isBlockEnd)
			if err != nil {
				return nil, err
			}
			branches = append(branches, ast.Branch{Cond: nil, Body: elseBody})
			if _, err := p.expect(lexer.KwEndif); err != nil {
				return nil, err
			}
			return &ast.IfChain{Base: ast.Base{P: pos}, Branches: branches}, nil
		case lexer.KwEndif:
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &ast.IfChain{Base: ast.Base{P: pos}, Branches: branches}, nil
		default:
			return nil, p.errf("expected elif, else, or endif, got %s", p.cur.Kind)
		}
	}
}

func (p *Parser) parseForeach() (ast.Node, error) {
	pos := p.cur.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}
	vars := []string{nameTok.Str}
	if p.cur.Kind == lexer.Comma {
		if err := p.advance(); err != nil {
			return nil, err
		}
		nameTok2, err := p.expect(lexer.Identifier)
		if err != nil {
			return nil, err
		}
		vars = append(vars, nameTok2.Str)
	}
	if _, err := p.expect(lexer.Colon); err != nil {
		return nil, err
	}
	iterable, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.skipEOLs(); err != nil {
		return nil, err
	}
	isEnd := func(k lexer.Kind) bool { return k == lexer.KwEndforeach || k == lexer.EOF }
	body, err := p.parseBlock(isEnd)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KwEndforeach); err != nil {
		return nil, err
	}
	return &ast.Foreach{Base: ast.Base{P: pos}, Vars: vars, Iterable: iterable, Body: body}, nil
}

// parseAssignOrExpr handles `name = expr`, `name += expr`, and plain
// expression statements; assignment is right-associative but since the
// LHS here is always a bare identifier there is nothing to chain.
func (p *Parser) parseAssignOrExpr() (ast.Node, error) {
	if p.cur.Kind == lexer.Identifier && (p.peek.Kind == lexer.Assign || p.peek.Kind == lexer.PlusAssign) {
		name := p.cur
		op := p.peek.Kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if op == lexer.Assign {
			return &ast.Assign{Base: ast.Base{P: name.Pos}, Name: name.Str, RHS: rhs}, nil
		}
		return &ast.PlusAssign{Base: ast.Base{P: name.Pos}, Name: name.Str, RHS: rhs}, nil
	}
	return p.parseExpr()
}

// parseExpr parses a full expression, including the ternary
// `cond ? then : else`, which is right-associative.
func (p *Parser) parseExpr() (ast.Node, error) {
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.QuestionMark {
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		els, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Ternary{Base: ast.Base{P: pos}, Cond: cond, Then: then, Else: els}, nil
	}
	return cond, nil
}

func (p *Parser) parseOr() (ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.KwOr {
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.Base{P: pos}, Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.KwAnd {
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.Base{P: pos}, Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Eq || p.cur.Kind == lexer.Neq {
		op := ast.OpEq
		if p.cur.Kind == lexer.Neq {
			op = ast.OpNeq
		}
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.Base{P: pos}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOp
		switch p.cur.Kind {
		case lexer.Lt:
			op = ast.OpLt
		case lexer.Lte:
			op = ast.OpLte
		case lexer.Gt:
			op = ast.OpGt
		case lexer.Gte:
			op = ast.OpGte
		case lexer.KwIn:
			op = ast.OpIn
		case lexer.KwNot:
			if p.peek.Kind != lexer.KwIn {
				return left, nil
			}
			pos := p.cur.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &ast.Binary{Base: ast.Base{P: pos}, Op: ast.OpNotIn, Left: left, Right: right}
			continue
		default:
			return left, nil
		}
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.Base{P: pos}, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() (ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Plus || p.cur.Kind == lexer.Minus {
		op := ast.OpAdd
		if p.cur.Kind == lexer.Minus {
			op = ast.OpSub
		}
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.Base{P: pos}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOp
		switch p.cur.Kind {
		case lexer.Star:
			op = ast.OpMul
		case lexer.Slash:
			op = ast.OpDiv
		case lexer.Percent:
			op = ast.OpMod
		default:
			return left, nil
		}
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.Base{P: pos}, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (ast.Node, error) {
	if p.cur.Kind == lexer.KwNot {
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Base: ast.Base{P: pos}, X: x}, nil
	}
	if p.cur.Kind == lexer.Minus {
		// unary minus, expressed as 0 - x to keep the value domain flat.
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Base: ast.Base{P: pos}, Op: ast.OpSub, Left: &ast.IntLit{Base: ast.Base{P: pos}, Value: 0}, Right: x}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Node, error) {
	recv, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case lexer.Dot:
			pos := p.cur.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			nameTok, err := p.expect(lexer.Identifier)
			if err != nil {
				return nil, err
			}
			if p.cur.Kind != lexer.LParen {
				return nil, p.errf("expected method call after '.', got %s", p.cur.Kind)
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			recv = &ast.MethodCall{Base: ast.Base{P: pos}, Recv: recv, Name: nameTok.Str, Args: args.args, KeywordBeforePositional: args.kwFirst}
		case lexer.LBracket:
			pos := p.cur.Pos
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBracket); err != nil {
				return nil, err
			}
			recv = &ast.Index{Base: ast.Base{P: pos}, Recv: recv, Index: idx}
		case lexer.LParen:
			// a bare identifier followed by '(' is a function call, only
			// legal directly on an IdentRef.
			ref, ok := recv.(*ast.IdentRef)
			if !ok {
				return nil, p.errf("cannot call a non-identifier expression")
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			recv = &ast.FuncCall{Base: ast.Base{P: ref.Pos()}, Name: ref.Name, Args: args.args, KeywordBeforePositional: args.kwFirst}
		default:
			return recv, nil
		}
	}
}

type parsedArgs struct {
	args    []ast.Arg
	kwFirst bool
}

// parseArgs parses a parenthesized, comma-separated argument list,
// allowing a trailing comma, and records (but does not itself reject)
// whether a keyword argument preceded a positional one so the caller can
// attach the error at the list's own position.
func (p *Parser) parseArgs() (parsedArgs, error) {
	if _, err := p.expect(lexer.LParen); err != nil {
		return parsedArgs{}, err
	}
	var out parsedArgs
	sawKeyword := false
	for {
		if err := p.skipEOLs(); err != nil {
			return parsedArgs{}, err
		}
		if p.cur.Kind == lexer.RParen {
			break
		}
		arg, err := p.parseArg()
		if err != nil {
			return parsedArgs{}, err
		}
		if arg.Name == "" && sawKeyword {
			out.kwFirst = true
		}
		if arg.Name != "" {
			sawKeyword = true
		}
		out.args = append(out.args, arg)
		if err := p.skipEOLs(); err != nil {
			return parsedArgs{}, err
		}
		if p.cur.Kind == lexer.Comma {
			if err := p.advance(); err != nil {
				return parsedArgs{}, err
			}
			continue
		}
		break
	}
	if err := p.skipEOLs(); err != nil {
		return parsedArgs{}, err
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return parsedArgs{}, err
	}
	if out.kwFirst {
		return out, diag.New(diag.ParseError, p.cur.Pos, "positional argument after keyword argument")
	}
	return out, nil
}

func (p *Parser) parseArg() (ast.Arg, error) {
	if p.cur.Kind == lexer.Identifier && p.peek.Kind == lexer.Colon {
		name := p.cur.Str
		if err := p.advance(); err != nil {
			return ast.Arg{}, err
		}
		if err := p.advance(); err != nil {
			return ast.Arg{}, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return ast.Arg{}, err
		}
		return ast.Arg{Name: name, Value: val}, nil
	}
	val, err := p.parseExpr()
	if err != nil {
		return ast.Arg{}, err
	}
	return ast.Arg{Value: val}, nil
}

func (p *Parser) parseAtom() (ast.Node, error) {
	tok := p.cur
	switch tok.Kind {
	case lexer.KwTrue:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BoolLit{Base: ast.Base{P: tok.Pos}, Value: true}, nil
	case lexer.KwFalse:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BoolLit{Base: ast.Base{P: tok.Pos}, Value: false}, nil
	case lexer.Integer:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.IntLit{Base: ast.Base{P: tok.Pos}, Value: tok.Int}, nil
	case lexer.String, lexer.FString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StringLit{Base: ast.Base{P: tok.Pos}, Value: tok.Str}, nil
	case lexer.Identifier:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.IdentRef{Base: ast.Base{P: tok.Pos}, Name: tok.Str}, nil
	case lexer.LParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return x, nil
	case lexer.LBracket:
		return p.parseArray()
	case lexer.LBrace:
		return p.parseMap()
	default:
		return nil, p.errf("unexpected token %s", tok.Kind)
	}
}

func (p *Parser) parseArray() (ast.Node, error) {
	pos := p.cur.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	lit := &ast.ArrayLit{Base: ast.Base{P: pos}}
	for {
		if err := p.skipEOLs(); err != nil {
			return nil, err
		}
		if p.cur.Kind == lexer.RBracket {
			break
		}
		elem, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Elems = append(lit.Elems, elem)
		if err := p.skipEOLs(); err != nil {
			return nil, err
		}
		if p.cur.Kind == lexer.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.skipEOLs(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBracket); err != nil {
		return nil, err
	}
	return lit, nil
}

func (p *Parser) parseMap() (ast.Node, error) {
	pos := p.cur.Pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	lit := &ast.MapLit{Base: ast.Base{P: pos}}
	for {
		if err := p.skipEOLs(); err != nil {
			return nil, err
		}
		if p.cur.Kind == lexer.RBrace {
			break
		}
		keyTok := p.cur
		if keyTok.Kind != lexer.String {
			return nil, p.errf("mapping keys must be string literals, got %s", keyTok.Kind)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Entries = append(lit.Entries, ast.MapEntry{Key: keyTok.Str, Value: val})
		if err := p.skipEOLs(); err != nil {
			return nil, err
		}
		if p.cur.Kind == lexer.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.skipEOLs(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return lit, nil
}
