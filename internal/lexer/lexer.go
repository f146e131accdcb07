// Package lexer turns the UTF-8 text of one build-definition file into a
// lazy, finite, non-restartable sequence of tokens ending in EOF, per
// spec.md §4.1.
package lexer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/forgebuild/forge/internal/diag"
)

var reserved = map[string]bool{}

func init() {
	for name := range keywords {
		reserved[name] = true
	}
}

// Lexer scans one file's source text. It is not safe for concurrent use
// and cannot be rewound.
type Lexer struct {
	file string
	src  string
	pos  int // byte offset into src
	line int
	col  int

	depth int // running () [] {} nesting depth; suppresses EOL while > 0

	atLineStart bool
}

// New strips a leading UTF-8 BOM if present, per spec.md §4.1.
func New(file, src string) *Lexer {
	src = strings.TrimPrefix(src, "\uFEFF")
	return &Lexer{file: file, src: src, line: 1, col: 1, atLineStart: true}
}

func (l *Lexer) errPos() diag.Pos {
	return diag.Pos{File: l.file, Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

// Next returns the next token. After an EOF token has been returned,
// every subsequent call returns EOF again at the same position.
func (l *Lexer) Next() (Token, error) {
	for {
		start := l.pos
		startLine, startCol := l.line, l.col

		if l.pos >= len(l.src) {
			return Token{Kind: EOF, Pos: l.errPos()}, nil
		}

		b := l.peekByte()

		switch {
		case b == '\n':
			l.advance()
			if l.depth > 0 {
				continue
			}
			return Token{Kind: EOL, Pos: diag.Pos{File: l.file, Line: startLine, Column: startCol, Offset: start}, Source: "\n"}, nil

		case b == ' ' || b == '\t' || b == '\r':
			l.advance()
			continue

		case b == '\\' && l.peekByteAt(1) == '\n':
			// line continuation: join physical lines.
			l.advance()
			l.advance()
			continue
		case b == '\\' && l.peekByteAt(1) == '\r' && l.peekByteAt(2) == '\n':
			l.advance()
			l.advance()
			l.advance()
			continue

		case b == '#':
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
			continue

		case b == '\'':
			return l.lexString(start, startLine, startCol)

		case b >= '0' && b <= '9':
			return l.lexNumber(start, startLine, startCol)

		case isIdentStart(b):
			return l.lexIdent(start, startLine, startCol)

		default:
			return l.lexPunct(start, startLine, startCol)
		}
	}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func (l *Lexer) lexIdent(start, startLine, startCol int) (Token, error) {
	for l.pos < len(l.src) && isIdentCont(l.peekByte()) {
		l.advance()
	}
	text := l.src[start:l.pos]
	pos := diag.Pos{File: l.file, Line: startLine, Column: startCol, Offset: start}
	if kw, ok := keywords[text]; ok {
		return Token{Kind: kw, Pos: pos, Str: text, Source: text}, nil
	}
	return Token{Kind: Identifier, Pos: pos, Str: text, Source: text}, nil
}

func (l *Lexer) lexNumber(start, startLine, startCol int) (Token, error) {
	base := 10
	if l.peekByte() == '0' && (l.peekByteAt(1) == 'x' || l.peekByteAt(1) == 'X') {
		l.advance()
		l.advance()
		base = 16
		for l.pos < len(l.src) && isHex(l.peekByte()) {
			l.advance()
		}
	} else if l.peekByte() == '0' && (l.peekByteAt(1) == 'o' || l.peekByteAt(1) == 'O') {
		l.advance()
		l.advance()
		base = 8
		for l.pos < len(l.src) && l.peekByte() >= '0' && l.peekByte() <= '7' {
			l.advance()
		}
	} else if l.peekByte() == '0' && (l.peekByteAt(1) == 'b' || l.peekByteAt(1) == 'B') {
		l.advance()
		l.advance()
		base = 2
		for l.pos < len(l.src) && (l.peekByte() == '0' || l.peekByte() == '1') {
			l.advance()
		}
	} else {
		for l.pos < len(l.src) && l.peekByte() >= '0' && l.peekByte() <= '9' {
			l.advance()
		}
	}
	text := l.src[start:l.pos]
	pos := diag.Pos{File: l.file, Line: startLine, Column: startCol, Offset: start}
	digits := text
	switch base {
	case 16:
		digits = strings.TrimPrefix(strings.TrimPrefix(digits, "0x"), "0X")
	case 8:
		digits = strings.TrimPrefix(strings.TrimPrefix(digits, "0o"), "0O")
	case 2:
		digits = strings.TrimPrefix(strings.TrimPrefix(digits, "0b"), "0B")
	}
	n, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return Token{}, diag.New(diag.LexError, pos, "invalid integer literal %q", text)
	}
	return Token{Kind: Integer, Pos: pos, Int: n, Source: text}, nil
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// lexString lexes either a single-quoted one-line string or, if the
// opening run is three quotes, a triple-quoted string spanning lines
// verbatim with no escapes.
func (l *Lexer) lexString(start, startLine, startCol int) (Token, error) {
	pos := diag.Pos{File: l.file, Line: startLine, Column: startCol, Offset: start}
	quote := l.peekByte()
	if l.peekByteAt(1) == quote && l.peekByteAt(2) == quote {
		return l.lexTripleString(start, startLine, startCol, quote)
	}
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, diag.New(diag.LexError, pos, "unterminated string")
		}
		c := l.peekByte()
		if c == byte(quote) {
			l.advance()
			break
		}
		if c == '\n' {
			return Token{}, diag.New(diag.LexError, pos, "unterminated string")
		}
		if c == '\\' {
			l.advance()
			esc, err := l.lexEscape(pos)
			if err != nil {
				return Token{}, err
			}
			sb.WriteRune(esc)
			continue
		}
		sb.WriteByte(c)
		l.advance()
	}
	return Token{Kind: String, Pos: pos, Str: sb.String(), Source: l.src[start:l.pos]}, nil
}

func (l *Lexer) lexEscape(pos diag.Pos) (rune, error) {
	if l.pos >= len(l.src) {
		return 0, diag.New(diag.LexError, pos, "unterminated escape sequence")
	}
	c := l.advance()
	switch c {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case '\\':
		return '\\', nil
	case '\'':
		return '\'', nil
	case '0':
		return 0, nil
	case 'x':
		return l.lexHexEscape(pos, 2)
	case 'u':
		return l.lexHexEscape(pos, 4)
	case 'U':
		return l.lexHexEscape(pos, 8)
	default:
		return 0, diag.New(diag.LexError, pos, "unknown escape sequence \\%c", c)
	}
}

func (l *Lexer) lexHexEscape(pos diag.Pos, n int) (rune, error) {
	if l.pos+n > len(l.src) {
		return 0, diag.New(diag.LexError, pos, "truncated escape sequence")
	}
	digits := l.src[l.pos : l.pos+n]
	for range digits {
		l.advance()
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, diag.New(diag.LexError, pos, "invalid hex escape \\x%s", digits)
	}
	return rune(v), nil
}

func (l *Lexer) lexTripleString(start, startLine, startCol int, quote byte) (Token, error) {
	pos := diag.Pos{File: l.file, Line: startLine, Column: startCol, Offset: start}
	l.advance()
	l.advance()
	l.advance()
	contentStart := l.pos
	for {
		if l.pos >= len(l.src) {
			return Token{}, diag.New(diag.LexError, pos, "unterminated triple-quoted string")
		}
		if l.peekByte() == quote && l.peekByteAt(1) == quote && l.peekByteAt(2) == quote {
			content := l.src[contentStart:l.pos]
			l.advance()
			l.advance()
			l.advance()
			return Token{Kind: FString, Pos: pos, Str: content, Source: l.src[start:l.pos]}, nil
		}
		l.advance()
	}
}

type punct struct {
	s string
	k Kind
}

// ordered longest-match-first
var puncts = []punct{
	{"==", Eq},
	{"!=", Neq},
	{"<=", Lte},
	{">=", Gte},
	{"+=", PlusAssign},
	{"(", LParen},
	{")", RParen},
	{"[", LBracket},
	{"]", RBracket},
	{"{", LBrace},
	{"}", RBrace},
	{",", Comma},
	{":", Colon},
	{".", Dot},
	{"+", Plus},
	{"-", Minus},
	{"*", Star},
	{"/", Slash},
	{"%", Percent},
	{"=", Assign},
	{"<", Lt},
	{">", Gt},
	{"?", QuestionMark},
}

func (l *Lexer) lexPunct(start, startLine, startCol int) (Token, error) {
	pos := diag.Pos{File: l.file, Line: startLine, Column: startCol, Offset: start}
	rest := l.src[l.pos:]
	for _, p := range puncts {
		if strings.HasPrefix(rest, p.s) {
			for range p.s {
				l.advance()
			}
			switch p.k {
			case LParen, LBracket, LBrace:
				l.depth++
			case RParen, RBracket, RBrace:
				if l.depth > 0 {
					l.depth--
				}
			}
			return Token{Kind: p.k, Pos: pos, Source: p.s}, nil
		}
	}
	r, size := utf8.DecodeRuneInString(rest)
	if r == utf8.RuneError {
		size = 1
	}
	for i := 0; i < size; i++ {
		l.advance()
	}
	return Token{}, diag.New(diag.LexError, pos, "unexpected character %q", r)
}
