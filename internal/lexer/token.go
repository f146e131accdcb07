package lexer

import "github.com/forgebuild/forge/internal/diag"

// Kind is one of the token categories from spec.md §3.
type Kind int

const (
	EOF Kind = iota
	EOL

	Identifier
	Integer
	String
	FString // triple-quoted string

	// punctuation
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Comma
	Colon
	Dot
	Plus
	Minus
	Star
	Slash
	Percent
	Assign
	PlusAssign
	Eq
	Neq
	Lt
	Lte
	Gt
	Gte
	QuestionMark

	// keywords
	KwTrue
	KwFalse
	KwIf
	KwElif
	KwElse
	KwEndif
	KwForeach
	KwEndforeach
	KwAnd
	KwOr
	KwNot
	KwIn
	KwContinue
	KwBreak
)

var keywords = map[string]Kind{
	"true":       KwTrue,
	"false":      KwFalse,
	"if":         KwIf,
	"elif":       KwElif,
	"else":       KwElse,
	"endif":      KwEndif,
	"foreach":    KwForeach,
	"endforeach": KwEndforeach,
	"and":        KwAnd,
	"or":         KwOr,
	"not":        KwNot,
	"in":         KwIn,
	"continue":   KwContinue,
	"break":      KwBreak,
}

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case EOL:
		return "EOL"
	case Identifier:
		return "identifier"
	case Integer:
		return "integer"
	case String:
		return "string"
	case FString:
		return "triple-quoted string"
	case LParen:
		return "("
	case RParen:
		return ")"
	case LBracket:
		return "["
	case RBracket:
		return "]"
	case LBrace:
		return "{"
	case RBrace:
		return "}"
	case Comma:
		return ","
	case Colon:
		return ":"
	case Dot:
		return "."
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Star:
		return "*"
	case Slash:
		return "/"
	case Percent:
		return "%"
	case Assign:
		return "="
	case PlusAssign:
		return "+="
	case Eq:
		return "=="
	case Neq:
		return "!="
	case Lt:
		return "<"
	case Lte:
		return "<="
	case Gt:
		return ">"
	case Gte:
		return ">="
	case QuestionMark:
		return "?"
	default:
		for name, kw := range keywords {
			if kw == k {
				return name
			}
		}
		return "unknown"
	}
}

// Token is one lexical unit: a kind, its source position, and a payload
// for the kinds that carry one.
type Token struct {
	Kind   Kind
	Pos    diag.Pos
	Str    string // unescaped string payload, or the identifier/keyword text
	Int    int64  // integer payload
	Source string // exact source bytes this token was lexed from (for S8/property 1)
}
