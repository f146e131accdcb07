package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New("test.build", src)
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next() = %v", err)
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return toks
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexBasics(t *testing.T) {
	for _, test := range []struct {
		desc string
		src  string
		want []Kind
	}{
		{
			desc: "identifier and string",
			src:  "project('triv', 'c')",
			want: []Kind{Identifier, LParen, String, Comma, String, RParen, EOF},
		},
		{
			desc: "comment to end of line",
			src:  "x = 1 # a comment\ny = 2",
			want: []Kind{Identifier, Assign, Integer, EOL, Identifier, Assign, Integer, EOF},
		},
		{
			desc: "parens suppress EOL",
			src:  "f(1,\n2)",
			want: []Kind{Identifier, LParen, Integer, Comma, Integer, RParen, EOF},
		},
		{
			desc: "line continuation",
			src:  "x = 1 + \\\n2",
			want: []Kind{Identifier, Assign, Integer, Plus, Integer, EOF},
		},
		{
			desc: "keywords reclassified",
			src:  "if true and not false",
			want: []Kind{KwIf, KwTrue, KwAnd, KwNot, KwFalse, EOF},
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			got := kinds(lexAll(t, test.src))
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("lex(%q) kinds mismatch (-want +got):\n%s", test.src, diff)
			}
		})
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks := lexAll(t, `'a\nb\tc\\d\'e'`)
	if len(toks) != 2 || toks[0].Kind != String {
		t.Fatalf("unexpected tokens: %+v", toks)
	}
	if got, want := toks[0].Str, "a\nb\tc\\d'e"; got != want {
		t.Errorf("Str = %q, want %q", got, want)
	}
}

func TestLexTripleQuotedVerbatim(t *testing.T) {
	toks := lexAll(t, "'''line1\\n\nline2'''")
	if len(toks) != 2 || toks[0].Kind != FString {
		t.Fatalf("unexpected tokens: %+v", toks)
	}
	if got, want := toks[0].Str, "line1\\n\nline2"; got != want {
		t.Errorf("Str = %q, want %q", got, want)
	}
}

func TestLexUnterminatedStringIsLexError(t *testing.T) {
	l := New("test.build", "'unterminated")
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected an error")
	}
}

// TestLexRoundTrip asserts spec.md §8 property 1: re-lexing the
// concatenation of token source-spans reproduces an identical stream.
func TestLexRoundTrip(t *testing.T) {
	src := "project('p', 'c', version: '1.2', default_options: ['x=y'])\nfoo = 1 + 2 * 3\n"
	first := lexAll(t, src)
	var rebuilt string
	for _, tok := range first {
		rebuilt += tok.Source
	}
	second := lexAll(t, rebuilt)
	if diff := cmp.Diff(kinds(first), kinds(second)); diff != "" {
		t.Errorf("re-lexed stream differs (-first +second):\n%s", diff)
	}
}
