package main

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"
)

// TypeStyles colors the tokens of a Haskell type.
type TypeStyles struct {
	Constructor lipgloss.Style
	Variable    lipgloss.Style
	Operator    lipgloss.Style
	Literal     lipgloss.Style
	Punctuation lipgloss.Style
}

// highlightType renders typ token by token with the Haskell lexer. It falls
// back to the base style when the lexer is unavailable or fails.
func highlightType(typ string, base lipgloss.Style, styles *TypeStyles) string {
	lexer := lexers.Get("haskell")
	if lexer == nil || styles == nil {
		return base.Render(typ)
	}

	lexer = chroma.Coalesce(lexer)

	iter, err := lexer.Tokenise(nil, typ)
	if err != nil {
		return base.Render(typ)
	}

	var b strings.Builder

	for tok := iter(); tok != chroma.EOF; tok = iter() {
		if strings.TrimSpace(tok.Value) == "" {
			b.WriteString(tok.Value)

			continue
		}

		style := base

		switch tok.Type.Category() {
		case chroma.Keyword:
			style = styles.Constructor
		case chroma.Name:
			style = styles.Variable
			if tok.Type == chroma.NameClass || tok.Type == chroma.NameBuiltin {
				style = styles.Constructor
			}
		case chroma.Literal:
			style = styles.Literal
		case chroma.Operator:
			style = styles.Operator
		case chroma.Punctuation:
			style = styles.Punctuation
		}

		b.WriteString(style.Render(tok.Value))
	}

	// The lexer ensures a trailing newline.
	return strings.TrimSuffix(b.String(), "\n")
}
