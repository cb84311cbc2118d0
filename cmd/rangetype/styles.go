package main

import "github.com/charmbracelet/lipgloss"

// Colors match the editor decorations where they overlap.
var (
	colorExpr    = lipgloss.Color("#66f")
	colorType    = lipgloss.Color("#10b981") // green-500
	colorError   = lipgloss.Color("#ef4444") // red-500
	colorRunning = lipgloss.Color("#06b6d4") // cyan-500
	colorDim     = lipgloss.Color("#6b7280") // gray-500
	colorVar     = lipgloss.Color("#a78bfa") // violet-400
	colorLiteral = lipgloss.Color("#f59e0b") // amber-500
)

// Styles holds the lipgloss styles for CLI output.
type Styles struct {
	Expr      lipgloss.Style
	Separator lipgloss.Style
	Type      lipgloss.Style
	Error     lipgloss.Style
	Running   lipgloss.Style
	Dim       lipgloss.Style
	Key       lipgloss.Style

	// Tokens is nil when types are printed without syntax highlighting.
	Tokens *TypeStyles
}

// DefaultStyles returns the styles used on a terminal.
func DefaultStyles() *Styles {
	return &Styles{
		Expr:      lipgloss.NewStyle().Foreground(colorExpr).Underline(true),
		Separator: lipgloss.NewStyle().Foreground(colorDim),
		Type:      lipgloss.NewStyle().Foreground(colorType).Bold(true),
		Error:     lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Running:   lipgloss.NewStyle().Foreground(colorRunning).Bold(true),
		Dim:       lipgloss.NewStyle().Foreground(colorDim),
		Key:       lipgloss.NewStyle().Bold(true),
		Tokens: &TypeStyles{
			Constructor: lipgloss.NewStyle().Foreground(colorType).Bold(true),
			Variable:    lipgloss.NewStyle().Foreground(colorVar),
			Operator:    lipgloss.NewStyle().Foreground(colorDim),
			Literal:     lipgloss.NewStyle().Foreground(colorLiteral),
			Punctuation: lipgloss.NewStyle().Foreground(colorDim),
		},
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() *Styles {
	plain := lipgloss.NewStyle()

	return &Styles{
		Expr:      plain,
		Separator: plain,
		Type:      plain,
		Error:     plain,
		Running:   plain,
		Dim:       plain,
		Key:       plain,
	}
}

// SpinnerFrames returns the braille spinner animation frames.
func SpinnerFrames() []string {
	return []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
}

// renderType formats "<expr> :: <type>".
func (s *Styles) renderType(expr, typ string) string {
	return s.Expr.Render(expr) + s.Separator.Render(" :: ") + highlightType(typ, s.Type, s.Tokens)
}
