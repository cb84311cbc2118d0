package rangetype

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrMatchNotBool is returned when a match expression doesn't evaluate to a boolean.
var ErrMatchNotBool = errors.New("match expression must return a boolean")

// Matcher decides whether a document is handled.
// It is compiled once from Config.Match and safe for concurrent use.
type Matcher struct {
	source  string
	program *vm.Program
}

// matchEnv is the environment visible to match expressions.
type matchEnv struct {
	LanguageID string `expr:"languageId"`
	Path       string `expr:"path"`
}

// CompileMatch compiles a match expression. An empty expression uses DefaultMatch.
func CompileMatch(source string) (*Matcher, error) {
	if strings.TrimSpace(source) == "" {
		source = DefaultMatch
	}

	program, err := expr.Compile(source, expr.Env(matchEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile match %q: %w", source, err)
	}

	return &Matcher{source: source, program: program}, nil
}

// Match reports whether a document with the given language id and path is handled.
func (m *Matcher) Match(languageID, path string) (bool, error) {
	output, err := expr.Run(m.program, matchEnv{LanguageID: languageID, Path: path})
	if err != nil {
		return false, fmt.Errorf("evaluate match %q: %w", m.source, err)
	}

	matched, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T", ErrMatchNotBool, m.source, output)
	}

	return matched, nil
}

// String returns the source expression.
func (m *Matcher) String() string {
	return m.source
}
