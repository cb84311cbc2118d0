package rangetype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/rangetype"
)

func TestMatcher_Default(t *testing.T) {
	t.Parallel()

	m, err := rangetype.CompileMatch("")
	require.NoError(t, err)

	tests := []struct {
		name       string
		languageID string
		path       string
		want       bool
	}{
		{"haskell language id", "haskell", "/src/Main.lhs", true},
		{"hs extension", "plaintext", "/src/Main.hs", true},
		{"other", "go", "/src/main.go", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := m.Match(tt.languageID, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_Custom(t *testing.T) {
	t.Parallel()

	m, err := rangetype.CompileMatch(`path endsWith ".hs" && !(path contains "/dist-newstyle/")`)
	require.NoError(t, err)

	got, err := m.Match("haskell", "/p/dist-newstyle/Gen.hs")
	require.NoError(t, err)
	assert.False(t, got)

	got, err = m.Match("haskell", "/p/src/Lib.hs")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCompileMatch_Errors(t *testing.T) {
	t.Parallel()

	_, err := rangetype.CompileMatch(`languageId ==`)
	assert.Error(t, err)

	// Not a boolean.
	_, err = rangetype.CompileMatch(`path`)
	assert.Error(t, err)

	// Unknown variable.
	_, err = rangetype.CompileMatch(`filename == "x"`)
	assert.Error(t, err)
}
