package document_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/rlch/rangetype/document"
)

func pos(line, col int) document.Position {
	return document.Position{Line: line, Column: col}
}

func rng(sl, sc, el, ec int) document.Range {
	return document.Range{Start: pos(sl, sc), End: pos(el, ec)}
}

func TestNew_Lines(t *testing.T) {
	t.Parallel()

	doc := document.New("module Main where\r\n\nmain = pure ()")

	assert.Equal(t, 3, doc.LineCount())
	assert.Equal(t, "module Main where", doc.Line(0))
	assert.Equal(t, "", doc.Line(1))
	assert.Equal(t, "main = pure ()", doc.Line(2))
	assert.Equal(t, "", doc.Line(7))
}

func TestWordRangeAt(t *testing.T) {
	t.Parallel()

	doc := document.New("  foldr' f_1 acc xs\n(+) <$> x")

	tests := []struct {
		name   string
		at     document.Position
		want   document.Range
		wantOK bool
	}{
		{"inside word", pos(0, 4), rng(0, 2, 0, 8), true},
		{"start of word", pos(0, 2), rng(0, 2, 0, 8), true},
		{"end of word", pos(0, 8), rng(0, 2, 0, 8), true},
		{"underscore and digit", pos(0, 10), rng(0, 9, 0, 12), true},
		{"leading whitespace", pos(0, 0), document.Range{}, false},
		{"operator", pos(1, 1), document.Range{}, false},
		{"end of line", pos(1, 9), rng(1, 8, 1, 9), true},
		{"past end of line", pos(1, 10), document.Range{}, false},
		{"bad line", pos(5, 0), document.Range{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := doc.WordRangeAt(tt.at)
			assert.Equal(t, tt.wantOK, ok)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("WordRangeAt() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestText(t *testing.T) {
	t.Parallel()

	doc := document.New("let x = 1\n    y = 2\nin x + y")

	assert.Equal(t, "x = 1", doc.Text(rng(0, 4, 0, 9)))
	assert.Equal(t, "1\n    y = 2\nin", doc.Text(rng(0, 8, 2, 2)))
	// Reversed and out-of-range ranges are normalised.
	assert.Equal(t, "x = 1", doc.Text(rng(0, 9, 0, 4)))
	assert.Equal(t, "x + y", doc.Text(rng(2, 3, 9, 99)))
}

func TestRuneAt(t *testing.T) {
	t.Parallel()

	doc := document.New("Map.λx")

	r, ok := doc.RuneAt(pos(0, 3))
	assert.True(t, ok)
	assert.Equal(t, '.', r)

	r, ok = doc.RuneAt(pos(0, 4))
	assert.True(t, ok)
	assert.Equal(t, 'λ', r)

	_, ok = doc.RuneAt(pos(0, 6))
	assert.False(t, ok)

	_, ok = doc.RuneAt(pos(0, -1))
	assert.False(t, ok)
}

func TestLineRange(t *testing.T) {
	t.Parallel()

	doc := document.New("a\nfoo bar")

	assert.Equal(t, rng(1, 0, 1, 7), doc.LineRange(1))
	assert.Equal(t, rng(1, 0, 1, 7), doc.LineRange(4))
}

func TestUTF16(t *testing.T) {
	t.Parallel()

	// '𝑥' is outside the BMP and takes two UTF-16 units.
	doc := document.New("f 𝑥 = 𝑥")

	assert.Equal(t, pos(0, 2), doc.FromUTF16(0, 2))
	assert.Equal(t, pos(0, 3), doc.FromUTF16(0, 4))
	assert.Equal(t, pos(0, 2), doc.FromUTF16(0, 3), "inside a surrogate pair rounds down")
	assert.Equal(t, pos(0, 7), doc.FromUTF16(0, 100))
	assert.Equal(t, pos(0, 7), doc.FromUTF16(3, 0))

	line, char := doc.ToUTF16(pos(0, 6))
	assert.Equal(t, uint32(0), line)
	assert.Equal(t, uint32(7), char)
}

func TestClampAndValid(t *testing.T) {
	t.Parallel()

	doc := document.New("ab\nc")

	assert.True(t, doc.Valid(pos(0, 2)))
	assert.False(t, doc.Valid(pos(0, 3)))
	assert.False(t, doc.Valid(pos(2, 0)))
	assert.Equal(t, pos(1, 1), doc.Clamp(pos(5, 9)))
	assert.Equal(t, pos(0, 0), doc.Clamp(pos(-1, -1)))
}
