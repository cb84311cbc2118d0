// Package document is a line-indexed view of source text with the position
// arithmetic needed to talk to both editors and GHCi.
//
// Positions are 0-based lines and 0-based code-point columns. Editors speaking
// LSP count columns in UTF-16 units; FromUTF16 and ToUTF16 convert between the
// two. GHCi counts code points, so Position maps onto it by adding one.
package document

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

// Position is a 0-based line and code-point column.
type Position struct {
	Line   int
	Column int
}

// Before reports whether p comes strictly before q.
func (p Position) Before(q Position) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Column < q.Column)
}

// Range is a half-open span of text.
type Range struct {
	Start Position
	End   Position
}

// Empty reports whether the range is zero-width.
func (r Range) Empty() bool {
	return r.Start == r.End
}

// Document holds the lines of a text buffer.
type Document struct {
	lines [][]rune
}

// New splits text into lines. Both "\n" and "\r\n" terminate a line.
func New(text string) *Document {
	raw := strings.Split(text, "\n")
	lines := make([][]rune, len(raw))

	for i, l := range raw {
		lines[i] = []rune(strings.TrimSuffix(l, "\r"))
	}

	return &Document{lines: lines}
}

// LineCount returns the number of lines, at least one.
func (d *Document) LineCount() int {
	return len(d.lines)
}

// Line returns the text of line i, or "" when out of range.
func (d *Document) Line(i int) string {
	if i < 0 || i >= len(d.lines) {
		return ""
	}

	return string(d.lines[i])
}

// Valid reports whether pos lies inside the document. A column equal to the
// line length (end of line) is valid.
func (d *Document) Valid(pos Position) bool {
	return pos.Line >= 0 && pos.Line < len(d.lines) &&
		pos.Column >= 0 && pos.Column <= len(d.lines[pos.Line])
}

// Clamp moves pos to the nearest valid position.
func (d *Document) Clamp(pos Position) Position {
	pos.Line = min(max(pos.Line, 0), len(d.lines)-1)
	pos.Column = min(max(pos.Column, 0), len(d.lines[pos.Line]))

	return pos
}

// RuneAt returns the character at pos. ok is false past the end of the line.
func (d *Document) RuneAt(pos Position) (rune, bool) {
	if pos.Line < 0 || pos.Line >= len(d.lines) {
		return 0, false
	}

	line := d.lines[pos.Line]
	if pos.Column < 0 || pos.Column >= len(line) {
		return 0, false
	}

	return line[pos.Column], true
}

// Text returns the text covered by r. Lines are joined with "\n".
func (d *Document) Text(r Range) string {
	start, end := d.Clamp(r.Start), d.Clamp(r.End)
	if end.Before(start) {
		start, end = end, start
	}

	if start.Line == end.Line {
		return string(d.lines[start.Line][start.Column:end.Column])
	}

	var b strings.Builder

	b.WriteString(string(d.lines[start.Line][start.Column:]))

	for i := start.Line + 1; i < end.Line; i++ {
		b.WriteByte('\n')
		b.WriteString(string(d.lines[i]))
	}

	b.WriteByte('\n')
	b.WriteString(string(d.lines[end.Line][:end.Column]))

	return b.String()
}

// LineRange returns the range of the whole of line i.
func (d *Document) LineRange(i int) Range {
	i = min(max(i, 0), len(d.lines)-1)

	return Range{
		Start: Position{Line: i},
		End:   Position{Line: i, Column: len(d.lines[i])},
	}
}

// IsWordRune reports whether r can be part of a Haskell identifier.
func IsWordRune(r rune) bool {
	return r == '_' || r == '\'' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// WordRangeAt returns the identifier touching pos. A position just past the
// last character of a word still belongs to it. ok is false when no word
// touches pos.
func (d *Document) WordRangeAt(pos Position) (Range, bool) {
	if !d.Valid(pos) {
		return Range{}, false
	}

	line := d.lines[pos.Line]

	start := pos.Column
	for start > 0 && IsWordRune(line[start-1]) {
		start--
	}

	end := pos.Column
	for end < len(line) && IsWordRune(line[end]) {
		end++
	}

	if start == end {
		return Range{}, false
	}

	return Range{
		Start: Position{Line: pos.Line, Column: start},
		End:   Position{Line: pos.Line, Column: end},
	}, true
}

// FromUTF16 converts an LSP line and UTF-16 offset to a Position. Offsets past
// the end of the line clamp to the line end; an offset inside a surrogate pair
// rounds down to the pair's code point.
func (d *Document) FromUTF16(line, character uint32) Position {
	l := int(line)
	if l >= len(d.lines) {
		l = len(d.lines) - 1

		return Position{Line: l, Column: len(d.lines[l])}
	}

	units := 0

	for col, r := range d.lines[l] {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}

		if units+w > int(character) {
			return Position{Line: l, Column: col}
		}

		units += w
	}

	return Position{Line: l, Column: len(d.lines[l])}
}

// ToUTF16 converts a Position to an LSP line and UTF-16 offset.
func (d *Document) ToUTF16(pos Position) (line, character uint32) {
	pos = d.Clamp(pos)
	units := 0

	for _, r := range d.lines[pos.Line][:pos.Column] {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}

		units += w
	}

	return uint32(pos.Line), uint32(units) //nolint:gosec // G115: line and column counts are small
}
