// Package typeat asks GHCi for the type of the expression covered by a text
// range, using the :type-at command that GHCi provides when +c is set.
package typeat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rlch/rangetype/document"
)

// noLocationInfo marks a :type-at reply for a span GHCi knows nothing about.
const noLocationInfo = "no location info"

// Evaluator is the part of a GHCi session the query needs.
type Evaluator interface {
	// EnsureLoaded starts loading when nothing is loading yet and waits for
	// the load to finish.
	EnsureLoaded(ctx context.Context) error

	// SendCommand sends one command and returns its output lines.
	SendCommand(ctx context.Context, command string) ([]string, error)
}

// Result is the type of the expression at Range.
type Result struct {
	// Range is the expanded range that was sent to GHCi.
	Range document.Range
	// Type is the formatted type, without the leading "::".
	Type string
}

// Query loads the session, expands r and asks GHCi for the type at the
// expanded range. ok is false when no type is available. Errors from the
// session are returned unchanged.
func Query(ctx context.Context, ev Evaluator, path string, doc *document.Document, r document.Range) (Result, bool, error) {
	if err := ev.EnsureLoaded(ctx); err != nil {
		return Result{}, false, err
	}

	expanded, ok := ExpandRange(doc, r)
	if !ok {
		return Result{}, false, nil
	}

	lines, err := ev.SendCommand(ctx, Command(path, expanded))
	if err != nil {
		return Result{}, false, fmt.Errorf("type-at %s: %w", path, err)
	}

	typ, ok := ParseReply(lines)
	if !ok {
		return Result{}, false, nil
	}

	return Result{Range: expanded, Type: typ}, true, nil
}

// ExpandRange widens r to the expression GHCi should be asked about.
//
// A zero-width range becomes the word under the cursor. Then, if the range
// is directly preceded by '.', it grows backwards over the word before the
// dot; if it is directly followed by '.', it grows forwards over the word
// after it. Each side absorbs at most one segment: in "Data.Map.insert" a
// cursor on "Map" yields the whole name, a cursor on "insert" yields
// "Map.insert".
//
// ok is false when r is zero-width and no word touches it.
func ExpandRange(doc *document.Document, r document.Range) (document.Range, bool) {
	if !doc.Valid(r.Start) || !doc.Valid(r.End) {
		return document.Range{}, false
	}

	if r.Empty() {
		word, ok := doc.WordRangeAt(r.Start)
		if !ok {
			return document.Range{}, false
		}

		r = word
	}

	before := document.Position{Line: r.Start.Line, Column: r.Start.Column - 1}
	if c, ok := doc.RuneAt(before); ok && c == '.' {
		prev := document.Position{Line: r.Start.Line, Column: r.Start.Column - 2}
		if word, ok := wordEndingAt(doc, prev); ok {
			r.Start = word.Start
		}
	}

	if c, ok := doc.RuneAt(r.End); ok && c == '.' {
		next := document.Position{Line: r.End.Line, Column: r.End.Column + 2}
		if word, ok := wordStartingBefore(doc, next); ok {
			r.End = word.End
		}
	}

	return r, true
}

// wordEndingAt returns the word containing the character at pos.
func wordEndingAt(doc *document.Document, pos document.Position) (document.Range, bool) {
	c, ok := doc.RuneAt(pos)
	if !ok || !document.IsWordRune(c) {
		return document.Range{}, false
	}

	return doc.WordRangeAt(pos)
}

// wordStartingBefore returns the word containing the character just before pos.
func wordStartingBefore(doc *document.Document, pos document.Position) (document.Range, bool) {
	prev := document.Position{Line: pos.Line, Column: pos.Column - 1}

	c, ok := doc.RuneAt(prev)
	if !ok || !document.IsWordRune(c) {
		return document.Range{}, false
	}

	return doc.WordRangeAt(prev)
}

// Command formats the :type-at request for r in the file at path.
// GHCi lines and columns are 1-based.
func Command(path string, r document.Range) string {
	return fmt.Sprintf(":type-at %s %d %d %d %d",
		path,
		r.Start.Line+1, r.Start.Column+1,
		r.End.Line+1, r.End.Column+1)
}

// ParseReply turns the output of :type-at into a single-line type.
// ok is false for an empty reply or one reporting no location info.
func ParseReply(lines []string) (string, bool) {
	kept := make([]string, 0, len(lines))

	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}

	if len(kept) == 0 {
		return "", false
	}

	if strings.Contains(kept[0], noLocationInfo) {
		return "", false
	}

	parts := make([]string, len(kept))
	for i, l := range kept {
		parts[i] = strings.Replace(strings.TrimSpace(l), ":: ", "", 1)
	}

	return strings.Join(parts, " "), true
}
