package typeat_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/rangetype/document"
	"github.com/rlch/rangetype/typeat"
)

func rng(sl, sc, el, ec int) document.Range {
	return document.Range{
		Start: document.Position{Line: sl, Column: sc},
		End:   document.Position{Line: el, Column: ec},
	}
}

func cursor(line, col int) document.Range {
	return rng(line, col, line, col)
}

func TestExpandRange(t *testing.T) {
	t.Parallel()

	doc := document.New(`import qualified Data.Map as Map
main = print (Map.insert k v m) >> go
  where go = x.y
`)

	tests := []struct {
		name   string
		in     document.Range
		want   document.Range
		wantOK bool
	}{
		{"cursor expands to word", cursor(1, 2), rng(1, 0, 1, 4), true},
		{"cursor at word end", cursor(1, 4), rng(1, 0, 1, 4), true},
		{"cursor on qualifier absorbs following segment", cursor(1, 15), rng(1, 14, 1, 24), true},
		{"cursor on name absorbs qualifier", cursor(1, 20), rng(1, 14, 1, 24), true},
		{"module name absorbs its qualifier", cursor(0, 23), rng(0, 17, 0, 25), true},
		{"explicit selection kept", rng(1, 25, 1, 26), rng(1, 25, 1, 26), true},
		{"selection followed by dot", rng(2, 13, 2, 14), rng(2, 13, 2, 16), true},
		{"cursor on whitespace", cursor(2, 0), document.Range{}, false},
		{"cursor on operator", cursor(1, 33), document.Range{}, false},
		{"out of document", cursor(9, 0), document.Range{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := typeat.ExpandRange(doc, tt.in)
			assert.Equal(t, tt.wantOK, ok)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExpandRange() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpandRange_DotWithoutWord(t *testing.T) {
	t.Parallel()

	// Composition and sections have dots with no identifier on the far side.
	doc := document.New("h = (.f) g")

	got, ok := typeat.ExpandRange(doc, cursor(0, 6))
	require.True(t, ok)
	assert.Equal(t, rng(0, 6, 0, 7), got)

	doc = document.New("k = (g.) 1")

	got, ok = typeat.ExpandRange(doc, cursor(0, 5))
	require.True(t, ok)
	assert.Equal(t, rng(0, 5, 0, 6), got)
}

func TestCommand(t *testing.T) {
	t.Parallel()

	got := typeat.Command("/work/src/Main.hs", rng(1, 14, 1, 24))
	assert.Equal(t, ":type-at /work/src/Main.hs 2 15 2 25", got)
}

func TestParseReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		lines  []string
		want   string
		wantOK bool
	}{
		{"single line", []string{" :: Int -> Int"}, "Int -> Int", true},
		{"multi line", []string{" :: (Ord k)", "   => k -> a -> Map k a -> Map k a"}, "(Ord k) => k -> a -> Map k a -> Map k a", true},
		{"blank lines dropped", []string{"", "  ", ":: Bool", ""}, "Bool", true},
		{"only first marker removed", []string{":: a :: b"}, "a :: b", true},
		{"empty", nil, "", false},
		{"whitespace only", []string{" ", "\t"}, "", false},
		{"no location info", []string{"<no location info>: error:", "    Couldn't guess that module name."}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := typeat.ParseReply(tt.lines)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeEvaluator struct {
	loadErr  error
	sendErr  error
	reply    []string
	loads    int
	commands []string
}

func (f *fakeEvaluator) EnsureLoaded(context.Context) error {
	f.loads++

	return f.loadErr
}

func (f *fakeEvaluator) SendCommand(_ context.Context, command string) ([]string, error) {
	f.commands = append(f.commands, command)

	return f.reply, f.sendErr
}

func TestQuery(t *testing.T) {
	t.Parallel()

	doc := document.New("main = putStrLn greeting")
	ev := &fakeEvaluator{reply: []string{" :: String -> IO ()"}}

	res, ok, err := typeat.Query(context.Background(), ev, "/p/Main.hs", doc, cursor(0, 10))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, typeat.Result{Range: rng(0, 7, 0, 15), Type: "String -> IO ()"}, res)
	assert.Equal(t, 1, ev.loads)
	assert.Equal(t, []string{":type-at /p/Main.hs 1 8 1 16"}, ev.commands)
}

func TestQuery_NoType(t *testing.T) {
	t.Parallel()

	doc := document.New("main = putStrLn greeting")

	ev := &fakeEvaluator{reply: []string{"<no location info>"}}
	_, ok, err := typeat.Query(context.Background(), ev, "/p/Main.hs", doc, cursor(0, 10))
	require.NoError(t, err)
	assert.False(t, ok)

	ev = &fakeEvaluator{}
	_, ok, err = typeat.Query(context.Background(), ev, "/p/Main.hs", doc, cursor(0, 10))
	require.NoError(t, err)
	assert.False(t, ok)

	// No word under the cursor: nothing is sent.
	ev = &fakeEvaluator{reply: []string{":: X"}}
	_, ok, err = typeat.Query(context.Background(), ev, "/p/Main.hs", doc, cursor(0, 5))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, ev.commands)
}

func TestQuery_Errors(t *testing.T) {
	t.Parallel()

	doc := document.New("x = 1")
	errBoom := errors.New("boom")

	_, _, err := typeat.Query(context.Background(), &fakeEvaluator{loadErr: errBoom}, "/p/X.hs", doc, cursor(0, 0))
	require.ErrorIs(t, err, errBoom)

	_, _, err = typeat.Query(context.Background(), &fakeEvaluator{sendErr: errBoom}, "/p/X.hs", doc, cursor(0, 0))
	require.ErrorIs(t, err, errBoom)
}
