package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/rangetype/lsp"
)

// startServer runs the server on one end of a pipe and returns a client
// connection on the other. Notifications from the server are delivered on
// the returned channel.
func startServer(t *testing.T, opts ...lsp.Option) (jsonrpc2.Conn, <-chan jsonrpc2.Request) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serverSide, clientSide := net.Pipe()

	go func() { _ = run(ctx, zap.NewNop(), serverSide, serverSide, opts...) }()

	notifications := make(chan jsonrpc2.Request, 16)
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(clientSide))
	conn.Go(ctx, func(_ context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if _, ok := req.(*jsonrpc2.Notification); ok {
			notifications <- req
		}

		return reply(ctx, nil, nil)
	})

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
	})

	return conn, notifications
}

func TestRun_Initialize(t *testing.T) {
	t.Parallel()

	conn, _ := startServer(t)
	ctx := context.Background()

	var result protocol.InitializeResult

	_, err := conn.Call(ctx, protocol.MethodInitialize, &protocol.InitializeParams{}, &result)
	require.NoError(t, err)

	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "rangetype-lsp", result.ServerInfo.Name)
}

func TestRun_DirtySelectionClearsDecorations(t *testing.T) {
	t.Parallel()

	conn, notifications := startServer(t)
	ctx := context.Background()

	var result protocol.InitializeResult

	_, err := conn.Call(ctx, protocol.MethodInitialize, &protocol.InitializeParams{}, &result)
	require.NoError(t, err)

	uri := protocol.DocumentURI("file:///work/Main.hs")

	require.NoError(t, conn.Notify(ctx, protocol.MethodTextDocumentDidOpen, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: protocol.LanguageIdentifier("haskell"),
			Version:    1,
			Text:       "main = pure ()\n",
		},
	}))

	dirty := true
	require.NoError(t, conn.Notify(ctx, lsp.MethodDidChangeSelection, &lsp.SelectionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Selections:   []protocol.Range{{}},
		IsDirty:      &dirty,
	}))

	select {
	case req := <-notifications:
		assert.Equal(t, lsp.MethodSetDecorations, req.Method())

		var params lsp.DecorationsParams
		require.NoError(t, json.Unmarshal(req.Params(), &params))
		assert.Equal(t, uri, params.URI)
		assert.Empty(t, params.Current)
		assert.Empty(t, params.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no decorations received")
	}
}

// loadingSession never finishes loading until release is closed.
type loadingSession struct {
	release chan struct{}
}

func (s *loadingSession) EnsureLoaded(ctx context.Context) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *loadingSession) SendCommand(context.Context, string) ([]string, error) {
	return []string{" :: IO ()"}, nil
}

func (s *loadingSession) Ready() bool {
	select {
	case <-s.release:
		return true
	default:
		return false
	}
}

type loadingSessions struct {
	session *loadingSession
}

func (p loadingSessions) SessionFor(string) lsp.Session   { return p.session }
func (p loadingSessions) Invalidate(string)               {}
func (p loadingSessions) ReloadAll(context.Context) error { return nil }
func (p loadingSessions) CloseAll(context.Context) error  { return nil }

func TestRun_KeepsServingWhileTypeAtLoads(t *testing.T) {
	t.Parallel()

	session := &loadingSession{release: make(chan struct{})}
	conn, notifications := startServer(t, lsp.WithSessions(loadingSessions{session: session}))
	ctx := context.Background()

	var result protocol.InitializeResult

	_, err := conn.Call(ctx, protocol.MethodInitialize, &protocol.InitializeParams{}, &result)
	require.NoError(t, err)

	uri := protocol.DocumentURI("file:///work/Main.hs")

	require.NoError(t, conn.Notify(ctx, protocol.MethodTextDocumentDidOpen, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: protocol.LanguageIdentifier("haskell"),
			Version:    1,
			Text:       "main = pure ()\n",
		},
	}))

	typeAt := make(chan *lsp.TypeAtResult, 1)
	typeAtErr := make(chan error, 1)

	go func() {
		var res *lsp.TypeAtResult

		_, err := conn.Call(ctx, protocol.MethodWorkspaceExecuteCommand, &protocol.ExecuteCommandParams{
			Command:   lsp.CommandTypeAt,
			Arguments: []any{string(uri), protocol.Range{}},
		}, &res)
		typeAtErr <- err
		typeAt <- res
	}()

	// Other requests are answered while GHCi is still loading.
	hoverCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var hover *protocol.Hover

	_, err = conn.Call(hoverCtx, protocol.MethodTextDocumentHover, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///work/Other.hs"},
		},
	}, &hover)
	require.NoError(t, err)
	assert.Nil(t, hover)

	dirty := true
	require.NoError(t, conn.Notify(ctx, lsp.MethodDidChangeSelection, &lsp.SelectionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Selections:   []protocol.Range{{}},
		IsDirty:      &dirty,
	}))

	select {
	case req := <-notifications:
		assert.Equal(t, lsp.MethodSetDecorations, req.Method())
	case <-time.After(time.Second):
		t.Fatal("selection not handled while typeAt was loading")
	}

	select {
	case <-typeAt:
		t.Fatal("typeAt answered before GHCi loaded")
	default:
	}

	close(session.release)

	select {
	case err := <-typeAtErr:
		require.NoError(t, err)

		res := <-typeAt
		require.NotNil(t, res)
		assert.Equal(t, "IO ()", res.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("typeAt never answered")
	}
}
