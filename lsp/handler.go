package lsp

import (
	"context"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// Handler returns the jsonrpc2 handler serving s.
//
// Requests that can wait on GHCi run on their own goroutine and reply when
// they finish, so the connection keeps reading while they are in flight.
// Everything else is handled in arrival order.
func Handler(s *Server) jsonrpc2.Handler {
	inner := protocol.ServerHandler(s, nil)

	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if !waitsOnSession(req.Method()) {
			return inner(ctx, reply, req)
		}

		go func() {
			if err := inner(ctx, reply, req); err != nil {
				s.logger.Warn("Request failed", zap.String("method", req.Method()), zap.Error(err))
			}
		}()

		return nil
	}
}

// waitsOnSession reports whether method may block on a GHCi load or command.
func waitsOnSession(method string) bool {
	switch method {
	case protocol.MethodTextDocumentHover, protocol.MethodWorkspaceExecuteCommand:
		return true
	default:
		return false
	}
}
