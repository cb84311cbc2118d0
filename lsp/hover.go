package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/rangetype/document"
	"github.com/rlch/rangetype/typeat"
)

// Hover handles textDocument/hover requests.
//
// Hover never waits for GHCi to start: if the owning session has not loaded
// yet, a load is kicked off in the background and no hover is returned.
func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.logger.Debug("Hover",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok || doc.Dirty || !s.handles(doc) {
		return nil, nil //nolint:nilnil
	}

	if !inDocument(doc, protocol.Range{Start: params.Position, End: params.Position}) {
		return nil, nil //nolint:nilnil
	}

	_, _, sessions := s.state()
	session := sessions.SessionFor(doc.Path)

	if !session.Ready() {
		go s.warmUp(session, doc.Path)

		return nil, nil //nolint:nilnil
	}

	pos := doc.Text.FromUTF16(params.Position.Line, params.Position.Character)

	res, ok, err := typeat.Query(ctx, session, doc.Path, doc.Text, document.Range{Start: pos, End: pos})
	if err != nil {
		s.logger.Error("Hover query failed", zap.String("uri", string(doc.URI)), zap.Error(err))

		return nil, nil //nolint:nilnil
	}

	if !ok {
		return nil, nil //nolint:nilnil
	}

	rng := toProtocolRange(doc.Text, res.Range)

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: formatHover(doc.Text, res),
		},
		Range: &rng,
	}, nil
}

// warmUp loads a session so that later queries don't wait for GHCi.
func (s *Server) warmUp(session Session, path string) {
	if err := session.EnsureLoaded(context.Background()); err != nil {
		s.logger.Warn("Background load failed", zap.String("path", path), zap.Error(err))
	}
}
