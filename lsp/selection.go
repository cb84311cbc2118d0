package lsp

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/rangetype/debounce"
	"github.com/rlch/rangetype/typeat"
)

// Request handles methods outside the LSP specification.
func (s *Server) Request(ctx context.Context, method string, params any) (any, error) {
	switch method {
	case MethodDidChangeSelection:
		var p SelectionParams
		if err := remarshal(params, &p); err != nil {
			s.logger.Warn("Malformed selection params", zap.Error(err))

			return nil, err
		}

		return nil, s.DidChangeSelection(ctx, &p)
	}

	s.logger.Debug("Unhandled request", zap.String("method", method))

	return nil, nil //nolint:nilnil // unknown custom methods are ignored
}

// DidChangeSelection handles rangeType/didChangeSelection notifications.
//
// A dirty buffer no longer matches what GHCi loaded, so decorations are
// cleared straight away. Otherwise the query for the first selection is
// debounced; only the last of a burst of events reaches GHCi.
func (s *Server) DidChangeSelection(ctx context.Context, params *SelectionParams) error {
	uri := params.TextDocument.URI

	doc, ok := s.getDocument(uri)
	if !ok {
		s.logger.Debug("Selection in unknown document", zap.String("uri", string(uri)))

		return nil
	}

	if !s.handles(doc) {
		return nil
	}

	dirty := doc.Dirty
	if params.IsDirty != nil {
		dirty = *params.IsDirty
	}

	_, debouncer, _ := s.state()

	if dirty {
		debouncer.Cancel()
		s.publishDecorations(ctx, clearedDecorations(uri, doc.Version))

		return nil
	}

	if len(params.Selections) == 0 {
		return nil
	}

	selection := params.Selections[0]
	clean := params.IsDirty != nil

	debouncer.Trigger(func(gen uint64) {
		s.showType(debouncer, gen, uri, selection, clean)
	})

	return nil
}

// showType runs a debounced query and publishes its decorations. Results of a
// query that was superseded while GHCi was busy are dropped. When the client
// reported the buffer clean, the tracked dirty flag is not consulted again.
func (s *Server) showType(debouncer *debounce.Debouncer, gen uint64, uri protocol.DocumentURI, selection protocol.Range, clean bool) {
	ctx := context.Background()
	logger := s.logger.With(
		zap.String("request", ulid.Make().String()),
		zap.String("uri", string(uri)))

	doc, ok := s.getDocument(uri)
	if !ok {
		logger.Debug("Document closed before query")

		return
	}

	if (doc.Dirty && !clean) || !inDocument(doc, selection) {
		s.publishDecorations(ctx, clearedDecorations(uri, doc.Version))

		return
	}

	_, _, sessions := s.state()
	session := sessions.SessionFor(doc.Path)

	res, ok, err := typeat.Query(ctx, session, doc.Path, doc.Text, toDocumentRange(doc.Text, selection))

	if !debouncer.Current(gen) {
		logger.Debug("Dropping superseded result")

		return
	}

	switch {
	case err != nil:
		logger.Error("Type query failed", zap.Error(err))
		s.logMessage(ctx, protocol.MessageTypeError, "rangetype: "+err.Error())
		s.publishDecorations(ctx, clearedDecorations(uri, doc.Version))
	case !ok:
		logger.Debug("No type")
		s.publishDecorations(ctx, clearedDecorations(uri, doc.Version))
	default:
		logger.Debug("Type", zap.String("type", res.Type))
		s.publishDecorations(ctx, typeDecorations(doc, res))
	}
}

// inDocument reports whether both ends of r lie on existing lines.
func inDocument(doc Document, r protocol.Range) bool {
	lines := uint32(doc.Text.LineCount()) //nolint:gosec // G115: line counts are small

	return r.Start.Line < lines && r.End.Line < lines
}

// logMessage shows a message in the client's output log.
func (s *Server) logMessage(ctx context.Context, typ protocol.MessageType, message string) {
	if s.client == nil {
		return
	}

	err := s.client.LogMessage(ctx, &protocol.LogMessageParams{Type: typ, Message: message})
	if err != nil {
		s.logger.Warn("Failed to log message to client", zap.Error(err))
	}
}
