package lsp

import (
	"context"
	"errors"
	"fmt"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/rangetype/typeat"
)

// Errors returned by ExecuteCommand.
var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidArguments = errors.New("invalid command arguments")
)

// TypeAtResult is returned by the rangeType.typeAt command.
type TypeAtResult struct {
	Range protocol.Range `json:"range"`
	Type  string         `json:"type"`
}

// ExecuteCommand handles workspace/executeCommand.
func (s *Server) ExecuteCommand(ctx context.Context, params *protocol.ExecuteCommandParams) (any, error) {
	s.logger.Info("ExecuteCommand", zap.String("command", params.Command))

	switch params.Command {
	case CommandReload:
		s.reloadAll()

		return nil, nil //nolint:nilnil // the reload runs in the background
	case CommandTypeAt:
		return s.typeAtCommand(ctx, params.Arguments)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, params.Command)
	}
}

// reloadAll reloads every session without blocking the connection.
func (s *Server) reloadAll() {
	_, _, sessions := s.state()

	go func() {
		if err := sessions.ReloadAll(context.Background()); err != nil {
			s.logger.Error("Reload failed", zap.Error(err))
			s.logMessage(context.Background(), protocol.MessageTypeError, "rangetype: "+err.Error())

			return
		}

		s.logger.Info("Reloaded all sessions")
	}()
}

// typeAtCommand answers rangeType.typeAt [uri, range]. It waits for GHCi to
// load if needed. A nil result means no type.
func (s *Server) typeAtCommand(ctx context.Context, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%w: want [uri, range], got %d arguments", ErrInvalidArguments, len(args))
	}

	raw, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: uri must be a string, got %T", ErrInvalidArguments, args[0])
	}

	var selection protocol.Range
	if err := remarshal(args[1], &selection); err != nil {
		return nil, fmt.Errorf("%w: range: %w", ErrInvalidArguments, err)
	}

	doc, ok := s.getDocument(protocol.DocumentURI(raw))
	if !ok || !inDocument(doc, selection) {
		return nil, nil //nolint:nilnil
	}

	_, _, sessions := s.state()
	session := sessions.SessionFor(doc.Path)

	res, ok, err := typeat.Query(ctx, session, doc.Path, doc.Text, toDocumentRange(doc.Text, selection))
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, nil //nolint:nilnil
	}

	return &TypeAtResult{
		Range: toProtocolRange(doc.Text, res.Range),
		Type:  res.Type,
	}, nil
}
