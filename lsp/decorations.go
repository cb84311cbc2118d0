package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/rangetype"
	"github.com/rlch/rangetype/document"
	"github.com/rlch/rangetype/typeat"
)

// Custom methods and commands understood by the server.
const (
	// MethodDidChangeSelection is sent by the client when the selection of a
	// text editor changes.
	MethodDidChangeSelection = "rangeType/didChangeSelection"

	// MethodSetDecorations is sent by the server to replace both decoration
	// sets of a document.
	MethodSetDecorations = "rangeType/setDecorations"

	// CommandReload reloads every GHCi session.
	CommandReload = "rangeType.reload"

	// CommandTypeAt returns the type at [uri, range].
	CommandTypeAt = "rangeType.typeAt"
)

// Notifier sends notifications the protocol package has no method for.
// jsonrpc2.Conn satisfies it.
type Notifier interface {
	Notify(ctx context.Context, method string, params any) error
}

// SelectionParams is the payload of rangeType/didChangeSelection.
type SelectionParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Selections   []protocol.Range                `json:"selections"`

	// IsDirty overrides the dirty flag tracked from didChange/didSave.
	IsDirty *bool `json:"isDirty,omitempty"`
}

// AttachmentOptions describes text rendered after a decorated range.
type AttachmentOptions struct {
	ContentText string `json:"contentText,omitempty"`
	Color       string `json:"color,omitempty"`
	Margin      string `json:"margin,omitempty"`
}

// DecorationOptions is one decorated range.
type DecorationOptions struct {
	Range        protocol.Range     `json:"range"`
	HoverMessage string             `json:"hoverMessage,omitempty"`
	After        *AttachmentOptions `json:"after,omitempty"`
}

// DecorationsParams is the payload of rangeType/setDecorations. Empty slices
// clear the corresponding decoration.
type DecorationsParams struct {
	URI     protocol.DocumentURI `json:"uri"`
	Version int32                `json:"version"`
	Current []DecorationOptions  `json:"current"`
	Type    []DecorationOptions  `json:"type"`
}

// DecorationStyle is the static style of a decoration type.
type DecorationStyle struct {
	BorderStyle   string             `json:"borderStyle,omitempty"`
	BorderColor   string             `json:"borderColor,omitempty"`
	BorderWidth   string             `json:"borderWidth,omitempty"`
	After         *AttachmentOptions `json:"after,omitempty"`
	RangeBehavior string             `json:"rangeBehavior,omitempty"`
}

// DecorationTypes are advertised once, in the initialize result.
type DecorationTypes struct {
	Current DecorationStyle `json:"current"`
	Type    DecorationStyle `json:"type"`
}

// ExperimentalCapabilities is sent as capabilities.experimental.
type ExperimentalCapabilities struct {
	RangeType RangeTypeCapabilities `json:"rangeType"`
}

// RangeTypeCapabilities tells the client which custom methods to use.
type RangeTypeCapabilities struct {
	DecorationTypes   DecorationTypes `json:"decorationTypes"`
	SelectionMethod   string          `json:"selectionMethod"`
	DecorationsMethod string          `json:"decorationsMethod"`
}

// newDecorationTypes builds the decoration styles from config.
func newDecorationTypes(cfg rangetype.DecorationConfig) DecorationTypes {
	return DecorationTypes{
		Current: DecorationStyle{
			BorderStyle: "solid",
			BorderColor: cfg.BorderColor,
			BorderWidth: cfg.BorderWidth,
		},
		Type: DecorationStyle{
			After: &AttachmentOptions{
				Color:  cfg.TypeColor,
				Margin: cfg.TypeMargin,
			},
			RangeBehavior: "ClosedClosed",
		},
	}
}

// clearedDecorations removes both decorations from a document.
func clearedDecorations(uri protocol.DocumentURI, version int32) *DecorationsParams {
	return &DecorationsParams{
		URI:     uri,
		Version: version,
		Current: []DecorationOptions{},
		Type:    []DecorationOptions{},
	}
}

// typeDecorations underlines the queried range and appends ":: type" to its
// first line.
func typeDecorations(doc Document, res typeat.Result) *DecorationsParams {
	line := doc.Text.LineRange(res.Range.Start.Line)

	return &DecorationsParams{
		URI:     doc.URI,
		Version: doc.Version,
		Current: []DecorationOptions{{
			Range:        toProtocolRange(doc.Text, res.Range),
			HoverMessage: res.Type,
		}},
		Type: []DecorationOptions{{
			Range: toProtocolRange(doc.Text, line),
			After: &AttachmentOptions{ContentText: ":: " + res.Type},
		}},
	}
}

// publishDecorations sends decorations to the client.
func (s *Server) publishDecorations(ctx context.Context, params *DecorationsParams) {
	if s.notifier == nil {
		return
	}

	err := s.notifier.Notify(ctx, MethodSetDecorations, params)
	if err != nil {
		s.logger.Error("Failed to publish decorations",
			zap.String("uri", string(params.URI)),
			zap.Error(err))
	}
}

// formatHover renders the hover markdown for an expression and its type.
func formatHover(doc *document.Document, res typeat.Result) string {
	return "```haskell\n" + doc.Text(res.Range) + " :: " + res.Type + "\n```"
}
