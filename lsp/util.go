package lsp

import (
	"net/url"
	"strings"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/rlch/rangetype/document"
)

// URIToPath converts a document URI to a file system path.
func URIToPath(u protocol.DocumentURI) string {
	parsed, err := url.Parse(string(u))
	if err != nil {
		// Fallback: strip file:// prefix
		return strings.TrimPrefix(string(u), "file://")
	}

	if parsed.Scheme == uri.FileScheme {
		return parsed.Path
	}

	return string(u)
}

// PathToURI converts a file system path to a document URI.
func PathToURI(path string) protocol.DocumentURI {
	return uri.File(path)
}

// toDocumentRange converts an LSP range (UTF-16 columns) to a code-point
// range clamped to doc. Reversed selections are normalised.
func toDocumentRange(doc *document.Document, r protocol.Range) document.Range {
	start := doc.FromUTF16(r.Start.Line, r.Start.Character)
	end := doc.FromUTF16(r.End.Line, r.End.Character)

	if end.Before(start) {
		start, end = end, start
	}

	return document.Range{Start: start, End: end}
}

// toProtocolRange converts a code-point range back to LSP positions.
func toProtocolRange(doc *document.Document, r document.Range) protocol.Range {
	startLine, startChar := doc.ToUTF16(r.Start)
	endLine, endChar := doc.ToUTF16(r.End)

	return protocol.Range{
		Start: protocol.Position{Line: startLine, Character: startChar},
		End:   protocol.Position{Line: endLine, Character: endChar},
	}
}

// remarshal decodes a loosely typed value (as delivered for custom methods)
// into out.
func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, out)
}
