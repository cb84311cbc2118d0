// Package lsp implements a Language Server Protocol server that shows the
// GHCi type of the selected Haskell expression as editor decorations.
package lsp

import (
	"context"
	"sync"
	"time"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/rangetype"
	"github.com/rlch/rangetype/debounce"
	"github.com/rlch/rangetype/document"
	"github.com/rlch/rangetype/ghci"
	"github.com/rlch/rangetype/typeat"
)

// shutdownTimeout bounds closing every GHCi session on shutdown.
const shutdownTimeout = 10 * time.Second

// Session is the part of a GHCi session the server needs.
type Session interface {
	typeat.Evaluator

	// Ready reports whether a load has finished, so a query won't block on
	// GHCi starting up.
	Ready() bool
}

// SessionProvider hands out the session responsible for a file.
type SessionProvider interface {
	SessionFor(path string) Session
	Invalidate(path string)
	ReloadAll(ctx context.Context) error
	CloseAll(ctx context.Context) error
}

// managerSessions adapts a ghci.Manager to SessionProvider.
type managerSessions struct {
	*ghci.Manager
}

func (m managerSessions) SessionFor(path string) Session {
	return m.Manager.SessionFor(path)
}

var _ protocol.Server = (*Server)(nil)

// Server implements the LSP Server interface for rangetype.
type Server struct {
	client   protocol.Client
	notifier Notifier
	logger   *zap.Logger

	// Document state
	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*Document

	// Configuration, replaced by Initialize unless set with WithConfig.
	cfgMu        sync.RWMutex
	config       *rangetype.Config
	matcher      *rangetype.Matcher
	sessions     SessionProvider
	fixedConfig  bool
	fixedSession bool

	// debouncer holds the single pending selection query.
	debouncer *debounce.Debouncer

	// Server state
	initialized   bool
	shutdown      bool
	workspaceRoot string
}

// Document represents an open document in the server.
type Document struct {
	URI        protocol.DocumentURI
	Path       string
	LanguageID string
	Version    int32
	Text       *document.Document

	// Dirty is set by didChange and cleared by didOpen and didSave.
	Dirty bool
}

// Option configures a Server.
type Option func(*Server)

// WithConfig uses cfg instead of loading .rangetype.yaml on initialize.
func WithConfig(cfg *rangetype.Config) Option {
	return func(s *Server) {
		s.config = cfg
		s.fixedConfig = true
	}
}

// WithSessions uses p instead of a ghci.Manager.
func WithSessions(p SessionProvider) Option {
	return func(s *Server) {
		s.sessions = p
		s.fixedSession = true
	}
}

// NewServer creates a new LSP server. notifier carries the custom
// decoration notifications and is usually the jsonrpc2 connection.
func NewServer(client protocol.Client, notifier Notifier, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		client:    client,
		notifier:  notifier,
		logger:    logger,
		documents: make(map[protocol.DocumentURI]*Document),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.config == nil {
		s.config = rangetype.DefaultConfig()
	}

	s.configure(s.config)

	return s
}

// configure applies cfg: the document filter, the debounce delay and, unless
// sessions were injected, a fresh session manager.
func (s *Server) configure(cfg *rangetype.Config) {
	matcher, err := rangetype.CompileMatch(cfg.Match)
	if err != nil {
		s.logger.Error("Invalid match expression, using default",
			zap.String("match", cfg.Match),
			zap.Error(err))

		matcher, _ = rangetype.CompileMatch("")
	}

	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	if s.debouncer != nil {
		s.debouncer.Cancel()
	}

	s.config = cfg
	s.matcher = matcher
	s.debouncer = debounce.New(cfg.Debounce)

	if !s.fixedSession {
		s.sessions = managerSessions{ghci.NewManager(s.logger, ghci.ManagerOptions{
			Command:        cfg.GHCi.Command,
			Env:            cfg.GHCi.Env,
			StartupTimeout: cfg.GHCi.StartupTimeout,
			CommandTimeout: cfg.GHCi.CommandTimeout,
		})}
	}
}

// Config returns the configuration in effect.
func (s *Server) Config() *rangetype.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()

	return s.config
}

func (s *Server) state() (*rangetype.Matcher, *debounce.Debouncer, SessionProvider) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()

	return s.matcher, s.debouncer, s.sessions
}

// Initialize handles the initialize request.
func (s *Server) Initialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.logger.Info("Initialize", zap.String("rootURI", string(params.RootURI)))

	// Extract workspace root from params
	if params.RootURI != "" {
		s.workspaceRoot = URIToPath(params.RootURI)
		s.logger.Info("Workspace root", zap.String("root", s.workspaceRoot))
	} else if params.RootPath != "" {
		s.workspaceRoot = params.RootPath
		s.logger.Info("Workspace root (from RootPath)", zap.String("root", s.workspaceRoot))
	}

	if !s.fixedConfig && s.workspaceRoot != "" {
		cfg, err := rangetype.LoadConfigOrDefault(s.workspaceRoot)
		if err != nil {
			s.logger.Error("Failed to load config, using defaults", zap.Error(err))

			cfg = rangetype.DefaultConfig()
		}

		s.configure(cfg)
	}

	cfg := s.Config()
	s.logger.Info("Configured",
		zap.Duration("debounce", cfg.Debounce),
		zap.String("match", cfg.Match),
		zap.Strings("command", cfg.GHCi.Command))

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			// Full document sync - client sends entire content on change
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save:      &protocol.SaveOptions{IncludeText: false},
			},
			// Type of the hovered expression
			HoverProvider: true,
			ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
				Commands: []string{CommandReload, CommandTypeAt},
			},
			Experimental: ExperimentalCapabilities{
				RangeType: RangeTypeCapabilities{
					DecorationTypes:   newDecorationTypes(cfg.Decorations),
					SelectionMethod:   MethodDidChangeSelection,
					DecorationsMethod: MethodSetDecorations,
				},
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "rangetype-lsp",
			Version: "0.1.0",
		},
	}, nil
}

// Initialized handles the initialized notification.
func (s *Server) Initialized(_ context.Context, _ *protocol.InitializedParams) error {
	s.logger.Info("Initialized")
	s.initialized = true

	return nil
}

// Shutdown handles the shutdown request. Every GHCi session is closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutdown")
	s.shutdown = true

	_, debouncer, sessions := s.state()
	debouncer.Cancel()

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := sessions.CloseAll(ctx); err != nil {
		s.logger.Error("Failed to close GHCi sessions", zap.Error(err))
	}

	return nil
}

// Exit handles the exit notification.
func (s *Server) Exit(_ context.Context) error {
	s.logger.Info("Exit")
	// The main loop should handle exiting after this
	return nil
}

// DidOpen handles textDocument/didOpen notifications.
func (s *Server) DidOpen(_ context.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.logger.Info("DidOpen",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.String("languageId", string(params.TextDocument.LanguageID)))

	doc := &Document{
		URI:        params.TextDocument.URI,
		Path:       URIToPath(params.TextDocument.URI),
		LanguageID: string(params.TextDocument.LanguageID),
		Version:    params.TextDocument.Version,
		Text:       document.New(params.TextDocument.Text),
	}

	s.mu.Lock()
	s.documents[params.TextDocument.URI] = doc
	s.mu.Unlock()

	if s.handles(*doc) {
		// Register the file with its session; GHCi starts on the first query.
		_, _, sessions := s.state()
		sessions.SessionFor(doc.Path)
	}

	return nil
}

// DidChange handles textDocument/didChange notifications.
func (s *Server) DidChange(_ context.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.logger.Debug("DidChange",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int32("version", params.TextDocument.Version))

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[params.TextDocument.URI]
	if !ok {
		s.logger.Warn("DidChange for unknown document", zap.String("uri", string(params.TextDocument.URI)))

		return nil
	}

	// Full sync - take the last content change (should only be one with full sync)
	if len(params.ContentChanges) > 0 {
		doc.Text = document.New(params.ContentChanges[len(params.ContentChanges)-1].Text)
		doc.Version = params.TextDocument.Version
		doc.Dirty = true
	}

	return nil
}

// DidClose handles textDocument/didClose notifications.
func (s *Server) DidClose(_ context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.logger.Info("DidClose", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, params.TextDocument.URI)

	return nil
}

// DidSave handles textDocument/didSave notifications. The file on disk now
// matches the buffer, so the owning session is reloaded on its next query.
func (s *Server) DidSave(_ context.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.logger.Info("DidSave", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()

	doc, ok := s.documents[params.TextDocument.URI]
	if !ok {
		s.mu.Unlock()

		return nil
	}

	if params.Text != "" {
		doc.Text = document.New(params.Text)
	}

	doc.Dirty = false
	path := doc.Path

	s.mu.Unlock()

	_, _, sessions := s.state()
	sessions.Invalidate(path)

	return nil
}

// getDocument returns a copy of a document by URI (read-locked). The copy
// shares the immutable text but not the mutable fields.
func (s *Server) getDocument(uri protocol.DocumentURI) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[uri]
	if !ok {
		return Document{}, false
	}

	return *doc, true
}

// handles reports whether doc passes the configured match expression.
func (s *Server) handles(doc Document) bool {
	matcher, _, _ := s.state()

	ok, err := matcher.Match(doc.LanguageID, doc.Path)
	if err != nil {
		s.logger.Warn("Match failed", zap.String("uri", string(doc.URI)), zap.Error(err))

		return false
	}

	return ok
}
