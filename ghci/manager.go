package ghci

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ManagerOptions configures how a Manager creates sessions.
type ManagerOptions struct {
	// Command overrides project detection when non-empty.
	Command []string

	// Env is appended to the environment of every GHCi process.
	Env []string

	StartupTimeout time.Duration
	CommandTimeout time.Duration
}

// Manager owns one Session per project root. Files outside any project get a
// session of their own, keyed by the file path.
type Manager struct {
	logger *zap.Logger
	opts   ManagerOptions

	mu       sync.Mutex
	sessions map[string]*Session
	// owners maps a source file to the key of its session.
	owners map[string]string
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger, opts ManagerOptions) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		logger:   logger,
		opts:     opts,
		sessions: make(map[string]*Session),
		owners:   make(map[string]string),
	}
}

// SessionFor returns the session responsible for path, creating it on first
// use, and makes sure path is one of its targets. Nothing is started here;
// the first EnsureLoaded does that.
func (m *Manager) SessionFor(path string) *Session {
	path = filepath.Clean(path)
	project := FindProject(path)

	key := project.Root
	if project.Kind == KindBare {
		key = path
	}

	m.mu.Lock()

	s, ok := m.sessions[key]
	if !ok {
		command := m.opts.Command
		if len(command) == 0 {
			command = project.DefaultCommand()
		}

		s = NewSession(key, SessionOptions{
			Process: Options{
				Command: command,
				Dir:     project.Root,
				Env:     m.opts.Env,
				Logger:  m.logger,
			},
			StartupTimeout: m.opts.StartupTimeout,
			CommandTimeout: m.opts.CommandTimeout,
		})
		m.sessions[key] = s

		m.logger.Info("New GHCi session",
			zap.String("key", key),
			zap.Stringer("kind", project.Kind),
			zap.Strings("command", command))
	}

	m.owners[path] = key
	m.mu.Unlock()

	s.AddTarget(path)

	return s
}

// Lookup returns the session that owns path, if any.
func (m *Manager) Lookup(path string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.owners[filepath.Clean(path)]
	if !ok {
		return nil, false
	}

	s, ok := m.sessions[key]

	return s, ok
}

// Invalidate marks the session owning path as stale, typically after the
// file was saved. The next query reloads.
func (m *Manager) Invalidate(path string) {
	if s, ok := m.Lookup(path); ok {
		s.Invalidate()
	}
}

// Sessions returns all sessions ordered by key.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out
}

// ReloadAll reloads every session and waits for the loads.
func (m *Manager) ReloadAll(ctx context.Context) error {
	sessions := m.Sessions()
	loads := make([]*Load, len(sessions))

	for i, s := range sessions {
		loads[i] = s.Reload()
	}

	var errs []error

	for i, l := range loads {
		if _, err := l.Wait(ctx); err != nil {
			m.logger.Error("Reload failed", zap.String("session", sessions[i].Key), zap.Error(err))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// CloseAll stops every session and forgets them.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.owners = make(map[string]string)
	m.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, s := range sessions {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := s.Close(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	return errors.Join(errs...)
}
