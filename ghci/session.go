package ghci

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LoadResult is the outcome of a :load.
type LoadResult struct {
	// OK is true when GHCi reported "Ok, ..." for the load.
	OK bool
	// Summary is GHCi's final "Ok, ..." or "Failed, ..." line.
	Summary string
	// Output holds every line GHCi printed for the load.
	Output []string
}

// Load is a module load that is in flight or finished.
type Load struct {
	done   chan struct{}
	result LoadResult
	err    error
}

func newLoad() *Load {
	return &Load{done: make(chan struct{})}
}

func (l *Load) finish(result LoadResult, err error) {
	l.result = result
	l.err = err
	close(l.done)
}

// Done is closed when the load has finished.
func (l *Load) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the load finishes or ctx ends.
func (l *Load) Wait(ctx context.Context) (LoadResult, error) {
	select {
	case <-l.done:
		return l.result, l.err
	case <-ctx.Done():
		return LoadResult{}, ctx.Err()
	}
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// Process options used whenever GHCi has to be (re)started.
	Process Options

	// StartupTimeout bounds starting GHCi plus one load. Zero means no limit.
	StartupTimeout time.Duration

	// CommandTimeout bounds each SendCommand. Zero means no limit.
	CommandTimeout time.Duration
}

// Session is a GHCi process together with the files it should have loaded.
//
// The process is started lazily by the first load and restarted by the next
// load if it has died.
type Session struct {
	// Key identifies the session in a Manager (project root or bare file).
	Key string

	opts   SessionOptions
	logger *zap.Logger

	// startMu serialises process starts without holding mu.
	startMu sync.Mutex

	mu      sync.Mutex
	proc    *Process
	targets []string
	loading *Load
	closed  bool
}

// NewSession creates a session. Nothing is started until the first load.
func NewSession(key string, opts SessionOptions) *Session {
	logger := opts.Process.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	opts.Process.Logger = logger

	return &Session{
		Key:    key,
		opts:   opts,
		logger: logger.With(zap.String("session", key)),
	}
}

// AddTarget adds a source file to the set loaded by the next Reload. Adding a
// new file drops the current load so that the next EnsureLoaded includes it.
// It reports whether the file was new.
func (s *Session) AddTarget(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.targets, path) {
		return false
	}

	s.targets = append(s.targets, path)
	s.loading = nil

	return true
}

// Targets returns the files the session loads.
func (s *Session) Targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.targets)
}

// Loading returns the current load, or nil when nothing has been loaded since
// the session was created or last invalidated.
func (s *Session) Loading() *Load {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading
}

// Ready reports whether the current load has finished without error. A load
// that reported compile errors still counts as ready.
func (s *Session) Ready() bool {
	load := s.Loading()
	if load == nil {
		return false
	}

	select {
	case <-load.Done():
		return load.err == nil
	default:
		return false
	}
}

// Invalidate forgets the current load. The next EnsureLoaded reloads.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = nil
}

// Reload starts loading the targets in the background and returns the load.
// It becomes the session's current load.
func (s *Session) Reload() *Load {
	s.mu.Lock()
	defer s.mu.Unlock()

	load := newLoad()
	if s.closed {
		load.finish(LoadResult{}, ErrClosed)

		return load
	}

	s.loading = load
	targets := slices.Clone(s.targets)

	go func() {
		ctx := context.Background()

		if s.opts.StartupTimeout > 0 {
			var cancel context.CancelFunc

			ctx, cancel = context.WithTimeout(ctx, s.opts.StartupTimeout)
			defer cancel()
		}

		result, err := s.load(ctx, targets)
		load.finish(result, err)
	}()

	return load
}

// EnsureLoaded reloads when no load is current, then waits for the current
// load. A load that failed with an error is forgotten so the next call retries.
// A load that completed with compile errors is not an error.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	load := s.Loading()
	if load == nil {
		load = s.Reload()
	}

	result, err := load.Wait(ctx)
	if err != nil {
		s.mu.Lock()
		if s.loading == load {
			s.loading = nil
		}
		s.mu.Unlock()

		return err
	}

	if !result.OK {
		s.logger.Warn("Load finished with errors", zap.String("summary", result.Summary))
	}

	return nil
}

func (s *Session) load(ctx context.Context, targets []string) (LoadResult, error) {
	proc, err := s.process(ctx)
	if err != nil {
		return LoadResult{}, err
	}

	// +c must be on before modules are loaded for :type-at to have data.
	if _, err := proc.SendCommand(ctx, ":set +c"); err != nil {
		return LoadResult{}, fmt.Errorf("set +c: %w", err)
	}

	command := ":reload"
	if len(targets) > 0 {
		quoted := make([]string, len(targets))
		for i, t := range targets {
			quoted[i] = "*" + quoteTarget(t)
		}

		command = ":load " + strings.Join(quoted, " ")
	}

	start := time.Now()

	lines, err := proc.SendCommand(ctx, command)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load: %w", err)
	}

	result := parseLoad(lines)
	s.logger.Info("Loaded",
		zap.Int("targets", len(targets)),
		zap.Bool("ok", result.OK),
		zap.String("summary", result.Summary),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// process returns the running process, starting a new one if needed.
func (s *Session) process(ctx context.Context) (*Process, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	proc, closed := s.proc, s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}

	if proc != nil && proc.Alive() {
		return proc, nil
	}

	if proc != nil {
		s.logger.Warn("GHCi is gone, restarting", zap.Int("exitCode", proc.ExitCode()))
	}

	proc, banner, err := Start(ctx, s.opts.Process)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("GHCi banner", zap.Strings("lines", banner))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		_ = proc.Kill()

		return nil, ErrClosed
	}

	s.proc = proc

	return proc, nil
}

// SendCommand sends a command to the running process. It does not start or
// load anything; call EnsureLoaded first.
func (s *Session) SendCommand(ctx context.Context, command string) ([]string, error) {
	s.mu.Lock()
	proc, closed := s.proc, s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}

	if proc == nil {
		return nil, ErrNotStarted
	}

	if s.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.opts.CommandTimeout)
		defer cancel()
	}

	lines, err := proc.SendCommand(ctx, command)
	if errors.Is(err, ErrProcessExited) {
		// The next EnsureLoaded restarts GHCi.
		s.Invalidate()
	}

	return lines, err
}

// Close stops the process. The session cannot be used afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	proc := s.proc
	s.closed = true
	s.loading = nil
	s.mu.Unlock()

	if proc == nil {
		return nil
	}

	return proc.Close(ctx)
}

// quoteTarget quotes a path for :load when it contains spaces.
func quoteTarget(path string) string {
	if !strings.ContainsAny(path, " \t\"") {
		return path
	}

	return fmt.Sprintf("%q", path)
}

// parseLoad finds GHCi's summary line in the output of :load.
func parseLoad(lines []string) LoadResult {
	result := LoadResult{Output: lines}

	for _, l := range lines {
		trimmed := strings.TrimSpace(l)

		switch {
		case strings.HasPrefix(trimmed, "Ok,"):
			result.OK = true
			result.Summary = trimmed
		case strings.HasPrefix(trimmed, "Failed,"):
			result.OK = false
			result.Summary = trimmed
		}
	}

	return result
}
