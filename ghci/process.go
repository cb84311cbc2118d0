package ghci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// State represents the state of a process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process has exited normally or with an error.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// quitGrace is how long Close waits for :quit before killing the process.
const quitGrace = 3 * time.Second

// Options configures a GHCi process.
type Options struct {
	// Command is the argv that starts GHCi, e.g. ["stack", "repl"].
	Command []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the parent environment.
	Env []string

	Logger *zap.Logger
}

// Process is one running GHCi REPL.
//
// Commands are serialised: SendCommand waits for the previous command's reply
// before writing the next one. It is safe for concurrent use.
type Process struct {
	// ID identifies the process in logs. It doubles as the prompt sentinel.
	ID string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *zap.Logger

	// sentinel is printed by GHCi as its prompt, on a line of its own.
	sentinel string

	// slot holds a token while a command is outstanding.
	slot chan struct{}

	// replies carries the output lines of one command each.
	replies chan []string

	// outputDone is closed when the output stream ends.
	outputDone chan struct{}

	// done is closed when the process exits.
	done chan struct{}

	closeOnce sync.Once
	closed    chan struct{}

	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error
}

// Start launches GHCi and waits until it shows its first prompt. The banner
// printed before that prompt is returned.
//
// ctx bounds the startup only; the process lives until Close.
func Start(ctx context.Context, opts Options) (*Process, []string, error) {
	if len(opts.Command) == 0 {
		return nil, nil, ErrEmptyCommand
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	id := ulid.Make().String()

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...) //nolint:gosec // G204: command comes from user config
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)

	// GHCi writes errors (including :type-at failures) to stderr, so both
	// streams feed one pipe to keep their relative order.
	out, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("create output pipe: %w", err)
	}

	cmd.Stdout = w
	cmd.Stderr = w

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = out.Close()
		_ = w.Close()

		return nil, nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	p := &Process{
		ID:         id,
		cmd:        cmd,
		stdin:      stdin,
		logger:     logger.With(zap.String("ghci", id)),
		sentinel:   "#~" + id + "~#",
		slot:       make(chan struct{}, 1),
		replies:    make(chan []string),
		outputDone: make(chan struct{}),
		done:       make(chan struct{}),
		closed:     make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)

	if err := cmd.Start(); err != nil {
		_ = out.Close()
		_ = w.Close()

		return nil, nil, fmt.Errorf("start %s: %w", opts.Command[0], err)
	}

	// The child holds its own copy of the write end.
	_ = w.Close()

	p.state.Store(int32(StateRunning))
	p.logger.Info("Started GHCi",
		zap.Strings("command", opts.Command),
		zap.String("dir", opts.Dir),
		zap.Int("pid", cmd.Process.Pid))

	go p.readLoop(out)
	go p.waitLoop()

	// The reply to the prompt change is everything GHCi printed before its
	// first prompt: the banner, and whatever stack or cabal logged.
	banner, err := p.SendCommand(ctx, fmt.Sprintf(":set prompt %q", p.sentinel+"\n"))
	if err != nil {
		_ = p.Kill()

		return nil, nil, fmt.Errorf("wait for ghci prompt: %w", err)
	}

	if _, err := p.SendCommand(ctx, `:set prompt-cont ""`); err != nil {
		_ = p.Kill()

		return nil, nil, fmt.Errorf("set continuation prompt: %w", err)
	}

	return p, banner, nil
}

// SendCommand writes command to GHCi and returns the lines it printed before
// the next prompt. Commands spanning several lines are wrapped in :{ :}.
//
// If ctx ends while the reply is outstanding, SendCommand returns ctx.Err()
// and the reply is discarded in the background before the next command may
// be written.
func (p *Process) SendCommand(ctx context.Context, command string) ([]string, error) {
	select {
	case <-p.closed:
		return nil, ErrClosed
	case <-p.outputDone:
		return nil, ErrProcessExited
	default:
	}

	select {
	case p.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrClosed
	case <-p.outputDone:
		return nil, ErrProcessExited
	}

	line := command
	if strings.Contains(command, "\n") {
		line = ":{\n" + command + "\n:}"
	}

	p.logger.Debug("Send", zap.String("command", command))

	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		<-p.slot

		return nil, fmt.Errorf("write command: %w", err)
	}

	select {
	case lines := <-p.replies:
		<-p.slot
		p.logger.Debug("Reply", zap.Strings("lines", lines))

		return lines, nil
	case <-p.outputDone:
		<-p.slot

		return nil, ErrProcessExited
	case <-ctx.Done():
		go func() {
			select {
			case <-p.replies:
			case <-p.outputDone:
			}
			<-p.slot
		}()

		return nil, ctx.Err()
	}
}

// readLoop splits GHCi's output into replies at each sentinel line.
func (p *Process) readLoop(r io.ReadCloser) {
	defer close(p.outputDone)
	defer func() { _ = r.Close() }()

	reader := bufio.NewReader(r)

	var lines []string

	for {
		raw, err := reader.ReadString('\n')
		if raw != "" {
			line := clean(raw)

			if prefix, ok := strings.CutSuffix(line, p.sentinel); ok {
				if prefix != "" {
					lines = append(lines, prefix)
				}

				select {
				case p.replies <- lines:
				case <-p.closed:
				}

				lines = nil
			} else {
				lines = append(lines, line)
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Warn("Read GHCi output", zap.Error(err))
			}

			if len(lines) > 0 {
				p.logger.Debug("Unterminated output at exit", zap.Strings("lines", lines))
			}

			return
		}
	}
}

// clean strips terminal escapes and line endings from one line of output.
func clean(raw string) string {
	line := strings.TrimRight(raw, "\r\n")

	return stripansi.Strip(line)
}

// waitLoop waits for the process to exit and updates state.
func (p *Process) waitLoop() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	exitCode := 0
	state := StateExited

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()

			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				state = StateKilled
			}
		} else {
			exitCode = -1
		}
	}

	p.exitCode.Store(int32(exitCode)) //nolint:gosec // G115: exit codes fit in int32
	p.state.Store(int32(state))
	close(p.done)

	p.logger.Info("GHCi exited", zap.Int("code", exitCode), zap.Stringer("state", state))
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the process exit code, or -1 if it has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns the error from waiting on the process, if any.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.exitErr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Alive reports whether the process is running, its output is still open and
// Close has not been called.
func (p *Process) Alive() bool {
	select {
	case <-p.closed:
		return false
	case <-p.outputDone:
		return false
	default:
	}

	return p.State() == StateRunning
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Kill stops the process immediately.
func (p *Process) Kill() error {
	p.closeOnce.Do(func() { close(p.closed) })

	if p.State() != StateRunning {
		return nil
	}

	err := p.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill ghci: %w", err)
	}

	return nil
}

// Close asks GHCi to quit and kills it if it hasn't exited after a grace
// period or when ctx ends.
func (p *Process) Close(ctx context.Context) error {
	alreadyClosed := true

	p.closeOnce.Do(func() {
		alreadyClosed = false
		close(p.closed)
	})

	if alreadyClosed || p.State() != StateRunning {
		return nil
	}

	// Writing may fail if GHCi is already gone; the wait below handles both.
	_, _ = io.WriteString(p.stdin, ":quit\n")
	_ = p.stdin.Close()

	timer := time.NewTimer(quitGrace)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	p.logger.Warn("GHCi did not quit, killing it")

	err := p.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill ghci: %w", err)
	}

	<-p.done

	return nil
}
