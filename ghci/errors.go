package ghci

import "errors"

// Sentinel errors for the ghci package.
var (
	// ErrProcessExited is returned when GHCi exits while a command is outstanding.
	ErrProcessExited = errors.New("ghci process exited")

	// ErrNotStarted is returned for commands sent before the first load.
	ErrNotStarted = errors.New("ghci session not started")

	// ErrClosed is returned for commands sent after Close.
	ErrClosed = errors.New("ghci session closed")

	// ErrEmptyCommand is returned when no GHCi command line is configured.
	ErrEmptyCommand = errors.New("empty ghci command")
)
