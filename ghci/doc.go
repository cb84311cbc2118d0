// Package ghci drives long-lived GHCi subprocesses.
//
// A Process speaks GHCi's plain-text REPL. It replaces the prompt with a
// unique sentinel line so that the output stream can be cut into one reply
// per command. A Session adds module loading on top of a Process: it tracks
// the files a project has open, loads them with +c so that :type-at works,
// and exposes the in-flight load so callers can wait for it. A Manager maps
// source files to sessions, one per project root.
package ghci
