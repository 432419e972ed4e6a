// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package simerr distinguishes the two fatal error classes the core can
// raise: a ConfigurationError, discovered at network-build time, and an
// InvariantError, discovered during a run and indicating a bug rather than
// a bad configuration. Neither is recoverable locally; both abort the
// simulation with a descriptive message.
package simerr

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a fatal problem found while building a Network
// from a Config: an unreachable routing-table destination, too few VCs for
// the chosen algorithm, mesh dimensions inconsistent with the router count.
type ConfigurationError struct {
	msg string
	err error
}

func (e *ConfigurationError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *ConfigurationError) Unwrap() error { return e.err }

// Config builds a ConfigurationError with a plain message.
func Config(msg string) error {
	return &ConfigurationError{msg: msg}
}

// Configf builds a ConfigurationError, wrapping with %w as fmt.Errorf does.
func Configf(format string, args ...any) error {
	wrapped := fmt.Errorf(format, args...)
	return &ConfigurationError{msg: wrapped.Error(), err: errors.Unwrap(wrapped)}
}

// AsConfig reports whether err is (or wraps) a ConfigurationError.
func AsConfig(err error) (*ConfigurationError, bool) {
	var ce *ConfigurationError
	ok := errors.As(err, &ce)
	return ce, ok
}

// InvariantError reports a fatal problem found at run time that indicates a
// bug in the core: outport == -1 after routing, outvc == -1 after an SA-II
// grant, a route naming a nonexistent dimension, or an XY turn restriction
// violation.
type InvariantError struct {
	msg string
}

func (e *InvariantError) Error() string { return "invariant violation: " + e.msg }

// Invariant builds an InvariantError.
func Invariant(format string, args ...any) error {
	return &InvariantError{msg: fmt.Sprintf(format, args...)}
}

// AsInvariant reports whether err is (or wraps) an InvariantError.
func AsInvariant(err error) (*InvariantError, bool) {
	var ie *InvariantError
	ok := errors.As(err, &ie)
	return ie, ok
}
