// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package logger defines the Logf value-passing convention used throughout
// garnet: components take a Logf at construction time instead of reaching
// for a global logger.
package logger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Logf is the signature components accept for diagnostic output. A nil Logf
// is never passed; use Discard instead.
type Logf func(format string, args ...any)

// Discard throws away everything logged through it.
func Discard(string, ...any) {}

// Zerolog adapts a zerolog.Logger to the Logf convention, used at the
// boundary where a component is wired into cmd/garnetsim.
func Zerolog(l zerolog.Logger) Logf {
	return func(format string, args ...any) {
		l.Info().Msg(fmt.Sprintf(format, args...))
	}
}

// WithPrefix returns a Logf that prepends prefix to every message, mirroring
// the way individual routers and links tag their own trace output.
func WithPrefix(logf Logf, prefix string) Logf {
	return func(format string, args ...any) {
		logf(prefix+format, args...)
	}
}
