// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package simerr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestConfig(t *testing.T) {
	err := Config("unreachable destination 7 in routing table")
	if err.Error() != "unreachable destination 7 in routing table" {
		t.Errorf("Config().Error() = %q", err.Error())
	}
}

func TestConfigfWrapping(t *testing.T) {
	err := Configf("load routing table: %w", fs.ErrNotExist)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error chain does not contain fs.ErrNotExist")
	}
	ce, ok := AsConfig(err)
	if !ok || ce == nil {
		t.Fatalf("AsConfig() = %v, %v; want ok", ce, ok)
	}
}

func TestInvariant(t *testing.T) {
	err := Invariant("outport == -1 after routing flit %d", 42)
	if got, want := err.Error(), "invariant violation: outport == -1 after routing flit 42"; got != want {
		t.Errorf("Invariant().Error() = %q, want %q", got, want)
	}
	wrapped := fmt.Errorf("wrap: %w", err)
	ie, ok := AsInvariant(wrapped)
	if !ok || ie == nil {
		t.Fatalf("AsInvariant() = %v, %v; want ok", ie, ok)
	}
}

func TestConfigNotInvariant(t *testing.T) {
	err := Config("bad config")
	if _, ok := AsInvariant(err); ok {
		t.Errorf("AsInvariant() matched a ConfigurationError")
	}
}
