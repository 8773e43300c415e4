// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PromptFromTerminal prints prompt to stderr and reads a secret from
// stdin with echo disabled. The returned buffer is mmap-backed and
// must be closed by the caller. Fails when stdin is not a terminal;
// non-interactive callers should use ReadFromPath instead.
func PromptFromTerminal(prompt string) (*Buffer, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	line, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("password is empty")
	}
	return NewFromBytes(line)
}
