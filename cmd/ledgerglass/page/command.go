// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"errors"
	"fmt"
	"os"

	"github.com/ledgerglass/ledgerglass/cmd/ledgerglass/cli"
	"github.com/ledgerglass/ledgerglass/page"
)

// serverRejection converts a BusinessLogicError into a printed message
// plus exit code 2, so callers can script against "the server said no"
// separately from transport and protocol failures (exit code 1). All
// other errors pass through unchanged.
func serverRejection(err error) error {
	var businessErr *page.BusinessLogicError
	if errors.As(err, &businessErr) {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", businessErr)
		return &cli.ExitError{Code: 2}
	}
	return err
}

// requireArgs enforces an exact positional argument count, returning a
// usage error naming the command otherwise.
func requireArgs(usage string, args []string, count int) error {
	if len(args) < count {
		return fmt.Errorf("missing argument\n\nUsage: %s", usage)
	}
	if len(args) > count {
		return fmt.Errorf("unexpected argument: %s\n\nUsage: %s", args[count], usage)
	}
	return nil
}
