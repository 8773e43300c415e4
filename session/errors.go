// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"strings"
)

// AuthenticationError reports that the server would not establish an
// authenticated session for the supplied credentials: the login form
// could not be located on the sign-in page, or the credentials were
// rejected. Distinct from ConnectionError, which covers transport
// failure; a caller retrying an AuthenticationError with the same
// credentials will fail again.
type AuthenticationError struct {
	// Reason describes the failure.
	Reason string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *AuthenticationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "session: authentication failed: %s", e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// IsAuthenticationError checks whether err is or wraps an
// *AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// ConnectionError reports a transport failure: the server was
// unreachable, a handshake failed, the connection dropped, or an
// interaction ran out of time. Unlike AuthenticationError these are
// frequently transient.
type ConnectionError struct {
	// Op is the operation underway, such as "login", "dial", or
	// "invoke".
	Op string

	// Reason describes the failure.
	Reason string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "session: connection failure during %s", e.Op)
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError checks whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
