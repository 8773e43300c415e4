// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a request the client refused to send: an
// untracked page, an empty control path, an action reference with
// neither code nor name. No interaction was issued.
type ValidationError struct {
	// Reason describes what was wrong with the request.
	Reason string
}

func (e *ValidationError) Error() string {
	return "page: invalid request: " + e.Reason
}

// IsValidationError checks whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// BusinessLogicError reports a server-side rejection of a well-formed
// interaction: an unknown page id, permission denied, a field value
// the server would not accept. The interaction reached the server and
// the server said no.
type BusinessLogicError struct {
	// PageID is the logical page the interaction targeted.
	PageID string

	// Message is the server's error message, when it sent one.
	Message string

	// Details carries additional server-provided context.
	Details string
}

func (e *BusinessLogicError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "page: server rejected interaction for page %q", e.PageID)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	return b.String()
}

// IsBusinessLogicError checks whether err is or wraps a
// *BusinessLogicError.
func IsBusinessLogicError(err error) bool {
	var businessErr *BusinessLogicError
	return errors.As(err, &businessErr)
}
