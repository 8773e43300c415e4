// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
	"strings"
)

// ProtocolError reports a violation of the reconstructed wire
// contract: a malformed envelope, a payload that fails to decompress,
// a missing acknowledgement, or a server form id bound to a different
// logical page than the one it was opened for. Callers can use
// errors.As to extract the structured information:
//
//	var protocolErr *wire.ProtocolError
//	if errors.As(err, &protocolErr) { ... }
type ProtocolError struct {
	// Op is the protocol operation underway when the violation was
	// detected, such as "decode", "decompress", or "open-form".
	Op string

	// Reason describes the violation.
	Reason string

	// FormID is the server form id involved, when one is.
	FormID string

	// Err is the underlying cause, when one exists.
	Err error
}

func (e *ProtocolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "wire: protocol violation during %s: %s", e.Op, e.Reason)
	if e.FormID != "" {
		fmt.Fprintf(&b, " (form %s)", e.FormID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocolError checks whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr)
}

// ParseError reports that a response could not serve the caller's
// expectation: either a required handler or event was absent, or
// present material did not decode. Present lists what the response
// actually carried so the failure is diagnosable from the message
// alone.
type ParseError struct {
	// What names the handler, event, or structure the caller needed.
	What string

	// Reason describes why candidate material failed to decode. Empty
	// when the failure is pure absence.
	Reason string

	// Present lists the handler tags, with events expanded to their
	// event names, that the response carried.
	Present []string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Reason != "" {
		fmt.Fprintf(&b, "wire: decoding %s: %s", e.What, e.Reason)
	} else {
		fmt.Fprintf(&b, "wire: %s not found in response", e.What)
	}
	if len(e.Present) > 0 {
		fmt.Fprintf(&b, " (present: %s)", strings.Join(e.Present, ", "))
	}
	return b.String()
}

// IsParseError checks whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}
