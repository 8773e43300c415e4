// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network and HTTP I/O utilities shared by
// the session layer.
//
// Response helpers (ReadResponse, ErrorBody) bound body reads at
// MaxResponseSize so a misbehaving server cannot force unbounded
// allocation. They are for page-sized responses (the login form, the
// post-login redirect body), not for streaming transfers.
//
// Connection error helpers (IsExpectedCloseError) classify errors that
// occur during normal connection teardown.
package netutil

import (
	"io"
)

// MaxResponseSize is the bound on HTTP response body reads: 16 MB.
// Login and error pages are tens of kilobytes; the limit exists solely
// to keep a pathological response from exhausting memory.
const MaxResponseSize int64 = 16 << 20

// ReadResponse reads an HTTP response body up to MaxResponseSize
// bytes. Use instead of io.ReadAll when reading response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody reads an HTTP error response body and returns it as a
// string for diagnostic error messages. Read errors are silently
// ignored; a partial or empty body is still useful in an error
// message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return string(data)
}
