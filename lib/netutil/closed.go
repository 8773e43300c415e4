// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, closed connection, broken pipe, or connection
// reset. These occur when one side of a duplex connection closes and
// the other side's in-flight read or write fails as a result.
//
// A peer that full-closes the socket produces ECONNRESET and EPIPE
// rather than EOF on the surviving side. All four are expected during
// teardown and should not be logged as errors.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
