// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock reads so that code stamping
// telemetry or computing deadlines can run against a controllable
// clock in tests. Production code takes a Clock and callers pass
// Real; tests pass a Fake and advance it explicitly.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

// Now implements Clock.
func (Real) Now() time.Time { return time.Now() }
