// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls when talking to test
// servers over channels.
//
// [LoadFixture] reads annotated JSONC fixtures from a package's
// testdata directory and strips comments, so fixtures derived from
// captured traffic can carry their provenance notes inline.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
