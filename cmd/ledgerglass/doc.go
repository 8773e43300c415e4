// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Ledgerglass is the CLI for driving an ERP server over its web-client
// protocol. It provides subcommands for page metadata discovery
// (describe-page), mutations (set-field, invoke-action), lifecycle
// checks (close-page), and credential sealing (keygen,
// seal-credentials).
package main
