// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package page implements the page-facing CLI commands: describe-page,
// set-field, invoke-action, and close-page. Each command opens one
// session, loads the target page to establish its form binding, acts,
// and disconnects. Server-side rejections (bad page id, permission
// denied, validation failure) exit with code 2 so scripted callers can
// tell a rejected request from a broken connection.
package page
