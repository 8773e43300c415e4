// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Ledgerglass commands.
//
// Configuration is loaded from a single file specified by either the
// LEDGERGLASS_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Overrides cover the server location,
// the client self-description, and the transport timeouts; credentials
// and page aliases are shared across environments.
//
// Variable expansion is performed on credential path fields after
// loading: ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Server, Client, Timeouts, Credentials
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.ResolvePage] -- maps a configured alias to a page id
//
// This package depends on no other Ledgerglass packages.
package config
