// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing against a staging tenant.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for Ledgerglass.
type Config struct {
	// Environment identifies the deployment type (development, staging,
	// production).
	Environment Environment `yaml:"environment"`

	// Server locates the ERP server and tenant.
	Server ServerConfig `yaml:"server"`

	// Client configures how a session describes itself to the server.
	Client ClientConfig `yaml:"client"`

	// Timeouts configures transport deadlines.
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Credentials configures where login credentials come from.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Pages maps human-readable aliases to logical page ids, so commands
	// can say "customer-card" instead of "21".
	Pages map[string]string `yaml:"pages"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains configuration fields that can be overridden
// per-environment.
type ConfigOverrides struct {
	Server   *ServerConfig   `yaml:"server,omitempty"`
	Client   *ClientConfig   `yaml:"client,omitempty"`
	Timeouts *TimeoutsConfig `yaml:"timeouts,omitempty"`
}

// ServerConfig locates the ERP server.
type ServerConfig struct {
	// BaseURL is the server root, such as https://erp.example.com or
	// https://erp.example.com/instance1. Required.
	BaseURL string `yaml:"base_url"`

	// Tenant selects the tenant on multi-tenant servers. Required.
	Tenant string `yaml:"tenant"`

	// Company selects the company within the tenant. Optional; when
	// empty the server falls back to the account's default company.
	Company string `yaml:"company"`
}

// ClientConfig is the session's self-description. The server uses it for
// layout and localization decisions, so the values here change which
// controls discovery sees.
type ClientConfig struct {
	// Locale is an IETF language tag.
	// Default: en-US
	Locale string `yaml:"locale"`

	// TimeZone is an IANA time zone name.
	// Default: UTC
	TimeZone string `yaml:"time_zone"`

	// Viewport is the nominal viewport reported at session open.
	Viewport ViewportConfig `yaml:"viewport"`
}

// ViewportConfig is the nominal client viewport in pixels. Servers prune
// layout-only controls for small viewports.
type ViewportConfig struct {
	// Default: 1440
	Width int `yaml:"width"`
	// Default: 900
	Height int `yaml:"height"`
}

// TimeoutsConfig holds transport deadlines as duration strings such as
// "45s" or "2m".
type TimeoutsConfig struct {
	// Dial bounds the WebSocket handshake.
	// Default: 15s
	Dial string `yaml:"dial"`

	// Invoke bounds one interaction round trip.
	// Default: 45s
	Invoke string `yaml:"invoke"`
}

// CredentialsConfig configures where login credentials come from.
// Exactly one password source is consulted: the sealed file when
// configured, otherwise the plaintext file, otherwise a terminal prompt.
type CredentialsConfig struct {
	// Username is the login account name.
	Username string `yaml:"username"`

	// PasswordFile is a plaintext password file, or "-" for stdin.
	PasswordFile string `yaml:"password_file"`

	// SealedFile is an age-encrypted password file, as written by the
	// seal-credentials command.
	SealedFile string `yaml:"sealed_file"`

	// IdentityFile holds the age identity that unseals SealedFile.
	IdentityFile string `yaml:"identity_file"`
}

// Default returns the default configuration. These are the base values
// before a config file is loaded; the server location and credentials
// have no defaults and must come from the file or flags.
func Default() *Config {
	return &Config{
		Environment: Development,
		Client: ClientConfig{
			Locale:   "en-US",
			TimeZone: "UTC",
			Viewport: ViewportConfig{Width: 1440, Height: 900},
		},
		Timeouts: TimeoutsConfig{
			Dial:   "15s",
			Invoke: "45s",
		},
	}
}

// Load loads configuration from the LEDGERGLASS_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or discovery - if LEDGERGLASS_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration.
func Load() (*Config, error) {
	configPath := os.Getenv("LEDGERGLASS_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("LEDGERGLASS_CONFIG environment variable not set; " +
			"set it to the path of your ledgerglass.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do
// not override config values. The only expansion performed is ${HOME} and
// similar variables in path fields, for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the override section matching
// c.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.BaseURL != "" {
			c.Server.BaseURL = overrides.Server.BaseURL
		}
		if overrides.Server.Tenant != "" {
			c.Server.Tenant = overrides.Server.Tenant
		}
		if overrides.Server.Company != "" {
			c.Server.Company = overrides.Server.Company
		}
	}

	if overrides.Client != nil {
		if overrides.Client.Locale != "" {
			c.Client.Locale = overrides.Client.Locale
		}
		if overrides.Client.TimeZone != "" {
			c.Client.TimeZone = overrides.Client.TimeZone
		}
		if overrides.Client.Viewport.Width > 0 {
			c.Client.Viewport.Width = overrides.Client.Viewport.Width
		}
		if overrides.Client.Viewport.Height > 0 {
			c.Client.Viewport.Height = overrides.Client.Viewport.Height
		}
	}

	if overrides.Timeouts != nil {
		if overrides.Timeouts.Dial != "" {
			c.Timeouts.Dial = overrides.Timeouts.Dial
		}
		if overrides.Timeouts.Invoke != "" {
			c.Timeouts.Invoke = overrides.Timeouts.Invoke
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Credentials.PasswordFile = expandVars(c.Credentials.PasswordFile, vars)
	c.Credentials.SealedFile = expandVars(c.Credentials.SealedFile, vars)
	c.Credentials.IdentityFile = expandVars(c.Credentials.IdentityFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Server.BaseURL == "" {
		errs = append(errs, fmt.Errorf("server.base_url is required"))
	}
	if c.Server.Tenant == "" {
		errs = append(errs, fmt.Errorf("server.tenant is required"))
	}

	if c.Client.Viewport.Width <= 0 || c.Client.Viewport.Height <= 0 {
		errs = append(errs, fmt.Errorf("client.viewport dimensions must be positive"))
	}

	if _, err := time.ParseDuration(c.Timeouts.Dial); err != nil {
		errs = append(errs, fmt.Errorf("timeouts.dial: %w", err))
	}
	if _, err := time.ParseDuration(c.Timeouts.Invoke); err != nil {
		errs = append(errs, fmt.Errorf("timeouts.invoke: %w", err))
	}

	if c.Credentials.SealedFile != "" && c.Credentials.IdentityFile == "" {
		errs = append(errs, fmt.Errorf("credentials.identity_file is required when credentials.sealed_file is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DialTimeout returns the parsed dial timeout. Call Validate first; an
// unparseable value returns zero here.
func (c *Config) DialTimeout() time.Duration {
	timeout, err := time.ParseDuration(c.Timeouts.Dial)
	if err != nil {
		return 0
	}
	return timeout
}

// InvokeTimeout returns the parsed invoke timeout. Call Validate first; an
// unparseable value returns zero here.
func (c *Config) InvokeTimeout() time.Duration {
	timeout, err := time.ParseDuration(c.Timeouts.Invoke)
	if err != nil {
		return 0
	}
	return timeout
}

// ResolvePage resolves a page reference: the mapped page id when the
// reference is a configured alias, otherwise the reference itself.
func (c *Config) ResolvePage(reference string) string {
	if pageID, ok := c.Pages[reference]; ok {
		return pageID
	}
	return reference
}
