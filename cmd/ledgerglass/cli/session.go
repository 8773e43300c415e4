// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ledgerglass/ledgerglass/lib/config"
	"github.com/ledgerglass/ledgerglass/lib/sealed"
	"github.com/ledgerglass/ledgerglass/lib/secret"
	"github.com/ledgerglass/ledgerglass/session"
)

// SessionConfig holds the shared flags for reaching an ERP server: the
// config file, the server location, and the credential source. Every
// command that opens a session embeds it.
//
// Flags override the config file, which overrides built-in defaults.
// With --base-url and --tenant given, no config file is needed at all.
//
// Usage pattern:
//
//	type describeParams struct {
//	    cli.SessionConfig
//	    cli.JSONOutput
//	}
//
//	// In Run:
//	sess, cfg, err := params.Connect(ctx, logger)
//	if err != nil {
//	    return err
//	}
//	defer sess.Disconnect()
type SessionConfig struct {
	ConfigPath   string
	BaseURL      string
	Tenant       string
	Company      string
	Username     string
	PasswordFile string
}

// AddFlags registers the session flags on the given flag set.
func (c *SessionConfig) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.ConfigPath, "config", "", "path to ledgerglass.yaml (default: $LEDGERGLASS_CONFIG)")
	flagSet.StringVar(&c.BaseURL, "base-url", "", "ERP server root URL (overrides config file)")
	flagSet.StringVar(&c.Tenant, "tenant", "", "tenant id (overrides config file)")
	flagSet.StringVar(&c.Company, "company", "", "company name (overrides config file)")
	flagSet.StringVar(&c.Username, "username", "", "login account name (overrides config file)")
	flagSet.StringVar(&c.PasswordFile, "password-file", "", "password file, or - for stdin (overrides config file)")
}

// LoadConfig resolves the effective configuration: built-in defaults,
// then the config file (--config, else LEDGERGLASS_CONFIG when set),
// then flag overrides. The result is validated before being returned.
func (c *SessionConfig) LoadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	switch {
	case c.ConfigPath != "":
		cfg, err = config.LoadFile(c.ConfigPath)
	case os.Getenv("LEDGERGLASS_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if c.BaseURL != "" {
		cfg.Server.BaseURL = c.BaseURL
	}
	if c.Tenant != "" {
		cfg.Server.Tenant = c.Tenant
	}
	if c.Company != "" {
		cfg.Server.Company = c.Company
	}
	if c.Username != "" {
		cfg.Credentials.Username = c.Username
	}
	if c.PasswordFile != "" {
		// An explicit plaintext file beats a configured sealed file.
		cfg.Credentials.PasswordFile = c.PasswordFile
		cfg.Credentials.SealedFile = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Connect loads configuration, authenticates against the sign-in
// endpoint, dials the WebSocket, and opens the application session.
// The returned session is ready for Invoke; the caller must call
// Disconnect when done.
func (c *SessionConfig) Connect(ctx context.Context, logger *slog.Logger) (*session.Session, *config.Config, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	if cfg.Credentials.Username == "" {
		return nil, nil, fmt.Errorf("--username is required (or credentials.username in the config file)")
	}

	sess, err := session.New(session.Config{
		BaseURL:       cfg.Server.BaseURL,
		Tenant:        cfg.Server.Tenant,
		Company:       cfg.Server.Company,
		Logger:        logger,
		DialTimeout:   cfg.DialTimeout(),
		InvokeTimeout: cfg.InvokeTimeout(),
	})
	if err != nil {
		return nil, nil, err
	}

	password, err := ReadPassword(cfg.Credentials)
	if err != nil {
		return nil, nil, err
	}
	defer password.Close()

	credentials := session.Credentials{
		Username: cfg.Credentials.Username,
		Password: password,
	}
	if _, err := sess.Authenticate(ctx, credentials); err != nil {
		return nil, nil, err
	}

	if err := sess.Connect(ctx); err != nil {
		return nil, nil, err
	}

	// ClientType and DeviceID fall back inside the session package.
	descriptor := session.ClientDescriptor{
		Locale:         cfg.Client.Locale,
		TimeZone:       cfg.Client.TimeZone,
		ViewportWidth:  cfg.Client.Viewport.Width,
		ViewportHeight: cfg.Client.Viewport.Height,
	}
	if _, err := sess.OpenSession(ctx, descriptor); err != nil {
		sess.Disconnect()
		return nil, nil, err
	}

	return sess, cfg, nil
}

// ReadPassword resolves the password from the configured credential
// source: a sealed file unsealed with the age identity, a plaintext
// file, or an interactive terminal prompt as the last resort. The
// caller owns the returned buffer and must close it.
func ReadPassword(credentials config.CredentialsConfig) (*secret.Buffer, error) {
	switch {
	case credentials.SealedFile != "":
		ciphertext, err := os.ReadFile(credentials.SealedFile)
		if err != nil {
			return nil, fmt.Errorf("reading sealed credentials: %w", err)
		}

		identity, err := secret.ReadFromPath(credentials.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("reading age identity: %w", err)
		}
		defer identity.Close()

		password, err := sealed.Decrypt(strings.TrimSpace(string(ciphertext)), identity)
		if err != nil {
			return nil, fmt.Errorf("unsealing credentials: %w", err)
		}
		return password, nil

	case credentials.PasswordFile != "":
		password, err := secret.ReadFromPath(credentials.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("reading password file: %w", err)
		}
		return password, nil

	default:
		return secret.PromptFromTerminal("Password: ")
	}
}
