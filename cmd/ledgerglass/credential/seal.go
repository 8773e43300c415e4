// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential implements the keygen and seal-credentials
// subcommands: generating age keypairs and sealing passwords into
// encrypted files the session layer can unseal at startup.
package credential

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/ledgerglass/ledgerglass/cmd/ledgerglass/cli"
	"github.com/ledgerglass/ledgerglass/lib/sealed"
	"github.com/ledgerglass/ledgerglass/lib/secret"
)

// KeygenCommand returns the "keygen" subcommand.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age keypair for sealing credentials",
		Description: `Generate an age x25519 keypair.

The public key goes to stdout (pass it to seal-credentials as
--recipient). The private key goes to stderr; store it in a file with
mode 0600 and point credentials.identity_file at it.`,
		Usage: "ledgerglass keygen",
		Examples: []cli.Example{
			{
				Description: "Generate a keypair, keeping the private key in a file",
				Command:     "ledgerglass keygen 2> ~/.ledgerglass/identity",
			},
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return fmt.Errorf("generating keypair: %w", err)
			}
			defer keypair.Close()

			fmt.Fprintf(os.Stderr, "%s\n", keypair.PrivateKey.String())
			fmt.Fprintf(os.Stdout, "%s\n", keypair.PublicKey)
			return nil
		},
	}
}

// sealParams holds the parameters for seal-credentials.
type sealParams struct {
	Recipients   []string `flag:"recipient" desc:"age public key to encrypt to (repeatable; at least one required)"`
	Output       string   `flag:"out,o" desc:"output path for the sealed file (required)"`
	PasswordFile string   `flag:"password-file" desc:"read the password from this file, or - for stdin (default: prompt)"`
}

// SealCommand returns the "seal-credentials" subcommand.
func SealCommand() *cli.Command {
	var params sealParams

	return &cli.Command{
		Name:    "seal-credentials",
		Summary: "Encrypt a password into a sealed credential file",
		Description: `Encrypt a password to one or more age public keys.

The password is read from --password-file, or prompted for on the
terminal with echo disabled. The sealed file is safe to store in
configuration management; only holders of a matching identity can
unseal it. Point credentials.sealed_file and credentials.identity_file
in the config at the output and the identity.

Sealing to a second recipient (a team escrow key) keeps the file
recoverable if the primary identity is lost.`,
		Usage: "ledgerglass seal-credentials --recipient <age1...> --out <path> [flags]",
		Examples: []cli.Example{
			{
				Description: "Seal a password, prompting for it",
				Command:     "ledgerglass seal-credentials --recipient age1xy... --out ~/.ledgerglass/password.age",
			},
			{
				Description: "Seal from stdin to two recipients",
				Command:     "pass show erp | ledgerglass seal-credentials --recipient age1xy... --recipient age1escrow... --password-file - --out password.age",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("seal-credentials", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if len(params.Recipients) == 0 {
				return fmt.Errorf("--recipient is required")
			}
			if params.Output == "" {
				return fmt.Errorf("--out is required")
			}
			for _, recipient := range params.Recipients {
				if err := sealed.ParsePublicKey(recipient); err != nil {
					return fmt.Errorf("invalid recipient %q: %w", recipient, err)
				}
			}

			var password *secret.Buffer
			var err error
			if params.PasswordFile != "" {
				password, err = secret.ReadFromPath(params.PasswordFile)
			} else {
				password, err = secret.PromptFromTerminal("Password to seal: ")
			}
			if err != nil {
				return err
			}
			defer password.Close()

			ciphertext, err := sealed.Encrypt(password.Bytes(), params.Recipients)
			if err != nil {
				return fmt.Errorf("sealing password: %w", err)
			}

			if err := os.WriteFile(params.Output, []byte(ciphertext+"\n"), 0o600); err != nil {
				return fmt.Errorf("writing sealed file: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Sealed credentials written to %s (%d recipients)\n",
				params.Output, len(params.Recipients))
			return nil
		},
	}
}
