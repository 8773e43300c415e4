// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete ledgerglass CLI command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerglass/ledgerglass/cmd/ledgerglass/cli"
	credentialcmd "github.com/ledgerglass/ledgerglass/cmd/ledgerglass/credential"
	pagecmd "github.com/ledgerglass/ledgerglass/cmd/ledgerglass/page"
	"github.com/ledgerglass/ledgerglass/lib/version"
)

// Root builds and returns the complete ledgerglass CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "ledgerglass",
		Description: `Ledgerglass: agent-facing metadata client for an ERP web-client protocol.

Sign in the way a browser would, speak the server's WebSocket
interaction protocol, and turn its form trees into page descriptors
and mutations that scripts and agents can use.`,
		Subcommands: []*cli.Command{
			pagecmd.DescribeCommand(),
			pagecmd.SetFieldCommand(),
			pagecmd.InvokeActionCommand(),
			pagecmd.ClosePageCommand(),
			credentialcmd.KeygenCommand(),
			credentialcmd.SealCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("ledgerglass %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Describe a page with everything on the command line",
				Command:     "ledgerglass describe-page 21 --base-url https://erp.example.com --tenant alpine --username svc-reader --password-file -",
			},
			{
				Description: "Describe a page by alias from a config file, as JSON",
				Command:     "ledgerglass describe-page customer-card --config ./ledgerglass.yaml --json",
			},
			{
				Description: "Write a field value",
				Command:     "ledgerglass set-field customer-card Name 'Evergreen Bikes' --config ./ledgerglass.yaml",
			},
			{
				Description: "Invoke an action by code",
				Command:     "ledgerglass invoke-action customer-card Processing/Post --code 42 --config ./ledgerglass.yaml",
			},
			{
				Description: "Seal a password for unattended use",
				Command:     "ledgerglass seal-credentials --recipient age1xy... --out ~/.ledgerglass/password.age",
			},
		},
	}
}
