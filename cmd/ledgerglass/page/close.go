// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/ledgerglass/ledgerglass/cmd/ledgerglass/cli"
	"github.com/ledgerglass/ledgerglass/page"
)

// closeParams holds the parameters for close-page.
type closeParams struct {
	cli.SessionConfig
	cli.JSONOutput
}

// ClosePageCommand returns the "close-page" subcommand.
func ClosePageCommand() *cli.Command {
	var params closeParams

	return &cli.Command{
		Name:    "close-page",
		Summary: "Open a page and close it again, checking the full round trip",
		Description: `Open a page and close it again.

This exercises the complete page lifecycle (open, sub-form loads,
close) without printing metadata. Useful as a smoke check that a page
id is valid and loadable for the configured user before scripting
against it: a bad id or denied page exits with code 2, a working page
exits 0.`,
		Usage: "ledgerglass close-page <page> [flags]",
		Examples: []cli.Example{
			{
				Description: "Check that a page opens and closes cleanly",
				Command:     "ledgerglass close-page 9305 --config ./ledgerglass.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("close-page", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			usage := "ledgerglass close-page <page> [flags]"
			if err := requireArgs(usage, args, 1); err != nil {
				return err
			}

			sess, cfg, err := params.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer sess.Disconnect()

			loader, err := page.NewLoader(page.Config{Invoker: sess, Logger: logger})
			if err != nil {
				return err
			}

			pageID := cfg.ResolvePage(args[0])
			if _, err := loader.LoadPage(ctx, pageID); err != nil {
				return serverRejection(err)
			}

			if err := loader.ClosePage(ctx, pageID); err != nil {
				return serverRejection(err)
			}

			if done, err := params.EmitJSON(map[string]string{
				"page":   pageID,
				"status": "closed",
			}); done {
				return err
			}

			fmt.Printf("Page %s opened and closed cleanly\n", pageID)
			return nil
		},
	}
}
