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

// actionParams holds the parameters for invoke-action.
type actionParams struct {
	cli.SessionConfig
	cli.JSONOutput
	Code   int    `flag:"code" desc:"numeric action code (preferred, from describe-page)"`
	Name   string `flag:"name" desc:"action name (fallback when no code is known)"`
	RowKey string `flag:"row" desc:"row key for actions on a specific repeater row"`
}

// InvokeActionCommand returns the "invoke-action" subcommand.
func InvokeActionCommand() *cli.Command {
	var params actionParams

	return &cli.Command{
		Name:    "invoke-action",
		Summary: "Invoke an action on a page",
		Description: `Load a page, invoke one of its actions, and close the page.

The action is addressed by its numeric code (preferred; stable within a
server build and printed by describe-page) or by name. The control path
addresses the action control within the form. For actions on a specific
row of a list, pass the row key with --row.

A rejection by the server (disabled action, permission denied) exits
with code 2.`,
		Usage: "ledgerglass invoke-action <page> <control-path> [flags]",
		Examples: []cli.Example{
			{
				Description: "Invoke an action by code",
				Command:     "ledgerglass invoke-action customer-card Processing/Post --code 42 --config ./ledgerglass.yaml",
			},
			{
				Description: "Invoke an action by name on a specific row",
				Command:     "ledgerglass invoke-action item-list Lines/Adjust --name AdjustInventory --row row-7 --config ./ledgerglass.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("invoke-action", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			usage := "ledgerglass invoke-action <page> <control-path> [flags]"
			if err := requireArgs(usage, args, 2); err != nil {
				return err
			}
			if params.Code == 0 && params.Name == "" {
				return fmt.Errorf("--code or --name is required")
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

			reference := page.ActionRef{Code: params.Code, Name: params.Name}
			if _, err := loader.InvokeAction(ctx, pageID, args[1], reference, params.RowKey); err != nil {
				return serverRejection(err)
			}

			if err := loader.ClosePage(ctx, pageID); err != nil {
				return serverRejection(err)
			}

			if done, err := params.EmitJSON(map[string]string{
				"page":    pageID,
				"control": args[1],
				"status":  "invoked",
			}); done {
				return err
			}

			fmt.Printf("Invoked %s on page %s\n", args[1], pageID)
			return nil
		},
	}
}
