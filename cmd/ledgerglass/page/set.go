// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/ledgerglass/ledgerglass/cmd/ledgerglass/cli"
	"github.com/ledgerglass/ledgerglass/page"
)

// setParams holds the parameters for set-field.
type setParams struct {
	cli.SessionConfig
	cli.JSONOutput
	RawValue bool `flag:"raw" desc:"parse the value argument as a JSON literal (number, boolean, null)"`
}

// SetFieldCommand returns the "set-field" subcommand.
func SetFieldCommand() *cli.Command {
	var params setParams

	return &cli.Command{
		Name:    "set-field",
		Summary: "Write a value into a field on a page",
		Description: `Load a page, write a value into one of its fields, and close it.

The control path addresses the field within the form, as printed by
describe-page for fields (the field name) or as a slash-separated path
for controls nested in repeaters. The value is committed immediately;
a rejection by server-side validation exits with code 2.

The value argument is sent as a string unless --raw is given, in which
case it is parsed as a JSON literal first (so 42 arrives as a number
and true as a boolean).`,
		Usage: "ledgerglass set-field <page> <control-path> <value> [flags]",
		Examples: []cli.Example{
			{
				Description: "Set a text field",
				Command:     "ledgerglass set-field customer-card Name 'Evergreen Bikes' --config ./ledgerglass.yaml",
			},
			{
				Description: "Set a decimal field with a typed value",
				Command:     "ledgerglass set-field item-card UnitPrice 12.50 --raw --config ./ledgerglass.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("set-field", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			usage := "ledgerglass set-field <page> <control-path> <value> [flags]"
			if err := requireArgs(usage, args, 3); err != nil {
				return err
			}

			var value any = args[2]
			if params.RawValue {
				if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
					return fmt.Errorf("--raw value is not a JSON literal: %w", err)
				}
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

			if _, err := loader.SetField(ctx, pageID, args[1], value); err != nil {
				return serverRejection(err)
			}

			if err := loader.ClosePage(ctx, pageID); err != nil {
				return serverRejection(err)
			}

			if done, err := params.EmitJSON(map[string]string{
				"page":    pageID,
				"control": args[1],
				"status":  "written",
			}); done {
				return err
			}

			fmt.Printf("Wrote %s on page %s\n", args[1], pageID)
			return nil
		},
	}
}
