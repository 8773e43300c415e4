// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/ledgerglass/ledgerglass/cmd/ledgerglass/cli"
	"github.com/ledgerglass/ledgerglass/form"
	"github.com/ledgerglass/ledgerglass/page"
)

// describeParams holds the parameters for describe-page.
type describeParams struct {
	cli.SessionConfig
	cli.JSONOutput
}

// DescribeCommand returns the "describe-page" subcommand.
func DescribeCommand() *cli.Command {
	var params describeParams

	return &cli.Command{
		Name:    "describe-page",
		Summary: "Load a page and print its fields, actions, and permissions",
		Description: `Load a page and print its aggregated metadata.

The page is opened in a fresh session, its delayed sub-forms are loaded,
and the resulting fields, actions, and permission flags are printed.
The page argument is a logical page id, or an alias from the config
file's pages map.

Fields reflect what the server actually sent for this user, locale, and
viewport: hidden controls and system-internal attributes are excluded,
and disabled actions are listed with enabled=false.`,
		Usage: "ledgerglass describe-page <page> [flags]",
		Examples: []cli.Example{
			{
				Description: "Describe a page by logical id",
				Command:     "ledgerglass describe-page 21 --base-url https://erp.example.com --tenant alpine --username svc-reader",
			},
			{
				Description: "Describe a page by configured alias, as JSON",
				Command:     "ledgerglass describe-page customer-card --config ./ledgerglass.yaml --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("describe-page", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			usage := "ledgerglass describe-page <page> [flags]"
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

			descriptor, err := loader.LoadPage(ctx, cfg.ResolvePage(args[0]))
			if err != nil {
				return serverRejection(err)
			}

			if done, err := params.EmitJSON(descriptor); done {
				return err
			}

			printDescriptor(descriptor)
			return nil
		},
	}
}

// printDescriptor renders a descriptor as aligned text.
func printDescriptor(descriptor *page.Descriptor) {
	fmt.Printf("Page: %s\n", descriptor.PageID)
	if descriptor.Caption != "" {
		fmt.Printf("Caption: %s\n", descriptor.Caption)
	}
	fmt.Printf("Form: %s\n", descriptor.FormID)
	fmt.Printf("Permissions: %s\n\n", permissionList(descriptor.Permissions))

	fmt.Printf("Fields (%d):\n", len(descriptor.Fields))
	writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "  NAME\tCAPTION\tTYPE\tEDITABLE\tREQUIRED")
	for _, field := range descriptor.Fields {
		fmt.Fprintf(writer, "  %s\t%s\t%s\t%v\t%v\n",
			field.Name, field.Caption, field.Type, field.Editable, field.Required)
	}
	writer.Flush()

	fmt.Printf("\nActions (%d):\n", len(descriptor.Actions))
	writer = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "  NAME\tCAPTION\tENABLED\tCODE")
	for _, action := range descriptor.Actions {
		code := ""
		if action.Code != 0 {
			code = fmt.Sprintf("%d", action.Code)
		}
		fmt.Fprintf(writer, "  %s\t%s\t%v\t%s\n",
			action.Name, action.Caption, action.Enabled, code)
	}
	writer.Flush()
}

// permissionList renders permission flags as a comma list, "none" when
// every flag is off.
func permissionList(permissions form.Permissions) string {
	var granted []string
	if permissions.Insert {
		granted = append(granted, "insert")
	}
	if permissions.Modify {
		granted = append(granted, "modify")
	}
	if permissions.Delete {
		granted = append(granted, "delete")
	}
	if permissions.ReadOnly {
		granted = append(granted, "read-only")
	}
	if len(granted) == 0 {
		return "none"
	}
	return strings.Join(granted, ", ")
}
