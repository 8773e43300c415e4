// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package form

import (
	"github.com/ledgerglass/ledgerglass/wire"
)

// SubForm is one nested form embedded in a page shell.
type SubForm struct {
	// ServerID is the nested form's server-assigned id, used to
	// address it in follow-up interactions.
	ServerID string

	// Container is the shell child the nested form is embedded in.
	// Load-relevant attributes (visibility, expression properties)
	// live here, not on the form itself.
	Container *Node

	// Form is the embedded form node, possibly a stub whose content
	// the server withheld.
	Form *Node
}

// Hierarchy is the one-level sub-form structure of a page shell: the
// shell's own id and every nested form found at the fixed embedding
// depth. The server embeds nested forms as the first child of a shell
// child container; deeper nesting arrives only after those forms are
// loaded in turn.
type Hierarchy struct {
	// ShellID is the page shell's server form id.
	ShellID string

	// Shell is the shell's root node.
	Shell *Node

	// SubForms holds the embedded forms in shell display order, with
	// duplicate server ids dropped after their first embedding.
	SubForms []SubForm
}

// RootFromResponse locates the form hierarchy root delivered by a
// response: the first ShowForm or ChangeForm event whose payload is a
// form root. A response without one is a *wire.ParseError listing the
// handlers actually present.
func RootFromResponse(response *wire.Response) (*Node, error) {
	for _, name := range []string{wire.EventShowForm, wire.EventChangeForm} {
		for _, event := range response.Events(name) {
			if len(event.Payload) == 0 {
				continue
			}
			node, err := ParseNode(event.Payload)
			if err != nil {
				return nil, err
			}
			if node.IsFormRoot() {
				return node, nil
			}
		}
	}
	return nil, &wire.ParseError{
		What:    "form hierarchy root",
		Present: response.Present(),
	}
}

// Extract computes the one-level sub-form structure of a shell. The
// root must be a form root; anything else is a *wire.ParseError.
func Extract(root *Node) (*Hierarchy, error) {
	if !root.IsFormRoot() {
		return nil, &wire.ParseError{
			What:   "form hierarchy root",
			Reason: "node lacks a server id or a controls collection",
		}
	}
	hierarchy := &Hierarchy{ShellID: root.ID, Shell: root}
	seen := map[string]bool{root.ID: true}
	for _, container := range root.Controls {
		if container == nil || len(container.Controls) == 0 {
			continue
		}
		embedded := container.Controls[0]
		if embedded == nil || embedded.ID == "" {
			continue
		}
		// The server occasionally embeds the same nested form under
		// two containers; the first embedding wins.
		if seen[embedded.ID] {
			continue
		}
		seen[embedded.ID] = true
		hierarchy.SubForms = append(hierarchy.SubForms, SubForm{
			ServerID:  embedded.ID,
			Container: container,
			Form:      embedded,
		})
	}
	return hierarchy, nil
}
