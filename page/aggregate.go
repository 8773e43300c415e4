// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"slices"
	"strings"

	"github.com/ledgerglass/ledgerglass/form"
)

// systemAttributes are field names the server maintains internally:
// record identity, audit stamps, row version. They appear in form
// trees but are never part of the user-facing page. Matched
// case-insensitively.
var systemAttributes = map[string]struct{}{
	"systemid":         {},
	"systemcreatedat":  {},
	"systemcreatedby":  {},
	"systemmodifiedat": {},
	"systemmodifiedby": {},
	"systemrowversion": {},
	"timestamp":        {},
}

func isSystemAttribute(name string) bool {
	_, ok := systemAttributes[strings.ToLower(name)]
	return ok
}

// aggregate builds the descriptor for a shell and its loaded sub-form
// trees. Encounter order is the walk over the shell tree first, then
// each loaded tree in load order. Fields deduplicate by name with the
// first encounter winning; actions are taken as encountered. The
// permission set comes from the first tree that carries one.
func aggregate(pageID string, hierarchy *form.Hierarchy, loaded []*form.Node) *Descriptor {
	descriptor := &Descriptor{
		PageID:  pageID,
		FormID:  hierarchy.ShellID,
		Caption: hierarchy.Shell.Caption,
		Fields:  []Field{},
		Actions: []Action{},
	}

	seenFields := make(map[string]struct{})
	permissionsFound := false

	trees := append([]*form.Node{hierarchy.Shell}, loaded...)
	for _, tree := range trees {
		form.Walk(tree, func(node *form.Node) {
			if !permissionsFound && node.Permissions != nil {
				descriptor.Permissions = *node.Permissions
				permissionsFound = true
			}

			switch node.Type {
			case form.ControlField:
				field, ok := fieldDescriptor(node)
				if !ok {
					return
				}
				if _, dup := seenFields[field.Name]; dup {
					return
				}
				seenFields[field.Name] = struct{}{}
				descriptor.Fields = append(descriptor.Fields, field)

			case form.ControlAction:
				if action, ok := actionDescriptor(node); ok {
					descriptor.Actions = append(descriptor.Actions, action)
				}
			}
		})
	}

	return descriptor
}

// fieldDescriptor converts a field control into a descriptor. Controls
// with no name, an unmapped data type, hidden or disabled state, or a
// system-internal name describe nothing an agent may use.
func fieldDescriptor(node *form.Node) (Field, bool) {
	if node.Name == "" {
		return Field{}, false
	}
	fieldType, known := fieldTypes[node.DataType]
	if !known {
		return Field{}, false
	}
	if !node.IsVisible() || !node.IsEnabled() {
		return Field{}, false
	}
	if isSystemAttribute(node.Name) {
		return Field{}, false
	}

	caption := node.Caption
	if caption == "" {
		caption = node.Name
	}
	return Field{
		Name:     node.Name,
		Caption:  caption,
		Type:     fieldType,
		Editable: node.IsEditable(),
		Required: node.Required,
		Options:  slices.Clone(node.Options),
	}, true
}

// actionDescriptor converts an action control into a descriptor.
// Hidden actions are skipped; disabled ones are kept, with Enabled
// false.
func actionDescriptor(node *form.Node) (Action, bool) {
	if node.Name == "" || !node.IsVisible() {
		return Action{}, false
	}
	caption := node.Caption
	if caption == "" {
		caption = node.Name
	}
	return Action{
		Name:    node.Name,
		Caption: caption,
		Enabled: node.IsEnabled(),
		Code:    node.ActionCode,
	}, true
}
