// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package form models the server's form hierarchies: the recursive
// control trees delivered by ShowForm events. It parses nodes from
// their wire shape, walks trees iteratively, extracts the one-level
// sub-form structure of a page shell, and classifies which embedded
// sub-forms need a follow-up load.
package form

import (
	"encoding/json"

	"github.com/ledgerglass/ledgerglass/wire"
)

// ControlType discriminates the node kinds that appear in a form
// hierarchy.
type ControlType string

// Control type constants as they appear on the wire.
const (
	ControlForm     ControlType = "Form"
	ControlGroup    ControlType = "Group"
	ControlPart     ControlType = "Part"
	ControlField    ControlType = "Field"
	ControlAction   ControlType = "Action"
	ControlRepeater ControlType = "Repeater"
)

// Permissions is the record-level permission block the server attaches
// to form roots.
type Permissions struct {
	Insert   bool `json:"insert"`
	Modify   bool `json:"modify"`
	Delete   bool `json:"delete"`
	ReadOnly bool `json:"readOnly"`
}

// Node is one control in a form hierarchy. The server omits attributes
// at their defaults, so tri-state attributes (visible, editable,
// enabled) are pointers: nil means the default, which for all three is
// true. Use the Is* accessors rather than reading the pointers.
type Node struct {
	// ID is the server-assigned form id. Only form roots carry one.
	ID string `json:"id,omitempty"`

	// Name is the control's stable programmatic name.
	Name string `json:"name,omitempty"`

	// Caption is the display label.
	Caption string `json:"caption,omitempty"`

	// Type is the control kind.
	Type ControlType `json:"type,omitempty"`

	// Visible is nil when the server omitted the attribute (visible).
	Visible *bool `json:"visible,omitempty"`

	// DelayedControls marks a form whose content the server withheld
	// pending an explicit load.
	DelayedControls bool `json:"delayedControls,omitempty"`

	// ExpressionProperties marks a container whose attributes are
	// recomputed server-side, which forces a load of its sub-form.
	ExpressionProperties bool `json:"expressionProperties,omitempty"`

	// Controls holds the child nodes in display order.
	Controls []*Node `json:"controls,omitempty"`

	// DataType is the field's wire data type, such as "Text" or
	// "Decimal". Empty on non-field controls.
	DataType string `json:"dataType,omitempty"`

	// Editable is nil when the server omitted the attribute (editable).
	// Calculated fields arrive with editable=false but remain part of
	// the page.
	Editable *bool `json:"editable,omitempty"`

	// Required marks a field the server validates as mandatory.
	Required bool `json:"required,omitempty"`

	// Options lists the choices of an option or multi-select field.
	Options []string `json:"options,omitempty"`

	// ActionCode is the numeric command code of an action control.
	ActionCode int `json:"actionCode,omitempty"`

	// Enabled is nil when the server omitted the attribute (enabled).
	// A disabled control is rendered grayed out by the official client.
	Enabled *bool `json:"enabled,omitempty"`

	// Permissions is the record permission block. Form roots only.
	Permissions *Permissions `json:"permissions,omitempty"`
}

// ParseNode decodes a form node tree from its wire JSON.
func ParseNode(data []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, &wire.ParseError{What: "form node", Reason: err.Error()}
	}
	return &node, nil
}

// IsVisible reports the node's effective visibility. The server omits
// the attribute for visible controls.
func (n *Node) IsVisible() bool {
	return n.Visible == nil || *n.Visible
}

// IsEditable reports whether the field's value can be written.
func (n *Node) IsEditable() bool {
	return n.Editable == nil || *n.Editable
}

// IsEnabled reports whether the control is enabled.
func (n *Node) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

// IsFormRoot reports whether the node is a form hierarchy root: it
// carries a server id and a children collection. An empty but present
// children collection qualifies; an absent one does not.
func (n *Node) IsFormRoot() bool {
	return n != nil && n.ID != "" && n.Controls != nil
}
