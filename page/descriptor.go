// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"github.com/ledgerglass/ledgerglass/form"
)

// FieldType is the semantic type of a field descriptor, mapped down
// from the server's wire data types.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldInteger     FieldType = "integer"
	FieldDecimal     FieldType = "decimal"
	FieldBoolean     FieldType = "boolean"
	FieldDate        FieldType = "date"
	FieldDateTime    FieldType = "datetime"
	FieldTime        FieldType = "time"
	FieldPercentage  FieldType = "percentage"
	FieldOption      FieldType = "option"
	FieldMultiSelect FieldType = "multiselect"
)

// fieldTypes maps wire data types to semantic field types. A wire type
// absent from this map is not a user-facing data field and produces no
// descriptor.
var fieldTypes = map[string]FieldType{
	"Text":        FieldText,
	"Code":        FieldText,
	"Integer":     FieldInteger,
	"BigInteger":  FieldInteger,
	"Decimal":     FieldDecimal,
	"Boolean":     FieldBoolean,
	"Date":        FieldDate,
	"DateTime":    FieldDateTime,
	"Time":        FieldTime,
	"Percentage":  FieldPercentage,
	"Option":      FieldOption,
	"MultiSelect": FieldMultiSelect,
}

// Field describes one user-visible data control of a page.
type Field struct {
	// Name is the control's stable programmatic name, unique within
	// the descriptor.
	Name string `json:"name"`

	// Caption is the display label. Falls back to Name when the server
	// sent no caption.
	Caption string `json:"caption"`

	// Type is the semantic field type.
	Type FieldType `json:"type"`

	// Editable is false for calculated and read-only fields, which
	// remain part of the page.
	Editable bool `json:"editable"`

	// Required marks a field the server validates as mandatory.
	Required bool `json:"required,omitempty"`

	// Options lists the choices of an option or multi-select field.
	Options []string `json:"options,omitempty"`
}

// Action describes one action control of a page. Disabled actions are
// described too; whether an action is currently invocable is state,
// not structure.
type Action struct {
	// Name is the control's stable programmatic name.
	Name string `json:"name"`

	// Caption is the display label. Falls back to Name.
	Caption string `json:"caption"`

	// Enabled reports whether the server would accept an invocation
	// right now.
	Enabled bool `json:"enabled"`

	// Code is the numeric invocation code, 0 when the server assigned
	// none. Invocation prefers the code over the name.
	Code int `json:"code,omitempty"`
}

// Descriptor is the aggregated metadata of one loaded page: what an
// agent may read, edit, and invoke. Field order is the encounter order
// of the walk over the shell and its loaded sub-forms, so output is
// deterministic for a given server response.
type Descriptor struct {
	// PageID is the logical page id the descriptor was loaded for.
	PageID string `json:"pageId"`

	// FormID is the server-assigned shell form id backing the page.
	// Valid only within the session that loaded it.
	FormID string `json:"formId"`

	// Caption is the page title.
	Caption string `json:"caption"`

	// Fields lists the user-visible data controls, deduplicated by
	// name.
	Fields []Field `json:"fields"`

	// Actions lists the action controls, enabled and disabled alike.
	Actions []Action `json:"actions"`

	// Permissions is the record permission set of the page.
	Permissions form.Permissions `json:"permissions"`
}

// Field returns the named field descriptor.
func (d *Descriptor) Field(name string) (*Field, bool) {
	for index := range d.Fields {
		if d.Fields[index].Name == name {
			return &d.Fields[index], true
		}
	}
	return nil, false
}

// Action returns the named action descriptor.
func (d *Descriptor) Action(name string) (*Action, bool) {
	for index := range d.Actions {
		if d.Actions[index].Name == name {
			return &d.Actions[index], true
		}
	}
	return nil, false
}
