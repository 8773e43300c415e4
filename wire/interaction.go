// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the client-server wire protocol spoken by the
// host ERP application over its duplex connection. The protocol is not
// publicly documented; the shapes here were reconstructed from captured
// traffic of the official client and tolerate the variants observed
// across server builds.
//
// The package is organized around the protocol data flow:
//
//   - interaction.go: client-to-server interaction envelopes
//   - response.go: server-to-client response envelopes and payload compression
//   - handlers.go: positional handler arrays and their typed decodings
//   - errors.go: protocol violation and response parse errors
package wire

import (
	"encoding/json"
	"fmt"
)

// Interaction kind constants. The kind names the remote procedure the
// server executes; each kind fixes the shape of the parameters object
// that accompanies it.
const (
	// InteractionOpenSession establishes the logical application session
	// on a fresh connection. Parameters carry the client descriptor.
	// Must be the first interaction on every connection.
	InteractionOpenSession = "OpenSession"

	// InteractionOpenForm opens a logical page and returns its form
	// hierarchy. Parameters carry the page identifier.
	InteractionOpenForm = "OpenForm"

	// InteractionLoadForm requests the deferred content of a nested
	// form that the server delivered as a stub inside a parent
	// hierarchy. The envelope's formId addresses the nested form.
	InteractionLoadForm = "LoadForm"

	// InteractionSaveValue writes a field value. Parameters are a
	// pre-serialized JSON string rather than an object; the server
	// rejects the object form.
	InteractionSaveValue = "SaveValue"

	// InteractionInvokeAction triggers a command on an open form.
	// Parameters carry the action code or name and an optional row key.
	InteractionInvokeAction = "InvokeAction"

	// InteractionCloseForm releases an open form on the server.
	InteractionCloseForm = "CloseForm"
)

// Interaction is a single remote procedure call to the application
// server. The zero value is not valid: Name is required, and CallbackID
// is assigned by the session immediately before transmission.
type Interaction struct {
	// Name is the interaction kind, one of the Interaction* constants.
	Name string

	// Parameters is the kind-specific argument payload. Most kinds use
	// a JSON object; SaveValue requires a pre-serialized JSON string.
	// Nil omits the field from the envelope.
	Parameters any

	// FormID addresses a server-side form instance. Empty for
	// interactions that are not form-scoped (OpenSession, OpenForm).
	FormID string

	// ControlPath addresses a control within the form, as a
	// slash-separated path of control names. Empty when the interaction
	// targets the form as a whole.
	ControlPath string

	// CallbackID correlates the server's completion handler with this
	// interaction. Assigned by the session; strictly increasing within
	// a connection.
	CallbackID uint64

	// OpenForms echoes the server form ids the client currently holds
	// open. The server validates this list against its own form stack,
	// so it must be deduplicated and complete.
	OpenForms []string
}

// interactionEnvelope is the JSON shape of an interaction on the wire.
// The official client always sends formId and controlPath, empty or
// not, so they carry no omitempty.
type interactionEnvelope struct {
	Interaction string   `json:"interaction"`
	Parameters  any      `json:"parameters,omitempty"`
	FormID      string   `json:"formId"`
	ControlPath string   `json:"controlPath"`
	CallbackID  uint64   `json:"callbackId"`
	OpenForms   []string `json:"openForms"`
}

// EncodeInteraction serializes an interaction into its wire envelope.
// A nil OpenForms slice is sent as an empty array; the server rejects
// envelopes where the field is null or absent.
func EncodeInteraction(interaction Interaction) ([]byte, error) {
	if interaction.Name == "" {
		return nil, fmt.Errorf("wire: encoding interaction: empty interaction name")
	}
	envelope := interactionEnvelope{
		Interaction: interaction.Name,
		Parameters:  interaction.Parameters,
		FormID:      interaction.FormID,
		ControlPath: interaction.ControlPath,
		CallbackID:  interaction.CallbackID,
		OpenForms:   interaction.OpenForms,
	}
	if envelope.OpenForms == nil {
		envelope.OpenForms = []string{}
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding %s interaction: %w", interaction.Name, err)
	}
	return data, nil
}

// DecodeInteraction parses a wire envelope back into an Interaction.
// Parameters are preserved as raw JSON. Used by test servers and
// traffic inspection tooling; the client itself only encodes.
func DecodeInteraction(data []byte) (*Interaction, error) {
	var envelope struct {
		Interaction string          `json:"interaction"`
		Parameters  json.RawMessage `json:"parameters"`
		FormID      string          `json:"formId"`
		ControlPath string          `json:"controlPath"`
		CallbackID  uint64          `json:"callbackId"`
		OpenForms   []string        `json:"openForms"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("wire: decoding interaction envelope: %w", err)
	}
	if envelope.Interaction == "" {
		return nil, fmt.Errorf("wire: decoding interaction envelope: empty interaction name")
	}
	interaction := &Interaction{
		Name:        envelope.Interaction,
		FormID:      envelope.FormID,
		ControlPath: envelope.ControlPath,
		CallbackID:  envelope.CallbackID,
		OpenForms:   envelope.OpenForms,
	}
	if len(envelope.Parameters) > 0 {
		interaction.Parameters = envelope.Parameters
	}
	return interaction, nil
}
