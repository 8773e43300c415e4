// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/google/uuid"

	"github.com/ledgerglass/ledgerglass/lib/secret"
)

// Credentials identifies a user to the sign-in endpoint. The password
// travels in a secret buffer and is only rendered to a string at the
// form-encoding boundary.
type Credentials struct {
	// Username is the account name as entered in the login form.
	Username string

	// Password is the account password. The Buffer is read but not
	// closed; the caller retains ownership.
	Password *secret.Buffer
}

// ClientDescriptor describes the client to the server when the
// application session opens. The server uses it to choose layout
// variants and localization; the values do not otherwise change
// behavior.
type ClientDescriptor struct {
	// ClientType is the client surface identifier.
	ClientType string

	// Locale is an IETF language tag, such as "en-US".
	Locale string

	// TimeZone is an IANA time zone name, such as "Europe/Berlin".
	TimeZone string

	// ViewportWidth and ViewportHeight are the nominal viewport in
	// pixels. The server prunes some layout-only controls for small
	// viewports, so the values here change discovered hierarchies.
	ViewportWidth  int
	ViewportHeight int

	// DeviceID identifies this client installation across sessions.
	// A fresh UUID per session is accepted by all observed builds.
	DeviceID string
}

// DefaultDescriptor returns the descriptor used when the caller does
// not override one: a desktop-sized agent client with a fresh device
// id.
func DefaultDescriptor() ClientDescriptor {
	return ClientDescriptor{
		ClientType:     "Agent",
		Locale:         "en-US",
		TimeZone:       "UTC",
		ViewportWidth:  1440,
		ViewportHeight: 900,
		DeviceID:       uuid.NewString(),
	}
}

// openSessionParameters is the wire shape of OpenSession parameters.
type openSessionParameters struct {
	ClientType string   `json:"clientType"`
	Locale     string   `json:"locale"`
	TimeZone   string   `json:"timeZone"`
	Viewport   viewport `json:"viewport"`
	DeviceID   string   `json:"deviceId"`
	Company    string   `json:"company,omitempty"`
	Tenant     string   `json:"tenant"`
}

type viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// parameters assembles the wire parameters for this descriptor,
// filling in the session's tenant and company.
func (d ClientDescriptor) parameters(tenant, company string) openSessionParameters {
	descriptor := d
	if descriptor.ClientType == "" {
		descriptor.ClientType = "Agent"
	}
	if descriptor.DeviceID == "" {
		descriptor.DeviceID = uuid.NewString()
	}
	return openSessionParameters{
		ClientType: descriptor.ClientType,
		Locale:     descriptor.Locale,
		TimeZone:   descriptor.TimeZone,
		Viewport:   viewport{Width: descriptor.ViewportWidth, Height: descriptor.ViewportHeight},
		DeviceID:   descriptor.DeviceID,
		Company:    company,
		Tenant:     tenant,
	}
}

// Info holds the artifacts of an initialized application session, from
// the SessionInitialized acknowledgement.
type Info struct {
	// SessionID is the server's id for the logical session.
	SessionID string `json:"sessionId"`

	// SessionKey is an opaque token some builds echo; this client
	// stores it but has no further use for it.
	SessionKey string `json:"sessionKey"`

	// Company is the company the session resolved to.
	Company string `json:"company"`
}
