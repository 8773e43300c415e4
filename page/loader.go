// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package page turns the server's form protocol into page descriptors
// and mutations an agent can use. Loading a page is a fixed sequence:
// open the page's shell form, discover its sub-forms, load the
// eligible ones, and aggregate fields, actions, and permissions from
// every tree received.
//
// The package is organized around that sequence:
//
//   - loader.go: Loader, the open/load/aggregate sequence
//   - aggregate.go: descriptor aggregation over form trees
//   - descriptor.go: Descriptor, Field, Action, field type mapping
//   - registry.go: logical page ↔ server form bindings, openForms order
//   - mutate.go: SetField, InvokeAction, ClosePage
//   - errors.go: ValidationError, BusinessLogicError
//
// A Loader owns its registry and loads strictly sequentially. Server
// form ids are meaningless outside the session that issued them, so a
// Loader is bound to one session for its lifetime.
package page

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ledgerglass/ledgerglass/form"
	"github.com/ledgerglass/ledgerglass/lib/clock"
	"github.com/ledgerglass/ledgerglass/wire"
)

// Invoker sends one interaction and returns its completed response.
// *session.Session implements it; tests substitute scripted fakes.
type Invoker interface {
	Invoke(ctx context.Context, interaction wire.Interaction) (*wire.Response, error)
}

// Config configures a Loader. Invoker is required; everything else has
// a usable default.
type Config struct {
	// Invoker carries interactions to the server.
	Invoker Invoker

	// Policy decides which discovered sub-forms to load. Defaults to
	// form.StandardLoadPolicy.
	Policy form.LoadPolicy

	// Clock supplies telemetry timestamps. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives load progress logs. Defaults to slog.Default().
	Logger *slog.Logger

	// OpenInteraction is the interaction kind that opens a page.
	// Defaults to OpenForm. Swappable because some server builds only
	// populate navigation state for menu-driven opens.
	OpenInteraction string
}

// Loader loads pages over one session and tracks the form each loaded
// page is bound to. Not safe for concurrent use; a loader loads
// strictly sequentially.
type Loader struct {
	invoker         Invoker
	policy          form.LoadPolicy
	clock           clock.Clock
	logger          *slog.Logger
	openInteraction string
	registry        *Registry
}

// NewLoader builds a Loader from config.
func NewLoader(config Config) (*Loader, error) {
	if config.Invoker == nil {
		return nil, fmt.Errorf("page: invoker is required")
	}
	policy := config.Policy
	if policy == nil {
		policy = form.StandardLoadPolicy{}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	openInteraction := config.OpenInteraction
	if openInteraction == "" {
		openInteraction = wire.InteractionOpenForm
	}
	return &Loader{
		invoker:         config.Invoker,
		policy:          policy,
		clock:           clk,
		logger:          logger,
		openInteraction: openInteraction,
		registry:        NewRegistry(),
	}, nil
}

// loadFormParameters is the canonical LoadForm parameter shape.
type loadFormParameters struct {
	Delayed  bool `json:"delayed"`
	OpenForm bool `json:"openForm"`
	LoadData bool `json:"loadData"`
}

// LoadPage opens the page, loads its eligible sub-forms, and returns
// the aggregated descriptor. On success the page's shell form binding
// is recorded; on any failure nothing is recorded and no partial
// descriptor is returned.
//
// A shell form id already bound to a different logical page is a
// *wire.ProtocolError: the server silently reuses cached forms under
// certain navigation patterns, and proceeding would label another
// page's data with this page id.
func (l *Loader) LoadPage(ctx context.Context, pageID string) (*Descriptor, error) {
	if pageID == "" {
		return nil, &ValidationError{Reason: "page id is required"}
	}

	l.logger.Debug("opening page", "page_id", pageID, "interaction", l.openInteraction)
	response, err := l.invoker.Invoke(ctx, wire.Interaction{
		Name:       l.openInteraction,
		Parameters: map[string]string{"page": pageID},
		OpenForms:  l.registry.OpenFormIDs(),
	})
	if err != nil {
		return nil, err
	}
	if err := rejectionError(pageID, response); err != nil {
		return nil, err
	}

	root, err := form.RootFromResponse(response)
	if err != nil {
		return nil, err
	}
	hierarchy, err := form.Extract(root)
	if err != nil {
		return nil, err
	}

	if bound, ok := l.registry.PageID(hierarchy.ShellID); ok && bound != pageID {
		return nil, &wire.ProtocolError{
			Op:     "open-page",
			FormID: hierarchy.ShellID,
			Reason: fmt.Sprintf("server returned a form bound to page %q while opening %q; refusing stale cached form", bound, pageID),
		}
	}

	l.logger.Debug("shell received",
		"page_id", pageID,
		"form_id", hierarchy.ShellID,
		"sub_forms", len(hierarchy.SubForms),
	)

	// The shell form is open server-side from here on, so sub-form
	// loads echo it alongside the previously bound forms.
	openForms := appendFormID(l.registry.OpenFormIDs(), hierarchy.ShellID)

	var loaded []*form.Node
	for _, subForm := range hierarchy.SubForms {
		if !l.policy.ShouldLoad(subForm.Container, subForm.Form) {
			l.logger.Debug("skipping sub-form", "page_id", pageID, "form_id", subForm.ServerID)
			continue
		}
		tree, err := l.loadSubForm(ctx, pageID, subForm.ServerID, openForms)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, tree)
	}

	descriptor := aggregate(pageID, hierarchy, loaded)
	if err := l.registry.Bind(pageID, hierarchy.ShellID); err != nil {
		return nil, err
	}

	l.logger.Info("page loaded",
		"page_id", pageID,
		"form_id", hierarchy.ShellID,
		"fields", len(descriptor.Fields),
		"actions", len(descriptor.Actions),
	)
	return descriptor, nil
}

// loadSubForm requests one delayed sub-form and returns its tree.
func (l *Loader) loadSubForm(ctx context.Context, pageID, formID string, openForms []string) (*form.Node, error) {
	l.logger.Debug("loading sub-form", "page_id", pageID, "form_id", formID)
	response, err := l.invoker.Invoke(ctx, wire.Interaction{
		Name:       wire.InteractionLoadForm,
		Parameters: loadFormParameters{Delayed: true, OpenForm: true, LoadData: true},
		FormID:     formID,
		OpenForms:  openForms,
	})
	if err != nil {
		return nil, err
	}
	if err := rejectionError(pageID, response); err != nil {
		return nil, err
	}
	return form.RootFromResponse(response)
}

// rejectionError inspects a response for a server-side rejection: a
// ShowError event or a completion flagged unsuccessful.
func rejectionError(pageID string, response *wire.Response) error {
	if event, err := response.Event(wire.EventShowError); err == nil {
		var payload struct {
			Message string `json:"message"`
			Details string `json:"details"`
		}
		if len(event.Payload) > 0 {
			// A malformed error payload still signals rejection; the
			// message just stays empty.
			_ = json.Unmarshal(event.Payload, &payload)
		}
		return &BusinessLogicError{PageID: pageID, Message: payload.Message, Details: payload.Details}
	}
	if callback, ok := response.Callback(); ok && !callback.Success {
		return &BusinessLogicError{PageID: pageID, Message: "server reported the interaction failed"}
	}
	return nil
}

// appendFormID appends id unless already present, preserving order.
func appendFormID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
