// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/ledgerglass/ledgerglass/wire"
)

// invokeStep is one scripted reply from the fake server.
type invokeStep struct {
	response *wire.Response
	err      error
}

// fakeInvoker replays scripted steps in order and records every
// interaction it was handed.
type fakeInvoker struct {
	steps []invokeStep
	sent  []wire.Interaction
}

func (f *fakeInvoker) Invoke(_ context.Context, interaction wire.Interaction) (*wire.Response, error) {
	f.sent = append(f.sent, interaction)
	if len(f.steps) == 0 {
		return nil, fmt.Errorf("unscripted interaction %q", interaction.Name)
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	return step.response, step.err
}

// showFormResponse wraps a form tree in the ShowForm event plus a
// successful completion, the shape of a normal open or load reply.
func showFormResponse(callbackID uint64, formID, tree string) *wire.Response {
	return &wire.Response{
		Sequence: int64(callbackID),
		Handlers: []wire.Handler{
			&wire.EventRaised{Name: wire.EventShowForm, Payload: json.RawMessage(tree)},
			&wire.CallbackComplete{CallbackID: callbackID, FormID: formID, Success: true},
		},
	}
}

// showErrorResponse is a server rejection with a message payload.
func showErrorResponse(callbackID uint64, message string) *wire.Response {
	payload := fmt.Sprintf(`{"message":%q,"details":"request id 7f3a"}`, message)
	return &wire.Response{
		Sequence: int64(callbackID),
		Handlers: []wire.Handler{
			&wire.EventRaised{Name: wire.EventShowError, Payload: json.RawMessage(payload)},
			&wire.CallbackComplete{CallbackID: callbackID, Success: false},
		},
	}
}

// customerShell has one delayed sub-form behind a visible container
// and one static sub-form that must not be loaded.
const customerShell = `{
	"id": "shell-1",
	"caption": "Customer Card",
	"type": "Form",
	"permissions": {"insert": true, "modify": true, "delete": false, "readOnly": false},
	"controls": [
		{"name": "General", "type": "Group", "controls": [
			{"id": "sub-general", "type": "Form", "delayedControls": true}
		]},
		{"name": "No", "caption": "No.", "type": "Field", "dataType": "Code"},
		{"name": "Name", "caption": "Name", "type": "Field", "dataType": "Text"},
		{"name": "Footnote", "type": "Group", "controls": [
			{"id": "sub-static", "type": "Form"}
		]}
	]
}`

const customerSubGeneral = `{
	"id": "sub-general",
	"type": "Form",
	"controls": [
		{"name": "Balance", "caption": "Balance (LCY)", "type": "Field", "dataType": "Decimal", "editable": false},
		{"name": "Name", "caption": "Shadowed Name", "type": "Field", "dataType": "Text"},
		{"name": "SystemId", "type": "Field", "dataType": "Text"},
		{"name": "Post", "caption": "Post", "type": "Action", "actionCode": 42}
	]
}`

func newTestLoader(t *testing.T, invoker Invoker) *Loader {
	t.Helper()
	loader, err := NewLoader(Config{Invoker: invoker})
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	return loader
}

func TestNewLoaderRequiresInvoker(t *testing.T) {
	t.Parallel()
	if _, err := NewLoader(Config{}); err == nil {
		t.Fatal("expected error for missing invoker")
	}
}

func TestLoadPage(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{steps: []invokeStep{
		{response: showFormResponse(1, "shell-1", customerShell)},
		{response: showFormResponse(2, "sub-general", customerSubGeneral)},
	}}
	loader := newTestLoader(t, invoker)

	descriptor, err := loader.LoadPage(context.Background(), "21")
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	if descriptor.PageID != "21" || descriptor.FormID != "shell-1" {
		t.Errorf("descriptor identity = %q/%q, want 21/shell-1", descriptor.PageID, descriptor.FormID)
	}
	if descriptor.Caption != "Customer Card" {
		t.Errorf("Caption = %q, want %q", descriptor.Caption, "Customer Card")
	}

	// The static sub-form is skipped, so exactly two interactions went
	// out: the open and one sub-form load.
	if len(invoker.sent) != 2 {
		t.Fatalf("sent %d interactions, want 2: %+v", len(invoker.sent), invoker.sent)
	}

	open := invoker.sent[0]
	if open.Name != wire.InteractionOpenForm {
		t.Errorf("first interaction = %q, want %q", open.Name, wire.InteractionOpenForm)
	}
	if parameters, err := json.Marshal(open.Parameters); err != nil || string(parameters) != `{"page":"21"}` {
		t.Errorf("open parameters = %s, want {\"page\":\"21\"}", parameters)
	}
	if len(open.OpenForms) != 0 {
		t.Errorf("open echoed forms %v, want none", open.OpenForms)
	}

	load := invoker.sent[1]
	if load.Name != wire.InteractionLoadForm {
		t.Errorf("second interaction = %q, want %q", load.Name, wire.InteractionLoadForm)
	}
	if load.FormID != "sub-general" {
		t.Errorf("load form id = %q, want %q", load.FormID, "sub-general")
	}
	if parameters, err := json.Marshal(load.Parameters); err != nil || string(parameters) != `{"delayed":true,"openForm":true,"loadData":true}` {
		t.Errorf("load parameters = %s", parameters)
	}
	if !slices.Equal(load.OpenForms, []string{"shell-1"}) {
		t.Errorf("load echoed forms %v, want [shell-1]", load.OpenForms)
	}

	// Shell fields first, then the loaded sub-form's, deduplicated.
	gotNames := make([]string, len(descriptor.Fields))
	for index, field := range descriptor.Fields {
		gotNames[index] = field.Name
	}
	if want := []string{"No", "Name", "Balance"}; !slices.Equal(gotNames, want) {
		t.Errorf("field names = %v, want %v", gotNames, want)
	}
	if name, _ := descriptor.Field("Name"); name.Caption != "Name" {
		t.Errorf("duplicated field kept caption %q, want the shell's", name.Caption)
	}
	if len(descriptor.Actions) != 1 || descriptor.Actions[0].Code != 42 {
		t.Errorf("Actions = %+v, want the Post action", descriptor.Actions)
	}

	// Success records the binding.
	if formID, ok := loader.registry.FormID("21"); !ok || formID != "shell-1" {
		t.Errorf("binding = %q, %v; want shell-1, true", formID, ok)
	}
}

func TestLoadPageShellOnly(t *testing.T) {
	t.Parallel()

	shell := `{
		"id": "shell-2",
		"caption": "Company Information",
		"type": "Form",
		"controls": [
			{"name": "Name", "caption": "Name", "type": "Field", "dataType": "Text"}
		]
	}`
	invoker := &fakeInvoker{steps: []invokeStep{
		{response: showFormResponse(1, "shell-2", shell)},
	}}
	loader := newTestLoader(t, invoker)

	descriptor, err := loader.LoadPage(context.Background(), "1")
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if len(invoker.sent) != 1 {
		t.Errorf("sent %d interactions, want just the open", len(invoker.sent))
	}
	if len(descriptor.Fields) != 1 {
		t.Errorf("Fields = %+v, want the shell's single field", descriptor.Fields)
	}
}

func TestLoadPageRejected(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{steps: []invokeStep{
		{response: showErrorResponse(1, "You do not have permission to open Customer Card.")},
	}}
	loader := newTestLoader(t, invoker)

	_, err := loader.LoadPage(context.Background(), "21")
	var businessErr *BusinessLogicError
	if !errors.As(err, &businessErr) {
		t.Fatalf("expected BusinessLogicError, got %v", err)
	}
	if businessErr.PageID != "21" {
		t.Errorf("PageID = %q, want %q", businessErr.PageID, "21")
	}
	if businessErr.Message == "" {
		t.Error("rejection lost the server message")
	}
	if _, ok := loader.registry.FormID("21"); ok {
		t.Error("failed load still recorded a binding")
	}
}

func TestLoadPageFailedCallback(t *testing.T) {
	t.Parallel()

	// No ShowError event, just an unsuccessful completion.
	response := &wire.Response{
		Sequence: 1,
		Handlers: []wire.Handler{
			&wire.CallbackComplete{CallbackID: 1, Success: false},
		},
	}
	invoker := &fakeInvoker{steps: []invokeStep{{response: response}}}
	loader := newTestLoader(t, invoker)

	_, err := loader.LoadPage(context.Background(), "21")
	if !IsBusinessLogicError(err) {
		t.Fatalf("expected BusinessLogicError, got %v", err)
	}
}

func TestLoadPageCollision(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{steps: []invokeStep{
		{response: showFormResponse(1, "shell-1", customerShell)},
	}}
	loader := newTestLoader(t, invoker)

	// Another logical page already owns the form the server returned.
	if err := loader.registry.Bind("20", "shell-1"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	_, err := loader.LoadPage(context.Background(), "21")
	if !wire.IsProtocolError(err) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}

	// The stale binding stays; the failed load records nothing, and no
	// sub-form load was attempted.
	if pageID, _ := loader.registry.PageID("shell-1"); pageID != "20" {
		t.Errorf("PageID(shell-1) = %q, want the original binding 20", pageID)
	}
	if _, ok := loader.registry.FormID("21"); ok {
		t.Error("failed load recorded a binding for page 21")
	}
	if len(invoker.sent) != 1 {
		t.Errorf("sent %d interactions after collision, want 1", len(invoker.sent))
	}
}

func TestLoadPageReload(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{steps: []invokeStep{
		{response: showFormResponse(1, "shell-1", customerShell)},
		{response: showFormResponse(2, "sub-general", customerSubGeneral)},
		{response: showFormResponse(3, "shell-1", customerShell)},
		{response: showFormResponse(4, "sub-general", customerSubGeneral)},
	}}
	loader := newTestLoader(t, invoker)

	if _, err := loader.LoadPage(context.Background(), "21"); err != nil {
		t.Fatalf("first LoadPage failed: %v", err)
	}
	if _, err := loader.LoadPage(context.Background(), "21"); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	// The reload's open echoes the existing binding, and the binding
	// survives without duplication.
	reopen := invoker.sent[2]
	if !slices.Equal(reopen.OpenForms, []string{"shell-1"}) {
		t.Errorf("reload echoed forms %v, want [shell-1]", reopen.OpenForms)
	}
	if got := loader.registry.OpenFormIDs(); !slices.Equal(got, []string{"shell-1"}) {
		t.Errorf("OpenFormIDs = %v, want [shell-1]", got)
	}
}

func TestLoadPageSubFormFailure(t *testing.T) {
	t.Parallel()

	t.Run("transport error", func(t *testing.T) {
		invoker := &fakeInvoker{steps: []invokeStep{
			{response: showFormResponse(1, "shell-1", customerShell)},
			{err: fmt.Errorf("connection reset")},
		}}
		loader := newTestLoader(t, invoker)

		_, err := loader.LoadPage(context.Background(), "21")
		if err == nil {
			t.Fatal("expected error from failed sub-form load")
		}
		if _, ok := loader.registry.FormID("21"); ok {
			t.Error("partial load recorded a binding")
		}
	})

	t.Run("server rejection", func(t *testing.T) {
		invoker := &fakeInvoker{steps: []invokeStep{
			{response: showFormResponse(1, "shell-1", customerShell)},
			{response: showErrorResponse(2, "form is no longer available")},
		}}
		loader := newTestLoader(t, invoker)

		_, err := loader.LoadPage(context.Background(), "21")
		if !IsBusinessLogicError(err) {
			t.Fatalf("expected BusinessLogicError, got %v", err)
		}
		if _, ok := loader.registry.FormID("21"); ok {
			t.Error("partial load recorded a binding")
		}
	})

	t.Run("sub-form reply without a tree", func(t *testing.T) {
		invoker := &fakeInvoker{steps: []invokeStep{
			{response: showFormResponse(1, "shell-1", customerShell)},
			{response: &wire.Response{
				Sequence: 2,
				Handlers: []wire.Handler{
					&wire.CallbackComplete{CallbackID: 2, FormID: "sub-general", Success: true},
				},
			}},
		}}
		loader := newTestLoader(t, invoker)

		_, err := loader.LoadPage(context.Background(), "21")
		if !wire.IsParseError(err) {
			t.Fatalf("expected ParseError, got %v", err)
		}
	})
}

func TestLoadPageMissingFormTree(t *testing.T) {
	t.Parallel()

	response := &wire.Response{
		Sequence: 1,
		Handlers: []wire.Handler{
			&wire.EventRaised{Name: "Unrelated"},
			&wire.CallbackComplete{CallbackID: 1, FormID: "shell-1", Success: true},
		},
	}
	invoker := &fakeInvoker{steps: []invokeStep{{response: response}}}
	loader := newTestLoader(t, invoker)

	_, err := loader.LoadPage(context.Background(), "21")
	if !wire.IsParseError(err) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestLoadPageEchoesEarlierPages(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{steps: []invokeStep{
		{response: showFormResponse(1, "shell-1", customerShell)},
		{response: showFormResponse(2, "sub-general", customerSubGeneral)},
	}}
	loader := newTestLoader(t, invoker)

	// A page from an earlier load is still open.
	if err := loader.registry.Bind("5", "f-earlier"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	if _, err := loader.LoadPage(context.Background(), "21"); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	if got := invoker.sent[0].OpenForms; !slices.Equal(got, []string{"f-earlier"}) {
		t.Errorf("open echoed forms %v, want [f-earlier]", got)
	}
	if got := invoker.sent[1].OpenForms; !slices.Equal(got, []string{"f-earlier", "shell-1"}) {
		t.Errorf("load echoed forms %v, want [f-earlier shell-1]", got)
	}
	if got := loader.registry.OpenFormIDs(); !slices.Equal(got, []string{"f-earlier", "shell-1"}) {
		t.Errorf("OpenFormIDs = %v, want [f-earlier shell-1]", got)
	}
}

func TestLoadPageEmptyID(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{}
	loader := newTestLoader(t, invoker)

	_, err := loader.LoadPage(context.Background(), "")
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(invoker.sent) != 0 {
		t.Errorf("sent %d interactions for an invalid request, want 0", len(invoker.sent))
	}
}

func TestLoadPageCustomOpenInteraction(t *testing.T) {
	t.Parallel()

	invoker := &fakeInvoker{steps: []invokeStep{
		{response: showFormResponse(1, "shell-2", `{"id":"shell-2","caption":"Items","type":"Form","controls":[]}`)},
	}}
	loader, err := NewLoader(Config{Invoker: invoker, OpenInteraction: "NavigateTo"})
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	if _, err := loader.LoadPage(context.Background(), "30"); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if got := invoker.sent[0].Name; got != "NavigateTo" {
		t.Errorf("open interaction = %q, want the configured NavigateTo", got)
	}
}
