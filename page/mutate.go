// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerglass/ledgerglass/wire"
)

// ActionRef names an action to invoke. The numeric code is preferred;
// the name is the fallback for actions the server assigned no code. A
// zero ActionRef is invalid.
type ActionRef struct {
	Code int
	Name string
}

// saveValuePayload is the canonical SaveValue parameter shape. It
// travels as a pre-serialized JSON string, not a nested object; some
// server versions tolerate the plain-object variant, but that is not a
// contract.
type saveValuePayload struct {
	Value             any                `json:"value"`
	CommitImmediately bool               `json:"commitImmediately"`
	NotifyBusy        bool               `json:"notifyBusy"`
	Telemetry         saveValueTelemetry `json:"telemetry"`
}

type saveValueTelemetry struct {
	Control   string `json:"control"`
	Timestamp string `json:"timestamp"`
}

// SetField writes value into the control at controlPath on the loaded
// page. The page must have been loaded by this loader; an untracked
// page is a *ValidationError and no interaction is issued.
func (l *Loader) SetField(ctx context.Context, pageID, controlPath string, value any) (*wire.Response, error) {
	formID, ok := l.registry.FormID(pageID)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("page %q is not loaded", pageID)}
	}
	if controlPath == "" {
		return nil, &ValidationError{Reason: "control path is required"}
	}

	payload := saveValuePayload{
		Value:             value,
		CommitImmediately: true,
		NotifyBusy:        false,
		Telemetry: saveValueTelemetry{
			Control:   lastPathSegment(controlPath),
			Timestamp: l.clock.Now().UTC().Format(time.RFC3339),
		},
	}
	serialized, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("page: encoding value for %s: %w", controlPath, err)
	}

	l.logger.Debug("setting field", "page_id", pageID, "control_path", controlPath)
	response, err := l.invoker.Invoke(ctx, wire.Interaction{
		Name:        wire.InteractionSaveValue,
		Parameters:  string(serialized),
		FormID:      formID,
		ControlPath: controlPath,
		OpenForms:   l.registry.OpenFormIDs(),
	})
	if err != nil {
		return nil, err
	}
	if err := rejectionError(pageID, response); err != nil {
		return nil, err
	}
	return response, nil
}

// InvokeAction invokes the referenced action on the loaded page.
// rowKey, when non-empty, targets a row for list-scoped actions.
func (l *Loader) InvokeAction(ctx context.Context, pageID, controlPath string, action ActionRef, rowKey string) (*wire.Response, error) {
	formID, ok := l.registry.FormID(pageID)
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("page %q is not loaded", pageID)}
	}

	parameters := map[string]any{}
	switch {
	case action.Code != 0:
		parameters["actionCode"] = action.Code
	case action.Name != "":
		parameters["actionName"] = action.Name
	default:
		return nil, &ValidationError{Reason: "action reference needs a code or a name"}
	}
	if rowKey != "" {
		parameters["rowKey"] = rowKey
	}

	l.logger.Debug("invoking action",
		"page_id", pageID,
		"control_path", controlPath,
		"action_code", action.Code,
		"action_name", action.Name,
	)
	response, err := l.invoker.Invoke(ctx, wire.Interaction{
		Name:        wire.InteractionInvokeAction,
		Parameters:  parameters,
		FormID:      formID,
		ControlPath: controlPath,
		OpenForms:   l.registry.OpenFormIDs(),
	})
	if err != nil {
		return nil, err
	}
	if err := rejectionError(pageID, response); err != nil {
		return nil, err
	}
	return response, nil
}

// ClosePage closes the page's shell form server-side and releases the
// binding. The CloseForm interaction still echoes the closing form in
// openForms; it is open until the server processes the close.
func (l *Loader) ClosePage(ctx context.Context, pageID string) error {
	formID, ok := l.registry.FormID(pageID)
	if !ok {
		return &ValidationError{Reason: fmt.Sprintf("page %q is not loaded", pageID)}
	}

	_, err := l.invoker.Invoke(ctx, wire.Interaction{
		Name:       wire.InteractionCloseForm,
		Parameters: struct{}{},
		FormID:     formID,
		OpenForms:  l.registry.OpenFormIDs(),
	})
	if err != nil {
		return err
	}

	l.registry.Release(formID)
	l.logger.Debug("page closed", "page_id", pageID, "form_id", formID)
	return nil
}

// lastPathSegment returns the control name at the end of a
// slash-separated control path.
func lastPathSegment(controlPath string) string {
	if index := strings.LastIndexByte(controlPath, '/'); index >= 0 {
		return controlPath[index+1:]
	}
	return controlPath
}
