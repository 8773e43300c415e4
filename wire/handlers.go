// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// HandlerTag identifies the kind of a handler in a response batch.
type HandlerTag string

// Handler tag constants. The tag selects the positional meaning of the
// parameters array; unknown tags are preserved as UnknownHandler so
// that new server builds do not break decoding.
const (
	// HandlerEventRaised wraps a named application event. Parameters:
	// event name, then an optional payload object, then optional
	// metadata.
	HandlerEventRaised HandlerTag = "EventRaised"

	// HandlerCallbackComplete acknowledges one interaction. Parameters:
	// callback id, form id, then an optional success flag and server
	// duration in milliseconds. Shorter variants omit the trailing
	// parameters; their absence has only been observed on successful
	// interactions.
	HandlerCallbackComplete HandlerTag = "CallbackComplete"

	// HandlerFormStateChanged carries incremental control updates for
	// an open form. Parameters: form id, then an array of change
	// records.
	HandlerFormStateChanged HandlerTag = "FormStateChanged"

	// HandlerStackEmpty signals that the server-side form stack is
	// empty. No parameters.
	HandlerStackEmpty HandlerTag = "StackEmpty"
)

// Application event names carried by EventRaised handlers.
const (
	// EventSessionInitialized acknowledges OpenSession. Payload:
	// session id, session key, and the resolved company.
	EventSessionInitialized = "SessionInitialized"

	// EventShowForm delivers a complete form hierarchy. Payload: the
	// root form node.
	EventShowForm = "ShowForm"

	// EventChangeForm delivers a replacement hierarchy for an already
	// open form. Payload: the root form node.
	EventChangeForm = "ChangeForm"

	// EventShowError reports a business-rule rejection. Payload:
	// message and optional details.
	EventShowError = "ShowError"
)

// Handler is one decoded element of a response batch. Concrete types:
// EventRaised, CallbackComplete, FormStateChanged, StackEmpty, and
// UnknownHandler for tags this client does not model.
type Handler interface {
	// Tag returns the wire tag the handler was decoded from.
	Tag() HandlerTag
}

// EventRaised is a named application event with an optional payload.
type EventRaised struct {
	// Name is the application event name, such as ShowForm.
	Name string

	// Payload is the event's body, unparsed. Nil when the event
	// carried none.
	Payload json.RawMessage

	// Metadata is the optional third parameter. Opaque to this client.
	Metadata json.RawMessage
}

// Tag implements Handler.
func (*EventRaised) Tag() HandlerTag { return HandlerEventRaised }

// CallbackComplete acknowledges the interaction with the matching
// callback id.
type CallbackComplete struct {
	// CallbackID echoes the id of the interaction being acknowledged.
	CallbackID uint64

	// FormID is the server form the interaction acted on. Empty for
	// session-scoped interactions.
	FormID string

	// Success reports whether the server executed the interaction.
	// Rejections also raise a ShowError event with the reason.
	Success bool

	// Duration is the server-reported execution time.
	Duration time.Duration
}

// Tag implements Handler.
func (*CallbackComplete) Tag() HandlerTag { return HandlerCallbackComplete }

// FormStateChanged carries incremental control updates for one form.
type FormStateChanged struct {
	// FormID is the server form the changes apply to.
	FormID string

	// Changes holds the unparsed change records in wire order.
	Changes []json.RawMessage
}

// Tag implements Handler.
func (*FormStateChanged) Tag() HandlerTag { return HandlerFormStateChanged }

// StackEmpty signals that no forms remain open on the server.
type StackEmpty struct{}

// Tag implements Handler.
func (*StackEmpty) Tag() HandlerTag { return HandlerStackEmpty }

// UnknownHandler preserves a handler whose tag this client does not
// model. Carried through undecoded so callers can log or ignore it.
type UnknownHandler struct {
	// Name is the unrecognized wire tag.
	Name HandlerTag

	// Parameters holds the raw positional parameters.
	Parameters []json.RawMessage
}

// Tag implements Handler.
func (h *UnknownHandler) Tag() HandlerTag { return h.Name }

// rawHandler is the wire shape of one batch element.
type rawHandler struct {
	Handler    HandlerTag        `json:"handler"`
	Parameters []json.RawMessage `json:"parameters"`
}

// decodeHandlerBatch decodes a JSON handler array into typed handlers.
// A known tag whose parameters do not match the positional contract is
// a *ParseError naming the offending element; unknown tags decode to
// UnknownHandler.
func decodeHandlerBatch(data []byte) ([]Handler, error) {
	var raw []rawHandler
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{What: "handler batch", Reason: err.Error()}
	}
	handlers := make([]Handler, 0, len(raw))
	for i, element := range raw {
		handler, err := decodeHandler(element)
		if err != nil {
			return nil, &ParseError{
				What:   fmt.Sprintf("handler %d (%s)", i, element.Handler),
				Reason: err.Error(),
			}
		}
		handlers = append(handlers, handler)
	}
	return handlers, nil
}

// decodeHandler decodes one batch element according to its tag's
// positional parameter contract.
func decodeHandler(element rawHandler) (Handler, error) {
	params := element.Parameters
	switch element.Handler {
	case HandlerEventRaised:
		if len(params) == 0 {
			return nil, fmt.Errorf("missing event name parameter")
		}
		event := &EventRaised{}
		if err := json.Unmarshal(params[0], &event.Name); err != nil {
			return nil, fmt.Errorf("event name is not a string: %w", err)
		}
		if len(params) > 1 {
			event.Payload = params[1]
		}
		if len(params) > 2 {
			event.Metadata = params[2]
		}
		return event, nil

	case HandlerCallbackComplete:
		if len(params) < 2 {
			return nil, fmt.Errorf("want at least 2 parameters, got %d", len(params))
		}
		callback := &CallbackComplete{Success: true}
		if err := json.Unmarshal(params[0], &callback.CallbackID); err != nil {
			return nil, fmt.Errorf("callback id is not an unsigned integer: %w", err)
		}
		if err := json.Unmarshal(params[1], &callback.FormID); err != nil {
			return nil, fmt.Errorf("form id is not a string: %w", err)
		}
		if len(params) > 2 {
			if err := json.Unmarshal(params[2], &callback.Success); err != nil {
				return nil, fmt.Errorf("success flag is not a boolean: %w", err)
			}
		}
		if len(params) > 3 {
			var millis float64
			if err := json.Unmarshal(params[3], &millis); err != nil {
				return nil, fmt.Errorf("duration is not a number: %w", err)
			}
			callback.Duration = time.Duration(millis * float64(time.Millisecond))
		}
		return callback, nil

	case HandlerFormStateChanged:
		if len(params) == 0 {
			return nil, fmt.Errorf("missing form id parameter")
		}
		change := &FormStateChanged{}
		if err := json.Unmarshal(params[0], &change.FormID); err != nil {
			return nil, fmt.Errorf("form id is not a string: %w", err)
		}
		if len(params) > 1 {
			if err := json.Unmarshal(params[1], &change.Changes); err != nil {
				return nil, fmt.Errorf("changes are not an array: %w", err)
			}
		}
		return change, nil

	case HandlerStackEmpty:
		return &StackEmpty{}, nil

	default:
		return &UnknownHandler{Name: element.Handler, Parameters: params}, nil
	}
}
