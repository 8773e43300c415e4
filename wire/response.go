// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// maxInflatedSize bounds the decompressed size of a single response
// payload. Form hierarchies for the largest observed pages inflate to
// a few megabytes; 64 MB leaves wide headroom while keeping a hostile
// or corrupt stream from exhausting memory.
const maxInflatedSize = 64 * 1024 * 1024

// Response is one decoded server message: a sequence number and the
// handler batch it carried, in arrival order. A keepalive or
// acknowledgement-only message decodes to an empty handler batch.
type Response struct {
	// Sequence is the server's message counter. Informational; the
	// client correlates by callback id, not sequence.
	Sequence int64

	// Handlers holds the decoded handler batch in wire order.
	Handlers []Handler
}

// responseEnvelope is the JSON shape of a server message. Exactly one
// of the three payload fields is populated: sessionData on the first
// response of a connection, data on later compressed responses, and
// handlers when the server sends the batch uncompressed. The field
// name varies by position in the conversation, not by content, so the
// decoder treats all three uniformly.
type responseEnvelope struct {
	Sequence    int64           `json:"sequence"`
	SessionData string          `json:"sessionData"`
	Data        string          `json:"data"`
	Handlers    json.RawMessage `json:"handlers"`
}

// DecodeResponse decodes one server message: envelope parse,
// payload decompression, and handler batch decoding. A payload that
// fails to decompress is a protocol violation and is reported as such,
// never as an empty response.
func DecodeResponse(message []byte) (*Response, error) {
	var envelope responseEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		return nil, &ProtocolError{
			Op:     "decode",
			Reason: "malformed response envelope",
			Err:    err,
		}
	}

	batch := []byte(envelope.Handlers)
	switch {
	case envelope.SessionData != "":
		inflated, err := DecompressPayload(envelope.SessionData)
		if err != nil {
			return nil, &ProtocolError{Op: "decompress", Reason: "sessionData payload", Err: err}
		}
		batch = inflated
	case envelope.Data != "":
		inflated, err := DecompressPayload(envelope.Data)
		if err != nil {
			return nil, &ProtocolError{Op: "decompress", Reason: "data payload", Err: err}
		}
		batch = inflated
	}

	response := &Response{Sequence: envelope.Sequence}
	if len(batch) == 0 || bytes.Equal(bytes.TrimSpace(batch), []byte("null")) {
		return response, nil
	}
	handlers, err := decodeHandlerBatch(batch)
	if err != nil {
		return nil, err
	}
	response.Handlers = handlers
	return response, nil
}

// DecompressPayload reverses the server's payload encoding: base64 of
// a raw DEFLATE stream (no zlib or gzip wrapper). The result is the
// JSON handler batch.
func DecompressPayload(blob string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("wire: decoding base64 payload: %w", err)
	}
	reader := flate.NewReader(bytes.NewReader(compressed))
	defer reader.Close()
	inflated, err := io.ReadAll(io.LimitReader(reader, maxInflatedSize+1))
	if err != nil {
		return nil, fmt.Errorf("wire: inflating payload: %w", err)
	}
	if len(inflated) > maxInflatedSize {
		return nil, fmt.Errorf("wire: inflated payload exceeds %d byte limit", maxInflatedSize)
	}
	return inflated, nil
}

// CompressPayload applies the server's payload encoding to data:
// raw DEFLATE, then base64. The client never compresses on the live
// protocol; this is the inverse of DecompressPayload for protocol test
// servers and fixture tooling.
func CompressPayload(data []byte) (string, error) {
	var buffer bytes.Buffer
	writer, err := flate.NewWriter(&buffer, flate.DefaultCompression)
	if err != nil {
		return "", fmt.Errorf("wire: creating deflate writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return "", fmt.Errorf("wire: deflating payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("wire: finishing deflate stream: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buffer.Bytes()), nil
}

// Event returns the first EventRaised handler carrying the named
// event. A miss is a *ParseError listing what the response actually
// contained, so a caller expecting a specific event surfaces a precise
// diagnosis instead of a nil dereference.
func (r *Response) Event(name string) (*EventRaised, error) {
	for _, handler := range r.Handlers {
		if event, ok := handler.(*EventRaised); ok && event.Name == name {
			return event, nil
		}
	}
	return nil, &ParseError{
		What:    fmt.Sprintf("event %q", name),
		Present: r.Present(),
	}
}

// Events returns every EventRaised handler carrying the named event,
// in wire order.
func (r *Response) Events(name string) []*EventRaised {
	var events []*EventRaised
	for _, handler := range r.Handlers {
		if event, ok := handler.(*EventRaised); ok && event.Name == name {
			events = append(events, event)
		}
	}
	return events
}

// Callback returns the CallbackComplete handler, if the response
// carries one. At most one per response has been observed.
func (r *Response) Callback() (*CallbackComplete, bool) {
	for _, handler := range r.Handlers {
		if callback, ok := handler.(*CallbackComplete); ok {
			return callback, true
		}
	}
	return nil, false
}

// StateChanges returns the FormStateChanged handlers in wire order.
func (r *Response) StateChanges() []*FormStateChanged {
	var changes []*FormStateChanged
	for _, handler := range r.Handlers {
		if change, ok := handler.(*FormStateChanged); ok {
			changes = append(changes, change)
		}
	}
	return changes
}

// StackEmptied reports whether the response carries a StackEmpty
// handler, the server's signal that no forms remain open.
func (r *Response) StackEmptied() bool {
	for _, handler := range r.Handlers {
		if _, ok := handler.(*StackEmpty); ok {
			return true
		}
	}
	return false
}

// Present describes the handler batch for diagnostics: one entry per
// handler, with events expanded to their event name.
func (r *Response) Present() []string {
	if len(r.Handlers) == 0 {
		return nil
	}
	present := make([]string, 0, len(r.Handlers))
	for _, handler := range r.Handlers {
		switch h := handler.(type) {
		case *EventRaised:
			present = append(present, string(HandlerEventRaised)+":"+h.Name)
		case *UnknownHandler:
			present = append(present, string(h.Name)+"?")
		default:
			present = append(present, string(handler.Tag()))
		}
	}
	return present
}
