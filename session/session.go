// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package session maintains an authenticated connection to a
// Ledgerglass ERP server: the HTTP sign-in flow, the raw WebSocket the
// interaction protocol runs over, and the application session opened
// on top of it. Wire shapes live in the wire package; this package
// owns their transport.
//
// The package is organized around the connection lifecycle:
//
//   - session.go: Session, Config, connect/invoke/disconnect
//   - login.go: HTTP sign-in flow and login-page parsing
//   - descriptor.go: client self-description and session info
//   - errors.go: AuthenticationError and ConnectionError
//
// A Session carries exactly one server-side user session. Pages opened
// in one session share server-side caches, which the server is known
// to corrupt across concurrently open pages; callers that need
// concurrency open one Session per page instead.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ledgerglass/ledgerglass/lib/clock"
	"github.com/ledgerglass/ledgerglass/lib/netutil"
	"github.com/ledgerglass/ledgerglass/wire"
)

const (
	// defaultDialTimeout bounds the WebSocket handshake.
	defaultDialTimeout = 15 * time.Second

	// defaultInvokeTimeout bounds a full interaction round trip. Form
	// loads against cold server caches have been observed near 30s.
	defaultInvokeTimeout = 45 * time.Second

	// closeGracePeriod bounds the close handshake on Disconnect.
	closeGracePeriod = 5 * time.Second

	// maxSocketMessage caps a single inbound WebSocket message. Payloads
	// are compressed on the wire, so this sits well under the inflated
	// cap enforced by the wire package.
	maxSocketMessage = 32 << 20
)

// Config configures a Session. BaseURL and Tenant are required;
// everything else has a usable default.
type Config struct {
	// BaseURL is the server root, such as "https://erp.example.com".
	// The sign-in page and the WebSocket endpoint derive from it.
	BaseURL string

	// Tenant selects the tenant on multi-tenant servers. Sent as a
	// query parameter on the WebSocket dial and in OpenSession.
	Tenant string

	// Company selects the company within the tenant. Optional; the
	// server falls back to the user's default company.
	Company string

	// HTTPClient, when set, donates its Transport to the session's own
	// client. The session always builds its own client so it controls
	// the cookie jar and redirect policy.
	HTTPClient *http.Client

	// Logger receives connection lifecycle and interaction logs.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// Clock supplies timestamps for artifacts and telemetry. Defaults
	// to the real clock. Socket deadlines always use wall time.
	Clock clock.Clock

	// DialTimeout bounds the WebSocket handshake. Defaults to 15s.
	DialTimeout time.Duration

	// InvokeTimeout bounds one interaction round trip when the caller's
	// context carries no earlier deadline. Defaults to 45s.
	InvokeTimeout time.Duration
}

// Session is an authenticated connection to one server-side user
// session. Methods are safe for concurrent use; interactions serialize
// so at most one is in flight per session.
//
// Lifecycle: New, Authenticate, Connect, OpenSession, any number of
// Invoke calls, Disconnect.
type Session struct {
	baseURL       *url.URL
	tenant        string
	company       string
	httpClient    *http.Client
	logger        *slog.Logger
	clock         clock.Clock
	dialTimeout   time.Duration
	invokeTimeout time.Duration

	// invokeMu serializes interaction round trips and guards the
	// connection state below. Holding it across the full round trip is
	// what enforces one in-flight interaction per session.
	invokeMu   sync.Mutex
	conn       *websocket.Conn
	callbackID uint64
	info       *Info
}

// New builds a Session from config. No network traffic happens until
// Authenticate.
func New(config Config) (*Session, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("session: base URL is required")
	}
	if config.Tenant == "" {
		return nil, fmt.Errorf("session: tenant is required")
	}

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("session: parsing base URL: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("session: base URL must be http or https, got %q", baseURL.Scheme)
	}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("session: base URL %q has no host", config.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("session: creating cookie jar: %w", err)
	}

	transport := http.DefaultTransport
	if config.HTTPClient != nil && config.HTTPClient.Transport != nil {
		transport = config.HTTPClient.Transport
	}

	httpClient := &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(request *http.Request, via []*http.Request) error {
			// The credential POST's redirect is the success signal;
			// only the cookies matter, never the target page.
			if via[0].Method == http.MethodPost {
				return http.ErrUseLastResponse
			}
			if len(via) >= 10 {
				return errors.New("session: stopped after 10 redirects")
			}
			return nil
		},
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	invokeTimeout := config.InvokeTimeout
	if invokeTimeout <= 0 {
		invokeTimeout = defaultInvokeTimeout
	}

	return &Session{
		baseURL:       baseURL,
		tenant:        config.Tenant,
		company:       config.Company,
		httpClient:    httpClient,
		logger:        logger,
		clock:         clk,
		dialTimeout:   dialTimeout,
		invokeTimeout: invokeTimeout,
	}, nil
}

// Connect dials the WebSocket endpoint with the authenticated cookie
// jar. The dial is a plain WebSocket handshake; the server refuses
// anything layered on top. Handshake failure returns a
// *ConnectionError.
func (s *Session) Connect(ctx context.Context) error {
	s.invokeMu.Lock()
	defer s.invokeMu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("session: already connected")
	}

	socketURL := s.socketURL()
	dialer := websocket.Dialer{
		Jar:              s.httpClient.Jar,
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: s.dialTimeout,
	}
	if transport, ok := s.httpClient.Transport.(*http.Transport); ok && transport.TLSClientConfig != nil {
		dialer.TLSClientConfig = transport.TLSClientConfig.Clone()
	}

	conn, response, err := dialer.DialContext(ctx, socketURL.String(), nil)
	if err != nil {
		reason := "websocket handshake failed"
		if response != nil {
			reason = fmt.Sprintf("websocket handshake failed with status %d", response.StatusCode)
			if body := strings.TrimSpace(netutil.ErrorBody(response.Body)); body != "" {
				reason += ": " + body
			}
		}
		return &ConnectionError{Op: "dial", Reason: reason, Err: err}
	}
	conn.SetReadLimit(maxSocketMessage)

	s.conn = conn
	s.logger.Info("connected", "socket_url", socketURL.String())
	return nil
}

// socketURL derives the WebSocket endpoint from the base URL:
// http→ws, https→wss, path cs/client, tenant in the query.
func (s *Session) socketURL() *url.URL {
	socket := *s.baseURL
	switch socket.Scheme {
	case "https":
		socket.Scheme = "wss"
	case "http":
		socket.Scheme = "ws"
	}
	endpoint := socket.JoinPath("cs", "client")
	endpoint.RawQuery = url.Values{"tenant": {s.tenant}}.Encode()
	return endpoint
}

// OpenSession opens the application session on the connected socket.
// The server must acknowledge with a SessionInitialized event carrying
// a session id; anything else is a *wire.ProtocolError. The returned
// Info is also retained on the session.
func (s *Session) OpenSession(ctx context.Context, descriptor ClientDescriptor) (*Info, error) {
	response, err := s.Invoke(ctx, wire.Interaction{
		Name:       wire.InteractionOpenSession,
		Parameters: descriptor.parameters(s.tenant, s.company),
	})
	if err != nil {
		return nil, err
	}

	event, err := response.Event(wire.EventSessionInitialized)
	if err != nil {
		return nil, &wire.ProtocolError{Op: "open-session", Reason: "server did not acknowledge the session", Err: err}
	}

	var info Info
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &info); err != nil {
			return nil, &wire.ProtocolError{Op: "open-session", Reason: "malformed session acknowledgement", Err: err}
		}
	}
	if info.SessionID == "" {
		return nil, &wire.ProtocolError{Op: "open-session", Reason: "session acknowledgement carries no session id"}
	}

	s.invokeMu.Lock()
	s.info = &info
	s.invokeMu.Unlock()

	s.logger.Info("session opened",
		"session_id", info.SessionID,
		"company", info.Company,
	)
	return &info, nil
}

// Info returns the session info captured by OpenSession, or nil before
// the session is open.
func (s *Session) Info() *Info {
	s.invokeMu.Lock()
	defer s.invokeMu.Unlock()
	return s.info
}

// Invoke sends one interaction and waits for its completion. The
// callback id is allocated here (strictly increasing, never reused
// for the connection's lifetime), so callers leave it zero.
//
// Concurrent callers serialize; at most one interaction is in flight
// per session. Responses completing earlier callbacks (stale after a
// timeout) and pushes with no completion at all are discarded with a
// debug log. A completion for a callback id never allocated is a
// *wire.ProtocolError. Timeouts and transport failures are
// *ConnectionError.
func (s *Session) Invoke(ctx context.Context, interaction wire.Interaction) (*wire.Response, error) {
	s.invokeMu.Lock()
	defer s.invokeMu.Unlock()

	if s.conn == nil {
		return nil, &ConnectionError{Op: "invoke", Reason: "not connected"}
	}

	s.callbackID++
	interaction.CallbackID = s.callbackID

	payload, err := wire.EncodeInteraction(interaction)
	if err != nil {
		return nil, err
	}

	// Deadlines use wall time, not the configured clock: a fake clock
	// must not starve a live socket.
	deadline := time.Now().Add(s.invokeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return nil, &ConnectionError{Op: "invoke", Reason: "setting write deadline", Err: err}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, &ConnectionError{Op: "invoke", Reason: fmt.Sprintf("writing %s interaction", interaction.Name), Err: err}
	}

	s.logger.Debug("interaction sent",
		"interaction", interaction.Name,
		"callback_id", interaction.CallbackID,
		"form_id", interaction.FormID,
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, &ConnectionError{Op: "invoke", Reason: "context done", Err: err}
		}
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return nil, &ConnectionError{Op: "invoke", Reason: "setting read deadline", Err: err}
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			return nil, &ConnectionError{
				Op:     "invoke",
				Reason: fmt.Sprintf("reading response to %s (callback %d)", interaction.Name, interaction.CallbackID),
				Err:    err,
			}
		}

		response, err := wire.DecodeResponse(message)
		if err != nil {
			// Decompression and decode failures surface as-is; a
			// corrupt payload is a protocol fault, not a timeout.
			return nil, err
		}

		callback, ok := response.Callback()
		if !ok {
			s.logger.Debug("discarding unsolicited push",
				"sequence", response.Sequence,
				"handlers", response.Present(),
			)
			continue
		}

		switch {
		case callback.CallbackID == interaction.CallbackID:
			s.logger.Debug("interaction complete",
				"interaction", interaction.Name,
				"callback_id", callback.CallbackID,
				"success", callback.Success,
				"duration", callback.Duration,
			)
			return response, nil
		case callback.CallbackID < interaction.CallbackID:
			// Completion for an interaction whose caller already gave
			// up, typically after a timeout.
			s.logger.Debug("discarding stale response",
				"callback_id", callback.CallbackID,
				"awaiting", interaction.CallbackID,
			)
		default:
			return nil, &wire.ProtocolError{
				Op:     "invoke",
				Reason: fmt.Sprintf("server completed callback %d while %d was the latest allocated", callback.CallbackID, interaction.CallbackID),
			}
		}
	}
}

// Disconnect closes the WebSocket and releases idle HTTP connections.
// Idempotent; disconnecting a never-connected or already-disconnected
// session is a no-op.
func (s *Session) Disconnect() error {
	s.invokeMu.Lock()
	defer s.invokeMu.Unlock()

	if s.conn == nil {
		return nil
	}

	// Best-effort close handshake; the server may already be gone.
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	writeErr := s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeGracePeriod))
	if writeErr != nil && !errors.Is(writeErr, websocket.ErrCloseSent) && !netutil.IsExpectedCloseError(writeErr) {
		s.logger.Debug("close handshake failed", "error", writeErr)
	}

	err := s.conn.Close()
	s.conn = nil
	s.httpClient.CloseIdleConnections()

	if err != nil && !netutil.IsExpectedCloseError(err) {
		return &ConnectionError{Op: "disconnect", Reason: "closing websocket", Err: err}
	}
	s.logger.Info("disconnected")
	return nil
}
