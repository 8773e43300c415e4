// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration_test exercises the full client stack against an
// in-process replica of the ERP server: the HTTP sign-in flow with
// anti-forgery tokens, the WebSocket interaction protocol, compressed
// response payloads, and server-side open-form bookkeeping.
//
// The replica validates the protocol the way the production server
// does (callback ids must increase, openForms must mirror its form
// stack) but records violations instead of failing mid-journey, so a
// failing test reports every violation of the run at once.
package integration_test

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ledgerglass/ledgerglass/lib/secret"
	"github.com/ledgerglass/ledgerglass/session"
	"github.com/ledgerglass/ledgerglass/wire"
)

// sessionCookieName is the authentication cookie the replica issues on
// sign-in and requires on the WebSocket upgrade.
const sessionCookieName = "ERP.Session"

// Fixed replica credentials. Tests that need a rejection sign in with
// anything else.
const (
	replicaTenant   = "alpine"
	replicaUsername = "agent.fenwick"
	replicaPassword = "correct-horse-battery"
)

// pageFixture is the scripted content of one logical page: the shell
// hierarchy served on open and the deferred sub-form trees served on
// load, keyed by server form id.
type pageFixture struct {
	shellID  string
	shell    json.RawMessage
	subForms map[string]json.RawMessage
}

// rejection scripts a business-rule rejection for writes to one
// control path.
type rejection struct {
	message string
	details string
}

// receivedInteraction is one interaction as the replica received it,
// with parameters preserved raw.
type receivedInteraction struct {
	Name        string
	FormID      string
	ControlPath string
	CallbackID  uint64
	OpenForms   []string
	Parameters  json.RawMessage
}

// erpServer is an in-process replica of the server endpoints the
// client touches. One instance serves any number of HTTP sign-ins but
// speaks the interaction protocol with one WebSocket connection at a
// time, matching the one-session-per-connection shape of the real
// server.
type erpServer struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.Mutex
	displayName  string
	tokens       map[string]bool
	tokenSerial  int
	cookieValue  string
	pages        map[string]pageFixture
	subForms     map[string]json.RawMessage
	stack        []string
	lastCallback uint64
	sequence     int64
	repliesSent  int
	pendingPush  []string
	rejections   map[string]rejection
	received     []receivedInteraction
	violations   []string
}

// newERPServer starts a replica with no pages scripted. The HTTP
// listener shuts down on test cleanup.
func newERPServer(t *testing.T) *erpServer {
	t.Helper()
	replica := &erpServer{
		t:          t,
		tokens:     make(map[string]bool),
		pages:      make(map[string]pageFixture),
		subForms:   make(map[string]json.RawMessage),
		rejections: make(map[string]rejection),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/SignIn", replica.handleSignIn)
	mux.HandleFunc("/cs/client", replica.handleSocket)
	replica.server = httptest.NewServer(mux)
	t.Cleanup(replica.server.Close)
	return replica
}

func (s *erpServer) baseURL() string { return s.server.URL }

// servePage registers a page fixture. The shell's deferred sub-forms
// become loadable once the page has been opened. Must be called from
// the test goroutine before the page is opened.
func (s *erpServer) servePage(pageID string, shell []byte, subForms map[string][]byte) {
	s.t.Helper()
	var root struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(shell, &root); err != nil {
		s.t.Fatalf("page %s shell fixture: %v", pageID, err)
	}
	if root.ID == "" {
		s.t.Fatalf("page %s shell fixture has no form id", pageID)
	}
	fixture := pageFixture{
		shellID:  root.ID,
		shell:    shell,
		subForms: make(map[string]json.RawMessage, len(subForms)),
	}
	for formID, tree := range subForms {
		fixture.subForms[formID] = tree
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[pageID] = fixture
}

// rejectSave scripts a business-rule rejection for SaveValue against
// controlPath.
func (s *erpServer) rejectSave(controlPath, message, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections[controlPath] = rejection{message: message, details: details}
}

// serveLandingPage switches the post-login reply from a redirect to a
// landing page carrying the given account display name.
func (s *erpServer) serveLandingPage(displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayName = displayName
}

// pushNext queues an unsolicited push. It is written as its own
// message before the reply to the next interaction.
func (s *erpServer) pushNext(batch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPush = append(s.pendingPush, batch)
}

// openStack returns a snapshot of the server-side open-form stack.
func (s *erpServer) openStack() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.stack)
}

// interactions returns a snapshot of every interaction received, in
// arrival order.
func (s *erpServer) interactions() []receivedInteraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.received)
}

// interactionsNamed filters the received log by interaction kind.
func (s *erpServer) interactionsNamed(name string) []receivedInteraction {
	var matched []receivedInteraction
	for _, interaction := range s.interactions() {
		if interaction.Name == name {
			matched = append(matched, interaction)
		}
	}
	return matched
}

func (s *erpServer) recordViolation(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordViolationLocked(format, args...)
}

func (s *erpServer) recordViolationLocked(format string, args ...any) {
	s.violations = append(s.violations, fmt.Sprintf(format, args...))
}

// requireClean fails the test with every protocol violation the
// replica recorded during the journey.
func requireClean(t *testing.T, replica *erpServer) {
	t.Helper()
	replica.mu.Lock()
	defer replica.mu.Unlock()
	for _, violation := range replica.violations {
		t.Errorf("protocol violation: %s", violation)
	}
}

// --- HTTP sign-in endpoints ---

const loginPageHTML = `<!DOCTYPE html>
<html>
<head><title>Sign In</title></head>
<body>
<form method="post" action="/SignIn">
<input type="text" name="UserName" />
<input type="password" name="Password" />
<input type="hidden" name="__RequestVerificationToken" value="%s" />
<button type="submit">Sign In</button>
</form>
</body>
</html>
`

const landingPageHTML = `<!DOCTYPE html>
<html>
<head><meta name="account-display-name" content="%s" /></head>
<body>Loading the application client&hellip;</body>
</html>
`

func (s *erpServer) handleSignIn(writer http.ResponseWriter, request *http.Request) {
	switch request.Method {
	case http.MethodGet:
		s.writeLoginPage(writer)
	case http.MethodPost:
		s.handleCredentials(writer, request)
	default:
		http.Error(writer, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *erpServer) writeLoginPage(writer http.ResponseWriter) {
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(writer, loginPageHTML, s.issueToken())
}

// issueToken mints a fresh single-use anti-forgery token.
func (s *erpServer) issueToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSerial++
	token := fmt.Sprintf("antiforgery-%06d", s.tokenSerial)
	s.tokens[token] = true
	return token
}

func (s *erpServer) handleCredentials(writer http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		http.Error(writer, "malformed form", http.StatusBadRequest)
		return
	}
	token := request.PostFormValue("__RequestVerificationToken")
	s.mu.Lock()
	valid := s.tokens[token]
	delete(s.tokens, token)
	s.mu.Unlock()
	if !valid {
		http.Error(writer, "invalid anti-forgery token", http.StatusBadRequest)
		return
	}

	if request.PostFormValue("UserName") != replicaUsername ||
		request.PostFormValue("Password") != replicaPassword {
		// The production server re-renders the sign-in form on rejected
		// credentials rather than returning an error status.
		s.writeLoginPage(writer)
		return
	}

	s.mu.Lock()
	s.cookieValue = uuid.NewString()
	cookie := s.cookieValue
	displayName := s.displayName
	s.mu.Unlock()
	http.SetCookie(writer, &http.Cookie{Name: sessionCookieName, Value: cookie, Path: "/"})

	if displayName != "" {
		writer.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(writer, landingPageHTML, displayName)
		return
	}
	http.Redirect(writer, request, "/", http.StatusFound)
}

// --- WebSocket interaction protocol ---

func (s *erpServer) handleSocket(writer http.ResponseWriter, request *http.Request) {
	if got := request.URL.Query().Get("tenant"); got != replicaTenant {
		s.recordViolation("dial carried tenant %q, want %q", got, replicaTenant)
		http.Error(writer, "unknown tenant", http.StatusForbidden)
		return
	}
	cookie, err := request.Cookie(sessionCookieName)
	s.mu.Lock()
	issued := s.cookieValue
	s.mu.Unlock()
	if err != nil || issued == "" || cookie.Value != issued {
		http.Error(writer, "not authenticated", http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.t.Errorf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		interaction, err := wire.DecodeInteraction(message)
		if err != nil {
			s.recordViolation("undecodable interaction: %v", err)
			return
		}
		s.dispatch(conn, interaction)
	}
}

func (s *erpServer) dispatch(conn *websocket.Conn, interaction *wire.Interaction) {
	s.mu.Lock()
	if interaction.CallbackID <= s.lastCallback {
		s.recordViolationLocked("callback id %d does not increase past %d",
			interaction.CallbackID, s.lastCallback)
	}
	s.lastCallback = interaction.CallbackID
	s.checkEchoLocked(interaction)
	s.received = append(s.received, recordOf(interaction))
	pushes := s.pendingPush
	s.pendingPush = nil
	s.mu.Unlock()

	for _, push := range pushes {
		s.send(conn, push)
	}

	var batch string
	switch interaction.Name {
	case wire.InteractionOpenSession:
		batch = s.openSessionBatch(interaction)
	case wire.InteractionOpenForm:
		batch = s.openFormBatch(interaction)
	case wire.InteractionLoadForm:
		batch = s.loadFormBatch(interaction)
	case wire.InteractionSaveValue:
		batch = s.saveValueBatch(interaction)
	case wire.InteractionInvokeAction:
		batch = s.invokeActionBatch(interaction)
	case wire.InteractionCloseForm:
		batch = s.closeFormBatch(interaction)
	default:
		s.recordViolation("unmodeled interaction kind %q", interaction.Name)
		batch = fmt.Sprintf(`[{"handler":"CallbackComplete","parameters":[%d,"",false]}]`,
			interaction.CallbackID)
	}
	s.send(conn, batch)
}

// checkEchoLocked validates the openForms echo against the server-side
// stack. OpenForm is validated before its shell is pushed, so one
// equality check covers every interaction kind: the echo must mirror
// the stack as the server holds it when the interaction arrives.
func (s *erpServer) checkEchoLocked(interaction *wire.Interaction) {
	if interaction.OpenForms == nil {
		s.recordViolationLocked("%s envelope omitted openForms", interaction.Name)
		return
	}
	seen := make(map[string]bool, len(interaction.OpenForms))
	for _, formID := range interaction.OpenForms {
		if seen[formID] {
			s.recordViolationLocked("%s echoed duplicate form id %q", interaction.Name, formID)
		}
		seen[formID] = true
	}
	if !slices.Equal(interaction.OpenForms, s.stack) {
		s.recordViolationLocked("%s echoed openForms %v, want %v",
			interaction.Name, interaction.OpenForms, s.stack)
	}
}

func recordOf(interaction *wire.Interaction) receivedInteraction {
	record := receivedInteraction{
		Name:        interaction.Name,
		FormID:      interaction.FormID,
		ControlPath: interaction.ControlPath,
		CallbackID:  interaction.CallbackID,
		OpenForms:   slices.Clone(interaction.OpenForms),
	}
	if raw, ok := interaction.Parameters.(json.RawMessage); ok {
		record.Parameters = slices.Clone(raw)
	}
	return record
}

func (s *erpServer) openSessionBatch(interaction *wire.Interaction) string {
	var parameters struct {
		ClientType string `json:"clientType"`
		DeviceID   string `json:"deviceId"`
		Tenant     string `json:"tenant"`
	}
	raw, _ := interaction.Parameters.(json.RawMessage)
	if err := json.Unmarshal(raw, &parameters); err != nil {
		s.recordViolation("OpenSession parameters: %v", err)
	}
	if parameters.Tenant != replicaTenant {
		s.recordViolation("OpenSession carried tenant %q, want %q", parameters.Tenant, replicaTenant)
	}
	if parameters.DeviceID == "" {
		s.recordViolation("OpenSession carried no device id")
	}
	return fmt.Sprintf(
		`[{"handler":"EventRaised","parameters":["SessionInitialized",{"sessionId":"app-session-1","sessionKey":"key-9d41","company":"CRONUS International Ltd."}]},{"handler":"CallbackComplete","parameters":[%d,""]}]`,
		interaction.CallbackID)
}

func (s *erpServer) openFormBatch(interaction *wire.Interaction) string {
	var parameters struct {
		Page string `json:"page"`
	}
	raw, _ := interaction.Parameters.(json.RawMessage)
	if err := json.Unmarshal(raw, &parameters); err != nil {
		s.recordViolation("OpenForm parameters: %v", err)
	}

	s.mu.Lock()
	fixture, ok := s.pages[parameters.Page]
	s.mu.Unlock()
	if !ok {
		// An unknown page is a business outcome, not a protocol
		// violation: the server answers with an error dialog.
		return fmt.Sprintf(
			`[{"handler":"EventRaised","parameters":["ShowError",{"message":"The page %s does not exist."}]},{"handler":"CallbackComplete","parameters":[%d,"",false,2.1]}]`,
			parameters.Page, interaction.CallbackID)
	}

	s.mu.Lock()
	if !slices.Contains(s.stack, fixture.shellID) {
		s.stack = append(s.stack, fixture.shellID)
	}
	maps.Copy(s.subForms, fixture.subForms)
	s.mu.Unlock()

	// The trailing TelemetryBeacon handler is deliberate: production
	// servers append handlers this client does not model, and loads
	// must survive them.
	return fmt.Sprintf(
		`[{"handler":"EventRaised","parameters":["ShowForm",%s]},{"handler":"TelemetryBeacon","parameters":["formOpen",%q]},{"handler":"CallbackComplete","parameters":[%d,%q,true,41.3]}]`,
		fixture.shell, parameters.Page, interaction.CallbackID, fixture.shellID)
}

func (s *erpServer) loadFormBatch(interaction *wire.Interaction) string {
	var parameters struct {
		Delayed  bool `json:"delayed"`
		OpenForm bool `json:"openForm"`
		LoadData bool `json:"loadData"`
	}
	raw, _ := interaction.Parameters.(json.RawMessage)
	if err := json.Unmarshal(raw, &parameters); err != nil {
		s.recordViolation("LoadForm parameters: %v", err)
	} else if !parameters.Delayed || !parameters.OpenForm || !parameters.LoadData {
		s.recordViolation("LoadForm parameters %s lack the delayed/openForm/loadData contract", raw)
	}

	s.mu.Lock()
	tree, ok := s.subForms[interaction.FormID]
	s.mu.Unlock()
	if !ok {
		s.recordViolation("LoadForm for unknown form %q", interaction.FormID)
		return fmt.Sprintf(`[{"handler":"CallbackComplete","parameters":[%d,%q,false,1.0]}]`,
			interaction.CallbackID, interaction.FormID)
	}
	return fmt.Sprintf(
		`[{"handler":"EventRaised","parameters":["ShowForm",%s]},{"handler":"CallbackComplete","parameters":[%d,%q,true,18.6]}]`,
		tree, interaction.CallbackID, interaction.FormID)
}

func (s *erpServer) saveValueBatch(interaction *wire.Interaction) string {
	s.requireOnStack(interaction)
	if interaction.ControlPath == "" {
		s.recordViolation("SaveValue without a control path")
	}

	// The production server rejects SaveValue parameters sent as an
	// object; they must arrive as a pre-serialized JSON string.
	raw, _ := interaction.Parameters.(json.RawMessage)
	var serialized string
	if err := json.Unmarshal(raw, &serialized); err != nil {
		s.recordViolation("SaveValue parameters are not a pre-serialized string: %v", err)
	}

	s.mu.Lock()
	scripted, rejected := s.rejections[interaction.ControlPath]
	s.mu.Unlock()
	if rejected {
		return fmt.Sprintf(
			`[{"handler":"EventRaised","parameters":["ShowError",{"message":%q,"details":%q}]},{"handler":"CallbackComplete","parameters":[%d,%q,false,12.4]}]`,
			scripted.message, scripted.details, interaction.CallbackID, interaction.FormID)
	}
	return fmt.Sprintf(
		`[{"handler":"FormStateChanged","parameters":[%q,[{"path":%q}]]},{"handler":"CallbackComplete","parameters":[%d,%q,true,9.8]}]`,
		interaction.FormID, interaction.ControlPath, interaction.CallbackID, interaction.FormID)
}

func (s *erpServer) invokeActionBatch(interaction *wire.Interaction) string {
	s.requireOnStack(interaction)
	var parameters struct {
		ActionCode int    `json:"actionCode"`
		ActionName string `json:"actionName"`
		RowKey     string `json:"rowKey"`
	}
	raw, _ := interaction.Parameters.(json.RawMessage)
	if err := json.Unmarshal(raw, &parameters); err != nil {
		s.recordViolation("InvokeAction parameters: %v", err)
	} else if parameters.ActionCode == 0 && parameters.ActionName == "" {
		s.recordViolation("InvokeAction named no action")
	}
	return fmt.Sprintf(`[{"handler":"CallbackComplete","parameters":[%d,%q,true,64.1]}]`,
		interaction.CallbackID, interaction.FormID)
}

func (s *erpServer) closeFormBatch(interaction *wire.Interaction) string {
	s.requireOnStack(interaction)
	s.mu.Lock()
	s.stack = slices.DeleteFunc(s.stack, func(id string) bool { return id == interaction.FormID })
	empty := len(s.stack) == 0
	s.mu.Unlock()

	if empty {
		return fmt.Sprintf(
			`[{"handler":"StackEmpty","parameters":[]},{"handler":"CallbackComplete","parameters":[%d,%q,true,4.2]}]`,
			interaction.CallbackID, interaction.FormID)
	}
	return fmt.Sprintf(`[{"handler":"CallbackComplete","parameters":[%d,%q,true,4.2]}]`,
		interaction.CallbackID, interaction.FormID)
}

// requireOnStack records a violation when a form-scoped interaction
// addresses a form the server does not hold open.
func (s *erpServer) requireOnStack(interaction *wire.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.stack, interaction.FormID) {
		s.recordViolationLocked("%s addressed form %q not on the stack %v",
			interaction.Name, interaction.FormID, s.stack)
	}
}

// send compresses a handler batch into a response envelope and writes
// it. The first reply of a run carries its payload in the sessionData
// field, later replies in data; the client must treat both the same.
func (s *erpServer) send(conn *websocket.Conn, batch string) {
	compressed, err := wire.CompressPayload([]byte(batch))
	if err != nil {
		s.t.Errorf("compressing reply: %v", err)
		return
	}
	s.mu.Lock()
	s.sequence++
	field := "data"
	if s.repliesSent == 0 {
		field = "sessionData"
	}
	s.repliesSent++
	message := fmt.Sprintf(`{"sequence":%d,%q:%q}`, s.sequence, field, compressed)
	s.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		s.t.Errorf("writing reply: %v", err)
	}
}

// --- shared journey helpers ---

// testPassword wraps a literal in a secret buffer, closed on cleanup.
func testPassword(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("creating password buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

// authenticatedSession signs in against the replica, connects the
// socket, and opens the application session. Disconnect runs on test
// cleanup.
func authenticatedSession(t *testing.T, replica *erpServer) *session.Session {
	t.Helper()
	ctx := t.Context()

	client, err := session.New(session.Config{
		BaseURL:       replica.baseURL(),
		Tenant:        replicaTenant,
		InvokeTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if _, err := client.Authenticate(ctx, session.Credentials{
		Username: replicaUsername,
		Password: testPassword(t, replicaPassword),
	}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { client.Disconnect() })
	if _, err := client.OpenSession(ctx, session.DefaultDescriptor()); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	return client
}
