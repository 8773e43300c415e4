// Copyright 2026 The Ledgerglass Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ledgerglass/ledgerglass/lib/netutil"
)

// verificationTokenField is the hidden input carrying the anti-forgery
// token on the sign-in page. The server rejects a credential POST that
// does not echo it.
const verificationTokenField = "__RequestVerificationToken"

// Artifacts describes a completed authentication. The session cookies
// themselves live in the session's cookie jar, not here.
type Artifacts struct {
	// Username is the account that authenticated.
	Username string

	// DisplayName is the account display name when the post-login page
	// exposes one, empty otherwise.
	DisplayName string

	// AuthenticatedAt is when the server accepted the credentials.
	AuthenticatedAt time.Time
}

// loginPage is the relevant content of a rendered sign-in page.
type loginPage struct {
	// action is the resolved URL the credential form posts to.
	action *url.URL

	// token is the anti-forgery token to echo in the POST body.
	token string
}

// Authenticate runs the HTTP sign-in flow: fetch the sign-in page,
// extract the anti-forgery token and form action, and post the
// credentials. On success the session cookies are captured in the
// session's cookie jar; the redirect target itself is never fetched.
//
// Rejected credentials and unparseable sign-in pages return an
// *AuthenticationError; transport failures return a *ConnectionError.
// The password Buffer is read but not closed; the caller retains
// ownership.
func (s *Session) Authenticate(ctx context.Context, credentials Credentials) (*Artifacts, error) {
	if credentials.Username == "" {
		return nil, fmt.Errorf("session: username is required")
	}
	if credentials.Password == nil {
		return nil, fmt.Errorf("session: password is required")
	}

	page, err := s.fetchLoginPage(ctx)
	if err != nil {
		return nil, err
	}

	// Password is converted to string at the form-encoding boundary.
	// The heap copy is short-lived: it exists only during the POST.
	form := url.Values{
		"UserName":             {credentials.Username},
		"Password":             {credentials.Password.String()},
		verificationTokenField: {page.token},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, page.action.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("session: building sign-in request: %w", err)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := s.httpClient.Do(request)
	if err != nil {
		return nil, &ConnectionError{Op: "login", Reason: "posting credentials", Err: err}
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, &ConnectionError{Op: "login", Reason: "reading sign-in response", Err: err}
	}

	switch {
	case response.StatusCode >= 300 && response.StatusCode < 400:
		// Redirect into the application shell: accepted. The cookies
		// are already in the jar and the target is not needed.
	case response.StatusCode == http.StatusOK:
		// A 200 is either a post-login landing page or a re-render of
		// the sign-in form after rejected credentials. The presence of
		// the verification token tells them apart.
		if _, reparseErr := parseLoginPage(body, page.action); reparseErr == nil {
			return nil, &AuthenticationError{Reason: "credentials rejected for " + credentials.Username}
		}
	case response.StatusCode >= 400 && response.StatusCode < 500:
		return nil, &AuthenticationError{Reason: fmt.Sprintf("sign-in refused with status %d", response.StatusCode)}
	default:
		return nil, &ConnectionError{Op: "login", Reason: fmt.Sprintf("server returned status %d", response.StatusCode)}
	}

	s.logger.Info("authenticated",
		"username", credentials.Username,
		"base_url", s.baseURL.String(),
	)

	return &Artifacts{
		Username:        credentials.Username,
		DisplayName:     extractDisplayName(body),
		AuthenticatedAt: s.clock.Now(),
	}, nil
}

// fetchLoginPage retrieves and parses the sign-in page. GET redirects
// are followed, so tenant-specific login URLs work; the form action is
// resolved against wherever the client landed.
func (s *Session) fetchLoginPage(ctx context.Context) (*loginPage, error) {
	signInURL := s.baseURL.JoinPath("SignIn")

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, signInURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("session: building sign-in page request: %w", err)
	}

	response, err := s.httpClient.Do(request)
	if err != nil {
		return nil, &ConnectionError{Op: "login", Reason: "fetching sign-in page", Err: err}
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, &ConnectionError{Op: "login", Reason: "reading sign-in page", Err: err}
	}
	if response.StatusCode != http.StatusOK {
		return nil, &ConnectionError{Op: "login", Reason: fmt.Sprintf("sign-in page returned status %d", response.StatusCode)}
	}

	pageURL := signInURL
	if response.Request != nil && response.Request.URL != nil {
		pageURL = response.Request.URL
	}

	page, err := parseLoginPage(body, pageURL)
	if err != nil {
		return nil, &AuthenticationError{Reason: "unparseable sign-in page", Err: err}
	}
	return page, nil
}

// parseLoginPage locates the credential form and its anti-forgery
// token. The form is recognized by containing the verification token
// input; its action attribute, resolved against pageURL, is where the
// credentials post. An action-less form posts back to the page itself.
func parseLoginPage(body []byte, pageURL *url.URL) (*loginPage, error) {
	document, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing sign-in HTML: %w", err)
	}

	for _, form := range elementsNamed(document, "form") {
		token := ""
		for _, input := range elementsNamed(form, "input") {
			if attribute(input, "name") == verificationTokenField {
				token = attribute(input, "value")
				break
			}
		}
		if token == "" {
			continue
		}

		action := pageURL
		if raw := attribute(form, "action"); raw != "" {
			parsed, parseErr := url.Parse(raw)
			if parseErr != nil {
				return nil, fmt.Errorf("parsing form action %q: %w", raw, parseErr)
			}
			action = pageURL.ResolveReference(parsed)
		}
		return &loginPage{action: action, token: token}, nil
	}

	return nil, errors.New("no form with a verification token")
}

// extractDisplayName pulls the account display name from a post-login
// page when present. Observed builds render it as a meta tag; pages
// without one, and bodyless redirect responses, yield the empty
// string.
func extractDisplayName(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	document, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	for _, meta := range elementsNamed(document, "meta") {
		if attribute(meta, "name") == "account-display-name" {
			return attribute(meta, "content")
		}
	}
	return ""
}

// elementsNamed returns every element with the given tag under root in
// document order. The walk is iterative; page depth is
// server-controlled.
func elementsNamed(root *html.Node, tag string) []*html.Node {
	var matched []*html.Node
	stack := []*html.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.Type == html.ElementNode && node.Data == tag {
			matched = append(matched, node)
		}
		// Children push in reverse so the leftmost child pops first.
		var children []*html.Node
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			children = append(children, child)
		}
		for index := len(children) - 1; index >= 0; index-- {
			stack = append(stack, children[index])
		}
	}
	return matched
}

// attribute returns the named attribute's value, or "" when absent.
func attribute(node *html.Node, name string) string {
	for _, attr := range node.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}
