/*
 * Copyright 2019 The Sugarkube Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package argocd

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sugarkube/platformctl/internal/pkg/gitops"
	"github.com/sugarkube/platformctl/internal/pkg/log"
)

const (
	sessionPath      = "/api/v1/session"
	applicationsPath = "/api/v1/applications"
)

// Error body returned by the Argo CD API server
type apiError struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e apiError) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

type applicationPatchRequest struct {
	Name         string `json:"name"`
	AppNamespace string `json:"appNamespace,omitempty"`
	Patch        string `json:"patch"`
	PatchType    string `json:"patchType"`
}

// Talks to the Argo CD API server over HTTP with a session token
type restTransport struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	// called by close(), e.g. to stop a port-forward
	closer func() error
}

func newHTTPClient(insecure bool, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func newRestTransport(baseURL string, httpClient *http.Client, credentials CredentialsFunc) *restTransport {
	t := &restTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}

	t.session = NewSession(func(ctx context.Context) (string, error) {
		username, password, err := credentials(ctx)
		if err != nil {
			return "", errors.WithStack(err)
		}
		return t.login(ctx, username, password)
	})

	return t
}

// Exchanges a username and password for a token
func (t *restTransport) login(ctx context.Context, username string, password string) (string, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	log.Logger.Debugf("Logging in to Argo CD at %s as '%s'", t.baseURL, username)

	status, respBody, err := t.do(ctx, http.MethodPost, sessionPath, nil, body, "")
	if err != nil {
		return "", errors.WithStack(err)
	}

	if status != http.StatusOK {
		return "", errors.Errorf("login to %s failed with HTTP %d: %s",
			t.baseURL, status, errorText(respBody))
	}

	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &session); err != nil {
		return "", errors.Wrap(err, "Error parsing session response")
	}

	return session.Token, nil
}

func (t *restTransport) getApplication(ctx context.Context, app gitops.ApplicationRef) (*application, error) {
	status, body, err := t.authorised(ctx, http.MethodGet, applicationPath(app), namespaceQuery(app), nil)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	case status == http.StatusForbidden && isNotFoundMessage(errorText(body)):
		// the API server hides missing apps behind permission errors
		return nil, ErrNotFound
	case status != http.StatusOK:
		return nil, errors.Errorf("getting application %s failed with HTTP %d: %s",
			app, status, errorText(body))
	}

	a := &application{}
	if err := json.Unmarshal(body, a); err != nil {
		return nil, errors.Wrapf(err, "Error parsing application %s", app)
	}

	return a, nil
}

func (t *restTransport) sync(ctx context.Context, app gitops.ApplicationRef) error {
	status, body, err := t.authorised(ctx, http.MethodPost, applicationPath(app)+"/sync",
		nil, newSyncRequest(app))
	if err != nil {
		return err
	}

	if status == http.StatusOK {
		return nil
	}

	text := errorText(body)
	if strings.Contains(text, ErrOperationInProgress.Error()) {
		return ErrOperationInProgress
	}
	if status == http.StatusNotFound {
		return ErrNotFound
	}

	return errors.Errorf("syncing application %s failed with HTTP %d: %s", app, status, text)
}

func (t *restTransport) patchApplication(ctx context.Context, app gitops.ApplicationRef,
	patch map[string]interface{}) error {
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return errors.WithStack(err)
	}

	request := applicationPatchRequest{
		Name:         app.Name,
		AppNamespace: app.Namespace,
		Patch:        string(patchJSON),
		PatchType:    "merge",
	}

	status, body, err := t.authorised(ctx, http.MethodPatch, applicationPath(app), nil, request)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return errors.Errorf("patching application %s failed with HTTP %d: %s",
			app, status, errorText(body))
	}
}

func (t *restTransport) close() error {
	if t.closer != nil {
		return t.closer()
	}
	return nil
}

// Makes a request with the session token. If the token is rejected the
// session is re-established and the request retried once.
func (t *restTransport) authorised(ctx context.Context, method string, path string,
	query url.Values, body interface{}) (int, []byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := t.session.Token(ctx)
		if err != nil {
			return 0, nil, err
		}

		status, respBody, err := t.do(ctx, method, path, query, body, token)
		if err != nil {
			return 0, nil, err
		}

		if status != http.StatusUnauthorized {
			return status, respBody, nil
		}

		t.session.Invalidate()

		if attempt > 0 {
			return 0, nil, errors.Wrapf(gitops.ErrSession, "Token rejected by %s: %s",
				t.baseURL, errorText(respBody))
		}

		log.Logger.Debugf("Argo CD rejected the session token, logging in again")
	}
}

func (t *restTransport) do(ctx context.Context, method string, path string,
	query url.Values, body interface{}, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, errors.WithStack(err)
		}
		reader = bytes.NewReader(encoded)
	}

	target := t.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, errors.WithStack(err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log.Logger.Tracef("%s %s", method, target)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "Error calling %s %s", method, target)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "Error reading response from %s", target)
	}

	return resp.StatusCode, respBody, nil
}

func applicationPath(app gitops.ApplicationRef) string {
	return applicationsPath + "/" + url.PathEscape(app.Name)
}

func namespaceQuery(app gitops.ApplicationRef) url.Values {
	if app.Namespace == "" {
		return nil
	}
	return url.Values{"appNamespace": []string{app.Namespace}}
}

// Returns the message from an API error body, or the raw body if it isn't one
func errorText(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.text() != "" {
		return e.text()
	}
	return strings.TrimSpace(string(body))
}

func isNotFoundMessage(text string) bool {
	return strings.Contains(strings.ToLower(text), "not found")
}
