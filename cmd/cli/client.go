package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const csrfHeader = "X-CSRF-Token"

// apiError is the JSON error body the server returns.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	Issues  []struct {
		Path    string `json:"path"`
		Message string `json:"message"`
	} `json:"issues,omitempty"`
}

func (e *apiError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", e.Status, e.Code)
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	for _, is := range e.Issues {
		fmt.Fprintf(&b, "\n  %s: %s", is.Path, is.Message)
	}
	return b.String()
}

// client talks to the API the way the browser client does: bearer token in
// memory, cookies replayed by hand, CSRF token echoed on every request.
type client struct {
	base string
	http *http.Client
	sess *session
}

func newClient(base string, sess *session) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
		sess: sess,
	}
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sess.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sess.AccessToken)
	}
	if c.sess.CSRFToken != "" {
		req.Header.Set(csrfHeader, c.sess.CSRFToken)
	}
	for name, value := range c.sess.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	for _, ck := range resp.Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.sess.Cookies, ck.Name)
			continue
		}
		c.sess.Cookies[ck.Name] = ck.Value
	}

	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ensureCSRF fetches a CSRF token when the session has none.
func (c *client) ensureCSRF(ctx context.Context) error {
	if c.sess.CSRFToken != "" {
		return nil
	}
	var out struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/csrf", nil, &out); err != nil {
		return err
	}
	c.sess.CSRFToken = out.CSRFToken
	return nil
}
