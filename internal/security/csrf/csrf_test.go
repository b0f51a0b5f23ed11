package csrf

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func issued(t *testing.T, g *Guard) (*http.Cookie, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	token, err := g.Issue(rec)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	return cookies[0], token
}

func TestIssueSetsReadableSecureCookie(t *testing.T) {
	g := NewGuard("", true)
	c, token := issued(t, g)

	if c.Name != DefaultCookieName || c.Value != token {
		t.Fatalf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if c.HttpOnly {
		t.Fatal("csrf cookie must be readable by client script")
	}
	if !c.Secure || c.Path != "/" || c.SameSite != http.SameSiteNoneMode || c.MaxAge != 3600 {
		t.Fatalf("unexpected cookie attributes %+v", c)
	}
	if len(token) != 43 {
		t.Fatalf("expected 32 bytes base64url without padding, got %d chars", len(token))
	}
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	g := NewGuard("", true)
	_, a := issued(t, g)
	_, b := issued(t, g)
	if a == b {
		t.Fatal("tokens must be random")
	}
}

func TestVerify(t *testing.T) {
	g := NewGuard("csrf", true)
	c, token := issued(t, g)

	cases := []struct {
		name   string
		cookie *http.Cookie
		header string
		ok     bool
	}{
		{"match", c, token, true},
		{"missing header", c, "", false},
		{"missing cookie", nil, token, false},
		{"mismatch", c, token + "x", false},
		{"both missing", nil, "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodPost, "/api/tx", nil)
		if tc.cookie != nil {
			r.AddCookie(tc.cookie)
		}
		if tc.header != "" {
			r.Header.Set(HeaderName, tc.header)
		}
		err := g.Verify(r)
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidCSRF) {
			t.Errorf("%s: expected ErrInvalidCSRF, got %v", tc.name, err)
		}
	}
}
