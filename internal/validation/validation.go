// Package validation holds the per-endpoint request schemas. A schema reads
// the body, query string and path parameters of a request as one unit,
// canonicalizes what is safe to canonicalize, and either returns a typed
// value or an *Error listing every offending field.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Issue codes.
const (
	CodeInvalidType   = "invalid_type"
	CodeInvalidString = "invalid_string"
	CodeInvalidEnum   = "invalid_enum_value"
	CodeTooSmall      = "too_small"
	CodeTooBig        = "too_big"
	CodeUnrecognized  = "unrecognized_keys"
	CodeInvalidJSON   = "invalid_json"
)

// MaxPage caps offset pagination so page*limit stays well inside int range.
const MaxPage = 100000

// Issue is one field-level validation failure.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error is returned by every schema when the input is rejected.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Path+": "+is.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasPath reports whether any issue targets path.
func (e *Error) HasPath(path string) bool {
	for _, is := range e.Issues {
		if is.Path == path {
			return true
		}
	}
	return false
}

// Input is the structural triple a schema validates.
type Input struct {
	Body   []byte
	Query  url.Values
	Params map[string]string
}

// Schema validates an Input into T.
type Schema[T any] func(in Input) (T, error)

// checker accumulates issues for one request.
type checker struct {
	issues []Issue
}

func (c *checker) add(path, code, msg string) {
	c.issues = append(c.issues, Issue{Path: path, Message: msg, Code: code})
}

func (c *checker) err() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &Error{Issues: c.issues}
}

// decodeBody strictly decodes a JSON object into dst. An empty body is
// treated as an empty object.
func (c *checker) decodeBody(body []byte, dst any) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr):
			path := "body"
			if typeErr.Field != "" {
				path += "." + typeErr.Field
			}
			c.add(path, CodeInvalidType, fmt.Sprintf("Expected %s, received %s", typeErr.Type.Kind(), typeErr.Value))
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
			c.add("body."+field, CodeUnrecognized, fmt.Sprintf("Unrecognized key: %q", field))
		default:
			c.add("body", CodeInvalidJSON, "Malformed JSON body")
		}
		return false
	}
	if _, err := dec.Token(); err != io.EOF {
		c.add("body", CodeInvalidJSON, "Unexpected data after JSON body")
		return false
	}
	return true
}

// strictQuery rejects query keys outside allowed.
func (c *checker) strictQuery(q url.Values, allowed ...string) {
	for key := range q {
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
				break
			}
		}
		if !known {
			c.add("query."+key, CodeUnrecognized, fmt.Sprintf("Unrecognized key: %q", key))
		}
	}
}

// field is a fluent check chain over one string value. After the first
// failure the remaining checks are skipped.
type field struct {
	c       *checker
	path    string
	val     string
	present bool
	failed  bool
}

func (c *checker) field(path string, v *string) *field {
	f := &field{c: c, path: path}
	if v != nil {
		f.val, f.present = *v, true
	}
	return f
}

func (c *checker) param(path, v string) *field {
	return &field{c: c, path: path, val: v, present: v != ""}
}

func (f *field) fail(code, msg string) *field {
	if !f.failed {
		f.c.add(f.path, code, msg)
		f.failed = true
	}
	return f
}

func (f *field) trim() *field {
	f.val = strings.TrimSpace(f.val)
	return f
}

func (f *field) upper() *field {
	f.val = strings.ToUpper(f.val)
	return f
}

func (f *field) lower() *field {
	f.val = strings.ToLower(f.val)
	return f
}

func (f *field) required() *field {
	if !f.present {
		return f.fail(CodeInvalidType, "Required")
	}
	return f
}

// optional marks an absent or blank value as skipped.
func (f *field) optional() *field {
	if !f.present || f.val == "" {
		f.present = false
		f.failed = true
	}
	return f
}

func (f *field) max(n int) *field {
	if !f.failed && len([]rune(f.val)) > n {
		return f.fail(CodeTooBig, fmt.Sprintf("String must contain at most %d character(s)", n))
	}
	return f
}

func (f *field) match(re *regexp.Regexp, msg string) *field {
	if !f.failed && !re.MatchString(f.val) {
		return f.fail(CodeInvalidString, msg)
	}
	return f
}

func (f *field) ok() bool {
	return f.present && !f.failed
}

func (f *field) value() string {
	return f.val
}

// intQuery parses an integer query parameter within [min, max], returning
// def when absent.
func (c *checker) intQuery(q url.Values, key string, def, min, max int) int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.add("query."+key, CodeInvalidType, "Expected integer, received "+strconv.Quote(raw))
		return def
	}
	if n < min {
		c.add("query."+key, CodeTooSmall, fmt.Sprintf("Number must be greater than or equal to %d", min))
		return def
	}
	if max > 0 && n > max {
		c.add("query."+key, CodeTooBig, fmt.Sprintf("Number must be less than or equal to %d", max))
		return def
	}
	return n
}

// enumQuery returns the query value if it is one of allowed, def if absent.
func (c *checker) enumQuery(q url.Values, key, def string, allowed ...string) string {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def
	}
	for _, a := range allowed {
		if raw == a {
			return raw
		}
	}
	c.add("query."+key, CodeInvalidEnum, fmt.Sprintf("Invalid enum value. Expected %s, received %q", strings.Join(allowed, " | "), raw))
	return def
}

// cursorQuery parses an RFC 3339 creation-time cursor.
func (c *checker) cursorQuery(q url.Values) *time.Time {
	raw := strings.TrimSpace(q.Get("cursor"))
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		c.add("query.cursor", CodeInvalidString, "Invalid cursor timestamp")
		return nil
	}
	return &t
}
