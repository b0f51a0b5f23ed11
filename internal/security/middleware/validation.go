package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/paymentsportal/internal/apierror"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// MaxBodyBytes caps request bodies read by the validator.
const MaxBodyBytes = 64 << 10

// ValidateJSONContentType middleware ensures POST/PUT/PATCH requests with a body are JSON
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
					slog.String("method", r.Method),
				)
				apierror.JSON(w, http.StatusUnsupportedMediaType, apierror.Response{
					Error:   apierror.CodeUnsupportedMedia,
					Message: "Content-Type must be application/json",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type validatedKey struct{}

// Validate runs schema over the request body, query and URL params and
// stores the typed result for the handler. Rejected input never reaches it.
func Validate[T any](schema validation.Schema[T], responder *apierror.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			in, err := readInput(w, r)
			if err != nil {
				responder.Error(w, r, err)
				return
			}
			value, err := schema(in)
			if err != nil {
				responder.Error(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), validatedKey{}, value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Valid returns the value stored by Validate[T]. ok is false when the route
// was wired without the matching Validate.
func Valid[T any](r *http.Request) (T, bool) {
	v, ok := r.Context().Value(validatedKey{}).(T)
	return v, ok
}

func readInput(w http.ResponseWriter, r *http.Request) (validation.Input, error) {
	in := validation.Input{Query: r.URL.Query(), Params: map[string]string{}}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key != "*" {
				in.Params[key] = rctx.URLParams.Values[i]
			}
		}
	}
	if r.Body == nil || r.Body == http.NoBody {
		return in, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return in, &validation.Error{Issues: []validation.Issue{{
			Path: "body", Message: "Request body too large or unreadable", Code: validation.CodeTooBig,
		}}}
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	in.Body = body
	return in, nil
}
