// Package apierror maps errors onto HTTP status codes and writes the JSON
// error envelope shared by every endpoint.
package apierror

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/auth"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/csrf"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// Error codes carried in the "error" field.
const (
	CodeValidation         = "ValidationError"
	CodeUnauthenticated    = "Unauthenticated"
	CodeInvalidCredentials = "InvalidCredentials"
	CodeForbidden          = "Forbidden"
	CodeAccountDisabled    = "AccountDisabled"
	CodeInvalidCSRF        = "invalid_csrf"
	CodeNotFound           = "NotFound"
	CodeConflict           = "Conflict"
	CodeWrongState         = "not_found_or_wrong_state"
	CodeTooManyRequests    = "TooManyRequests"
	CodeUnsupportedMedia   = "UnsupportedMediaType"
	CodeInternal           = "InternalServerError"
)

// Response is the error envelope. Optional members are omitted when empty.
type Response struct {
	Error   string             `json:"error"`
	Message string             `json:"message,omitempty"`
	Field   string             `json:"field,omitempty"`
	Issues  []validation.Issue `json:"issues,omitempty"`
	Detail  string             `json:"detail,omitempty"`
}

// Responder writes error responses and logs unexpected failures.
type Responder struct {
	logger        *slog.Logger
	exposeDetails bool
}

// NewResponder returns a Responder. exposeDetails adds the internal error
// text to 500 responses and must be false in production.
func NewResponder(logger *slog.Logger, exposeDetails bool) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{logger: logger, exposeDetails: exposeDetails}
}

// Error classifies err and writes the matching status and envelope.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status, body := Classify(err)
	if status == http.StatusInternalServerError {
		rs.logger.Error("unhandled error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if rs.exposeDetails {
			body.Detail = err.Error()
		}
	}
	JSON(w, status, body)
}

// Classify maps err onto its HTTP status and response body.
func Classify(err error) (int, Response) {
	var verr *validation.Error
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, Response{Error: CodeValidation, Message: "Request validation failed", Issues: verr.Issues}
	case errors.Is(err, csrf.ErrInvalidCSRF):
		return http.StatusForbidden, Response{Error: CodeInvalidCSRF}
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, Response{Error: CodeUnauthenticated, Message: "authentication required"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, Response{Error: CodeInvalidCredentials, Message: "invalid username or password"}
	case errors.Is(err, domain.ErrAccountDisabled):
		return http.StatusForbidden, Response{Error: CodeAccountDisabled, Message: "account disabled"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, Response{Error: CodeForbidden, Message: "insufficient role"}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, Response{Error: CodeWrongState, Message: "transaction not found or not in the required state"}
	case errors.As(err, &conflict):
		return http.StatusConflict, Response{Error: CodeConflict, Message: conflict.Field + " already exists", Field: conflict.Field}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, Response{Error: CodeConflict}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, Response{Error: CodeNotFound}
	default:
		return http.StatusInternalServerError, Response{Error: CodeInternal, Message: "internal server error"}
	}
}

// JSON writes v with status as an application/json response.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
