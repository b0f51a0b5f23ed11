// Package handler exposes the payments API over HTTP.
package handler

import (
	"net/http"

	"github.com/aryan0dhankhar/paymentsportal/internal/apierror"
	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/middleware"
)

type okResponse struct {
	OK bool `json:"ok"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// identity returns the caller set by the authenticator, writing a 401 when
// the route was reached without one.
func identity(w http.ResponseWriter, r *http.Request, responder *apierror.Responder) (domain.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		responder.Error(w, r, domain.ErrUnauthenticated)
	}
	return id, ok
}
