package middleware

import (
	"net/http"

	"github.com/aryan0dhankhar/paymentsportal/internal/apierror"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/csrf"
)

// CSRFProtect enforces the double-submit check on unsafe methods.
func CSRFProtect(guard *csrf.Guard, responder *apierror.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if err := guard.Verify(r); err != nil {
				responder.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
