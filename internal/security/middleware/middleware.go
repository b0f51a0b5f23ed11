package middleware

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/paymentsportal/internal/apierror"
	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/paymentsportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/auth"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/ratelimit"
)

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-ID"

type identityKey struct{}

// WithIdentity stores the verified caller in ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller resolved by Authenticate.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok && id.UserID != ""
}

// CurrentUserID returns the authenticated caller's id. Reaching a handler
// without Authenticate in front of it is a wiring bug and surfaces as 401.
func CurrentUserID(r *http.Request) (string, error) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return "", domain.ErrUnauthenticated
	}
	return id.UserID, nil
}

// AuthInfoReader is the credential-store projection the gate needs.
type AuthInfoReader interface {
	GetAuthInfo(ctx context.Context, id string) (domain.AuthInfo, error)
}

// Authenticator resolves bearer tokens into identities.
type Authenticator struct {
	tokens    *auth.TokenManager
	users     AuthInfoReader
	responder *apierror.Responder
	logger    *slog.Logger
}

func NewAuthenticator(tokens *auth.TokenManager, users AuthInfoReader, responder *apierror.Responder, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{tokens: tokens, users: users, responder: responder, logger: log}
}

// Authenticate requires an Authorization: Bearer access token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return a.authenticate(next, false)
}

// AuthenticateStream also accepts the token from the "token" query
// parameter, since browsers cannot set headers on a websocket handshake.
func (a *Authenticator) AuthenticateStream(next http.Handler) http.Handler {
	return a.authenticate(next, true)
}

func (a *Authenticator) authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := ""
		if h := r.Header.Get("Authorization"); h != "" {
			token, err := auth.ExtractToken(h)
			if err != nil {
				a.responder.Error(w, r, auth.ErrInvalidToken)
				return
			}
			raw = token
		} else if allowQuery {
			raw = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if raw == "" {
			a.responder.Error(w, r, domain.ErrUnauthenticated)
			return
		}

		id, err := a.resolve(r.Context(), raw)
		if err != nil {
			if errors.Is(err, domain.ErrAccountDisabled) {
				logger.FromContext(r.Context(), a.logger).Warn("disabled account rejected")
			}
			a.responder.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// resolve verifies raw and settles the caller's role. The embedded role claim
// wins; the store is read only when the claim is missing, or to confirm an
// employee is still active.
func (a *Authenticator) resolve(ctx context.Context, raw string) (domain.Identity, error) {
	claims, err := a.tokens.VerifyAccess(raw)
	if err != nil {
		return domain.Identity{}, err
	}

	id := domain.Identity{UserID: claims.Subject, Role: claims.Role}
	if id.Role.Valid() && id.Role != domain.RoleEmployee {
		return id, nil
	}

	info, err := a.users.GetAuthInfo(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, domain.ErrUnauthenticated
		}
		return domain.Identity{}, fmt.Errorf("resolve role: %w", err)
	}
	if !id.Role.Valid() {
		id.Role = info.Role
	}
	if id.Role == domain.RoleEmployee && !info.Active {
		return domain.Identity{}, domain.ErrAccountDisabled
	}
	return id, nil
}

// RequireRole rejects callers whose role is not among roles with 403.
func RequireRole(responder *apierror.Responder, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				responder.Error(w, r, domain.ErrUnauthenticated)
				return
			}
			if !id.HasRole(roles...) {
				responder.Error(w, r, domain.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID stamps every request with an id, reusing a well-formed inbound one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), reqID)))
	})
}

// Recoverer turns a handler panic into a logged 500 with the JSON error
// envelope. http.ErrAbortHandler is re-raised so the server can drop the
// connection.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context(), log).Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
				)
				if r.Header.Get("Connection") == "Upgrade" {
					return
				}
				apierror.JSON(w, http.StatusInternalServerError, apierror.Response{
					Error:   apierror.CodeInternal,
					Message: "internal server error",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog logs one line per request once it completes.
func AccessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.FromContext(r.Context(), log).Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack passes through to the underlying writer for websocket upgrades.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// RateLimit rejects callers over budget with 429 and Retry-After. Requests
// are keyed by scope and client IP. Limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := limiter.Allow(r.Context(), scope+":"+ClientIP(r))
			if err != nil {
				logger.FromContext(r.Context(), log).Warn("rate limiter unavailable",
					slog.String("scope", scope),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				metrics.ObserveRateLimited(scope)
				secs := int(decision.RetryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				apierror.JSON(w, http.StatusTooManyRequests, apierror.Response{
					Error:   apierror.CodeTooManyRequests,
					Message: "too many requests, try again later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the caller address, honouring the first X-Forwarded-For hop.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
