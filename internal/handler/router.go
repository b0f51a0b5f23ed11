package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/paymentsportal/internal/apierror"
	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/events"
	"github.com/aryan0dhankhar/paymentsportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/paymentsportal/internal/security"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/auth"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/csrf"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/middleware"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/ratelimit"
	"github.com/aryan0dhankhar/paymentsportal/internal/service"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// RouterDependencies collects everything the HTTP surface is wired from.
type RouterDependencies struct {
	Logger *slog.Logger

	Tokens      *auth.TokenManager
	Users       middleware.AuthInfoReader
	CSRF        *csrf.Guard
	Authz       *security.AuthorizationService
	AuthLimiter ratelimit.Limiter
	APILimiter  ratelimit.Limiter

	Auth          *service.AuthService
	Beneficiaries *service.BeneficiaryService
	Transactions  *service.TransactionService
	Admin         *service.AdminService

	Health *HealthHandler
	// Hub feeds GET /api/intl/stream; the route is absent when nil.
	Hub *events.Hub

	AllowedOrigins []string
	CookieSecure   bool
	// ExposeErrors adds internal error text to 500 responses.
	ExposeErrors bool
}

// NewRouter wires the HTTP routes exposed by the API.
func NewRouter(deps RouterDependencies) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	responder := apierror.NewResponder(log, deps.ExposeErrors)
	authn := middleware.NewAuthenticator(deps.Tokens, deps.Users, responder, log)
	csrfGuard := middleware.CSRFProtect(deps.CSRF, responder)
	jsonOnly := middleware.ValidateJSONContentType(log)
	health := deps.Health
	if health == nil {
		health = NewHealthHandler(nil, log)
	}

	authH := NewAuthHandler(deps.Auth, deps.CSRF, responder, deps.CookieSecure, log)
	txH := NewTransactionHandler(deps.Transactions, responder, log)
	benH := NewBeneficiaryHandler(deps.Beneficiaries, responder)
	adminH := NewAdminHandler(deps.Admin, responder, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer(log))
	r.Use(middleware.AccessLog(log))
	r.Use(metrics.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrf.HeaderName, middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierror.JSON(w, http.StatusNotFound, apierror.Response{Error: apierror.CodeNotFound, Message: "route not found"})
	})

	r.Get("/healthz", health.Health)
	r.Get("/readyz", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", health.Health)

		api.Route("/auth", func(ar chi.Router) {
			ar.Use(middleware.RateLimit(deps.AuthLimiter, "auth", log))
			ar.Get("/csrf", authH.CSRF)
			ar.Post("/csrf", authH.CSRF)

			ar.Group(func(g chi.Router) {
				g.Use(csrfGuard, jsonOnly)
				g.With(middleware.Validate(validation.Register, responder)).Post("/register", authH.Register)
				g.With(middleware.Validate(validation.Login, responder)).Post("/login", authH.Login)
				g.Post("/refresh", authH.Refresh)
				g.Post("/logout", authH.Logout)
			})
		})

		if deps.Hub != nil {
			stream := NewStreamHandler(deps.Hub, deps.Authz, responder, deps.AllowedOrigins, log)
			api.With(
				middleware.RateLimit(deps.APILimiter, "api", log),
				authn.AuthenticateStream,
				middleware.RequireRole(responder, domain.RoleEmployee, domain.RoleAdmin),
			).Get("/intl/stream", stream.ServeHTTP)
		}

		api.Group(func(p chi.Router) {
			p.Use(middleware.RateLimit(deps.APILimiter, "api", log))
			p.Use(authn.Authenticate)
			p.Use(csrfGuard, jsonOnly)

			p.Get("/user/me", authH.Me)
			p.With(middleware.Validate(validation.ChangePassword, responder)).Post("/user/password", authH.ChangePassword)

			p.Group(func(c chi.Router) {
				c.Use(middleware.RequireRole(responder, domain.RoleCustomer))

				c.With(middleware.Validate(validation.CreateBeneficiary, responder)).Post("/beneficiaries", benH.Create)
				c.With(middleware.Validate(validation.ListBeneficiaries, responder)).Get("/beneficiaries", benH.List)

				listTx := middleware.Validate(validation.ListTransactions, responder)
				c.With(middleware.Validate(validation.CreateTransaction, responder)).Post("/tx", txH.Create)
				c.With(listTx).Get("/tx", txH.List)
				c.With(listTx).Get("/transactions", txH.List)
				c.With(middleware.Validate(validation.TransactionID, responder)).Get("/tx/{id}", txH.Get)
			})

			p.Group(func(s chi.Router) {
				s.Use(middleware.RequireRole(responder, domain.RoleEmployee, domain.RoleAdmin))

				s.With(middleware.Validate(validation.EmployeeQueue, responder)).Get("/intl/queue", txH.Queue)
				s.With(middleware.Validate(validation.BulkSubmit, responder)).Post("/intl/submit-bulk", txH.SubmitBulk)
				s.With(middleware.Validate(validation.TransactionID, responder)).Get("/intl/{id}", txH.StaffGet)
				s.With(middleware.Validate(validation.Verify, responder)).Post("/intl/{id}/verify", txH.Verify)
				s.With(middleware.Validate(validation.TransactionID, responder)).Post("/intl/{id}/submit", txH.Submit)
				s.With(middleware.Validate(validation.ListCustomers, responder)).Get("/staff/customers", adminH.ListCustomers)
			})

			p.Route("/admin", func(a chi.Router) {
				a.Use(middleware.RequireRole(responder, domain.RoleAdmin))

				a.With(middleware.Validate(validation.CreateEmployee, responder)).Post("/employees", adminH.CreateEmployee)
				a.Get("/employees", adminH.ListEmployees)
				a.With(middleware.Validate(validation.SetEmployeeActive, responder)).Patch("/employees/{id}/active", adminH.SetEmployeeActive)
				a.With(middleware.Validate(validation.ResetEmployeePassword, responder)).Patch("/employees/{id}/password", adminH.ResetEmployeePassword)
				a.With(middleware.Validate(validation.ListUsers, responder)).Get("/users", adminH.ListUsers)
				a.With(middleware.Validate(validation.AdminTransactions, responder)).Get("/transactions", txH.AdminList)
			})
		})
	})

	return otelhttp.NewHandler(r, "http.server")
}
