package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/apierror"
	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/csrf"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/middleware"
	"github.com/aryan0dhankhar/paymentsportal/internal/service"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// Refresh cookie attributes.
const (
	RefreshCookieName = "refresh_token"
	RefreshCookiePath = "/api/auth"
)

// AuthHandler handles session and profile endpoints
type AuthHandler struct {
	auth      *service.AuthService
	csrf      *csrf.Guard
	responder *apierror.Responder
	secure    bool
	logger    *slog.Logger
}

// NewAuthHandler creates a new auth handler. secure controls the Secure and
// SameSite attributes of the refresh cookie.
func NewAuthHandler(auth *service.AuthService, guard *csrf.Guard, responder *apierror.Responder, secure bool, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, csrf: guard, responder: responder, secure: secure, logger: logger}
}

// SessionResponse is returned by register and login. The refresh token is
// only ever sent as a cookie.
type SessionResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"accessToken"`
	Role        domain.Role  `json:"role"`
}

// CSRF handles GET|POST /api/auth/csrf
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.Issue(w)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in, _ := middleware.Valid[validation.RegisterInput](r)
	session, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	h.setRefreshCookie(w, session)
	apierror.JSON(w, http.StatusCreated, sessionResponse(session))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	in, _ := middleware.Valid[validation.LoginInput](r)
	session, err := h.auth.Login(r.Context(), in)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	h.setRefreshCookie(w, session)
	apierror.JSON(w, http.StatusOK, sessionResponse(session))
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		h.responder.Error(w, r, domain.ErrUnauthenticated)
		return
	}
	session, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.clearRefreshCookie(w)
		h.responder.Error(w, r, err)
		return
	}
	h.setRefreshCookie(w, session)
	apierror.JSON(w, http.StatusOK, map[string]string{"accessToken": session.AccessToken})
}

// Logout handles POST /api/auth/logout. The cookie is cleared regardless of
// whether the presented token was still valid.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("logout revocation failed", slog.String("error", err.Error()))
		}
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/user/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, user)
}

// ChangePassword handles POST /api/user/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	in, _ := middleware.Valid[validation.ChangePasswordInput](r)
	if err := h.auth.ChangePassword(r.Context(), userID, in); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	apierror.JSON(w, http.StatusOK, okResponse{OK: true})
}

func sessionResponse(s *service.Session) SessionResponse {
	return SessionResponse{User: s.User, AccessToken: s.AccessToken, Role: s.User.Role}
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, s *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    s.RefreshToken,
		Path:     RefreshCookiePath,
		Expires:  s.RefreshExpires,
		MaxAge:   int(time.Until(s.RefreshExpires).Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: h.sameSite(),
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: h.sameSite(),
	})
}

// sameSite is None for the cross-site SPA; browsers drop None cookies that
// are not Secure, so plain-HTTP development falls back to Lax.
func (h *AuthHandler) sameSite() http.SameSite {
	if h.secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
