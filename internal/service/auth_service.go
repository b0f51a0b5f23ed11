package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/paymentsportal/internal/observability/metrics"
	"github.com/aryan0dhankhar/paymentsportal/internal/reliability/retry"
	"github.com/aryan0dhankhar/paymentsportal/internal/repository"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/audit"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/auth"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// accountNumberAttempts bounds regeneration after an account number collision.
const accountNumberAttempts = 5

// AuthService handles registration, login and the refresh-token session.
type AuthService struct {
	users   domain.UserRepository
	hasher  PasswordHasher
	tokens  *auth.TokenManager
	revoked repository.RevocationStore
	audit   *audit.Logger
	logger  *slog.Logger
	now     func() time.Time

	dummyMu   sync.Mutex
	dummyHash string
}

// Session is the credential pair handed to a client after authentication.
// The refresh token travels only in its cookie.
type Session struct {
	User           *domain.User
	AccessToken    string
	RefreshToken   string
	RefreshExpires time.Time
}

func NewAuthService(
	users domain.UserRepository,
	hasher PasswordHasher,
	tokens *auth.TokenManager,
	revoked repository.RevocationStore,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		revoked: revoked,
		audit:   auditLog,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, in validation.RegisterInput) (*Session, error) {
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	user, err := createWithAccountNumber(ctx, s.users, s.logger, &domain.User{
		FirstName:    in.FirstName,
		Surname:      in.Surname,
		IDNumber:     in.IDNumber,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("customer registered", slog.String("user_id", user.ID))
	return s.issueSession(user)
}

// createWithAccountNumber stores a copy of template under a fresh id and
// account number, regenerating the number when it collides.
func createWithAccountNumber(ctx context.Context, users domain.UserRepository, log *slog.Logger, template *domain.User) (*domain.User, error) {
	cfg := retry.Immediate(accountNumberAttempts, conflictOn("accountNumber"))
	return retry.Do(ctx, cfg, log, "create user", func(ctx context.Context) (*domain.User, error) {
		accountNumber, err := generateAccountNumber()
		if err != nil {
			return nil, err
		}
		user := *template
		if template.Employee != nil {
			emp := *template.Employee
			user.Employee = &emp
		}
		user.ID = uuid.NewString()
		user.AccountNumber = accountNumber
		if err := users.Create(ctx, &user); err != nil {
			return nil, err
		}
		return &user, nil
	})
}

// Login checks credentials. Unknown usernames and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in validation.LoginInput) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Pay for one comparison anyway so timing does not reveal
			// whether the username exists.
			_, _ = s.hasher.Verify(ctx, in.Password, s.unknownUserHash(ctx))
			s.loginFailed(ctx, "", "unknown username")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, in.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !ok {
		s.loginFailed(ctx, user.ID, "wrong password")
		return nil, domain.ErrInvalidCredentials
	}
	if user.Disabled() {
		metrics.ObserveLogin("disabled")
		s.audit.LogLogin(ctx, user.ID, audit.StatusDenied, "account disabled")
		return nil, domain.ErrAccountDisabled
	}

	metrics.ObserveLogin("success")
	s.audit.LogLogin(ctx, user.ID, audit.StatusSuccess, string(user.Role))
	return s.issueSession(user)
}

// unknownUserHash is a hash of a random secret, made with the live hasher
// settings so a comparison against it costs the same as a real one.
func (s *AuthService) unknownUserHash(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash == "" {
		hash, err := s.hasher.Hash(ctx, uuid.NewString())
		if err != nil {
			logger.FromContext(ctx, s.logger).Warn("failed to prepare dummy hash", slog.String("error", err.Error()))
			return ""
		}
		s.dummyHash = hash
	}
	return s.dummyHash
}

func (s *AuthService) loginFailed(ctx context.Context, userID, reason string) {
	metrics.ObserveLogin("invalid")
	s.audit.LogLogin(ctx, userID, audit.StatusFailed, reason)
}

// Refresh exchanges a refresh token for a new access token and rotates the
// refresh token. The presented token is revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	// The token is spent before anything else; only one rotation may win.
	won, err := s.revoked.RevokeOnce(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !won {
		logger.FromContext(ctx, s.logger).Warn("revoked refresh token presented", slog.String("user_id", claims.Subject))
		return nil, auth.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if user.Disabled() {
		return nil, domain.ErrAccountDisabled
	}

	return s.issueSession(user)
}

// Logout revokes the refresh token if it is still valid. It never fails on a
// bad token: the client is logged out either way.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.audit.LogAction(ctx, claims.Subject, "logout", "session", claims.Subject, audit.StatusSuccess, "")
	return nil
}

// Me returns the caller's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ChangePassword replaces the caller's password after re-checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, in validation.ChangePasswordInput) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(ctx, in.CurrentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !ok {
		s.audit.LogAction(ctx, userID, "change_password", "user", userID, audit.StatusDenied, "wrong current password")
		return domain.ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.audit.LogAction(ctx, userID, "change_password", "user", userID, audit.StatusSuccess, "")
	return nil
}

func (s *AuthService) issueSession(user *domain.User) (*Session, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:           user,
		AccessToken:    access,
		RefreshToken:   refresh,
		RefreshExpires: s.now().Add(s.tokens.RefreshTTL()),
	}, nil
}
