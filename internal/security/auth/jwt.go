package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

// Token type markers carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrInvalidToken is the single failure reported for any token problem:
// bad signature, wrong issuer or audience, expiry, malformed input or the
// wrong token type.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims issued by TokenManager. Role is optional; tokens
// minted before roles were embedded do not carry it.
type Claims struct {
	Type string      `json:"type,omitempty"`
	Role domain.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.Secret == "" || cfg.Issuer == "" || cfg.Audience == "" {
		return nil, fmt.Errorf("jwt secret, issuer and audience are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("jwt ttls must be positive")
	}
	return &TokenManager{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of tm that reads time from now.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *tm
	cp.now = now
	return &cp
}

// AccessTTL is the lifetime of access tokens.
func (tm *TokenManager) AccessTTL() time.Duration { return tm.accessTTL }

// RefreshTTL is the lifetime of refresh tokens.
func (tm *TokenManager) RefreshTTL() time.Duration { return tm.refreshTTL }

// IssueAccessToken signs a short-lived bearer token for subject.
func (tm *TokenManager) IssueAccessToken(subject string, role domain.Role) (string, error) {
	return tm.issue(subject, role, TypeAccess, tm.accessTTL)
}

// IssueRefreshToken signs a long-lived renewal token for subject. Each
// refresh token gets a unique ID so it can be revoked individually.
func (tm *TokenManager) IssueRefreshToken(subject string, role domain.Role) (string, error) {
	return tm.issue(subject, role, TypeRefresh, tm.refreshTTL)
}

func (tm *TokenManager) issue(subject string, role domain.Role, typ string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token subject required")
	}
	now := tm.now()
	claims := Claims{
		Type: typ,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if typ == TypeRefresh {
		claims.ID = uuid.NewString()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates signature, issuer, audience and expiry.
func (tm *TokenManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(tm.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess is Verify restricted to access tokens.
func (tm *TokenManager) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := tm.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type == TypeRefresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh is Verify restricted to refresh tokens.
func (tm *TokenManager) VerifyRefresh(tokenString string) (*Claims, error) {
	claims, err := tm.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractToken returns the credential from a "Bearer <token>" header.
func ExtractToken(authHeader string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(authHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}
