package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/repository"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/auth"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/password"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

const strongPassword = "Str0ng!Passw0rd"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store   *repository.MemoryStore
	hasher  *password.Hasher
	tokens  *auth.TokenManager
	revoked *repository.MemoryRevocationStore
	auth    *AuthService
	admin   *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher, err := password.NewHasher("test-pepper", bcrypt.MinCost, 4)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:     "test-secret",
		Issuer:     "paymentsportal-test",
		Audience:   "paymentsportal-client",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	store := repository.NewMemoryStore()
	revoked := repository.NewMemoryRevocationStore()
	log := quietLogger()
	return &fixture{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		revoked: revoked,
		auth:    NewAuthService(store.Users(), hasher, tokens, revoked, nil, log),
		admin:   NewAdminService(store.Users(), hasher, nil, nil, log),
	}
}

func (f *fixture) register(t *testing.T, username, idNumber string) *Session {
	t.Helper()
	s, err := f.auth.Register(context.Background(), validation.RegisterInput{
		FirstName: "Alice",
		Surname:   "Smith",
		IDNumber:  idNumber,
		Username:  username,
		Password:  strongPassword,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return s
}

func (f *fixture) employee(t *testing.T, username, idNumber, staffID string) *domain.User {
	t.Helper()
	u, err := f.admin.CreateEmployee(context.Background(), adminIdentity, validation.CreateEmployeeInput{
		RegisterInput: validation.RegisterInput{
			FirstName: "Eve",
			Surname:   "Clerk",
			IDNumber:  idNumber,
			Username:  username,
			Password:  strongPassword,
		},
		StaffID:    staffID,
		Department: "Payments",
	})
	if err != nil {
		t.Fatalf("create employee %s: %v", username, err)
	}
	return u
}

var adminIdentity = domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}

var accountNumberRe = regexp.MustCompile(`^[1-9][0-9]{9}$`)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.register(t, "alice", "1234567890123")
	if s.AccessToken == "" || s.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if s.User.Role != domain.RoleCustomer || !accountNumberRe.MatchString(s.User.AccountNumber) {
		t.Fatalf("unexpected user %+v", s.User)
	}
	if s.User.PasswordHash == strongPassword {
		t.Fatal("password stored in clear")
	}
	claims, err := f.tokens.VerifyAccess(s.AccessToken)
	if err != nil || claims.Subject != s.User.ID || claims.Role != domain.RoleCustomer {
		t.Fatalf("access token claims %+v, %v", claims, err)
	}

	login, err := f.auth.Login(ctx, validation.LoginInput{Username: "alice", Password: strongPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != s.User.ID {
		t.Fatalf("login resolved a different user")
	}

	if _, err := f.auth.Login(ctx, validation.LoginInput{Username: "alice", Password: "Wr0ng!Password"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := f.auth.Login(ctx, validation.LoginInput{Username: "nobody", Password: strongPassword}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}
}

type countingHasher struct {
	PasswordHasher
	mu       sync.Mutex
	verifies int
}

func (c *countingHasher) Verify(ctx context.Context, pw, hash string) (bool, error) {
	c.mu.Lock()
	c.verifies++
	c.mu.Unlock()
	return c.PasswordHasher.Verify(ctx, pw, hash)
}

func TestUnknownUsernameCostsAComparison(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "1234567890123")
	counter := &countingHasher{PasswordHasher: f.hasher}
	svc := NewAuthService(f.store.Users(), counter, f.tokens, f.revoked, nil, quietLogger())

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, validation.LoginInput{Username: "nobody", Password: strongPassword}); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("unknown user: %v", err)
		}
	}
	if _, err := svc.Login(ctx, validation.LoginInput{Username: "alice", Password: "Wr0ng!Passw0rd"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if counter.verifies != 3 {
		t.Fatalf("expected one comparison per attempt, got %d", counter.verifies)
	}
	if svc.dummyHash == "" {
		t.Fatal("dummy hash was not prepared")
	}
	if ok, _ := f.hasher.Verify(ctx, strongPassword, svc.dummyHash); ok {
		t.Fatal("dummy hash must not match a real password")
	}
}

func TestRegisterConflicts(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "1234567890123")

	tests := []struct {
		name, username, idNumber, field string
	}{
		{"same username", "alice", "9999999999999", "username"},
		{"same id number", "bob_1", "1234567890123", "idNumber"},
	}
	for _, tt := range tests {
		_, err := f.auth.Register(context.Background(), validation.RegisterInput{
			FirstName: "Bob", Surname: "Jones", IDNumber: tt.idNumber, Username: tt.username, Password: strongPassword,
		})
		var conflict *domain.ConflictError
		if !errors.As(err, &conflict) || conflict.Field != tt.field {
			t.Errorf("%s: expected conflict on %s, got %v", tt.name, tt.field, err)
		}
	}
}

// collidingUsers reports an account number collision for the first n creates.
type collidingUsers struct {
	*repository.MemoryUsers
	mu       sync.Mutex
	collide  int
	attempts int
}

func (c *collidingUsers) Create(ctx context.Context, u *domain.User) error {
	c.mu.Lock()
	c.attempts++
	collide := c.attempts <= c.collide
	c.mu.Unlock()
	if collide {
		return domain.NewConflict("accountNumber")
	}
	return c.MemoryUsers.Create(ctx, u)
}

func TestRegisterRegeneratesAccountNumber(t *testing.T) {
	f := newFixture(t)
	users := &collidingUsers{MemoryUsers: f.store.Users(), collide: 2}
	svc := NewAuthService(users, f.hasher, f.tokens, f.revoked, nil, quietLogger())

	s, err := svc.Register(context.Background(), validation.RegisterInput{
		FirstName: "Alice", Surname: "Smith", IDNumber: "1234567890123", Username: "alice", Password: strongPassword,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if users.attempts != 3 || s.User.AccountNumber == "" {
		t.Fatalf("attempts=%d account=%q", users.attempts, s.User.AccountNumber)
	}

	users.attempts, users.collide = 0, accountNumberAttempts
	_, err = svc.Register(context.Background(), validation.RegisterInput{
		FirstName: "Bob", Surname: "Jones", IDNumber: "1234567890124", Username: "bob_1", Password: strongPassword,
	})
	if !errors.Is(err, domain.ErrConflict) || users.attempts != accountNumberAttempts {
		t.Fatalf("expected conflict after %d attempts, got %v after %d", accountNumberAttempts, err, users.attempts)
	}
}

func TestLoginDisabledEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.employee(t, "eve_staff", "2222222222222", "EMP-001")

	if _, err := f.auth.Login(ctx, validation.LoginInput{Username: "eve_staff", Password: strongPassword}); err != nil {
		t.Fatalf("active employee login: %v", err)
	}
	if _, err := f.admin.SetEmployeeActive(ctx, adminIdentity, validation.EmployeeActiveInput{ID: emp.ID, Active: false}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := f.auth.Login(ctx, validation.LoginInput{Username: "eve_staff", Password: strongPassword}); !errors.Is(err, domain.ErrAccountDisabled) {
		t.Fatalf("expected disabled, got %v", err)
	}
	// A wrong password still reads as bad credentials, not as a disabled account.
	if _, err := f.auth.Login(ctx, validation.LoginInput{Username: "eve_staff", Password: "Wr0ng!Password"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.register(t, "alice", "1234567890123")

	next, err := f.auth.Refresh(ctx, s.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == s.RefreshToken || next.AccessToken == "" {
		t.Fatal("refresh must rotate the refresh token")
	}
	if _, err := f.auth.Refresh(ctx, s.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("replayed refresh token: %v", err)
	}
	if _, err := f.auth.Refresh(ctx, next.AccessToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("access token used as refresh: %v", err)
	}
	if _, err := f.auth.Refresh(ctx, next.RefreshToken); err != nil {
		t.Fatalf("rotated token should work once: %v", err)
	}
}

func TestConcurrentRefreshRotatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.register(t, "alice", "1234567890123")

	const callers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.auth.Refresh(ctx, s.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, auth.ErrInvalidToken):
				rejected++
			}
		}()
	}
	close(start)
	wg.Wait()
	if succeeded != 1 || rejected != callers-1 {
		t.Fatalf("succeeded=%d rejected=%d", succeeded, rejected)
	}
}

func TestRefreshRejectsDisabledEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	emp := f.employee(t, "eve_staff", "2222222222222", "EMP-001")
	s, err := f.auth.Login(ctx, validation.LoginInput{Username: "eve_staff", Password: strongPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := f.admin.SetEmployeeActive(ctx, adminIdentity, validation.EmployeeActiveInput{ID: emp.ID}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := f.auth.Refresh(ctx, s.RefreshToken); !errors.Is(err, domain.ErrAccountDisabled) {
		t.Fatalf("expected disabled, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.register(t, "alice", "1234567890123")

	if err := f.auth.Logout(ctx, "not-a-token"); err != nil {
		t.Fatalf("logout with garbage should succeed: %v", err)
	}
	if err := f.auth.Logout(ctx, s.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.auth.Refresh(ctx, s.RefreshToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("refresh after logout: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.register(t, "alice", "1234567890123")
	const newPassword = "An0ther!Secret"

	err := f.auth.ChangePassword(ctx, s.User.ID, validation.ChangePasswordInput{CurrentPassword: "Wr0ng!Password", NewPassword: newPassword})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong current password: %v", err)
	}
	if err := f.auth.ChangePassword(ctx, s.User.ID, validation.ChangePasswordInput{CurrentPassword: strongPassword, NewPassword: newPassword}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := f.auth.Login(ctx, validation.LoginInput{Username: "alice", Password: strongPassword}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := f.auth.Login(ctx, validation.LoginInput{Username: "alice", Password: newPassword}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	me, err := f.auth.Me(ctx, s.User.ID)
	if err != nil || me.Username != "alice" {
		t.Fatalf("me: %+v, %v", me, err)
	}
}
