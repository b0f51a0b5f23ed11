package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/security"
	"github.com/aryan0dhankhar/paymentsportal/internal/security/audit"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// Seed admin identity created by SeedAdmin.
const (
	SeedAdminUsername = "admin"
	SeedAdminIDNumber = "0000000000000"
)

// AdminService covers employee management and the staff/admin user listings.
type AdminService struct {
	users  domain.UserRepository
	hasher PasswordHasher
	authz  *security.AuthorizationService
	audit  *audit.Logger
	logger *slog.Logger
}

func NewAdminService(
	users domain.UserRepository,
	hasher PasswordHasher,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	log *slog.Logger,
) *AdminService {
	if log == nil {
		log = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(log)
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(log)
	}
	return &AdminService{users: users, hasher: hasher, authz: authz, audit: auditLog, logger: log}
}

// CreateEmployee provisions an active employee account.
func (s *AdminService) CreateEmployee(ctx context.Context, actor domain.Identity, in validation.CreateEmployeeInput) (*domain.User, error) {
	if err := s.authz.Authorize(actor, security.PermManageEmployees); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}
	user, err := createWithAccountNumber(ctx, s.users, s.logger, &domain.User{
		FirstName:    in.FirstName,
		Surname:      in.Surname,
		IDNumber:     in.IDNumber,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         domain.RoleEmployee,
		Employee: &domain.EmployeeRecord{
			StaffID:    in.StaffID,
			Department: in.Department,
			Active:     true,
		},
	})
	if err != nil {
		s.audit.LogEmployeeChange(ctx, actor.UserID, "create_employee", "", audit.StatusFailed, err.Error())
		return nil, err
	}
	s.audit.LogEmployeeChange(ctx, actor.UserID, "create_employee", user.ID, audit.StatusSuccess, in.StaffID)
	return user, nil
}

// ListEmployees returns every employee, newest first.
func (s *AdminService) ListEmployees(ctx context.Context, actor domain.Identity) ([]*domain.User, error) {
	if err := s.authz.Authorize(actor, security.PermManageEmployees); err != nil {
		return nil, err
	}
	return s.users.ListEmployees(ctx)
}

// SetEmployeeActive enables or disables an employee. A disabled employee is
// rejected on the next authenticated request.
func (s *AdminService) SetEmployeeActive(ctx context.Context, actor domain.Identity, in validation.EmployeeActiveInput) (*domain.User, error) {
	if err := s.authz.Authorize(actor, security.PermManageEmployees); err != nil {
		return nil, err
	}
	user, err := s.users.SetEmployeeActive(ctx, in.ID, in.Active)
	if err != nil {
		return nil, err
	}
	action := "disable_employee"
	if in.Active {
		action = "enable_employee"
	}
	s.audit.LogEmployeeChange(ctx, actor.UserID, action, in.ID, audit.StatusSuccess, "")
	return user, nil
}

// ResetEmployeePassword sets a new password on an employee account.
func (s *AdminService) ResetEmployeePassword(ctx context.Context, actor domain.Identity, in validation.EmployeePasswordInput) error {
	if err := s.authz.Authorize(actor, security.PermManageEmployees); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if err := s.users.SetEmployeePassword(ctx, in.ID, hash); err != nil {
		return err
	}
	s.audit.LogEmployeeChange(ctx, actor.UserID, "reset_employee_password", in.ID, audit.StatusSuccess, "")
	return nil
}

// ListUsers pages through all users, optionally filtered by role.
func (s *AdminService) ListUsers(ctx context.Context, actor domain.Identity, q validation.UserListQuery) (Page[*domain.User], error) {
	if err := s.authz.Authorize(actor, security.PermListUsers); err != nil {
		return Page[*domain.User]{}, err
	}
	items, total, err := s.users.List(ctx, domain.UserFilter{Role: q.Role, Page: q.Page, Limit: q.Limit})
	if err != nil {
		return Page[*domain.User]{}, err
	}
	return Page[*domain.User]{Page: q.Page, Limit: q.Limit, Total: total, Items: items}, nil
}

// ListCustomers is the staff view of customers, newest first by cursor.
func (s *AdminService) ListCustomers(ctx context.Context, actor domain.Identity, q validation.CustomerCursorQuery) (CursorPage[*domain.User], error) {
	if err := s.authz.Authorize(actor, security.PermViewCustomers); err != nil {
		return CursorPage[*domain.User]{}, err
	}
	items, err := s.users.ListCustomersBefore(ctx, q.Cursor, q.Limit)
	if err != nil {
		return CursorPage[*domain.User]{}, err
	}
	return newCursorPage(items, func(u *domain.User) time.Time { return u.CreatedAt }), nil
}

// SeedAdmin creates the initial admin account unless one with the seed
// username already exists. It reports whether an account was created.
func (s *AdminService) SeedAdmin(ctx context.Context, firstName, surname, password string) (*domain.User, bool, error) {
	existing, err := s.users.GetByUsername(ctx, SeedAdminUsername)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("seed admin: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, false, fmt.Errorf("seed admin: %w", err)
	}
	user, err := createWithAccountNumber(ctx, s.users, s.logger, &domain.User{
		FirstName:    firstName,
		Surname:      surname,
		IDNumber:     SeedAdminIDNumber,
		Username:     SeedAdminUsername,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	})
	if err != nil {
		return nil, false, err
	}
	s.audit.LogAction(ctx, "system", "seed_admin", "user", user.ID, audit.StatusSuccess, "")
	return user, true, nil
}
