package domain

import (
	"context"
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// EmployeeRecord is present on employees, and optionally on admins.
type EmployeeRecord struct {
	StaffID    string `json:"staffId"`
	Department string `json:"department"`
	Active     bool   `json:"active"`
}

// User is the identity and authorization root.
type User struct {
	ID            string          `json:"id"`
	FirstName     string          `json:"firstName"`
	Surname       string          `json:"surname"`
	IDNumber      string          `json:"idNumber"`
	Username      string          `json:"username"`
	AccountNumber string          `json:"accountNumber"`
	PasswordHash  string          `json:"-"`
	Role          Role            `json:"role"`
	Employee      *EmployeeRecord `json:"employee,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Disabled reports whether the user is an employee whose account was switched off.
func (u *User) Disabled() bool {
	return u.Role == RoleEmployee && (u.Employee == nil || !u.Employee.Active)
}

// AuthInfo is the projection used by per-request authorization lookups.
// It never carries the password hash.
type AuthInfo struct {
	Role   Role
	Active bool
}

// Identity is the verified caller of a request.
type Identity struct {
	UserID string
	Role   Role
}

// HasRole reports whether the identity holds one of roles.
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// UserFilter selects users for the admin listing.
type UserFilter struct {
	Role  Role
	Page  int
	Limit int
}

// UserRepository defines data access for users. Usernames are stored and
// looked up in canonical lowercase.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetAuthInfo(ctx context.Context, id string) (AuthInfo, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SetEmployeeActive(ctx context.Context, id string, active bool) (*User, error)
	SetEmployeePassword(ctx context.Context, id string, passwordHash string) error
	ListEmployees(ctx context.Context) ([]*User, error)
	List(ctx context.Context, filter UserFilter) ([]*User, int, error)
	ListCustomersBefore(ctx context.Context, before *time.Time, limit int) ([]*User, error)
}
