package security

import (
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermManageBeneficiaries  Permission = "manage_beneficiaries"
	PermCreateTransaction    Permission = "create_transaction"
	PermReadOwnTransactions  Permission = "read_own_transactions"
	PermChangeOwnPassword    Permission = "change_own_password"
	PermViewQueue            Permission = "view_queue"
	PermVerifyTransaction    Permission = "verify_transaction"
	PermSubmitTransaction    Permission = "submit_transaction"
	PermViewCustomers        Permission = "view_customers"
	PermManageEmployees      Permission = "manage_employees"
	PermListUsers            Permission = "list_users"
	PermViewAllTransactions  Permission = "view_all_transactions"
	PermSubscribeQueueStream Permission = "subscribe_queue_stream"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleCustomer: {
		PermManageBeneficiaries,
		PermCreateTransaction,
		PermReadOwnTransactions,
		PermChangeOwnPassword,
	},
	domain.RoleEmployee: {
		PermChangeOwnPassword,
		PermViewQueue,
		PermVerifyTransaction,
		PermSubmitTransaction,
		PermViewCustomers,
		PermSubscribeQueueStream,
	},
	domain.RoleAdmin: {
		PermChangeOwnPassword,
		PermViewQueue,
		PermVerifyTransaction,
		PermSubmitTransaction,
		PermViewCustomers,
		PermSubscribeQueueStream,
		PermManageEmployees,
		PermListUsers,
		PermViewAllTransactions,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{logger: logger}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// Authorize returns domain.ErrForbidden unless the caller's role grants permission.
func (as *AuthorizationService) Authorize(id domain.Identity, permission Permission) error {
	if !as.HasPermission(id.Role, permission) {
		as.logger.Warn("permission denied",
			slog.String("user_id", id.UserID),
			slog.String("role", string(id.Role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("%s cannot %s: %w", id.Role, permission, domain.ErrForbidden)
	}
	return nil
}

// ValidateOwnership checks that a customer-owned resource belongs to the
// caller. A foreign resource is reported as not found so ids cannot be probed.
func (as *AuthorizationService) ValidateOwnership(id domain.Identity, resource, resourceID, ownerID string) error {
	if ownerID != id.UserID {
		as.logger.Warn("resource access denied",
			slog.String("user_id", id.UserID),
			slog.String("resource", resource),
			slog.String("resource_id", resourceID),
		)
		return fmt.Errorf("%s %s: %w", resource, resourceID, domain.ErrNotFound)
	}
	return nil
}
