package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

const userColumns = `id, first_name, surname, id_number, username, account_number, password_hash,
		role, staff_id, department, employee_active, created_at, updated_at`

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserRepository{db: db, logger: logger}
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var (
		role       string
		staffID    sql.NullString
		department sql.NullString
		active     sql.NullBool
	)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.Surname,
		&user.IDNumber,
		&user.Username,
		&user.AccountNumber,
		&user.PasswordHash,
		&role,
		&staffID,
		&department,
		&active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	if staffID.Valid {
		user.Employee = &domain.EmployeeRecord{
			StaffID:    staffID.String,
			Department: department.String,
			Active:     active.Bool,
		}
	}
	return user, nil
}

// Create inserts a user. Unique violations come back as *domain.ConflictError.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, first_name, surname, id_number, username, account_number, password_hash,
			role, staff_id, department, employee_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	var staffID, department, active any
	if user.Employee != nil {
		staffID = user.Employee.StaffID
		department = nullable(user.Employee.Department)
		active = user.Employee.Active
	}

	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.FirstName,
		user.Surname,
		user.IDNumber,
		strings.ToLower(user.Username),
		user.AccountNumber,
		user.PasswordHash,
		string(user.Role),
		staffID,
		department,
		active,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if translated := translateWriteError(err); translated != err {
			return translated
		}
		r.logger.Error("failed to create user",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by canonical username
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(username)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// GetAuthInfo projects only the role and active flag.
func (r *PostgresUserRepository) GetAuthInfo(ctx context.Context, id string) (domain.AuthInfo, error) {
	var (
		role   string
		active sql.NullBool
	)
	err := r.db.QueryRowContext(ctx, `SELECT role, employee_active FROM users WHERE id = $1`, id).Scan(&role, &active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AuthInfo{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return domain.AuthInfo{}, fmt.Errorf("failed to get auth info: %w", err)
	}
	info := domain.AuthInfo{Role: domain.Role(role), Active: true}
	if info.Role == domain.RoleEmployee {
		info.Active = active.Valid && active.Bool
	}
	return info, nil
}

// UpdatePassword replaces the stored hash of any user.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.execOne(ctx, "update password",
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

// SetEmployeeActive toggles an employee's active flag.
func (r *PostgresUserRepository) SetEmployeeActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	query := `
		UPDATE users SET employee_active = $2, updated_at = NOW()
		WHERE id = $1 AND role = 'employee'
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id, active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("employee %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to set employee active: %w", err)
	}
	return user, nil
}

// SetEmployeePassword replaces an employee's hash; non-employees are not found.
func (r *PostgresUserRepository) SetEmployeePassword(ctx context.Context, id string, passwordHash string) error {
	return r.execOne(ctx, "reset employee password",
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1 AND role = 'employee'`, id, passwordHash)
}

// ListEmployees returns every employee, newest first.
func (r *PostgresUserRepository) ListEmployees(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = 'employee' ORDER BY created_at DESC`
	return r.queryUsers(ctx, "list employees", query)
}

// List pages through users, optionally filtered by role.
func (r *PostgresUserRepository) List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE ($1 = '' OR role = $1)`, string(filter.Role),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	users, err := r.queryUsers(ctx, "list users", query, string(filter.Role), filter.Limit, pageOffset(filter.Page, filter.Limit))
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListCustomersBefore returns customers created strictly before the cursor, newest first.
func (r *PostgresUserRepository) ListCustomersBefore(ctx context.Context, before *time.Time, limit int) ([]*domain.User, error) {
	var cursor any
	if before != nil {
		cursor = *before
	}
	query := `SELECT ` + userColumns + ` FROM users
		WHERE role = 'customer' AND ($1::timestamptz IS NULL OR created_at < $1)
		ORDER BY created_at DESC
		LIMIT $2`
	return r.queryUsers(ctx, "list customers", query, cursor, limit)
}

func (r *PostgresUserRepository) queryUsers(ctx context.Context, op, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("user query failed", slog.String("op", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *PostgresUserRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}
