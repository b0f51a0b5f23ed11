package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

const beneficiaryColumns = `id, user_id, type, name, email, reference, bank_name, branch_code,
		account_number, country, swift_bic, iban_or_account, created_at, updated_at`

// PostgresBeneficiaryRepository implements domain.BeneficiaryRepository.
type PostgresBeneficiaryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresBeneficiaryRepository(db *sql.DB, logger *slog.Logger) *PostgresBeneficiaryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBeneficiaryRepository{db: db, logger: logger}
}

// beneficiaryRow is the flat column layout of both account variants.
type beneficiaryRow struct {
	bankName, branchCode, accountNumber sql.NullString
	country, swiftBIC, ibanOrAccount    sql.NullString
}

func flattenAccount(a domain.BeneficiaryAccount) []any {
	return domain.MatchAccount(a,
		func(l domain.LocalAccount) []any {
			return []any{l.BankName, l.BranchCode, l.AccountNumber, nil, nil, nil}
		},
		func(f domain.ForeignAccount) []any {
			return []any{nullable(f.BankName), nil, nil, f.Country, f.SwiftBIC, f.IBANOrAccount}
		},
	)
}

func scanBeneficiary(row rowScanner) (*domain.Beneficiary, error) {
	b := &domain.Beneficiary{}
	var (
		typ              string
		email, reference sql.NullString
		cols             beneficiaryRow
	)
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&typ,
		&b.Name,
		&email,
		&reference,
		&cols.bankName,
		&cols.branchCode,
		&cols.accountNumber,
		&cols.country,
		&cols.swiftBIC,
		&cols.ibanOrAccount,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Email, b.Reference = email.String, reference.String

	switch domain.BeneficiaryType(typ) {
	case domain.BeneficiaryLocal:
		b.Account = domain.LocalAccount{
			BankName:      cols.bankName.String,
			BranchCode:    cols.branchCode.String,
			AccountNumber: cols.accountNumber.String,
		}
	case domain.BeneficiaryForeign:
		b.Account = domain.ForeignAccount{
			Country:       cols.country.String,
			SwiftBIC:      cols.swiftBIC.String,
			IBANOrAccount: cols.ibanOrAccount.String,
			BankName:      cols.bankName.String,
		}
	default:
		return nil, fmt.Errorf("beneficiary %s has unknown type %q", b.ID, typ)
	}
	return b, nil
}

// Create inserts b; a duplicate natural key for the same owner and type is a conflict.
func (r *PostgresBeneficiaryRepository) Create(ctx context.Context, b *domain.Beneficiary) error {
	query := `
		INSERT INTO beneficiaries (id, user_id, type, name, email, reference, bank_name, branch_code,
			account_number, country, swift_bic, iban_or_account, natural_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	args := []any{b.ID, b.UserID, string(b.Type()), b.Name, nullable(b.Email), nullable(b.Reference)}
	args = append(args, flattenAccount(b.Account)...)
	args = append(args, b.NaturalKey())

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		if translated := translateWriteError(err); translated != err {
			return translated
		}
		r.logger.Error("failed to create beneficiary",
			slog.String("user_id", b.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create beneficiary: %w", err)
	}
	return nil
}

// ListByOwner pages through the owner's beneficiaries, newest first.
func (r *PostgresBeneficiaryRepository) ListByOwner(ctx context.Context, ownerID string, filter domain.BeneficiaryFilter) ([]*domain.Beneficiary, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM beneficiaries WHERE user_id = $1 AND ($2 = '' OR type = $2)`,
		ownerID, string(filter.Type),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count beneficiaries: %w", err)
	}

	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries
		WHERE user_id = $1 AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, query, ownerID, string(filter.Type), filter.Limit, pageOffset(filter.Page, filter.Limit))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list beneficiaries: %w", err)
	}
	defer rows.Close()

	items := []*domain.Beneficiary{}
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
