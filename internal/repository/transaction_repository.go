package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

const transactionColumns = `id, user_id, reference, amount, currency, provider, swift_bic,
		beneficiary_name, beneficiary_bank_name, beneficiary_iban_or_account, note, status,
		verified_by, verified_at, submitted_by, submitted_at, created_at, updated_at`

// PostgresTransactionRepository implements domain.TransactionRepository.
// State changes are single conditional UPDATEs, so concurrent transitions on
// the same id are serialized by the row lock and exactly one succeeds.
type PostgresTransactionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresTransactionRepository(db *sql.DB, logger *slog.Logger) *PostgresTransactionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTransactionRepository{db: db, logger: logger}
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	var (
		status                  string
		bankName, note          sql.NullString
		verifiedBy, submittedBy sql.NullString
		verifiedAt, submittedAt sql.NullTime
	)
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Reference,
		&tx.Amount,
		&tx.Currency,
		&tx.Provider,
		&tx.SwiftBIC,
		&tx.Beneficiary.Name,
		&bankName,
		&tx.Beneficiary.IBANOrAccount,
		&note,
		&status,
		&verifiedBy,
		&verifiedAt,
		&submittedBy,
		&submittedAt,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Status = domain.TransactionStatus(status)
	tx.Beneficiary.BankName = bankName.String
	tx.Note = note.String
	if verifiedBy.Valid {
		tx.VerifiedBy = &verifiedBy.String
	}
	if verifiedAt.Valid {
		tx.VerifiedAt = &verifiedAt.Time
	}
	if submittedBy.Valid {
		tx.SubmittedBy = &submittedBy.String
	}
	if submittedAt.Valid {
		tx.SubmittedAt = &submittedAt.Time
	}
	return tx, nil
}

// Create inserts a pending transaction. A reference collision is a conflict
// on "reference" so the caller can regenerate it.
func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, reference, amount, currency, provider, swift_bic,
			beneficiary_name, beneficiary_bank_name, beneficiary_iban_or_account, note, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Reference,
		tx.Amount,
		tx.Currency,
		tx.Provider,
		tx.SwiftBIC,
		tx.Beneficiary.Name,
		nullable(tx.Beneficiary.BankName),
		tx.Beneficiary.IBANOrAccount,
		nullable(tx.Note),
		string(tx.Status),
		tx.CreatedAt,
	)
	if err != nil {
		if translated := translateWriteError(err); translated != err {
			return translated
		}
		r.logger.Error("failed to create transaction",
			slog.String("user_id", tx.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	tx.UpdatedAt = tx.CreatedAt
	return nil
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.getOne(ctx, id, query, id)
}

// GetForOwner is GetByID scoped to ownerID; other owners' records are not found.
func (r *PostgresTransactionRepository) GetForOwner(ctx context.Context, id, ownerID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND user_id = $2`
	return r.getOne(ctx, id, query, id, ownerID)
}

func (r *PostgresTransactionRepository) getOne(ctx context.Context, id, query string, args ...any) (*domain.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *PostgresTransactionRepository) ListByOwner(ctx context.Context, ownerID string, filter domain.TransactionFilter) ([]*domain.Transaction, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND ($2 = '' OR status = $2)`,
		ownerID, string(filter.Status),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	items, err := r.query(ctx, query, ownerID, string(filter.Status), filter.Limit, pageOffset(filter.Page, filter.Limit))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByStatus returns SWIFT transactions in status created strictly before
// the cursor, newest first.
func (r *PostgresTransactionRepository) ListByStatus(ctx context.Context, status domain.TransactionStatus, before *time.Time, limit int) ([]*domain.Transaction, error) {
	var cursor any
	if before != nil {
		cursor = *before
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE provider = 'SWIFT' AND status = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3`
	return r.query(ctx, query, string(status), cursor, limit)
}

// MarkVerified moves a pending SWIFT transaction to verified, optionally
// correcting its BIC.
func (r *PostgresTransactionRepository) MarkVerified(ctx context.Context, id, actorID string, swiftBIC string, at time.Time) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'verified', verified_by = $2, verified_at = $3, updated_at = $3,
			swift_bic = COALESCE(NULLIF($4, ''), swift_bic)
		WHERE id = $1 AND provider = 'SWIFT' AND status = 'pending'
		RETURNING ` + transactionColumns
	return r.transition(ctx, id, query, id, actorID, at, swiftBIC)
}

// MarkQueued moves a verified SWIFT transaction to queued.
func (r *PostgresTransactionRepository) MarkQueued(ctx context.Context, id, actorID string, at time.Time) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = 'queued', submitted_by = $2, submitted_at = $3, updated_at = $3
		WHERE id = $1 AND provider = 'SWIFT' AND status = 'verified'
		RETURNING ` + transactionColumns
	return r.transition(ctx, id, query, id, actorID, at)
}

func (r *PostgresTransactionRepository) transition(ctx context.Context, id, query string, args ...any) (*domain.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrInvalidTransition)
		}
		return nil, fmt.Errorf("failed to transition transaction: %w", err)
	}
	return tx, nil
}

// MarkQueuedBulk queues every verified SWIFT transaction among ids in one
// statement. Matched counts the distinct ids that exist on the SWIFT rail.
func (r *PostgresTransactionRepository) MarkQueuedBulk(ctx context.Context, ids []string, actorID string, at time.Time) (domain.BulkResult, error) {
	if len(ids) == 0 {
		return domain.BulkResult{}, nil
	}
	query := `
		WITH requested AS (
			SELECT DISTINCT unnest($1::uuid[]) AS id
		), matched AS (
			SELECT t.id FROM transactions t JOIN requested q ON q.id = t.id
			WHERE t.provider = 'SWIFT'
		), moved AS (
			UPDATE transactions t
			SET status = 'queued', submitted_by = $2, submitted_at = $3, updated_at = $3
			FROM matched m
			WHERE t.id = m.id AND t.status = 'verified'
			RETURNING t.id
		)
		SELECT (SELECT COUNT(*) FROM matched), (SELECT COUNT(*) FROM moved)
	`
	var res domain.BulkResult
	if err := r.db.QueryRowContext(ctx, query, pq.Array(ids), actorID, at).Scan(&res.Matched, &res.Modified); err != nil {
		r.logger.Error("bulk submit failed",
			slog.Int("ids", len(ids)),
			slog.String("error", err.Error()),
		)
		return domain.BulkResult{}, fmt.Errorf("failed to bulk submit: %w", err)
	}
	return res, nil
}

// CountByStatus returns the number of SWIFT transactions in each status.
func (r *PostgresTransactionRepository) CountByStatus(ctx context.Context) (map[domain.TransactionStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM transactions WHERE provider = 'SWIFT' GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TransactionStatus]int, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[domain.TransactionStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *PostgresTransactionRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	items := []*domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		items = append(items, tx)
	}
	return items, rows.Err()
}
