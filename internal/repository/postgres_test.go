package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	repo "github.com/aryan0dhankhar/paymentsportal/internal/repository"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var userCols = []string{"id", "first_name", "surname", "id_number", "username", "account_number", "password_hash",
	"role", "staff_id", "department", "employee_active", "created_at", "updated_at"}

var txCols = []string{"id", "user_id", "reference", "amount", "currency", "provider", "swift_bic",
	"beneficiary_name", "beneficiary_bank_name", "beneficiary_iban_or_account", "note", "status",
	"verified_by", "verified_at", "submitted_by", "submitted_at", "created_at", "updated_at"}

var _ = Describe("PostgresUserRepository", func() {
	var (
		mockDB     *sql.DB
		mock       sqlmock.Sqlmock
		repository *repo.PostgresUserRepository
		ctx        context.Context
		created    time.Time
	)

	BeforeEach(func() {
		var err error
		mockDB, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		repository = repo.NewPostgresUserRepository(mockDB, quietLogger)
		ctx = context.Background()
		created = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		mockDB.Close()
	})

	Describe("Create", func() {
		It("stores the canonical username and fills timestamps", func() {
			mock.ExpectQuery(`INSERT INTO users`).
				WithArgs("u-1", "Ada", "Lovelace", "9001015009087", "ada_l", "1234567890", "hash",
					"customer", nil, nil, nil).
				WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

			user := &domain.User{ID: "u-1", FirstName: "Ada", Surname: "Lovelace", IDNumber: "9001015009087",
				Username: "Ada_L", AccountNumber: "1234567890", PasswordHash: "hash", Role: domain.RoleCustomer}
			Expect(repository.Create(ctx, user)).To(Succeed())
			Expect(user.CreatedAt).To(Equal(created))
		})

		It("maps a unique violation onto the offending field", func() {
			mock.ExpectQuery(`INSERT INTO users`).
				WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_users_id_number"})

			err := repository.Create(ctx, &domain.User{ID: "u-2", Username: "someone", Role: domain.RoleCustomer})
			var conflict *domain.ConflictError
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.Field).To(Equal("idNumber"))
			Expect(errors.Is(err, domain.ErrConflict)).To(BeTrue())
		})

		It("writes the employee sub-record", func() {
			mock.ExpectQuery(`INSERT INTO users`).
				WithArgs("e-1", "Grace", "Hopper", "8001015009087", "ghopper", "0987654321", "hash",
					"employee", "EMP-001", "Payments", true).
				WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

			Expect(repository.Create(ctx, &domain.User{ID: "e-1", FirstName: "Grace", Surname: "Hopper",
				IDNumber: "8001015009087", Username: "ghopper", AccountNumber: "0987654321", PasswordHash: "hash",
				Role: domain.RoleEmployee, Employee: &domain.EmployeeRecord{StaffID: "EMP-001", Department: "Payments", Active: true},
			})).To(Succeed())
		})
	})

	Describe("GetAuthInfo", func() {
		It("reports disabled employees as inactive", func() {
			mock.ExpectQuery(`SELECT role, employee_active FROM users WHERE id = \$1`).
				WithArgs("e-1").
				WillReturnRows(sqlmock.NewRows([]string{"role", "employee_active"}).AddRow("employee", false))

			info, err := repository.GetAuthInfo(ctx, "e-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(info).To(Equal(domain.AuthInfo{Role: domain.RoleEmployee, Active: false}))
		})

		It("treats customers as active", func() {
			mock.ExpectQuery(`SELECT role, employee_active FROM users`).
				WithArgs("c-1").
				WillReturnRows(sqlmock.NewRows([]string{"role", "employee_active"}).AddRow("customer", nil))

			info, err := repository.GetAuthInfo(ctx, "c-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Active).To(BeTrue())
		})

		It("returns ErrNotFound for unknown ids", func() {
			mock.ExpectQuery(`SELECT role, employee_active FROM users`).
				WithArgs("nope").
				WillReturnError(sql.ErrNoRows)

			_, err := repository.GetAuthInfo(ctx, "nope")
			Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("GetByUsername", func() {
		It("looks up the lowercase form and decodes the employee record", func() {
			mock.ExpectQuery(`SELECT .* FROM users WHERE username = \$1`).
				WithArgs("ghopper").
				WillReturnRows(sqlmock.NewRows(userCols).AddRow("e-1", "Grace", "Hopper", "8001015009087", "ghopper",
					"0987654321", "hash", "employee", "EMP-001", "Payments", true, created, created))

			user, err := repository.GetByUsername(ctx, "GHopper")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.Employee).NotTo(BeNil())
			Expect(user.Employee.StaffID).To(Equal("EMP-001"))
			Expect(user.Employee.Active).To(BeTrue())
		})
	})

	Describe("SetEmployeePassword", func() {
		It("returns ErrNotFound when no employee row matched", func() {
			mock.ExpectExec(`UPDATE users SET password_hash = \$2, updated_at = NOW\(\) WHERE id = \$1 AND role = 'employee'`).
				WithArgs("c-1", "newhash").
				WillReturnResult(sqlmock.NewResult(0, 0))

			err := repository.SetEmployeePassword(ctx, "c-1", "newhash")
			Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())
		})
	})
})

var _ = Describe("PostgresTransactionRepository", func() {
	var (
		mockDB     *sql.DB
		mock       sqlmock.Sqlmock
		repository *repo.PostgresTransactionRepository
		ctx        context.Context
		at         time.Time
	)

	BeforeEach(func() {
		var err error
		mockDB, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		repository = repo.NewPostgresTransactionRepository(mockDB, quietLogger)
		ctx = context.Background()
		at = time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		mockDB.Close()
	})

	Describe("Create", func() {
		It("writes the amount as a fixed-point string", func() {
			mock.ExpectExec(`INSERT INTO transactions`).
				WithArgs("t-1", "c-1", "SBK-20250302-ABCDEF12", "125.50", "USD", "SWIFT", "DEUTDEFF",
					"Jane Doe", nil, "DE89370400440532013000", nil, "pending", at).
				WillReturnResult(sqlmock.NewResult(0, 1))

			tx := &domain.Transaction{ID: "t-1", UserID: "c-1", Reference: "SBK-20250302-ABCDEF12",
				Amount: domain.MustAmount("125.5"), Currency: "USD", Provider: domain.ProviderSWIFT, SwiftBIC: "DEUTDEFF",
				Beneficiary: domain.PayeeSnapshot{Name: "Jane Doe", IBANOrAccount: "DE89370400440532013000"},
				Status:      domain.StatusPending, CreatedAt: at}
			Expect(repository.Create(ctx, tx)).To(Succeed())
		})

		It("reports reference collisions as a conflict", func() {
			mock.ExpectExec(`INSERT INTO transactions`).
				WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_transactions_reference"})

			err := repository.Create(ctx, &domain.Transaction{ID: "t-2", Amount: domain.MustAmount("1"), CreatedAt: at})
			var conflict *domain.ConflictError
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.Field).To(Equal("reference"))
		})
	})

	Describe("MarkVerified", func() {
		It("is a single conditional update on pending SWIFT rows", func() {
			mock.ExpectQuery(`(?s)UPDATE transactions.*WHERE id = \$1 AND provider = 'SWIFT' AND status = 'pending'`).
				WithArgs("t-1", "e-1", at, "").
				WillReturnRows(sqlmock.NewRows(txCols).AddRow("t-1", "c-1", "SBK-20250302-ABCDEF12", "125.50", "USD",
					"SWIFT", "DEUTDEFF", "Jane Doe", nil, "DE89370400440532013000", nil, "verified",
					"e-1", at, nil, nil, at, at))

			tx, err := repository.MarkVerified(ctx, "t-1", "e-1", "", at)
			Expect(err).NotTo(HaveOccurred())
			Expect(tx.Status).To(Equal(domain.StatusVerified))
			Expect(*tx.VerifiedBy).To(Equal("e-1"))
			Expect(tx.Amount.String()).To(Equal("125.50"))
			Expect(tx.SubmittedBy).To(BeNil())
		})

		It("returns ErrInvalidTransition when nothing matched", func() {
			mock.ExpectQuery(`(?s)UPDATE transactions.*status = 'pending'`).
				WillReturnError(sql.ErrNoRows)

			_, err := repository.MarkVerified(ctx, "t-1", "e-1", "", at)
			Expect(errors.Is(err, domain.ErrInvalidTransition)).To(BeTrue())
		})
	})

	Describe("MarkQueuedBulk", func() {
		It("returns matched and modified counts from one statement", func() {
			mock.ExpectQuery(`(?s)WITH requested AS .*unnest\(\$1::uuid\[\]\).*status = 'verified'`).
				WithArgs(sqlmock.AnyArg(), "e-1", at).
				WillReturnRows(sqlmock.NewRows([]string{"matched", "moved"}).AddRow(3, 2))

			res, err := repository.MarkQueuedBulk(ctx, []string{"a", "b", "c"}, "e-1", at)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(domain.BulkResult{Matched: 3, Modified: 2}))
		})

		It("skips the database for an empty id list", func() {
			res, err := repository.MarkQueuedBulk(ctx, nil, "e-1", at)
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(domain.BulkResult{}))
		})
	})

	Describe("ListByStatus", func() {
		It("passes a NULL cursor for the first page", func() {
			mock.ExpectQuery(`(?s)FROM transactions.*created_at < \$2.*ORDER BY created_at DESC`).
				WithArgs("pending", nil, 200).
				WillReturnRows(sqlmock.NewRows(txCols))

			items, err := repository.ListByStatus(ctx, domain.StatusPending, nil, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(BeEmpty())
		})
	})

	Describe("CountByStatus", func() {
		It("fills zero for absent statuses", func() {
			mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM transactions`).
				WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 4).AddRow("queued", 1))

			counts, err := repository.CountByStatus(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(counts[domain.StatusPending]).To(Equal(4))
			Expect(counts[domain.StatusVerified]).To(Equal(0))
			Expect(counts).To(HaveLen(len(domain.AllStatuses)))
		})
	})
})

var _ = Describe("PostgresBeneficiaryRepository", func() {
	var (
		mockDB     *sql.DB
		mock       sqlmock.Sqlmock
		repository *repo.PostgresBeneficiaryRepository
		ctx        context.Context
		created    time.Time
	)

	BeforeEach(func() {
		var err error
		mockDB, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		repository = repo.NewPostgresBeneficiaryRepository(mockDB, quietLogger)
		ctx = context.Background()
		created = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		mockDB.Close()
	})

	It("flattens a foreign account and stores its natural key", func() {
		mock.ExpectQuery(`INSERT INTO beneficiaries`).
			WithArgs("b-1", "c-1", "foreign", "Jane Doe", nil, nil, nil, nil, nil, "DE", "DEUTDEFF",
				"DE89370400440532013000", "Jane Doe|DE89370400440532013000|DEUTDEFF").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

		b := &domain.Beneficiary{ID: "b-1", UserID: "c-1", Name: "Jane Doe",
			Account: domain.ForeignAccount{Country: "DE", SwiftBIC: "DEUTDEFF", IBANOrAccount: "DE89370400440532013000"}}
		Expect(repository.Create(ctx, b)).To(Succeed())
	})

	It("reports a duplicate payee as a conflict", func() {
		mock.ExpectQuery(`INSERT INTO beneficiaries`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_beneficiaries_natural_key"})

		err := repository.Create(ctx, &domain.Beneficiary{ID: "b-2", UserID: "c-1", Name: "Jane",
			Account: domain.LocalAccount{BankName: "Bank", BranchCode: "250655", AccountNumber: "62000000001"}})
		Expect(errors.Is(err, domain.ErrConflict)).To(BeTrue())
	})

	It("rebuilds the local variant when listing", func() {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM beneficiaries`).
			WithArgs("c-1", "local").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`(?s)SELECT .* FROM beneficiaries.*LIMIT \$3 OFFSET \$4`).
			WithArgs("c-1", "local", 10, 0).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "name", "email", "reference", "bank_name",
				"branch_code", "account_number", "country", "swift_bic", "iban_or_account", "created_at", "updated_at"}).
				AddRow("b-2", "c-1", "local", "Jane", nil, nil, "Bank", "250655", "62000000001", nil, nil, nil, created, created))

		items, total, err := repository.ListByOwner(ctx, "c-1", domain.BeneficiaryFilter{Type: domain.BeneficiaryLocal, Page: 1, Limit: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(1))
		Expect(items).To(HaveLen(1))
		Expect(items[0].Account).To(Equal(domain.LocalAccount{BankName: "Bank", BranchCode: "250655", AccountNumber: "62000000001"}))
	})
})
