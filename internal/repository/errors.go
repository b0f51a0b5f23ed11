package repository

import (
	"errors"
	"math"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

const uniqueViolation = "23505"

// constraintFields maps unique constraints onto the API field they protect.
var constraintFields = map[string]string{
	"uq_users_id_number":           "idNumber",
	"uq_users_username":            "username",
	"uq_users_account_number":      "accountNumber",
	"uq_users_staff_id":            "staffId",
	"uq_beneficiaries_natural_key": "beneficiary",
	"uq_transactions_reference":    "reference",
}

// translateWriteError turns a unique violation into a *domain.ConflictError
// and leaves every other error untouched.
func translateWriteError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	field, ok := constraintFields[pqErr.Constraint]
	if !ok {
		field = "resource"
	}
	return domain.NewConflict(field)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// pageOffset saturates instead of overflowing; an offset past the data just
// yields an empty page.
func pageOffset(page, limit int) int {
	if page < 1 || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt32/limit {
		return math.MaxInt32
	}
	return (page - 1) * limit
}
