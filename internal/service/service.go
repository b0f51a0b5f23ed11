package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

// PasswordHasher hashes and checks credentials; *password.Hasher implements it.
type PasswordHasher interface {
	Hash(ctx context.Context, pw string) (string, error)
	Verify(ctx context.Context, pw, hash string) (bool, error)
}

// Page is an offset-paginated listing.
type Page[T any] struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Items []T `json:"items"`
}

// CursorPage is a creation-time cursor listing. NextCursor is the creation
// time of the last item, or null when the page is empty.
type CursorPage[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"nextCursor"`
}

func newCursorPage[T any](items []T, createdAt func(T) time.Time) CursorPage[T] {
	page := CursorPage[T]{Items: items}
	if page.Items == nil {
		page.Items = []T{}
	}
	if n := len(page.Items); n > 0 {
		c := createdAt(page.Items[n-1]).UTC().Format(time.RFC3339Nano)
		page.NextCursor = &c
	}
	return page
}

const accountNumberDigits = 10

// generateAccountNumber returns a random 10-digit number without a leading zero.
func generateAccountNumber() (string, error) {
	lower := new(big.Int).Exp(big.NewInt(10), big.NewInt(accountNumberDigits-1), nil)
	span := new(big.Int).Mul(lower, big.NewInt(9))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate account number: %w", err)
	}
	return n.Add(n, lower).String(), nil
}

// referenceSuffix is 8 uppercase hex characters from a random UUID.
func referenceSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// conflictOn matches a uniqueness violation on field.
func conflictOn(field string) func(error) bool {
	return func(err error) bool {
		var conflict *domain.ConflictError
		return errors.As(err, &conflict) && conflict.Field == field
	}
}
