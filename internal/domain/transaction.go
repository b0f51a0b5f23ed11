package domain

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ProviderSWIFT is the only supported payment rail.
const ProviderSWIFT = "SWIFT"

// TransactionStatus is a state in the payment lifecycle.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusVerified  TransactionStatus = "verified"
	StatusQueued    TransactionStatus = "queued"
	StatusForwarded TransactionStatus = "forwarded"
	StatusFailed    TransactionStatus = "failed"
)

// AllStatuses lists every lifecycle state in order.
var AllStatuses = []TransactionStatus{StatusPending, StatusVerified, StatusQueued, StatusForwarded, StatusFailed}

var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:  {StatusVerified},
	StatusVerified: {StatusQueued},
	StatusQueued:   {StatusForwarded, StatusFailed},
}

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next directly follows s in the lifecycle.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s TransactionStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// ErrInvalidAmount is returned for non-positive or over-precise amounts.
var ErrInvalidAmount = errors.New("amount must be positive with at most 2 decimal places")

// Amount is an exact monetary value with two fractional digits. It travels
// as a string in JSON and as NUMERIC in the database.
type Amount struct {
	d decimal.Decimal
}

// ParseAmount parses a decimal string, rejecting zero, negatives and more
// than two fractional digits.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !d.IsPositive() || d.Exponent() < -2 {
		return Amount{}, ErrInvalidAmount
	}
	return Amount{d: d}, nil
}

// MustAmount is ParseAmount for literals known to be valid.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.d.StringFixed(2)
}

// Decimal exposes the underlying value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// MarshalJSON encodes the amount as a quoted fixed-point string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts the quoted form produced by MarshalJSON, or a bare
// JSON number. The text is checked as written.
func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := string(b)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	return a.d.Scan(src)
}

// PayeeSnapshot is the beneficiary copy embedded in a transaction at creation.
type PayeeSnapshot struct {
	Name          string `json:"name"`
	BankName      string `json:"bankName,omitempty"`
	IBANOrAccount string `json:"ibanOrAccount"`
}

// Transaction is a SWIFT payment request.
type Transaction struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Reference   string            `json:"reference"`
	Amount      Amount            `json:"amount"`
	Currency    string            `json:"currency"`
	Provider    string            `json:"provider"`
	SwiftBIC    string            `json:"swiftBic"`
	Beneficiary PayeeSnapshot     `json:"beneficiary"`
	Note        string            `json:"note,omitempty"`
	Status      TransactionStatus `json:"status"`
	VerifiedBy  *string           `json:"verifiedBy,omitempty"`
	VerifiedAt  *time.Time        `json:"verifiedAt,omitempty"`
	SubmittedBy *string           `json:"submittedBy,omitempty"`
	SubmittedAt *time.Time        `json:"submittedAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// NewReference builds a reference of the form SBK-YYYYMMDD-XXXXXXXX from the
// creation time and a random hex suffix.
func NewReference(at time.Time, suffix string) string {
	return fmt.Sprintf("SBK-%s-%s", at.UTC().Format("20060102"), suffix)
}

// TransactionFilter narrows an owner's transaction listing.
type TransactionFilter struct {
	Status TransactionStatus
	Page   int
	Limit  int
}

// BulkResult reports the aggregate outcome of a bulk transition.
type BulkResult struct {
	Matched  int `json:"matched"`
	Modified int `json:"modified"`
}

// TransactionRepository defines data access for transactions. The Mark*
// methods are single conditional writes: they change the record only when
// it is on the SWIFT rail and in the expected prior state, and return
// ErrInvalidTransition otherwise.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id string) (*Transaction, error)
	GetForOwner(ctx context.Context, id, ownerID string) (*Transaction, error)
	ListByOwner(ctx context.Context, ownerID string, filter TransactionFilter) ([]*Transaction, int, error)
	ListByStatus(ctx context.Context, status TransactionStatus, before *time.Time, limit int) ([]*Transaction, error)
	MarkVerified(ctx context.Context, id, actorID string, swiftBIC string, at time.Time) (*Transaction, error)
	MarkQueued(ctx context.Context, id, actorID string, at time.Time) (*Transaction, error)
	MarkQueuedBulk(ctx context.Context, ids []string, actorID string, at time.Time) (BulkResult, error)
	CountByStatus(ctx context.Context) (map[TransactionStatus]int, error)
}

// TransactionEvent describes a lifecycle change for downstream consumers.
type TransactionEvent struct {
	Type          string            `json:"type"`
	TransactionID string            `json:"transactionId"`
	Reference     string            `json:"reference"`
	Status        TransactionStatus `json:"status"`
	ActorID       string            `json:"actorId"`
	Amount        string            `json:"amount,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// Event types published on the events exchange.
const (
	EventTransactionCreated  = "transaction.created"
	EventTransactionVerified = "transaction.verified"
	EventTransactionQueued   = "transaction.queued"
)

// NewTransactionEvent snapshots tx for publication.
func NewTransactionEvent(eventType string, tx *Transaction, actorID string, at time.Time) TransactionEvent {
	return TransactionEvent{
		Type:          eventType,
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		Status:        tx.Status,
		ActorID:       actorID,
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency,
		OccurredAt:    at,
	}
}
