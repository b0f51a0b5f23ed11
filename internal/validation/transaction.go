package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

// MaxBulkSubmit caps the number of ids accepted by a bulk submit.
const MaxBulkSubmit = 500

// CreateTransactionInput is a validated payment request.
type CreateTransactionInput struct {
	Amount      domain.Amount
	Currency    string
	SwiftBIC    string
	Beneficiary domain.PayeeSnapshot
	Note        string
}

type payeeBody struct {
	Name          *string `json:"name"`
	BankName      *string `json:"bankName"`
	IBANOrAccount *string `json:"ibanOrAccount"`
}

type createTransactionBody struct {
	Amount      *string    `json:"amount"`
	Currency    *string    `json:"currency"`
	Provider    *string    `json:"provider"`
	SwiftBIC    *string    `json:"swiftBic"`
	Beneficiary *payeeBody `json:"beneficiary"`
	Note        *string    `json:"note"`
}

// CreateTransaction validates POST /api/tx.
func CreateTransaction(in Input) (CreateTransactionInput, error) {
	c := &checker{}
	var body createTransactionBody
	if !c.decodeBody(in.Body, &body) {
		return CreateTransactionInput{}, c.err()
	}

	out := CreateTransactionInput{
		Currency: c.field("body.currency", body.Currency).trim().upper().required().match(CurrencyRe, "Invalid currency").value(),
		SwiftBIC: c.field("body.swiftBic", body.SwiftBIC).trim().upper().required().match(SwiftBICRe, "Invalid SWIFT/BIC").value(),
		Note:     c.field("body.note", body.Note).trim().optional().max(140).match(NoteRe, "Invalid note").value(),
	}

	amount := c.field("body.amount", body.Amount).trim().required().match(AmountRe, "Invalid amount")
	if amount.ok() {
		parsed, err := domain.ParseAmount(amount.value())
		if err != nil {
			c.add("body.amount", CodeTooSmall, "Amount must be greater than 0")
		}
		out.Amount = parsed
	}

	if body.Provider != nil {
		c.param("body.provider", *body.Provider).trim().upper().match(providerRe, "Unsupported provider")
	}

	if body.Beneficiary == nil {
		c.add("body.beneficiary", CodeInvalidType, "Required")
	} else {
		b := body.Beneficiary
		out.Beneficiary = domain.PayeeSnapshot{
			Name:          c.field("body.beneficiary.name", b.Name).trim().required().max(60).match(PayeeNameRe, "Invalid beneficiary name").value(),
			BankName:      c.field("body.beneficiary.bankName", b.BankName).trim().optional().max(80).match(BankNameRe, "Invalid bank name").value(),
			IBANOrAccount: c.field("body.beneficiary.ibanOrAccount", b.IBANOrAccount).trim().upper().required().max(34).match(IBANRe, "Invalid IBAN/Account").value(),
		}
	}
	return out, c.err()
}

// TransactionListQuery is a validated customer listing request.
type TransactionListQuery struct {
	Status domain.TransactionStatus
	Page   int
	Limit  int
}

// ListTransactions validates GET /api/tx.
func ListTransactions(in Input) (TransactionListQuery, error) {
	c := &checker{}
	c.strictQuery(in.Query, "page", "limit", "status")
	out := TransactionListQuery{
		Page:   c.intQuery(in.Query, "page", 1, 1, MaxPage),
		Limit:  c.intQuery(in.Query, "limit", 10, 1, 100),
		Status: domain.TransactionStatus(c.enumQuery(in.Query, "status", "", statusNames(domain.AllStatuses)...)),
	}
	return out, c.err()
}

// QueueQuery is a validated cursor-paginated status listing.
type QueueQuery struct {
	Status domain.TransactionStatus
	Limit  int
	Cursor *time.Time
}

// QueueSchema builds the queue listing schema for the given statuses; the
// first one is the default.
func QueueSchema(statuses ...domain.TransactionStatus) Schema[QueueQuery] {
	names := statusNames(statuses)
	return func(in Input) (QueueQuery, error) {
		c := &checker{}
		out := QueueQuery{
			Status: domain.TransactionStatus(c.enumQuery(in.Query, "status", names[0], names...)),
			Limit:  c.intQuery(in.Query, "limit", 200, 1, 500),
			Cursor: c.cursorQuery(in.Query),
		}
		return out, c.err()
	}
}

// EmployeeQueue validates GET /api/intl/queue.
var EmployeeQueue = QueueSchema(domain.StatusPending, domain.StatusVerified)

// AdminTransactions validates GET /api/admin/transactions.
var AdminTransactions = QueueSchema(domain.StatusQueued, domain.StatusPending, domain.StatusVerified, domain.StatusForwarded, domain.StatusFailed)

// TransactionID validates a transaction id path parameter.
func TransactionID(in Input) (string, error) {
	c := &checker{}
	id := c.param("params.id", in.Params["id"]).trim().lower().required().match(UUIDRe, "Invalid id").value()
	return id, c.err()
}

// VerifyInput is a validated verify request with an optional BIC correction.
type VerifyInput struct {
	ID       string
	SwiftBIC string
}

type verifyBody struct {
	SwiftBIC *string `json:"swiftBic"`
}

// Verify validates POST /api/intl/{id}/verify.
func Verify(in Input) (VerifyInput, error) {
	c := &checker{}
	out := VerifyInput{
		ID: c.param("params.id", in.Params["id"]).trim().lower().required().match(UUIDRe, "Invalid id").value(),
	}
	var body verifyBody
	if c.decodeBody(in.Body, &body) {
		out.SwiftBIC = c.field("body.swiftBic", body.SwiftBIC).trim().upper().optional().match(SwiftBICRe, "Invalid SWIFT/BIC").value()
	}
	return out, c.err()
}

type bulkSubmitBody struct {
	IDs []string `json:"ids"`
}

// BulkSubmit validates POST /api/intl/submit-bulk and de-duplicates ids.
func BulkSubmit(in Input) ([]string, error) {
	c := &checker{}
	var body bulkSubmitBody
	if !c.decodeBody(in.Body, &body) {
		return nil, c.err()
	}
	switch {
	case body.IDs == nil:
		c.add("body.ids", CodeInvalidType, "Required")
	case len(body.IDs) == 0:
		c.add("body.ids", CodeTooSmall, "Array must contain at least 1 element(s)")
	case len(body.IDs) > MaxBulkSubmit:
		c.add("body.ids", CodeTooBig, fmt.Sprintf("Array must contain at most %d element(s)", MaxBulkSubmit))
	}
	seen := make(map[string]struct{}, len(body.IDs))
	ids := make([]string, 0, len(body.IDs))
	for i, id := range body.IDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if !UUIDRe.MatchString(id) {
			c.add(fmt.Sprintf("body.ids.%d", i), CodeInvalidString, "Invalid id")
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, c.err()
}

func statusNames(statuses []domain.TransactionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
