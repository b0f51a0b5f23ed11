package validation

import "regexp"

// Field formats. Values are matched after trimming and, where noted by the
// schema, after case canonicalization.
var (
	PersonNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z'-]{1,39}$`)
	IDNumberRe   = regexp.MustCompile(`^\d{13}$`)
	UsernameRe   = regexp.MustCompile(`^[a-z0-9_]{4,20}$`)
	PayeeNameRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z .,'-]{1,59}$`)
	BankNameRe   = regexp.MustCompile(`^[A-Za-z0-9 .,'-]{2,80}$`)
	BranchCodeRe = regexp.MustCompile(`^[A-Za-z0-9-]{2,20}$`)
	AccountRe    = regexp.MustCompile(`^[A-Za-z0-9]{6,34}$`)
	IBANRe       = regexp.MustCompile(`^[A-Z0-9]{6,34}$`)
	CountryRe    = regexp.MustCompile(`^[A-Z]{2}$`)
	SwiftBICRe   = regexp.MustCompile(`^[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}(?:[A-Z0-9]{3})?$`)
	CurrencyRe   = regexp.MustCompile(`^[A-Z]{3}$`)
	AmountRe     = regexp.MustCompile(`^(?:0|[1-9]\d{0,12})(?:\.\d{1,2})?$`)
	NoteRe       = regexp.MustCompile(`^[A-Za-z0-9 .,'\-()/_]{0,140}$`)
	EmailRe      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	StaffIDRe    = regexp.MustCompile(`^[A-Z0-9-]{3,32}$`)
	DepartmentRe = regexp.MustCompile(`^[A-Za-z0-9 .-]{2,40}$`)
	providerRe   = regexp.MustCompile(`^SWIFT$`)
	UUIDRe       = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

const maxPasswordLen = 128
