package domain

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// BeneficiaryType discriminates the payee account variants.
type BeneficiaryType string

const (
	BeneficiaryLocal   BeneficiaryType = "local"
	BeneficiaryForeign BeneficiaryType = "foreign"
)

// BeneficiaryAccount is the sealed set of payee bank-detail variants. The only
// implementations are LocalAccount and ForeignAccount; consumers branch with
// MatchAccount so a new variant breaks every call site at compile time.
type BeneficiaryAccount interface {
	Type() BeneficiaryType
	sealedAccount()
}

// LocalAccount holds domestic bank details.
type LocalAccount struct {
	BankName      string
	BranchCode    string
	AccountNumber string
}

// ForeignAccount holds cross-border bank details.
type ForeignAccount struct {
	Country       string
	SwiftBIC      string
	IBANOrAccount string
	BankName      string
}

func (LocalAccount) Type() BeneficiaryType   { return BeneficiaryLocal }
func (ForeignAccount) Type() BeneficiaryType { return BeneficiaryForeign }
func (LocalAccount) sealedAccount()          {}
func (ForeignAccount) sealedAccount()        {}

// MatchAccount dispatches on the account variant.
func MatchAccount[T any](a BeneficiaryAccount, local func(LocalAccount) T, foreign func(ForeignAccount) T) T {
	switch v := a.(type) {
	case LocalAccount:
		return local(v)
	case *LocalAccount:
		return local(*v)
	case ForeignAccount:
		return foreign(v)
	case *ForeignAccount:
		return foreign(*v)
	}
	panic("domain: unknown beneficiary account variant")
}

// Beneficiary is a saved payee owned by exactly one user.
type Beneficiary struct {
	ID        string
	UserID    string
	Name      string
	Email     string
	Reference string
	Account   BeneficiaryAccount
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Type returns the discriminator of the account variant.
func (b *Beneficiary) Type() BeneficiaryType {
	return b.Account.Type()
}

// NaturalKey is the per-owner, per-type uniqueness key: the payee name plus
// the account identifiers of its variant.
func (b *Beneficiary) NaturalKey() string {
	return MatchAccount(b.Account,
		func(l LocalAccount) string {
			return strings.Join([]string{b.Name, l.AccountNumber}, "|")
		},
		func(f ForeignAccount) string {
			return strings.Join([]string{b.Name, f.IBANOrAccount, f.SwiftBIC}, "|")
		},
	)
}

type beneficiaryJSON struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Type          BeneficiaryType `json:"type"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	BankName      string          `json:"bankName,omitempty"`
	BranchCode    string          `json:"branchCode,omitempty"`
	AccountNumber string          `json:"accountNumber,omitempty"`
	Country       string          `json:"country,omitempty"`
	SwiftBIC      string          `json:"swiftBic,omitempty"`
	IBANOrAccount string          `json:"ibanOrAccount,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// MarshalJSON flattens the account variant next to the common fields.
func (b Beneficiary) MarshalJSON() ([]byte, error) {
	out := beneficiaryJSON{
		ID:        b.ID,
		UserID:    b.UserID,
		Type:      b.Account.Type(),
		Name:      b.Name,
		Email:     b.Email,
		Reference: b.Reference,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	MatchAccount(b.Account,
		func(l LocalAccount) struct{} {
			out.BankName, out.BranchCode, out.AccountNumber = l.BankName, l.BranchCode, l.AccountNumber
			return struct{}{}
		},
		func(f ForeignAccount) struct{} {
			out.Country, out.SwiftBIC, out.IBANOrAccount, out.BankName = f.Country, f.SwiftBIC, f.IBANOrAccount, f.BankName
			return struct{}{}
		},
	)
	return json.Marshal(out)
}

// BeneficiaryFilter narrows an owner's beneficiary listing.
type BeneficiaryFilter struct {
	Type  BeneficiaryType
	Page  int
	Limit int
}

// BeneficiaryRepository defines data access for beneficiaries.
type BeneficiaryRepository interface {
	Create(ctx context.Context, b *Beneficiary) error
	ListByOwner(ctx context.Context, ownerID string, filter BeneficiaryFilter) ([]*Beneficiary, int, error)
}
