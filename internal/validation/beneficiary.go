package validation

import (
	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

// BeneficiaryInput is a validated payee with its account variant.
type BeneficiaryInput struct {
	Name      string
	Email     string
	Reference string
	Account   domain.BeneficiaryAccount
}

type beneficiaryBody struct {
	Type          *string `json:"type"`
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	Reference     *string `json:"reference"`
	BankName      *string `json:"bankName"`
	BranchCode    *string `json:"branchCode"`
	AccountNumber *string `json:"accountNumber"`
	Country       *string `json:"country"`
	SwiftBIC      *string `json:"swiftBic"`
	IBANOrAccount *string `json:"ibanOrAccount"`
}

// CreateBeneficiary validates POST /api/beneficiaries. The type field
// selects the variant; fields belonging to the other variant are rejected.
func CreateBeneficiary(in Input) (BeneficiaryInput, error) {
	c := &checker{}
	var body beneficiaryBody
	if !c.decodeBody(in.Body, &body) {
		return BeneficiaryInput{}, c.err()
	}

	out := BeneficiaryInput{
		Name:      c.field("body.name", body.Name).trim().required().max(60).match(PayeeNameRe, "Invalid name").value(),
		Email:     c.field("body.email", body.Email).trim().optional().max(254).match(EmailRe, "Invalid email").value(),
		Reference: c.field("body.reference", body.Reference).trim().optional().max(140).match(NoteRe, "Invalid reference").value(),
	}

	typ := c.field("body.type", body.Type).trim().required()
	if typ.failed {
		return out, c.err()
	}

	switch domain.BeneficiaryType(typ.value()) {
	case domain.BeneficiaryLocal:
		c.forbid("body.country", body.Country)
		c.forbid("body.swiftBic", body.SwiftBIC)
		c.forbid("body.ibanOrAccount", body.IBANOrAccount)
		out.Account = domain.LocalAccount{
			BankName:      c.field("body.bankName", body.BankName).trim().required().max(80).match(BankNameRe, "Invalid bank name").value(),
			BranchCode:    c.field("body.branchCode", body.BranchCode).trim().required().max(20).match(BranchCodeRe, "Invalid branch code").value(),
			AccountNumber: c.field("body.accountNumber", body.AccountNumber).trim().required().max(34).match(AccountRe, "Invalid account number").value(),
		}
	case domain.BeneficiaryForeign:
		c.forbid("body.branchCode", body.BranchCode)
		c.forbid("body.accountNumber", body.AccountNumber)
		out.Account = domain.ForeignAccount{
			Country:       c.field("body.country", body.Country).trim().upper().required().match(CountryRe, "Invalid country").value(),
			SwiftBIC:      c.field("body.swiftBic", body.SwiftBIC).trim().upper().required().match(SwiftBICRe, "Invalid SWIFT/BIC").value(),
			IBANOrAccount: c.field("body.ibanOrAccount", body.IBANOrAccount).trim().upper().required().max(34).match(IBANRe, "Invalid IBAN/Account").value(),
			BankName:      c.field("body.bankName", body.BankName).trim().optional().max(80).match(BankNameRe, "Invalid bank name").value(),
		}
	default:
		c.add("body.type", CodeInvalidEnum, `Invalid discriminator value. Expected 'local' | 'foreign'`)
	}
	return out, c.err()
}

func (c *checker) forbid(path string, v *string) {
	if v != nil {
		c.add(path, CodeUnrecognized, "Field not allowed for this beneficiary type")
	}
}

// BeneficiaryListQuery is a validated beneficiary listing request.
type BeneficiaryListQuery struct {
	Type  domain.BeneficiaryType
	Page  int
	Limit int
}

// ListBeneficiaries validates GET /api/beneficiaries.
func ListBeneficiaries(in Input) (BeneficiaryListQuery, error) {
	c := &checker{}
	c.strictQuery(in.Query, "page", "limit", "type")
	out := BeneficiaryListQuery{
		Page:  c.intQuery(in.Query, "page", 1, 1, MaxPage),
		Limit: c.intQuery(in.Query, "limit", 10, 1, 100),
		Type:  domain.BeneficiaryType(c.enumQuery(in.Query, "type", "", string(domain.BeneficiaryLocal), string(domain.BeneficiaryForeign))),
	}
	return out, c.err()
}
