package domain

import "strings"

// FieldKey addresses one vaulted datum. Keys are namespaced the way the vault
// stores them: "id." for personal data, "business." for company data.
type FieldKey string

const (
	FieldEmail        FieldKey = "id.email"
	FieldPhone        FieldKey = "id.phone_number"
	FieldFirstName    FieldKey = "id.first_name"
	FieldLastName     FieldKey = "id.last_name"
	FieldDOB          FieldKey = "id.dob"
	FieldSSN9         FieldKey = "id.ssn9"
	FieldAddressLine1 FieldKey = "id.address_line1"
	FieldAddressLine2 FieldKey = "id.address_line2"
	FieldCity         FieldKey = "id.city"
	FieldState        FieldKey = "id.state"
	FieldZip          FieldKey = "id.zip"
	FieldCountry      FieldKey = "id.country"

	FieldBusinessName     FieldKey = "business.name"
	FieldBusinessTIN      FieldKey = "business.tin"
	FieldBusinessAddress  FieldKey = "business.address_line1"
	FieldBusinessCity     FieldKey = "business.city"
	FieldBusinessState    FieldKey = "business.state"
	FieldBusinessZip      FieldKey = "business.zip"
	FieldBusinessCountry  FieldKey = "business.country"
	FieldBeneficialOwners FieldKey = "business.kyced_beneficial_owners"

	FieldOccupation     FieldKey = "investor_profile.occupation"
	FieldAnnualIncome   FieldKey = "investor_profile.annual_income"
	FieldNetWorth       FieldKey = "investor_profile.net_worth"
	FieldFundingSources FieldKey = "investor_profile.funding_sources"
)

// IsBusiness reports whether the key belongs to the company vault scope.
func (k FieldKey) IsBusiness() bool { return strings.HasPrefix(string(k), "business.") }
