package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// PsuData identifies a payment service user.
type PsuData struct {
	ID          string `json:"psuId,omitempty"`
	IDType      string `json:"psuIdType,omitempty"`
	CorporateID string `json:"psuCorporateId,omitempty"`
}

// IsEmpty reports whether no PSU identity is present.
func (p PsuData) IsEmpty() bool {
	return p.ID == "" && p.CorporateID == ""
}

// Key returns the identity used to tell PSUs apart.
func (p PsuData) Key() string {
	return p.ID + "|" + p.CorporateID
}

// AccountAccess is a grant over accounts, either requested by the TPP or
// confirmed by the ASPSP.
type AccountAccess struct {
	Accounts          []string `json:"accounts,omitempty"`
	Balances          []string `json:"balances,omitempty"`
	Transactions      []string `json:"transactions,omitempty"`
	AvailableAccounts string   `json:"availableAccounts,omitempty"`
	AllPsd2           string   `json:"allPsd2,omitempty"`
}

// IsEmpty reports whether the grant names no account.
func (a AccountAccess) IsEmpty() bool {
	return len(a.Accounts) == 0 && len(a.Balances) == 0 && len(a.Transactions) == 0
}

func (a AccountAccess) clone() AccountAccess {
	a.Accounts = slices.Clone(a.Accounts)
	a.Balances = slices.Clone(a.Balances)
	a.Transactions = slices.Clone(a.Transactions)
	return a
}

// EncryptedData is a ciphertext tagged with the id of the provider that produced it.
type EncryptedData struct {
	ProviderID string
	Ciphertext []byte
}

// IsEmpty reports whether no ciphertext is stored.
func (e EncryptedData) IsEmpty() bool {
	return e.ProviderID == "" || len(e.Ciphertext) == 0
}

// Data is the business payload kept encrypted at rest. Unknown fields are
// ignored and missing ones take their zero value when it is decoded.
type Data struct {
	Scopes                       []string `json:"scopes,omitempty"`
	OwnerNameGranted             bool     `json:"ownerNameGranted,omitempty"`
	TrustedBeneficiariesGranted  bool     `json:"trustedBeneficiariesGranted,omitempty"`
	AvailableAccountsWithBalance bool     `json:"availableAccountsWithBalance,omitempty"`
	CombinedServiceIndicator     bool     `json:"combinedServiceIndicator,omitempty"`
	AccountReferenceCurrency     string   `json:"accountReferenceCurrency,omitempty"`
}

// PaymentDetails is the payment specific part of a PIS consent.
type PaymentDetails struct {
	TransactionStatus TransactionStatus
	Amount            string
	Currency          string
	CreditorIBAN      string
}

// Consent is a consent or payment authorisation record.
//
// Consent values are treated as immutable: lifecycle methods return a modified
// copy and the copy is committed through an optimistic save keyed on Version.
type Consent struct {
	ID                uuid.UUID
	Type              Type
	Status            Status
	InternalRequestID string
	TppID             string

	RecurringIndicator bool
	FrequencyPerDay    int
	// ValidUntil and ExpireDate are calendar dates at UTC midnight. Zero means unbounded.
	ValidUntil time.Time
	ExpireDate time.Time
	// Usages counts accesses per calendar day keyed by DateLayout.
	Usages map[string]int

	PsuIDDataList  []PsuData
	Authorisations []Authorisation

	TppAccess   AccountAccess
	AspspAccess AccountAccess

	EncryptedData EncryptedData
	// LegacyData holds the plaintext payload of records written before encryption.
	LegacyData []byte

	MultilevelScaRequired   bool
	SigningBasketBlocked    bool
	SigningBasketAuthorised bool

	Payment *PaymentDetails

	Version        int64
	CreatedAt      time.Time
	LastActionDate time.Time
}

// Clone returns a deep copy of c.
func (c Consent) Clone() Consent {
	out := c
	out.Usages = maps.Clone(c.Usages)
	out.PsuIDDataList = slices.Clone(c.PsuIDDataList)
	out.TppAccess = c.TppAccess.clone()
	out.AspspAccess = c.AspspAccess.clone()
	out.EncryptedData.Ciphertext = slices.Clone(c.EncryptedData.Ciphertext)
	out.LegacyData = slices.Clone(c.LegacyData)
	if c.Payment != nil {
		p := *c.Payment
		out.Payment = &p
	}
	if c.Authorisations != nil {
		out.Authorisations = make([]Authorisation, len(c.Authorisations))
		for i, a := range c.Authorisations {
			out.Authorisations[i] = a.Clone()
		}
	}
	return out
}

// IsFinalised reports whether the consent reached a terminal status.
func (c Consent) IsFinalised() bool {
	return c.Status.IsFinalised()
}

// IsMultilevel reports whether more than one PSU must authorise.
func (c Consent) IsMultilevel() bool {
	return c.MultilevelScaRequired && len(c.PsuIDDataList) > 1
}

// HasPsu reports whether psu is listed on the consent.
func (c Consent) HasPsu(psu PsuData) bool {
	return slices.ContainsFunc(c.PsuIDDataList, func(p PsuData) bool {
		return p.Key() == psu.Key()
	})
}

// EffectiveAccess resolves the grant in force: the ASPSP grant when it names
// accounts, otherwise the TPP grant, otherwise an all-accounts marker if either
// side carries one.
func (c Consent) EffectiveAccess() AccountAccess {
	if !c.AspspAccess.IsEmpty() {
		return c.AspspAccess.clone()
	}
	if !c.TppAccess.IsEmpty() {
		return c.TppAccess.clone()
	}

	var marker AccountAccess
	for _, a := range []AccountAccess{c.AspspAccess, c.TppAccess} {
		if marker.AvailableAccounts == "" {
			marker.AvailableAccounts = a.AvailableAccounts
		}
		if marker.AllPsd2 == "" {
			marker.AllPsd2 = a.AllPsd2
		}
	}
	return marker
}

// Authorisation returns the authorisation with the given id.
func (c Consent) Authorisation(id uuid.UUID) (Authorisation, bool) {
	for _, a := range c.Authorisations {
		if a.ID == id {
			return a.Clone(), true
		}
	}
	return Authorisation{}, false
}

// AuthorisationsOfType returns the authorisations of the given type.
func (c Consent) AuthorisationsOfType(typ AuthorisationType) []Authorisation {
	var out []Authorisation
	for _, a := range c.Authorisations {
		if a.Type == typ {
			out = append(out, a.Clone())
		}
	}
	return out
}

// WithAuthorisation returns a copy of c where a replaces the authorisation with
// the same id, or is appended when none exists.
func (c Consent) WithAuthorisation(a Authorisation) Consent {
	out := c.Clone()
	for i := range out.Authorisations {
		if out.Authorisations[i].ID == a.ID {
			out.Authorisations[i] = a.Clone()
			return out
		}
	}
	out.Authorisations = append(out.Authorisations, a.Clone())
	return out
}

// WithStatus returns a copy of c in status s.
func (c Consent) WithStatus(s Status, now time.Time) Consent {
	out := c.Clone()
	out.Status = s
	out.LastActionDate = Day(now)
	return out
}

// StructurallyValid reports whether the consent can ever become VALID.
func (c Consent) StructurallyValid() bool {
	if c.TppID == "" || len(c.PsuIDDataList) == 0 {
		return false
	}
	for _, p := range c.PsuIDDataList {
		if p.IsEmpty() {
			return false
		}
	}
	return true
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
