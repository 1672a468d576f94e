package models

import "github.com/shopspring/decimal"

// CurrencySum is a ledger total in one currency. Sum is exact; use Display
// for the float handed to clients.
type CurrencySum struct {
	CurrencyCode string          `json:"currencyCode"`
	Sum          decimal.Decimal `json:"-"`
}

// ContactCurrencySum is a CurrencySum scoped to one contact.
type ContactCurrencySum struct {
	ContactID    string          `json:"contactId"`
	CurrencyCode string          `json:"currencyCode"`
	Sum          decimal.Decimal `json:"-"`
}

// SumView is the client-facing shape of a currency total.
type SumView struct {
	CurrencyCode string  `json:"currencyCode"`
	Sum          float64 `json:"sum"`
}

// Display converts the exact sum to its float presentation.
func (s CurrencySum) Display() SumView {
	return SumView{CurrencyCode: s.CurrencyCode, Sum: s.Sum.InexactFloat64()}
}

// ContactSumView groups a contact's totals for clients.
type ContactSumView struct {
	ContactID string    `json:"contactId"`
	Sums      []SumView `json:"sums"`
}
