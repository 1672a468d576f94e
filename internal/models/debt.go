package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Debt is one owner's view of a shared debt. Two rows with the same ID and
// different owners form a mirrored pair.
type Debt struct {
	ID             string          `json:"id" db:"id"`
	OwnerAccountID string          `json:"ownerAccountId" db:"owner_account_id"`
	ContactID      string          `json:"contactId" db:"contact_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"` // positive: contact owes owner
	CurrencyCode   string          `json:"currencyCode" db:"currency_code"`
	EconomicDate   time.Time       `json:"economicDate" db:"economic_date"`
	Note           string          `json:"note" db:"note"`
	ReceiptID      *string         `json:"receiptId,omitempty" db:"receipt_id"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	LockedAt       *time.Time      `json:"lockedAt,omitempty" db:"locked_at"`
}

// Locked reports whether the row carries a sync proposal.
func (d *Debt) Locked() bool {
	return d != nil && d.LockedAt != nil
}

// MirrorOf builds the row an owner should hold to agree with the counterparty
// row src. Identity fields and CreatedAt are left to the caller.
func MirrorOf(src *Debt) Debt {
	lockedAt := *src.LockedAt
	mirror := Debt{
		ID:           src.ID,
		Amount:       src.Amount.Neg(),
		CurrencyCode: src.CurrencyCode,
		EconomicDate: src.EconomicDate,
		Note:         src.Note,
		LockedAt:     &lockedAt,
	}
	if src.ReceiptID != nil {
		receiptID := *src.ReceiptID
		mirror.ReceiptID = &receiptID
	}
	return mirror
}

// EligibleDebt is a counterparty proposal found by the discovery query
// together with the caller-side facts needed to settle it.
type EligibleDebt struct {
	Source       Debt       `json:"source"`
	ContactID    string     `json:"contactId"`              // caller's contact for the source owner
	OwnCreatedAt *time.Time `json:"ownCreatedAt,omitempty"` // nil when the caller holds no row
	OwnLockedAt  *time.Time `json:"ownLockedAt,omitempty"`
}

// AcceptedDebt is returned per settled id by the accept operations.
type AcceptedDebt struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
