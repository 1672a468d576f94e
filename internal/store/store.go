// Package store defines the persistence collaborators of the debt sync core
// and their PostgreSQL implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tabsplit/backend/internal/models"
)

var (
	// ErrNotFound marks an absent row.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by a conditional write that matched no row
	// because a concurrent writer got there first.
	ErrConflict = errors.New("row changed concurrently")
)

// LedgerWriter applies row writes inside a transaction opened by
// LedgerStore.WithTx. Every write is scoped to (id, owner_account_id).
type LedgerWriter interface {
	InsertRow(ctx context.Context, debt *models.Debt) error
	// UpdateRow returns ErrConflict unless the stored lock is older than
	// debt.LockedAt, or null with allowUnlocked set.
	UpdateRow(ctx context.Context, debt *models.Debt, allowUnlocked bool) error
}

// LedgerStore is the transactional debts table.
type LedgerStore interface {
	FindRow(ctx context.Context, debtID, ownerAccountID string) (*models.Debt, error)

	// FindCounterpartRow returns the row for debtID held by an account whose
	// contact on that row is connected to callerAccountID.
	FindCounterpartRow(ctx context.Context, debtID, callerAccountID string) (*models.Debt, error)

	// FindEligibleAcrossConnections returns every locked counterparty row,
	// across all of the caller's connections, that the caller may accept.
	// When acceptUnlocked is set, caller rows without a lock count as targets.
	FindEligibleAcrossConnections(ctx context.Context, callerAccountID string, acceptUnlocked bool) ([]models.EligibleDebt, error)

	// WithTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, w LedgerWriter) error) error

	LockRow(ctx context.Context, debtID, ownerAccountID string, at time.Time) error

	SumByCurrency(ctx context.Context, ownerAccountID string) ([]models.CurrencySum, error)
	SumByContact(ctx context.Context, ownerAccountID, contactID string) ([]models.CurrencySum, error)
	SumByContacts(ctx context.Context, ownerAccountID string) ([]models.ContactCurrencySum, error)
}

// ContactDirectory resolves connections between accounts.
type ContactDirectory interface {
	// ReverseContact returns the id of the contact, owned by forAccountID,
	// that is connected to otherAccountID.
	ReverseContact(ctx context.Context, forAccountID, otherAccountID string) (string, error)
}
