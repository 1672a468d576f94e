package services

import "github.com/tabsplit/backend/internal/models"

// AcceptAction is the write an eligible accept performs on the caller's ledger.
type AcceptAction int

const (
	AcceptInsert AcceptAction = iota + 1
	AcceptUpdate
)

func (a AcceptAction) String() string {
	switch a {
	case AcceptInsert:
		return "insert"
	case AcceptUpdate:
		return "update"
	default:
		return "none"
	}
}

// ResolveEligibility decides whether the caller, holding own (nil when
// absent), may accept the counterparty's row for debtID.
//
// Locks are totally ordered, so for any pair of rows at most one side can
// be eligible at a time. Equal locks mean the pair is settled.
func ResolveEligibility(debtID string, own, counterpart *models.Debt, acceptUnlocked bool) (AcceptAction, error) {
	if counterpart == nil {
		return 0, notFound(debtID, ReasonNoCounterparty, "counterparty debt not found")
	}
	if !counterpart.Locked() {
		return 0, forbidden(debtID, ReasonCounterpartyNotLocked, "counterparty debt is not expected to be in sync")
	}
	if own == nil {
		return AcceptInsert, nil
	}
	if !own.Locked() {
		if acceptUnlocked {
			return AcceptUpdate, nil
		}
		return 0, forbidden(debtID, ReasonOwnRowNotLocked, "your debt is not expected to be in sync")
	}

	switch {
	case own.LockedAt.Equal(*counterpart.LockedAt):
		return 0, alreadySynced(debtID, "debt is already in sync")
	case own.LockedAt.After(*counterpart.LockedAt):
		return 0, forbidden(debtID, ReasonCounterpartyShouldAccept, "counterparty should accept your debt instead")
	default:
		return AcceptUpdate, nil
	}
}
