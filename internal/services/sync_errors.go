package services

import (
	"errors"
	"fmt"

	"github.com/tabsplit/backend/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadySynced   = errors.New("already in sync")
	ErrNothingToAccept = errors.New("nothing eligible")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

// Reason is the machine-readable cause attached to a SyncError.
type Reason string

const (
	ReasonNoCounterparty           Reason = "NO_COUNTERPARTY"
	ReasonCounterpartyNotLocked    Reason = "COUNTERPARTY_NOT_LOCKED"
	ReasonOwnRowNotLocked          Reason = "OWN_ROW_NOT_LOCKED"
	ReasonCounterpartyShouldAccept Reason = "COUNTERPARTY_SHOULD_ACCEPT"
	ReasonAlreadySynced            Reason = "ALREADY_SYNCED"
	ReasonNothingEligible          Reason = "NOTHING_ELIGIBLE"
	ReasonNoOwnRow                 Reason = "NO_OWN_ROW"
)

// SyncError reports why an accept or propose call was refused. Kind is one
// of the sentinel errors above.
type SyncError struct {
	Kind    error
	Reason  Reason
	DebtID  string
	Message string
}

func (e *SyncError) Error() string {
	if e.DebtID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("debt %s: %s", e.DebtID, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Kind
}

// Is lets an already-synced refusal also match ErrForbidden.
func (e *SyncError) Is(target error) bool {
	return e.Kind == ErrAlreadySynced && target == ErrForbidden
}

func notFound(debtID string, reason Reason, message string) *SyncError {
	return &SyncError{Kind: ErrNotFound, Reason: reason, DebtID: debtID, Message: message}
}

func forbidden(debtID string, reason Reason, message string) *SyncError {
	return &SyncError{Kind: ErrForbidden, Reason: reason, DebtID: debtID, Message: message}
}

func alreadySynced(debtID, message string) *SyncError {
	return &SyncError{Kind: ErrAlreadySynced, Reason: ReasonAlreadySynced, DebtID: debtID, Message: message}
}

// PhaseError is returned by AcceptAllIntentions when one of its batch
// transactions fails. Committed lists the ids settled by an earlier phase.
type PhaseError struct {
	Phase     string
	Committed []models.AcceptedDebt
	Err       error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("accept all: %s phase: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
