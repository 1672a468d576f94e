package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tabsplit/backend/internal/audit"
	"github.com/tabsplit/backend/internal/config"
	"github.com/tabsplit/backend/internal/models"
	"github.com/tabsplit/backend/internal/store"
)

// DebtSyncService reconciles shared debts between connected accounts. Each
// side owns its own row; a caller only ever writes rows it owns.
type DebtSyncService struct {
	ledger   store.LedgerStore
	contacts store.ContactDirectory
	events   *SyncEvents
	audit    *audit.AuditLogger
	config   *config.SyncConfig
	now      func() time.Time
}

// AcceptResult is the outcome of a single accept. CreatedAt is the existing
// row's value after an update and a fresh timestamp after an insert.
type AcceptResult struct {
	CreatedAt time.Time `json:"createdAt"`
}

// Intention is a counterparty proposal the caller may accept, shown from the
// caller's side of the ledger.
type Intention struct {
	DebtID                string          `json:"debtId"`
	CounterpartyAccountID string          `json:"counterpartyAccountId"`
	ContactID             string          `json:"contactId"`
	Amount                decimal.Decimal `json:"amount"`
	CurrencyCode          string          `json:"currencyCode"`
	EconomicDate          time.Time       `json:"economicDate"`
	Note                  string          `json:"note"`
	LockedAt              time.Time       `json:"lockedAt"`
	Current               *time.Time      `json:"currentLockedAt,omitempty"`
	Exists                bool            `json:"exists"`
}

func NewDebtSyncService(ledger store.LedgerStore, contacts store.ContactDirectory, events *SyncEvents, cfg *config.SyncConfig) *DebtSyncService {
	return &DebtSyncService{
		ledger:   ledger,
		contacts: contacts,
		events:   events,
		audit:    audit.NewAuditLogger(),
		config:   cfg,
		now:      storeNow,
	}
}

// storeNow matches the microsecond precision of timestamptz, so timestamps
// handed to clients equal the stored ones.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// AcceptIntention makes the caller's row for debtID agree with the
// counterparty's locked proposal.
func (s *DebtSyncService) AcceptIntention(ctx context.Context, callerAccountID, debtID string) (*AcceptResult, error) {
	counterpart, err := s.findOptional(s.ledger.FindCounterpartRow(ctx, debtID, callerAccountID))
	if err != nil {
		return nil, err
	}

	var contactID string
	if counterpart != nil {
		contactID, err = s.contacts.ReverseContact(ctx, callerAccountID, counterpart.OwnerAccountID)
		if errors.Is(err, store.ErrNotFound) {
			// not connected to the caller, so not visible either
			counterpart = nil
		} else if err != nil {
			return nil, err
		}
	}

	own, err := s.findOptional(s.ledger.FindRow(ctx, debtID, callerAccountID))
	if err != nil {
		return nil, err
	}

	acceptUnlocked := !s.config.ProtectUnlockedRows
	action, err := ResolveEligibility(debtID, own, counterpart, acceptUnlocked)
	if err != nil {
		log.Printf("[DEBT_SYNC] Accept refused for debt %s by %s: %v", debtID, callerAccountID, err)
		return nil, err
	}

	mirror := models.MirrorOf(counterpart)
	mirror.OwnerAccountID = callerAccountID
	if action == AcceptInsert {
		mirror.ContactID = contactID
		mirror.CreatedAt = s.now()
	} else {
		mirror.ContactID = own.ContactID
		mirror.CreatedAt = own.CreatedAt
	}

	err = s.ledger.WithTx(ctx, func(ctx context.Context, w store.LedgerWriter) error {
		if action == AcceptInsert {
			return w.InsertRow(ctx, &mirror)
		}
		return w.UpdateRow(ctx, &mirror, acceptUnlocked)
	})
	if errors.Is(err, store.ErrConflict) {
		log.Printf("[DEBT_SYNC] Debt %s changed concurrently for %s", debtID, callerAccountID)
		return nil, s.concurrentRefusal(ctx, callerAccountID, debtID, acceptUnlocked)
	}
	if err != nil {
		s.audit.LogError(debtID, callerAccountID, err)
		return nil, err
	}

	s.audit.LogAccept(debtID, callerAccountID, counterpart.OwnerAccountID, action.String(), *mirror.LockedAt)
	s.publish(ctx, SyncEvent{
		Type:                  "ACCEPTED",
		DebtID:                debtID,
		AccountID:             callerAccountID,
		CounterpartyAccountID: counterpart.OwnerAccountID,
		LockedAt:              *mirror.LockedAt,
	})

	return &AcceptResult{CreatedAt: mirror.CreatedAt}, nil
}

// AcceptAllIntentions settles every eligible proposal across all of the
// caller's connections. Existing rows are updated in one transaction, then
// missing rows are inserted in a second one. A failed create phase leaves
// the committed updates in place.
func (s *DebtSyncService) AcceptAllIntentions(ctx context.Context, callerAccountID string) ([]models.AcceptedDebt, error) {
	if err := s.events.Allow(ctx, callerAccountID); err != nil {
		return nil, err
	}

	eligible, err := s.ledger.FindEligibleAcrossConnections(ctx, callerAccountID, !s.config.ProtectUnlockedRows)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, &SyncError{Kind: ErrNothingToAccept, Reason: ReasonNothingEligible, Message: "no debts to accept"}
	}

	toUpdate, toCreate, sources := partitionEligible(eligible, callerAccountID, s.now())
	accepted := make([]models.AcceptedDebt, 0, len(toUpdate)+len(toCreate))

	if len(toUpdate) > 0 {
		err := s.ledger.WithTx(ctx, func(ctx context.Context, w store.LedgerWriter) error {
			for i := range toUpdate {
				if err := w.UpdateRow(ctx, &toUpdate[i], !s.config.ProtectUnlockedRows); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.audit.LogBulkAccept(callerAccountID, 0, 0, "FAILED")
			return nil, &PhaseError{Phase: "update", Err: err}
		}
		accepted = appendAccepted(accepted, toUpdate)
	}

	if len(toCreate) > 0 {
		err := s.ledger.WithTx(ctx, func(ctx context.Context, w store.LedgerWriter) error {
			for i := range toCreate {
				if err := w.InsertRow(ctx, &toCreate[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.audit.LogBulkAccept(callerAccountID, len(toUpdate), 0, "PARTIAL")
			s.publish(ctx, acceptedEvents(callerAccountID, toUpdate, sources)...)
			return nil, &PhaseError{Phase: "create", Committed: accepted, Err: err}
		}
		accepted = appendAccepted(accepted, toCreate)
	}

	log.Printf("[DEBT_SYNC] Accepted %d debts for %s (%d updated, %d created)",
		len(accepted), callerAccountID, len(toUpdate), len(toCreate))
	s.audit.LogBulkAccept(callerAccountID, len(toUpdate), len(toCreate), "SUCCESS")
	s.publish(ctx, acceptedEvents(callerAccountID, append(toUpdate, toCreate...), sources)...)

	return accepted, nil
}

// ProposeIntention locks the caller's own row at the current time, turning its
// payload into a proposal the counterparty can accept.
func (s *DebtSyncService) ProposeIntention(ctx context.Context, callerAccountID, debtID string) (time.Time, error) {
	lockedAt := s.now()
	err := s.ledger.LockRow(ctx, debtID, callerAccountID, lockedAt)
	if errors.Is(err, store.ErrNotFound) {
		return time.Time{}, notFound(debtID, ReasonNoOwnRow, "debt not found")
	}
	if err != nil {
		return time.Time{}, err
	}

	s.audit.LogPropose(debtID, callerAccountID, lockedAt)
	return lockedAt, nil
}

// GetIntentions lists the proposals AcceptAllIntentions would settle.
func (s *DebtSyncService) GetIntentions(ctx context.Context, callerAccountID string) ([]Intention, error) {
	eligible, err := s.ledger.FindEligibleAcrossConnections(ctx, callerAccountID, !s.config.ProtectUnlockedRows)
	if err != nil {
		return nil, err
	}

	intentions := make([]Intention, 0, len(eligible))
	for _, e := range eligible {
		intentions = append(intentions, Intention{
			DebtID:                e.Source.ID,
			CounterpartyAccountID: e.Source.OwnerAccountID,
			ContactID:             e.ContactID,
			Amount:                e.Source.Amount.Neg(),
			CurrencyCode:          e.Source.CurrencyCode,
			EconomicDate:          e.Source.EconomicDate,
			Note:                  e.Source.Note,
			LockedAt:              *e.Source.LockedAt,
			Current:               e.OwnLockedAt,
			Exists:                e.OwnCreatedAt != nil,
		})
	}
	return intentions, nil
}

// concurrentRefusal explains a write that lost a race by re-running the
// eligibility check on the current rows.
func (s *DebtSyncService) concurrentRefusal(ctx context.Context, callerAccountID, debtID string, acceptUnlocked bool) error {
	own, ownErr := s.findOptional(s.ledger.FindRow(ctx, debtID, callerAccountID))
	counterpart, cpErr := s.findOptional(s.ledger.FindCounterpartRow(ctx, debtID, callerAccountID))
	if ownErr == nil && cpErr == nil {
		if _, err := ResolveEligibility(debtID, own, counterpart, acceptUnlocked); err != nil {
			return err
		}
	}
	return alreadySynced(debtID, "debt was settled concurrently")
}

func (s *DebtSyncService) findOptional(debt *models.Debt, err error) (*models.Debt, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage failure: %w", err)
	}
	return debt, nil
}

func (s *DebtSyncService) publish(ctx context.Context, events ...SyncEvent) {
	if err := s.events.Publish(ctx, events...); err != nil {
		log.Printf("[SYNC_EVENTS] Failed to queue %d sync events: %v", len(events), err)
	}
}

// partitionEligible splits discovered proposals by whether the caller already
// holds a row for the id. The groups are disjoint. sources maps each id to the
// counterparty account that proposed it.
func partitionEligible(eligible []models.EligibleDebt, callerAccountID string, now time.Time) (toUpdate, toCreate []models.Debt, sources map[string]string) {
	sources = make(map[string]string, len(eligible))
	for i := range eligible {
		e := &eligible[i]
		if _, seen := sources[e.Source.ID]; seen {
			continue
		}
		sources[e.Source.ID] = e.Source.OwnerAccountID

		mirror := models.MirrorOf(&e.Source)
		mirror.OwnerAccountID = callerAccountID
		mirror.ContactID = e.ContactID
		if e.OwnCreatedAt != nil {
			mirror.CreatedAt = *e.OwnCreatedAt
			toUpdate = append(toUpdate, mirror)
		} else {
			mirror.CreatedAt = now
			toCreate = append(toCreate, mirror)
		}
	}
	return toUpdate, toCreate, sources
}

func appendAccepted(accepted []models.AcceptedDebt, debts []models.Debt) []models.AcceptedDebt {
	for _, debt := range debts {
		accepted = append(accepted, models.AcceptedDebt{ID: debt.ID, CreatedAt: debt.CreatedAt})
	}
	return accepted
}

func acceptedEvents(callerAccountID string, debts []models.Debt, sources map[string]string) []SyncEvent {
	events := make([]SyncEvent, 0, len(debts))
	for _, debt := range debts {
		events = append(events, SyncEvent{
			Type:                  "ACCEPTED",
			DebtID:                debt.ID,
			AccountID:             callerAccountID,
			CounterpartyAccountID: sources[debt.ID],
			LockedAt:              *debt.LockedAt,
		})
	}
	return events
}
