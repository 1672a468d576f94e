package services

import (
	"context"
	"log"

	"github.com/tabsplit/backend/internal/models"
	"github.com/tabsplit/backend/internal/store"
)

// LedgerSummaryService reads per-currency totals of a caller's ledger. Sums
// are computed by the store in NUMERIC and only become floats in the views
// returned here. Zero totals are kept: they mean "settled in this currency".
type LedgerSummaryService struct {
	ledger store.LedgerStore
	reads  *ReadCoalescer
}

func NewLedgerSummaryService(ledger store.LedgerStore, reads *ReadCoalescer) *LedgerSummaryService {
	return &LedgerSummaryService{
		ledger: ledger,
		reads:  reads,
	}
}

func (s *LedgerSummaryService) GetLedgerSummary(ctx context.Context, callerAccountID string) ([]models.SumView, error) {
	sums, err := coalesce(ctx, s.reads, "summary:"+callerAccountID, func(ctx context.Context) ([]models.CurrencySum, error) {
		return s.ledger.SumByCurrency(ctx, callerAccountID)
	})
	if err != nil {
		log.Printf("[LEDGER_SUMMARY] Failed to sum ledger for %s: %v", callerAccountID, err)
		return nil, err
	}
	return displaySums(sums), nil
}

func (s *LedgerSummaryService) GetLedgerSummaryByContact(ctx context.Context, callerAccountID, contactID string) ([]models.SumView, error) {
	key := "summary:" + callerAccountID + ":contact:" + contactID
	sums, err := coalesce(ctx, s.reads, key, func(ctx context.Context) ([]models.CurrencySum, error) {
		return s.ledger.SumByContact(ctx, callerAccountID, contactID)
	})
	if err != nil {
		log.Printf("[LEDGER_SUMMARY] Failed to sum ledger for %s, contact %s: %v", callerAccountID, contactID, err)
		return nil, err
	}
	return displaySums(sums), nil
}

// GetLedgerSummaryByContacts returns the totals of every contact in one read,
// ordered by contact id.
func (s *LedgerSummaryService) GetLedgerSummaryByContacts(ctx context.Context, callerAccountID string) ([]models.ContactSumView, error) {
	sums, err := coalesce(ctx, s.reads, "summary:"+callerAccountID+":contacts", func(ctx context.Context) ([]models.ContactCurrencySum, error) {
		return s.ledger.SumByContacts(ctx, callerAccountID)
	})
	if err != nil {
		log.Printf("[LEDGER_SUMMARY] Failed to sum ledger by contact for %s: %v", callerAccountID, err)
		return nil, err
	}

	views := []models.ContactSumView{}
	for _, sum := range sums {
		if len(views) == 0 || views[len(views)-1].ContactID != sum.ContactID {
			views = append(views, models.ContactSumView{ContactID: sum.ContactID})
		}
		last := &views[len(views)-1]
		last.Sums = append(last.Sums, models.CurrencySum{CurrencyCode: sum.CurrencyCode, Sum: sum.Sum}.Display())
	}
	return views, nil
}

func displaySums(sums []models.CurrencySum) []models.SumView {
	views := make([]models.SumView, 0, len(sums))
	for _, sum := range sums {
		views = append(views, sum.Display())
	}
	return views
}
