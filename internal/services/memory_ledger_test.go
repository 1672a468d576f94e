package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tabsplit/backend/internal/models"
	"github.com/tabsplit/backend/internal/store"
)

type debtKey struct {
	id    string
	owner string
}

// memoryLedger is a LedgerStore and ContactDirectory over maps. Transactions
// hold the lock for their whole duration and stage writes until commit.
type memoryLedger struct {
	mu       sync.Mutex
	debts    map[debtKey]models.Debt
	contacts []models.Contact

	failInsert error
	failUpdate error
	txCount    int

	// beforeTx runs ahead of every transaction, outside the lock, to
	// simulate a write landing between a check and its transaction.
	beforeTx func(m *memoryLedger)
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{debts: make(map[debtKey]models.Debt)}
}

// connect links two accounts through one contact on each side.
func (m *memoryLedger) connect(accountA, contactA, accountB, contactB string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append(m.contacts,
		models.Contact{ID: contactA, OwnerAccountID: accountA, ConnectedAccountID: &accountB},
		models.Contact{ID: contactB, OwnerAccountID: accountB, ConnectedAccountID: &accountA},
	)
}

func (m *memoryLedger) put(debt models.Debt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debts[debtKey{debt.ID, debt.OwnerAccountID}] = debt
}

func (m *memoryLedger) get(id, owner string) (models.Debt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	debt, ok := m.debts[debtKey{id, owner}]
	return debt, ok
}

func (m *memoryLedger) snapshot() map[debtKey]models.Debt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[debtKey]models.Debt, len(m.debts))
	for k, v := range m.debts {
		out[k] = v
	}
	return out
}

func (m *memoryLedger) clone() *memoryLedger {
	c := newMemoryLedger()
	c.debts = m.snapshot()
	c.contacts = append(c.contacts, m.contacts...)
	return c
}

func (m *memoryLedger) FindRow(ctx context.Context, debtID, ownerAccountID string) (*models.Debt, error) {
	debt, ok := m.get(debtID, ownerAccountID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &debt, nil
}

func (m *memoryLedger) FindCounterpartRow(ctx context.Context, debtID, callerAccountID string) (*models.Debt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Debt
	for key, debt := range m.debts {
		if key.id != debtID || key.owner == callerAccountID || !m.pointsAt(debt, callerAccountID) {
			continue
		}
		if found == nil || debt.OwnerAccountID < found.OwnerAccountID {
			d := debt
			found = &d
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

// pointsAt reports whether debt's contact is connected to accountID.
func (m *memoryLedger) pointsAt(debt models.Debt, accountID string) bool {
	for _, c := range m.contacts {
		if c.ID == debt.ContactID && c.OwnerAccountID == debt.OwnerAccountID {
			return c.ConnectedAccountID != nil && *c.ConnectedAccountID == accountID
		}
	}
	return false
}

func (m *memoryLedger) countRows(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.debts {
		if key.id == id {
			n++
		}
	}
	return n
}

func (m *memoryLedger) FindEligibleAcrossConnections(ctx context.Context, callerAccountID string, acceptUnlocked bool) ([]models.EligibleDebt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.EligibleDebt
	for _, mine := range m.contacts {
		if mine.OwnerAccountID != callerAccountID || mine.ConnectedAccountID == nil {
			continue
		}
		for _, theirs := range m.contacts {
			if theirs.OwnerAccountID != *mine.ConnectedAccountID || theirs.ConnectedAccountID == nil || *theirs.ConnectedAccountID != callerAccountID {
				continue
			}
			for key, their := range m.debts {
				if key.owner != theirs.OwnerAccountID || their.ContactID != theirs.ID || their.LockedAt == nil {
					continue
				}
				own, exists := m.debts[debtKey{key.id, callerAccountID}]
				eligible := !exists ||
					(own.LockedAt != nil && own.LockedAt.Before(*their.LockedAt)) ||
					(own.LockedAt == nil && acceptUnlocked)
				if !eligible {
					continue
				}
				e := models.EligibleDebt{Source: their, ContactID: mine.ID}
				if exists {
					createdAt := own.CreatedAt
					e.OwnCreatedAt = &createdAt
					e.OwnLockedAt = own.LockedAt
				}
				result = append(result, e)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Source.ID < result[j].Source.ID })
	return result, nil
}

func (m *memoryLedger) WithTx(ctx context.Context, fn func(ctx context.Context, w store.LedgerWriter) error) error {
	if m.beforeTx != nil {
		m.beforeTx(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	staged := &memoryTx{ledger: m, writes: make(map[debtKey]models.Debt)}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	for key, debt := range staged.writes {
		m.debts[key] = debt
	}
	return nil
}

func (m *memoryLedger) LockRow(ctx context.Context, debtID, ownerAccountID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := debtKey{debtID, ownerAccountID}
	debt, ok := m.debts[key]
	if !ok {
		return store.ErrNotFound
	}
	debt.LockedAt = &at
	m.debts[key] = debt
	return nil
}

func (m *memoryLedger) SumByCurrency(ctx context.Context, ownerAccountID string) ([]models.CurrencySum, error) {
	return m.sum(ownerAccountID, nil), nil
}

func (m *memoryLedger) SumByContact(ctx context.Context, ownerAccountID, contactID string) ([]models.CurrencySum, error) {
	return m.sum(ownerAccountID, &contactID), nil
}

func (m *memoryLedger) SumByContacts(ctx context.Context, ownerAccountID string) ([]models.ContactCurrencySum, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := map[[2]string]decimal.Decimal{}
	for key, debt := range m.debts {
		if key.owner == ownerAccountID {
			k := [2]string{debt.ContactID, debt.CurrencyCode}
			totals[k] = totals[k].Add(debt.Amount)
		}
	}
	var sums []models.ContactCurrencySum
	for k, total := range totals {
		sums = append(sums, models.ContactCurrencySum{ContactID: k[0], CurrencyCode: k[1], Sum: total})
	}
	sort.Slice(sums, func(i, j int) bool {
		if sums[i].ContactID != sums[j].ContactID {
			return sums[i].ContactID < sums[j].ContactID
		}
		return sums[i].CurrencyCode < sums[j].CurrencyCode
	})
	return sums, nil
}

func (m *memoryLedger) sum(ownerAccountID string, contactID *string) []models.CurrencySum {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := map[string]decimal.Decimal{}
	for key, debt := range m.debts {
		if key.owner != ownerAccountID || (contactID != nil && debt.ContactID != *contactID) {
			continue
		}
		totals[debt.CurrencyCode] = totals[debt.CurrencyCode].Add(debt.Amount)
	}
	var sums []models.CurrencySum
	for currency, total := range totals {
		sums = append(sums, models.CurrencySum{CurrencyCode: currency, Sum: total})
	}
	sort.Slice(sums, func(i, j int) bool { return sums[i].CurrencyCode < sums[j].CurrencyCode })
	return sums
}

func (m *memoryLedger) ReverseContact(ctx context.Context, forAccountID, otherAccountID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contacts {
		if c.OwnerAccountID == forAccountID && c.ConnectedAccountID != nil && *c.ConnectedAccountID == otherAccountID {
			return c.ID, nil
		}
	}
	return "", store.ErrNotFound
}

type memoryTx struct {
	ledger *memoryLedger
	writes map[debtKey]models.Debt
}

func (tx *memoryTx) current(key debtKey) (models.Debt, bool) {
	if debt, ok := tx.writes[key]; ok {
		return debt, true
	}
	debt, ok := tx.ledger.debts[key]
	return debt, ok
}

func (tx *memoryTx) InsertRow(ctx context.Context, debt *models.Debt) error {
	if tx.ledger.failInsert != nil {
		return tx.ledger.failInsert
	}
	key := debtKey{debt.ID, debt.OwnerAccountID}
	if _, exists := tx.current(key); exists {
		return store.ErrConflict
	}
	tx.writes[key] = *debt
	return nil
}

func (tx *memoryTx) UpdateRow(ctx context.Context, debt *models.Debt, allowUnlocked bool) error {
	if tx.ledger.failUpdate != nil {
		return tx.ledger.failUpdate
	}
	key := debtKey{debt.ID, debt.OwnerAccountID}
	existing, ok := tx.current(key)
	landed := ok && ((existing.LockedAt == nil && allowUnlocked) ||
		(existing.LockedAt != nil && existing.LockedAt.Before(*debt.LockedAt)))
	if !landed {
		return store.ErrConflict
	}
	existing.Amount = debt.Amount
	existing.CurrencyCode = debt.CurrencyCode
	existing.EconomicDate = debt.EconomicDate
	existing.Note = debt.Note
	existing.ReceiptID = debt.ReceiptID
	existing.LockedAt = debt.LockedAt
	tx.writes[key] = existing
	return nil
}
