package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tabsplit/backend/internal/models"
)

const debtColumns = `id, owner_account_id, contact_id, amount, currency_code, economic_date, note, receipt_id, created_at, locked_at`

// PostgresStore implements LedgerStore and ContactDirectory on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDebt(row rowScanner) (*models.Debt, error) {
	var debt models.Debt
	err := row.Scan(
		&debt.ID, &debt.OwnerAccountID, &debt.ContactID, &debt.Amount, &debt.CurrencyCode,
		&debt.EconomicDate, &debt.Note, &debt.ReceiptID, &debt.CreatedAt, &debt.LockedAt,
	)
	if err != nil {
		return nil, err
	}
	return &debt, nil
}

func (s *PostgresStore) FindRow(ctx context.Context, debtID, ownerAccountID string) (*models.Debt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+debtColumns+`
		FROM debts
		WHERE id = $1 AND owner_account_id = $2`, debtID, ownerAccountID)

	debt, err := scanDebt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find debt %s: %w", debtID, err)
	}
	return debt, nil
}

// FindCounterpartRow returns the other side of the caller's pair for debtID:
// a row owned by someone else whose contact is connected back to the caller.
// Rows the owner shares with third accounts are never returned.
func (s *PostgresStore) FindCounterpartRow(ctx context.Context, debtID, callerAccountID string) (*models.Debt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT their.id, their.owner_account_id, their.contact_id, their.amount, their.currency_code,
			their.economic_date, their.note, their.receipt_id, their.created_at, their.locked_at
		FROM debts their
		JOIN contacts theirs
			ON theirs.id = their.contact_id
			AND theirs.owner_account_id = their.owner_account_id
		WHERE their.id = $1
			AND their.owner_account_id <> $2
			AND theirs.connected_account_id = $2
		ORDER BY their.owner_account_id
		LIMIT 1`, debtID, callerAccountID)

	debt, err := scanDebt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find counterpart of debt %s: %w", debtID, err)
	}
	return debt, nil
}

// FindEligibleAcrossConnections walks the caller's connected contacts to the
// counterparty's locked rows about the caller, then left-joins the caller's
// own mirror of each row.
func (s *PostgresStore) FindEligibleAcrossConnections(ctx context.Context, callerAccountID string, acceptUnlocked bool) ([]models.EligibleDebt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT their.id, their.owner_account_id, their.contact_id, their.amount, their.currency_code,
			their.economic_date, their.note, their.receipt_id, their.created_at, their.locked_at,
			mine.id, own.created_at, own.locked_at
		FROM contacts mine
		JOIN contacts theirs
			ON theirs.owner_account_id = mine.connected_account_id
			AND theirs.connected_account_id = mine.owner_account_id
		JOIN debts their
			ON their.owner_account_id = theirs.owner_account_id
			AND their.contact_id = theirs.id
			AND their.locked_at IS NOT NULL
		LEFT JOIN debts own
			ON own.id = their.id
			AND own.owner_account_id = mine.owner_account_id
		WHERE mine.owner_account_id = $1
			AND (own.id IS NULL
				OR own.locked_at < their.locked_at
				OR (own.locked_at IS NULL AND $2::boolean))
		ORDER BY their.locked_at, their.id`, callerAccountID, acceptUnlocked)
	if err != nil {
		return nil, fmt.Errorf("find eligible debts: %w", err)
	}
	defer rows.Close()

	var result []models.EligibleDebt
	for rows.Next() {
		var e models.EligibleDebt
		src := &e.Source
		if err := rows.Scan(
			&src.ID, &src.OwnerAccountID, &src.ContactID, &src.Amount, &src.CurrencyCode,
			&src.EconomicDate, &src.Note, &src.ReceiptID, &src.CreatedAt, &src.LockedAt,
			&e.ContactID, &e.OwnCreatedAt, &e.OwnLockedAt,
		); err != nil {
			return nil, fmt.Errorf("scan eligible debt: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find eligible debts: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, w LedgerWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &txWriter{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) LockRow(ctx context.Context, debtID, ownerAccountID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE debts
		SET locked_at = $1
		WHERE id = $2 AND owner_account_id = $3`,
		at, debtID, ownerAccountID)
	if err != nil {
		return fmt.Errorf("lock debt %s: %w", debtID, err)
	}
	return expectOneRow(result, ErrNotFound)
}

func (s *PostgresStore) SumByCurrency(ctx context.Context, ownerAccountID string) ([]models.CurrencySum, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT currency_code, SUM(amount)
		FROM debts
		WHERE owner_account_id = $1
		GROUP BY currency_code
		ORDER BY currency_code`, ownerAccountID)
	if err != nil {
		return nil, fmt.Errorf("sum debts: %w", err)
	}
	return scanCurrencySums(rows)
}

func (s *PostgresStore) SumByContact(ctx context.Context, ownerAccountID, contactID string) ([]models.CurrencySum, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT currency_code, SUM(amount)
		FROM debts
		WHERE owner_account_id = $1 AND contact_id = $2
		GROUP BY contact_id, currency_code
		ORDER BY currency_code`, ownerAccountID, contactID)
	if err != nil {
		return nil, fmt.Errorf("sum debts for contact %s: %w", contactID, err)
	}
	return scanCurrencySums(rows)
}

func (s *PostgresStore) SumByContacts(ctx context.Context, ownerAccountID string) ([]models.ContactCurrencySum, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contact_id, currency_code, SUM(amount)
		FROM debts
		WHERE owner_account_id = $1
		GROUP BY contact_id, currency_code
		ORDER BY contact_id, currency_code`, ownerAccountID)
	if err != nil {
		return nil, fmt.Errorf("sum debts by contact: %w", err)
	}
	defer rows.Close()

	var sums []models.ContactCurrencySum
	for rows.Next() {
		var sum models.ContactCurrencySum
		if err := rows.Scan(&sum.ContactID, &sum.CurrencyCode, &sum.Sum); err != nil {
			return nil, fmt.Errorf("scan contact sum: %w", err)
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

// ReverseContact implements ContactDirectory.
func (s *PostgresStore) ReverseContact(ctx context.Context, forAccountID, otherAccountID string) (string, error) {
	var contactID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id
		FROM contacts
		WHERE owner_account_id = $1 AND connected_account_id = $2
		LIMIT 1`, forAccountID, otherAccountID).Scan(&contactID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reverse contact: %w", err)
	}
	return contactID, nil
}

func scanCurrencySums(rows *sql.Rows) ([]models.CurrencySum, error) {
	defer rows.Close()

	var sums []models.CurrencySum
	for rows.Next() {
		var sum models.CurrencySum
		if err := rows.Scan(&sum.CurrencyCode, &sum.Sum); err != nil {
			return nil, fmt.Errorf("scan currency sum: %w", err)
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

type txWriter struct {
	tx *sql.Tx
}

func (w *txWriter) InsertRow(ctx context.Context, debt *models.Debt) error {
	result, err := w.tx.ExecContext(ctx, `
		INSERT INTO debts (`+debtColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id, owner_account_id) DO NOTHING`,
		debt.ID, debt.OwnerAccountID, debt.ContactID, debt.Amount, debt.CurrencyCode,
		debt.EconomicDate, debt.Note, debt.ReceiptID, debt.CreatedAt, debt.LockedAt)
	if err != nil {
		return fmt.Errorf("insert debt %s: %w", debt.ID, err)
	}
	return expectOneRow(result, ErrConflict)
}

// UpdateRow overwrites the synced fields of the owner's row. The write only
// lands while the stored lock is older than the incoming one, or absent when
// allowUnlocked is set.
func (w *txWriter) UpdateRow(ctx context.Context, debt *models.Debt, allowUnlocked bool) error {
	result, err := w.tx.ExecContext(ctx, `
		UPDATE debts
		SET amount = $1, currency_code = $2, economic_date = $3, note = $4, receipt_id = $5, locked_at = $6
		WHERE id = $7 AND owner_account_id = $8
			AND (locked_at < $6 OR (locked_at IS NULL AND $9::boolean))`,
		debt.Amount, debt.CurrencyCode, debt.EconomicDate, debt.Note, debt.ReceiptID, debt.LockedAt,
		debt.ID, debt.OwnerAccountID, allowUnlocked)
	if err != nil {
		return fmt.Errorf("update debt %s: %w", debt.ID, err)
	}
	return expectOneRow(result, ErrConflict)
}

func expectOneRow(result sql.Result, zeroErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	switch rowsAffected {
	case 1:
		return nil
	case 0:
		return zeroErr
	default:
		return fmt.Errorf("unexpected rows affected: %d", rowsAffected)
	}
}
