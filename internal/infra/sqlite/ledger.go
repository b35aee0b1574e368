package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// ─── Currency Ledger ────────────────────────────────────────────────────────

// Transfer describes one double-entry movement between two accounts.
type Transfer struct {
	From        string
	To          string
	Amount      int64
	Type        domain.TxType
	Reference   string
	Description string
	// RequireFunds rejects the transfer with ErrInsufficientFunds when the
	// From account would go negative. The system pool is allowed to.
	RequireFunds bool
	At           time.Time
}

// ApplyTransfer writes the DEBIT and CREDIT pair for t in one transaction.
func (d *DB) ApplyTransfer(ctx context.Context, t Transfer) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		return applyTransfer(ctx, tx, t)
	})
}

func applyTransfer(ctx context.Context, q querier, t Transfer) error {
	if t.Amount <= 0 {
		return fmt.Errorf("transfer amount must be positive, got %d", t.Amount)
	}

	fromBal, err := creditBalance(ctx, q, t.From)
	if err != nil {
		return err
	}
	if t.RequireFunds && fromBal < t.Amount {
		return fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientFunds, fromBal, t.Amount)
	}
	toBal, err := creditBalance(ctx, q, t.To)
	if err != nil {
		return err
	}

	if _, err := insertLedgerEntry(ctx, q, domain.LedgerEntry{
		Timestamp: t.At, Type: t.Type, EntryType: domain.EntryDebit,
		Account: t.From, Amount: t.Amount, Reference: t.Reference,
		Description: t.Description, Balance: fromBal - t.Amount,
	}); err != nil {
		return fmt.Errorf("debit %s: %w", t.From, err)
	}
	if _, err := insertLedgerEntry(ctx, q, domain.LedgerEntry{
		Timestamp: t.At, Type: t.Type, EntryType: domain.EntryCredit,
		Account: t.To, Amount: t.Amount, Reference: t.Reference,
		Description: t.Description, Balance: toBal + t.Amount,
	}); err != nil {
		return fmt.Errorf("credit %s: %w", t.To, err)
	}
	return nil
}

func insertLedgerEntry(ctx context.Context, q querier, entry domain.LedgerEntry) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO credit_ledger (timestamp, type, entry_type, account, amount, reference, description, balance)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		millis(entry.Timestamp), string(entry.Type), string(entry.EntryType),
		entry.Account, entry.Amount, nullableString(entry.Reference),
		nullableString(entry.Description), entry.Balance,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// CreditBalance returns the current balance for an account.
func (d *DB) CreditBalance(ctx context.Context, account string) (int64, error) {
	return creditBalance(ctx, d.db, account)
}

func creditBalance(ctx context.Context, q querier, account string) (int64, error) {
	var balance sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM credit_ledger WHERE account = ? ORDER BY id DESC LIMIT 1`,
		account,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance.Int64, nil
}

// LedgerEntries returns recent ledger entries for an account.
func (d *DB) LedgerEntries(ctx context.Context, account string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, timestamp, type, entry_type, account, amount, reference, description, balance
		 FROM credit_ledger WHERE account = ? ORDER BY id DESC LIMIT ?`,
		account, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts int64
		var txType, entryType string
		var ref, desc sql.NullString
		err := rows.Scan(&e.ID, &ts, &txType, &entryType, &e.Account,
			&e.Amount, &ref, &desc, &e.Balance)
		if err != nil {
			return nil, err
		}
		e.Timestamp = fromMillis(ts)
		e.Type = domain.TxType(txType)
		e.EntryType = domain.EntryType(entryType)
		e.Reference = ref.String
		e.Description = desc.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LedgerTotals sums every DEBIT and CREDIT. The two are equal in a
// consistent ledger.
func (d *DB) LedgerTotals(ctx context.Context) (debits, credits int64, err error) {
	err = d.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN entry_type = 'DEBIT' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN entry_type = 'CREDIT' THEN amount END), 0)
		 FROM credit_ledger`,
	).Scan(&debits, &credits)
	return debits, credits, err
}
