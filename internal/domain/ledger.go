package domain

import "time"

// ─── Currency Ledger ────────────────────────────────────────────────────────
// Double-entry: every movement writes a DEBIT on one account and a matching
// CREDIT on another, so SUM(debits) == SUM(credits).

// TxType categorizes why currency moved.
type TxType string

const (
	TxGrant  TxType = "GRANT"  // operator or reward grant
	TxReward TxType = "REWARD" // quest completion reward
	TxBoost  TxType = "BOOST"  // suggestion boost stake
	TxRefund TxType = "REFUND" // boost returned on decline
)

// EntryType is the side of a double-entry pair.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// SystemAccount is the pool that funds grants and receives boosts.
const SystemAccount = "system_pool"

// UserAccount returns the ledger account name for a user.
func UserAccount(userID string) string {
	return "user:" + userID
}

// LedgerEntry is one side of a currency movement. Balance is the account
// balance after this entry.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        TxType    `json:"type"`
	EntryType   EntryType `json:"entry_type"`
	Account     string    `json:"account"`
	Amount      int64     `json:"amount"`
	Reference   string    `json:"reference,omitempty"` // instance or suggestion id
	Description string    `json:"description,omitempty"`
	Balance     int64     `json:"balance"`
}
