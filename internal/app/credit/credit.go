// Package credit implements the per-user double-entry currency ledger.
// Every movement creates matched DEBIT/CREDIT entries against the system
// pool, so SUM(debits) == SUM(credits) holds.
package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/infra/sqlite"
)

// Service manages user currency. It satisfies domain.CurrencyLedger.
type Service struct {
	db  *sqlite.DB
	now func() time.Time
}

var _ domain.CurrencyLedger = (*Service)(nil)

// NewService creates a credit service.
func NewService(db *sqlite.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Balance returns a user's current balance.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	return s.db.CreditBalance(ctx, domain.UserAccount(userID))
}

// Grant moves amount from the system pool to the user.
func (s *Service) Grant(ctx context.Context, userID string, amount int64, txType domain.TxType, reference, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	return s.db.ApplyTransfer(ctx, sqlite.Transfer{
		From:        domain.SystemAccount,
		To:          domain.UserAccount(userID),
		Amount:      amount,
		Type:        txType,
		Reference:   reference,
		Description: reason,
		At:          s.now(),
	})
}

// Debit moves amount from the user to the system pool. Fails with
// ErrInsufficientFunds, writing nothing, when the balance is short.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, txType domain.TxType, reference, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	return s.db.ApplyTransfer(ctx, sqlite.Transfer{
		From:         domain.UserAccount(userID),
		To:           domain.SystemAccount,
		Amount:       amount,
		Type:         txType,
		Reference:    reference,
		Description:  reason,
		RequireFunds: true,
		At:           s.now(),
	})
}

// History returns a user's recent ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	return s.db.LedgerEntries(ctx, domain.UserAccount(userID), limit)
}

// ─── Reward Formula ─────────────────────────────────────────────────────────

// defaultReward pays for templates created without an explicit point reward.
var defaultReward = map[domain.Difficulty]int64{
	domain.DifficultyEasy:   5,
	domain.DifficultyMedium: 10,
	domain.DifficultyHard:   20,
	domain.DifficultyExpert: 40,
}

// RewardAmount computes the currency paid for completing a quest: the
// template's point reward, or the difficulty default when it has none.
func RewardAmount(pointReward int64, difficulty domain.Difficulty) int64 {
	if pointReward > 0 {
		return pointReward
	}
	return defaultReward[difficulty]
}
