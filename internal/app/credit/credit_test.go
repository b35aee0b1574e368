package credit

import (
	"context"
	"errors"
	"testing"

	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Service Tests ──────────────────────────────────────────────────────────

func TestService_InitialBalance(t *testing.T) {
	svc := NewService(newTestDB(t))

	bal, err := svc.Balance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if bal != 0 {
		t.Errorf("initial balance = %d, want 0", bal)
	}
}

func TestService_GrantMultiple(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()

	svc.Grant(ctx, "u1", 10, domain.TxGrant, "", "first")
	svc.Grant(ctx, "u1", 20, domain.TxReward, "i1", "second")
	svc.Grant(ctx, "u2", 5, domain.TxGrant, "", "other user")

	bal, _ := svc.Balance(ctx, "u1")
	if bal != 30 {
		t.Errorf("balance = %d, want 30", bal)
	}
	bal, _ = svc.Balance(ctx, "u2")
	if bal != 5 {
		t.Errorf("u2 balance = %d, want 5", bal)
	}
}

func TestService_Debit(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()
	svc.Grant(ctx, "u1", 100, domain.TxGrant, "", "seed")

	if err := svc.Debit(ctx, "u1", 40, domain.TxBoost, "sg1", "boost"); err != nil {
		t.Fatalf("Debit() error: %v", err)
	}
	bal, _ := svc.Balance(ctx, "u1")
	if bal != 60 {
		t.Errorf("balance = %d, want 60", bal)
	}
}

func TestService_DebitInsufficient(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()
	svc.Grant(ctx, "u1", 10, domain.TxGrant, "", "seed")

	err := svc.Debit(ctx, "u1", 50, domain.TxBoost, "sg1", "too much")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("Debit() = %v, want ErrInsufficientFunds", err)
	}
	bal, _ := svc.Balance(ctx, "u1")
	if bal != 10 {
		t.Errorf("balance = %d, want unchanged 10", bal)
	}
}

func TestService_RejectsNonPositive(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()
	if err := svc.Grant(ctx, "u1", 0, domain.TxGrant, "", ""); err == nil {
		t.Error("Grant(0) should fail")
	}
	if err := svc.Debit(ctx, "u1", -5, domain.TxBoost, "", ""); err == nil {
		t.Error("Debit(-5) should fail")
	}
}

func TestService_DoubleEntryInvariant(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	svc.Grant(ctx, "u1", 100, domain.TxGrant, "", "a")
	svc.Debit(ctx, "u1", 30, domain.TxBoost, "", "b")
	svc.Grant(ctx, "u2", 50, domain.TxReward, "", "c")

	debits, credits, err := db.LedgerTotals(ctx)
	if err != nil {
		t.Fatalf("LedgerTotals() error: %v", err)
	}
	if debits != credits {
		t.Errorf("INVARIANT VIOLATED: debits (%d) != credits (%d)", debits, credits)
	}
}

func TestService_History(t *testing.T) {
	svc := NewService(newTestDB(t))
	ctx := context.Background()
	svc.Grant(ctx, "u1", 10, domain.TxGrant, "", "a")
	svc.Grant(ctx, "u1", 20, domain.TxGrant, "", "b")

	entries, err := svc.History(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Balance != 30 || entries[0].EntryType != domain.EntryCredit {
		t.Errorf("latest entry = %+v", entries[0])
	}
}

// ─── Reward Formula ─────────────────────────────────────────────────────────

func TestRewardAmount(t *testing.T) {
	tests := []struct {
		points int64
		diff   domain.Difficulty
		want   int64
	}{
		{25, domain.DifficultyEasy, 25},
		{25, domain.DifficultyExpert, 25},
		{0, domain.DifficultyEasy, 5},
		{0, domain.DifficultyMedium, 10},
		{0, domain.DifficultyHard, 20},
		{0, domain.DifficultyExpert, 40},
		{0, "UNKNOWN", 0},
	}
	for _, tt := range tests {
		if got := RewardAmount(tt.points, tt.diff); got != tt.want {
			t.Errorf("RewardAmount(%d, %s) = %d, want %d", tt.points, tt.diff, got, tt.want)
		}
	}
}
