package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

func grant(t *testing.T, db *DB, user string, amount int64) {
	t.Helper()
	err := db.ApplyTransfer(context.Background(), Transfer{
		From: domain.SystemAccount, To: domain.UserAccount(user),
		Amount: amount, Type: domain.TxGrant, At: t0,
	})
	if err != nil {
		t.Fatalf("ApplyTransfer() error: %v", err)
	}
}

func balance(t *testing.T, db *DB, user string) int64 {
	t.Helper()
	b, err := db.CreditBalance(context.Background(), domain.UserAccount(user))
	if err != nil {
		t.Fatalf("CreditBalance() error: %v", err)
	}
	return b
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func TestLedger_DoubleEntry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	grant(t, db, "u1", 100)

	err := db.ApplyTransfer(ctx, Transfer{
		From: domain.UserAccount("u1"), To: domain.SystemAccount,
		Amount: 30, Type: domain.TxBoost, RequireFunds: true, At: t0,
	})
	if err != nil {
		t.Fatalf("ApplyTransfer() error: %v", err)
	}
	if got := balance(t, db, "u1"); got != 70 {
		t.Errorf("balance = %d, want 70", got)
	}

	debits, credits, err := db.LedgerTotals(ctx)
	if err != nil {
		t.Fatalf("LedgerTotals() error: %v", err)
	}
	if debits != credits {
		t.Errorf("debits %d != credits %d", debits, credits)
	}

	entries, _ := db.LedgerEntries(ctx, domain.UserAccount("u1"), 10)
	if len(entries) != 2 || entries[0].EntryType != domain.EntryDebit || entries[0].Balance != 70 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestLedger_InsufficientFunds(t *testing.T) {
	db := newTestDB(t)
	grant(t, db, "u1", 10)

	err := db.ApplyTransfer(context.Background(), Transfer{
		From: domain.UserAccount("u1"), To: domain.SystemAccount,
		Amount: 11, Type: domain.TxBoost, RequireFunds: true, At: t0,
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got := balance(t, db, "u1"); got != 10 {
		t.Errorf("balance = %d, want unchanged 10", got)
	}
}

// ─── Notifications ──────────────────────────────────────────────────────────

func TestInsertNotification_DedupKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	n := domain.Notification{
		ID: "n1", UserID: "u1", Type: domain.NotifyWarning5Min, Title: "5 minutes left",
		Message: "Hurry", Data: map[string]any{"user_quest_id": "i1"},
		DedupKey: "warn:u1:i1", CreatedAt: t0,
	}
	ok, err := db.InsertNotification(ctx, n)
	if err != nil || !ok {
		t.Fatalf("first InsertNotification() = %v, %v", ok, err)
	}
	n.ID = "n2"
	ok, err = db.InsertNotification(ctx, n)
	if err != nil {
		t.Fatalf("second InsertNotification() error: %v", err)
	}
	if ok {
		t.Error("duplicate dedup key should be skipped")
	}

	// Notifications without a key never collide.
	for _, id := range []string{"n3", "n4"} {
		ok, _ := db.InsertNotification(ctx, domain.Notification{ID: id, UserID: "u1", Type: domain.NotifyMotivation, Title: "t", Message: "m", CreatedAt: t0})
		if !ok {
			t.Errorf("%s should be recorded", id)
		}
	}

	list, err := db.ListNotifications(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListNotifications() error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	var found bool
	for _, got := range list {
		if got.ID == "n1" {
			found = got.Data["user_quest_id"] == "i1"
		}
	}
	if !found {
		t.Error("n1 data should round-trip")
	}
}

func TestPreferencesAndDevices(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.SetPreference(ctx, "u1", domain.NotifyReminder, false)
	db.SetPreference(ctx, "u1", domain.NotifyMotivation, true)
	prefs, err := db.Preferences(ctx, "u1")
	if err != nil {
		t.Fatalf("Preferences() error: %v", err)
	}
	if enabled, ok := prefs[domain.NotifyReminder]; !ok || enabled {
		t.Errorf("reminder pref = %v, %v; want disabled", enabled, ok)
	}

	db.RegisterDevice(ctx, domain.DeviceToken{UserID: "u1", Token: "ExponentPushToken[a]", Platform: "ios", CreatedAt: t0})
	db.RegisterDevice(ctx, domain.DeviceToken{UserID: "u2", Token: "ExponentPushToken[a]", Platform: "ios", CreatedAt: t0})
	if devs, _ := db.ListDevices(ctx, "u1"); len(devs) != 0 {
		t.Errorf("u1 devices = %d, want 0 after token moved", len(devs))
	}
	if devs, _ := db.ListDevices(ctx, "u2"); len(devs) != 1 {
		t.Errorf("u2 devices = %d, want 1", len(devs))
	}
}

// ─── Suggestions ────────────────────────────────────────────────────────────

func seedSession(t *testing.T, db *DB, id, owner string) {
	t.Helper()
	err := db.UpsertLiveSession(context.Background(), domain.LiveSession{
		ID: id, UserID: owner, IsActive: true, StartedAt: t0,
	})
	if err != nil {
		t.Fatalf("UpsertLiveSession() error: %v", err)
	}
}

func suggestion(id string, boost int64, at time.Time) domain.QuestSuggestion {
	return domain.QuestSuggestion{
		ID: id, LiveSessionID: "s1", SuggesterID: "viewer", QuestID: "q1",
		BoostAmount: boost, Status: domain.SuggestionPending, CreatedAt: at,
	}
}

func TestInsertSuggestion_DebitsBoost(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTemplate(t, db, "q1", domain.GoalCollectNos, 1)
	seedSession(t, db, "s1", "streamer")
	grant(t, db, "viewer", 50)

	if err := db.InsertSuggestion(ctx, suggestion("sg1", 20, t0)); err != nil {
		t.Fatalf("InsertSuggestion() error: %v", err)
	}
	if got := balance(t, db, "viewer"); got != 30 {
		t.Errorf("balance = %d, want 30", got)
	}

	err := db.InsertSuggestion(ctx, suggestion("sg2", 31, t0))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got, _ := db.GetSuggestion(ctx, "sg2"); got != nil {
		t.Error("unpaid suggestion must not be stored")
	}
}

func TestListPendingSuggestions_Order(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedSession(t, db, "s1", "streamer")
	grant(t, db, "viewer", 100)

	db.InsertSuggestion(ctx, suggestion("a", 0, t0))
	db.InsertSuggestion(ctx, suggestion("b", 10, t0.Add(2*time.Second)))
	db.InsertSuggestion(ctx, suggestion("c", 10, t0.Add(time.Second)))
	db.InsertSuggestion(ctx, suggestion("d", 0, t0))

	list, err := db.ListPendingSuggestions(ctx, "s1")
	if err != nil {
		t.Fatalf("ListPendingSuggestions() error: %v", err)
	}
	want := []string{"c", "b", "a", "d"}
	if len(list) != len(want) {
		t.Fatalf("len = %d, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, id)
		}
	}
}

func TestAcceptSuggestion_Atomic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTemplate(t, db, "q1", domain.GoalCollectNos, 1)
	seedSession(t, db, "s1", "streamer")
	db.InsertSuggestion(ctx, suggestion("sg1", 0, t0))

	inst := activeInstance("i1", "streamer", "q1")
	if err := db.AcceptSuggestion(ctx, "sg1", inst, 2, t0); err != nil {
		t.Fatalf("AcceptSuggestion() error: %v", err)
	}
	got, _ := db.GetSuggestion(ctx, "sg1")
	if got.Status != domain.SuggestionAccepted || got.UserQuestID != "i1" {
		t.Errorf("suggestion = %+v", got)
	}
	sess, _ := db.GetLiveSession(ctx, "s1")
	if sess.UserQuestID != "i1" {
		t.Errorf("session quest = %q, want i1", sess.UserQuestID)
	}

	inst.ID = "i2"
	if err := db.AcceptSuggestion(ctx, "sg1", inst, 2, t0); !errors.Is(err, domain.ErrSuggestionNotPending) {
		t.Fatalf("second accept = %v, want ErrSuggestionNotPending", err)
	}
	if got, _ := db.GetInstance(ctx, "i2"); got != nil {
		t.Error("second accept must not create an instance")
	}
}

func TestAcceptSuggestion_CapRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"q1", "q2", "q3"} {
		seedTemplate(t, db, id, domain.GoalCollectNos, 1)
	}
	seedSession(t, db, "s1", "streamer")
	db.InsertInstance(ctx, activeInstance("i1", "streamer", "q2"), 2)
	db.InsertInstance(ctx, activeInstance("i2", "streamer", "q3"), 2)
	db.InsertSuggestion(ctx, suggestion("sg1", 0, t0))

	err := db.AcceptSuggestion(ctx, "sg1", activeInstance("i3", "streamer", "q1"), 2, t0)
	if !errors.Is(err, domain.ErrActiveQuestCap) {
		t.Fatalf("err = %v, want ErrActiveQuestCap", err)
	}
	got, _ := db.GetSuggestion(ctx, "sg1")
	if got.Status != domain.SuggestionPending {
		t.Errorf("status = %s, want pending after rollback", got.Status)
	}
}

func TestDeclineSuggestion_Refund(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedSession(t, db, "s1", "streamer")
	grant(t, db, "viewer", 50)
	db.InsertSuggestion(ctx, suggestion("sg1", 20, t0))
	db.InsertSuggestion(ctx, suggestion("sg2", 20, t0))

	if err := db.DeclineSuggestion(ctx, "sg1", false, t0); err != nil {
		t.Fatalf("DeclineSuggestion() error: %v", err)
	}
	if got := balance(t, db, "viewer"); got != 10 {
		t.Errorf("balance without refund = %d, want 10", got)
	}
	if err := db.DeclineSuggestion(ctx, "sg2", true, t0); err != nil {
		t.Fatalf("DeclineSuggestion(refund) error: %v", err)
	}
	if got := balance(t, db, "viewer"); got != 30 {
		t.Errorf("balance with refund = %d, want 30", got)
	}
	if err := db.DeclineSuggestion(ctx, "sg2", true, t0); !errors.Is(err, domain.ErrSuggestionNotPending) {
		t.Errorf("re-decline = %v, want ErrSuggestionNotPending", err)
	}
}

// ─── Badge Facts ────────────────────────────────────────────────────────────

func TestBadgeFacts_Grouped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTemplate(t, db, "q1", domain.GoalCollectNos, 1)
	db.InsertInstance(ctx, activeInstance("i1", "u1", "q1"), 2)
	db.InsertInstance(ctx, activeInstance("i2", "u2", "q1"), 2)
	db.RecordAction(ctx, "i1", domain.ActionNo, t0)
	db.RecordAction(ctx, "i2", domain.ActionNo, t0.Add(30*time.Minute))

	db.InsertVerification(ctx, "v1", "i1", "a", t0)
	db.InsertVerification(ctx, "v2", "i1", "b", t0)
	db.InsertVerification(ctx, "v3", "i1", "b", t0) // same verifier
	db.InsertPost(ctx, "p1", "u1", "i1", 2, t0)
	db.UpsertLiveSession(ctx, domain.LiveSession{ID: "s1", UserID: "u2", ViewerCount: 4, UserQuestID: "i2", StartedAt: t0, EndedAt: t0.Add(time.Hour)})
	db.InsertGroupQuest(ctx, "g1", "q1", t0)
	db.UpsertGroupParticipant(ctx, "g1", "u1", "i1", "completed")
	db.UpsertGroupParticipant(ctx, "g1", "u3", "", "joined")
	db.UpsertGroupParticipant(ctx, "g1", "u4", "", "joined")

	facts, err := db.BadgeFacts(ctx, []string{"i1", "i2", "missing"}, time.Hour)
	if err != nil {
		t.Fatalf("BadgeFacts() error: %v", err)
	}
	f1 := facts["i1"]
	if f1.Verifications != 2 || !f1.PostWithImage || !f1.GroupCompleted || f1.GroupParticipants != 3 || !f1.CoCompleted {
		t.Errorf("i1 facts = %+v", f1)
	}
	f2 := facts["i2"]
	if !f2.LiveEnded || !f2.LiveHadViewers || !f2.CoCompleted || f2.Verifications != 0 {
		t.Errorf("i2 facts = %+v", f2)
	}
	if facts["missing"] != (domain.BadgeFacts{}) {
		t.Errorf("missing facts = %+v, want zero", facts["missing"])
	}
}

func TestBadgeFacts_UnprovisionedTables(t *testing.T) {
	db, err := OpenWithOptions(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("OpenWithOptions() error: %v", err)
	}
	defer db.Close()

	facts, err := db.BadgeFacts(context.Background(), []string{"i1"}, time.Hour)
	if err != nil {
		t.Fatalf("BadgeFacts() error: %v", err)
	}
	if facts["i1"] != (domain.BadgeFacts{}) {
		t.Errorf("facts = %+v, want zero", facts["i1"])
	}
	if err := db.InsertPost(context.Background(), "p1", "u1", "i1", 1, t0); !errors.Is(err, domain.ErrFeatureUnavailable) {
		t.Errorf("InsertPost() = %v, want ErrFeatureUnavailable", err)
	}
}
