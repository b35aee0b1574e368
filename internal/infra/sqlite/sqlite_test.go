package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedTemplate(t *testing.T, db *DB, id string, goal domain.GoalType, count int) domain.QuestTemplate {
	t.Helper()
	tmpl := domain.QuestTemplate{
		ID: id, Title: "Ask for a discount", Category: "social",
		Difficulty: domain.DifficultyEasy, GoalType: goal, GoalCount: count,
		XPReward: 50, PointReward: 10, CreatedAt: t0,
	}
	if err := db.InsertTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("InsertTemplate() error: %v", err)
	}
	return tmpl
}

func activeInstance(id, user, quest string) domain.QuestInstance {
	return domain.QuestInstance{
		ID: id, UserID: user, QuestID: quest, Status: domain.QuestActive,
		StartedAt: t0, CreatedAt: t0,
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "state.db")); os.IsNotExist(err) {
		t.Error("state.db should exist")
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	db.Close()

	db2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	db2.Close()
}

func TestFeatures_Probed(t *testing.T) {
	db, err := OpenWithOptions(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("OpenWithOptions() error: %v", err)
	}
	defer db.Close()

	if f := db.Features(); f.Verifications || f.Posts || f.GroupQuests {
		t.Errorf("Features() = %+v, want none before provisioning", f)
	}
	if err := db.ProvisionSocial(); err != nil {
		t.Fatalf("ProvisionSocial() error: %v", err)
	}
	if f := db.Features(); !f.Verifications || !f.Posts || !f.GroupQuests {
		t.Errorf("Features() = %+v, want all after provisioning", f)
	}
}

// ─── Quest Instances ────────────────────────────────────────────────────────

func TestGetTemplate_NotFound(t *testing.T) {
	db := newTestDB(t)
	got, err := db.GetTemplate(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetTemplate() error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for missing template")
	}
}

func TestInsertInstance_CapEnforced(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"q1", "q2", "q3"} {
		seedTemplate(t, db, id, domain.GoalCollectNos, 3)
	}

	if err := db.InsertInstance(ctx, activeInstance("i1", "u1", "q1"), 2); err != nil {
		t.Fatalf("first InsertInstance() error: %v", err)
	}
	if err := db.InsertInstance(ctx, activeInstance("i2", "u1", "q2"), 2); err != nil {
		t.Fatalf("second InsertInstance() error: %v", err)
	}
	err := db.InsertInstance(ctx, activeInstance("i3", "u1", "q3"), 2)
	if !errors.Is(err, domain.ErrActiveQuestCap) {
		t.Fatalf("third InsertInstance() = %v, want ErrActiveQuestCap", err)
	}

	n, _ := db.CountActive(ctx, "u1")
	if n != 2 {
		t.Errorf("CountActive = %d, want 2", n)
	}
	if got, _ := db.GetInstance(ctx, "i3"); got != nil {
		t.Error("rejected instance must not be persisted")
	}
}

func TestInsertInstance_AlreadyHeld(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTemplate(t, db, "q1", domain.GoalCollectNos, 3)

	if err := db.InsertInstance(ctx, activeInstance("i1", "u1", "q1"), 2); err != nil {
		t.Fatalf("InsertInstance() error: %v", err)
	}
	err := db.InsertInstance(ctx, activeInstance("i2", "u1", "q1"), 2)
	if !errors.Is(err, domain.ErrQuestAlreadyHeld) {
		t.Fatalf("InsertInstance() = %v, want ErrQuestAlreadyHeld", err)
	}

	// Another user may hold the same template.
	if err := db.InsertInstance(ctx, activeInstance("i3", "u2", "q1"), 2); err != nil {
		t.Fatalf("InsertInstance() for second user error: %v", err)
	}
}

func TestInsertInstance_QueuedIgnoresCap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"q1", "q2", "q3"} {
		seedTemplate(t, db, id, domain.GoalCollectNos, 3)
	}
	db.InsertInstance(ctx, activeInstance("i1", "u1", "q1"), 2)
	db.InsertInstance(ctx, activeInstance("i2", "u1", "q2"), 2)

	queued := domain.QuestInstance{ID: "i3", UserID: "u1", QuestID: "q3", Status: domain.QuestQueued, CreatedAt: t0}
	if err := db.InsertInstance(ctx, queued, 2); err != nil {
		t.Fatalf("queued InsertInstance() error: %v", err)
	}
	got, _ := db.GetInstance(ctx, "i3")
	if got.Status != domain.QuestQueued || !got.StartedAt.IsZero() {
		t.Errorf("queued instance = %+v, want QUEUED without start time", got)
	}
}

func TestInsertInstance_ConcurrentRespectsCap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		seedTemplate(t, db, fmt.Sprintf("q%d", i), domain.GoalCollectNos, 3)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db.InsertInstance(ctx, activeInstance(fmt.Sprintf("i%d", i), "u1", fmt.Sprintf("q%d", i)), 2)
		}(i)
	}
	wg.Wait()

	n, err := db.CountActive(ctx, "u1")
	if err != nil {
		t.Fatalf("CountActive() error: %v", err)
	}
	if n != 2 {
		t.Errorf("CountActive = %d, want exactly 2", n)
	}
}

func TestRecordAction_CompletesOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTemplate(t, db, "q1", domain.GoalCollectNos, 3)
	db.InsertInstance(ctx, activeInstance("i1", "u1", "q1"), 2)

	done := t0.Add(5 * time.Minute)
	var res *domain.ProgressResult
	var err error
	for i := 0; i < 3; i++ {
		res, err = db.RecordAction(ctx, "i1", domain.ActionNo, done)
		if err != nil {
			t.Fatalf("RecordAction() error: %v", err)
		}
	}
	if !res.Completed {
		t.Fatal("third NO should complete the quest")
	}
	if res.Instance.Status != domain.QuestCompleted || !res.Instance.CompletedAt.Equal(done) {
		t.Errorf("instance = %+v, want COMPLETED at %v", res.Instance, done)
	}

	res, err = db.RecordAction(ctx, "i1", domain.ActionNo, done.Add(time.Minute))
	if err != nil {
		t.Fatalf("RecordAction() after completion error: %v", err)
	}
	if res.Completed || !res.AlreadyCompleted {
		t.Errorf("result = %+v, want AlreadyCompleted", res)
	}
	got, _ := db.GetInstance(ctx, "i1")
	if got.NoCount != 3 || !got.CompletedAt.Equal(done) {
		t.Errorf("instance changed after completion: %+v", got)
	}
}

func TestRecordAction_OffGoalCountsButDoesNotComplete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTemplate(t, db, "q1", domain.GoalCollectNos, 1)
	db.InsertInstance(ctx, activeInstance("i1", "u1", "q1"), 2)

	res, err := db.RecordAction(ctx, "i1", domain.ActionYes, t0)
	if err != nil {
		t.Fatalf("RecordAction() error: %v", err)
	}
	if res.Completed {
		t.Error("YES must not complete a COLLECT_NOS quest")
	}
	if res.Instance.YesCount != 1 || res.Instance.NoCount != 0 {
		t.Errorf("counts = yes %d no %d, want 1/0", res.Instance.YesCount, res.Instance.NoCount)
	}
}

func TestRecordAction_Errors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTemplate(t, db, "q1", domain.GoalCollectNos, 1)
	db.InsertInstance(ctx, domain.QuestInstance{ID: "i1", UserID: "u1", QuestID: "q1", Status: domain.QuestQueued, CreatedAt: t0}, 2)

	if _, err := db.RecordAction(ctx, "missing", domain.ActionNo, t0); !errors.Is(err, domain.ErrInstanceNotFound) {
		t.Errorf("missing instance: err = %v", err)
	}
	if _, err := db.RecordAction(ctx, "i1", domain.ActionNo, t0); !errors.Is(err, domain.ErrQuestNotActive) {
		t.Errorf("queued instance: err = %v", err)
	}
	if _, err := db.RecordAction(ctx, "i1", "MAYBE", t0); !errors.Is(err, domain.ErrInvalidAction) {
		t.Errorf("bad action: err = %v", err)
	}
}

func TestPromoteQueued(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"q1", "q2", "q3"} {
		seedTemplate(t, db, id, domain.GoalCollectNos, 1)
	}
	db.InsertInstance(ctx, activeInstance("i1", "u1", "q1"), 1)
	db.InsertInstance(ctx, domain.QuestInstance{ID: "i2", UserID: "u1", QuestID: "q2", Status: domain.QuestQueued, CreatedAt: t0}, 1)
	db.InsertInstance(ctx, domain.QuestInstance{ID: "i3", UserID: "u1", QuestID: "q3", Status: domain.QuestQueued, CreatedAt: t0.Add(time.Second)}, 1)

	// At the cap: nothing moves.
	got, err := db.PromoteQueued(ctx, "u1", 1, t0)
	if err != nil || got != nil {
		t.Fatalf("PromoteQueued() at cap = %v, %v; want nil, nil", got, err)
	}

	db.RecordAction(ctx, "i1", domain.ActionNo, t0)
	got, err = db.PromoteQueued(ctx, "u1", 1, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("PromoteQueued() error: %v", err)
	}
	if got == nil || got.ID != "i2" || got.Status != domain.QuestActive {
		t.Fatalf("PromoteQueued() = %+v, want i2 ACTIVE", got)
	}
	if !got.StartedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("StartedAt = %v, want promotion time", got.StartedAt)
	}
}

func TestListActiveQuests_JoinsTemplate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedTemplate(t, db, "q1", domain.GoalTakeAction, 4)
	db.InsertInstance(ctx, activeInstance("i1", "u1", "q1"), 2)

	active, err := db.ListActiveQuests(ctx)
	if err != nil {
		t.Fatalf("ListActiveQuests() error: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("len = %d, want 1", len(active))
	}
	if active[0].GoalType != domain.GoalTakeAction || active[0].GoalCount != 4 || active[0].Difficulty != domain.DifficultyEasy {
		t.Errorf("active quest = %+v", active[0])
	}
}

func TestUserStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.AddCompletionStats(ctx, "u1", 50)
	db.AddCompletionStats(ctx, "u1", 25)

	stats, err := db.GetUserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserStats() error: %v", err)
	}
	if stats.TotalXP != 75 || stats.QuestsCompleted != 2 {
		t.Errorf("stats = %+v, want 75 XP / 2 quests", stats)
	}
}

// ─── Challenges ─────────────────────────────────────────────────────────────

func TestInsertChallenge_OneActivePerCategory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := domain.Challenge{ID: "c1", UserID: "u1", Category: "social", StartDate: t0, IsActive: true, CreatedAt: t0}
	if err := db.InsertChallenge(ctx, c); err != nil {
		t.Fatalf("InsertChallenge() error: %v", err)
	}
	c.ID = "c2"
	if err := db.InsertChallenge(ctx, c); !errors.Is(err, domain.ErrChallengeExists) {
		t.Fatalf("duplicate InsertChallenge() = %v, want ErrChallengeExists", err)
	}
	c.Category = "career"
	if err := db.InsertChallenge(ctx, c); err != nil {
		t.Fatalf("other category InsertChallenge() error: %v", err)
	}

	active, _ := db.ListActiveChallenges(ctx)
	if len(active) != 2 {
		t.Errorf("active challenges = %d, want 2", len(active))
	}
	db.DeactivateChallenge(ctx, "c1")
	active, _ = db.ListActiveChallenges(ctx)
	if len(active) != 1 {
		t.Errorf("active challenges after deactivate = %d, want 1", len(active))
	}
}

func TestChallengeDay_UpsertKeepsLinks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.InsertChallenge(ctx, domain.Challenge{ID: "c1", UserID: "u1", Category: "social", StartDate: t0, IsActive: true, CreatedAt: t0})

	err := db.UpsertChallengeDay(ctx, domain.ChallengeDayRecord{
		ChallengeID: "c1", Day: 3, QuestID: "q1", UserQuestID: "i1", Status: domain.DayActive, UpdatedAt: t0,
	})
	if err != nil {
		t.Fatalf("UpsertChallengeDay() error: %v", err)
	}
	ok, err := db.SetDayStatusByInstance(ctx, "i1", domain.DayCompleted, t0.Add(time.Hour))
	if err != nil || !ok {
		t.Fatalf("SetDayStatusByInstance() = %v, %v", ok, err)
	}

	rec, _ := db.GetChallengeDay(ctx, "c1", 3)
	if rec == nil || rec.Status != domain.DayCompleted || rec.QuestID != "q1" || rec.UserQuestID != "i1" {
		t.Errorf("record = %+v", rec)
	}

	// Days outside 1..100 are rejected by the schema.
	if err := db.UpsertChallengeDay(ctx, domain.ChallengeDayRecord{ChallengeID: "c1", Day: 101, Status: domain.DayPending, UpdatedAt: t0}); err == nil {
		t.Error("day 101 should be rejected")
	}
}

// ─── Checkpoints ────────────────────────────────────────────────────────────

func TestCheckpoints(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	last, err := db.LastRun(ctx, "daily_generation")
	if err != nil || !last.IsZero() {
		t.Fatalf("LastRun() = %v, %v; want zero", last, err)
	}
	db.MarkRun(ctx, "daily_generation", t0)
	db.MarkRun(ctx, "daily_generation", t0.Add(24*time.Hour))
	last, _ = db.LastRun(ctx, "daily_generation")
	if !last.Equal(t0.Add(24 * time.Hour)) {
		t.Errorf("LastRun() = %v, want %v", last, t0.Add(24*time.Hour))
	}
}
