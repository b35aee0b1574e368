package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// Error Taxonomy
// ═══════════════════════════════════════════════════════════════════════════

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{ErrInvalidAction, ClassValidation},
		{fmt.Errorf("%w: missing title", ErrInvalidTemplate), ClassValidation},
		{ErrQuestNotFound, ClassNotFound},
		{ErrUnknownJob, ClassNotFound},
		{ErrNotSessionOwner, ClassForbidden},
		{ErrActiveQuestCap, ClassCapacity},
		{ErrInsufficientFunds, ClassCapacity},
		{fmt.Errorf("%w: timeout", ErrGeneration), ClassCollaborator},
		{ErrFeatureUnavailable, ClassUnprovisioned},
		{errors.New("disk full"), ClassInternal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quests
// ═══════════════════════════════════════════════════════════════════════════

func TestGoalTypes(t *testing.T) {
	tests := []struct {
		goal   GoalType
		action Action
	}{
		{GoalCollectNos, ActionNo},
		{GoalCollectYes, ActionYes},
		{GoalTakeAction, ActionAction},
	}
	inst := QuestInstance{NoCount: 3, YesCount: 2, ActionCount: 1}
	want := map[GoalType]int{GoalCollectNos: 3, GoalCollectYes: 2, GoalTakeAction: 1}
	for _, tt := range tests {
		if !tt.goal.Valid() {
			t.Errorf("%s should be valid", tt.goal)
		}
		if got := tt.goal.GoalAction(); got != tt.action {
			t.Errorf("%s.GoalAction() = %s, want %s", tt.goal, got, tt.action)
		}
		if got := inst.Count(tt.goal); got != want[tt.goal] {
			t.Errorf("Count(%s) = %d, want %d", tt.goal, got, want[tt.goal])
		}
	}
	if GoalType("COLLECT_MAYBES").Valid() {
		t.Error("unknown goal type should be invalid")
	}
	if Action("SHRUG").Valid() {
		t.Error("unknown action should be invalid")
	}
}

func TestMilestoneDays(t *testing.T) {
	for _, day := range []int{7, 14, 21, 30, 50, 75, 90, 100} {
		if !IsMilestoneDay(day) {
			t.Errorf("day %d should be a milestone", day)
		}
	}
	for _, day := range []int{1, 8, 99, 101} {
		if IsMilestoneDay(day) {
			t.Errorf("day %d should not be a milestone", day)
		}
	}
}

func TestNotificationTypeValid(t *testing.T) {
	if !NotifyWarning5Min.Valid() || !NotifySuggestionDone.Valid() {
		t.Error("known types should be valid")
	}
	if NotificationType("spam").Valid() {
		t.Error("unknown type should be invalid")
	}
}

func TestUserAccount(t *testing.T) {
	if got := UserAccount("alice"); got != "user:alice" {
		t.Errorf("UserAccount = %q", got)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Sweep Summaries
// ═══════════════════════════════════════════════════════════════════════════

func TestSweepSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sum := NewSweepSummary("daily_generation", start)
	sum.Add(OK("a"))
	sum.Add(Skip("b", "already generated"))
	for i := 0; i < maxRecordedFailures+5; i++ {
		sum.Add(SoftFail(fmt.Sprintf("c%d", i), ErrGeneration))
	}
	sum.Finish(start.Add(time.Second))

	if sum.Processed != 27 || sum.Succeeded != 1 || sum.Skipped != 1 || sum.Failed != 25 {
		t.Errorf("counts = %+v", sum)
	}
	if len(sum.Failures) != maxRecordedFailures {
		t.Errorf("recorded failures = %d, want %d", len(sum.Failures), maxRecordedFailures)
	}
	if sum.Failures[0].Reason != ErrGeneration.Error() {
		t.Errorf("reason = %q", sum.Failures[0].Reason)
	}
	if sum.FinishedAt.Sub(sum.StartedAt) != time.Second {
		t.Error("finish time not stamped")
	}
}
