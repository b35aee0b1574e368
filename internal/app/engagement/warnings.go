package engagement

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/infra/sqlite"
)

// questDurations is how long a started quest runs, by difficulty.
var questDurations = map[domain.Difficulty]time.Duration{
	domain.DifficultyEasy:   600 * time.Second,
	domain.DifficultyMedium: 900 * time.Second,
	domain.DifficultyHard:   1200 * time.Second,
	domain.DifficultyExpert: 1800 * time.Second,
}

// QuestDuration returns the run time for a difficulty. Unknown
// difficulties get the MEDIUM duration.
func QuestDuration(d domain.Difficulty) time.Duration {
	if dur, ok := questDurations[d]; ok {
		return dur
	}
	return questDurations[domain.DifficultyMedium]
}

// Warning windows on remaining time, lower bound exclusive.
const (
	fiveMinuteHigh = 300 * time.Second
	fiveMinuteLow  = 240 * time.Second
	oneMinuteHigh  = 60 * time.Second
	oneMinuteLow   = 30 * time.Second

	// ReminderDelay is how long a quest must have run before reminders.
	ReminderDelay = 5 * time.Minute
	// ReminderInterval spaces reminders for the same instance.
	ReminderInterval = time.Hour
)

// TimeMonitor sweeps active quests for time warnings and reminders.
type TimeMonitor struct {
	db       *sqlite.DB
	notifier Notifier
	messages *Messages
}

// NewTimeMonitor creates a monitor.
func NewTimeMonitor(db *sqlite.DB, notifier Notifier, messages *Messages) *TimeMonitor {
	if messages == nil {
		messages = DefaultMessages()
	}
	return &TimeMonitor{db: db, notifier: notifier, messages: messages}
}

// warningKind returns the warning due for remaining time, if any.
func warningKind(remaining time.Duration) (domain.NotificationType, bool) {
	switch {
	case remaining > fiveMinuteLow && remaining <= fiveMinuteHigh:
		return domain.NotifyWarning5Min, true
	case remaining > oneMinuteLow && remaining <= oneMinuteHigh:
		return domain.NotifyWarning1Min, true
	}
	return "", false
}

// SweepWarnings emits due time warnings.
func (m *TimeMonitor) SweepWarnings(ctx context.Context) domain.SweepSummary {
	return m.SweepWarningsAt(ctx, time.Now())
}

// SweepWarningsAt emits 5- and 1-minute warnings as of now. A warning is
// recorded at most once per kind per instance run, however often the
// sweep repeats.
func (m *TimeMonitor) SweepWarningsAt(ctx context.Context, now time.Time) domain.SweepSummary {
	sum := domain.NewSweepSummary(JobTimeWarnings, now)
	active, err := m.db.ListActiveQuests(ctx)
	if err != nil {
		sum.Error = err.Error()
		sum.Finish(now)
		return sum
	}

	var pending []pendingNotice
	for _, q := range active {
		if ctx.Err() != nil {
			break
		}
		remaining := QuestDuration(q.Difficulty) - now.Sub(q.Instance.StartedAt)
		kind, due := warningKind(remaining)
		if !due {
			sum.Add(domain.Skip(q.Instance.ID, "no warning due"))
			continue
		}
		pending = append(pending, m.notice(q, kind, warningKey(q.Instance.UserID, kind, q.Instance.ID, q.Instance.StartedAt), now))
	}
	m.flush(ctx, &sum, pending, "[warnings]")
	sum.Finish(time.Now())
	return sum
}

// SweepReminders emits progress reminders.
func (m *TimeMonitor) SweepReminders(ctx context.Context) domain.SweepSummary {
	return m.SweepRemindersAt(ctx, time.Now())
}

// SweepRemindersAt reminds users of quests started at least ReminderDelay
// ago, at most once per ReminderInterval per instance.
func (m *TimeMonitor) SweepRemindersAt(ctx context.Context, now time.Time) domain.SweepSummary {
	sum := domain.NewSweepSummary(JobReminders, now)
	active, err := m.db.ListActiveQuests(ctx)
	if err != nil {
		sum.Error = err.Error()
		sum.Finish(now)
		return sum
	}

	var pending []pendingNotice
	for _, q := range active {
		if ctx.Err() != nil {
			break
		}
		elapsed := now.Sub(q.Instance.StartedAt)
		if elapsed < ReminderDelay {
			sum.Add(domain.Skip(q.Instance.ID, "started too recently"))
			continue
		}
		bucket := int((elapsed - ReminderDelay) / ReminderInterval)
		pending = append(pending, m.notice(q, domain.NotifyReminder, reminderKey(q.Instance.UserID, q.Instance.ID, bucket), now))
	}
	m.flush(ctx, &sum, pending, "[reminders]")
	sum.Finish(time.Now())
	return sum
}

func (m *TimeMonitor) notice(q domain.ActiveQuest, kind domain.NotificationType, key string, now time.Time) pendingNotice {
	title, body := m.messages.Render(kind, map[string]string{
		"title": q.Title,
		"count": strconv.Itoa(q.Instance.Count(q.GoalType)),
		"goal":  strconv.Itoa(q.GoalCount),
	})
	return pendingNotice{itemID: q.Instance.ID, n: domain.Notification{
		UserID:  q.Instance.UserID,
		Type:    kind,
		Title:   title,
		Message: body,
		Data: map[string]any{
			"user_quest_id": q.Instance.ID,
			"quest_id":      q.Instance.QuestID,
			"progress":      q.Instance.Count(q.GoalType),
			"goal":          q.GoalCount,
		},
		DedupKey:  key,
		CreatedAt: now,
	}}
}

// flush dispatches a sweep's notices as one batch.
func (m *TimeMonitor) flush(ctx context.Context, sum *domain.SweepSummary, pending []pendingNotice, tag string) {
	if m.notifier == nil {
		for _, p := range pending {
			sum.Add(domain.Skip(p.itemID, "no notifier"))
		}
		return
	}
	for _, r := range dispatchSweep(ctx, m.notifier, pending, "already sent") {
		if r.Outcome == domain.OutcomeSoftFail {
			log.Printf("%s %s: %s", tag, r.ID, r.Reason)
		}
		sum.Add(r)
	}
}
