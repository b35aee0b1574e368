// Package engagement implements the rejectly engine: quest progress,
// 100-day challenges, time warnings, badges, notifications and the live
// suggestion queue.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rejectly/rejectly/internal/app/credit"
	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/infra/metrics"
	"github.com/rejectly/rejectly/internal/infra/sqlite"
)

// DefaultMaxActive is how many ACTIVE instances a user may hold at once.
const DefaultMaxActive = 2

// LifecycleListener observes instance transitions after they commit.
// Listener failures are the listener's to log; they never undo progress.
type LifecycleListener interface {
	QuestCompleted(ctx context.Context, inst domain.QuestInstance, tmpl domain.QuestTemplate)
	QuestPromoted(ctx context.Context, inst domain.QuestInstance)
}

// Tracker owns quest instance progress: starting, recording actions and
// the one-time completion transition with its side effects.
type Tracker struct {
	db        *sqlite.DB
	ledger    domain.CurrencyLedger
	notifier  Notifier
	messages  *Messages
	maxActive int

	mu        sync.RWMutex
	listeners []LifecycleListener
}

// NewTracker creates a tracker. ledger and notifier may be nil.
func NewTracker(db *sqlite.DB, ledger domain.CurrencyLedger, notifier Notifier, messages *Messages, maxActive int) *Tracker {
	if maxActive <= 0 {
		maxActive = DefaultMaxActive
	}
	if messages == nil {
		messages = DefaultMessages()
	}
	return &Tracker{
		db:        db,
		ledger:    ledger,
		notifier:  notifier,
		messages:  messages,
		maxActive: maxActive,
	}
}

// AddListener registers l for completion and promotion events.
func (t *Tracker) AddListener(l LifecycleListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// MaxActive returns the active-quest cap.
func (t *Tracker) MaxActive() int { return t.maxActive }

// ─── Starting ───────────────────────────────────────────────────────────────

// StartQuest creates an ACTIVE instance of questID for userID.
func (t *Tracker) StartQuest(ctx context.Context, userID, questID string) (*domain.QuestInstance, error) {
	return t.StartQuestAt(ctx, userID, questID, time.Now())
}

// StartQuestAt is StartQuest with an explicit clock.
func (t *Tracker) StartQuestAt(ctx context.Context, userID, questID string, now time.Time) (*domain.QuestInstance, error) {
	return t.create(ctx, userID, questID, domain.QuestActive, now)
}

// QueueQuest creates a QUEUED instance of questID for userID.
func (t *Tracker) QueueQuest(ctx context.Context, userID, questID string) (*domain.QuestInstance, error) {
	return t.QueueQuestAt(ctx, userID, questID, time.Now())
}

// QueueQuestAt creates a QUEUED instance that activates when a slot frees.
func (t *Tracker) QueueQuestAt(ctx context.Context, userID, questID string, now time.Time) (*domain.QuestInstance, error) {
	return t.create(ctx, userID, questID, domain.QuestQueued, now)
}

// StartOrQueueAt starts the quest, or queues it when the user is at the
// active-quest cap.
func (t *Tracker) StartOrQueueAt(ctx context.Context, userID, questID string, now time.Time) (*domain.QuestInstance, error) {
	inst, err := t.StartQuestAt(ctx, userID, questID, now)
	if errors.Is(err, domain.ErrActiveQuestCap) {
		return t.QueueQuestAt(ctx, userID, questID, now)
	}
	return inst, err
}

func (t *Tracker) create(ctx context.Context, userID, questID string, status domain.QuestStatus, now time.Time) (*domain.QuestInstance, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	tmpl, err := t.db.GetTemplate(ctx, questID)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return nil, domain.ErrQuestNotFound
	}

	inst := domain.QuestInstance{
		ID:        uuid.NewString(),
		UserID:    userID,
		QuestID:   questID,
		Status:    status,
		CreatedAt: now,
	}
	if status == domain.QuestActive {
		inst.StartedAt = now
	}

	if err := t.db.InsertInstance(ctx, inst, t.maxActive); err != nil {
		switch {
		case errors.Is(err, domain.ErrActiveQuestCap):
			metrics.CapRejections.WithLabelValues("cap").Inc()
		case errors.Is(err, domain.ErrQuestAlreadyHeld):
			metrics.CapRejections.WithLabelValues("held").Inc()
		}
		return nil, err
	}
	metrics.QuestsStarted.WithLabelValues(string(status)).Inc()
	return &inst, nil
}

// ─── Progress ───────────────────────────────────────────────────────────────

// RecordAction records one action on an instance.
func (t *Tracker) RecordAction(ctx context.Context, instanceID string, action domain.Action) (*domain.ProgressResult, error) {
	return t.RecordActionAt(ctx, instanceID, action, time.Now())
}

// RecordUserAction records an action on behalf of userID, who must own
// the instance.
func (t *Tracker) RecordUserAction(ctx context.Context, userID, instanceID string, action domain.Action) (*domain.ProgressResult, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	inst, err := t.db.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	if inst == nil {
		return nil, domain.ErrInstanceNotFound
	}
	if inst.UserID != userID {
		return nil, domain.ErrNotInstanceOwner
	}
	return t.RecordActionAt(ctx, instanceID, action, time.Now())
}

// RecordActionAt increments the counter for action and, if the goal counter
// reached the goal, completes the instance. Completion side effects run
// after the write commits; their failures are logged only.
func (t *Tracker) RecordActionAt(ctx context.Context, instanceID string, action domain.Action, now time.Time) (*domain.ProgressResult, error) {
	if !action.Valid() {
		return nil, domain.ErrInvalidAction
	}
	res, err := t.db.RecordAction(ctx, instanceID, action, now)
	if err != nil {
		return nil, err
	}
	if res.AlreadyCompleted {
		return res, nil
	}
	metrics.QuestActions.WithLabelValues(string(action)).Inc()

	if res.Completed {
		t.completed(ctx, res.Instance, res.Template, now)
	}
	return res, nil
}

func (t *Tracker) completed(ctx context.Context, inst domain.QuestInstance, tmpl domain.QuestTemplate, now time.Time) {
	metrics.QuestsCompleted.WithLabelValues(string(tmpl.Difficulty)).Inc()
	log.Printf("[progress] %s completed %q (%s)", inst.UserID, tmpl.Title, inst.ID)

	if t.ledger != nil {
		if amount := credit.RewardAmount(tmpl.PointReward, tmpl.Difficulty); amount > 0 {
			err := t.ledger.Grant(ctx, inst.UserID, amount, domain.TxReward, inst.ID, "quest reward: "+tmpl.Title)
			if err != nil {
				log.Printf("[progress] reward for %s: %v", inst.ID, err)
			} else {
				metrics.RewardsPaid.Add(float64(amount))
			}
		}
	}

	before, err := t.db.GetUserStats(ctx, inst.UserID)
	if err == nil {
		err = t.db.AddCompletionStats(ctx, inst.UserID, tmpl.XPReward)
	}
	if err != nil {
		log.Printf("[progress] stats for %s: %v", inst.ID, err)
	} else if lvl := LevelForXP(before.TotalXP + tmpl.XPReward); lvl > LevelForXP(before.TotalXP) {
		log.Printf("[progress] %s reached level %d", inst.UserID, lvl)
	}

	if t.notifier != nil {
		title, body := t.messages.Render(domain.NotifyQuestComplete, map[string]string{
			"title": tmpl.Title,
			"xp":    strconv.FormatInt(tmpl.XPReward, 10),
		})
		_, err := t.notifier.Dispatch(ctx, domain.Notification{
			UserID:    inst.UserID,
			Type:      domain.NotifyQuestComplete,
			Title:     title,
			Message:   body,
			Data:      map[string]any{"user_quest_id": inst.ID, "quest_id": tmpl.ID},
			DedupKey:  completionKey(inst.ID),
			CreatedAt: now,
		})
		if err != nil {
			log.Printf("[progress] completion notice for %s: %v", inst.ID, err)
		}
	}

	t.mu.RLock()
	listeners := append([]LifecycleListener(nil), t.listeners...)
	t.mu.RUnlock()

	for _, l := range listeners {
		l.QuestCompleted(ctx, inst, tmpl)
	}

	promoted, err := t.db.PromoteQueued(ctx, inst.UserID, t.maxActive, now)
	if err != nil {
		log.Printf("[progress] promote queued for %s: %v", inst.UserID, err)
		return
	}
	if promoted != nil {
		log.Printf("[progress] promoted queued quest %s for %s", promoted.ID, promoted.UserID)
		for _, l := range listeners {
			l.QuestPromoted(ctx, *promoted)
		}
	}
}

// Instances returns a user's instances, newest first.
func (t *Tracker) Instances(ctx context.Context, userID string) ([]domain.QuestInstance, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	return t.db.ListInstancesByUser(ctx, userID)
}

// CreateTemplate stores a user-authored quest template.
func (t *Tracker) CreateTemplate(ctx context.Context, userID string, tmpl domain.QuestTemplate) (*domain.QuestTemplate, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	if err := ValidateTemplate(tmpl); err != nil {
		return nil, err
	}
	if tmpl.Difficulty == "" {
		tmpl.Difficulty = domain.DifficultyEasy
	}
	tmpl.ID = uuid.NewString()
	tmpl.CreatedBy = userID
	tmpl.Generated = false
	tmpl.CreatedAt = time.Now()
	if err := t.db.InsertTemplate(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return &tmpl, nil
}
