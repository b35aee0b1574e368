package engagement

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/infra/metrics"
	"github.com/rejectly/rejectly/internal/infra/sqlite"
)

// Job names shared with the scheduler runner.
const (
	JobDailyGeneration = "daily_generation"
	JobMilestones      = "milestone_motivation"
	JobTimeWarnings    = "time_warnings"
	JobReminders       = "reminders"
)

// DefaultMotivationProbability is the chance a generated day also gets a
// motivational notification.
const DefaultMotivationProbability = 0.30

// ChallengeOptions tune a ChallengeScheduler.
type ChallengeOptions struct {
	MotivationProbability float64    // negative disables motivation (default 0.30 when zero)
	Rand                  *rand.Rand // random source for motivation draws
}

// ChallengeScheduler runs 100-day challenges: enrollment, one generated
// quest per day, milestone motivation and day-status tracking.
type ChallengeScheduler struct {
	db        *sqlite.DB
	tracker   *Tracker
	generator domain.QuestGenerator
	notifier  Notifier
	messages  *Messages
	prob      float64

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewChallengeScheduler creates a scheduler and registers it with tracker
// so completed and promoted instances update their challenge day.
func NewChallengeScheduler(db *sqlite.DB, tracker *Tracker, generator domain.QuestGenerator, notifier Notifier, messages *Messages, opts ChallengeOptions) *ChallengeScheduler {
	if opts.MotivationProbability == 0 {
		opts.MotivationProbability = DefaultMotivationProbability
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if messages == nil {
		messages = DefaultMessages()
	}
	s := &ChallengeScheduler{
		db:        db,
		tracker:   tracker,
		generator: generator,
		notifier:  notifier,
		messages:  messages,
		prob:      opts.MotivationProbability,
		rng:       opts.Rand,
	}
	tracker.AddListener(s)
	return s
}

// ChallengeView is a challenge with its computed position.
type ChallengeView struct {
	domain.Challenge
	CurrentDay int                         `json:"current_day"`
	Difficulty domain.Difficulty           `json:"difficulty"`
	Finished   bool                        `json:"finished"`
	Days       []domain.ChallengeDayRecord `json:"days"`
}

// Enroll starts a challenge for userID in category today.
func (s *ChallengeScheduler) Enroll(ctx context.Context, userID, category string) (*domain.Challenge, error) {
	return s.EnrollAt(ctx, userID, category, time.Now())
}

// EnrollAt is Enroll with an explicit clock.
func (s *ChallengeScheduler) EnrollAt(ctx context.Context, userID, category string, now time.Time) (*domain.Challenge, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	if category == "" {
		return nil, domain.ErrInvalidCategory
	}
	c := domain.Challenge{
		ID:        uuid.NewString(),
		UserID:    userID,
		Category:  category,
		StartDate: now,
		IsActive:  true,
		CreatedAt: now,
	}
	if err := s.db.InsertChallenge(ctx, c); err != nil {
		return nil, err
	}
	log.Printf("[daily] %s enrolled in %s challenge %s", userID, category, c.ID)
	return &c, nil
}

// View returns a challenge with its current day and recorded days.
func (s *ChallengeScheduler) View(ctx context.Context, challengeID string, now time.Time) (*ChallengeView, error) {
	c, err := s.db.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	if c == nil {
		return nil, domain.ErrChallengeNotFound
	}
	days, err := s.db.ListChallengeDays(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	day := ChallengeDay(c.StartDate, now)
	return &ChallengeView{
		Challenge:  *c,
		CurrentDay: day,
		Difficulty: DifficultyForDay(day),
		Finished:   !c.IsActive || RawChallengeDay(c.StartDate, now) > domain.ChallengeLength,
		Days:       days,
	}, nil
}

// ─── Daily Generation ───────────────────────────────────────────────────────

// GenerateDaily generates today's quest for every active challenge.
func (s *ChallengeScheduler) GenerateDaily(ctx context.Context) domain.SweepSummary {
	return s.GenerateDailyAt(ctx, time.Now())
}

// GenerateDailyAt runs daily generation as of now. Challenges are handled
// one at a time; a failure on one never stops the others.
func (s *ChallengeScheduler) GenerateDailyAt(ctx context.Context, now time.Time) domain.SweepSummary {
	sum := domain.NewSweepSummary(JobDailyGeneration, now)
	challenges, err := s.db.ListActiveChallenges(ctx)
	if err != nil {
		sum.Error = err.Error()
		sum.Finish(now)
		return sum
	}

	for _, c := range challenges {
		if ctx.Err() != nil {
			break
		}
		r := s.generateFor(ctx, c, now)
		if r.Outcome == domain.OutcomeSoftFail {
			log.Printf("[daily] challenge %s: %s", c.ID, r.Reason)
		}
		sum.Add(r)
	}
	sum.Finish(time.Now())
	log.Printf("[daily] %d challenges: %d generated, %d skipped, %d failed",
		sum.Processed, sum.Succeeded, sum.Skipped, sum.Failed)
	return sum
}

func (s *ChallengeScheduler) generateFor(ctx context.Context, c domain.Challenge, now time.Time) domain.ItemResult {
	if RawChallengeDay(c.StartDate, now) > domain.ChallengeLength {
		if err := s.db.DeactivateChallenge(ctx, c.ID); err != nil {
			return domain.SoftFail(c.ID, fmt.Errorf("deactivate: %w", err))
		}
		log.Printf("[daily] challenge %s finished", c.ID)
		return domain.Skip(c.ID, "challenge finished")
	}

	day := ChallengeDay(c.StartDate, now)
	rec, err := s.db.GetChallengeDay(ctx, c.ID, day)
	if err != nil {
		return domain.SoftFail(c.ID, fmt.Errorf("get day %d: %w", day, err))
	}
	if rec != nil && rec.Status != domain.DayPending {
		return domain.Skip(c.ID, fmt.Sprintf("day %d already %s", day, rec.Status))
	}
	if rec == nil {
		err := s.db.UpsertChallengeDay(ctx, domain.ChallengeDayRecord{
			ChallengeID: c.ID, Day: day, Status: domain.DayPending, UpdatedAt: now,
		})
		if err != nil {
			return domain.SoftFail(c.ID, fmt.Errorf("record day %d: %w", day, err))
		}
	}

	difficulty := DifficultyForDay(day)
	tmpl, err := s.generator.Generate(ctx, domain.GenerateRequest{
		Category:   c.Category,
		Difficulty: difficulty,
		Prompt:     challengePrompt(c, day, difficulty),
		UserID:     c.UserID,
	})
	if err != nil {
		metrics.GenerationFailures.Inc()
		return domain.SoftFail(c.ID, fmt.Errorf("%w: %v", domain.ErrGeneration, err))
	}
	tmpl = normalizeGenerated(tmpl, c.Category, difficulty, now)
	if err := ValidateTemplate(tmpl); err != nil {
		metrics.GenerationFailures.Inc()
		return domain.SoftFail(c.ID, err)
	}
	if err := s.db.InsertTemplate(ctx, tmpl); err != nil {
		return domain.SoftFail(c.ID, fmt.Errorf("save template: %w", err))
	}
	if err := s.db.UpsertChallengeDay(ctx, domain.ChallengeDayRecord{
		ChallengeID: c.ID, Day: day, QuestID: tmpl.ID, Status: domain.DayPending, UpdatedAt: now,
	}); err != nil {
		return domain.SoftFail(c.ID, fmt.Errorf("link template: %w", err))
	}

	inst, err := s.tracker.StartOrQueueAt(ctx, c.UserID, tmpl.ID, now)
	if err != nil {
		return domain.SoftFail(c.ID, fmt.Errorf("start quest: %w", err))
	}
	status := domain.DayActive
	if inst.Status == domain.QuestQueued {
		status = domain.DayQueued
	}
	if err := s.db.UpsertChallengeDay(ctx, domain.ChallengeDayRecord{
		ChallengeID: c.ID, Day: day, QuestID: tmpl.ID, UserQuestID: inst.ID, Status: status, UpdatedAt: now,
	}); err != nil {
		return domain.SoftFail(c.ID, fmt.Errorf("link instance: %w", err))
	}

	s.notifyDaily(ctx, c, day, tmpl, inst, now)
	return domain.OK(c.ID)
}

func (s *ChallengeScheduler) notifyDaily(ctx context.Context, c domain.Challenge, day int, tmpl domain.QuestTemplate, inst *domain.QuestInstance, now time.Time) {
	if s.notifier == nil {
		return
	}
	title, body := s.messages.Render(domain.NotifyDailyChallenge, map[string]string{
		"day":        strconv.Itoa(day),
		"title":      tmpl.Title,
		"difficulty": string(tmpl.Difficulty),
	})
	_, err := s.notifier.Dispatch(ctx, domain.Notification{
		UserID:  c.UserID,
		Type:    domain.NotifyDailyChallenge,
		Title:   title,
		Message: body,
		Data: map[string]any{
			"challenge_id": c.ID, "day": day, "quest_id": tmpl.ID, "user_quest_id": inst.ID,
		},
		DedupKey:  dailyKey(c.ID, day),
		CreatedAt: now,
	})
	if err != nil {
		log.Printf("[daily] notify %s day %d: %v", c.ID, day, err)
	}

	if !s.drawMotivation() {
		return
	}
	title, body = s.messages.Render(domain.NotifyMotivation, map[string]string{
		"message": s.randomMotivation(),
	})
	_, err = s.notifier.Dispatch(ctx, domain.Notification{
		UserID:    c.UserID,
		Type:      domain.NotifyMotivation,
		Title:     title,
		Message:   body,
		Data:      map[string]any{"challenge_id": c.ID, "day": day},
		DedupKey:  motivationKey(c.ID, day),
		CreatedAt: now,
	})
	if err != nil {
		log.Printf("[daily] motivation %s day %d: %v", c.ID, day, err)
	}
}

func (s *ChallengeScheduler) drawMotivation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.prob
}

func (s *ChallengeScheduler) randomMotivation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages.RandomMotivation(s.rng)
}

func challengePrompt(c domain.Challenge, day int, difficulty domain.Difficulty) string {
	return fmt.Sprintf(
		"Day %d of a %d-day %s rejection challenge. Create one %s quest that builds on earlier days.",
		day, domain.ChallengeLength, c.Category, difficulty)
}

// normalizeGenerated fills the fields the engine owns on a generated
// template.
func normalizeGenerated(t domain.QuestTemplate, category string, difficulty domain.Difficulty, now time.Time) domain.QuestTemplate {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Category == "" {
		t.Category = category
	}
	t.Difficulty = difficulty
	t.Generated = true
	t.CreatedBy = ""
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	return t
}

// ValidateTemplate rejects templates a quest cannot be run against.
func ValidateTemplate(t domain.QuestTemplate) error {
	switch {
	case t.Title == "":
		return fmt.Errorf("%w: missing title", domain.ErrInvalidTemplate)
	case !t.GoalType.Valid():
		return fmt.Errorf("%w: goal type %q", domain.ErrInvalidTemplate, t.GoalType)
	case t.GoalCount <= 0:
		return fmt.Errorf("%w: goal count %d", domain.ErrInvalidTemplate, t.GoalCount)
	}
	return nil
}

// ─── Milestones ─────────────────────────────────────────────────────────────

// SendMilestones sends milestone motivation for every active challenge.
func (s *ChallengeScheduler) SendMilestones(ctx context.Context) domain.SweepSummary {
	return s.SendMilestonesAt(ctx, time.Now())
}

// SendMilestonesAt sends milestone notifications as of now. At most one
// notification is recorded per (challenge, day).
func (s *ChallengeScheduler) SendMilestonesAt(ctx context.Context, now time.Time) domain.SweepSummary {
	sum := domain.NewSweepSummary(JobMilestones, now)
	challenges, err := s.db.ListActiveChallenges(ctx)
	if err != nil {
		sum.Error = err.Error()
		sum.Finish(now)
		return sum
	}

	var pending []pendingNotice
	for _, c := range challenges {
		if ctx.Err() != nil {
			break
		}
		p, skip := s.milestoneFor(c, now)
		if skip != "" {
			sum.Add(domain.Skip(c.ID, skip))
			continue
		}
		pending = append(pending, p)
	}

	if s.notifier == nil {
		for _, p := range pending {
			sum.Add(domain.Skip(p.itemID, "no notifier"))
		}
	} else {
		for _, r := range dispatchSweep(ctx, s.notifier, pending, "milestone already sent") {
			if r.Outcome == domain.OutcomeSoftFail {
				log.Printf("[milestone] challenge %s: %s", r.ID, r.Reason)
			}
			sum.Add(r)
		}
	}
	sum.Finish(time.Now())
	return sum
}

// milestoneFor builds c's milestone notice, or the reason it has none.
func (s *ChallengeScheduler) milestoneFor(c domain.Challenge, now time.Time) (pendingNotice, string) {
	raw := RawChallengeDay(c.StartDate, now)
	if raw > domain.ChallengeLength {
		return pendingNotice{}, "challenge finished"
	}
	day := ChallengeDay(c.StartDate, now)
	if !domain.IsMilestoneDay(day) {
		return pendingNotice{}, "not a milestone day"
	}

	title, body := s.messages.Render(domain.NotifyMilestone, map[string]string{
		"day":     strconv.Itoa(day),
		"message": s.messages.Milestone(day),
	})
	return pendingNotice{itemID: c.ID, n: domain.Notification{
		UserID:    c.UserID,
		Type:      domain.NotifyMilestone,
		Title:     title,
		Message:   body,
		Data:      map[string]any{"challenge_id": c.ID, "day": day},
		DedupKey:  milestoneKey(c.ID, day),
		CreatedAt: now,
	}}, ""
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// QuestCompleted marks the challenge day linked to inst completed.
func (s *ChallengeScheduler) QuestCompleted(ctx context.Context, inst domain.QuestInstance, _ domain.QuestTemplate) {
	at := inst.CompletedAt
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := s.db.SetDayStatusByInstance(ctx, inst.ID, domain.DayCompleted, at); err != nil {
		log.Printf("[daily] complete day for %s: %v", inst.ID, err)
	}
}

// QuestPromoted marks the challenge day of a promoted instance active.
func (s *ChallengeScheduler) QuestPromoted(ctx context.Context, inst domain.QuestInstance) {
	at := inst.StartedAt
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := s.db.SetDayStatusByInstance(ctx, inst.ID, domain.DayActive, at); err != nil {
		log.Printf("[daily] activate day for %s: %v", inst.ID, err)
	}
}
