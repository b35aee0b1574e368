package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/infra/sqlite"
)

// CoCompletionWindow is how close another user's completion of the same
// template must be to count as simultaneous.
const CoCompletionWindow = time.Hour

// BadgeClassifier derives badges for completed instances. Nothing it
// computes is stored.
type BadgeClassifier struct {
	db     *sqlite.DB
	window time.Duration
}

// NewBadgeClassifier creates a classifier.
func NewBadgeClassifier(db *sqlite.DB) *BadgeClassifier {
	return &BadgeClassifier{db: db, window: CoCompletionWindow}
}

// Classify returns the badges of one instance.
func (c *BadgeClassifier) Classify(ctx context.Context, instanceID string) (domain.Badges, error) {
	inst, err := c.db.GetInstance(ctx, instanceID)
	if err != nil {
		return domain.Badges{}, fmt.Errorf("get instance: %w", err)
	}
	if inst == nil {
		return domain.Badges{}, domain.ErrInstanceNotFound
	}
	out, err := c.ClassifyBatch(ctx, []string{instanceID})
	if err != nil {
		return domain.Badges{}, err
	}
	return out[instanceID], nil
}

// ClassifyBatch returns badges for every id. Facts are loaded with one
// grouped query per rule regardless of how many ids are given; unknown
// ids classify as no badges.
func (c *BadgeClassifier) ClassifyBatch(ctx context.Context, ids []string) (map[string]domain.Badges, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	facts, err := c.db.BadgeFacts(ctx, unique, c.window)
	if err != nil {
		return nil, fmt.Errorf("load badge facts: %w", err)
	}

	out := make(map[string]domain.Badges, len(unique))
	for _, id := range unique {
		out[id] = BadgesFromFacts(facts[id])
	}
	return out, nil
}

// BadgesFromFacts applies the badge rules in priority order.
func BadgesFromFacts(f domain.BadgeFacts) domain.Badges {
	var b domain.Badges
	b.Silver = f.Verifications >= 2 || f.PostWithImage
	b.Gold = f.LiveEnded
	b.Blue = f.GroupCompleted
	switch {
	case b.Blue && f.GroupParticipants > 1:
		b.Bronze = true
	case f.LiveHadViewers:
		b.Bronze = true
	case f.CoCompleted:
		b.Bronze = true
	}
	return b
}
