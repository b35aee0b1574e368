package engagement

import (
	"context"
	"math"

	"github.com/rejectly/rejectly/internal/domain"
)

// MaxLevel caps the XP curve.
const MaxLevel = 100

// XPForLevel returns the cumulative XP required to reach a given level.
// Uses an exponential curve: 100 * 1.2^(level-1) for level >= 2.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(100 * math.Pow(1.2, float64(level-1)))
}

// LevelForXP returns the level for a given XP amount.
func LevelForXP(xp int64) int {
	level := 1
	for level < MaxLevel {
		if xp < XPForLevel(level+1) {
			return level
		}
		level++
	}
	return MaxLevel
}

// Profile is a user's stats with their derived level.
type Profile struct {
	domain.UserStats
	Level       int     `json:"level"`
	XPToNext    int64   `json:"xp_to_next"`
	ProgressPct float64 `json:"progress_pct"`
}

// ProfileFor derives level progress from stats.
func ProfileFor(stats domain.UserStats) Profile {
	p := Profile{UserStats: stats, Level: LevelForXP(stats.TotalXP)}
	if p.Level >= MaxLevel {
		p.ProgressPct = 100
		return p
	}
	this := XPForLevel(p.Level)
	next := XPForLevel(p.Level + 1)
	p.XPToNext = next - stats.TotalXP
	if span := next - this; span > 0 {
		p.ProgressPct = math.Min(100, math.Max(0, float64(stats.TotalXP-this)/float64(span)*100))
	}
	return p
}

// Profile returns a user's level profile.
func (t *Tracker) Profile(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, domain.ErrMissingUser
	}
	stats, err := t.db.GetUserStats(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return ProfileFor(stats), nil
}
