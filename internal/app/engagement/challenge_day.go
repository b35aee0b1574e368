package engagement

import (
	"math"
	"time"

	"github.com/rejectly/rejectly/internal/domain"
)

// RawChallengeDay returns floor((now - start) / 24h) + 1 without clamping.
// Values above domain.ChallengeLength mean the challenge is over.
func RawChallengeDay(start, now time.Time) int {
	elapsed := now.Sub(start)
	return int(math.Floor(float64(elapsed)/float64(24*time.Hour))) + 1
}

// ChallengeDay returns the current day of a challenge, clamped to [1, 100].
func ChallengeDay(start, now time.Time) int {
	day := RawChallengeDay(start, now)
	if day < 1 {
		return 1
	}
	if day > domain.ChallengeLength {
		return domain.ChallengeLength
	}
	return day
}

// DifficultyForDay maps a challenge day to its difficulty tier.
func DifficultyForDay(day int) domain.Difficulty {
	switch {
	case day <= 30:
		return domain.DifficultyEasy
	case day <= 60:
		return domain.DifficultyMedium
	case day <= 80:
		return domain.DifficultyHard
	default:
		return domain.DifficultyExpert
	}
}
