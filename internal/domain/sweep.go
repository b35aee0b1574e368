package domain

import "time"

// ─── Sweep Results ──────────────────────────────────────────────────────────
// Every batch item reports an explicit outcome instead of a swallowed error;
// a sweep aggregates them into a summary an operator can read.

// Outcome is the result of processing one batch item.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeSoftFail Outcome = "soft_fail"
)

// ItemResult is the per-item outcome of a sweep.
type ItemResult struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// OK builds a successful item result.
func OK(id string) ItemResult { return ItemResult{ID: id, Outcome: OutcomeOK} }

// Skip builds a skipped item result.
func Skip(id, reason string) ItemResult {
	return ItemResult{ID: id, Outcome: OutcomeSkipped, Reason: reason}
}

// SoftFail builds a failed item result from an error.
func SoftFail(id string, err error) ItemResult {
	return ItemResult{ID: id, Outcome: OutcomeSoftFail, Reason: err.Error()}
}

// maxRecordedFailures caps how many failures a summary keeps verbatim.
const maxRecordedFailures = 20

// SweepSummary aggregates one sweep.
type SweepSummary struct {
	Job        string       `json:"job"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Processed  int          `json:"processed"`
	Succeeded  int          `json:"succeeded"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Failures   []ItemResult `json:"failures,omitempty"`
	Error      string       `json:"error,omitempty"` // sweep-level failure (e.g. candidate query)
}

// NewSweepSummary starts a summary for job at now.
func NewSweepSummary(job string, now time.Time) SweepSummary {
	return SweepSummary{Job: job, StartedAt: now}
}

// Add folds one item result into the summary.
func (s *SweepSummary) Add(r ItemResult) {
	s.Processed++
	switch r.Outcome {
	case OutcomeOK:
		s.Succeeded++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeSoftFail:
		s.Failed++
		if len(s.Failures) < maxRecordedFailures {
			s.Failures = append(s.Failures, r)
		}
	}
}

// Finish stamps the end of the sweep.
func (s *SweepSummary) Finish(now time.Time) {
	s.FinishedAt = now
}
