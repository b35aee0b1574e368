package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// ─── Job Checkpoints ────────────────────────────────────────────────────────

// LastRun returns when job last completed, or the zero time.
func (d *DB) LastRun(ctx context.Context, job string) (time.Time, error) {
	var ms int64
	err := d.db.QueryRowContext(ctx, `SELECT last_run FROM job_checkpoints WHERE job = ?`, job).Scan(&ms)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return fromMillis(ms), nil
}

// MarkRun records that job completed at t.
func (d *DB) MarkRun(ctx context.Context, job string, t time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO job_checkpoints (job, last_run) VALUES (?, ?)
		 ON CONFLICT(job) DO UPDATE SET last_run = excluded.last_run`,
		job, millis(t))
	return err
}
