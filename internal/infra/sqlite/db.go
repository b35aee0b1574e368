// Package sqlite provides SQLite-based persistent storage for the engine.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// SchemaVersion is bumped whenever a migration is appended.
const SchemaVersion = 3

// Features records which externally owned tables exist. Probed once at Open;
// callers consult it instead of probing per query.
type Features struct {
	Verifications bool `json:"verifications"`
	Posts         bool `json:"posts"`
	GroupQuests   bool `json:"group_quests"`
}

// Options tune Open.
type Options struct {
	// ProvisionSocial creates the verification, post and group tables that
	// are normally owned by the social components.
	ProvisionSocial bool
}

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db       *sql.DB
	features Features
}

// Open creates or opens the SQLite database at dir/state.db with social
// tables provisioned.
func Open(dir string) (*DB, error) {
	return OpenWithOptions(dir, Options{ProvisionSocial: true})
}

// OpenWithOptions creates or opens the database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func OpenWithOptions(dir string, opts Options) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serializes transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if opts.ProvisionSocial {
		if err := d.ProvisionSocial(); err != nil {
			db.Close()
			return nil, fmt.Errorf("provision social tables: %w", err)
		}
	}
	if err := d.probeFeatures(); err != nil {
		db.Close()
		return nil, fmt.Errorf("probe features: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// Features returns the feature set detected at Open.
func (d *DB) Features() Features {
	return d.features
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// ─── Quests ────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS quest_templates (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL,
			difficulty   TEXT NOT NULL,
			goal_type    TEXT NOT NULL,
			goal_count   INTEGER NOT NULL,
			xp_reward    INTEGER NOT NULL DEFAULT 0,
			point_reward INTEGER NOT NULL DEFAULT 0,
			location     TEXT NOT NULL DEFAULT '',
			time_context TEXT NOT NULL DEFAULT '',
			created_by   TEXT NOT NULL DEFAULT '',
			generated    BOOLEAN NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quest_instances (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			quest_id     TEXT NOT NULL REFERENCES quest_templates(id),
			status       TEXT NOT NULL,
			no_count     INTEGER NOT NULL DEFAULT 0,
			yes_count    INTEGER NOT NULL DEFAULT 0,
			action_count INTEGER NOT NULL DEFAULT 0,
			started_at   INTEGER,
			completed_at INTEGER,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_user_status ON quest_instances(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_status ON quest_instances(status)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_quest_completed ON quest_instances(quest_id, completed_at)`,
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id          TEXT PRIMARY KEY,
			total_xp         INTEGER NOT NULL DEFAULT 0,
			quests_completed INTEGER NOT NULL DEFAULT 0
		)`,

		// ─── Challenges ────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS challenges (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			category   TEXT NOT NULL,
			start_date INTEGER NOT NULL,
			is_active  BOOLEAN NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_challenges_active ON challenges(is_active)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_challenges_user_category_active
			ON challenges(user_id, category) WHERE is_active = 1`,
		`CREATE TABLE IF NOT EXISTS challenge_days (
			challenge_id  TEXT NOT NULL REFERENCES challenges(id),
			day           INTEGER NOT NULL CHECK(day BETWEEN 1 AND 100),
			quest_id      TEXT,
			user_quest_id TEXT,
			status        TEXT NOT NULL,
			updated_at    INTEGER NOT NULL,
			PRIMARY KEY (challenge_id, day)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_challenge_days_instance ON challenge_days(user_quest_id)`,

		// ─── Notifications ─────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			sender_id  TEXT NOT NULL DEFAULT '',
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			message    TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '{}',
			dedup_key  TEXT UNIQUE,
			read       BOOLEAN NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user_created ON notifications(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS notification_preferences (
			user_id TEXT NOT NULL,
			type    TEXT NOT NULL,
			enabled BOOLEAN NOT NULL,
			PRIMARY KEY (user_id, type)
		)`,
		`CREATE TABLE IF NOT EXISTS device_tokens (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			platform   TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_user ON device_tokens(user_id)`,

		// ─── Live sessions & suggestions ───────────────────────────
		`CREATE TABLE IF NOT EXISTS live_sessions (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			is_active     BOOLEAN NOT NULL DEFAULT 1,
			viewer_count  INTEGER NOT NULL DEFAULT 0,
			user_quest_id TEXT,
			started_at    INTEGER NOT NULL,
			ended_at      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_live_instance ON live_sessions(user_quest_id)`,
		`CREATE TABLE IF NOT EXISTS quest_suggestions (
			id              TEXT PRIMARY KEY,
			live_session_id TEXT NOT NULL,
			suggester_id    TEXT NOT NULL,
			quest_id        TEXT NOT NULL,
			boost_amount    INTEGER NOT NULL DEFAULT 0,
			message         TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL,
			user_quest_id   TEXT,
			created_at      INTEGER NOT NULL,
			responded_at    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_suggestions_session ON quest_suggestions(live_session_id, status)`,

		// ─── Currency ledger (double-entry) ────────────────────────
		`CREATE TABLE IF NOT EXISTS credit_ledger (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			type        TEXT NOT NULL,
			entry_type  TEXT NOT NULL,
			account     TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			reference   TEXT,
			description TEXT,
			balance     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credit_account ON credit_ledger(account)`,

		// ─── Scheduler checkpoints ─────────────────────────────────
		`CREATE TABLE IF NOT EXISTS job_checkpoints (
			job      TEXT PRIMARY KEY,
			last_run INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	_, err := d.db.Exec(
		`INSERT INTO schema_meta (key, value) VALUES ('version', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		fmt.Sprint(SchemaVersion),
	)
	return err
}

// ProvisionSocial creates the tables normally owned by the social feed,
// verification and group components. Idempotent.
func (d *DB) ProvisionSocial() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quest_verifications (
			id            TEXT PRIMARY KEY,
			user_quest_id TEXT NOT NULL,
			verifier_id   TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			UNIQUE (user_quest_id, verifier_id)
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			user_quest_id TEXT,
			image_count   INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_instance ON posts(user_quest_id)`,
		`CREATE TABLE IF NOT EXISTS group_quests (
			id         TEXT PRIMARY KEY,
			quest_id   TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS group_quest_participants (
			group_quest_id TEXT NOT NULL,
			user_id        TEXT NOT NULL,
			user_quest_id  TEXT,
			status         TEXT NOT NULL,
			PRIMARY KEY (group_quest_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_group_participants_instance ON group_quest_participants(user_quest_id)`,
	}
	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("provision failed: %w\nSQL: %s", err, s)
		}
	}
	return d.probeFeatures()
}

// probeFeatures checks sqlite_master once for the externally owned tables.
func (d *DB) probeFeatures() error {
	rows, err := d.db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return err
	}
	defer rows.Close()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	d.features = Features{
		Verifications: tables["quest_verifications"],
		Posts:         tables["posts"],
		GroupQuests:   tables["group_quests"] && tables["group_quest_participants"],
	}
	return nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing on nil error.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromMillis(n.Int64)
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
