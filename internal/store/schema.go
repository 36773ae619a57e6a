package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ddl creates every table the store uses. Statements are idempotent so
// migrate runs on each Open. Timestamps are fixed-width UTC text and
// list-valued columns hold JSON.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS interviews (
		id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		goal TEXT NOT NULL DEFAULT '',
		guidelines TEXT NOT NULL DEFAULT '',
		anchor_topics TEXT NOT NULL DEFAULT '[]',
		context TEXT NOT NULL DEFAULT '',
		time_limit_minutes INTEGER NOT NULL DEFAULT 0,
		agentic_mode INTEGER NOT NULL DEFAULT 0,
		questions TEXT NOT NULL DEFAULT '[]',
		custom_summary_template TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		url_token TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		published_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		interview_id TEXT NOT NULL REFERENCES interviews(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		magic_token TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'in_progress',
		started_at TEXT NOT NULL,
		completed_at TEXT,
		UNIQUE (interview_id, email)
	)`,
	`CREATE INDEX IF NOT EXISTS participants_interview ON participants (interview_id, status)`,
	`CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL UNIQUE REFERENCES participants(id) ON DELETE CASCADE,
		messages TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		participant_id TEXT PRIMARY KEY REFERENCES participants(id) ON DELETE CASCADE,
		free_form_insights TEXT NOT NULL DEFAULT '',
		key_themes TEXT NOT NULL DEFAULT '[]',
		notable_quotes TEXT NOT NULL DEFAULT '[]',
		participant_sentiment TEXT NOT NULL DEFAULT '',
		actionable_insights TEXT NOT NULL DEFAULT '[]',
		partial INTEGER NOT NULL DEFAULT 0,
		generated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_cache (
		interview_id TEXT PRIMARY KEY REFERENCES interviews(id) ON DELETE CASCADE,
		themes TEXT NOT NULL DEFAULT '[]',
		sentiment_trends TEXT NOT NULL DEFAULT '[]',
		last_updated TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL DEFAULT '',
		interview_id TEXT NOT NULL DEFAULT '',
		participant_id TEXT NOT NULL DEFAULT '',
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		error_kind TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS llm_request_events_purpose ON llm_request_events (purpose)`,
	`CREATE INDEX IF NOT EXISTS llm_request_events_interview ON llm_request_events (interview_id)`,
	`CREATE TABLE IF NOT EXISTS oracle_fallbacks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		purpose TEXT NOT NULL,
		reason TEXT NOT NULL,
		interview_id TEXT NOT NULL DEFAULT '',
		participant_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS oracle_fallbacks_interview ON oracle_fallbacks (interview_id)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
