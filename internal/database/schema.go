package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS user_accounts (
		user_id    UUID PRIMARY KEY REFERENCES identities (id) ON DELETE CASCADE,
		email      TEXT NOT NULL,
		watchlist  JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
