package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261001-090000",
		Description: "Users table keyed by billing customer",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS users (
				customer_id TEXT PRIMARY KEY,
				email TEXT NOT NULL,
				first_name TEXT NOT NULL DEFAULT '',
				full_name TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		},
	})
}
