package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261008-141500",
		Description: "Track selected plan and contract per user",
		Up: []string{
			`ALTER TABLE users ADD COLUMN plan_id TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE users ADD COLUMN contract_id TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE users ADD COLUMN plan_selected_at TEXT`,
		},
	})
}
