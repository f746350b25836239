package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations are applied in order and recorded in PRAGMA user_version;
// never edit a released entry.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create credentials",
		SQL: `
			CREATE TABLE credentials (
				profile   TEXT PRIMARY KEY,
				user_id   TEXT NOT NULL,
				token     TEXT NOT NULL,
				saved_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 2,
		Name:    "scope credentials to api base url",
		SQL: `
			ALTER TABLE credentials ADD COLUMN base_url TEXT NOT NULL DEFAULT '';
		`,
	},
}
