package migrations

import (
	"shenanigigs/common/database"
	"shenanigigs/common/database/schema"
)

var createJobsClickHouse = schema.Migration{
	Version:     1,
	Description: "Create jobs table",
	Up: []string{`
		CREATE TABLE IF NOT EXISTS jobs (
			id String,
			title String,
			company String,
			location String,
			description String,
			experience_level String,
			salary Nullable(Int64),
			salary_max Nullable(Int64),
			created_at DateTime64(3),
			INDEX idx_title_tokens lower(title) TYPE tokenbf_v1(8192, 3, 0) GRANULARITY 4,
			INDEX idx_location_tokens lower(location) TYPE tokenbf_v1(8192, 3, 0) GRANULARITY 4
		) ENGINE = ReplacingMergeTree(created_at)
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (id)
		SETTINGS index_granularity = 8192
	`},
	Down: []string{`DROP TABLE IF EXISTS jobs`},
}

var createJobsPostgres = schema.Migration{
	Version:     1,
	Description: "Create jobs table",
	Up: []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			company TEXT NOT NULL,
			location TEXT NOT NULL,
			description TEXT NOT NULL,
			experience_level TEXT NOT NULL DEFAULT '',
			salary BIGINT,
			salary_max BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_title_fts ON jobs USING GIN (to_tsvector('simple', title))`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_location_fts ON jobs USING GIN (to_tsvector('simple', location))`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC)`,
	},
	Down: []string{`DROP TABLE IF EXISTS jobs`},
}

var createJobsSQLite = schema.Migration{
	Version:     1,
	Description: "Create jobs table",
	Up: []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			company TEXT NOT NULL,
			location TEXT NOT NULL,
			description TEXT NOT NULL,
			experience_level TEXT NOT NULL DEFAULT '',
			salary INTEGER,
			salary_max INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS jobs_fts USING fts5(title, location)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at)`,
	},
	Down: []string{
		`DROP TABLE IF EXISTS jobs_fts`,
		`DROP TABLE IF EXISTS jobs`,
	},
}

// For returns the ordered migration list for a driver.
func For(driver database.Driver) []schema.Migration {
	switch driver {
	case database.DriverPostgres:
		return []schema.Migration{createJobsPostgres}
	case database.DriverSQLite:
		return []schema.Migration{createJobsSQLite}
	default:
		return []schema.Migration{createJobsClickHouse}
	}
}
