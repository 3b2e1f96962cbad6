package repository

// SchemaStatements returns the idempotent DDL for all HeatPulse tables.
// Passed to clickhouse.Client.InitSchema at startup.
func SchemaStatements(database string) []string {
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + database,
		`CREATE TABLE IF NOT EXISTS ` + database + `.trade_snapshots (
			ts DateTime,
			code LowCardinality(String),
			name String,
			price Float64,
			change_pct Float64,
			volume Float64,
			amount Float64,
			turnover_rate Float64,
			volume_ratio Float64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(ts)
		ORDER BY (code, ts)`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.sentiment_snapshots (
			ts DateTime,
			code LowCardinality(String),
			source LowCardinality(String),
			post_count UInt32,
			comment_count UInt32
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(ts)
		ORDER BY (code, source, ts)`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.heat_scores (
			ts DateTime,
			code LowCardinality(String),
			name String,
			trade_heat Float64,
			sentiment_heat Float64,
			total_heat Float64,
			zscore Float64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(ts)
		ORDER BY (code, ts)`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.alerts (
			ts DateTime,
			code LowCardinality(String),
			name String,
			total_heat Float64,
			zscore Float64,
			change_pct Float64,
			volume_ratio Float64,
			message String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(ts)
		ORDER BY (code, ts)`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.job_logs (
			ts DateTime,
			job_name LowCardinality(String),
			status LowCardinality(String),
			message String,
			duration_ms UInt64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(ts)
		ORDER BY ts`,
	}
}
