package models

import "time"

// Job statuses recorded in the audit trail.
const (
	JobStatusOK    = "ok"
	JobStatusError = "error"
)

// JobLogEntry is one append-only audit record of a finished job run.
type JobLogEntry struct {
	JobName  string        `json:"job_name"`
	Status   string        `json:"status"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
	Ts       time.Time     `json:"ts"`
}

// JobState is the live registry entry for a running job. It exists only
// while the job executes and is not persisted.
type JobState struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Progress  string    `json:"progress"`
}
