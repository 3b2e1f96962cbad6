package models

// Websocket event shapes pushed to live-update subscribers.

// UpdateEvent carries the latest ranking and top anomalies after a scan.
type UpdateEvent struct {
	Type      string      `json:"type"` // "update"
	Ranking   []HeatScore `json:"ranking"`
	Anomalies []Anomaly   `json:"anomalies"`
}

// JobStatusEvent reflects the live job registry after a transition.
type JobStatusEvent struct {
	Type string              `json:"type"` // "job_status"
	Jobs map[string]JobState `json:"jobs"`
}

// JobDoneEvent announces a finished job together with the remaining registry.
type JobDoneEvent struct {
	Type     string              `json:"type"` // "job_done"
	Job      string              `json:"job"`
	Status   string              `json:"status"`
	Duration float64             `json:"duration"` // seconds
	Message  string              `json:"message"`
	Jobs     map[string]JobState `json:"jobs"`
}
