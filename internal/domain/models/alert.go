package models

import "time"

// Alert is one persisted anomaly notification. Append-only; at most one
// row per code inside the dedup window.
type Alert struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	TotalHeat   float64   `json:"total_heat"`
	ZScore      float64   `json:"zscore"`
	ChangePct   float64   `json:"change_pct"`
	VolumeRatio float64   `json:"volume_ratio"`
	Message     string    `json:"message"`
	Ts          time.Time `json:"ts"`
}
