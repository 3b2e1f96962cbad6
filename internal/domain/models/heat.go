package models

import "time"

// HeatScore is the composite score for one instrument in one scan cycle.
// ZScore is the only field amended after insert; the anomaly detector
// overwrites it on the most recent row per code.
type HeatScore struct {
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	TradeHeat     float64   `json:"trade_heat"`
	SentimentHeat float64   `json:"sentiment_heat"`
	TotalHeat     float64   `json:"total_heat"`
	ZScore        float64   `json:"zscore"`
	Ts            time.Time `json:"ts"`

	// Joined trading-snapshot fields carried through the pipeline for
	// ranking and alert formatting. Not part of the heat_scores row.
	ChangePct   float64 `json:"change_pct"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// DailyHeat is one daily-deduplicated point of an instrument's history
// (the latest record of that calendar day).
type DailyHeat struct {
	Day       time.Time `json:"day"`
	TradeHeat float64   `json:"trade_heat"`
	TotalHeat float64   `json:"total_heat"`
}

// Anomaly is one flagged instrument with detection diagnostics.
type Anomaly struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	TotalHeat   float64 `json:"total_heat"`
	TradeHeat   float64 `json:"trade_heat"`
	ZScore      float64 `json:"zscore"`
	ChangePct   float64 `json:"change_pct"`
	VolumeRatio float64 `json:"volume_ratio"`
	Breakout    float64 `json:"breakout"`
	BoxCV       float64 `json:"box_cv"`
	BoxUpper    float64 `json:"box_upper"`
	BoxLower    float64 `json:"box_lower"`
	HistMean    float64 `json:"hist_mean"`
	Type        string  `json:"anomaly_type"`
}

// Anomaly type labels.
const (
	AnomalyTypeZScore      = "zscore"
	AnomalyTypeBoxBreakout = "box_breakout"
)
