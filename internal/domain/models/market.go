package models

import "time"

// TradeSnapshot is one realtime quote observation for an instrument.
// Immutable after write.
type TradeSnapshot struct {
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Price        float64   `json:"price"`
	ChangePct    float64   `json:"change_pct"`
	Volume       float64   `json:"volume"`
	Amount       float64   `json:"amount"`
	TurnoverRate float64   `json:"turnover_rate"`
	VolumeRatio  float64   `json:"volume_ratio"`
	Ts           time.Time `json:"ts"`
}

// SentimentSnapshot is one discussion-volume observation from a single source.
// Immutable after write.
type SentimentSnapshot struct {
	Code         string    `json:"code"`
	Source       string    `json:"source"`
	PostCount    int       `json:"post_count"`
	CommentCount int       `json:"comment_count"`
	Ts           time.Time `json:"ts"`
}
