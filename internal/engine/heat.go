package engine

import (
	"time"

	"HeatPulse/internal/domain/models"
)

// Weights configure how measurement components blend into heat.
type Weights struct {
	VolumeRatio  float64
	TurnoverRate float64
	Amount       float64
	Trade        float64
	Sentiment    float64
	// Source maps a sentiment source name to its weight.
	Source map[string]float64
}

// Normalize min-max scales xs into [0,1]. A flat batch (max == min)
// normalizes to all zeros: no spread means no signal.
func Normalize(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	mn, mx := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < mn {
			mn = x
		}
		if x > mx {
			mx = x
		}
	}
	if mx == mn {
		return out
	}
	for i, x := range xs {
		out[i] = (x - mn) / (mx - mn)
	}
	return out
}

// TradeHeat scores each snapshot from normalized volume ratio, turnover
// rate and traded amount, weighted per config.
func TradeHeat(rows []models.TradeSnapshot, w Weights) []float64 {
	vr := make([]float64, len(rows))
	tr := make([]float64, len(rows))
	amt := make([]float64, len(rows))
	for i, r := range rows {
		vr[i] = r.VolumeRatio
		tr[i] = r.TurnoverRate
		amt[i] = r.Amount
	}
	vrN, trN, amtN := Normalize(vr), Normalize(tr), Normalize(amt)

	out := make([]float64, len(rows))
	for i := range rows {
		out[i] = vrN[i]*w.VolumeRatio + trN[i]*w.TurnoverRate + amtN[i]*w.Amount
	}
	return out
}

// SentimentHeat aggregates post+comment counts per code and source,
// normalizes each source across the codes that have data, and combines
// sources by weight. Codes absent from rows are absent from the result.
func SentimentHeat(rows []models.SentimentSnapshot, w Weights) map[string]float64 {
	result := make(map[string]float64)
	if len(rows) == 0 {
		return result
	}

	totals := make(map[string]map[string]float64)
	order := make([]string, 0, len(rows))
	for _, r := range rows {
		m, ok := totals[r.Code]
		if !ok {
			m = make(map[string]float64)
			totals[r.Code] = m
			order = append(order, r.Code)
		}
		m[r.Source] += float64(r.PostCount + r.CommentCount)
	}

	for source, weight := range w.Source {
		vals := make([]float64, len(order))
		for i, code := range order {
			vals[i] = totals[code][source]
		}
		norm := Normalize(vals)
		for i, code := range order {
			result[code] += norm[i] * weight
		}
	}
	return result
}

// Compose builds one HeatScore per snapshot. ZScore starts at zero and
// is amended later by the anomaly detector.
func Compose(rows []models.TradeSnapshot, sentiment map[string]float64, w Weights, ts time.Time) []models.HeatScore {
	if len(rows) == 0 {
		return nil
	}
	tradeHeat := TradeHeat(rows, w)

	out := make([]models.HeatScore, len(rows))
	for i, r := range rows {
		sh := sentiment[r.Code]
		out[i] = models.HeatScore{
			Code:          r.Code,
			Name:          r.Name,
			TradeHeat:     tradeHeat[i],
			SentimentHeat: sh,
			TotalHeat:     tradeHeat[i]*w.Trade + sh*w.Sentiment,
			ZScore:        0,
			Ts:            ts,
			ChangePct:     r.ChangePct,
			VolumeRatio:   r.VolumeRatio,
		}
	}
	return out
}
