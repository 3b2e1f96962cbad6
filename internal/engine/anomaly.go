package engine

import (
	"math"
	"sort"

	"HeatPulse/internal/domain/models"
)

const (
	// eps guards divisions; a std or iqr below it is treated as zero spread.
	eps = 1e-9
	// boxCVSentinel marks a history with no meaningful baseline; box
	// statistics must not be trusted when mean is effectively zero.
	boxCVSentinel = 999
	// liftFloor is the smallest mean for which heat lift is defined.
	liftFloor = 1e-4
)

// Stats holds the per-code detection statistics over a daily history.
type Stats struct {
	Mean     float64
	Std      float64
	ZScore   float64
	BoxUpper float64
	BoxLower float64
	BoxCV    float64
	Breakout float64
}

// Thresholds are the tunable decision constants. Empirically chosen;
// kept configurable rather than hard-coded.
type Thresholds struct {
	ZScore       float64
	BoxCVMax     float64
	BreakoutMin  float64
	HeatLiftMin  float64
	HeatLiftWarm float64
	WarmMean     float64
	MinTradeHeat float64
}

// Verdict is the full evaluation outcome for one code.
type Verdict struct {
	Stats
	HeatLift  float64
	Anomalous bool
	Type      string
}

// CalcStats computes mean/std, z-score and interquartile-box metrics of
// current against past. Zero-spread histories never divide by zero: a
// flat history with an uptick produces an extreme positive z-score, a
// flat-or-down one produces zero.
func CalcStats(current float64, past []float64) Stats {
	mean, std := meanStd(past)

	var zscore float64
	if std > eps {
		zscore = (current - mean) / std
	} else if current > mean {
		zscore = (current - mean) / eps
	}

	upper := percentile(past, 75)
	lower := percentile(past, 25)
	iqr := upper - lower

	boxCV := float64(boxCVSentinel)
	if mean > eps {
		boxCV = std / mean
	}

	var breakout float64
	if iqr > eps {
		breakout = math.Max(0, (current-upper)/iqr)
	} else if current > mean && mean > eps {
		// zero-spread proxy keeps the metric meaningful
		breakout = (current - mean) / mean * 10
	}

	return Stats{
		Mean:     mean,
		Std:      std,
		ZScore:   zscore,
		BoxUpper: upper,
		BoxLower: lower,
		BoxCV:    boxCV,
		Breakout: breakout,
	}
}

// Evaluate runs the dual z-score / box-breakout decision with the tiered
// significance filter over one code's current trade heat and past series.
func Evaluate(current float64, past []float64, th Thresholds) Verdict {
	st := CalcStats(current, past)

	isZScore := st.ZScore >= th.ZScore
	isStableBox := st.BoxCV < th.BoxCVMax
	isBreakout := isStableBox && st.Breakout >= th.BreakoutMin

	// Significance filter: trade heat must be meaningfully above the
	// historical mean, which keeps near-zero-heat instruments with tiny
	// fluctuations from triggering.
	var lift float64
	if st.Mean > liftFloor {
		lift = (current - st.Mean) / st.Mean
	}
	meaningful := lift > th.HeatLiftMin && current > th.MinTradeHeat

	// An already-warm baseline needs a stronger signal to stand out.
	if st.Mean > th.WarmMean {
		meaningful = meaningful && lift > th.HeatLiftWarm
	}

	v := Verdict{Stats: st, HeatLift: lift}
	if (isZScore || isBreakout) && meaningful {
		v.Anomalous = true
		if isBreakout && !isZScore {
			v.Type = models.AnomalyTypeBoxBreakout
		} else {
			v.Type = models.AnomalyTypeZScore
		}
	}
	return v
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	// population std: the window is the whole baseline, not a sample
	std = math.Sqrt(ss / float64(len(xs)))
	return mean, std
}

// percentile computes the p-th percentile with linear interpolation
// between closest ranks.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Round trims x to n decimal places for stable diagnostic output.
func Round(x float64, n int) float64 {
	pow := math.Pow(10, float64(n))
	return math.Round(x*pow) / pow
}
