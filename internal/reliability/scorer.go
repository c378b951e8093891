package reliability

import (
	"math"
	"sort"
)

// RiskTier is a coarse reliability bucket derived from the delay rate
type RiskTier string

const (
	RiskLow    RiskTier = "Low"
	RiskMedium RiskTier = "Medium"
	RiskHigh   RiskTier = "High"
)

const (
	highRiskDelayRate   = 25.0
	mediumRiskDelayRate = 10.0
	delayPenalty        = 1.5
	maxScore            = 100.0

	// DelayWarningThreshold is the delay probability above which a supplier is flagged
	DelayWarningThreshold = 30.0
)

// Reliability is the derived reliability of a supplier
type Reliability struct {
	DelayRate float64  `json:"delay_rate"`
	RiskTier  RiskTier `json:"risk_tier"`
	Score     float64  `json:"score"`
}

// DefaultReliability is assigned to a supplier before it has any history
func DefaultReliability() Reliability {
	return Reliability{RiskTier: RiskLow, Score: maxScore}
}

// Recompute derives reliability from a ledger's orders. Pending orders count
// towards the total but never as delayed. An empty ledger carries no
// information, so prior is returned unchanged.
func Recompute(orders []PurchaseOrder, prior Reliability) Reliability {
	if len(orders) == 0 {
		return prior
	}

	delayed := 0
	for _, o := range orders {
		if o.Status() == StatusDelayed {
			delayed++
		}
	}

	rate := float64(delayed) / float64(len(orders)) * 100
	return Reliability{
		DelayRate: rate,
		RiskTier:  TierFor(rate),
		Score:     math.Max(0, maxScore-rate*delayPenalty),
	}
}

// TierFor buckets a delay rate. Both thresholds are exclusive.
func TierFor(delayRate float64) RiskTier {
	switch {
	case delayRate > highRiskDelayRate:
		return RiskHigh
	case delayRate > mediumRiskDelayRate:
		return RiskMedium
	default:
		return RiskLow
	}
}

// DelayProbability is a heuristic: the complement of a manually curated 0-100
// delivery rating, clamped to [0, 100]. It is not a statistical model and
// does not look at the ledger.
func DelayProbability(deliveryRating float64) float64 {
	return math.Min(maxScore, math.Max(0, maxScore-deliveryRating))
}

// RankAlternatives returns the suppliers sharing target's category, excluding
// target, ordered by score descending. Ties keep their input order. A nil
// target has no alternatives.
func RankAlternatives(suppliers []*Supplier, target *Supplier) []*Supplier {
	if target == nil {
		return nil
	}
	out := make([]*Supplier, 0, len(suppliers))
	for _, s := range suppliers {
		if s == nil || s.ID == target.ID || s.Category != target.Category {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].reliability.Score > out[j].reliability.Score
	})
	return out
}

// Summary aggregates reliability across suppliers for the dashboard
type Summary struct {
	Suppliers    int     `json:"suppliers"`
	AverageScore float64 `json:"average_score"`
	HighRisk     int     `json:"high_risk"`
	MediumRisk   int     `json:"medium_risk"`
	LowRisk      int     `json:"low_risk"`
}

// Summarize computes the dashboard summary
func Summarize(suppliers []*Supplier) Summary {
	var sum Summary
	var total float64
	for _, s := range suppliers {
		if s == nil {
			continue
		}
		sum.Suppliers++
		total += s.reliability.Score
		switch s.reliability.RiskTier {
		case RiskHigh:
			sum.HighRisk++
		case RiskMedium:
			sum.MediumRisk++
		default:
			sum.LowRisk++
		}
	}
	if sum.Suppliers > 0 {
		sum.AverageScore = total / float64(sum.Suppliers)
	}
	return sum
}
