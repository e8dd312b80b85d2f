package validator

import (
	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/network"
)

// Direction says which side of the threshold passes.
type Direction int

const (
	AtLeast Direction = iota
	AtMost
)

// MetricRule binds a metric to the threshold name it is checked against.
type MetricRule struct {
	Metric    model.Metric
	Rule      string
	Weight    float64
	Direction Direction

	// Hard rules record an error and fail the outcome. Soft rules only warn.
	Hard bool

	Label string
}

// MetricRules is evaluated in this order. Weights are absolute and are only
// renormalized over the checks actually present when scoring.
var MetricRules = []MetricRule{
	{Metric: model.MetricGravity, Rule: network.RuleMinGravity, Weight: 0.20, Direction: AtLeast, Label: "Gravity"},
	{Metric: model.MetricCommission, Rule: network.RuleMinCommission, Weight: 0.25, Direction: AtLeast, Hard: true, Label: "Commission"},
	{Metric: model.MetricRefundRate, Rule: network.RuleMaxRefundRate, Weight: 0.15, Direction: AtMost, Label: "Refund rate"},
	{Metric: model.MetricAvgEarnings, Rule: network.RuleMinAvgEarnings, Weight: 0.20, Direction: AtLeast, Label: "Average earnings"},
	{Metric: model.MetricRating, Rule: network.RuleMinRating, Weight: 0.10, Direction: AtLeast, Label: "Rating"},
	{Metric: model.MetricReviewCount, Rule: network.RuleMinReviewCount, Weight: 0.10, Direction: AtLeast, Label: "Review count"},
	{Metric: model.MetricConversionRate, Rule: network.RuleMinConversionRate, Weight: 0.20, Direction: AtLeast, Label: "Conversion rate"},
}

// WeightOf returns the static weight of a metric, 0 for unknown metrics.
func WeightOf(m model.Metric) float64 {
	for _, r := range MetricRules {
		if r.Metric == m {
			return r.Weight
		}
	}
	return 0
}

func (r MetricRule) passes(value, threshold float64) bool {
	if r.Direction == AtMost {
		return value <= threshold
	}
	return value >= threshold
}
