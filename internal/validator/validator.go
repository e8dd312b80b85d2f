// Package validator evaluates an offer's product info against its network
// rules and turns the outcome into a 0-100 score, grade and recommendation.
package validator

import (
	"fmt"
	"math"

	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/network"
)

// Evaluate runs every metric that is present in info and defined by rs.
// Metrics missing from either side produce no check at all.
func Evaluate(info *model.ProductInfo, rs network.RuleSet) *model.ValidationOutcome {
	out := &model.ValidationOutcome{
		Passed:   true,
		Checks:   make(map[model.Metric]model.CheckResult),
		Warnings: []model.Issue{},
		Errors:   []model.Issue{},
	}

	for _, rule := range MetricRules {
		value, ok := info.Metric(rule.Metric)
		if !ok {
			continue
		}
		threshold, ok := rs.Threshold(rule.Rule)
		if !ok {
			continue
		}

		passed := rule.passes(value, threshold)
		out.Checks[rule.Metric] = model.CheckResult{
			Passed:    passed,
			Value:     value,
			Threshold: threshold,
			Weight:    rule.Weight,
		}
		if passed {
			continue
		}

		issue := model.Issue{Metric: rule.Metric, Message: describeFailure(rule, value, threshold)}
		if rule.Hard {
			out.Errors = append(out.Errors, issue)
			out.Passed = false
		} else {
			out.Warnings = append(out.Warnings, issue)
		}
	}

	return out
}

func describeFailure(rule MetricRule, value, threshold float64) string {
	if rule.Direction == AtMost {
		return fmt.Sprintf("%s %s exceeds maximum %s", rule.Label, formatNumber(value), formatNumber(threshold))
	}
	return fmt.Sprintf("%s %s is below minimum %s", rule.Label, formatNumber(value), formatNumber(threshold))
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// Score computes the weighted score of an outcome.
//
// A passed check contributes its full weight. A failed check contributes
// weight * min(value/threshold, 1) whatever its direction, so an "at most"
// metric that misses its bound by a little keeps nearly full credit.
func Score(outcome *model.ValidationOutcome) model.Score {
	overall := Overall(outcome)
	return model.Score{
		Overall:        overall,
		Grade:          Grade(overall),
		Recommendation: RecommendationFor(overall),
	}
}

// Overall returns round(100 * earned / available) over the present checks,
// or 0 when there are none.
func Overall(outcome *model.ValidationOutcome) int {
	if outcome == nil {
		return 0
	}

	var totalScore, totalWeight float64
	// Fixed metric order keeps float accumulation deterministic.
	for _, rule := range MetricRules {
		check, ok := outcome.Checks[rule.Metric]
		if !ok {
			continue
		}
		totalWeight += check.Weight
		if check.Passed {
			totalScore += check.Weight
		} else {
			totalScore += check.Weight * partialCredit(check.Value, check.Threshold)
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return int(math.Round(100 * totalScore / totalWeight))
}

func partialCredit(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	ratio := math.Min(value/threshold, 1)
	if ratio < 0 {
		return 0
	}
	return ratio
}

type gradeStep struct {
	min   int
	grade string
}

var gradeLadder = []gradeStep{
	{90, "A+"},
	{85, "A"},
	{80, "A-"},
	{75, "B+"},
	{70, "B"},
	{65, "B-"},
	{60, "C+"},
	{55, "C"},
	{50, "C-"},
	{45, "D+"},
	{40, "D"},
}

// Grade maps an overall score to a letter, first satisfied step wins.
func Grade(overall int) string {
	for _, step := range gradeLadder {
		if overall >= step.min {
			return step.grade
		}
	}
	return "F"
}

// Recommendation priorities, highest first.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
	PriorityAvoid  = "avoid"
)

var (
	highlyRecommended = model.Recommendation{
		Action:      "Highly Recommended",
		Description: "Excellent offer with strong metrics across the board. Prioritize promoting this product.",
		Priority:    PriorityHigh,
	}
	recommended = model.Recommendation{
		Action:      "Recommended",
		Description: "Solid offer that meets most quality criteria. A good candidate for promotion.",
		Priority:    PriorityMedium,
	}
	considerWithCaution = model.Recommendation{
		Action:      "Consider with Caution",
		Description: "Offer has notable weaknesses. Test with limited traffic before scaling.",
		Priority:    PriorityLow,
	}
	notRecommended = model.Recommendation{
		Action:      "Not Recommended",
		Description: "Offer fails key quality criteria. Look for better alternatives.",
		Priority:    PriorityAvoid,
	}
)

// RecommendationFor maps an overall score to its tier.
func RecommendationFor(overall int) model.Recommendation {
	switch {
	case overall >= 85:
		return highlyRecommended
	case overall >= 70:
		return recommended
	case overall >= 50:
		return considerWithCaution
	default:
		return notRecommended
	}
}
