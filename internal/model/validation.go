package model

import "time"

// CheckResult is one evaluated rule.
type CheckResult struct {
	Passed    bool    `json:"passed"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Weight    float64 `json:"weight"`
}

// Issue is a failed check reported as either a warning or an error.
type Issue struct {
	Metric  Metric `json:"metric"`
	Message string `json:"message"`
}

// ValidationOutcome aggregates the checks run against one offer.
// Passed is false exactly when Errors is non-empty; warnings never flip it.
type ValidationOutcome struct {
	Passed   bool                   `json:"passed"`
	Checks   map[Metric]CheckResult `json:"checks"`
	Warnings []Issue                `json:"warnings"`
	Errors   []Issue                `json:"errors"`
}

// Recommendation is one of four ordered tiers derived from the overall score.
type Recommendation struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// Score is derived from a ValidationOutcome.
type Score struct {
	// Overall is the weighted score in [0, 100].
	Overall int `json:"overall"`

	// Grade is a letter grade, a pure function of Overall.
	Grade string `json:"grade"`

	Recommendation Recommendation `json:"recommendation"`
}

// ValidationResult is the record produced for one successfully validated URL.
type ValidationResult struct {
	ID             string            `json:"id"`
	URL            string            `json:"url"`
	Network        string            `json:"network"`
	ProductInfo    ProductInfo       `json:"productInfo"`
	Validation     ValidationOutcome `json:"validation"`
	Score          Score             `json:"score"`
	Timestamp      time.Time         `json:"timestamp"`
	ResponseTimeMS int64             `json:"responseTime"`
}

// ErrorRecord is emitted instead of a ValidationResult when validation fails.
type ErrorRecord struct {
	URL       string    `json:"url"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// BulkItem is one positional entry of a bulk validation run.
// Exactly one of Result and Error is set.
type BulkItem struct {
	URL       string            `json:"url"`
	Result    *ValidationResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Failed reports whether the item carries an inline error.
func (b BulkItem) Failed() bool {
	return b.Error != ""
}
