package history

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/offerlens/internal/model"
)

// MetricDelta is the change of one checked metric between two results.
type MetricDelta struct {
	Metric     model.Metric `json:"metric"`
	Base       *float64     `json:"base,omitempty"`
	Head       *float64     `json:"head,omitempty"`
	BasePassed bool         `json:"base_passed"`
	HeadPassed bool         `json:"head_passed"`
}

// Chunk is one added or removed span of the check summary.
type Chunk struct {
	Type    string `json:"type"` // "added" or "removed"
	Content string `json:"content"`
}

// Change describes how a re-validated offer moved.
type Change struct {
	URL          string        `json:"url"`
	BaseID       string        `json:"base_id"`
	HeadID       string        `json:"head_id"`
	BaseScore    int           `json:"base_score"`
	HeadScore    int           `json:"head_score"`
	Delta        int           `json:"delta"`
	BaseGrade    string        `json:"base_grade"`
	HeadGrade    string        `json:"head_grade"`
	MetricDeltas []MetricDelta `json:"metric_deltas"`
	Chunks       []Chunk       `json:"chunks"`
}

// GradeChanged reports a letter grade transition.
func (c *Change) GradeChanged() bool {
	return c.BaseGrade != c.HeadGrade
}

// Unchanged reports that neither score nor any check moved.
func (c *Change) Unchanged() bool {
	return c.Delta == 0 && !c.GradeChanged() && len(c.MetricDeltas) == 0 && len(c.Chunks) == 0
}

var metricOrder = []model.Metric{
	model.MetricGravity,
	model.MetricCommission,
	model.MetricRefundRate,
	model.MetricAvgEarnings,
	model.MetricRating,
	model.MetricReviewCount,
	model.MetricConversionRate,
}

// Compare returns the change from base to head. Either may be nil.
func Compare(base, head *model.ValidationResult) *Change {
	c := &Change{
		MetricDeltas: []MetricDelta{},
		Chunks:       []Chunk{},
	}
	if base != nil {
		c.URL = base.URL
		c.BaseID = base.ID
		c.BaseScore = base.Score.Overall
		c.BaseGrade = base.Score.Grade
	}
	if head != nil {
		c.URL = head.URL
		c.HeadID = head.ID
		c.HeadScore = head.Score.Overall
		c.HeadGrade = head.Score.Grade
	}
	c.Delta = c.HeadScore - c.BaseScore

	for _, m := range metricOrder {
		bc, inBase := checkOf(base, m)
		hc, inHead := checkOf(head, m)
		if !inBase && !inHead {
			continue
		}
		if inBase && inHead && bc.Value == hc.Value && bc.Passed == hc.Passed {
			continue
		}
		d := MetricDelta{Metric: m}
		if inBase {
			v := bc.Value
			d.Base = &v
			d.BasePassed = bc.Passed
		}
		if inHead {
			v := hc.Value
			d.Head = &v
			d.HeadPassed = hc.Passed
		}
		c.MetricDeltas = append(c.MetricDeltas, d)
	}

	c.Chunks = diffSummaries(summarize(base), summarize(head))
	return c
}

func checkOf(r *model.ValidationResult, m model.Metric) (model.CheckResult, bool) {
	if r == nil {
		return model.CheckResult{}, false
	}
	cr, ok := r.Validation.Checks[m]
	return cr, ok
}

// summarize renders one line per check plus the score line.
func summarize(r *model.ValidationResult) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "score %d %s\n", r.Score.Overall, r.Score.Grade)
	for _, m := range metricOrder {
		cr, ok := r.Validation.Checks[m]
		if !ok {
			continue
		}
		status := "fail"
		if cr.Passed {
			status = "pass"
		}
		fmt.Fprintf(&b, "%s %g / %g %s\n", m, cr.Value, cr.Threshold, status)
	}
	return b.String()
}

func diffSummaries(base, head string) []Chunk {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(base, head)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	chunks := []Chunk{}
	for _, d := range diffs {
		var typ string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = "added"
		case diffmatchpatch.DiffDelete:
			typ = "removed"
		default:
			continue
		}
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		chunks = append(chunks, Chunk{Type: typ, Content: d.Text})
	}
	return chunks
}
