package model

// Metric names one observable property of an affiliate offer.
type Metric string

const (
	MetricGravity        Metric = "gravity"
	MetricCommission     Metric = "commission"
	MetricRefundRate     Metric = "refundRate"
	MetricAvgEarnings    Metric = "avgEarnings"
	MetricRating         Metric = "rating"
	MetricReviewCount    Metric = "reviewCount"
	MetricConversionRate Metric = "conversionRate"
)

// ProductSource says where a ProductInfo's numbers came from.
type ProductSource string

const (
	SourceLive      ProductSource = "live"
	SourceSynthetic ProductSource = "synthetic"
)

// ProductInfo is a sparse description of one affiliate offer.
// A metric missing from Metrics is not applicable to the offer; it is not a failure.
type ProductInfo struct {
	// ID is the network-specific product identifier (ASIN, vendor id, last path segment).
	ID string `json:"id"`

	// Name is the human product name.
	Name string `json:"name"`

	// Category is derived from Name by keyword lookup ("Other" when nothing matches).
	Category string `json:"category"`

	// Network is the identifier of the network the offer belongs to.
	Network string `json:"network"`

	// Vendor is the merchant or seller, when known.
	Vendor string `json:"vendor,omitempty"`

	// Source is "live" when a product-data collaborator answered, "synthetic" otherwise.
	Source ProductSource `json:"source"`

	// Metrics holds the observed values keyed by metric.
	Metrics map[Metric]float64 `json:"metrics"`
}

// Metric returns the value for m and whether the offer carries it.
func (p *ProductInfo) Metric(m Metric) (float64, bool) {
	if p == nil || p.Metrics == nil {
		return 0, false
	}
	v, ok := p.Metrics[m]
	return v, ok
}

// SetMetric records a value, allocating the map on first use.
func (p *ProductInfo) SetMetric(m Metric, v float64) {
	if p.Metrics == nil {
		p.Metrics = make(map[Metric]float64)
	}
	p.Metrics[m] = v
}
