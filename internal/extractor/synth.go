package extractor

import (
	"math"
	"math/rand"

	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/network"
)

var syntheticNames = map[network.ID][]string{
	network.ClickBank: {
		"Keto Diet Blueprint",
		"Forex Trading Mastery",
		"Affiliate Marketing Accelerator",
		"Yoga Burn Challenge",
		"Dog Training Secrets",
		"Guitar Lessons Online",
	},
	network.Amazon: {
		"Wireless Noise Cancelling Headphones",
		"Electric Pressure Cooker 6 Quart",
		"Portable Bluetooth Speaker",
		"Stainless Steel Coffee Grinder",
		"Vitamin C Skin Serum",
		"USB-C Fast Charger",
	},
	network.JVZoo: {
		"SEO Rank Booster Plugin",
		"WordPress Funnel Builder Software",
		"Video Marketing Toolkit",
		"Crypto Profit Signals",
		"Email List Business Course",
	},
	network.ShareASale: {
		"Organic Garden Starter Kit",
		"Premium Hair Care Bundle",
		"Online Language Course",
		"Home Fitness Resistance Bands",
		"Artisan Coffee Subscription",
	},
}

// uniform returns a value in [lo, hi) rounded to places decimals.
func uniform(r *rand.Rand, lo, hi float64, places int) float64 {
	v := lo + r.Float64()*(hi-lo)
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

type metricRange struct {
	metric model.Metric
	lo, hi float64
	places int
}

// syntheticRanges straddle each network's thresholds so demo runs produce a
// mix of passing and failing checks.
var syntheticRanges = map[network.ID][]metricRange{
	network.ClickBank: {
		{model.MetricGravity, 5, 150, 1},
		{model.MetricCommission, 40, 75, 0},
		{model.MetricRefundRate, 0.02, 0.25, 2},
		{model.MetricAvgEarnings, 10, 80, 2},
	},
	network.Amazon: {
		{model.MetricCommission, 1, 10, 1},
		{model.MetricRating, 3, 5, 1},
		{model.MetricReviewCount, 10, 5000, 0},
	},
	network.JVZoo: {
		{model.MetricCommission, 40, 100, 0},
		{model.MetricRefundRate, 0.02, 0.15, 2},
		{model.MetricConversionRate, 0.005, 0.05, 3},
	},
	network.ShareASale: {
		{model.MetricCommission, 5, 30, 1},
		{model.MetricConversionRate, 0.005, 0.03, 3},
		{model.MetricAvgEarnings, 5, 40, 2},
	},
}

// synthesize builds demo data for id. The caller holds the rand lock.
func synthesize(r *rand.Rand, id network.ID, productID string) *model.ProductInfo {
	info := &model.ProductInfo{
		ID:      productID,
		Network: string(id),
		Source:  model.SourceSynthetic,
	}

	names := syntheticNames[id]
	if len(names) > 0 {
		info.Name = names[r.Intn(len(names))]
	} else {
		info.Name = "Product " + productID
	}
	if id == network.ClickBank {
		info.Vendor = productID
	}

	for _, mr := range syntheticRanges[id] {
		info.SetMetric(mr.metric, uniform(r, mr.lo, mr.hi, mr.places))
	}
	if info.Metrics == nil {
		info.Metrics = map[model.Metric]float64{}
	}
	info.Category = Categorize(info.Name)
	return info
}
