package demoserver

// ProductVersion is one snapshot of a product's listing. Zero-valued metrics
// are left out of the served record.
type ProductVersion struct {
	Name           string
	Vendor         string
	Category       string
	Gravity        float64
	Commission     float64
	RefundRate     float64
	AvgEarnings    float64
	ConversionRate float64
	Rating         float64
	ReviewCount    int
}

// ProductDefinition holds all versions of a single product.
type ProductDefinition struct {
	// Network is "amazon" for storefront pages, otherwise the API segment.
	Network     string
	ID          string
	Description string
	Versions    map[int]ProductVersion
}

// Key identifies a product across networks.
func (p ProductDefinition) Key() string {
	return p.Network + "/" + p.ID
}

func (p ProductDefinition) maxVersion() int {
	maxV := 1
	for v := range p.Versions {
		if v > maxV {
			maxV = v
		}
	}
	return maxV
}

// version returns v, or the closest lower version that exists.
func (p ProductDefinition) version(v int) ProductVersion {
	for ; v >= 1; v-- {
		if pv, ok := p.Versions[v]; ok {
			return pv
		}
	}
	return p.Versions[1]
}

// GetAllProducts returns all demo product definitions.
func GetAllProducts() []ProductDefinition {
	return []ProductDefinition{
		{
			Network:     "clickbank",
			ID:          "ketoplan",
			Description: "Strong ClickBank offer that degrades after a vendor change",
			Versions: map[int]ProductVersion{
				1: {
					Name:        "Keto Diet Blueprint",
					Vendor:      "ketoplan",
					Gravity:     45,
					Commission:  60,
					RefundRate:  0.05,
					AvgEarnings: 30,
				},
				2: {
					Name:        "Keto Diet Blueprint",
					Vendor:      "ketoplan",
					Gravity:     32,
					Commission:  40,
					RefundRate:  0.09,
					AvgEarnings: 27.5,
				},
				3: {
					Name:        "Keto Diet Blueprint (Relaunch)",
					Vendor:      "ketoplan",
					Gravity:     8,
					Commission:  35,
					RefundRate:  0.22,
					AvgEarnings: 12,
				},
			},
		},
		{
			Network:     "clickbank",
			ID:          "forexpro",
			Description: "Borderline trading course with a high refund rate",
			Versions: map[int]ProductVersion{
				1: {
					Name:        "Forex Pro Signals Course",
					Vendor:      "forexpro",
					Gravity:     22,
					Commission:  55,
					RefundRate:  0.18,
					AvgEarnings: 41,
				},
				2: {
					Name:        "Forex Pro Signals Course",
					Vendor:      "forexpro",
					Gravity:     61,
					Commission:  75,
					RefundRate:  0.07,
					AvgEarnings: 58,
				},
			},
		},
		{
			Network:     "amazon",
			ID:          "B08N5WRWNW",
			Description: "Smart speaker whose reviews collapse in version 2",
			Versions: map[int]ProductVersion{
				1: {
					Name:        "Echo Dot (4th Gen) Smart Speaker",
					Vendor:      "Amazon",
					Category:    "Electronics",
					Rating:      4.7,
					ReviewCount: 412938,
				},
				2: {
					Name:        "Echo Dot (4th Gen) Smart Speaker",
					Vendor:      "Amazon",
					Category:    "Electronics",
					Rating:      3.6,
					ReviewCount: 87,
				},
			},
		},
		{
			Network:     "amazon",
			ID:          "B07FZ8S74R",
			Description: "Kitchen appliance with steady metrics",
			Versions: map[int]ProductVersion{
				1: {
					Name:        "Instant Pot Duo 7-in-1 Electric Pressure Cooker",
					Vendor:      "Instant Pot",
					Category:    "Home & Kitchen",
					Rating:      4.6,
					ReviewCount: 158203,
				},
			},
		},
	}
}
