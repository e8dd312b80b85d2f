package extractor

import "strings"

// DefaultCategory is used when no keyword matches.
const DefaultCategory = "Other"

type categoryKeyword struct {
	keyword  string
	category string
}

// categoryTable is matched top-down against the lower-cased product name.
var categoryTable = []categoryKeyword{
	{"keto", "Health & Fitness"},
	{"diet", "Health & Fitness"},
	{"weight loss", "Health & Fitness"},
	{"fitness", "Health & Fitness"},
	{"workout", "Health & Fitness"},
	{"yoga", "Health & Fitness"},
	{"supplement", "Health & Fitness"},
	{"crypto", "Finance"},
	{"trading", "Finance"},
	{"forex", "Finance"},
	{"invest", "Finance"},
	{"money", "Finance"},
	{"marketing", "Business"},
	{"affiliate", "Business"},
	{"business", "Business"},
	{"seo", "Business"},
	{"dating", "Relationships"},
	{"relationship", "Relationships"},
	{"dog", "Pets"},
	{"puppy", "Pets"},
	{"guitar", "Music"},
	{"piano", "Music"},
	{"language", "Education"},
	{"course", "Education"},
	{"software", "Software"},
	{"plugin", "Software"},
	{"wordpress", "Software"},
	{"headphone", "Electronics"},
	{"speaker", "Electronics"},
	{"laptop", "Electronics"},
	{"camera", "Electronics"},
	{"charger", "Electronics"},
	{"cooker", "Home & Kitchen"},
	{"kitchen", "Home & Kitchen"},
	{"blender", "Home & Kitchen"},
	{"coffee", "Home & Kitchen"},
	{"garden", "Home & Garden"},
	{"skin", "Beauty"},
	{"beauty", "Beauty"},
	{"hair", "Beauty"},
}

// Categorize returns the category of the first keyword contained in name.
func Categorize(name string) string {
	n := strings.ToLower(name)
	for _, kw := range categoryTable {
		if strings.Contains(n, kw.keyword) {
			return kw.category
		}
	}
	return DefaultCategory
}
