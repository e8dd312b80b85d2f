package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/webclient"
)

// Associates commission rates (percent) by top-level store category.
var amazonCommissionRates = []struct {
	category string
	rate     float64
}{
	{"luxury beauty", 10},
	{"amazon games", 20},
	{"digital music", 5},
	{"physical books", 4.5},
	{"books", 4.5},
	{"kitchen", 4.5},
	{"automotive", 4.5},
	{"apparel", 4},
	{"jewelry", 4},
	{"shoes", 4},
	{"toys", 3},
	{"furniture", 3},
	{"home", 3},
	{"beauty", 3},
	{"sports", 3},
	{"outdoors", 3},
	{"health", 1},
	{"personal care", 1},
	{"computers", 2.5},
	{"electronics", 2.5},
	{"video games", 1},
	{"grocery", 1},
}

// DefaultAmazonCommission applies when no category matches.
const DefaultAmazonCommission = 4.0

// AmazonCommissionRate returns the commission percent for a store category.
func AmazonCommissionRate(category string) float64 {
	c := strings.ToLower(category)
	for _, r := range amazonCommissionRates {
		if strings.Contains(c, r.category) {
			return r.rate
		}
	}
	return DefaultAmazonCommission
}

// AmazonPage scrapes {base}/dp/{asin} product pages. Pass a chromedp
// webclient when the storefront renders ratings client-side.
type AmazonPage struct {
	baseURL string
	client  webclient.WebClient
	logger  logging.Logger
}

func NewAmazonPage(client webclient.WebClient, baseURL string, logger logging.Logger) *AmazonPage {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &AmazonPage{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.With(logging.Field{Key: "component", Value: "amazon_page_source"}),
	}
}

func (a *AmazonPage) FetchProduct(ctx context.Context, asin string) (RawProduct, error) {
	fail := func(status int, err error) (RawProduct, error) {
		return nil, &FetchError{Source: "amazon", ProductID: asin, StatusCode: status, Err: err}
	}

	resp, err := a.client.Get(ctx, a.baseURL+"/dp/"+url.PathEscape(asin))
	if err != nil {
		return fail(0, err)
	}
	if !resp.OK() {
		return fail(resp.StatusCode, ErrUnexpectedStatus)
	}

	raw, err := ParseAmazonPage(resp.Body)
	if err != nil {
		a.logger.Warn("could not parse product page",
			logging.Field{Key: "asin", Value: asin},
			logging.Field{Key: "error", Value: err})
		return fail(resp.StatusCode, err)
	}
	return raw, nil
}

// ParseAmazonPage extracts title, byline, rating, review count and category
// from a product page. Commission is looked up from the category.
func ParseAmazonPage(body []byte) (RawProduct, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	raw := RawProduct{}

	title := collapseSpace(doc.Find("#productTitle").First().Text())
	if title == "" {
		return nil, fmt.Errorf("%w: missing product title", ErrIncompleteProduct)
	}
	raw[FieldName] = title

	if byline := collapseSpace(doc.Find("#bylineInfo").First().Text()); byline != "" {
		byline = strings.TrimPrefix(byline, "Visit the ")
		byline = strings.TrimSuffix(byline, " Store")
		byline = strings.TrimPrefix(byline, "Brand: ")
		raw[FieldVendor] = byline
	}

	ratingText, ok := doc.Find("#acrPopover").First().Attr("title")
	if !ok || strings.TrimSpace(ratingText) == "" {
		ratingText = doc.Find("#acrPopover .a-icon-alt").First().Text()
	}
	if v, ok := ParseNumber(ratingText); ok {
		raw[FieldRating] = v
	}

	if v, ok := ParseNumber(doc.Find("#acrCustomerReviewText").First().Text()); ok {
		raw[FieldReviewCount] = v
	}

	crumbs := doc.Find("#wayfinding-breadcrumbs_feature_div li a")
	if crumbs.Length() > 0 {
		top := collapseSpace(crumbs.First().Text())
		raw[FieldCategory] = top
		raw[FieldCommission] = AmazonCommissionRate(top)
	} else {
		raw[FieldCommission] = DefaultAmazonCommission
	}

	return raw, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
