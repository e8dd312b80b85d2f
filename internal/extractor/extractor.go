// Package extractor turns an offer URL into a ProductInfo record, either
// from a live product-data source or, where none is configured, from
// synthetic demo data.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/network"
	"github.com/raysh454/offerlens/internal/source"
)

var ErrInvalidProductURL = errors.New("invalid product url")

var asinPattern = regexp.MustCompile(`/dp/([A-Za-z0-9]{10})`)

// strategy describes how one network is extracted.
type strategy struct {
	productID func(u *url.URL) (string, error)

	// live networks use a registered source when one exists.
	live bool
}

var strategies = map[network.ID]strategy{
	network.ClickBank:  {productID: lastSegmentID, live: true},
	network.Amazon:     {productID: asinID, live: true},
	network.JVZoo:      {productID: lastSegmentID},
	network.ShareASale: {productID: lastSegmentID},
}

// IsLive reports whether id has a live integration.
func IsLive(id network.ID) bool {
	return strategies[id].live
}

func asinID(u *url.URL) (string, error) {
	m := asinPattern.FindStringSubmatch(u.EscapedPath())
	if m == nil {
		return "", fmt.Errorf("%w: no ASIN in %q", ErrInvalidProductURL, u.String())
	}
	return m[1], nil
}

// lastSegmentID uses the last non-empty path segment. Hoplinks carry the
// vendor in the host instead, so the leftmost host label is the fallback.
func lastSegmentID(u *url.URL) (string, error) {
	segs := strings.Split(u.Path, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segs[i]); s != "" {
			return s, nil
		}
	}
	host := u.Hostname()
	if label, _, _ := strings.Cut(host, "."); label != "" {
		return strings.ToLower(label), nil
	}
	return "", fmt.Errorf("%w: no product id in %q", ErrInvalidProductURL, u.String())
}

// ProductID parses rawURL with the strategy for id.
func ProductID(rawURL string, id network.ID) (string, error) {
	st, ok := strategies[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", network.ErrNetworkNotSupported, id)
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", &network.ParseError{URL: rawURL, Err: err}
	}
	return st.productID(u)
}

type Option func(*Extractor)

// WithRand injects the synthesizer's random source.
func WithRand(r *rand.Rand) Option {
	return func(e *Extractor) { e.rng = r }
}

// WithSource registers a live source for a network.
func WithSource(id network.ID, s source.Source) Option {
	return func(e *Extractor) {
		if s != nil {
			e.sources[id] = s
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Extractor is safe for concurrent use.
type Extractor struct {
	sources map[network.ID]source.Source
	logger  logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		sources: make(map[network.ID]source.Source),
		logger:  logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e.logger = e.logger.With(logging.Field{Key: "component", Value: "extractor"})
	return e
}

// HasSource reports whether a live source is registered for id.
func (e *Extractor) HasSource(id network.ID) bool {
	_, ok := e.sources[id]
	return ok
}

// Extract derives the product record for rawURL on network rs.
//
// A live network with a registered source never falls back to synthetic
// data: source failures surface as *source.FetchError.
func (e *Extractor) Extract(ctx context.Context, rawURL string, rs network.RuleSet) (*model.ProductInfo, error) {
	st, ok := strategies[rs.ID]
	if !ok {
		return nil, fmt.Errorf("%w: no extraction strategy for %s", network.ErrNetworkNotSupported, rs.ID)
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, &network.ParseError{URL: rawURL, Err: err}
	}
	productID, err := st.productID(u)
	if err != nil {
		return nil, err
	}

	if st.live {
		if src, ok := e.sources[rs.ID]; ok {
			return e.fetchLive(ctx, src, rs.ID, productID)
		}
		e.logger.Info("no live source configured, synthesizing product data",
			logging.Field{Key: "network", Value: string(rs.ID)},
			logging.Field{Key: "product_id", Value: productID})
	}

	e.rngMu.Lock()
	info := synthesize(e.rng, rs.ID, productID)
	e.rngMu.Unlock()
	return info, nil
}

func (e *Extractor) fetchLive(ctx context.Context, src source.Source, id network.ID, productID string) (*model.ProductInfo, error) {
	raw, err := src.FetchProduct(ctx, productID)
	if err != nil {
		var fe *source.FetchError
		if !errors.As(err, &fe) {
			err = &source.FetchError{Source: string(id), ProductID: productID, Err: err}
		}
		e.logger.Warn("live product fetch failed",
			logging.Field{Key: "network", Value: string(id)},
			logging.Field{Key: "product_id", Value: productID},
			logging.Field{Key: "error", Value: err})
		return nil, err
	}
	return FromRaw(raw, id, productID), nil
}

var rawMetricFields = []struct {
	field  string
	metric model.Metric
}{
	{source.FieldGravity, model.MetricGravity},
	{source.FieldCommission, model.MetricCommission},
	{source.FieldRefundRate, model.MetricRefundRate},
	{source.FieldAvgEarnings, model.MetricAvgEarnings},
	{source.FieldRating, model.MetricRating},
	{source.FieldReviewCount, model.MetricReviewCount},
	{source.FieldConversionRate, model.MetricConversionRate},
}

// FromRaw maps a raw source record. Fields the record lacks stay absent.
func FromRaw(raw source.RawProduct, id network.ID, productID string) *model.ProductInfo {
	info := &model.ProductInfo{
		ID:      productID,
		Name:    raw.String(source.FieldName),
		Network: string(id),
		Vendor:  raw.String(source.FieldVendor),
		Source:  model.SourceLive,
		Metrics: map[model.Metric]float64{},
	}
	if info.Name == "" {
		info.Name = "Product " + productID
	}
	for _, f := range rawMetricFields {
		if v, ok := raw.Number(f.field); ok {
			info.SetMetric(f.metric, v)
		}
	}
	info.Category = Categorize(info.Name)
	return info
}
