package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/webclient"
)

// MarketplaceAPI reads product records from a JSON endpoint laid out as
// {base}/{network}/products/{id}.
type MarketplaceAPI struct {
	baseURL string
	network string
	apiKey  string
	client  webclient.WebClient
	logger  logging.Logger
}

// NewMarketplaceAPI returns a source for one network's product API.
// apiKey, when set, is sent as a bearer token.
func NewMarketplaceAPI(client webclient.WebClient, baseURL, network, apiKey string, logger logging.Logger) *MarketplaceAPI {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &MarketplaceAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		network: network,
		apiKey:  apiKey,
		client:  client,
		logger: logger.With(
			logging.Field{Key: "component", Value: "marketplace_source"},
			logging.Field{Key: "network", Value: network}),
	}
}

func (m *MarketplaceAPI) endpoint(id string) string {
	return fmt.Sprintf("%s/%s/products/%s", m.baseURL, url.PathEscape(m.network), url.PathEscape(id))
}

func (m *MarketplaceAPI) FetchProduct(ctx context.Context, id string) (RawProduct, error) {
	fail := func(status int, err error) (RawProduct, error) {
		return nil, &FetchError{Source: m.network, ProductID: id, StatusCode: status, Err: err}
	}

	req := &webclient.Request{
		Method:  http.MethodGet,
		URL:     m.endpoint(id),
		Headers: http.Header{"Accept": []string{"application/json"}},
	}
	if m.apiKey != "" {
		req.Headers.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return fail(0, err)
	}
	if !resp.OK() {
		m.logger.Warn("marketplace returned non-2xx",
			logging.Field{Key: "product_id", Value: id},
			logging.Field{Key: "status", Value: resp.StatusCode})
		return fail(resp.StatusCode, ErrUnexpectedStatus)
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode product json: %w", err))
	}

	// Some APIs wrap the record as {"product": {...}}.
	if inner, ok := payload["product"].(map[string]any); ok {
		payload = inner
	}

	raw := RawProduct(payload)
	if raw.String(FieldName) == "" {
		return fail(resp.StatusCode, fmt.Errorf("%w: missing %s", ErrIncompleteProduct, FieldName))
	}

	m.logger.Debug("fetched product", logging.Field{Key: "product_id", Value: id})
	return raw, nil
}
