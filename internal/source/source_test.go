package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raysh454/offerlens/internal/webclient"
)

func newClient(t *testing.T, ts *httptest.Server) webclient.WebClient {
	t.Helper()
	c, err := webclient.NewNetHTTPClient(webclient.Config{}, nil, ts.Client())
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	return c
}

// ─── ParseNumber / RawProduct ──────────────────────────────────────────

func TestParseNumber(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"$42.50", 42.5, true},
		{"1,234 ratings", 1234, true},
		{"4.5 out of 5 stars", 4.5, true},
		{"12%", 12, true},
		{"-3.2", -3.2, true},
		{"7.", 7, true},
		{"no digits", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseNumber(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRawProduct_Accessors(t *testing.T) {
	t.Parallel()
	raw := RawProduct{
		"name":  "  Keto Plan  ",
		"a":     float64(1.5),
		"b":     7,
		"c":     "3.25",
		"d":     true,
		"empty": nil,
	}
	if got := raw.String("name"); got != "Keto Plan" {
		t.Errorf("String(name) = %q", got)
	}
	if got := raw.String("missing"); got != "" {
		t.Errorf("String(missing) = %q", got)
	}
	for key, want := range map[string]float64{"a": 1.5, "b": 7, "c": 3.25} {
		if got, ok := raw.Number(key); !ok || got != want {
			t.Errorf("Number(%s) = %v, %v", key, got, ok)
		}
	}
	for _, key := range []string{"d", "empty", "missing"} {
		if _, ok := raw.Number(key); ok {
			t.Errorf("Number(%s) should not parse", key)
		}
	}
}

func TestFetchError_Unwraps(t *testing.T) {
	t.Parallel()
	err := error(&FetchError{Source: "clickbank", ProductID: "x", StatusCode: 404, Err: ErrUnexpectedStatus})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Error("FetchError must unwrap to its cause")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != 404 {
		t.Errorf("errors.As failed: %v", err)
	}
}

// ─── MarketplaceAPI ────────────────────────────────────────────────────

func TestMarketplaceAPI_FetchProduct(t *testing.T) {
	t.Parallel()
	var gotPath, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Keto Diet Blueprint","vendor":"ketoplan","gravity":87.5,"commission":"75","refund_rate":0.04,"avg_earnings":41.2}`))
	}))
	defer ts.Close()

	src := NewMarketplaceAPI(newClient(t, ts), ts.URL+"/", "clickbank", "secret", nil)
	raw, err := src.FetchProduct(context.Background(), "ketoplan")
	if err != nil {
		t.Fatalf("FetchProduct: %v", err)
	}

	if gotPath != "/clickbank/products/ketoplan" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if raw.String(FieldName) != "Keto Diet Blueprint" {
		t.Errorf("name = %q", raw.String(FieldName))
	}
	if v, ok := raw.Number(FieldGravity); !ok || v != 87.5 {
		t.Errorf("gravity = %v, %v", v, ok)
	}
	if v, ok := raw.Number(FieldCommission); !ok || v != 75 {
		t.Errorf("commission = %v, %v", v, ok)
	}
}

func TestMarketplaceAPI_UnwrapsProductEnvelope(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"product":{"name":"Wrapped","commission":50}}`))
	}))
	defer ts.Close()

	raw, err := NewMarketplaceAPI(newClient(t, ts), ts.URL, "clickbank", "", nil).FetchProduct(context.Background(), "w")
	if err != nil {
		t.Fatalf("FetchProduct: %v", err)
	}
	if raw.String(FieldName) != "Wrapped" {
		t.Errorf("expected envelope to be unwrapped, got %v", raw)
	}
}

func TestMarketplaceAPI_Failures(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"not found", http.StatusNotFound, `{}`, ErrUnexpectedStatus},
		{"server error", http.StatusInternalServerError, ``, ErrUnexpectedStatus},
		{"missing name", http.StatusOK, `{"commission":50}`, ErrIncompleteProduct},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			_, err := NewMarketplaceAPI(newClient(t, ts), ts.URL, "clickbank", "", nil).FetchProduct(context.Background(), "p")
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if !errors.Is(err, tc.target) {
				t.Errorf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestMarketplaceAPI_BadJSON(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer ts.Close()

	_, err := NewMarketplaceAPI(newClient(t, ts), ts.URL, "clickbank", "", nil).FetchProduct(context.Background(), "p")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestMarketplaceAPI_TransportError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := newClient(t, ts)
	ts.Close()

	_, err := NewMarketplaceAPI(client, ts.URL, "clickbank", "", nil).FetchProduct(context.Background(), "p")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != 0 {
		t.Fatalf("expected transport FetchError, got %v", err)
	}
}
