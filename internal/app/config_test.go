package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/network"
	"github.com/raysh454/offerlens/internal/sink"
	"github.com/raysh454/offerlens/internal/testutil"
	"github.com/raysh454/offerlens/internal/webclient"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// ─── LoadConfig ────────────────────────────────────────────────────────

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BatchSize != 5 || cfg.BatchDelay != time.Second || cfg.CacheSize != 100 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "offerlens.yaml", `
listen: ":9090"
batch_size: 3
batch_delay: 250ms
webclient:
  backend: chromedp
  timeout: 10s
sources:
  clickbank_api: http://localhost:9999
  amazon_base: http://localhost:9999
kafka:
  brokers: ["localhost:9092"]
redis:
  url: redis://localhost:6379/0
  prefix: test
  recent_limit: 20
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Listen != ":9090" || cfg.BatchSize != 3 || cfg.BatchDelay != 250*time.Millisecond {
		t.Errorf("top-level overlay failed: %+v", cfg)
	}
	if cfg.WebClient.Backend != webclient.BackendChromedp || cfg.WebClient.Timeout != 10*time.Second {
		t.Errorf("webclient overlay failed: %+v", cfg.WebClient)
	}
	if cfg.WebClient.UserAgent == "" {
		t.Error("unset webclient fields must keep their defaults")
	}
	if cfg.Sources.ClickBankAPI != "http://localhost:9999" || cfg.Sources.AmazonBase != "http://localhost:9999" {
		t.Errorf("sources overlay failed: %+v", cfg.Sources)
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.ResultTopic != sink.DefaultResultTopic {
		t.Errorf("kafka overlay failed: %+v", cfg.Kafka)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" || cfg.Redis.Prefix != "test" || cfg.Redis.RecentLimit != 20 {
		t.Errorf("redis overlay failed: %+v", cfg.Redis)
	}
	if cfg.CacheSize != 100 {
		t.Errorf("cache size default lost: %d", cfg.CacheSize)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfig(writeFile(t, "bad.yaml", "batch_size: [")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := LoadConfig(writeFile(t, "neg.yaml", "batch_size: -1")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestHistoryPath(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if p, err := cfg.HistoryPath(); err != nil || p != "" {
		t.Errorf("empty storage root: %q, %v", p, err)
	}

	cfg.StorageRoot = "/var/lib/offerlens"
	if p, _ := cfg.HistoryPath(); p != "/var/lib/offerlens/history.db" {
		t.Errorf("HistoryPath = %q", p)
	}

	cfg.StorageRoot = "~/offerlens"
	p, err := cfg.HistoryPath()
	if err != nil {
		t.Fatalf("HistoryPath: %v", err)
	}
	if strings.HasPrefix(p, "~") || !strings.HasSuffix(p, filepath.Join("offerlens", "history.db")) {
		t.Errorf("tilde not expanded: %q", p)
	}
}

// ─── Components ────────────────────────────────────────────────────────

func TestNewComponents_NothingConfigured(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.StorageRoot = ""

	c, err := NewComponents(context.Background(), cfg, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewComponents: %v", err)
	}
	defer c.Close()

	if c.Extractor.HasSource(network.ClickBank) || c.Extractor.HasSource(network.Amazon) {
		t.Error("expected no live sources")
	}
	if c.Store != nil || len(c.Sinks) != 0 {
		t.Errorf("expected no store or sinks, got %d sinks", len(c.Sinks))
	}
}

func TestNewComponents_LiveSourceAndHistoryEndToEnd(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/clickbank/products/ketoplan" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"product":{"name":"Keto Diet Blueprint","gravity":45,"commission":60,"refund_rate":0.05,"avg_earnings":30}}`))
	}))
	defer ts.Close()

	cfg := DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	cfg.Sources.ClickBankAPI = ts.URL

	c, err := NewComponents(context.Background(), cfg, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewComponents: %v", err)
	}
	if !c.Extractor.HasSource(network.ClickBank) || c.Store == nil || len(c.Sinks) != 1 {
		t.Fatalf("unexpected components: %+v", c)
	}

	o := NewOrchestrator(cfg, c, &testutil.DummyLogger{})
	defer o.Close()

	ctx := context.Background()
	res, err := o.ValidateOffer(ctx, "https://ketoplan.hop.clickbank.net/")
	if err != nil {
		t.Fatalf("ValidateOffer: %v", err)
	}
	if res.ProductInfo.Source != model.SourceLive || res.Score.Overall != 100 {
		t.Errorf("unexpected result: %+v", res)
	}

	hist, err := o.History(ctx, 5)
	if err != nil || len(hist) != 1 || hist[0].ID != res.ID {
		t.Fatalf("expected result persisted, got %d (%v)", len(hist), err)
	}
}

func TestComponents_CloseReportsFirstError(t *testing.T) {
	t.Parallel()
	c := &Components{}
	c.addCloser("ok", closerFunc(func() error { return nil }))
	c.addCloser("broken", closerFunc(func() error { return errors.New("boom") }))

	err := c.Close()
	if err == nil || !strings.Contains(err.Error(), "close broken") {
		t.Fatalf("expected close error, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
