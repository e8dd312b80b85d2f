package app

import (
	"context"
	"fmt"
	"io"

	"github.com/raysh454/offerlens/internal/extractor"
	"github.com/raysh454/offerlens/internal/history"
	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/network"
	"github.com/raysh454/offerlens/internal/sink"
	"github.com/raysh454/offerlens/internal/source"
	"github.com/raysh454/offerlens/internal/webclient"
)

// Components are the collaborators an Orchestrator validates with.
type Components struct {
	Catalog   *network.Catalog
	Extractor *extractor.Extractor

	// Sinks receive every result and failure.
	Sinks sink.Multi

	// Store, when set, backs History and Export instead of the cache.
	Store HistoryStore

	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// HistoryStore is the read side of persistent validation history.
type HistoryStore interface {
	Recent(ctx context.Context, limit int) ([]*model.ValidationResult, error)
	Latest(ctx context.Context, url string) (*model.ValidationResult, error)
	ByURL(ctx context.Context, url string, limit int) ([]*model.ValidationResult, error)
	Errors(ctx context.Context, limit int) ([]model.ErrorRecord, error)
}

// NewComponents builds live sources, history and sinks from cfg. Anything
// left unconfigured is simply skipped.
func NewComponents(ctx context.Context, cfg *Config, logger logging.Logger) (*Components, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	c := &Components{Catalog: network.DefaultCatalog()}
	opts := []extractor.Option{extractor.WithLogger(logger)}

	if cfg.Sources.ClickBankAPI != "" {
		wc, err := webclient.NewWebClient(cfg.WebClient, logger)
		if err != nil {
			return nil, fmt.Errorf("new clickbank webclient: %w", err)
		}
		c.addCloser("clickbank webclient", wc)
		api := source.NewMarketplaceAPI(wc, cfg.Sources.ClickBankAPI, string(network.ClickBank), cfg.Sources.APIKey, logger)
		opts = append(opts, extractor.WithSource(network.ClickBank, api))
	}

	if cfg.Sources.AmazonBase != "" {
		wcCfg := cfg.WebClient
		if cfg.Sources.AmazonBackend != "" {
			wcCfg.Backend = cfg.Sources.AmazonBackend
		}
		wc, err := webclient.NewWebClient(wcCfg, logger)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("new amazon webclient: %w", err)
		}
		c.addCloser("amazon webclient", wc)
		opts = append(opts, extractor.WithSource(network.Amazon, source.NewAmazonPage(wc, cfg.Sources.AmazonBase, logger)))
	}

	c.Extractor = extractor.New(opts...)

	dbPath, err := cfg.HistoryPath()
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if dbPath != "" {
		store, err := history.OpenSQLiteStore(dbPath, logger)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		c.addCloser("history store", store)
		c.Store = store
		c.Sinks = append(c.Sinks, sink.NewStore(store))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		k, err := sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.ResultTopic, cfg.Kafka.ErrorTopic)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("new kafka sink: %w", err)
		}
		c.addCloser("kafka sink", k)
		c.Sinks = append(c.Sinks, k)
	}

	if cfg.Redis.URL != "" {
		client, err := sink.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.addCloser("redis client", client)
		c.Sinks = append(c.Sinks, sink.NewRedis(client, cfg.Redis.RedisConfig))
	}

	logger.Info("components ready",
		logging.Field{Key: "clickbank_live", Value: c.Extractor.HasSource(network.ClickBank)},
		logging.Field{Key: "amazon_live", Value: c.Extractor.HasSource(network.Amazon)},
		logging.Field{Key: "history", Value: dbPath},
		logging.Field{Key: "sinks", Value: len(c.Sinks)})

	return c, nil
}

func (c *Components) addCloser(name string, closer io.Closer) {
	c.closers = append(c.closers, namedCloser{name: name, c: closer})
}

// Close releases resources in reverse order of creation and returns the
// first error.
func (c *Components) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		nc := c.closers[i]
		if err := nc.c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", nc.name, err)
		}
	}
	c.closers = nil
	return firstErr
}
