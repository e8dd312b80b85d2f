package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/utils"
)

// Connect accepts either a redis:// URL or a bare host:port.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisConfig tunes the Redis sink.
type RedisConfig struct {
	Prefix      string        `yaml:"prefix"`
	RecentLimit int64         `yaml:"recent_limit"`
	TTL         time.Duration `yaml:"ttl"`
}

// Redis keeps the latest result per offer plus bounded lists of recent
// results and failures. URLs that differ only in tracking parameters share
// the latest-result key.
type Redis struct {
	client redis.Cmdable
	cfg    RedisConfig
}

func NewRedis(client redis.Cmdable, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "offerlens"
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 100
	}
	return &Redis{client: client, cfg: cfg}
}

func (r *Redis) LatestKey(url string) string {
	return r.cfg.Prefix + ":latest:" + utils.OfferKey(url)
}
func (r *Redis) RecentKey() string { return r.cfg.Prefix + ":recent" }
func (r *Redis) ErrorsKey() string { return r.cfg.Prefix + ":errors" }

func (r *Redis) Publish(ctx context.Context, res *model.ValidationResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.LatestKey(res.URL), payload, r.cfg.TTL)
		p.LPush(ctx, r.RecentKey(), payload)
		p.LTrim(ctx, r.RecentKey(), 0, r.cfg.RecentLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Redis) PublishError(ctx context.Context, rec model.ErrorRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal error record: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, r.ErrorsKey(), payload)
		p.LTrim(ctx, r.ErrorsKey(), 0, r.cfg.RecentLimit-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish error: %w", err)
	}
	return nil
}
