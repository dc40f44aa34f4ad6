package collector

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRequestInterval = 100 * time.Millisecond
	minRequestInterval     = 50 * time.Millisecond
)

// CrawlerConfig 批量采集参数。RequestInterval 按原值使用，0 表示只保留 50ms 下限。
type CrawlerConfig struct {
	Mode            KeyMode
	RequestInterval time.Duration
}

// DefaultCrawlerConfig unique 模式，源间隔 100ms
func DefaultCrawlerConfig() CrawlerConfig {
	return CrawlerConfig{Mode: KeyModeUnique, RequestInterval: defaultRequestInterval}
}

// Crawler 按输入顺序串行采集数据源并汇总成 CrawlResult，源与源之间带抖动间隔
type Crawler struct {
	fetcher  SourceFetcher
	mode     KeyMode
	interval time.Duration
	logger   *zap.Logger

	sleep sleepFunc
	rng   *rand.Rand
}

func NewCrawler(fetcher SourceFetcher, cfg CrawlerConfig, logger *zap.Logger) *Crawler {
	if cfg.Mode == "" {
		cfg.Mode = KeyModeUnique
	}
	if cfg.RequestInterval < 0 {
		cfg.RequestInterval = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		fetcher:  fetcher,
		mode:     cfg.Mode,
		interval: cfg.RequestInterval,
		logger:   logger,
		sleep:    sleepContext,
		rng:      newRand(),
	}
}

// Mode 当前使用的键模式
func (c *Crawler) Mode() KeyMode {
	return c.mode
}

// Crawl 执行一次批量采集。
// 每个请求的数据源最终只会出现在 Results 或 Failed 之一；重复的 ID 只采集第一次。
// 单个数据源失败不会中断整批，ctx 取消后剩余数据源直接记为失败。
func (c *Crawler) Crawl(ctx context.Context, reqs []SourceRequest) *CrawlResult {
	result := newCrawlResult(c.mode)
	sources := c.dedupe(reqs)

	c.logger.Info("crawl start", zap.Int("sources", len(sources)), zap.String("mode", string(c.mode)))

	for i, req := range sources {
		result.Names[req.ID] = req.DisplayAlias()
		result.order = append(result.order, req.ID)

		log := c.logger.With(zap.String("source_id", req.ID))
		if err := ctx.Err(); err != nil {
			log.Warn("crawl cancelled, mark source failed", zap.Error(err))
			result.Failed = append(result.Failed, req.ID)
			continue
		}

		items, err := c.crawlOne(ctx, req)
		if err != nil {
			log.Warn("source failed", zap.Error(err))
			result.Failed = append(result.Failed, req.ID)
		} else {
			log.Debug("source normalized", zap.Int("items", len(items)))
			result.Results[req.ID] = items
		}

		if i < len(sources)-1 {
			// 取消时 sleep 立即返回，下一轮会把剩余数据源记为失败
			_ = c.sleep(ctx, c.pacing())
		}
	}

	c.logger.Info("crawl done",
		zap.Strings("succeeded", result.Succeeded()),
		zap.Strings("failed", result.Failed),
	)
	return result
}

func (c *Crawler) crawlOne(ctx context.Context, req SourceRequest) (map[string]NormalizedItem, error) {
	payload, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("no payload")
	}
	items, err := normalizePayload(payload.Body, c.mode)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", req.ID, err)
	}
	return items, nil
}

func (c *Crawler) dedupe(reqs []SourceRequest) []SourceRequest {
	out := make([]SourceRequest, 0, len(reqs))
	seen := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		if _, dup := seen[r.ID]; dup {
			c.logger.Warn("duplicate source id ignored", zap.String("source_id", r.ID))
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// pacing 源与源之间的间隔：interval + [-10, 20]ms 抖动，且不少于 50ms
func (c *Crawler) pacing() time.Duration {
	d := c.interval + time.Duration(uniformInt(c.rng, -10, 20))*time.Millisecond
	return max(d, minRequestInterval)
}
