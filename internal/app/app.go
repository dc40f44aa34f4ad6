// Package app 负责把配置装配成可运行的采集组件，供各个 cmd 复用
package app

import (
	"go.uber.org/zap"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/config"
)

// NewCrawler 按配置创建 registry -> fetcher -> crawler
func NewCrawler(cfg *config.Config, logger *zap.Logger) (*collector.Crawler, error) {
	registry := collector.DefaultRegistry(collector.AdapterOptions{
		ProxyURL: cfg.ProxyURL,
		Logger:   logger.Named("adapter"),
	})

	fetcher, err := collector.NewFetcher(collector.FetcherConfig{
		APIURL:    cfg.APIURL,
		ProxyURL:  cfg.ProxyURL,
		PageLimit: cfg.PageLimit,
	}, registry, logger.Named("fetcher"))
	if err != nil {
		return nil, err
	}

	return collector.NewCrawler(fetcher, collector.CrawlerConfig{
		Mode:            cfg.KeyMode,
		RequestInterval: cfg.RequestInterval,
	}, logger.Named("crawler")), nil
}
