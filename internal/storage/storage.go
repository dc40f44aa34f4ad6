package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/NewsRadar/internal/collector"
	"github.com/LJTian/NewsRadar/internal/processor"
)

const (
	latestCacheKey = "newsradar:crawl:latest"
	latestCacheTTL = time.Hour
	saveBatchSize  = 200
)

// ErrNoResult 还没有任何采集记录
var ErrNoResult = errors.New("storage: no crawl result yet")

// CrawlRun 一次批量采集
type CrawlRun struct {
	ID     uint                        `gorm:"primaryKey" json:"id"`
	Mode   string                      `gorm:"size:16" json:"mode"`
	Names  datatypes.JSONMap           `gorm:"type:jsonb" json:"names"`
	Failed datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"failed"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// CrawlItem 一次采集中某个数据源的一条归一化记录
type CrawlItem struct {
	ID          uint                     `gorm:"primaryKey" json:"-"`
	RunID       uint                     `gorm:"index" json:"runId"`
	ItemID      string                   `gorm:"size:40;index" json:"id"`
	SourceID    string                   `gorm:"size:64;index" json:"sourceId"`
	SourceName  string                   `gorm:"size:128" json:"sourceName"`
	Key         string                   `gorm:"size:600" json:"key"`
	Title       string                   `gorm:"size:512" json:"title"`
	URL         string                   `gorm:"size:1024" json:"url"`
	MobileURL   string                   `gorm:"size:1024" json:"mobileUrl"`
	PublishedAt string                   `gorm:"size:64" json:"date"`
	Ranks       datatypes.JSONSlice[int] `gorm:"type:jsonb" json:"ranks"`
	BestRank    int                      `gorm:"index" json:"bestRank"`
}

type Store struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *zap.Logger
}

// NewStore 连接 Postgres 并自动建表；redisAddr 为空时不启用缓存
func NewStore(dsn, redisAddr string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}

	if err := db.AutoMigrate(&CrawlRun{}, &CrawlItem{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}

	s := &Store{DB: db, logger: logger}
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		}
		s.Redis = rdb
	}
	return s, nil
}

// toValidUTF8 部分站点会返回 GBK / 混合编码，写库前统一成合法 UTF-8
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 截断，避免超过字段长度导致入库失败
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func newCrawlRun(res *collector.CrawlResult) *CrawlRun {
	names := make(datatypes.JSONMap, len(res.Names))
	for id, name := range res.Names {
		names[id] = name
	}
	return &CrawlRun{
		Mode:   string(res.Mode),
		Names:  names,
		Failed: datatypes.JSONSlice[string](append([]string{}, res.Failed...)),
	}
}

func toCrawlItems(runID uint, rows []processor.ProcessedItem) []CrawlItem {
	out := make([]CrawlItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, CrawlItem{
			RunID:       runID,
			ItemID:      r.ID,
			SourceID:    r.SourceID,
			SourceName:  truncateRunesDB(toValidUTF8(r.SourceName), 128),
			Key:         truncateRunesDB(toValidUTF8(r.Key), 600),
			Title:       truncateRunesDB(toValidUTF8(r.Title), 512),
			URL:         r.URL,
			MobileURL:   r.MobileURL,
			PublishedAt: truncateRunesDB(toValidUTF8(r.PublishedAt), 64),
			Ranks:       datatypes.JSONSlice[int](r.Ranks),
			BestRank:    r.BestRank,
		})
	}
	return out
}

// buildResult 从数据库记录还原 CrawlResult；没有失败且没有条目的数据源保留为空结果
func buildResult(run *CrawlRun, items []CrawlItem) *collector.CrawlResult {
	res := &collector.CrawlResult{
		Mode:    collector.KeyMode(run.Mode),
		Results: make(map[string]map[string]collector.NormalizedItem),
		Names:   make(map[string]string, len(run.Names)),
		Failed:  append([]string{}, run.Failed...),
	}
	failed := make(map[string]struct{}, len(run.Failed))
	for _, id := range run.Failed {
		failed[id] = struct{}{}
	}
	for id, v := range run.Names {
		name, _ := v.(string)
		res.Names[id] = name
		if _, ok := failed[id]; !ok {
			res.Results[id] = make(map[string]collector.NormalizedItem)
		}
	}
	for _, it := range items {
		bucket, ok := res.Results[it.SourceID]
		if !ok {
			bucket = make(map[string]collector.NormalizedItem)
			res.Results[it.SourceID] = bucket
		}
		bucket[it.Key] = collector.NormalizedItem{
			Title:       it.Title,
			URL:         it.URL,
			MobileURL:   it.MobileURL,
			PublishedAt: it.PublishedAt,
			Ranks:       append([]int{}, it.Ranks...),
		}
	}
	return res
}

// SaveResult 在一个事务内写入本次采集及其全部条目，然后刷新 Redis 中的最新结果
func (s *Store) SaveResult(ctx context.Context, res *collector.CrawlResult) error {
	if res == nil {
		return nil
	}
	run := newCrawlRun(res)
	rows := processor.Flatten(res)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		items := toCrawlItems(run.ID, rows)
		if len(items) == 0 {
			return nil
		}
		return tx.CreateInBatches(items, saveBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("storage: save crawl result: %w", err)
	}

	s.logger.Info("crawl result saved",
		zap.Uint("run_id", run.ID),
		zap.Int("items", len(rows)),
		zap.Int("failed", len(res.Failed)),
	)

	if s.Redis != nil {
		if bs, err := json.Marshal(res); err == nil {
			if err := s.Redis.Set(ctx, latestCacheKey, bs, latestCacheTTL).Err(); err != nil {
				s.logger.Warn("cache latest result failed", zap.Error(err))
			}
		}
	}
	return nil
}

// LatestResult 优先读 Redis 缓存，未命中时从数据库取最近一次采集
func (s *Store) LatestResult(ctx context.Context) (*collector.CrawlResult, error) {
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, latestCacheKey).Bytes(); err == nil {
			var cached collector.CrawlResult
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	var run CrawlRun
	err := s.DB.WithContext(ctx).Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load latest run: %w", err)
	}

	var items []CrawlItem
	if err := s.DB.WithContext(ctx).Where("run_id = ?", run.ID).Order("source_id, best_rank").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("storage: load items: %w", err)
	}
	return buildResult(&run, items), nil
}
