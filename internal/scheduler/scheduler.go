package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/LJTian/NewsRadar/internal/collector"
)

// Sink 消费一次批量采集的结果，例如存储或通知
type Sink interface {
	SaveResult(ctx context.Context, res *collector.CrawlResult) error
}

// BatchCrawler 由 collector.Crawler 实现
type BatchCrawler interface {
	Crawl(ctx context.Context, reqs []collector.SourceRequest) *collector.CrawlResult
}

const (
	runTimeout   = 30 * time.Minute
	startupDelay = 15 * time.Second
)

type Scheduler struct {
	cron    *cron.Cron
	crawler BatchCrawler
	sources []collector.SourceRequest
	sinks   []Sink
	logger  *zap.Logger

	// 同一时刻只允许一轮采集
	running sync.Mutex

	mu      sync.Mutex
	stopped bool
	warmup  *time.Timer
	jobs    sync.WaitGroup
}

func New(spec string, crawler BatchCrawler, sources []collector.SourceRequest, logger *zap.Logger, sinks ...Sink) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(),
		crawler: crawler,
		sources: sources,
		sinks:   sinks,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("scheduler: add cron %q: %w", spec, err)
	}
	return s, nil
}

// Start 启动定时任务，并在 startupDelay 后补跑首轮采集
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	s.warmup = time.AfterFunc(startupDelay, s.tick)
	s.mu.Unlock()
}

// Stop 取消尚未触发的首轮采集，停止定时任务，并等待正在执行的采集（包括首轮）结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.warmup != nil {
		s.warmup.Stop()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.jobs.Wait()
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.jobs.Add(1)
	s.mu.Unlock()
	defer s.jobs.Done()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Warn("scheduled crawl skipped", zap.Error(err))
	}
}

// RunOnce 执行一轮采集并把结果交给所有 sink；sink 出错只记录日志
func (s *Scheduler) RunOnce(ctx context.Context) (*collector.CrawlResult, error) {
	if !s.running.TryLock() {
		return nil, fmt.Errorf("scheduler: previous crawl still running")
	}
	defer s.running.Unlock()

	start := time.Now()
	s.logger.Info("start crawl job", zap.Int("sources", len(s.sources)))

	res := s.crawler.Crawl(ctx, s.sources)

	for _, sink := range s.sinks {
		if err := sink.SaveResult(ctx, res); err != nil {
			s.logger.Error("sink failed", zap.String("sink", fmt.Sprintf("%T", sink)), zap.Error(err))
		}
	}

	s.logger.Info("crawl job done",
		zap.Int("succeeded", len(res.Results)),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}
