package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAPIURL 共享聚合 API（NewsNow）
	DefaultAPIURL = "https://newsnow.busiyi.world/api/s"

	apiClientTimeout    = 10 * time.Second
	apiMaxResponseBytes = 4 << 20 // 4MB
	defaultPageLimit    = 3
)

var defaultAPIHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	"Connection":      "keep-alive",
	"Cache-Control":   "no-cache",
}

// SourceFetcher 是批量采集器依赖的单源获取接口
type SourceFetcher interface {
	Fetch(ctx context.Context, req SourceRequest) (*RawPayload, error)
}

// FetcherConfig 控制共享 API 地址、代理、重试以及适配器翻页上限。
// Retry 为 nil 时使用 DefaultRetryPolicy；&RetryPolicy{} 表示不重试。
type FetcherConfig struct {
	APIURL    string
	ProxyURL  string
	Retry     *RetryPolicy
	PageLimit int
}

// Fetcher 按数据源 ID 选择本地适配器或共享 API 获取原始数据
type Fetcher struct {
	apiURL    string
	client    *http.Client
	registry  *Registry
	retry     RetryPolicy
	pageLimit int
	logger    *zap.Logger

	sleep sleepFunc
	rng   *rand.Rand
}

// NewFetcher 创建 Fetcher；registry 为 nil 时所有数据源都走共享 API
func NewFetcher(cfg FetcherConfig, registry *Registry, logger *zap.Logger) (*Fetcher, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	retry := DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if registry == nil {
		registry = NewRegistry(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("collector: parse proxy url: %w", err)
		}
		// http 与 https 统一走同一个代理
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Fetcher{
		apiURL:    cfg.APIURL,
		client:    &http.Client{Timeout: apiClientTimeout, Transport: transport},
		registry:  registry,
		retry:     retry,
		pageLimit: cfg.PageLimit,
		logger:    logger,
		sleep:     sleepContext,
		rng:       newRand(),
	}, nil
}

// Fetch 获取单个数据源的原始 payload。
//
// 注册了本地适配器的数据源先走适配器，适配器返回非空结果时直接返回，不做重试；
// 适配器没有拿到任何条目时回退到共享 API，
// 因此"站点暂时无数据"和"适配器失效"对调用方表现一致。
// 共享 API 失败后按 RetryPolicy 重试，耗尽后返回 nil payload 和包装了 ErrRetriesExhausted 的错误。
func (f *Fetcher) Fetch(ctx context.Context, req SourceRequest) (*RawPayload, error) {
	log := f.logger.With(zap.String("source_id", req.ID), zap.String("alias", req.DisplayAlias()))

	if adapter, ok := f.registry.Resolve(req.ID); ok {
		log.Info("run local adapter", zap.String("adapter", adapter.Name()))
		payload := adapter.FetchRaw(ctx, f.pageLimit)
		if !payload.Empty() {
			log.Info("local adapter done", zap.Int("items", payload.ItemCount))
			return payload, nil
		}
		log.Warn("local adapter got 0 items, fall back to shared api")
	}

	return f.fetchAPI(ctx, req.ID, log)
}

func (f *Fetcher) fetchAPI(ctx context.Context, id string, log *zap.Logger) (*RawPayload, error) {
	endpoint := f.endpoint(id)
	attempts := f.retry.Attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		payload, err := f.requestOnce(ctx, endpoint)
		if err == nil {
			log.Info("fetch from shared api ok",
				zap.Int("attempt", attempt),
				zap.String("status", string(payload.Status)),
				zap.Int("items", payload.ItemCount),
			)
			return payload, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		wait := f.retry.Backoff(attempt, f.rng)
		log.Warn("fetch from shared api failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := f.sleep(ctx, wait); err != nil {
			lastErr = fmt.Errorf("%w: %w", lastErr, err)
			break
		}
	}

	log.Error("fetch from shared api failed", zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil, fmt.Errorf("collector: %s: %w: %w", id, ErrRetriesExhausted, lastErr)
}

func (f *Fetcher) endpoint(id string) string {
	sep := "?"
	if strings.Contains(f.apiURL, "?") {
		sep = "&"
	}
	return f.apiURL + sep + "id=" + url.QueryEscape(id) + "&latest"
}

type apiEnvelope struct {
	Status PayloadStatus     `json:"status"`
	Items  []json.RawMessage `json:"items"`
}

// requestOnce 发起一次请求并校验状态码与 status 字段
func (f *Fetcher) requestOnce(ctx context.Context, endpoint string) (*RawPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrNetwork, err)
	}
	for k, v := range defaultAPIHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, apiMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode body: %w", ErrResponseFormat, err)
	}
	if !env.Status.Usable() {
		return nil, fmt.Errorf("%w: unexpected response status %q", ErrResponseFormat, env.Status)
	}

	return &RawPayload{Status: env.Status, Body: body, ItemCount: len(env.Items)}, nil
}
