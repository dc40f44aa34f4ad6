package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	hnBaseURL          = "https://hacker-news.firebaseio.com/v0"
	hnItemsPerPage     = 30
	hnMaxResponseBytes = 1 << 20 // 1MB
)

// HackerNewsAdapter 通过官方 Firebase API 抓取 Hacker News 热门故事。
// pageLimit 按每页 30 条换算成条目上限；条目逐个顺序请求，单条失败时跳过。
// 只有 topstories 列表拿不到时才返回空结果。
type HackerNewsAdapter struct {
	BaseURL string
	Options AdapterOptions

	client *http.Client
}

func NewHackerNewsAdapter(opts AdapterOptions) *HackerNewsAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = adapterClientTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		if proxy, err := url.Parse(opts.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		}
	}
	return &HackerNewsAdapter{
		BaseURL: hnBaseURL,
		Options: opts,
		client:  &http.Client{Timeout: timeout, Transport: transport},
	}
}

func (h *HackerNewsAdapter) Name() string {
	return "hackernews_top"
}

type hnItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Time  int64  `json:"time"`
	Type  string `json:"type"`
}

func (h *HackerNewsAdapter) FetchRaw(ctx context.Context, pageLimit int) *RawPayload {
	log := zap.NewNop()
	if h.Options.Logger != nil {
		log = h.Options.Logger
	}
	log = log.With(zap.String("adapter", h.Name()))

	items, err := h.fetch(ctx, max(pageLimit, 1)*hnItemsPerPage, log)
	if err != nil {
		log.Warn("adapter failed, return empty result", zap.Error(err))
		return NewSuccessPayload(nil)
	}
	log.Info("adapter crawled", zap.Int("items", len(items)))
	return NewSuccessPayload(items)
}

func (h *HackerNewsAdapter) fetch(ctx context.Context, limit int, log *zap.Logger) ([]RawItem, error) {
	var ids []int
	if err := h.getJSON(ctx, "/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("%w: top stories: %w", ErrAdapterInternal, err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	results := make([]RawItem, 0, len(ids))
	for _, id := range ids {
		var it hnItem
		if err := h.getJSON(ctx, fmt.Sprintf("/item/%d.json", id), &it); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrAdapterInternal, ctx.Err())
			}
			// 单条失败只跳过，不影响其它条目
			log.Warn("fetch hn item failed, skip", zap.Int("id", id), zap.Error(err))
			continue
		}
		if strings.TrimSpace(it.Title) == "" || it.Type != "story" {
			continue
		}

		discuss := fmt.Sprintf("https://news.ycombinator.com/item?id=%d", it.ID)
		itemURL := it.URL
		if itemURL == "" {
			itemURL = discuss
		}
		date := ""
		if it.Time > 0 {
			date = time.Unix(it.Time, 0).UTC().Format(time.RFC3339)
		}
		results = append(results, RawItem{
			Title:     it.Title,
			URL:       itemURL,
			MobileURL: discuss,
			Date:      date,
		})
	}
	return results, nil
}

func (h *HackerNewsAdapter) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(h.BaseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	ua := h.Options.UserAgent
	if ua == "" {
		ua = adapterUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, hnMaxResponseBytes)).Decode(v)
}
