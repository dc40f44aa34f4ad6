package collector

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// SourceRequest 标识一次批量采集中的一个数据源
type SourceRequest struct {
	ID    string `json:"id" yaml:"id"`
	Alias string `json:"alias" yaml:"alias"`
}

// NewSourceRequest 构造 SourceRequest，alias 为空时回退为 id
func NewSourceRequest(id, alias string) SourceRequest {
	id = strings.TrimSpace(id)
	alias = strings.TrimSpace(alias)
	if alias == "" {
		alias = id
	}
	return SourceRequest{ID: id, Alias: alias}
}

// DisplayAlias 返回展示名，未设置时使用 ID
func (r SourceRequest) DisplayAlias() string {
	if r.Alias == "" {
		return r.ID
	}
	return r.Alias
}

// PayloadStatus 是共享 API 响应中的 status 字段
type PayloadStatus string

const (
	StatusSuccess PayloadStatus = "success"
	StatusCached  PayloadStatus = "cache"
	StatusError   PayloadStatus = "error"
)

// Usable 只有 success / cache 两种状态可以进入归一化
func (s PayloadStatus) Usable() bool {
	return s == StatusSuccess || s == StatusCached
}

// RawItem 是适配器输出的条目结构，与共享 API 的 items 元素保持同形
type RawItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	MobileURL string `json:"mobileUrl"`
	Date      string `json:"date,omitempty"`
}

// RawPayload 未归一化的采集结果：序列化后的 {status, items} 文本
type RawPayload struct {
	Status    PayloadStatus
	Body      []byte
	ItemCount int
}

// Empty 为 true 时 Fetcher 会回退到共享 API
func (p *RawPayload) Empty() bool {
	return p == nil || p.ItemCount == 0
}

type payloadEnvelope struct {
	Status PayloadStatus `json:"status"`
	Items  []RawItem     `json:"items"`
}

// NewSuccessPayload 把适配器抓到的条目封装成共享 API 的返回格式
func NewSuccessPayload(items []RawItem) *RawPayload {
	if items == nil {
		items = []RawItem{}
	}
	body, err := json.Marshal(payloadEnvelope{Status: StatusSuccess, Items: items})
	if err != nil {
		// RawItem 只包含字符串字段，不会出现编码失败
		body = []byte(`{"status":"success","items":[]}`)
		items = nil
	}
	return &RawPayload{Status: StatusSuccess, Body: body, ItemCount: len(items)}
}

// NormalizedItem 是一个数据源内的一条归一化记录
type NormalizedItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	MobileURL   string `json:"mobileUrl"`
	PublishedAt string `json:"date"`
	Ranks       []int  `json:"ranks"`
}

// KeyMode 决定同一数据源内条目的键
type KeyMode string

const (
	// KeyModeUnique 以 "{三位排名}_{标题}" 为键，重复标题各自保留
	KeyModeUnique KeyMode = "unique"
	// KeyModeMerge 以标题为键，重复标题合并并累积排名
	KeyModeMerge KeyMode = "merge"
)

// ParseKeyMode 解析配置中的模式字符串，空串按 unique 处理
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyModeUnique:
		return KeyModeUnique, nil
	case KeyModeMerge:
		return KeyModeMerge, nil
	default:
		return "", fmt.Errorf("collector: unknown key mode %q", s)
	}
}

// CrawlResult 一次批量采集的完整结果，交给通知 / 存储等下游使用
type CrawlResult struct {
	Mode    KeyMode                              `json:"mode"`
	Results map[string]map[string]NormalizedItem `json:"results"`
	Names   map[string]string                    `json:"names"`
	Failed  []string                             `json:"failed"`

	order []string
}

func newCrawlResult(mode KeyMode) *CrawlResult {
	return &CrawlResult{
		Mode:    mode,
		Results: make(map[string]map[string]NormalizedItem),
		Names:   make(map[string]string),
		Failed:  []string{},
	}
}

// Succeeded 按输入顺序返回有结果的数据源
func (r *CrawlResult) Succeeded() []string {
	out := make([]string, 0, len(r.Results))
	seen := make(map[string]struct{}, len(r.Results))
	for _, id := range r.order {
		if _, ok := r.Results[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	// 反序列化得到的结果没有 order，剩余的 key 按字典序补上
	var rest []string
	for id := range r.Results {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Outcomes 返回结果数与失败数之和，正常情况下等于去重后的请求数
func (r *CrawlResult) Outcomes() int {
	return len(r.Results) + len(r.Failed)
}
